package models

import "time"

// Document tracks one uploaded or ingested source file through the
// extract → chunk → embed → index pipeline.
type Document struct {
	DocID        string           `bson:"_id" json:"doc_id"`
	Title        string           `bson:"title" json:"title"`
	SourceURI    string           `bson:"source_uri" json:"source_uri"`
	System       string           `bson:"system" json:"system"` // upload | local | web
	Status       string           `bson:"status" json:"status"`
	ChunkCount   int              `bson:"chunk_count" json:"chunk_count"`
	ErrorMessage string           `bson:"error_message,omitempty" json:"error_message,omitempty"`
	UploadedAt   time.Time        `bson:"uploaded_at" json:"uploaded_at"`
	ProcessedAt  *time.Time       `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
	Metadata     DocumentMetadata `bson:"metadata" json:"metadata"`
}

// DocumentMetadata records how the text was obtained.
type DocumentMetadata struct {
	Size             int64         `bson:"size" json:"size"`
	Pages            int           `bson:"pages" json:"pages"`
	ExtractionMethod string        `bson:"extraction_method" json:"extraction_method"`
	QualityScore     float64       `bson:"quality_score" json:"quality_score"`
	ProcessingTime   time.Duration `bson:"processing_time" json:"processing_time"`
	CharacterCount   int           `bson:"character_count" json:"character_count"`
}

// Processing status constants.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Extraction method constants.
const (
	ExtractionMethodGoPDF = "go-pdf"
	ExtractionMethodOCR   = "ocr"
	ExtractionMethodDOCX  = "docx"
	ExtractionMethodXLSX  = "xlsx"
	ExtractionMethodPlain = "plain"
	ExtractionMethodWeb   = "web"
)
