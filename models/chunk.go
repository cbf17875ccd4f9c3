package models

// ChunkRecord is the unit stored in the search index. One source document
// produces many chunks sharing a doc_id; records are immutable once indexed.
type ChunkRecord struct {
	ID            string    `bson:"_id" json:"id"`
	DocID         string    `bson:"doc_id" json:"doc_id"`
	Title         string    `bson:"title" json:"title"`
	Chunk         string    `bson:"chunk" json:"chunk"`
	ContentVector []float32 `bson:"content_vector" json:"-"`
	SourceURI     string    `bson:"source_uri" json:"source_uri"`
	System        string    `bson:"system" json:"system"`
	Year          int       `bson:"year" json:"year"`
	Page          int       `bson:"page,omitempty" json:"page,omitempty"`
}

// SearchHit is a read-only projection of a ChunkRecord plus the store's
// relevance score. The vector is never carried back to callers.
type SearchHit struct {
	ID        string  `bson:"_id" json:"id"`
	DocID     string  `bson:"doc_id" json:"doc_id"`
	Title     string  `bson:"title" json:"title"`
	Chunk     string  `bson:"chunk" json:"chunk"`
	SourceURI string  `bson:"source_uri" json:"source_uri"`
	System    string  `bson:"system" json:"system"`
	Year      int     `bson:"year" json:"year"`
	Page      int     `bson:"page,omitempty" json:"page,omitempty"`
	Score     float64 `bson:"score" json:"score"`
}

// WebSource is one result from the web search service or an agent citation.
type WebSource struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}
