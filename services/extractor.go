package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ia-assistant-platform/internal/config"
	"ia-assistant-platform/internal/logger"
	"ia-assistant-platform/internal/telemetry"
	"ia-assistant-platform/models"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// ExtractionResult is the outcome of pulling text out of one source file.
type ExtractionResult struct {
	Text           string
	Pages          int
	Method         string
	QualityScore   float64
	ProcessingTime time.Duration
	CharacterCount int
}

// Extractor turns uploaded and ingested files into normalized text.
// PDFs use the in-process reader first; when the result scores below the
// configured quality threshold and the OCR backend is enabled, the OCR
// service gets a try and the higher-scoring text wins.
type Extractor struct {
	cfg *config.Config
	ocr *OCRClient
}

func NewExtractor(cfg *config.Config) *Extractor {
	e := &Extractor{cfg: cfg}
	if cfg.OCRServiceEnabled {
		e.ocr = NewOCRClient(cfg)
	}
	return e
}

// SupportedExtension reports whether the file type can be ingested.
func SupportedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx", ".txt", ".md", ".xlsx":
		return true
	}
	return false
}

// Extract reads the file and returns cleaned text with extraction metadata.
func (e *Extractor) Extract(ctx context.Context, path, filename string) (*ExtractionResult, error) {
	start := time.Now()

	var result *ExtractionResult
	var err error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		result, err = e.extractPDF(ctx, path)
	case ".docx":
		result, err = e.extractDOCX(path)
	case ".txt", ".md":
		result, err = e.extractPlain(path)
	case ".xlsx":
		result, err = e.extractXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
	if err != nil {
		telemetry.RecordExtraction(ctx, time.Since(start), "unknown", "error")
		return nil, err
	}

	result.Text = CleanText(result.Text)
	result.QualityScore = QualityScore(result.Text)
	result.CharacterCount = len([]rune(result.Text))
	result.ProcessingTime = time.Since(start)

	telemetry.RecordExtraction(ctx, result.ProcessingTime, result.Method, "ok")
	return result, nil
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (*ExtractionResult, error) {
	primary, primaryErr := extractWithGoPDF(path)
	if primaryErr == nil {
		primary.QualityScore = QualityScore(CleanText(primary.Text))
		if primary.QualityScore >= e.cfg.ExtractQualityThreshold || e.ocr == nil {
			return primary, nil
		}
	}

	if e.ocr == nil {
		return nil, fmt.Errorf("pdf extraction failed: %w", primaryErr)
	}

	logger.Info("Primary PDF extraction below threshold, trying OCR",
		"path", path, "threshold", e.cfg.ExtractQualityThreshold)

	secondary, ocrErr := e.ocr.ExtractTextFromFile(ctx, path, filepath.Base(path))
	if ocrErr != nil {
		if primaryErr == nil {
			logger.Warn("OCR fallback failed, keeping primary result", "error", ocrErr)
			return primary, nil
		}
		return nil, fmt.Errorf("pdf extraction failed (primary: %v, ocr: %v)", primaryErr, ocrErr)
	}
	secondary.QualityScore = QualityScore(CleanText(secondary.Text))

	return betterResult(primary, secondary), nil
}

// betterResult picks the higher-scoring of two extraction attempts. Either
// argument may be nil.
func betterResult(a, b *ExtractionResult) *ExtractionResult {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.QualityScore > a.QualityScore {
		return b
	}
	return a
}

func extractWithGoPDF(path string) (*ExtractionResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF file: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract text from page", "page", i, "error", err)
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n\n")
	}

	extracted := textBuilder.String()
	if strings.TrimSpace(extracted) == "" {
		return nil, fmt.Errorf("no text extracted by go-pdf")
	}

	return &ExtractionResult{
		Text:   extracted,
		Pages:  pages,
		Method: models.ExtractionMethodGoPDF,
	}, nil
}

func (e *Extractor) extractPlain(path string) (*ExtractionResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	return &ExtractionResult{
		Text:   string(content),
		Pages:  1,
		Method: models.ExtractionMethodPlain,
	}, nil
}

func (e *Extractor) extractXLSX(path string) (*ExtractionResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var sheets []string
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			logger.Warn("Failed to read sheet", "sheet", name, "error", err)
			continue
		}
		var lines []string
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			sheets = append(sheets, name+"\n"+strings.Join(lines, "\n"))
		}
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no text extracted from workbook")
	}

	return &ExtractionResult{
		Text:   strings.Join(sheets, "\n\n"),
		Pages:  len(sheets),
		Method: models.ExtractionMethodXLSX,
	}, nil
}
