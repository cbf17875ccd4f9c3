package services

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"ia-assistant-platform/models"

	"github.com/xuri/excelize/v2"
)

func TestExportHistoryXLSX(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	history := []models.HistoryEntry{
		{
			Mode:     "qa",
			Question: "보안 정책은 무엇인가요?",
			Filter:   `{"system": "hr"}`,
			Hits: []models.HitRef{
				{Title: "보안지침", Page: 3, SourceURI: "upload://doc1.pdf"},
				{Title: "운영매뉴얼", SourceURI: "upload://doc2.pdf"},
			},
			Timestamp: ts,
		},
		{
			Mode:      "web_qa",
			Question:  "latest release?",
			Timestamp: ts.Add(time.Minute),
		},
	}

	data, filename, err := ExportHistoryXLSX("abcdef123456", history)
	if err != nil {
		t.Fatalf("ExportHistoryXLSX() error: %v", err)
	}
	if !strings.HasPrefix(filename, "history_abcdef12_") || !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("unexpected filename %q", filename)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("History")
	if err != nil {
		t.Fatalf("GetRows() error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "#" || rows[0][3] != "Question" {
		t.Errorf("unexpected header row %v", rows[0])
	}
	if rows[1][2] != "qa" || rows[1][3] != "보안 정책은 무엇인가요?" {
		t.Errorf("unexpected first row %v", rows[1])
	}
	if !strings.Contains(rows[1][5], "보안지침 p.3") {
		t.Errorf("evidence cell missing page reference: %q", rows[1][5])
	}
	if rows[2][2] != "web_qa" {
		t.Errorf("unexpected second row mode %q", rows[2][2])
	}
}

func TestExportHistoryXLSXEmpty(t *testing.T) {
	data, _, err := ExportHistoryXLSX("s", nil)
	if err != nil {
		t.Fatalf("ExportHistoryXLSX() error: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("History")
	if err != nil {
		t.Fatalf("GetRows() error: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected only the header row, got %d rows", len(rows))
	}
}
