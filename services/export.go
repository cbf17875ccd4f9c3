package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"ia-assistant-platform/models"

	"github.com/xuri/excelize/v2"
)

// ExportHistoryXLSX renders a session's question history as a workbook,
// one row per entry with evidence references flattened into a single cell.
// Returns the workbook bytes and a suggested download filename.
func ExportHistoryXLSX(sessionID string, history []models.HistoryEntry) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "History"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"#", "Time", "Mode", "Question", "Filter", "Evidence"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for i, entry := range history {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), i+1)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), entry.Timestamp.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), entry.Mode)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), entry.Question)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), entry.Filter)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), formatHitRefs(entry.Hits))
	}

	f.SetColWidth(sheetName, "B", "B", 20)
	f.SetColWidth(sheetName, "D", "D", 60)
	f.SetColWidth(sheetName, "F", "F", 80)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to write workbook: %w", err)
	}

	filename := fmt.Sprintf("history_%s_%s.xlsx", shortSessionID(sessionID), time.Now().Format("20060102_150405"))
	return buf.Bytes(), filename, nil
}

func formatHitRefs(hits []models.HitRef) string {
	lines := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Page > 0 {
			lines = append(lines, fmt.Sprintf("%s p.%d (%s)", h.Title, h.Page, h.SourceURI))
		} else {
			lines = append(lines, fmt.Sprintf("%s (%s)", h.Title, h.SourceURI))
		}
	}
	return strings.Join(lines, "\n")
}

func shortSessionID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
