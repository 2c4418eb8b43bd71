package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/receipt-approval/internal/application/port"
	"github.com/garyjia/receipt-approval/internal/domain/apperr"
)

const defaultSheet = "Sheet1"

// ExcelExporter implements port.ReceiptExporter with an xlsx workbook
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new ExcelExporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

// Export writes the headers in bold on the first row followed by one row per record
func (e *ExcelExporter) Export(sheet port.ReceiptSheet) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Error("Failed to close workbook", zap.Error(err))
		}
	}()

	name := sanitizeSheetName(sheet.Title)
	if name != defaultSheet {
		if err := f.SetSheetName(defaultSheet, name); err != nil {
			return nil, apperr.Infrastructure("rename sheet", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, apperr.Infrastructure("create header style", err)
	}

	if len(sheet.Headers) > 0 {
		headers := make([]interface{}, len(sheet.Headers))
		for i, h := range sheet.Headers {
			headers[i] = h
		}
		if err := f.SetSheetRow(name, "A1", &headers); err != nil {
			return nil, apperr.Infrastructure("write header row", err)
		}

		last, err := excelize.CoordinatesToCellName(len(sheet.Headers), 1)
		if err != nil {
			return nil, apperr.Infrastructure("header range", err)
		}
		if err := f.SetCellStyle(name, "A1", last, headerStyle); err != nil {
			return nil, apperr.Infrastructure("style header row", err)
		}
		if err := f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return nil, apperr.Infrastructure("freeze header row", err)
		}
	}

	for i, row := range sheet.Rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, apperr.Infrastructure("row coordinates", err)
		}
		if err := f.SetSheetRow(name, cell, &cells); err != nil {
			return nil, apperr.Infrastructure(fmt.Sprintf("write row %d", i+1), err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		e.logger.Error("Failed to write workbook", zap.Error(err))
		return nil, apperr.Infrastructure("write workbook", err)
	}

	e.logger.Debug("Workbook exported",
		zap.String("sheet", name),
		zap.Int("rows", len(sheet.Rows)))

	return buf.Bytes(), nil
}

// cellValue formats timestamps so spreadsheets show them without a custom number format
func cellValue(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("2006-01-02 15:04:05")
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.UTC().Format("2006-01-02 15:04:05")
	default:
		return v
	}
}

// sanitizeSheetName applies excel's sheet name rules: at most 31 characters, none of []:*?/\
func sanitizeSheetName(title string) string {
	if title == "" {
		return defaultSheet
	}
	out := make([]rune, 0, len(title))
	for _, r := range title {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			out = append(out, '-')
		default:
			out = append(out, r)
		}
		if len(out) == 31 {
			break
		}
	}
	return string(out)
}

var _ port.ReceiptExporter = (*ExcelExporter)(nil)
