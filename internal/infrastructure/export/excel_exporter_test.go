package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/receipt-approval/internal/application/port"
)

func TestExcelExporter_Export(t *testing.T) {
	e := NewExcelExporter(zap.NewNop())
	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	data, err := e.Export(port.ReceiptSheet{
		Title:   "History",
		Headers: []string{"ID", "Title", "Created At"},
		Rows: [][]interface{}{
			{int64(1), "Taxi", created},
			{int64(2), "Hotel", time.Time{}},
		},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"History"}, f.GetSheetList())

	rows, err := f.GetRows("History")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ID", "Title", "Created At"}, rows[0])
	assert.Equal(t, []string{"1", "Taxi", "2024-05-01 09:30:00"}, rows[1])
	require.GreaterOrEqual(t, len(rows[2]), 2)
	assert.Equal(t, []string{"2", "Hotel"}, rows[2][:2])
}

func TestExcelExporter_EmptySheet(t *testing.T) {
	e := NewExcelExporter(zap.NewNop())

	data, err := e.Export(port.ReceiptSheet{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{defaultSheet}, f.GetSheetList())
}

func TestSanitizeSheetName(t *testing.T) {
	assert.Equal(t, "Q1-Q2 history", sanitizeSheetName("Q1/Q2 history"))
	assert.Len(t, []rune(sanitizeSheetName("a very long receipt history sheet title here")), 31)
	assert.Equal(t, defaultSheet, sanitizeSheetName(""))
}
