package exporter

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"covidqc/internal/frame"
	"covidqc/internal/shared/testutil"
)

func sampleFrame(t *testing.T) *frame.Frame {
	t.Helper()
	updated := time.Date(2020, 4, 14, 17, 0, 0, 0, time.UTC)
	f, err := frame.New(
		frame.NewCategory("state", []string{"CA", "NY"}),
		frame.NewInt("positive", []int64{12, -1000}),
		frame.NewFloat("ratio", []float64{0.5, math.NaN()}),
		frame.NewTime("updated", []time.Time{updated, updated}),
	)
	require.NoError(t, err)
	return f
}

func TestEncodeCSV(t *testing.T) {
	tests := []struct {
		name string
		opts WriteOptions
		want string
	}{
		{
			name: "plain",
			want: "state,positive,ratio,updated\nCA,12,0.5,2020-04-14T17:00:00Z\nNY,-1000,,2020-04-14T17:00:00Z\n",
		},
		{
			name: "bom",
			opts: WriteOptions{BOMPrefix: true},
			want: "\xEF\xBB\xBFstate,positive,ratio,updated\nCA,12,0.5,2020-04-14T17:00:00Z\nNY,-1000,,2020-04-14T17:00:00Z\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeCSV(&buf, sampleFrame(t), tt.opts))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestCSVWriterWriteFrame(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	dir := filepath.Join(t.TempDir(), "out")
	w := NewCSVWriter(dir, logger)

	path, err := w.WriteFrame("current", sampleFrame(t), WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "current.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "NY,-1000,,")
	assert.True(t, handler.ContainsMessage("Wrote CSV file"))

	// a second write replaces the file
	empty, err := frame.New(frame.NewCategory("state", nil))
	require.NoError(t, err)
	_, err = w.WriteFrame("current", empty, WriteOptions{})
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "state\n", string(data))
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qc.xlsx")
	err := WriteWorkbook(path, []Sheet{
		{Name: "current", Frame: sampleFrame(t)},
		{Name: "history"},
		{Name: "counties", Frame: sampleFrame(t)},
	})
	require.NoError(t, err)

	wb, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{"current", "counties"}, wb.GetSheetList())

	rows, err := wb.GetRows("current")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"state", "positive", "ratio", "updated"}, rows[0])
	assert.Equal(t, []string{"CA", "12", "0.5"}, rows[1][:3])
	assert.Equal(t, []string{"NY", "-1000", ""}, rows[2][:3])
	assert.NotEmpty(t, rows[2][3])
}

func TestWriteWorkbookEmpty(t *testing.T) {
	err := WriteWorkbook(filepath.Join(t.TempDir(), "qc.xlsx"), []Sheet{{Name: "history"}})
	assert.Error(t, err)
}
