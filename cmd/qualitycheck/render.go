package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"covidqc/internal/datasource"
	"covidqc/internal/frame"
)

func renderStatuses(w io.Writer, statuses []datasource.Status) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Source", "State", "Rows", "Duration", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	for _, s := range statuses {
		duration := ""
		if s.Duration > 0 {
			duration = s.Duration.Round(time.Millisecond).String()
		}
		t.AppendRow(table.Row{s.Name, s.State.String(), s.Rows, duration, s.Error})
	}
	t.Render()
}

func renderPreview(w io.Writer, f *frame.Frame, n int) {
	cols := f.Columns()
	header := make(table.Row, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)

	rows := min(n, f.Len())
	for i := 0; i < rows; i++ {
		values := f.Row(i)
		row := make(table.Row, len(cols))
		for j, c := range cols {
			row[j] = formatValue(values[c.Name])
		}
		t.AppendRow(row)
	}
	t.Render()
	fmt.Fprintf(w, "(%d of %d rows)\n", rows, f.Len())
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return x.Format("2006-01-02 15:04")
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}
