package cli

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/daflip/daflip/convert"
	"github.com/daflip/daflip/core"
)

var _ convert.Reporter = (*tablePreview)(nil)

// tablePreview prints the head of a record as a table.
type tablePreview struct {
	w io.Writer
}

func newTablePreview(w io.Writer) *tablePreview {
	return &tablePreview{w: w}
}

func (p *tablePreview) Preview(rec arrow.Record, rows int) {
	n := min(int(rec.NumRows()), rows)
	fmt.Fprintf(p.w, "First %d of %d loaded rows:\n", n, rec.NumRows())
	fmt.Fprintln(p.w, renderTable(rec, n))
}

func renderTable(rec arrow.Record, rows int) string {
	header := table.Row{""}
	for _, f := range rec.Schema().Fields() {
		header = append(header, f.Name)
	}

	var tableRows []table.Row
	for i := 0; i < rows; i++ {
		row := table.Row{i}
		for _, col := range rec.Columns() {
			row = append(row, core.FormatValue(col, i))
		}
		tableRows = append(tableRows, row)
	}

	t := table.NewWriter()
	t.AppendHeader(header)
	t.AppendRows(tableRows)
	t.SetStyle(table.StyleLight)
	t.Style().Format = table.FormatOptions{
		Footer: text.FormatDefault,
		Header: text.FormatDefault,
		Row:    text.FormatDefault,
	}
	t.Style().Options.DrawBorder = false
	t.SuppressTrailingSpaces()

	return t.Render()
}
