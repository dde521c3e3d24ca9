package formats

import (
	"github.com/apache/arrow/go/v15/arrow"

	"github.com/daflip/daflip/core"
	"github.com/daflip/daflip/core/builders"
)

// gridRecord builds a record from a header and rows of text cells, as
// produced by spreadsheets and html tables. Rows wider than the header get
// extra unnamed columns. limit bounds the number of data rows when positive.
func gridRecord(header []string, rows [][]string, limit int, opts ...builders.TextOption) (arrow.Record, error) {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	width := len(header)
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		return core.EmptyRecord(arrow.NewSchema(nil, nil)), nil
	}

	names := make([]string, width)
	copy(names, header)

	table := builders.NewTextTable(names, opts...)
	table.Sniff(rows)
	return table.Build(rows, 2)
}
