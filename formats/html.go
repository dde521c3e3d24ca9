package formats

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/apache/arrow/go/v15/arrow"

	"github.com/daflip/daflip/core"
	"github.com/daflip/daflip/core/builders"
)

// Register driver
func init() {
	_ = register(&HTML{}, core.FormatHTML, "htm")
}

var _ core.Reader = (*HTML)(nil)

var errNoTables = errors.New("no tables found")

// HTML reads one <table> element of a document.
type HTML struct{}

func (*HTML) AcceptedReadOptions() core.OptionSet {
	return core.NewOptionSet(core.OptionTable)
}

func (*HTML) AcceptedWriteOptions() core.OptionSet {
	return core.NewOptionSet()
}

func (*HTML) Read(_ context.Context, path string, opts *core.ReadOptions) (arrow.Record, error) {
	rc, err := core.OpenDecompressed(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	doc, err := goquery.NewDocumentFromReader(rc)
	if err != nil {
		return nil, fmt.Errorf("goquery.NewDocumentFromReader: %w", err)
	}

	tables := doc.Find("table")
	if tables.Length() == 0 {
		return nil, errNoTables
	}

	// an index past the tables found reads the first one
	index := 0
	if opts != nil && opts.Table != nil && *opts.Table >= 0 && *opts.Table < tables.Length() {
		index = *opts.Table
	}

	header, rows := parseTable(tables.Eq(index))
	return gridRecord(header, rows, maxRows(opts), builders.TextWithThousands(","))
}

// parseTable expands the table into a grid and splits off the header: the
// rows of <thead>, or a first row made only of <th> cells. Without either the
// columns are numbered.
func parseTable(table *goquery.Selection) ([]string, [][]string) {
	var (
		rows     []*goquery.Selection
		headRows int
		allTH    bool
	)

	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		// rows of nested tables belong to those tables
		if tr.ParentsFiltered("table").First().Get(0) != table.Get(0) {
			return
		}
		if tr.ParentsFiltered("thead").Length() > 0 && headRows == len(rows) {
			headRows++
		}
		rows = append(rows, tr)
	})

	grid := expandSpans(rows)

	if headRows == 0 && len(rows) > 0 {
		cells := rows[0].ChildrenFiltered("td, th")
		allTH = cells.Length() > 0 && cells.Length() == cells.Filter("th").Length()
		if allTH {
			headRows = 1
		}
	}

	if headRows == 0 {
		width := 0
		for _, row := range grid {
			width = max(width, len(row))
		}
		header := make([]string, width)
		for i := range header {
			header[i] = strconv.Itoa(i)
		}
		return header, grid
	}

	// the innermost header row names the columns
	return grid[headRows-1], grid[headRows:]
}

type span struct {
	text string
	left int
}

// expandSpans copies cells spanning several columns or rows into every
// position they cover.
func expandSpans(rows []*goquery.Selection) [][]string {
	grid := make([][]string, 0, len(rows))
	pending := map[int]*span{}

	for _, tr := range rows {
		var out []string
		col := 0

		fill := func() {
			for {
				s, ok := pending[col]
				if !ok || s.left == 0 {
					return
				}
				out = append(out, s.text)
				s.left--
				col++
			}
		}

		tr.ChildrenFiltered("td, th").Each(func(_ int, cell *goquery.Selection) {
			fill()

			text := strings.Join(strings.Fields(cell.Text()), " ")
			colspan := spanAttr(cell, "colspan")
			rowspan := spanAttr(cell, "rowspan")

			for k := 0; k < colspan; k++ {
				out = append(out, text)
				if rowspan > 1 {
					pending[col] = &span{text: text, left: rowspan - 1}
				} else {
					delete(pending, col)
				}
				col++
			}
		})

		// spans reaching past the last cell of this row
		for {
			fill()
			next := -1
			for c, s := range pending {
				if c > col && s.left > 0 && (next < 0 || c < next) {
					next = c
				}
			}
			if next < 0 {
				break
			}
			for col < next {
				out = append(out, "")
				col++
			}
		}

		grid = append(grid, out)
	}

	return grid
}

func spanAttr(cell *goquery.Selection, name string) int {
	v, ok := cell.Attr(name)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
