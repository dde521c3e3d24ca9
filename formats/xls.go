package formats

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/extrame/xls"

	"github.com/daflip/daflip/core"
)

// Register driver
func init() {
	_ = register(&XLS{}, core.FormatXLS)
}

var (
	_ core.Reader = (*XLS)(nil)
	_ core.Writer = (*XLS)(nil)
)

// XLS reads legacy BIFF workbooks. There is no writer for the format.
type XLS struct{}

func (*XLS) AcceptedReadOptions() core.OptionSet {
	return core.NewOptionSet(core.OptionSheet)
}

func (*XLS) AcceptedWriteOptions() core.OptionSet {
	return core.NewOptionSet(core.OptionSheet)
}

func (*XLS) Read(_ context.Context, path string, opts *core.ReadOptions) (arrow.Record, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, core.MarkNotFound(fmt.Errorf("xls.Open: %w", err))
	}

	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}

	var sheet *xls.WorkSheet
	if opts != nil && opts.Sheet != "" {
		names := make([]string, 0, wb.NumSheets())
		for i := 0; i < wb.NumSheets(); i++ {
			s := wb.GetSheet(i)
			if s == nil {
				continue
			}
			if s.Name == opts.Sheet {
				sheet = s
				break
			}
			names = append(names, s.Name)
		}
		if sheet == nil {
			return nil, core.InvalidOptionf("worksheet named %q not found (available: %s)", opts.Sheet, strings.Join(names, ", "))
		}
	} else {
		sheet = wb.GetSheet(0)
	}
	if sheet == nil {
		return nil, fmt.Errorf("workbook %s: cannot load sheet", path)
	}

	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}

		cells := make([]string, row.LastCol())
		for j := range cells {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}

	// trailing blank rows carry no data
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	if len(rows) == 0 {
		return core.EmptyRecord(arrow.NewSchema(nil, nil)), nil
	}

	return gridRecord(rows[0], rows[1:], maxRows(opts))
}

// Write always fails: no maintained library writes BIFF files.
func (*XLS) Write(context.Context, arrow.Record, string, *core.WriteOptions) error {
	return core.NotImplementedf("writing xls files is not supported, use xlsx")
}
