package formats

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/xuri/excelize/v2"

	"github.com/daflip/daflip/core"
)

// Register driver
func init() {
	_ = register(&Excel{}, core.FormatExcel, core.FormatXLSX, "xlsm")
}

var (
	_ core.Reader = (*Excel)(nil)
	_ core.Writer = (*Excel)(nil)
)

const defaultSheet = "Sheet1"

// Excel reads and writes Office Open XML workbooks.
type Excel struct{}

func (*Excel) AcceptedReadOptions() core.OptionSet {
	return core.NewOptionSet(core.OptionSheet)
}

func (*Excel) AcceptedWriteOptions() core.OptionSet {
	return core.NewOptionSet(core.OptionSheet)
}

// Read loads one sheet, the first one unless a sheet name is given. The
// first row is the header.
func (*Excel) Read(_ context.Context, path string, opts *core.ReadOptions) (arrow.Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, core.MarkNotFound(fmt.Errorf("excelize.OpenFile: %w", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}

	sheet := sheets[0]
	if opts != nil && opts.Sheet != "" {
		if !slices.Contains(sheets, opts.Sheet) {
			return nil, core.InvalidOptionf("worksheet named %q not found (available: %s)", opts.Sheet, strings.Join(sheets, ", "))
		}
		sheet = opts.Sheet
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("excelize.GetRows: %w", err)
	}
	if len(rows) == 0 {
		return core.EmptyRecord(arrow.NewSchema(nil, nil)), nil
	}

	return gridRecord(rows[0], rows[1:], maxRows(opts))
}

// Write stores rec in a new workbook with a single sheet.
func (*Excel) Write(_ context.Context, rec arrow.Record, path string, opts *core.WriteOptions) error {
	sheet := defaultSheet
	if opts != nil && opts.Sheet != "" {
		sheet = opts.Sheet
	}

	f := excelize.NewFile()
	defer f.Close()

	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return core.InvalidOptionf("sheet name %q: %s", sheet, err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("excelize.NewStreamWriter: %w", err)
	}

	styles, err := excelStyles(f, rec.Schema())
	if err != nil {
		return err
	}

	header := make([]any, rec.NumCols())
	for j, name := range core.ColumnNames(rec.Schema()) {
		header[j] = name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("excelize.SetRow: %w", err)
	}

	for i := 0; i < int(rec.NumRows()); i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("excelize.CoordinatesToCellName: %w", err)
		}

		row := make([]any, rec.NumCols())
		for j, col := range rec.Columns() {
			row[j] = excelValue(core.Value(col, i), styles[j])
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("excelize.SetRow: %w", err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("excelize.Flush: %w", err)
	}

	out, err := core.CreateAtomic(path)
	if err != nil {
		return err
	}
	if _, err := f.WriteTo(out); err != nil {
		out.Abort()
		return fmt.Errorf("excelize.WriteTo: %w", err)
	}
	return out.Commit()
}

// excelStyles returns the number format style of each column: dates and
// timestamps get an ISO date format, every other column 0.
func excelStyles(f *excelize.File, schema *arrow.Schema) ([]int, error) {
	var dateStyle, timestampStyle int
	newStyle := func(format string) (int, error) {
		id, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
		if err != nil {
			return 0, fmt.Errorf("excelize.NewStyle: %w", err)
		}
		return id, nil
	}

	styles := make([]int, schema.NumFields())
	for j, field := range schema.Fields() {
		var err error
		switch field.Type.ID() {
		case arrow.DATE32, arrow.DATE64:
			if dateStyle == 0 {
				dateStyle, err = newStyle("yyyy-mm-dd")
			}
			styles[j] = dateStyle
		case arrow.TIMESTAMP:
			if timestampStyle == 0 {
				timestampStyle, err = newStyle("yyyy-mm-dd hh:mm:ss")
			}
			styles[j] = timestampStyle
		}
		if err != nil {
			return nil, err
		}
	}
	return styles, nil
}

// excelValue maps a column value to a cell value. Dates and timestamps are
// date cells in UTC; times of day and binary values are stored as text.
func excelValue(v any, style int) any {
	switch v := v.(type) {
	case time.Time:
		if style == 0 {
			return core.FormatAny(v)
		}
		return excelize.Cell{StyleID: style, Value: v.UTC()}
	case time.Duration, []byte:
		return core.FormatAny(v)
	default:
		return v
	}
}
