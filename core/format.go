package core

import (
	"path/filepath"
	"strings"
)

// Format is a canonical lowercase tag naming a file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatTSV     Format = "tsv"
	FormatPSV     Format = "psv"
	FormatFixed   Format = "fixed"
	FormatParquet Format = "parquet"
	FormatORC     Format = "orc"
	FormatFeather Format = "feather"
	FormatSAS     Format = "sas7bdat"
	FormatStata   Format = "stata"
	FormatSPSS    Format = "spss"
	FormatExcel   Format = "excel"
	FormatXLSX    Format = "xlsx"
	FormatXLS     Format = "xls"
	FormatHTML    Format = "html"
	FormatNone    Format = ""
)

func (f Format) String() string {
	return string(f)
}

// ResolveFormat derives a format tag. A non-empty override always wins and is
// returned lowercased. Otherwise the extension of the last path element is used,
// lowercased and without the leading dot. A path without an extension resolves to
// FormatNone.
func ResolveFormat(path, override string) Format {
	if override != "" {
		return Format(strings.ToLower(override))
	}

	ext := filepath.Ext(path)
	return Format(strings.ToLower(strings.TrimPrefix(ext, ".")))
}
