package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/daflip/daflip/config"
	"github.com/daflip/daflip/core/mock"
	"github.com/daflip/daflip/formats"
)

func init() {
	color.NoColor = true
}

func newTestEnv() (*env, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &env{
		stdout: &stdout,
		stderr: &stderr,
		config: &config.Config{LogLevel: "info", LogFormat: "text", PreviewRows: 2},
		log:    mock.NewLogger(),
		mux:    new(formats.Mux),
	}, &stdout, &stderr
}

func writeCSV(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\n1,a\n2,b\n3,c\n"), 0o644))
	return path
}

func TestRun_Convert(t *testing.T) {
	r := require.New(t)

	dir := t.TempDir()
	in := writeCSV(t, dir)
	out := filepath.Join(dir, "out.csv")

	e, stdout, stderr := newTestEnv()
	r.Equal(0, run([]string{"convert", in, out, "--rows", "1:3"}, e))
	r.Equal("Conversion successful! Output written to "+out+"\n", stdout.String())
	r.Empty(stderr.String())

	got, err := os.ReadFile(out)
	r.NoError(err)
	r.Equal("id,name\n2,b\n3,c\n", string(got))
}

func TestRun_ConvertErrors(t *testing.T) {
	dir := t.TempDir()
	in := writeCSV(t, dir)

	testCases := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "unsupported input",
			args:     []string{"convert", filepath.Join(dir, "in.json"), filepath.Join(dir, "out.csv")},
			expected: []string{"Error: unsupported input format: json\n", "hint: pass --input-format", "parquet"},
		},
		{
			name:     "missing input",
			args:     []string{"convert", filepath.Join(dir, "missing.csv"), filepath.Join(dir, "out.csv")},
			expected: []string{"Error: ", "hint: check that the path exists and is readable"},
		},
		{
			name:     "chunking into orc",
			args:     []string{"convert", in, filepath.Join(dir, "out.orc"), "--input-chunk-size", "10"},
			expected: []string{"Error: chunking not supported for format orc\n", "hint: run the conversion without chunking"},
		},
		{
			name:     "wrong arguments",
			args:     []string{"convert", in},
			expected: []string{"Error: accepts 2 arg(s), received 1"},
		},
		{
			name:     "non positive nrows",
			args:     []string{"schema", in, filepath.Join(dir, "schema.json"), "--nrows", "0"},
			expected: []string{"Error: nrows must be greater than 0, got 0"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := require.New(t)

			e, stdout, stderr := newTestEnv()
			r.Equal(1, run(tc.args, e))
			r.Empty(stdout.String())
			for _, s := range tc.expected {
				r.Contains(stderr.String(), s)
			}
		})
	}
}

func TestRun_FailurePreview(t *testing.T) {
	r := require.New(t)

	dir := t.TempDir()
	in := writeCSV(t, dir)

	e, _, stderr := newTestEnv()
	r.Equal(1, run([]string{"convert", in, filepath.Join(dir, "out.xls")}, e))

	out := stderr.String()
	r.Contains(out, "Error: write ")
	r.Contains(out, "writing xls files is not supported, use xlsx")
	r.Contains(out, "First 2 of 3 loaded rows:")
	r.Contains(out, "id")
	r.Contains(out, "a")
}

func TestRun_Schema(t *testing.T) {
	r := require.New(t)

	dir := t.TempDir()
	in := writeCSV(t, dir)
	out := filepath.Join(dir, "schema.json")

	e, stdout, _ := newTestEnv()
	r.Equal(0, run([]string{"schema", in, out, "--nrows", "2"}, e))
	r.Equal("Schema exported to "+out+"\n", stdout.String())

	data, err := os.ReadFile(out)
	r.NoError(err)

	var doc struct {
		Fields []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"fields"`
	}
	r.NoError(json.Unmarshal(data, &doc))
	r.Len(doc.Fields, 2)
	r.Equal("id", doc.Fields[0].Name)
	r.Equal("int64", doc.Fields[0].Type)
	r.Equal("string", doc.Fields[1].Type)
}

func TestRenderTable(t *testing.T) {
	r := require.New(t)

	rec := mock.NewRows(0, 3)
	defer rec.Release()

	out := renderTable(rec, 2)
	r.Contains(out, "row_0")
	r.Contains(out, "row_1")
	r.NotContains(out, "row_2")
}
