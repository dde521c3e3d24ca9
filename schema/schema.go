// Package schema reads and writes the JSON schema document:
//
//	{"fields": [{"name": "id", "type": "int64"}, ...]}
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v15/arrow"

	"github.com/daflip/daflip/core"
)

type document struct {
	Fields []field `json:"fields"`
}

type field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// rawDocument is used for loading, so a missing "fields" key can be told
// apart from an empty list.
type rawDocument struct {
	Fields *[]rawField `json:"fields"`
}

type rawField struct {
	Name *string `json:"name"`
	Type *string `json:"type"`
}

// Load parses the schema document at path.
func Load(path string) (*arrow.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.MarkNotFound(fmt.Errorf("schema file: %w", err))
	}

	return Parse(data)
}

// Parse decodes a schema document.
func Parse(data []byte) (*arrow.Schema, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, core.MalformedSchemaf("invalid schema document: %s", err)
	}
	if doc.Fields == nil {
		return nil, core.MalformedSchemaf("schema document has no \"fields\" array")
	}

	fields := make([]arrow.Field, 0, len(*doc.Fields))
	for i, f := range *doc.Fields {
		if f.Name == nil || *f.Name == "" {
			return nil, core.MalformedSchemaf("field %d has no name", i)
		}
		if f.Type == nil {
			return nil, core.MalformedSchemaf("field %q has no type", *f.Name)
		}

		dt, err := ParseType(*f.Type)
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: *f.Name, Type: dt, Nullable: true})
	}

	return arrow.NewSchema(fields, nil), nil
}

// Marshal encodes s as a two-space indented schema document.
func Marshal(s *arrow.Schema) ([]byte, error) {
	doc := document{Fields: make([]field, s.NumFields())}
	for i, f := range s.Fields() {
		doc.Fields[i] = field{Name: f.Name, Type: TypeName(f.Type)}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("json.Encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Export writes s to path, replacing any existing file.
func Export(s *arrow.Schema, path string) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}

	f, err := core.CreateAtomic(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Abort()
		return fmt.Errorf("write schema %s: %w", path, err)
	}
	return f.Commit()
}
