package table

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WriteCSV writes the header and every row in schema order.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return err
	}
	record := make([]string, len(t.columns))
	for _, r := range t.rows {
		for i, c := range t.columns {
			record[i] = r[c.Name].String()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a table. Columns found in schema get its type and origin;
// the rest are strings attributed to defaultOrigin.
func ReadCSV(r io.Reader, schema []Column, defaultOrigin string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return New(schema...), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	declared := make(map[string]Column, len(schema))
	for _, c := range schema {
		declared[c.Name] = c
	}
	cols := make([]Column, len(header))
	for i, name := range header {
		c, ok := declared[name]
		if !ok {
			c = Column{Name: name, Type: TypeString, Origin: defaultOrigin}
		}
		cols[i] = c
	}
	t := New(cols...)

	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := make(Row, len(cols))
		for i, cell := range record {
			if i >= len(cols) {
				break
			}
			v, err := Parse(cell, cols[i].Type)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, cols[i].Name, err)
			}
			if !v.IsNull() {
				row[cols[i].Name] = v
			}
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// WriteSchema writes the column declarations as JSON.
func (t *Table) WriteSchema(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t.columns)
}

// ReadSchema reads declarations written by WriteSchema.
func ReadSchema(r io.Reader) ([]Column, error) {
	var cols []Column
	if err := json.NewDecoder(r).Decode(&cols); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return cols, nil
}

// SchemaPath returns the schema sidecar path of a CSV file.
func SchemaPath(csvPath string) string {
	return strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".schema.json"
}

// Save writes the table to path and its schema next to it, each through a
// temporary file so readers never observe a partial checkpoint.
func (t *Table) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := writeAtomic(path, t.WriteCSV); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := writeAtomic(SchemaPath(path), t.WriteSchema); err != nil {
		return fmt.Errorf("write schema of %s: %w", path, err)
	}
	return nil
}

// Load reads a table saved by Save. Without a schema sidecar every column
// is a string attributed to defaultOrigin.
func Load(path, defaultOrigin string) (*Table, error) {
	var schema []Column
	if f, err := os.Open(SchemaPath(path)); err == nil {
		schema, err = ReadSchema(f)
		f.Close()
		if err != nil {
			return nil, err
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f, schema, defaultOrigin)
}

// WriteFileAtomic writes through fn into a temporary file renamed over path.
func WriteFileAtomic(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeAtomic(path, fn)
}

func writeAtomic(path string, fn func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := fn(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
