package table

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Schema declares the expected kind per column for CSV reads.
// Columns not listed in the schema have their kind inferred.
type Schema map[string]Kind

// ReadCSV reads a CSV document with a header row into a table.
// Empty cells in numeric columns become NaN (float) and force an otherwise
// integral column to float.
func ReadCSV(r io.Reader, schema Schema) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV input has no header row")
	}
	header := records[0]
	rows := records[1:]

	t := &Table{index: make(map[string]int)}
	for j, name := range header {
		cells := make([]string, len(rows))
		for i, row := range rows {
			if j >= len(row) {
				return nil, fmt.Errorf("row %d has %d cells, header has %d", i+2, len(row), len(header))
			}
			cells[i] = row[j]
		}
		kind, declared := schema[name]
		if !declared {
			kind = inferKind(cells)
		}
		col, err := parseColumn(name, kind, cells)
		if err != nil {
			return nil, err
		}
		if err := t.AddColumn(col); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// WriteCSV writes the table as a CSV document with a header row.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return err
	}
	row := make([]string, t.NumCols())
	for i := 0; i < t.NumRows(); i++ {
		for j, c := range t.cols {
			row[j] = c.FormatValue(i)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadFile reads a CSV file into a table. Files ending in ".gz" are
// transparently gunzipped.
func ReadFile(path string, schema Schema) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readNamed(f, path, schema)
}

// ReadBytesNamed parses CSV content. name is only used to detect gzip
// compression (".gz" suffix) and for error messages.
func ReadBytesNamed(bs []byte, name string, schema Schema) (*Table, error) {
	return readNamed(strings.NewReader(string(bs)), name, schema)
}

func readNamed(r io.Reader, name string, schema Schema) (*Table, error) {
	if strings.HasSuffix(strings.ToLower(name), ".gz") {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to gunzip %q: %w", name, err)
		}
		defer zr.Close()
		r = zr
	}
	t, err := ReadCSV(r, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", name, err)
	}
	return t, nil
}

// WriteFile writes the table as a CSV file. Files ending in ".gz" are
// gzip-compressed.
func WriteFile(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var w io.Writer = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		zw := gzip.NewWriter(f)
		defer zw.Close()
		w = zw
	}
	return WriteCSV(w, t)
}

// inferKind picks the most specific kind that can represent all cells.
// Preference order: int, float, bool, string.
func inferKind(cells []string) Kind {
	isInt, isFloat, isBool := true, true, true
	for _, s := range cells {
		s = strings.TrimSpace(s)
		if s == "" {
			// Empty cells rule out int and bool, but not float (NaN).
			isInt, isBool = false, false
			continue
		}
		if isInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			switch strings.ToLower(s) {
			case "true", "false":
			default:
				isBool = false
			}
		}
	}
	switch {
	case isInt:
		return Int
	case isFloat:
		return Float
	case isBool:
		return Bool
	}
	return String
}

func parseColumn(name string, kind Kind, cells []string) (*Column, error) {
	switch kind {
	case String:
		return NewStringColumn(name, cells), nil
	case Int:
		vals := make([]int64, len(cells))
		for i, s := range cells {
			v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: invalid int %q", name, i+1, s)
			}
			vals[i] = v
		}
		return NewIntColumn(name, vals), nil
	case Float:
		vals := make([]float64, len(cells))
		for i, s := range cells {
			s = strings.TrimSpace(s)
			if s == "" {
				vals[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: invalid float %q", name, i+1, s)
			}
			vals[i] = v
		}
		return NewFloatColumn(name, vals), nil
	case Bool:
		vals := make([]bool, len(cells))
		for i, s := range cells {
			v, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(s)))
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: invalid bool %q", name, i+1, s)
			}
			vals[i] = v
		}
		return NewBoolColumn(name, vals), nil
	}
	return nil, fmt.Errorf("unsupported kind %v for column %q", kind, name)
}
