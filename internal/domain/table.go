package domain

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// FieldType is a warehouse column type.
type FieldType string

const (
	TypeString    FieldType = "STRING"
	TypeInteger   FieldType = "INTEGER"
	TypeFloat     FieldType = "FLOAT"
	TypeDate      FieldType = "DATE"
	TypeTimestamp FieldType = "TIMESTAMP"
)

// timestampLayout is the CSV encoding BigQuery accepts for TIMESTAMP columns.
const timestampLayout = "2006-01-02 15:04:05"

// Field is a named, typed destination column.
type Field struct {
	Name string
	Type FieldType
}

// Schema is an ordered list of destination columns.
type Schema []Field

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Index returns the position of the named column or -1.
func (s Schema) Index(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Row holds typed values aligned with a Schema. A nil value is NULL.
type Row []any

// Table is a normalized, schema-conformant row set.
type Table struct {
	Schema Schema
	Rows   []Row
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// WriteCSV encodes the table as comma-separated text with a header row.
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Schema.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(t.Schema))
	for i, row := range t.Rows {
		if len(row) != len(t.Schema) {
			return fmt.Errorf("row %d has %d values, schema has %d", i, len(row), len(t.Schema))
		}
		for j, v := range row {
			s, err := formatValue(t.Schema[j].Type, v)
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", i, t.Schema[j].Name, err)
			}
			record[j] = s
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(ft FieldType, v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case time.Time:
		if ft == TypeDate {
			return val.Format(ISODateLayout), nil
		}
		return val.UTC().Format(timestampLayout), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
