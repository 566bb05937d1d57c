package domain

import (
	"errors"
	"fmt"
	"time"
)

// Drop reasons reported in NormalizeStats.
const (
	DropInvalid    = "invalid"
	DropOutOfRange = "out_of_range"
)

// RowCoercionError reports a value that an OnErrorFail rule could not coerce.
type RowCoercionError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *RowCoercionError) Error() string {
	return fmt.Sprintf("row %d column %s: cannot coerce %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *RowCoercionError) Unwrap() error { return e.Err }

// Normalization bundles the rule table of one source with its window filter.
type Normalization struct {
	Rules []ColumnRule
	// Window, when set, restricts rows to those whose WindowColumn falls inside it.
	Window       *DateRange
	WindowColumn string
}

// Schema returns the destination schema implied by the rules.
func (n Normalization) Schema() Schema {
	s := make(Schema, len(n.Rules))
	for i, r := range n.Rules {
		s[i] = Field{Name: r.Target, Type: r.Kind.FieldType()}
	}
	return s
}

// NormalizeStats summarizes a normalization run.
type NormalizeStats struct {
	Input     int
	Output    int
	Dropped   map[string]int
	Defaulted int
}

// DroppedTotal returns the number of rows removed for any reason.
func (s NormalizeStats) DroppedTotal() int {
	total := 0
	for _, n := range s.Dropped {
		total += n
	}
	return total
}

// Normalize applies the rule table to every record and returns the projected table.
func (n Normalization) Normalize(records []RawRecord) (Table, NormalizeStats, error) {
	schema := n.Schema()
	windowIdx := -1
	if n.Window != nil {
		windowIdx = schema.Index(n.WindowColumn)
		if windowIdx < 0 {
			return Table{}, NormalizeStats{}, fmt.Errorf("window column %q is not a destination column", n.WindowColumn)
		}
	}

	stats := NormalizeStats{Input: len(records), Dropped: map[string]int{}}
	table := Table{Schema: schema, Rows: make([]Row, 0, len(records))}

	for i, rec := range records {
		row, keep, err := n.normalizeRecord(i, rec, &stats)
		if err != nil {
			if windowIdx >= 0 && n.outsideWindow(row[windowIdx]) {
				stats.Dropped[DropOutOfRange]++
				continue
			}
			return Table{}, stats, err
		}
		if !keep {
			stats.Dropped[DropInvalid]++
			continue
		}
		if windowIdx >= 0 && !n.inWindow(row[windowIdx]) {
			stats.Dropped[DropOutOfRange]++
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	stats.Output = len(table.Rows)
	return table, stats, nil
}

// normalizeRecord coerces one record. A drop from any rule wins over a failure
// from another, so rule order does not change the outcome. On failure the
// partially coerced row is still returned.
func (n Normalization) normalizeRecord(i int, rec RawRecord, stats *NormalizeStats) (Row, bool, error) {
	row := make(Row, len(n.Rules))
	var failure error
	defaulted := 0
	for j, rule := range n.Rules {
		raw, _ := rec.Field(rule.Source)
		v, err := rule.Coerce(raw)
		if err == nil {
			row[j] = v
			continue
		}
		if rule.Nullable && errors.Is(err, ErrEmptyValue) {
			row[j] = nil
			continue
		}
		switch rule.OnError {
		case OnErrorZero:
			row[j] = rule.zeroValue()
			defaulted++
		case OnErrorNull:
			row[j] = nil
		case OnErrorDrop:
			return nil, false, nil
		default:
			if failure == nil {
				failure = &RowCoercionError{Row: i, Column: rule.Source, Value: raw, Err: err}
			}
		}
	}
	if failure != nil {
		return row, false, failure
	}
	stats.Defaulted += defaulted
	return row, true, nil
}

// outsideWindow reports whether v is a parsed date outside the window.
func (n Normalization) outsideWindow(v any) bool {
	t, ok := v.(time.Time)
	return ok && !n.Window.Contains(t)
}

func (n Normalization) inWindow(v any) bool {
	t, ok := v.(time.Time)
	if !ok {
		return false
	}
	return n.Window.Contains(t)
}
