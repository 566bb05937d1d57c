package domain

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RuleKind selects the coercion applied to a column.
type RuleKind int

const (
	KindString RuleKind = iota
	KindInteger
	KindFloat
	KindDecimalComma
	KindDate
	KindTimestamp
)

func (k RuleKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindDecimalComma:
		return "decimal_comma"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// FieldType returns the warehouse type produced by the kind.
func (k RuleKind) FieldType() FieldType {
	switch k {
	case KindInteger:
		return TypeInteger
	case KindFloat, KindDecimalComma:
		return TypeFloat
	case KindDate:
		return TypeDate
	case KindTimestamp:
		return TypeTimestamp
	default:
		return TypeString
	}
}

// Policy decides what happens when a value cannot be coerced.
type Policy int

const (
	// OnErrorFail aborts normalization with a RowCoercionError.
	OnErrorFail Policy = iota
	// OnErrorZero substitutes the zero value of the kind.
	OnErrorZero
	// OnErrorDrop removes the row from the result.
	OnErrorDrop
	// OnErrorNull stores NULL.
	OnErrorNull
)

func (p Policy) String() string {
	switch p {
	case OnErrorFail:
		return "fail"
	case OnErrorZero:
		return "zero"
	case OnErrorDrop:
		return "drop"
	case OnErrorNull:
		return "null"
	default:
		return "unknown"
	}
}

// ColumnRule maps one source column to one typed destination column.
type ColumnRule struct {
	Source  string
	Target  string
	Kind    RuleKind
	OnError Policy
	// Nullable stores NULL for empty or missing cells instead of applying OnError.
	Nullable bool
	// Layouts are tried in order for date and timestamp kinds.
	Layouts []string
	// Pattern, when set, must match before a date or timestamp is parsed.
	Pattern *regexp.Regexp
}

// ErrEmptyValue is returned for empty cells of non-string kinds.
var ErrEmptyValue = errors.New("empty value")

// Coerce converts a raw cell according to the rule's kind. It does not apply
// the rule's failure policy.
func (r ColumnRule) Coerce(raw string) (any, error) {
	if r.Kind == KindString {
		return raw, nil
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, ErrEmptyValue
	}
	switch r.Kind {
	case KindInteger:
		return parseIdentifier(s)
	case KindFloat:
		return parseFiniteFloat(s)
	case KindDecimalComma:
		return parseFiniteFloat(strings.ReplaceAll(s, ",", "."))
	case KindDate, KindTimestamp:
		return r.parseTime(s)
	default:
		return nil, fmt.Errorf("unknown rule kind %d", r.Kind)
	}
}

// zeroValue is the substitute used by OnErrorZero.
func (r ColumnRule) zeroValue() any {
	switch r.Kind {
	case KindInteger:
		return int64(0)
	case KindFloat, KindDecimalComma:
		return float64(0)
	case KindString:
		return ""
	default:
		return nil
	}
}

func (r ColumnRule) parseTime(s string) (time.Time, error) {
	if r.Pattern != nil && !r.Pattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("%q does not match %s", s, r.Pattern)
	}
	layouts := r.Layouts
	if len(layouts) == 0 {
		layouts = []string{ISODateLayout}
	}
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// parseIdentifier accepts integers and integral-looking floats ("12.0", "1e3").
func parseIdentifier(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := parseFiniteFloat(s)
	if err != nil {
		return 0, err
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%q overflows int64", s)
	}
	return int64(f), nil
}

func parseFiniteFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return f, nil
}

// DMYDateRule is a date column in dd.mm.yyyy form whose invalid rows are dropped.
func DMYDateRule(source, target string) ColumnRule {
	return ColumnRule{
		Source:  source,
		Target:  target,
		Kind:    KindDate,
		OnError: OnErrorDrop,
		Layouts: []string{DMYLayout},
		Pattern: dmyPattern,
	}
}
