package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// header is one header section of a delimited payload. Records read under the
// same header share it.
type header struct {
	names []string
	index map[string]int
}

func newHeader(names []string) *header {
	h := &header{names: names, index: make(map[string]int, len(names))}
	for i, n := range names {
		if _, dup := h.index[n]; !dup {
			h.index[n] = i
		}
	}
	return h
}

// RawRecord is one untyped delimited row.
type RawRecord struct {
	header *header
	Values []string
}

// Field returns the value for the named column and whether the row carries it.
func (r RawRecord) Field(name string) (string, bool) {
	if r.header == nil {
		return "", false
	}
	i, ok := r.header.index[name]
	if !ok || i >= len(r.Values) {
		return "", false
	}
	return r.Values[i], true
}

// Columns returns the header the record was read under.
func (r RawRecord) Columns() []string {
	if r.header == nil {
		return nil
	}
	return r.header.names
}

// RawBatch is the parsed result of one fetch.
type RawBatch struct {
	Source  string
	Records []RawRecord
	Skipped int
}

// ParseOptions controls delimited-text parsing.
type ParseOptions struct {
	Delimiter rune
	// SkipBadLines drops rows with more fields than the header instead of failing.
	SkipBadLines bool
	// Reheader treats a row whose first field equals the first header column as a
	// new header for the rows that follow.
	Reheader bool
}

// ParseDelimited reads a header line followed by data rows.
func ParseDelimited(source, text string, opts ParseOptions) (RawBatch, error) {
	r := csv.NewReader(strings.NewReader(text))
	if opts.Delimiter != 0 {
		r.Comma = opts.Delimiter
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	first, err := r.Read()
	if errors.Is(err, io.EOF) {
		return RawBatch{}, fmt.Errorf("parse %s: empty payload", source)
	}
	if err != nil {
		return RawBatch{}, fmt.Errorf("parse %s header: %w", source, err)
	}
	first[0] = strings.TrimPrefix(first[0], "\ufeff")
	h := newHeader(first)

	batch := RawBatch{Source: source}
	for {
		values, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if opts.SkipBadLines {
				batch.Skipped++
				continue
			}
			return RawBatch{}, fmt.Errorf("parse %s: %w", source, err)
		}
		if opts.Reheader && len(values) > 0 && values[0] == h.names[0] {
			h = newHeader(values)
			continue
		}
		if len(values) > len(h.names) {
			if opts.SkipBadLines {
				batch.Skipped++
				continue
			}
			line, _ := r.FieldPos(0)
			return RawBatch{}, fmt.Errorf("parse %s line %d: expected %d fields, saw %d", source, line, len(h.names), len(values))
		}
		batch.Records = append(batch.Records, RawRecord{header: h, Values: values})
	}
	return batch, nil
}

// MergeBatches concatenates batch records in the given order.
func MergeBatches(batches ...RawBatch) []RawRecord {
	n := 0
	for _, b := range batches {
		n += len(b.Records)
	}
	out := make([]RawRecord, 0, n)
	for _, b := range batches {
		out = append(out, b.Records...)
	}
	return out
}
