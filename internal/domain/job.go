package domain

import (
	"errors"
	"fmt"
	"io"
	"regexp"
)

// identifierRe limits project, dataset and table identifiers to characters that
// are safe inside a backquoted BigQuery path.
var identifierRe = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_\-]*$`)

const maxIdentifierLen = 1024

func validIdentifier(s string) bool {
	return len(s) <= maxIdentifierLen && identifierRe.MatchString(s)
}

// TableRef identifies a warehouse table. An empty Project means the client's project.
type TableRef struct {
	Project string
	Dataset string
	Table   string
}

// Validate rejects identifiers that cannot be safely quoted.
func (t TableRef) Validate() error {
	if t.Project != "" && !validIdentifier(t.Project) {
		return fmt.Errorf("invalid project id %q", t.Project)
	}
	if !validIdentifier(t.Dataset) {
		return fmt.Errorf("invalid dataset id %q", t.Dataset)
	}
	if !validIdentifier(t.Table) {
		return fmt.Errorf("invalid table id %q", t.Table)
	}
	return nil
}

// String returns dataset.table, the form used in status messages.
func (t TableRef) String() string {
	return t.Dataset + "." + t.Table
}

// DestinationTableSpec describes where and how a load lands. Every load
// truncates and replaces the destination; there is no append mode.
type DestinationTableSpec struct {
	Table      TableRef
	Schema     Schema
	AutoDetect bool
	Delimiter  string
}

// Validate checks that exactly one schema mode is configured.
func (d DestinationTableSpec) Validate() error {
	if err := d.Table.Validate(); err != nil {
		return err
	}
	if d.AutoDetect && len(d.Schema) > 0 {
		return errors.New("schema and autodetect are mutually exclusive")
	}
	if !d.AutoDetect && len(d.Schema) == 0 {
		return errors.New("an explicit schema is required when autodetect is off")
	}
	return nil
}

// LoadRequest is a bulk load of either an in-memory payload or a storage URI.
type LoadRequest struct {
	Destination     DestinationTableSpec
	Data            io.Reader
	SourceURI       string
	SkipLeadingRows int64
	MaxBadRecords   int64
	Location        string
}

// ExtractRequest copies a table to a storage URI as compressed delimited text.
type ExtractRequest struct {
	Source         TableRef
	DestinationURI string
	Delimiter      string
	Gzip           bool
	Location       string
}

// QueryRequest runs a statement whose result replaces Destination.
type QueryRequest struct {
	Statement   Statement
	Destination TableRef
	Location    string
}

// JobState is the lifecycle state reported by the warehouse job runner.
type JobState string

const (
	JobPending JobState = "PENDING"
	JobRunning JobState = "RUNNING"
	JobDone    JobState = "DONE"
)

// JobStatus is the last observed state of a warehouse job.
type JobStatus struct {
	State JobState
	// Errors are record-level rejections reported by a DONE job.
	Errors []string
	// Err is the fatal job error, if any.
	Err error
}

// Rejected returns the number of rejected records.
func (s JobStatus) Rejected() int { return len(s.Errors) }

// LoadResult classifies a finished load from the caller's perspective.
type LoadResult int

const (
	LoadFailed LoadResult = iota
	LoadSucceeded
	LoadSucceededWithErrors
)

func (r LoadResult) String() string {
	switch r {
	case LoadSucceeded:
		return "success"
	case LoadSucceededWithErrors:
		return "success_with_errors"
	default:
		return "failure"
	}
}

// OK reports whether the result counts as a successful load.
func (r LoadResult) OK() bool {
	return r == LoadSucceeded || r == LoadSucceededWithErrors
}

// ClassifyLoad maps a job status and error budget onto a LoadResult.
func ClassifyLoad(status JobStatus, budget int) LoadResult {
	if status.State != JobDone || status.Err != nil {
		return LoadFailed
	}
	rejected := status.Rejected()
	switch {
	case rejected > budget:
		return LoadFailed
	case rejected > 0:
		return LoadSucceededWithErrors
	default:
		return LoadSucceeded
	}
}

// ErrJobTimeout is returned when a warehouse job does not finish within its wait bound.
var ErrJobTimeout = errors.New("warehouse job did not reach a terminal state before the timeout")

// FetchError is a non-200 response from an upstream source.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}
