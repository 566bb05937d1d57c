package bigquery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/couchcryptid/warehouse-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Warehouse runs load, extract and query jobs against BigQuery.
// It implements pipeline.Warehouse.
type Warehouse struct {
	client     *bigquery.Client
	clock      clockwork.Clock
	jobTimeout time.Duration
	logger     *slog.Logger
}

// NewWarehouse creates a BigQuery client for projectID. Every job is waited on
// for at most jobTimeout.
func NewWarehouse(ctx context.Context, projectID string, jobTimeout time.Duration, logger *slog.Logger) (*Warehouse, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	return &Warehouse{
		client:     client,
		clock:      clockwork.NewRealClock(),
		jobTimeout: jobTimeout,
		logger:     logger,
	}, nil
}

// Close releases the underlying client.
func (w *Warehouse) Close() error {
	return w.client.Close()
}

// Load truncates the destination table and replaces it with the request's
// payload or storage URI.
func (w *Warehouse) Load(ctx context.Context, req domain.LoadRequest) (domain.JobStatus, error) {
	if err := req.Destination.Validate(); err != nil {
		return domain.JobStatus{}, err
	}

	var loader *bigquery.Loader
	dst := w.table(req.Destination.Table)
	switch {
	case req.Data != nil:
		src := bigquery.NewReaderSource(req.Data)
		applyFileConfig(&src.FileConfig, req)
		loader = dst.LoaderFrom(src)
	case req.SourceURI != "":
		src := bigquery.NewGCSReference(req.SourceURI)
		applyFileConfig(&src.FileConfig, req)
		loader = dst.LoaderFrom(src)
	default:
		return domain.JobStatus{}, errors.New("load request has neither data nor a source uri")
	}
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.Location = req.Location

	job, err := loader.Run(ctx)
	if err != nil {
		return domain.JobStatus{}, fmt.Errorf("start load into %s: %w", req.Destination.Table, err)
	}
	w.logger.Info("load job submitted", "job_id", job.ID(), "table", req.Destination.Table.String())
	return w.wait(ctx, job)
}

// Extract exports a table to a storage URI as delimited text.
func (w *Warehouse) Extract(ctx context.Context, req domain.ExtractRequest) (domain.JobStatus, error) {
	if err := req.Source.Validate(); err != nil {
		return domain.JobStatus{}, err
	}

	extractor := w.table(req.Source).ExtractorTo(extractReference(req))
	extractor.Location = req.Location

	job, err := extractor.Run(ctx)
	if err != nil {
		return domain.JobStatus{}, fmt.Errorf("start extract of %s: %w", req.Source, err)
	}
	w.logger.Info("extract job submitted", "job_id", job.ID(), "table", req.Source.String(), "uri", req.DestinationURI)
	return w.wait(ctx, job)
}

// Query runs a parameterized statement whose result replaces the destination table.
func (w *Warehouse) Query(ctx context.Context, req domain.QueryRequest) (domain.JobStatus, error) {
	if err := req.Destination.Validate(); err != nil {
		return domain.JobStatus{}, err
	}
	params, err := queryParams(req.Statement.Params)
	if err != nil {
		return domain.JobStatus{}, err
	}

	q := w.client.Query(req.Statement.SQL)
	q.Parameters = params
	q.Dst = w.table(req.Destination)
	q.WriteDisposition = bigquery.WriteTruncate
	q.CreateDisposition = bigquery.CreateIfNeeded
	q.Location = req.Location

	job, err := q.Run(ctx)
	if err != nil {
		return domain.JobStatus{}, fmt.Errorf("start query into %s: %w", req.Destination, err)
	}
	w.logger.Info("query job submitted", "job_id", job.ID(), "table", req.Destination.String())
	return w.wait(ctx, job)
}

func (w *Warehouse) table(ref domain.TableRef) *bigquery.Table {
	if ref.Project == "" {
		return w.client.Dataset(ref.Dataset).Table(ref.Table)
	}
	return w.client.DatasetInProject(ref.Project, ref.Dataset).Table(ref.Table)
}

// wait blocks until the job is terminal or the job timeout elapses. On timeout
// the job keeps running server-side; the returned status reports it as RUNNING.
func (w *Warehouse) wait(ctx context.Context, job *bigquery.Job) (domain.JobStatus, error) {
	status, err := waitFor(ctx, w.clock, w.jobTimeout, job.Wait)
	if errors.Is(err, domain.ErrJobTimeout) {
		w.logger.Warn("job wait timed out", "job_id", job.ID(), "timeout", w.jobTimeout)
		return domain.JobStatus{State: domain.JobRunning, Err: err}, err
	}
	if status == nil {
		return domain.JobStatus{}, fmt.Errorf("wait for job %s: %w", job.ID(), err)
	}
	// Wait reports a failed job both as err and in status; status carries the detail.
	return statusFromJob(status), nil
}

// waitFor runs fn and returns its result, or domain.ErrJobTimeout once timeout
// has passed on clk. fn's context is cancelled on return.
func waitFor[T any](ctx context.Context, clk clockwork.Clock, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v: v, err: err}
	}()

	timer := clk.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.v, r.err
	case <-timer.Chan():
		var zero T
		return zero, domain.ErrJobTimeout
	}
}

func statusFromJob(s *bigquery.JobStatus) domain.JobStatus {
	out := domain.JobStatus{State: jobState(s.State), Err: s.Err()}
	for _, e := range s.Errors {
		if e == nil {
			continue
		}
		out.Errors = append(out.Errors, e.Error())
	}
	return out
}

func jobState(s bigquery.State) domain.JobState {
	switch s {
	case bigquery.Done:
		return domain.JobDone
	case bigquery.Running:
		return domain.JobRunning
	default:
		return domain.JobPending
	}
}

func applyFileConfig(fc *bigquery.FileConfig, req domain.LoadRequest) {
	fc.SourceFormat = bigquery.CSV
	fc.SkipLeadingRows = req.SkipLeadingRows
	fc.MaxBadRecords = req.MaxBadRecords
	fc.AllowQuotedNewlines = true
	if req.Destination.Delimiter != "" {
		fc.FieldDelimiter = req.Destination.Delimiter
	}
	if req.Destination.AutoDetect {
		fc.AutoDetect = true
		return
	}
	fc.Schema = toSchema(req.Destination.Schema)
}

func extractReference(req domain.ExtractRequest) *bigquery.GCSReference {
	ref := bigquery.NewGCSReference(req.DestinationURI)
	ref.DestinationFormat = bigquery.CSV
	if req.Delimiter != "" {
		ref.FieldDelimiter = req.Delimiter
	}
	if req.Gzip {
		ref.Compression = bigquery.Gzip
	}
	return ref
}

func toSchema(s domain.Schema) bigquery.Schema {
	out := make(bigquery.Schema, len(s))
	for i, f := range s {
		out[i] = &bigquery.FieldSchema{Name: f.Name, Type: fieldType(f.Type)}
	}
	return out
}

func fieldType(t domain.FieldType) bigquery.FieldType {
	switch t {
	case domain.TypeInteger:
		return bigquery.IntegerFieldType
	case domain.TypeFloat:
		return bigquery.FloatFieldType
	case domain.TypeDate:
		return bigquery.DateFieldType
	case domain.TypeTimestamp:
		return bigquery.TimestampFieldType
	default:
		return bigquery.StringFieldType
	}
}

func queryParams(params []domain.QueryParam) ([]bigquery.QueryParameter, error) {
	out := make([]bigquery.QueryParameter, len(params))
	for i, p := range params {
		v := p.Value
		if p.Type == domain.TypeDate {
			t, ok := p.Value.(time.Time)
			if !ok {
				return nil, fmt.Errorf("query param %s: DATE needs a time.Time, got %T", p.Name, p.Value)
			}
			v = civil.DateOf(t)
		}
		out[i] = bigquery.QueryParameter{Name: p.Name, Value: v}
	}
	return out, nil
}
