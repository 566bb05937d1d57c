package pipeline

import (
	"bytes"
	"context"
	"fmt"

	"github.com/couchcryptid/warehouse-etl/internal/domain"
)

// normalize parses the fetched bodies and applies the rule table.
func (s *Service) normalize(r *run, bodies []string, opts domain.ParseOptions, n domain.Normalization) (domain.Table, error) {
	batches := make([]domain.RawBatch, 0, len(bodies))
	skipped := 0
	for _, body := range bodies {
		b, err := domain.ParseDelimited(r.name, body, opts)
		if err != nil {
			return domain.Table{}, err
		}
		skipped += b.Skipped
		batches = append(batches, b)
	}

	table, stats, err := n.Normalize(domain.MergeBatches(batches...))
	if err != nil {
		return domain.Table{}, err
	}

	s.metrics.RowsNormalized.WithLabelValues(r.name).Add(float64(stats.Output))
	for reason, count := range stats.Dropped {
		s.metrics.RowsDropped.WithLabelValues(r.name, reason).Add(float64(count))
	}
	r.logger.Info("rows normalized",
		"input", stats.Input,
		"output", stats.Output,
		"dropped", stats.DroppedTotal(),
		"defaulted", stats.Defaulted,
		"skipped_lines", skipped,
	)
	return table, nil
}

// loadTable encodes the table as CSV and truncate-loads it into dest.
func (s *Service) loadTable(ctx context.Context, r *run, table domain.Table, dest domain.TableRef, budget int) (domain.LoadResult, string) {
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		r.logger.Error("encode rows failed", "error", err)
		return domain.LoadFailed, fmt.Sprintf("Failed to encode rows: %v", err)
	}

	r.logger.Info("loading rows", "table", dest.String(), "rows", table.Len(), "error_budget", budget)
	status, err := s.warehouse.Load(ctx, domain.LoadRequest{
		Destination:     domain.DestinationTableSpec{Table: dest, Schema: table.Schema},
		Data:            &buf,
		SkipLeadingRows: 1,
		MaxBadRecords:   int64(budget),
		Location:        r.cfg.Location,
	})
	return s.classify(r, dest, status, err, budget)
}

// classify turns a finished load job into an outcome and status line.
func (s *Service) classify(r *run, dest domain.TableRef, status domain.JobStatus, err error, budget int) (domain.LoadResult, string) {
	if err != nil && status.State == "" {
		r.logger.Error("load job failed", "table", dest.String(), "error", err)
		return domain.LoadFailed, fmt.Sprintf("Load job failed: %v", err)
	}

	rejected := status.Rejected()
	if rejected > 0 {
		s.metrics.RejectedRecords.WithLabelValues(r.name).Add(float64(rejected))
		r.logger.Warn("load rejected records", "table", dest.String(), "rejected", rejected, "error_budget", budget, "first_error", status.Errors[0])
	}

	result := domain.ClassifyLoad(status, budget)
	switch result {
	case domain.LoadSucceeded:
		return result, fmt.Sprintf("Data loaded into BigQuery table %s", dest)
	case domain.LoadSucceededWithErrors:
		return result, "Load job completed with errors"
	}

	msg := fmt.Sprintf("Load job did not complete successfully. Final state: %s", status.State)
	switch {
	case status.Err != nil:
		msg += fmt.Sprintf(" (%v)", status.Err)
	case rejected > budget:
		msg += fmt.Sprintf(" (%d rejected records exceed the error budget of %d)", rejected, budget)
	}
	r.logger.Error("load job failed", "table", dest.String(), "state", string(status.State), "rejected", rejected)
	return result, msg
}

// notify publishes the completion message when topic is set. A failed publish
// is appended to status without changing the outcome.
func (s *Service) notify(ctx context.Context, r *run, topic string, dest domain.TableRef, outcome domain.LoadResult, status string) string {
	if topic == "" || !outcome.OK() {
		return status
	}
	if s.notifier == nil {
		r.logger.Warn("topic configured but no notifier is available", "topic", topic)
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.NotifyTimeout)
	defer cancel()

	attrs := map[string]string{
		"pipeline": r.name,
		"run_id":   r.id,
		"table":    dest.String(),
		"outcome":  outcome.String(),
	}
	if err := s.notifier.Publish(ctx, topic, domain.CompletionMessage, attrs); err != nil {
		s.metrics.Notifications.WithLabelValues(r.name, "error").Inc()
		r.logger.Error("notification failed", "topic", topic, "error", err)
		return fmt.Sprintf("%s; notification failed: %v", status, err)
	}
	s.metrics.Notifications.WithLabelValues(r.name, "sent").Inc()
	r.logger.Info("notification sent", "topic", topic)
	return status
}

// jobOK reports whether a non-load job finished cleanly.
func jobOK(status domain.JobStatus, err error) bool {
	return err == nil && status.State == domain.JobDone && status.Err == nil
}
