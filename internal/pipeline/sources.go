package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/warehouse-etl/internal/config"
	"github.com/couchcryptid/warehouse-etl/internal/domain"
)

// SourceRules returns the parse options and rule table applied to a fetched
// source. Only blob, rates and weather are fetched and normalized.
func SourceRules(name string, cfg *config.Config) (domain.ParseOptions, domain.Normalization, error) {
	switch name {
	case Blob:
		return domain.ParseOptions{Delimiter: ',', SkipBadLines: true}, domain.BlobNormalization(), nil
	case Rates, Weather:
		window, err := domain.NewDateRange(cfg.StartDate, cfg.EndDate)
		if err != nil {
			return domain.ParseOptions{}, domain.Normalization{}, err
		}
		if name == Rates {
			return domain.ParseOptions{Delimiter: '|', Reheader: true}, domain.RatesNormalization(cfg.Rates.Currency, window), nil
		}
		return domain.ParseOptions{Delimiter: ','}, domain.WeatherNormalization(window), nil
	default:
		return domain.ParseOptions{}, domain.Normalization{}, fmt.Errorf("%w: %q has no fetched source", ErrUnknownPipeline, name)
	}
}

func (s *Service) runBlob(ctx context.Context, r *run) (domain.LoadResult, string) {
	cfg := r.cfg
	if err := cfg.ValidateBlob(); err != nil {
		return configFailure(r, err)
	}

	body, err := s.fetch(ctx, r, cfg.Blob.SASURL)
	if err != nil {
		return fetchFailure(r, err)
	}

	opts, norm, err := SourceRules(Blob, cfg)
	if err != nil {
		return configFailure(r, err)
	}
	table, err := s.normalize(r, []string{body}, opts, norm)
	if err != nil {
		return normalizeFailure(r, err)
	}

	dest := domain.TableRef{Dataset: cfg.Dataset, Table: cfg.Blob.Table}
	budget := domain.ErrorBudget(table.Len(), *cfg.Blob.MaxErrorPercent)
	outcome, status := s.loadTable(ctx, r, table, dest, budget)
	return outcome, s.notify(ctx, r, cfg.Blob.Topic, dest, outcome, status)
}

func (s *Service) runRates(ctx context.Context, r *run) (domain.LoadResult, string) {
	cfg := r.cfg
	if err := cfg.ValidateRates(); err != nil {
		return configFailure(r, err)
	}
	window, err := domain.NewDateRange(cfg.StartDate, cfg.EndDate)
	if err != nil {
		return configFailure(r, err)
	}

	bodies, err := s.fetchAll(ctx, r, ratesURLs(cfg.Rates.BaseURL, window))
	if err != nil {
		return fetchFailure(r, err)
	}

	opts, norm, err := SourceRules(Rates, cfg)
	if err != nil {
		return configFailure(r, err)
	}
	table, err := s.normalize(r, bodies, opts, norm)
	if err != nil {
		return normalizeFailure(r, err)
	}

	dest := domain.TableRef{Dataset: cfg.Dataset, Table: cfg.Rates.Table}
	budget := domain.ErrorBudget(table.Len(), cfg.Rates.MaxErrorPercent)
	outcome, status := s.loadTable(ctx, r, table, dest, budget)
	return outcome, s.notify(ctx, r, cfg.Rates.Topic, dest, outcome, status)
}

func (s *Service) runWeather(ctx context.Context, r *run) (domain.LoadResult, string) {
	cfg := r.cfg
	if err := cfg.ValidateWeather(); err != nil {
		return configFailure(r, err)
	}
	window, err := domain.NewDateRange(cfg.StartDate, cfg.EndDate)
	if err != nil {
		return configFailure(r, err)
	}

	body, err := s.fetch(ctx, r, weatherURL(cfg.Weather.BaseURL, window, cfg.Weather.APIKey))
	if err != nil {
		return fetchFailure(r, err)
	}

	opts, norm, err := SourceRules(Weather, cfg)
	if err != nil {
		return configFailure(r, err)
	}
	table, err := s.normalize(r, []string{body}, opts, norm)
	if err != nil {
		return normalizeFailure(r, err)
	}

	dest := domain.TableRef{Dataset: cfg.Dataset, Table: cfg.Weather.Table}
	budget := domain.ErrorBudget(table.Len(), cfg.Weather.MaxErrorPercent)
	outcome, status := s.loadTable(ctx, r, table, dest, budget)
	return outcome, s.notify(ctx, r, cfg.Weather.Topic, dest, outcome, status)
}

// runTrips copies the public trips and stations tables into the landing
// dataset through GCS, then materializes the curated trips table.
func (s *Service) runTrips(ctx context.Context, r *run) (domain.LoadResult, string) {
	cfg := r.cfg
	if err := cfg.ValidateTrips(); err != nil {
		return configFailure(r, err)
	}
	window, err := domain.NewDateRange(cfg.StartDate, cfg.EndDate)
	if err != nil {
		return configFailure(r, err)
	}

	landed := make(map[string]domain.TableRef, 2)
	for _, table := range []string{cfg.Trips.SourceTripTable, cfg.Trips.SourceStationTable} {
		ref, outcome, status := s.bridgeTable(ctx, r, table)
		if !outcome.OK() {
			return outcome, status
		}
		landed[table] = ref
	}

	stmt, err := domain.TripsQuery(domain.TripsQueryInput{
		Trips:    landed[cfg.Trips.SourceTripTable],
		Stations: landed[cfg.Trips.SourceStationTable],
		Window:   window,
		BikeType: cfg.Trips.BikeType,
	})
	if err != nil {
		return configFailure(r, err)
	}

	dest := domain.TableRef{Dataset: cfg.Dataset, Table: cfg.Trips.Table}
	return s.runQuery(ctx, r, stmt, dest, fmt.Sprintf("Query results loaded to the table %s", dest))
}

// bridgeTable extracts one source table to GCS and loads it into the landing dataset.
func (s *Service) bridgeTable(ctx context.Context, r *run, table string) (domain.TableRef, domain.LoadResult, string) {
	cfg := r.cfg
	src := domain.TableRef{Project: cfg.Trips.SourceProject, Dataset: cfg.Trips.SourceDataset, Table: table}
	uri := fmt.Sprintf("gs://%s/%s/%s.csv", cfg.Trips.Bucket, cfg.Trips.SourceDataset, table)

	status, err := s.warehouse.Extract(ctx, domain.ExtractRequest{
		Source:         src,
		DestinationURI: uri,
		Delimiter:      "|",
		Gzip:           true,
		Location:       cfg.Trips.SourceLocation,
	})
	if !jobOK(status, err) {
		r.logger.Error("extract job failed", "table", src.String(), "error", jobErr(status, err))
		return domain.TableRef{}, domain.LoadFailed, fmt.Sprintf("Extract job did not complete successfully: %v", jobErr(status, err))
	}
	r.logger.Info("table extracted", "table", src.String(), "uri", uri)

	dest := domain.TableRef{Dataset: cfg.Dataset, Table: table}
	budget := int(cfg.Trips.MaxBadRecords)
	status, err = s.warehouse.Load(ctx, domain.LoadRequest{
		Destination:     domain.DestinationTableSpec{Table: dest, AutoDetect: true, Delimiter: "|"},
		SourceURI:       uri,
		SkipLeadingRows: 1,
		MaxBadRecords:   cfg.Trips.MaxBadRecords,
		Location:        cfg.Location,
	})
	outcome, msg := s.classify(r, dest, status, err, budget)
	return dest, outcome, msg
}

func (s *Service) runEnriched(ctx context.Context, r *run) (domain.LoadResult, string) {
	cfg := r.cfg
	if err := cfg.ValidateEnriched(); err != nil {
		return configFailure(r, err)
	}

	landing := func(table string) domain.TableRef {
		return domain.TableRef{Dataset: cfg.Dataset, Table: table}
	}
	stmt, err := domain.EnrichedQuery(domain.EnrichedQueryInput{
		Trips:   landing(cfg.Trips.Table),
		Weather: landing(cfg.Weather.Table),
		Bikes:   landing(cfg.Blob.Table),
		Rates:   landing(cfg.Rates.Table),
	})
	if err != nil {
		return configFailure(r, err)
	}

	dest := domain.TableRef{Dataset: cfg.Enriched.OutputDataset, Table: cfg.Enriched.Table}
	return s.runQuery(ctx, r, stmt, dest, "Table created successfully")
}

func (s *Service) runQuery(ctx context.Context, r *run, stmt domain.Statement, dest domain.TableRef, okStatus string) (domain.LoadResult, string) {
	r.logger.Info("running query", "table", dest.String(), "params", len(stmt.Params))
	status, err := s.warehouse.Query(ctx, domain.QueryRequest{
		Statement:   stmt,
		Destination: dest,
		Location:    r.cfg.Location,
	})
	if !jobOK(status, err) {
		r.logger.Error("query job failed", "table", dest.String(), "error", jobErr(status, err))
		return domain.LoadFailed, fmt.Sprintf("Error while executing the query: %v", jobErr(status, err))
	}
	return domain.LoadSucceeded, okStatus
}

func normalizeFailure(r *run, err error) (domain.LoadResult, string) {
	r.logger.Error("normalize failed", "error", err)
	return domain.LoadFailed, fmt.Sprintf("Failed to normalize data: %v", err)
}

// jobErr explains why a job is not cleanly done.
func jobErr(status domain.JobStatus, err error) error {
	switch {
	case err != nil:
		return err
	case status.Err != nil:
		return status.Err
	}
	state := status.State
	if state == "" {
		state = domain.JobPending
	}
	return fmt.Errorf("final state %s", state)
}
