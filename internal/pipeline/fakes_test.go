package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/couchcryptid/warehouse-etl/internal/config"
	"github.com/couchcryptid/warehouse-etl/internal/domain"
	"github.com/couchcryptid/warehouse-etl/internal/observability"
	"github.com/couchcryptid/warehouse-etl/internal/pipeline"
)

// --- fakes ---

type fakeFetcher struct {
	mu       sync.Mutex
	bodies   map[string]string
	errs     map[string]error
	requests []string

	// started receives once per request when set; block holds requests until closed.
	started  chan struct{}
	block    chan struct{}
	panicMsg string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, url)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	body, ok := f.bodies[url]
	if !ok {
		return "", &domain.FetchError{URL: url, StatusCode: 404}
	}
	return body, nil
}

func (f *fakeFetcher) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

type loadCall struct {
	req  domain.LoadRequest
	data []byte
}

type fakeWarehouse struct {
	mu       sync.Mutex
	loads    []loadCall
	extracts []domain.ExtractRequest
	queries  []domain.QueryRequest

	loadStatus  *domain.JobStatus
	loadErr     error
	queryStatus *domain.JobStatus
	queryErr    error
}

func (w *fakeWarehouse) Load(_ context.Context, req domain.LoadRequest) (domain.JobStatus, error) {
	var data []byte
	if req.Data != nil {
		data, _ = io.ReadAll(req.Data)
	}
	w.mu.Lock()
	w.loads = append(w.loads, loadCall{req: req, data: data})
	w.mu.Unlock()

	if w.loadStatus != nil {
		return *w.loadStatus, w.loadErr
	}
	return domain.JobStatus{State: domain.JobDone}, w.loadErr
}

func (w *fakeWarehouse) Extract(_ context.Context, req domain.ExtractRequest) (domain.JobStatus, error) {
	w.mu.Lock()
	w.extracts = append(w.extracts, req)
	w.mu.Unlock()
	return domain.JobStatus{State: domain.JobDone}, nil
}

func (w *fakeWarehouse) Query(_ context.Context, req domain.QueryRequest) (domain.JobStatus, error) {
	w.mu.Lock()
	w.queries = append(w.queries, req)
	w.mu.Unlock()
	if w.queryStatus != nil {
		return *w.queryStatus, w.queryErr
	}
	return domain.JobStatus{State: domain.JobDone}, w.queryErr
}

type publishCall struct {
	topic   string
	payload []byte
	attrs   map[string]string
}

type fakeNotifier struct {
	mu        sync.Mutex
	published []publishCall
	err       error
}

func (n *fakeNotifier) Publish(_ context.Context, topic string, payload []byte, attrs map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.published = append(n.published, publishCall{topic: topic, payload: payload, attrs: attrs})
	return nil
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rejected(n int) *domain.JobStatus {
	s := &domain.JobStatus{State: domain.JobDone}
	for i := 0; i < n; i++ {
		s.Errors = append(s.Errors, "invalid row")
	}
	return s
}

func testConfig() *config.Config {
	percent := 0.0
	return &config.Config{
		ProjectID:        "bikes-prod",
		Location:         "europe-west3",
		Dataset:          "landing",
		StartDate:        "01.01.2022",
		EndDate:          "31.12.2023",
		FetchConcurrency: 1,
		NotifyTimeout:    defaultNotifyTimeout,
		Blob: config.BlobConfig{
			SASURL:          "https://acct.blob.test/bikes.csv?sig=secret",
			Table:           "bikes_data",
			MaxErrorPercent: &percent,
			Topic:           "bikes-loaded",
		},
		Rates: config.RatesConfig{
			BaseURL:  "https://cnb.test/rok=",
			Currency: "EUR",
			Table:    "devizova_data",
		},
		Weather: config.WeatherConfig{
			BaseURL: "https://weather.test/{start_date}/{end_date}?key={api_key}",
			APIKey:  "k&y",
			Table:   "weather_data",
			Topic:   "weather-loaded",
		},
		Trips: config.TripsConfig{
			SourceProject:      "bigquery-public-data",
			SourceDataset:      "austin_bikeshare",
			SourceTripTable:    "bikeshare_trips",
			SourceStationTable: "bikeshare_stations",
			SourceLocation:     "US",
			Bucket:             "staging",
			Table:              "bike_trips",
			MaxBadRecords:      1000,
			BikeType:           "electric",
		},
		Enriched: config.EnrichedConfig{
			OutputDataset: "output",
			Table:         "enriched_trips",
		},
	}
}

type harness struct {
	svc       *pipeline.Service
	fetcher   *fakeFetcher
	warehouse *fakeWarehouse
	notifier  *fakeNotifier
	metrics   *observability.Metrics
}

func newHarness(cfg *config.Config) *harness {
	h := &harness{
		fetcher:   &fakeFetcher{bodies: map[string]string{}, errs: map[string]error{}},
		warehouse: &fakeWarehouse{},
		notifier:  &fakeNotifier{},
		metrics:   observability.NewMetricsForTesting(),
	}
	load := func() (*config.Config, error) { return cfg, nil }
	h.svc = pipeline.NewService(load, h.fetcher, h.warehouse, h.notifier, discardLogger(), h.metrics)
	return h
}
