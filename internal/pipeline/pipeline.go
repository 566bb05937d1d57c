package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/couchcryptid/warehouse-etl/internal/config"
	"github.com/couchcryptid/warehouse-etl/internal/domain"
	"github.com/couchcryptid/warehouse-etl/internal/observability"
	"github.com/google/uuid"
)

// Fetcher downloads a source payload as text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Warehouse runs load, extract and query jobs and reports their final status.
type Warehouse interface {
	Load(ctx context.Context, req domain.LoadRequest) (domain.JobStatus, error)
	Extract(ctx context.Context, req domain.ExtractRequest) (domain.JobStatus, error)
	Query(ctx context.Context, req domain.QueryRequest) (domain.JobStatus, error)
}

// Notifier publishes a completion message to a topic.
type Notifier interface {
	Publish(ctx context.Context, topic string, payload []byte, attrs map[string]string) error
}

// Pipeline names accepted by Invoke.
const (
	Blob     = "blob"
	Rates    = "rates"
	Weather  = "weather"
	Trips    = "trips"
	Enriched = "enriched"
)

var (
	ErrUnknownPipeline = errors.New("unknown pipeline")
	ErrAlreadyRunning  = errors.New("pipeline is already running in this process")
)

// Result is the outcome of one invocation.
type Result struct {
	Pipeline string
	RunID    string
	Outcome  domain.LoadResult
	Status   string
}

// runFunc executes one pipeline and returns its outcome and status line.
type runFunc func(s *Service, ctx context.Context, r *run) (domain.LoadResult, string)

var runners = map[string]runFunc{
	Blob:     (*Service).runBlob,
	Rates:    (*Service).runRates,
	Weather:  (*Service).runWeather,
	Trips:    (*Service).runTrips,
	Enriched: (*Service).runEnriched,
}

// Names returns the pipeline names in sorted order.
func Names() []string {
	names := make([]string, 0, len(runners))
	for n := range runners {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// run carries per-invocation state.
type run struct {
	name   string
	id     string
	cfg    *config.Config
	logger *slog.Logger
}

// Service runs pipelines on demand. Configuration is reloaded at the start of
// every invocation.
type Service struct {
	loadConfig func() (*config.Config, error)
	fetcher    Fetcher
	warehouse  Warehouse
	notifier   Notifier
	logger     *slog.Logger
	metrics    *observability.Metrics

	running  map[string]*atomic.Bool
	draining atomic.Bool
}

// NewService creates a Service. notifier may be nil, in which case no
// notifications are sent.
func NewService(loadConfig func() (*config.Config, error), f Fetcher, w Warehouse, n Notifier, logger *slog.Logger, metrics *observability.Metrics) *Service {
	running := make(map[string]*atomic.Bool, len(runners))
	for name := range runners {
		running[name] = &atomic.Bool{}
	}
	return &Service{
		loadConfig: loadConfig,
		fetcher:    f,
		warehouse:  w,
		notifier:   n,
		logger:     logger,
		metrics:    metrics,
		running:    running,
	}
}

// CheckReadiness returns an error once Drain has been called.
func (s *Service) CheckReadiness(_ context.Context) error {
	if s.draining.Load() {
		return errors.New("service is shutting down")
	}
	return nil
}

// Drain marks the service as not ready so load balancers stop routing triggers.
func (s *Service) Drain() {
	s.draining.Store(true)
}

// Invoke runs the named pipeline to completion. Pipeline failures are reported
// in the Result; the error is reserved for unknown names and concurrent runs.
// A second invocation of a pipeline that is already running in this process is
// refused; cross-process exclusivity is the caller's responsibility.
func (s *Service) Invoke(ctx context.Context, name string) (res Result, err error) {
	fn, ok := runners[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownPipeline, name)
	}
	guard := s.running[name]
	if !guard.CompareAndSwap(false, true) {
		return Result{}, fmt.Errorf("%s: %w", name, ErrAlreadyRunning)
	}
	defer guard.Store(false)

	r := &run{name: name, id: uuid.NewString()}
	r.logger = s.logger.With("pipeline", name, "run_id", r.id)
	res = Result{Pipeline: name, RunID: r.id}

	start := domain.Now()
	s.metrics.PipelinesRunning.Inc()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("pipeline panicked", "panic", p)
			res.Outcome = domain.LoadFailed
			res.Status = fmt.Sprintf("Internal error: %v", p)
		}
		s.metrics.PipelinesRunning.Dec()
		s.metrics.Invocations.WithLabelValues(name, res.Outcome.String()).Inc()
		s.metrics.InvocationDuration.WithLabelValues(name).Observe(domain.Now().Sub(start).Seconds())
	}()

	r.logger.Info("pipeline started")
	cfg, err := s.loadConfig()
	if err != nil {
		r.logger.Error("load config failed", "error", err)
		res.Outcome, res.Status = domain.LoadFailed, fmt.Sprintf("Configuration error: %v", err)
		return res, nil
	}
	r.cfg = cfg

	res.Outcome, res.Status = fn(s, ctx, r)

	level := slog.LevelInfo
	if !res.Outcome.OK() {
		level = slog.LevelError
	}
	r.logger.Log(ctx, level, "pipeline finished",
		"outcome", res.Outcome.String(),
		"status", res.Status,
		"duration", domain.Now().Sub(start),
	)
	return res, nil
}

func configFailure(r *run, err error) (domain.LoadResult, string) {
	r.logger.Error("invalid configuration", "error", err)
	return domain.LoadFailed, fmt.Sprintf("Configuration error: %v", err)
}
