package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/warehouse-etl/internal/domain"
	"golang.org/x/sync/errgroup"
)

// fetchAll downloads every URL and returns the bodies in URL order. At most
// cfg.FetchConcurrency requests are in flight; the first failure cancels the rest.
func (s *Service) fetchAll(ctx context.Context, r *run, urls []string) ([]string, error) {
	bodies := make([]string, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.cfg.FetchConcurrency, 1))

	for i, u := range urls {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			body, err := s.fetch(ctx, r, u)
			if err != nil {
				return err
			}
			bodies[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bodies, nil
}

func (s *Service) fetch(ctx context.Context, r *run, u string) (string, error) {
	start := domain.Now()
	body, err := s.fetcher.Fetch(ctx, u)
	s.metrics.FetchDuration.WithLabelValues(r.name).Observe(domain.Now().Sub(start).Seconds())
	if err != nil {
		s.metrics.FetchRequests.WithLabelValues(r.name, "error").Inc()
		return "", err
	}
	s.metrics.FetchRequests.WithLabelValues(r.name, "success").Inc()
	return body, nil
}

// fetchFailure renders a download error as a status line.
func fetchFailure(r *run, err error) (domain.LoadResult, string) {
	r.logger.Error("fetch failed", "error", err)
	var fetchErr *domain.FetchError
	if errors.As(err, &fetchErr) {
		return domain.LoadFailed, fmt.Sprintf("Failed to download file. Status code: %d", fetchErr.StatusCode)
	}
	return domain.LoadFailed, fmt.Sprintf("Failed to download file: %v", err)
}

// ratesURLs appends each year of the window to the CNB base URL.
func ratesURLs(base string, window domain.DateRange) []string {
	years := window.Years()
	urls := make([]string, len(years))
	for i, y := range years {
		urls[i] = base + strconv.Itoa(y)
	}
	return urls
}

// weatherURL fills the {start_date}, {end_date} and {api_key} placeholders.
func weatherURL(template string, window domain.DateRange, apiKey string) string {
	return strings.NewReplacer(
		"{start_date}", window.StartISO(),
		"{end_date}", window.EndISO(),
		"{api_key}", url.QueryEscape(apiKey),
	).Replace(template)
}
