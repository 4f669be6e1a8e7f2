package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "catalog_pages_fetched_total",
	Help: "Total number of result pages fetched while following next links",
})

var (
	// ErrCycle is returned when a next link points at a page already visited.
	ErrCycle = errors.New("pagination cycle detected")

	// ErrMaxPages is returned when a walk needs more pages than allowed.
	ErrMaxPages = errors.New("pagination page limit exceeded")
)

// DefaultMaxPages caps a single walk.
const DefaultMaxPages = 10000

// Config holds walker configuration.
type Config struct {
	// MaxPages is the most pages a walk may fetch.
	MaxPages int
}

// DefaultConfig returns the default walker configuration.
func DefaultConfig() Config {
	return Config{MaxPages: DefaultMaxPages}
}

// PageFunc fetches the page at pageURL and returns its items and the next
// page URL, or "" on the last page.
type PageFunc[T any] func(ctx context.Context, pageURL string) (items []T, next string, err error)

// Walker follows next links sequentially.
type Walker struct {
	config Config
	logger zerolog.Logger
}

// NewWalker creates a walker, applying defaults to unset fields.
func NewWalker(config Config) *Walker {
	if config.MaxPages <= 0 {
		config.MaxPages = DefaultMaxPages
	}

	return &Walker{
		config: config,
		logger: log.With().Str("component", "pagination").Logger(),
	}
}

// MaxPages returns the configured page cap.
func (w *Walker) MaxPages() int {
	return w.config.MaxPages
}

// Collect fetches startURL and every page reachable through next links and
// returns all items front to back. Any failure discards what was collected;
// errors from fetch and ctx are returned as is.
func Collect[T any](ctx context.Context, w *Walker, startURL string, fetch PageFunc[T]) ([]T, error) {
	start := time.Now()

	var items []T
	visited := make(map[string]struct{})
	pageURL := startURL

	for pageURL != "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, seen := visited[pageURL]; seen {
			w.logger.Error().
				Str("url", pageURL).
				Int("pages", len(visited)).
				Msg("Next link points to a visited page")
			return nil, fmt.Errorf("%w: %s", ErrCycle, pageURL)
		}
		if len(visited) >= w.config.MaxPages {
			w.logger.Error().
				Int("max_pages", w.config.MaxPages).
				Msg("Page limit reached")
			return nil, fmt.Errorf("%w: more than %d pages", ErrMaxPages, w.config.MaxPages)
		}
		visited[pageURL] = struct{}{}

		pageItems, next, err := fetch(ctx, pageURL)
		if err != nil {
			w.logger.Warn().
				Err(err).
				Str("url", pageURL).
				Int("page", len(visited)).
				Msg("Page fetch failed")
			return nil, err
		}
		pagesFetchedTotal.Inc()

		w.logger.Debug().
			Str("url", pageURL).
			Int("page", len(visited)).
			Int("items", len(pageItems)).
			Bool("has_next", next != "").
			Msg("Fetched page")

		items = append(items, pageItems...)
		pageURL = next
	}

	w.logger.Info().
		Str("url", startURL).
		Int("pages", len(visited)).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Pagination complete")

	return items, nil
}
