package toolbelt

import (
	"log/slog"
	"time"
)

// DefaultFetchTimeout is the per-request timeout for verification fetches.
const DefaultFetchTimeout = 30 * time.Second

// Tools bundles the four verification tools over one shared fetcher.
// Each tool is stateless per call; results are observable only through
// return values.
type Tools struct {
	fetcher   *Fetcher
	converter *Converter
	logger    *slog.Logger
}

// Option configures Tools.
type Option func(*Tools)

// WithFetcher sets a custom fetcher.
func WithFetcher(f *Fetcher) Option {
	return func(t *Tools) {
		t.fetcher = f
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tools) {
		t.logger = logger
	}
}

// NewTools creates the verification toolbelt.
func NewTools(opts ...Option) *Tools {
	t := &Tools{
		fetcher:   NewFetcher(DefaultFetchTimeout, ""),
		converter: NewConverter(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}
