// Package aggregator orchestrates an aggregation pass: fan out over every
// registered source, cluster the returned records into per-entity groups,
// merge each cluster, and persist the merged view with idempotent upserts.
// One failing source degrades the pass, it never aborts it.
package aggregator

import (
	"time"

	"github.com/longboxhq/longbox/pkg/errors"
	"github.com/longboxhq/longbox/pkg/normalize"
	"github.com/longboxhq/longbox/pkg/sources"
	"github.com/longboxhq/longbox/pkg/storage"
	"github.com/longboxhq/longbox/pkg/verify"
)

// DefaultPassTimeout bounds a whole aggregation pass.
const DefaultPassTimeout = 10 * time.Minute

// config holds the assembled settings for an Aggregator.
type config struct {
	sources            *sources.Sources
	repo               storage.Repository
	consensusThreshold int
	matchThreshold     float64
	passTimeout        time.Duration
}

// Option is a function that configures an Aggregator instance.
type Option func(*config) error

// WithSource registers one source adapter.
func WithSource(src sources.Source) Option {
	return func(c *config) error {
		if src == nil {
			return &errors.ValidationError{Field: "source", Message: "nil source"}
		}
		c.sources.Set(src.Name(), src)
		return nil
	}
}

// WithSources replaces the whole source registry.
func WithSources(reg *sources.Sources) Option {
	return func(c *config) error {
		if reg == nil {
			return &errors.ValidationError{Field: "sources", Message: "nil registry"}
		}
		c.sources = reg
		return nil
	}
}

// WithRepository sets the persistence sink. Defaults to an in-memory
// repository when not set.
func WithRepository(repo storage.Repository) Option {
	return func(c *config) error {
		if repo == nil {
			return &errors.ValidationError{Field: "repository", Message: "nil repository"}
		}
		c.repo = repo
		return nil
	}
}

// WithConsensusThreshold sets the agreeing-source count required to verify a
// fact. The effective threshold is clamped to the number of registered
// sources at construction time: requiring 3 agreeing sources with only 2
// enabled would make verification impossible.
func WithConsensusThreshold(n int) Option {
	return func(c *config) error {
		c.consensusThreshold = n
		return nil
	}
}

// WithMatchThreshold sets the fuzzy-match similarity threshold used for
// clustering.
func WithMatchThreshold(threshold float64) Option {
	return func(c *config) error {
		if threshold <= 0 || threshold > 1 {
			return &errors.ValidationError{Field: "match_threshold", Value: threshold, Message: "must be in (0,1]"}
		}
		c.matchThreshold = threshold
		return nil
	}
}

// WithPassTimeout bounds each Run call.
func WithPassTimeout(d time.Duration) Option {
	return func(c *config) error {
		c.passTimeout = d
		return nil
	}
}

// Aggregator runs aggregation passes over a fixed set of sources.
type Aggregator struct {
	sources        *sources.Sources
	repo           storage.Repository
	verifier       *verify.Verifier
	matchThreshold float64
	passTimeout    time.Duration
}

// New assembles an Aggregator. At least one source must be registered.
func New(opts ...Option) (*Aggregator, error) {
	cfg := &config{
		sources:            sources.NewSources(),
		consensusThreshold: verify.DefaultConsensusThreshold,
		matchThreshold:     normalize.DefaultThreshold,
		passTimeout:        DefaultPassTimeout,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.sources.Len() == 0 {
		return nil, &errors.ValidationError{Field: "sources", Message: "at least one source is required"}
	}
	if cfg.repo == nil {
		cfg.repo = storage.NewMemory()
	}

	threshold := cfg.consensusThreshold
	if threshold > cfg.sources.Len() {
		threshold = cfg.sources.Len()
	}
	if threshold < 1 {
		threshold = 1
	}

	return &Aggregator{
		sources:        cfg.sources,
		repo:           cfg.repo,
		verifier:       verify.New(threshold),
		matchThreshold: cfg.matchThreshold,
		passTimeout:    cfg.passTimeout,
	}, nil
}

// ConsensusThreshold returns the effective (clamped) threshold.
func (a *Aggregator) ConsensusThreshold() int {
	return a.verifier.ConsensusThreshold
}

// Sources returns the registered source names.
func (a *Aggregator) Sources() []sources.Name {
	return a.sources.Names()
}
