// Package sources defines the contract between the aggregator and the
// external databases it queries. Each adapter wraps one upstream API or
// dataset behind the Source interface, declares its own reliability weight,
// and handles its own rate limiting and retries so the aggregator can treat
// every source uniformly.
//
// Example usage:
//
//	reg := sources.NewSources()
//	reg.Set(src.Name(), src)
//
//	for _, s := range reg.List() {
//	    records, err := s.ListEntities(ctx, entities.TypeCharacter)
//	    ...
//	}
package sources

import (
	"context"
	"sync"
	"time"

	"github.com/longboxhq/longbox/pkg/entities"
)

// Name identifies a source adapter.
type Name string

// String returns the string representation of a source name.
func (n Name) String() string {
	return string(n)
}

// Source is one external database of comic entities. Implementations must
// be safe for concurrent use: the aggregator fans out across sources and
// may call one adapter from several passes at once.
type Source interface {
	// Name returns the adapter's unique identifier.
	Name() Name

	// Reliability returns the source's trust weight in [0,1]. It feeds
	// directly into verification confidence scores.
	Reliability() float64

	// ListEntities fetches every entity of the given type the source
	// knows about, as raw per-source records.
	ListEntities(ctx context.Context, entityType entities.Type) ([]entities.RawRecord, error)

	// GetEntity fetches a single entity by name. Returns errors.ErrNotFound
	// wrapped in a SourceError when the source has no match.
	GetEntity(ctx context.Context, name string, entityType entities.Type) (*entities.RawRecord, error)

	// HasEntity reports whether the source knows the entity at all. Cheaper
	// than GetEntity where the upstream supports an existence probe.
	HasEntity(ctx context.Context, name string, entityType entities.Type) (bool, error)
}

// CoverFetcher is an optional capability: sources that can resolve cover
// artwork for a first appearance implement it in addition to Source. Callers
// discover it with a type assertion.
type CoverFetcher interface {
	// FetchCoverURL resolves the cover image URL for a comic issue.
	FetchCoverURL(ctx context.Context, comicTitle, issue string) (string, error)
}

// Config carries the settings every adapter shares. Adapters embed the
// resolved values at construction time.
type Config struct {
	// SourceName overrides the adapter's default name. Usually empty.
	SourceName Name

	// Reliability is the trust weight in [0,1]. Zero means "use the
	// adapter's default".
	Reliability float64

	// RateLimitInterval is the minimum spacing between upstream requests.
	RateLimitInterval time.Duration

	// MaxRetries is the number of attempts for transient failures.
	MaxRetries int

	// Timeout bounds each upstream request.
	Timeout time.Duration

	// BaseURL overrides the adapter's upstream endpoint, for tests.
	BaseURL string

	// APIKey authenticates against upstreams that require it.
	APIKey string
}

// Sources is a thread-safe container for registered source adapters.
type Sources struct {
	mu      sync.RWMutex
	sources map[Name]Source
	order   []Name
}

// NewSources creates an empty registry.
func NewSources() *Sources {
	return &Sources{
		sources: make(map[Name]Source),
	}
}

// Get returns a source by name.
func (s *Sources) Get(name Name) (Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, found := s.sources[name]
	return src, found
}

// Set registers a source, replacing any previous adapter with the same name.
func (s *Sources) Set(name Name, src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sources[name]; !exists {
		s.order = append(s.order, name)
	}
	s.sources[name] = src
}

// Delete removes a source by name.
func (s *Sources) Delete(name Name) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sources[name]; !exists {
		return
	}
	delete(s.sources, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered sources.
func (s *Sources) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sources)
}

// List returns all sources in registration order. Registration order is
// load-bearing: it fixes the record order fed to clustering, which keeps
// aggregation passes deterministic.
func (s *Sources) List() []Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Source, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.sources[name])
	}
	return out
}

// Names returns all registered source names in registration order.
func (s *Sources) Names() []Name {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Name, len(s.order))
	copy(out, s.order)
	return out
}
