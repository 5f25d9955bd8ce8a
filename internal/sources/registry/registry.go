// Package registry maps source names to adapter constructors, so config can
// enable sources by name without importing every adapter package.
package registry

import (
	"fmt"

	"github.com/longboxhq/longbox/internal/sources/localdex"
	"github.com/longboxhq/longbox/internal/sources/metron"
	"github.com/longboxhq/longbox/internal/sources/superhero"
	"github.com/longboxhq/longbox/pkg/errors"
	"github.com/longboxhq/longbox/pkg/sources"
)

// Settings carries everything a constructor might need: the shared adapter
// config plus adapter-specific extras.
type Settings struct {
	Config sources.Config

	// FixtureDir is the localdex data directory.
	FixtureDir string
}

// factory creates a fresh adapter instance. Each call returns a new adapter
// with its own HTTP client and rate limiter.
type factory func(Settings) sources.Source

var factories = map[sources.Name]factory{
	metron.SourceName:    func(s Settings) sources.Source { return metron.New(s.Config) },
	superhero.SourceName: func(s Settings) sources.Source { return superhero.New(s.Config) },
	localdex.SourceName:  func(s Settings) sources.Source { return localdex.New(s.FixtureDir, s.Config) },
}

// New creates an adapter by name.
func New(name sources.Name, settings Settings) (sources.Source, error) {
	create, ok := factories[name]
	if !ok {
		return nil, &errors.ValidationError{
			Field:   "source",
			Value:   name.String(),
			Message: fmt.Sprintf("unknown source %q", name),
		}
	}
	return create(settings), nil
}

// Has reports whether a source name has an adapter.
func Has(name sources.Name) bool {
	_, ok := factories[name]
	return ok
}

// Names returns every registered adapter name.
func Names() []sources.Name {
	return []sources.Name{metron.SourceName, superhero.SourceName, localdex.SourceName}
}
