package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/longboxhq/longbox/internal/config"
	"github.com/longboxhq/longbox/internal/sources/registry"
	"github.com/longboxhq/longbox/internal/storage/sqlite"
	"github.com/longboxhq/longbox/pkg/aggregator"
	"github.com/longboxhq/longbox/pkg/logging"
	"github.com/longboxhq/longbox/pkg/sources"
	"github.com/longboxhq/longbox/pkg/storage"
)

// flags overrides config file and environment values when set on the
// command line.
type flags struct {
	sources        []string
	database       string
	fixtures       string
	threshold      int
	matchThreshold float64
	timeout        time.Duration
	jsonOutput     bool
	logLevel       string
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "longbox",
		Short: "Aggregate and verify comic-book entity data from multiple sources",
		Long: `Longbox queries comic-book data sources of varying reliability, clusters
the naming variants they return into single entities, verifies disputed
facts by cross-source consensus, and persists the merged view.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if f.logLevel == "" {
				return nil
			}
			level, err := zerolog.ParseLevel(f.logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", f.logLevel, err)
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringSliceVar(&f.sources, "sources", nil, "source adapters to query (overrides config)")
	pf.StringVar(&f.database, "db", "", "SQLite database path (overrides config; \"memory\" for none)")
	pf.StringVar(&f.fixtures, "fixtures", "", "localdex fixture directory (overrides config)")
	pf.IntVar(&f.threshold, "consensus-threshold", 0, "agreeing sources required to verify a fact (overrides config)")
	pf.Float64Var(&f.matchThreshold, "match-threshold", 0, "fuzzy-match similarity cutoff (overrides config)")
	pf.DurationVar(&f.timeout, "timeout", 0, "pass timeout (overrides config)")
	pf.BoolVar(&f.jsonOutput, "json", false, "emit results as JSON")
	pf.StringVar(&f.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	root.AddCommand(
		newAggregateCmd(f),
		newVerifyCmd(f),
		newSourcesCmd(f),
	)
	return root
}

// loadConfig resolves the effective configuration: file and environment via
// config.Load, then command-line overrides.
func loadConfig(f *flags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if len(f.sources) > 0 {
		cfg.EnabledSources = f.sources
	}
	if f.database != "" {
		if f.database == "memory" {
			cfg.DatabasePath = ""
		} else {
			cfg.DatabasePath = f.database
		}
	}
	if f.fixtures != "" {
		cfg.FixtureDir = f.fixtures
	}
	if f.threshold > 0 {
		cfg.ConsensusThreshold = f.threshold
	}
	if f.matchThreshold > 0 {
		cfg.MatchThreshold = f.matchThreshold
	}
	if f.timeout > 0 {
		cfg.PassTimeout = f.timeout
	}
	return cfg, cfg.Validate()
}

// buildSources constructs one adapter per enabled source name, in config
// order. Order fixes record precedence in first-seen-wins merges.
func buildSources(cfg *config.Config) ([]sources.Source, error) {
	built := make([]sources.Source, 0, len(cfg.EnabledSources))
	for _, name := range cfg.EnabledSources {
		src, err := registry.New(sources.Name(name), registry.Settings{
			Config:     adapterConfig(cfg),
			FixtureDir: cfg.FixtureDir,
		})
		if err != nil {
			return nil, err
		}
		built = append(built, src)
	}
	return built, nil
}

// adapterConfig is the shared per-adapter config. The API key only matters
// to Metron; the other adapters ignore it.
func adapterConfig(cfg *config.Config) sources.Config {
	return sources.Config{APIKey: cfg.MetronAPIKey}
}

// buildAggregator wires config, sources, and storage into an Aggregator.
// The returned repository must be closed by the caller.
func buildAggregator(cfg *config.Config) (*aggregator.Aggregator, storage.Repository, error) {
	srcs, err := buildSources(cfg)
	if err != nil {
		return nil, nil, err
	}

	var repo storage.Repository
	if cfg.DatabasePath == "" {
		repo = storage.NewMemory()
	} else {
		repo, err = sqlite.Open(cfg.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
	}

	opts := []aggregator.Option{
		aggregator.WithRepository(repo),
		aggregator.WithConsensusThreshold(cfg.ConsensusThreshold),
		aggregator.WithMatchThreshold(cfg.MatchThreshold),
		aggregator.WithPassTimeout(cfg.PassTimeout),
	}
	for _, src := range srcs {
		opts = append(opts, aggregator.WithSource(src))
	}

	agg, err := aggregator.New(opts...)
	if err != nil {
		closeRepo(repo)
		return nil, nil, err
	}
	return agg, repo, nil
}

func closeRepo(repo storage.Repository) {
	if err := repo.Close(); err != nil {
		logging.Warn().Err(err).Msg("closing repository")
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stdout(cmd *cobra.Command) io.Writer {
	if w := cmd.OutOrStdout(); w != nil {
		return w
	}
	return os.Stdout
}
