package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/longboxhq/longbox/internal/sources/registry"
	"github.com/longboxhq/longbox/pkg/entities"
)

func newSourcesCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Inspect source adapters",
	}
	cmd.AddCommand(newSourcesListCmd(f), newSourcesProbeCmd(f))
	return cmd
}

func newSourcesListCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List source adapters and their reliability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}

			enabled := make(map[string]bool, len(cfg.EnabledSources))
			for _, name := range cfg.EnabledSources {
				enabled[name] = true
			}

			type row struct {
				Name        string  `json:"name"`
				Reliability float64 `json:"reliability"`
				Enabled     bool    `json:"enabled"`
			}
			rows := make([]row, 0, len(registry.Names()))
			for _, name := range registry.Names() {
				src, err := registry.New(name, registry.Settings{
					Config:     adapterConfig(cfg),
					FixtureDir: cfg.FixtureDir,
				})
				if err != nil {
					return err
				}
				rows = append(rows, row{
					Name:        src.Name().String(),
					Reliability: src.Reliability(),
					Enabled:     enabled[src.Name().String()],
				})
			}

			if f.jsonOutput {
				return printJSON(stdout(cmd), rows)
			}
			w := stdout(cmd)
			for _, r := range rows {
				state := "disabled"
				if r.Enabled {
					state = "enabled"
				}
				fmt.Fprintf(w, "%-16s reliability %.2f  %s\n", r.Name, r.Reliability, state)
			}
			return nil
		},
	}
}

func newSourcesProbeCmd(f *flags) *cobra.Command {
	var entityType string

	cmd := &cobra.Command{
		Use:   "probe <name>",
		Short: "Ask each enabled source whether it knows an entity",
		Long: `Probe runs the cheap existence check against every enabled source
without fetching full records. A probe failure is reported per source;
it does not stop the remaining probes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			srcs, err := buildSources(cfg)
			if err != nil {
				return err
			}

			type row struct {
				Source string `json:"source"`
				Found  bool   `json:"found"`
				Err    string `json:"error,omitempty"`
			}
			rows := make([]row, 0, len(srcs))
			for _, src := range srcs {
				found, err := src.HasEntity(cmd.Context(), args[0], entities.Type(entityType))
				r := row{Source: src.Name().String(), Found: found}
				if err != nil {
					r.Err = err.Error()
				}
				rows = append(rows, r)
			}

			if f.jsonOutput {
				return printJSON(stdout(cmd), rows)
			}
			w := stdout(cmd)
			for _, r := range rows {
				switch {
				case r.Err != "":
					fmt.Fprintf(w, "%-16s error: %s\n", r.Source, r.Err)
				case r.Found:
					fmt.Fprintf(w, "%-16s found\n", r.Source)
				default:
					fmt.Fprintf(w, "%-16s not found\n", r.Source)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&entityType, "type", entities.TypeCharacter.String(), "entity type to probe")
	return cmd
}
