package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/longboxhq/longbox/pkg/aggregator"
	"github.com/longboxhq/longbox/pkg/entities"
	"github.com/longboxhq/longbox/pkg/verify"
)

func newVerifyCmd(f *flags) *cobra.Command {
	var (
		entityType    string
		minConfidence float64
	)

	cmd := &cobra.Command{
		Use:   "verify <name>",
		Short: "Verify one entity's facts by cross-source consensus",
		Long: `Verify fetches a single entity from every enabled source and resolves
each disputed field by value-variant consensus: the variant most sources
agree on wins, weighted by source reliability. Nothing is persisted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}

			agg, repo, err := buildAggregator(cfg)
			if err != nil {
				return err
			}
			defer closeRepo(repo)

			result, err := agg.Verify(cmd.Context(), aggregator.Query{
				EntityType: entities.Type(entityType),
				Name:       args[0],
			})
			if err != nil {
				return err
			}
			if minConfidence > 0 {
				result = verify.FilterByConfidence(result, minConfidence)
			}

			if f.jsonOutput {
				return printJSON(stdout(cmd), result)
			}
			printVerifyResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&entityType, "type", entities.TypeCharacter.String(), "entity type to verify")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "drop facts below this confidence")
	return cmd
}

func printVerifyResult(cmd *cobra.Command, result *verify.Result) {
	w := stdout(cmd)

	fmt.Fprintf(w, "%s  [%s]\n", result.EntityName, result.EntityKey)
	fmt.Fprintf(w, "Overall confidence: %.2f\n", result.OverallConfidence)

	if fa := result.FirstAppearance; fa != nil {
		fmt.Fprintf(w, "\nFirst appearance: %s  %s\n", formatFirstAppearance(fa.Value), factBadge(fa.IsConsensus, fa.Confidence, fa.SourceCount))
	}

	if len(result.Attributes) > 0 {
		fmt.Fprintln(w, "\nAttributes:")
		for _, fact := range result.Attributes {
			a := fact.Value
			line := fmt.Sprintf("%s/%s", a.Category, a.Name)
			if a.Level != "" {
				line += " (" + a.Level + ")"
			}
			fmt.Fprintf(w, "  %-44s %s\n", line, factBadge(fact.IsConsensus, fact.Confidence, fact.SourceCount))
		}
	}

	if len(result.Relationships) > 0 {
		fmt.Fprintln(w, "\nRelationships:")
		for _, fact := range result.Relationships {
			r := fact.Value
			line := fmt.Sprintf("%s of %s", r.RelationshipType, r.TargetEntityName)
			if r.Subtype != "" {
				line += " (" + r.Subtype + ")"
			}
			fmt.Fprintf(w, "  %-44s %s\n", line, factBadge(fact.IsConsensus, fact.Confidence, fact.SourceCount))
		}
	}

	if result.HasConflicts() {
		fmt.Fprintf(w, "\n%d conflict(s):\n", len(result.Conflicts))
		for _, c := range result.Conflicts {
			fmt.Fprintf(w, "  %s\n", c.Fact)
			for _, v := range c.Values {
				fmt.Fprintf(w, "    %v  (sources: %s, reliability %.2f)\n", v.Value, strings.Join(v.Sources, ", "), v.Reliability)
			}
		}
	}
}

func formatFirstAppearance(fa entities.FirstAppearance) string {
	s := fa.ComicTitle
	if fa.Issue != "" {
		s += " #" + fa.Issue
	}
	switch {
	case fa.Month != "" && fa.Year != 0:
		s += fmt.Sprintf(" (%s %d)", fa.Month, fa.Year)
	case fa.Year != 0:
		s += fmt.Sprintf(" (%d)", fa.Year)
	}
	return s
}

func factBadge(consensus bool, confidence float64, sourceCount int) string {
	marker := "unverified"
	if consensus {
		marker = "verified"
	}
	return fmt.Sprintf("[%s %.2f, %d source(s)]", marker, confidence, sourceCount)
}
