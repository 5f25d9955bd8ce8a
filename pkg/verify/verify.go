// Package verify turns competing per-source field values into single
// verified values with calibrated confidence scores. Disagreement is
// surfaced as conflicts instead of being silently resolved.
//
// Confidence is uniform across fact kinds:
//
//	confidence = avgReliability(variant contributors) × min(1, variantSourceCount / consensusThreshold)
//
// which rewards both source agreement and source trustworthiness, and
// saturates at 1.0 once the threshold is met.
package verify

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/longboxhq/longbox/pkg/entities"
	"github.com/longboxhq/longbox/pkg/errors"
	"github.com/longboxhq/longbox/pkg/normalize"
)

// DefaultConsensusThreshold is the minimum number of independent sources
// that must agree on a value before it is treated as verified.
const DefaultConsensusThreshold = 3

// VerifiedFact is one field value that survived consensus resolution.
type VerifiedFact[T any] struct {
	Value       T        `json:"value"`
	Confidence  float64  `json:"confidence"`
	SourceCount int      `json:"source_count"`
	IsConsensus bool     `json:"is_consensus"`
	Sources     []string `json:"sources"`
	Conflicts   []T      `json:"conflicts,omitempty"`
}

// Conflict records a field where sources disagreed, with every competing
// value and the sources backing it.
type Conflict struct {
	Fact   string          `json:"fact"`
	Values []ConflictValue `json:"values"`
}

// ConflictValue is one side of a disagreement.
type ConflictValue struct {
	Value       any      `json:"value"`
	Sources     []string `json:"sources"`
	Reliability float64  `json:"reliability"`
}

// Result is the verified view of one cluster.
type Result struct {
	EntityKey         string                                     `json:"entity_key"`
	EntityName        string                                     `json:"entity_name"`
	FirstAppearance   *VerifiedFact[entities.FirstAppearance]    `json:"first_appearance,omitempty"`
	Attributes        []VerifiedFact[entities.Attribute]         `json:"attributes,omitempty"`
	Relationships     []VerifiedFact[entities.Relationship]      `json:"relationships,omitempty"`
	OverallConfidence float64                                    `json:"overall_confidence"`
	Conflicts         []Conflict                                 `json:"conflicts,omitempty"`
}

// HasConflicts reports whether any field had disagreeing sources.
func (r *Result) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

// Verifier resolves disputed fields using consensus across sources.
// It holds no mutable state; one instance may be shared freely.
type Verifier struct {
	// ConsensusThreshold is the minimum agreeing-source count for a fact
	// to be treated as verified.
	ConsensusThreshold int
}

// New creates a Verifier. A threshold below 1 falls back to the default.
func New(consensusThreshold int) *Verifier {
	if consensusThreshold < 1 {
		consensusThreshold = DefaultConsensusThreshold
	}
	return &Verifier{ConsensusThreshold: consensusThreshold}
}

// Entity verifies every disputed field across the cluster's records.
func (v *Verifier) Entity(records []entities.RawRecord) (*Result, error) {
	if len(records) == 0 {
		return nil, &errors.ValidationError{Field: "records", Message: "no source records to verify"}
	}

	base := records[0]
	result := &Result{
		EntityKey:  string(base.EntityType) + ":" + normalize.Canonicalize(base.EntityName),
		EntityName: base.EntityName,
	}

	result.FirstAppearance = v.FirstAppearance(records, &result.Conflicts)
	result.Attributes = v.Attributes(records, &result.Conflicts)
	result.Relationships = v.Relationships(records, &result.Conflicts)

	var sum float64
	var n int
	if result.FirstAppearance != nil && result.FirstAppearance.Confidence > 0 {
		sum += result.FirstAppearance.Confidence
		n++
	}
	for _, a := range result.Attributes {
		if a.Confidence > 0 {
			sum += a.Confidence
			n++
		}
	}
	for _, r := range result.Relationships {
		if r.Confidence > 0 {
			sum += r.Confidence
			n++
		}
	}
	if n > 0 {
		result.OverallConfidence = sum / float64(n)
	}

	return result, nil
}

// FirstAppearance resolves the cluster's first-appearance claims. Claims are
// grouped by normalized comic title; the largest group is the consensus
// group. Below the consensus threshold no value is returned — better absent
// than guessed. Competing titles are appended to conflicts.
func (v *Verifier) FirstAppearance(records []entities.RawRecord, conflicts *[]Conflict) *VerifiedFact[entities.FirstAppearance] {
	type claim struct {
		value       *entities.FirstAppearance
		source      string
		reliability float64
	}

	var claims []claim
	for _, r := range records {
		if r.FirstAppearance == nil {
			continue
		}
		claims = append(claims, claim{r.FirstAppearance, r.Source.SourceName, r.Source.Reliability})
	}
	if len(claims) == 0 {
		return nil
	}

	groups, order := groupBy(claims, func(c claim) string {
		return squash(c.value.ComicTitle)
	})

	consensusKey := largestGroup(groups, order)
	consensus := groups[consensusKey]

	if len(order) > 1 && conflicts != nil {
		conflict := Conflict{Fact: "first_appearance"}
		for _, key := range order {
			group := groups[key]
			conflict.Values = append(conflict.Values, ConflictValue{
				Value:       group[0].value.ComicTitle,
				Sources:     sourcesOf(group, func(c claim) string { return c.source }),
				Reliability: meanOf(group, func(c claim) float64 { return c.reliability }),
			})
		}
		*conflicts = append(*conflicts, conflict)
	}

	sourceCount := len(consensus)
	if sourceCount < v.ConsensusThreshold {
		return nil
	}

	best := consensus[0]
	for _, c := range consensus[1:] {
		if c.value.Completeness() > best.value.Completeness() {
			best = c
		}
	}

	fact := &VerifiedFact[entities.FirstAppearance]{
		Value:       *best.value,
		Confidence:  Confidence(meanOf(consensus, func(c claim) float64 { return c.reliability }), sourceCount, v.ConsensusThreshold),
		SourceCount: sourceCount,
		IsConsensus: true,
		Sources:     sourcesOf(consensus, func(c claim) string { return c.source }),
	}
	for _, key := range order {
		if key == consensusKey {
			continue
		}
		fact.Conflicts = append(fact.Conflicts, *groups[key][0].value)
	}
	return fact
}

// Attributes resolves attribute claims. Claims are grouped by normalized
// attribute name; within each name group, value variants (description,
// level, active flag, origin type) are hashed to detect value disagreement,
// not just name agreement. The majority variant wins and confidence counts
// only its contributors.
func (v *Verifier) Attributes(records []entities.RawRecord, conflicts *[]Conflict) []VerifiedFact[entities.Attribute] {
	type claim struct {
		value       entities.Attribute
		source      string
		reliability float64
	}

	var claims []claim
	for _, r := range records {
		for _, a := range r.Attributes {
			claims = append(claims, claim{a, r.Source.SourceName, r.Source.Reliability})
		}
	}
	if len(claims) == 0 {
		return nil
	}

	groups, order := groupBy(claims, func(c claim) string {
		return squash(c.value.Name)
	})

	var verified []VerifiedFact[entities.Attribute]
	for _, key := range order {
		group := groups[key]

		variants, variantOrder := groupBy(group, func(c claim) string {
			return fmt.Sprintf("%s|%s|%t|%s", c.value.Description, c.value.Level, c.value.Active(), c.value.OriginType)
		})

		if len(variantOrder) > 1 && conflicts != nil {
			conflict := Conflict{Fact: "attribute:" + key}
			for _, vk := range variantOrder {
				variant := variants[vk]
				conflict.Values = append(conflict.Values, ConflictValue{
					Value:       variant[0].value,
					Sources:     sourcesOf(variant, func(c claim) string { return c.source }),
					Reliability: meanOf(variant, func(c claim) float64 { return c.reliability }),
				})
			}
			*conflicts = append(*conflicts, conflict)
		}

		majorityKey := largestGroup(variants, variantOrder)
		majority := variants[majorityKey]

		best := majority[0]
		for _, c := range majority[1:] {
			if c.value.Completeness() > best.value.Completeness() {
				best = c
			}
		}

		fact := VerifiedFact[entities.Attribute]{
			Value:       best.value,
			Confidence:  Confidence(meanOf(majority, func(c claim) float64 { return c.reliability }), len(majority), v.ConsensusThreshold),
			SourceCount: len(majority),
			IsConsensus: len(majority) >= v.ConsensusThreshold,
			Sources:     sourcesOf(majority, func(c claim) string { return c.source }),
		}
		for _, vk := range variantOrder {
			if vk == majorityKey {
				continue
			}
			fact.Conflicts = append(fact.Conflicts, variants[vk][0].value)
		}
		verified = append(verified, fact)
	}

	return verified
}

// Relationships resolves relationship claims, keyed by relationship type
// plus normalized target name, with value variants over subtype, strength,
// and active flag. Same strategy as Attributes.
func (v *Verifier) Relationships(records []entities.RawRecord, conflicts *[]Conflict) []VerifiedFact[entities.Relationship] {
	type claim struct {
		value       entities.Relationship
		source      string
		reliability float64
	}

	var claims []claim
	for _, r := range records {
		for _, rel := range r.Relationships {
			claims = append(claims, claim{rel, r.Source.SourceName, r.Source.Reliability})
		}
	}
	if len(claims) == 0 {
		return nil
	}

	groups, order := groupBy(claims, func(c claim) string {
		return string(c.value.RelationshipType) + ":" + squash(c.value.TargetEntityName)
	})

	var verified []VerifiedFact[entities.Relationship]
	for _, key := range order {
		group := groups[key]

		variants, variantOrder := groupBy(group, func(c claim) string {
			return fmt.Sprintf("%s|%g|%t", c.value.Subtype, c.value.Strength, c.value.Active())
		})

		if len(variantOrder) > 1 && conflicts != nil {
			conflict := Conflict{Fact: "relationship:" + key}
			for _, vk := range variantOrder {
				variant := variants[vk]
				conflict.Values = append(conflict.Values, ConflictValue{
					Value:       variant[0].value,
					Sources:     sourcesOf(variant, func(c claim) string { return c.source }),
					Reliability: meanOf(variant, func(c claim) float64 { return c.reliability }),
				})
			}
			*conflicts = append(*conflicts, conflict)
		}

		majorityKey := largestGroup(variants, variantOrder)
		majority := variants[majorityKey]

		best := majority[0]
		for _, c := range majority[1:] {
			if c.value.Completeness() > best.value.Completeness() {
				best = c
			}
		}

		fact := VerifiedFact[entities.Relationship]{
			Value:       best.value,
			Confidence:  Confidence(meanOf(majority, func(c claim) float64 { return c.reliability }), len(majority), v.ConsensusThreshold),
			SourceCount: len(majority),
			IsConsensus: len(majority) >= v.ConsensusThreshold,
			Sources:     sourcesOf(majority, func(c claim) string { return c.source }),
		}
		for _, vk := range variantOrder {
			if vk == majorityKey {
				continue
			}
			fact.Conflicts = append(fact.Conflicts, variants[vk][0].value)
		}
		verified = append(verified, fact)
	}

	return verified
}

// FilterByConfidence drops verified fields scoring below min. Used by
// callers that require high-trust output only.
func FilterByConfidence(result *Result, min float64) *Result {
	filtered := &Result{
		EntityKey:         result.EntityKey,
		EntityName:        result.EntityName,
		OverallConfidence: result.OverallConfidence,
		Conflicts:         result.Conflicts,
	}

	if result.FirstAppearance != nil && result.FirstAppearance.Confidence >= min {
		filtered.FirstAppearance = result.FirstAppearance
	}
	for _, a := range result.Attributes {
		if a.Confidence >= min {
			filtered.Attributes = append(filtered.Attributes, a)
		}
	}
	for _, r := range result.Relationships {
		if r.Confidence >= min {
			filtered.Relationships = append(filtered.Relationships, r)
		}
	}

	return filtered
}

// Confidence computes the uniform confidence score: mean contributor
// reliability scaled by agreement count, saturating once count reaches the
// threshold.
func Confidence(avgReliability float64, sourceCount, threshold int) float64 {
	if sourceCount == 0 || threshold < 1 {
		return 0
	}
	return avgReliability * math.Min(1, float64(sourceCount)/float64(threshold))
}

var squashRe = regexp.MustCompile(`[^a-z0-9]`)

// squash reduces a title or name to lowercase alphanumerics for grouping.
func squash(s string) string {
	return squashRe.ReplaceAllString(strings.ToLower(s), "")
}

// groupBy groups items by a deterministic string key, preserving first-seen
// key order so verification output is stable for a stable input order.
func groupBy[T any](items []T, keyFn func(T) string) (map[string][]T, []string) {
	groups := make(map[string][]T, len(items))
	var order []string
	for _, item := range items {
		key := keyFn(item)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], item)
	}
	return groups, order
}

// largestGroup returns the key of the biggest group, first-seen winning ties.
func largestGroup[T any](groups map[string][]T, order []string) string {
	best := order[0]
	for _, key := range order[1:] {
		if len(groups[key]) > len(groups[best]) {
			best = key
		}
	}
	return best
}

func sourcesOf[T any](items []T, f func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, f(item))
	}
	return out
}

func meanOf[T any](items []T, f func(T) float64) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, item := range items {
		sum += f(item)
	}
	return sum / float64(len(items))
}
