package entities

// AggregatedEntity is the merge result for one cluster of raw records:
// identity fields from the best record, one merged first appearance, and
// deduplicated attribute, relationship, and appearance lists.
type AggregatedEntity struct {
	EntityID        string           `json:"entity_id" yaml:"entity_id"`
	EntityName      string           `json:"entity_name" yaml:"entity_name"`
	EntityType      Type             `json:"entity_type" yaml:"entity_type"`
	Publisher       string           `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Aliases         []string         `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	FirstAppearance *FirstAppearance `json:"first_appearance,omitempty" yaml:"first_appearance,omitempty"`
	Attributes      []Attribute      `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Relationships   []Relationship   `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	Appearances     []Appearance     `json:"appearances,omitempty" yaml:"appearances,omitempty"`

	// SourceCount is the number of independent source records merged in.
	SourceCount int `json:"source_count" yaml:"source_count"`

	// IsVerified is true when SourceCount met the consensus threshold.
	IsVerified bool `json:"is_verified" yaml:"is_verified"`
}

// Completeness scores how much of a raw record is populated, on a 0–1 scale.
// The aggregator records it on each provenance row.
func Completeness(r *RawRecord) float64 {
	const maxScore = 5.0
	score := 0.0
	if r.FirstAppearance != nil {
		score++
		if r.FirstAppearance.CoverURL != "" {
			score++
		}
	}
	if len(r.Attributes) > 0 {
		score++
	}
	if len(r.Relationships) > 0 {
		score++
	}
	if len(r.Appearances) > 0 {
		score++
	}
	return score / maxScore
}
