package normalize

import (
	"github.com/longboxhq/longbox/pkg/entities"
)

// DefaultThreshold is the similarity score at or above which two names are
// considered the same entity.
const DefaultThreshold = 0.85

// CanonicalEntity is the matching view of one raw record: its canonical
// name, aliases, and the identity constraints (type, publisher) that gate
// fuzzy matching.
type CanonicalEntity struct {
	CanonicalName string
	Aliases       []string
	Publisher     string
	EntityType    entities.Type
}

// NewCanonicalEntity builds the matching view for a name.
func NewCanonicalEntity(name string, entityType entities.Type, publisher string) CanonicalEntity {
	return CanonicalEntity{
		CanonicalName: Canonicalize(name),
		Aliases:       ExtractAliases(name),
		Publisher:     publisher,
		EntityType:    entityType,
	}
}

// FuzzyMatch reports whether two entities likely denote the same real-world
// entity. Matching requires equal entity types. When both publishers are
// known, non-"Unknown", and differ, only exact canonical-name equality
// matches: two publishers may use an identical name for unrelated
// characters, so cross-publisher fuzzy merges are disallowed. Otherwise the
// entities match when any canonical-name or alias pairing scores at or
// above the threshold.
func FuzzyMatch(e1, e2 CanonicalEntity, threshold float64) bool {
	if e1.EntityType != e2.EntityType {
		return false
	}

	if e1.Publisher != "" && e2.Publisher != "" &&
		e1.Publisher != e2.Publisher &&
		e1.Publisher != "Unknown" && e2.Publisher != "Unknown" {
		return e1.CanonicalName == e2.CanonicalName
	}

	if Similarity(e1.CanonicalName, e2.CanonicalName) >= threshold {
		return true
	}

	for _, a1 := range e1.Aliases {
		for _, a2 := range e2.Aliases {
			if Similarity(a1, a2) >= threshold {
				return true
			}
		}
		if Similarity(a1, e2.CanonicalName) >= threshold {
			return true
		}
	}
	for _, a2 := range e2.Aliases {
		if Similarity(e1.CanonicalName, a2) >= threshold {
			return true
		}
	}

	return false
}

// Cluster is an in-memory grouping of raw records believed to describe one
// real entity. It is created around a seed record, grows by fuzzy matching,
// and is frozen once handed to verification for an orchestration pass.
// Clusters are never persisted directly.
type Cluster struct {
	// Key identifies the cluster within a pass: "<type>:<canonical seed name>".
	Key string

	// Seed is the matching view of the first record assigned.
	Seed CanonicalEntity

	// Records holds every raw record assigned to the cluster.
	Records []entities.RawRecord
}

// Names returns each record's entity name, in assignment order.
func (c *Cluster) Names() []string {
	names := make([]string, 0, len(c.Records))
	for _, r := range c.Records {
		names = append(names, r.EntityName)
	}
	return names
}

// Sources returns each record's source name, in assignment order.
func (c *Cluster) Sources() []string {
	sources := make([]string, 0, len(c.Records))
	for _, r := range c.Records {
		sources = append(sources, r.Source.SourceName)
	}
	return sources
}

// Aliases returns every alias across the cluster's records, deduplicated.
func (c *Cluster) Aliases() []string {
	var aliases []string
	for _, r := range c.Records {
		aliases = append(aliases, ExtractAliases(r.EntityName)...)
	}
	return dedupe(aliases)
}

// ClusterRecords groups raw records into per-entity clusters by pairwise
// fuzzy matching: each unprocessed record seeds a new cluster and absorbs
// every remaining record that matches the seed. O(n²) on the batch, and
// deterministic given a stable input order.
func ClusterRecords(records []entities.RawRecord, threshold float64) []*Cluster {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	clusters := make([]*Cluster, 0, len(records))
	processed := make([]bool, len(records))

	for i := range records {
		if processed[i] {
			continue
		}
		processed[i] = true

		seed := NewCanonicalEntity(records[i].EntityName, records[i].EntityType, records[i].Publisher)
		cluster := &Cluster{
			Key:     string(records[i].EntityType) + ":" + seed.CanonicalName,
			Seed:    seed,
			Records: []entities.RawRecord{records[i]},
		}

		for j := i + 1; j < len(records); j++ {
			if processed[j] {
				continue
			}
			candidate := NewCanonicalEntity(records[j].EntityName, records[j].EntityType, records[j].Publisher)
			if FuzzyMatch(seed, candidate, threshold) {
				cluster.Records = append(cluster.Records, records[j])
				processed[j] = true
			}
		}

		clusters = append(clusters, cluster)
	}

	return clusters
}
