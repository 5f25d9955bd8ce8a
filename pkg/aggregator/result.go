package aggregator

import (
	"time"

	"github.com/longboxhq/longbox/pkg/entities"
)

// SourceIssue records one soft failure during a pass: a source that could
// not be queried, a record that failed validation, or a cluster that could
// not be persisted.
type SourceIssue struct {
	Source string `json:"source,omitempty"`
	Entity string `json:"entity,omitempty"`
	Err    string `json:"error"`
}

// Result is the outcome of one aggregation pass.
type Result struct {
	// Counters.
	SourcesQueried        int `json:"sources_queried"`
	RecordsFetched        int `json:"records_fetched"`
	RecordsDropped        int `json:"records_dropped"`
	EntitiesProcessed     int `json:"entities_processed"`
	ConsensusVerified     int `json:"consensus_verified"`
	FirstAppearancesAdded int `json:"first_appearances_added"`
	AttributesAdded       int `json:"attributes_added"`
	RelationshipsAdded    int `json:"relationships_added"`
	AppearancesAdded      int `json:"appearances_added"`

	// Entities holds the merged view of every cluster the pass persisted.
	Entities []entities.AggregatedEntity `json:"entities,omitempty"`

	// Issues are soft failures; the pass completed around them.
	Issues []SourceIssue `json:"issues,omitempty"`

	// Timing.
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
}

// NewResult starts a result with the clock running.
func NewResult() *Result {
	return &Result{StartTime: time.Now()}
}

// Finalize calculates duration and marks completion.
func (r *Result) Finalize() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

// HasIssues reports whether any soft failure occurred.
func (r *Result) HasIssues() bool {
	return len(r.Issues) > 0
}

func (r *Result) addIssue(source, entity string, err error) {
	r.Issues = append(r.Issues, SourceIssue{Source: source, Entity: entity, Err: err.Error()})
}
