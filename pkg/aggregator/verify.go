package aggregator

import (
	"context"

	"github.com/longboxhq/longbox/pkg/errors"
	"github.com/longboxhq/longbox/pkg/normalize"
	"github.com/longboxhq/longbox/pkg/verify"
)

// Verify runs the precision path for one named entity: fetch the entity
// from every source, cluster the naming variants, and resolve every
// disputed field with full value-variant consensus. Nothing is persisted;
// callers get the confidence-scored view.
func (a *Aggregator) Verify(ctx context.Context, q Query) (*verify.Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.Name == "" {
		return nil, &errors.ValidationError{Field: "name", Message: "verification requires an entity name"}
	}

	if a.passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.passTimeout)
		defer cancel()
	}

	scratch := NewResult()
	records := a.fetch(ctx, q, scratch)
	if len(records) == 0 {
		return nil, errors.ErrNotFound
	}

	clusters := normalize.ClusterRecords(records, a.matchThreshold)
	target := normalize.NewCanonicalEntity(q.Name, q.EntityType, "")

	cluster := clusters[0]
	for _, c := range clusters {
		if normalize.FuzzyMatch(target, c.Seed, a.matchThreshold) {
			cluster = c
			break
		}
	}

	result, err := a.verifier.Entity(cluster.Records)
	if err != nil {
		return nil, err
	}
	result.EntityName = normalize.SelectBestName(cluster.Names())
	return result, nil
}
