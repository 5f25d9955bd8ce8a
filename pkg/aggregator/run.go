package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/longboxhq/longbox/pkg/entities"
	"github.com/longboxhq/longbox/pkg/errors"
	"github.com/longboxhq/longbox/pkg/logging"
	"github.com/longboxhq/longbox/pkg/normalize"
	"github.com/longboxhq/longbox/pkg/sources"
	"github.com/longboxhq/longbox/pkg/storage"
)

// entityNamespace seeds deterministic entity IDs: the same cluster key maps
// to the same UUID on every pass, which is what keeps re-runs idempotent at
// the repository level.
var entityNamespace = uuid.MustParse("1b671a64-40d5-491e-99b0-da01ff1f3341")

// EntityID derives the stable synthetic ID for a cluster key.
func EntityID(clusterKey string) string {
	return uuid.NewSHA1(entityNamespace, []byte(clusterKey)).String()
}

// Query selects what a pass aggregates.
type Query struct {
	// EntityType is required.
	EntityType entities.Type

	// Name restricts the pass to one entity, fetched by name from each
	// source. Empty means aggregate everything the sources list.
	Name string
}

// Validate checks the query.
func (q Query) Validate() error {
	if !q.EntityType.IsValid() {
		return &errors.ValidationError{Field: "entity_type", Value: string(q.EntityType), Message: "unknown entity type"}
	}
	return nil
}

// Run executes one aggregation pass: concurrent fetch from every source,
// clustering, per-cluster merge, idempotent persistence. Source failures are
// soft; only an invalid query or a canceled context fails the pass itself.
func (a *Aggregator) Run(ctx context.Context, q Query) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if a.passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.passTimeout)
		defer cancel()
	}

	result := NewResult()
	records := a.fetch(ctx, q, result)

	clusters := normalize.ClusterRecords(records, a.matchThreshold)
	logging.Info().
		Int("records", len(records)).
		Int("clusters", len(clusters)).
		Str("entity_type", q.EntityType.String()).
		Msg("clustered records")

	for _, cluster := range clusters {
		if err := ctx.Err(); err != nil {
			result.Finalize()
			return result, errors.ErrCanceled
		}
		if err := a.mergeCluster(ctx, cluster, result); err != nil {
			result.addIssue("", cluster.Key, errors.WrapMerge(cluster.Key, cluster.Sources(), err))
			continue
		}
		result.EntitiesProcessed++
	}

	result.Finalize()
	return result, nil
}

// fetch fans out over the registered sources and concatenates their records
// in registration order, so clustering sees a deterministic sequence.
func (a *Aggregator) fetch(ctx context.Context, q Query, result *Result) []entities.RawRecord {
	srcs := a.sources.List()
	perSource := make([][]entities.RawRecord, len(srcs))
	issues := make([]error, len(srcs))

	var wg sync.WaitGroup
	for i, src := range srcs {
		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()
			records, err := fetchOne(ctx, src, q)
			perSource[i] = records
			issues[i] = err
		}(i, src)
	}
	wg.Wait()

	result.SourcesQueried = len(srcs)

	var records []entities.RawRecord
	for i, src := range srcs {
		if err := issues[i]; err != nil {
			result.addIssue(src.Name().String(), q.Name, err)
			logging.Warn().Str("source", src.Name().String()).Err(err).Msg("source failed, continuing pass")
			continue
		}
		for _, r := range perSource[i] {
			if err := r.Validate(); err != nil {
				result.RecordsDropped++
				logging.Debug().Str("source", src.Name().String()).Err(err).Msg("dropping malformed record")
				continue
			}
			records = append(records, r)
		}
	}
	result.RecordsFetched = len(records)
	return records
}

func fetchOne(ctx context.Context, src sources.Source, q Query) ([]entities.RawRecord, error) {
	if q.Name == "" {
		return src.ListEntities(ctx, q.EntityType)
	}
	record, err := src.GetEntity(ctx, q.Name, q.EntityType)
	if errors.IsNotFound(err) {
		// A source simply not knowing the entity is not a failure.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []entities.RawRecord{*record}, nil
}

// mergeCluster folds one cluster into the repository: best display name,
// first-seen-wins merge of attributes, relationships, and appearances across
// sources, a consensus-checked first appearance, and a provenance row per
// contributing record.
func (a *Aggregator) mergeCluster(ctx context.Context, cluster *normalize.Cluster, result *Result) error {
	merged := entities.AggregatedEntity{
		EntityID:    EntityID(cluster.Key),
		EntityName:  normalize.SelectBestName(cluster.Names()),
		EntityType:  cluster.Records[0].EntityType,
		Publisher:   firstPublisher(cluster.Records),
		Aliases:     cluster.Aliases(),
		SourceCount: len(cluster.Records),
	}

	// Entity-level verification is about independent corroboration: enough
	// sources describing the same entity, whatever fields they fill in.
	// Individual facts carry their own per-field consensus flags.
	if merged.SourceCount >= a.verifier.ConsensusThreshold {
		merged.IsVerified = true
		result.ConsensusVerified++
	}
	entityID := merged.EntityID
	now := time.Now().UTC()

	for _, record := range cluster.Records {
		row := storage.DataSourceRow{
			EntityID:           entityID,
			EntityName:         merged.EntityName,
			EntityType:         record.EntityType.String(),
			Aliases:            merged.Aliases,
			SourceName:         record.Source.SourceName,
			SourceEntityID:     record.Source.SourceEntityID,
			SourceURL:          record.Source.SourceURL,
			Reliability:        record.Source.Reliability,
			HasFirstAppearance: record.FirstAppearance != nil,
			HasAttributes:      len(record.Attributes) > 0,
			HasRelationships:   len(record.Relationships) > 0,
			HasAppearances:     len(record.Appearances) > 0,
			Completeness:       entities.Completeness(&record),
			LastChecked:        now,
		}
		if err := a.repo.UpsertDataSource(ctx, row); err != nil {
			return err
		}
	}

	if err := a.mergeFirstAppearance(ctx, &merged, cluster, result); err != nil {
		return err
	}

	// Bulk merge: within a cluster the first source to claim a key wins.
	// Sources are concatenated in registration order, so "first" is stable.
	seenAttrs := make(map[string]bool)
	seenRels := make(map[string]bool)
	seenApps := make(map[string]bool)

	for _, record := range cluster.Records {
		for _, attr := range record.Attributes {
			key := string(attr.Category) + "|" + normalize.Canonicalize(attr.Name)
			if seenAttrs[key] {
				continue
			}
			seenAttrs[key] = true
			row := storage.AttributeRow{
				EntityID:    entityID,
				Category:    string(attr.Category),
				Name:        attr.Name,
				Description: attr.Description,
				Level:       attr.Level,
				IsActive:    attr.Active(),
				OriginType:  attr.OriginType,
				SourceName:  record.Source.SourceName,
				SourceCount: 1,
			}
			if err := a.repo.UpsertAttribute(ctx, row); err != nil {
				return err
			}
			merged.Attributes = append(merged.Attributes, attr)
			result.AttributesAdded++
		}

		for _, rel := range record.Relationships {
			key := string(rel.RelationshipType) + "|" + normalize.Canonicalize(rel.TargetEntityName)
			if seenRels[key] {
				continue
			}
			seenRels[key] = true
			row := storage.RelationshipRow{
				EntityID:         entityID,
				TargetEntityName: rel.TargetEntityName,
				TargetEntityType: rel.TargetEntityType.String(),
				RelationshipType: string(rel.RelationshipType),
				Subtype:          rel.Subtype,
				Strength:         rel.Strength,
				IsActive:         rel.Active(),
				SourceName:       record.Source.SourceName,
				SourceCount:      1,
			}
			if err := a.repo.UpsertRelationship(ctx, row); err != nil {
				return err
			}
			merged.Relationships = append(merged.Relationships, rel)
			result.RelationshipsAdded++
		}

		for _, app := range record.Appearances {
			key := normalize.Canonicalize(app.ComicTitle) + "|" + app.IssueNumber
			if seenApps[key] {
				continue
			}
			seenApps[key] = true
			row := storage.AppearanceRow{
				EntityID:       entityID,
				ComicTitle:     app.ComicTitle,
				IssueNumber:    app.IssueNumber,
				Year:           app.Year,
				Month:          app.Month,
				AppearanceType: app.AppearanceType,
				IsOnCover:      app.IsOnCover,
				SourceName:     record.Source.SourceName,
			}
			if err := a.repo.UpsertAppearance(ctx, row); err != nil {
				return err
			}
			merged.Appearances = append(merged.Appearances, app)
			result.AppearancesAdded++
		}
	}

	result.Entities = append(result.Entities, merged)
	return nil
}

// firstPublisher returns the first known, non-"Unknown" publisher claimed in
// the cluster.
func firstPublisher(records []entities.RawRecord) string {
	for _, r := range records {
		if r.Publisher != "" && r.Publisher != "Unknown" {
			return r.Publisher
		}
	}
	return ""
}

// mergeFirstAppearance persists the cluster's first appearance. A
// consensus-backed value is marked verified; below the threshold the most
// complete single claim is stored unverified so the data is not lost, just
// not trusted.
func (a *Aggregator) mergeFirstAppearance(ctx context.Context, merged *entities.AggregatedEntity, cluster *normalize.Cluster, result *Result) error {
	row := storage.FirstAppearanceRow{EntityID: merged.EntityID}

	if fact := a.verifier.FirstAppearance(cluster.Records, nil); fact != nil {
		row.ComicTitle = fact.Value.ComicTitle
		row.Issue = fact.Value.Issue
		row.Year = fact.Value.Year
		row.Month = fact.Value.Month
		row.CoverURL = fact.Value.CoverURL
		row.Franchise = fact.Value.Franchise
		row.Universe = fact.Value.Universe
		row.SourceName = fact.Sources[0]
		row.SourceCount = fact.SourceCount
		row.Verified = true
		row.Confidence = fact.Confidence
	} else {
		claim, source, count := bestFirstAppearance(cluster.Records)
		if claim == nil {
			return nil
		}
		row.ComicTitle = claim.ComicTitle
		row.Issue = claim.Issue
		row.Year = claim.Year
		row.Month = claim.Month
		row.CoverURL = claim.CoverURL
		row.Franchise = claim.Franchise
		row.Universe = claim.Universe
		row.SourceName = source
		row.SourceCount = count
	}

	if row.CoverURL == "" {
		row.CoverURL = a.fetchCover(ctx, row.ComicTitle, row.Issue)
	}

	if err := a.repo.UpsertFirstAppearance(ctx, row); err != nil {
		return err
	}
	merged.FirstAppearance = &entities.FirstAppearance{
		ComicTitle: row.ComicTitle,
		Issue:      row.Issue,
		Year:       row.Year,
		Month:      row.Month,
		CoverURL:   row.CoverURL,
		Franchise:  row.Franchise,
		Universe:   row.Universe,
	}
	result.FirstAppearancesAdded++
	return nil
}

// bestFirstAppearance picks the most complete claim across the cluster and
// counts how many records agree with its title.
func bestFirstAppearance(records []entities.RawRecord) (*entities.FirstAppearance, string, int) {
	var best *entities.FirstAppearance
	var source string
	for _, r := range records {
		if r.FirstAppearance == nil {
			continue
		}
		if best == nil || r.FirstAppearance.Completeness() > best.Completeness() {
			best = r.FirstAppearance
			source = r.Source.SourceName
		}
	}
	if best == nil {
		return nil, "", 0
	}

	count := 0
	key := normalize.Canonicalize(best.ComicTitle)
	for _, r := range records {
		if r.FirstAppearance != nil && normalize.Canonicalize(r.FirstAppearance.ComicTitle) == key {
			count++
		}
	}
	return best, source, count
}

// fetchCover probes sources for the optional CoverFetcher capability and
// returns the first cover URL any of them resolves.
func (a *Aggregator) fetchCover(ctx context.Context, comicTitle, issue string) string {
	if comicTitle == "" {
		return ""
	}
	for _, src := range a.sources.List() {
		fetcher, ok := src.(sources.CoverFetcher)
		if !ok {
			continue
		}
		url, err := fetcher.FetchCoverURL(ctx, comicTitle, issue)
		if err != nil {
			logging.Debug().Str("source", src.Name().String()).Err(err).Msg("cover fetch failed")
			continue
		}
		if url != "" {
			return url
		}
	}
	return ""
}
