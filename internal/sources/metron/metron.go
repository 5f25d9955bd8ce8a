// Package metron adapts the Metron comic book database REST API
// (https://metron.cloud/) to the Source contract. Metron is community
// maintained and multi-publisher, so records carry reliability 0.80 and an
// "Unknown" publisher.
package metron

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/longboxhq/longbox/internal/transport"
	"github.com/longboxhq/longbox/pkg/entities"
	"github.com/longboxhq/longbox/pkg/errors"
	"github.com/longboxhq/longbox/pkg/logging"
	"github.com/longboxhq/longbox/pkg/sources"
)

const (
	// SourceName identifies this adapter in records and provenance rows.
	SourceName sources.Name = "metron"

	// DefaultReliability is Metron's trust weight.
	DefaultReliability = 0.80

	// DefaultRateLimit spaces requests out of respect for the free API.
	DefaultRateLimit = 500 * time.Millisecond

	DefaultBaseURL = "https://metron.cloud/api"
	DefaultTimeout = 10 * time.Second

	// pageSize caps a list fetch.
	pageSize = 25
)

// wire types

type characterPage struct {
	Results []character `json:"results"`
}

type character struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Alias    []string `json:"alias"`
	Desc     string   `json:"desc"`
	Image    string   `json:"image"`
	Creators []ref    `json:"creators"`
	Teams    []ref    `json:"teams"`
}

type ref struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type issuePage struct {
	Results []issue `json:"results"`
}

type issue struct {
	ID        int    `json:"id"`
	Series    series `json:"series"`
	Number    string `json:"number"`
	CoverDate string `json:"cover_date"`
	Image     string `json:"image"`
}

type series struct {
	Name string `json:"name"`
}

// Source is the Metron adapter.
type Source struct {
	name        sources.Name
	reliability float64
	baseURL     string
	maxRetries  int
	client      *transport.Client
	limiter     *sources.Limiter
	cache       *gocache.Cache
}

var (
	_ sources.Source       = (*Source)(nil)
	_ sources.CoverFetcher = (*Source)(nil)
)

// New creates a Metron adapter. Zero-valued config fields fall back to the
// adapter defaults.
func New(cfg sources.Config) *Source {
	name := SourceName
	if cfg.SourceName != "" {
		name = cfg.SourceName
	}
	reliability := DefaultReliability
	if cfg.Reliability > 0 {
		reliability = cfg.Reliability
	}
	baseURL := DefaultBaseURL
	if cfg.BaseURL != "" {
		baseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	interval := DefaultRateLimit
	if cfg.RateLimitInterval > 0 {
		interval = cfg.RateLimitInterval
	}
	timeout := DefaultTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	maxRetries := sources.DefaultMaxRetries
	if cfg.MaxRetries > 0 {
		maxRetries = cfg.MaxRetries
	}

	var auth transport.Authenticator
	if cfg.APIKey != "" {
		auth = transport.TokenAuth{Token: cfg.APIKey}
	}

	return &Source{
		name:        name,
		reliability: reliability,
		baseURL:     baseURL,
		maxRetries:  maxRetries,
		client:      transport.New(name.String(), &http.Client{Timeout: timeout}, auth),
		limiter:     sources.NewLimiter(interval),
		cache:       gocache.New(15*time.Minute, 30*time.Minute),
	}
}

// Name returns the adapter identifier.
func (s *Source) Name() sources.Name { return s.name }

// Reliability returns the adapter's trust weight.
func (s *Source) Reliability() float64 { return s.reliability }

// ListEntities fetches a page of characters and builds a full record for
// each. Metron only covers characters; other types return nothing.
func (s *Source) ListEntities(ctx context.Context, entityType entities.Type) ([]entities.RawRecord, error) {
	if entityType != entities.TypeCharacter {
		return nil, nil
	}

	var page characterPage
	listURL := fmt.Sprintf("%s/character/?per_page=%d", s.baseURL, pageSize)
	if err := s.getJSON(ctx, listURL, &page); err != nil {
		return nil, err
	}

	records := make([]entities.RawRecord, 0, len(page.Results))
	for _, char := range page.Results {
		record, err := s.buildRecord(ctx, char.ID)
		if err != nil {
			// One bad character should not sink the page.
			logging.Debug().Str("source", s.name.String()).Int("character_id", char.ID).Err(err).Msg("skipping character")
			continue
		}
		records = append(records, *record)
	}
	return records, nil
}

// GetEntity searches characters by name and returns the best match.
func (s *Source) GetEntity(ctx context.Context, name string, entityType entities.Type) (*entities.RawRecord, error) {
	if entityType != entities.TypeCharacter {
		return nil, &errors.SourceError{Source: s.name.String(), StatusCode: 404, Message: "metron only covers characters", Err: errors.ErrNotFound}
	}

	var page characterPage
	searchURL := fmt.Sprintf("%s/character/?name=%s", s.baseURL, url.QueryEscape(name))
	if err := s.getJSON(ctx, searchURL, &page); err != nil {
		return nil, err
	}
	if len(page.Results) == 0 {
		return nil, &errors.SourceError{Source: s.name.String(), StatusCode: 404, Message: "no character named " + name, Err: errors.ErrNotFound}
	}
	return s.buildRecord(ctx, page.Results[0].ID)
}

// HasEntity reports whether Metron knows the character, without building the
// full record.
func (s *Source) HasEntity(ctx context.Context, name string, entityType entities.Type) (bool, error) {
	if entityType != entities.TypeCharacter {
		return false, nil
	}

	var page characterPage
	searchURL := fmt.Sprintf("%s/character/?name=%s", s.baseURL, url.QueryEscape(name))
	if err := s.getJSON(ctx, searchURL, &page); err != nil {
		return false, err
	}
	return len(page.Results) > 0, nil
}

// FetchCoverURL resolves cover artwork by searching issues for the series
// and number. Implements the optional CoverFetcher capability.
func (s *Source) FetchCoverURL(ctx context.Context, comicTitle, issueNumber string) (string, error) {
	// First-appearance titles look like "Amazing Fantasy #15"; the series
	// search wants the bare name.
	seriesName := comicTitle
	if i := strings.LastIndex(comicTitle, " #"); i > 0 {
		seriesName = comicTitle[:i]
	}

	var page issuePage
	searchURL := fmt.Sprintf("%s/issue/?series_name=%s&number=%s",
		s.baseURL, url.QueryEscape(seriesName), url.QueryEscape(issueNumber))
	if err := s.getJSON(ctx, searchURL, &page); err != nil {
		return "", err
	}
	if len(page.Results) == 0 {
		return "", nil
	}
	return page.Results[0].Image, nil
}

// buildRecord fetches a character's detail and earliest issue and maps both
// onto a raw record.
func (s *Source) buildRecord(ctx context.Context, id int) (*entities.RawRecord, error) {
	cacheKey := fmt.Sprintf("char:%d", id)
	if cached, ok := s.cache.Get(cacheKey); ok {
		record := cached.(entities.RawRecord)
		return &record, nil
	}

	var char character
	detailURL := fmt.Sprintf("%s/character/%d/", s.baseURL, id)
	if err := s.getJSON(ctx, detailURL, &char); err != nil {
		return nil, err
	}

	record := entities.RawRecord{
		EntityID:   fmt.Sprintf("metron-char-%d", char.ID),
		EntityName: char.Name,
		EntityType: entities.TypeCharacter,
		Publisher:  "Unknown",
		Attributes: extractAttributes(char.Desc),
		Source: entities.SourceMeta{
			SourceName:     s.name.String(),
			Reliability:    s.reliability,
			SourceEntityID: fmt.Sprint(char.ID),
			SourceURL:      fmt.Sprintf("https://metron.cloud/character/%d/", char.ID),
		},
	}

	for _, team := range char.Teams {
		record.Relationships = append(record.Relationships, entities.Relationship{
			TargetEntityName: team.Name,
			TargetEntityType: entities.TypeTeam,
			RelationshipType: entities.RelationshipTeammate,
			Strength:         0.80,
		})
	}
	for _, creator := range char.Creators {
		record.Relationships = append(record.Relationships, entities.Relationship{
			TargetEntityName: creator.Name,
			TargetEntityType: entities.TypeCreator,
			RelationshipType: entities.RelationshipCreator,
			Strength:         1.0,
		})
	}

	if fa, err := s.firstAppearance(ctx, char.ID); err == nil {
		record.FirstAppearance = fa
	}

	s.cache.Set(cacheKey, record, gocache.DefaultExpiration)
	return &record, nil
}

// firstAppearance takes the character's earliest issue by cover date as the
// likely first appearance.
func (s *Source) firstAppearance(ctx context.Context, characterID int) (*entities.FirstAppearance, error) {
	var page issuePage
	issuesURL := fmt.Sprintf("%s/issue/?characters=%d&per_page=1&ordering=cover_date", s.baseURL, characterID)
	if err := s.getJSON(ctx, issuesURL, &page); err != nil {
		return nil, err
	}
	if len(page.Results) == 0 {
		return nil, nil
	}

	first := page.Results[0]
	fa := &entities.FirstAppearance{
		ComicTitle: fmt.Sprintf("%s #%s", first.Series.Name, first.Number),
		Issue:      first.Number,
		CoverURL:   first.Image,
	}
	if coverDate, err := time.Parse("2006-01-02", first.CoverDate); err == nil {
		fa.Year = coverDate.Year()
		fa.Month = coverDate.Month().String()
	}
	return fa, nil
}

// getJSON is one rate-limited, retried API call.
func (s *Source) getJSON(ctx context.Context, url string, target any) error {
	return sources.Retry(ctx, s.name, s.maxRetries, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return errors.ErrCanceled
		}
		return s.client.GetJSON(ctx, url, target)
	})
}

// keyword lists for attribute extraction from free-text descriptions.
var (
	powerKeywords    = []string{"super", "power", "strength", "speed", "flight", "invulnerable", "telepathy", "telekinesis"}
	weaknessKeywords = []string{"weakness", "vulnerable", "kryptonite", "mortal", "fear"}
)

// extractAttributes does keyword-based extraction over the description.
// Crude, but the consensus layer downstream weighs it against richer sources.
func extractAttributes(desc string) []entities.Attribute {
	if desc == "" {
		return nil
	}
	lower := strings.ToLower(desc)

	snippet := desc
	if len(snippet) > 100 {
		snippet = snippet[:100] + "..."
	}

	var attrs []entities.Attribute
	for _, kw := range powerKeywords {
		if strings.Contains(lower, kw) {
			attrs = append(attrs, entities.Attribute{
				Category:    entities.CategoryPower,
				Name:        strings.ToUpper(kw[:1]) + kw[1:],
				Description: "Extracted from: " + snippet,
				Level:       "secondary",
			})
		}
	}
	for _, kw := range weaknessKeywords {
		if strings.Contains(lower, kw) {
			attrs = append(attrs, entities.Attribute{
				Category:    entities.CategoryWeakness,
				Name:        strings.ToUpper(kw[:1]) + kw[1:],
				Description: "Extracted from: " + snippet,
				Level:       "primary",
			})
		}
	}
	return attrs
}
