// Package superhero adapts the SuperHero API (akabab.github.io/superhero-api)
// to the Source contract. The upstream publishes one static all.json dump,
// so the adapter loads it once and serves every query from memory.
package superhero

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/longboxhq/longbox/internal/transport"
	"github.com/longboxhq/longbox/pkg/entities"
	"github.com/longboxhq/longbox/pkg/errors"
	"github.com/longboxhq/longbox/pkg/sources"
)

const (
	// SourceName identifies this adapter in records and provenance rows.
	SourceName sources.Name = "superhero-api"

	// DefaultReliability is the SuperHero API's trust weight.
	DefaultReliability = 0.75

	DefaultBaseURL = "https://akabab.github.io/superhero-api/api"
	DefaultTimeout = 10 * time.Second
)

// hero is the upstream record shape.
type hero struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	Powerstats struct {
		Intelligence int `json:"intelligence"`
		Strength     int `json:"strength"`
		Speed        int `json:"speed"`
		Durability   int `json:"durability"`
		Power        int `json:"power"`
		Combat       int `json:"combat"`
	} `json:"powerstats"`
	Appearance struct {
		Race string `json:"race"`
	} `json:"appearance"`
	Biography struct {
		FullName        string   `json:"fullName"`
		Aliases         []string `json:"aliases"`
		PlaceOfBirth    string   `json:"placeOfBirth"`
		FirstAppearance string   `json:"firstAppearance"`
		Publisher       string   `json:"publisher"`
	} `json:"biography"`
	Connections struct {
		GroupAffiliation string `json:"groupAffiliation"`
		Relatives        string `json:"relatives"`
	} `json:"connections"`
	Images struct {
		SM string `json:"sm"`
		MD string `json:"md"`
		LG string `json:"lg"`
	} `json:"images"`
}

// Source is the SuperHero API adapter.
type Source struct {
	name        sources.Name
	reliability float64
	baseURL     string
	maxRetries  int
	client      *transport.Client

	mu     sync.Mutex
	heroes []hero
	loaded bool
}

var _ sources.Source = (*Source)(nil)

// New creates a SuperHero API adapter.
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
	timeout := DefaultTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	maxRetries := sources.DefaultMaxRetries
	if cfg.MaxRetries > 0 {
		maxRetries = cfg.MaxRetries
	}

	return &Source{
		name:        name,
		reliability: reliability,
		baseURL:     baseURL,
		maxRetries:  maxRetries,
		client:      transport.New(name.String(), &http.Client{Timeout: timeout}, nil),
	}
}

// Name returns the adapter identifier.
func (s *Source) Name() sources.Name { return s.name }

// Reliability returns the adapter's trust weight.
func (s *Source) Reliability() float64 { return s.reliability }

// ListEntities maps the full hero dump to records. Only characters exist
// upstream.
func (s *Source) ListEntities(ctx context.Context, entityType entities.Type) ([]entities.RawRecord, error) {
	if entityType != entities.TypeCharacter {
		return nil, nil
	}
	heroes, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]entities.RawRecord, 0, len(heroes))
	for _, h := range heroes {
		records = append(records, s.mapRecord(h))
	}
	return records, nil
}

// GetEntity finds a hero by name or slug.
func (s *Source) GetEntity(ctx context.Context, name string, entityType entities.Type) (*entities.RawRecord, error) {
	if entityType != entities.TypeCharacter {
		return nil, &errors.SourceError{Source: s.name.String(), StatusCode: 404, Message: "superhero-api only covers characters", Err: errors.ErrNotFound}
	}
	heroes, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(name)
	for _, h := range heroes {
		if strings.ToLower(h.Name) == needle || strings.ToLower(h.Biography.FullName) == needle {
			record := s.mapRecord(h)
			return &record, nil
		}
	}
	for _, h := range heroes {
		if strings.Contains(strings.ToLower(h.Slug), strings.ReplaceAll(needle, " ", "-")) {
			record := s.mapRecord(h)
			return &record, nil
		}
	}
	return nil, &errors.SourceError{Source: s.name.String(), StatusCode: 404, Message: "no hero named " + name, Err: errors.ErrNotFound}
}

// HasEntity reports whether the dump contains the character.
func (s *Source) HasEntity(ctx context.Context, name string, entityType entities.Type) (bool, error) {
	if entityType != entities.TypeCharacter {
		return false, nil
	}
	_, err := s.GetEntity(ctx, name, entityType)
	if errors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// load fetches all.json once and keeps it for the adapter's lifetime.
func (s *Source) load(ctx context.Context) ([]hero, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.heroes, nil
	}

	var heroes []hero
	err := sources.Retry(ctx, s.name, s.maxRetries, func() error {
		return s.client.GetJSON(ctx, s.baseURL+"/all.json", &heroes)
	})
	if err != nil {
		return nil, err
	}

	s.heroes = heroes
	s.loaded = true
	return s.heroes, nil
}

func (s *Source) mapRecord(h hero) entities.RawRecord {
	return entities.RawRecord{
		EntityID:        fmt.Sprintf("superhero-%d", h.ID),
		EntityName:      h.Name,
		EntityType:      entities.TypeCharacter,
		Publisher:       normalizePublisher(h.Biography.Publisher),
		FirstAppearance: extractFirstAppearance(h),
		Attributes:      extractAttributes(h),
		Relationships:   extractRelationships(h),
		Source: entities.SourceMeta{
			SourceName:     s.name.String(),
			Reliability:    s.reliability,
			SourceEntityID: fmt.Sprint(h.ID),
			SourceURL:      "https://www.superherodb.com/character/" + h.Slug + "/",
		},
	}
}

func extractFirstAppearance(h hero) *entities.FirstAppearance {
	title := h.Biography.FirstAppearance
	if title == "" || title == "-" {
		return nil
	}

	cover := h.Images.LG
	if cover == "" {
		cover = h.Images.MD
	}
	if cover == "" {
		cover = h.Images.SM
	}

	return &entities.FirstAppearance{
		ComicTitle: title,
		CoverURL:   cover,
		Franchise:  franchiseOf(h.Biography.Publisher),
	}
}

// powerstat → attribute mapping.
var statNames = []struct {
	stat     func(h hero) int
	name     string
	category entities.AttributeCategory
}{
	{func(h hero) int { return h.Powerstats.Intelligence }, "Intelligence", entities.CategoryPower},
	{func(h hero) int { return h.Powerstats.Strength }, "Super Strength", entities.CategoryPower},
	{func(h hero) int { return h.Powerstats.Speed }, "Super Speed", entities.CategoryPower},
	{func(h hero) int { return h.Powerstats.Durability }, "Durability", entities.CategoryPower},
	{func(h hero) int { return h.Powerstats.Power }, "Energy Projection", entities.CategoryPower},
	{func(h hero) int { return h.Powerstats.Combat }, "Combat Skills", entities.CategoryAbility},
}

func extractAttributes(h hero) []entities.Attribute {
	var attrs []entities.Attribute
	for _, m := range statNames {
		value := m.stat(h)
		if value <= 0 {
			continue
		}
		attrs = append(attrs, entities.Attribute{
			Category:    m.category,
			Name:        m.name,
			Description: fmt.Sprintf("%s level: %d/100", m.name, value),
			Level:       powerLevel(value),
		})
	}

	if pob := h.Biography.PlaceOfBirth; pob != "" && pob != "-" {
		attrs = append(attrs, entities.Attribute{
			Category:    entities.CategoryOrigin,
			Name:        "Place of Birth",
			Description: pob,
		})
	}

	if race := h.Appearance.Race; race != "" && race != "-" && race != "null" {
		attr := entities.Attribute{Name: "Species/Race", Description: race}
		if isRacePower(race) {
			attr.Category = entities.CategoryPower
		} else {
			attr.Category = entities.CategoryOrigin
			attr.OriginType = originType(race)
		}
		attrs = append(attrs, attr)
	}

	return attrs
}

var relativeRe = regexp.MustCompile(`^(.+?)\s*\((.+?)\)$`)

func extractRelationships(h hero) []entities.Relationship {
	var rels []entities.Relationship

	if groups := h.Connections.GroupAffiliation; groups != "" && groups != "-" {
		for _, team := range splitList(groups) {
			rels = append(rels, entities.Relationship{
				TargetEntityName: team,
				TargetEntityType: entities.TypeTeam,
				RelationshipType: entities.RelationshipTeammate,
			})
		}
	}

	if relatives := h.Connections.Relatives; relatives != "" && relatives != "-" {
		for _, relative := range splitList(relatives) {
			name, subtype := relative, ""
			if m := relativeRe.FindStringSubmatch(relative); m != nil {
				name, subtype = strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
			}
			rels = append(rels, entities.Relationship{
				TargetEntityName: name,
				TargetEntityType: entities.TypeCharacter,
				RelationshipType: entities.RelationshipFamily,
				Subtype:          subtype,
			})
		}
	}

	return rels
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func powerLevel(value int) string {
	switch {
	case value >= 70:
		return "primary"
	case value >= 40:
		return "secondary"
	default:
		return "situational"
	}
}

var powerRaces = []string{"kryptonian", "asgardian", "eternal", "symbiote", "speedster", "atlantean"}

func isRacePower(race string) bool {
	lower := strings.ToLower(race)
	for _, pr := range powerRaces {
		if strings.Contains(lower, pr) {
			return true
		}
	}
	return false
}

func originType(race string) string {
	lower := strings.ToLower(race)
	switch {
	case strings.Contains(lower, "mutant") || strings.Contains(lower, "inhuman"):
		return "mutation"
	case strings.Contains(lower, "god") || strings.Contains(lower, "asgardian"):
		return "magic"
	case strings.Contains(lower, "alien") || strings.Contains(lower, "kryptonian"):
		return "birth"
	case strings.Contains(lower, "android") || strings.Contains(lower, "cyborg"):
		return "technology"
	default:
		return "birth"
	}
}

func normalizePublisher(publisher string) string {
	if publisher == "" || publisher == "-" {
		return ""
	}
	return franchiseOf(publisher)
}

func franchiseOf(publisher string) string {
	lower := strings.ToLower(publisher)
	switch {
	case publisher == "" || publisher == "-":
		return ""
	case strings.Contains(lower, "marvel"):
		return "Marvel"
	case strings.Contains(lower, "dc"):
		return "DC"
	case strings.Contains(lower, "image"):
		return "Image"
	case strings.Contains(lower, "dark horse"):
		return "Dark Horse"
	default:
		return publisher
	}
}
