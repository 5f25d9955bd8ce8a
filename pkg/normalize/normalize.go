// Package normalize decides whether two entity names denote the same
// real-world entity, independent of which source produced them. It
// canonicalizes names into matching keys, extracts aliases, scores string
// similarity, and clusters raw records into per-entity groups.
//
// Canonical keys drive matching only; they are never stored as identity.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	parentheticalRe = regexp.MustCompile(`\([^)]*\)`)
	articleRe       = regexp.MustCompile(`^(?i:the|a|an)\s+`)
	epithetRe       = regexp.MustCompile(`(?i)\b(amazing|astonishing|incredible|spectacular|invincible|mighty|ultimate|superior|sensational|fantastic|uncanny|extraordinary|all-new|all-star)\s+`)
	titleRe         = regexp.MustCompile(`(?i)\b(doctor|dr|mister|mr|mistress|mrs|miss|ms|professor|prof|captain|capt|general|gen|major|maj|lieutenant|lt|sergeant|sgt|admiral|adm)\.?\s*`)
	punctRe         = regexp.MustCompile(`[^a-z0-9\s]`)
	spaceRe         = regexp.MustCompile(`\s+`)

	// stripMarks removes combining marks after NFD decomposition, so
	// "Hernández" and "Hernandez" canonicalize identically.
	stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Canonicalize reduces an entity name to a kebab-case matching key.
//
// Examples:
//
//	"Spider-Man (Peter Parker)" → "spider-man"
//	"The Amazing Spider-Man"    → "spider-man"
//	"Strange, Doctor"           → "strange"
//	"Lantern, The Green"        → "green-lantern"
//
// Articles, epithets, and titles are stripped only when the remainder is
// non-empty, so "Doctor" alone stays "doctor". Hyphens act as word
// separators, which keeps the function idempotent on its own output.
func Canonicalize(name string) string {
	canonical := strings.ToLower(foldDiacritics(name))

	// Parenthetical qualifiers become aliases, not part of the key.
	canonical = parentheticalRe.ReplaceAllString(canonical, "")

	// Invert "Last, First" forms.
	if strings.Contains(canonical, ",") {
		parts := strings.Split(canonical, ",")
		if len(parts) == 2 {
			canonical = strings.TrimSpace(parts[1]) + " " + strings.TrimSpace(parts[0])
		}
	}

	canonical = strings.TrimSpace(canonical)

	if stripped := articleRe.ReplaceAllString(canonical, ""); strings.TrimSpace(stripped) != "" {
		canonical = stripped
	}
	if stripped := epithetRe.ReplaceAllString(canonical, ""); strings.TrimSpace(stripped) != "" {
		canonical = stripped
	}
	if stripped := titleRe.ReplaceAllString(canonical, ""); strings.TrimSpace(stripped) != "" {
		canonical = stripped
	}

	// Hyphens separate words; all other punctuation is dropped.
	canonical = strings.ReplaceAll(canonical, "-", " ")
	canonical = punctRe.ReplaceAllString(canonical, "")
	canonical = strings.TrimSpace(spaceRe.ReplaceAllString(canonical, " "))

	return strings.ReplaceAll(canonical, " ", "-")
}

// ExtractAliases returns the canonical matching keys a name is known by:
// the canonicalized main name plus the canonicalized parenthetical content
// when present. Deliberately conservative — no token or colon splitting —
// so "Green Lantern" and "Green Lantern Corps" never collide.
func ExtractAliases(name string) []string {
	var aliases []string

	if m := regexp.MustCompile(`\(([^)]+)\)`).FindStringSubmatch(name); m != nil {
		if alias := Canonicalize(m[1]); alias != "" {
			aliases = append(aliases, alias)
		}
	}

	main := strings.TrimSpace(parentheticalRe.ReplaceAllString(name, ""))
	if canonical := Canonicalize(main); canonical != "" {
		aliases = append(aliases, canonical)
	}

	return dedupe(aliases)
}

// SelectBestName picks the most complete name from a group: a name carrying
// a parenthetical qualifier wins when exactly one candidate has one,
// otherwise the longest string is treated as most complete.
func SelectBestName(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}

	var withParenthetical []string
	for _, n := range names {
		if strings.Contains(n, "(") && strings.Contains(n, ")") {
			withParenthetical = append(withParenthetical, n)
		}
	}
	if len(withParenthetical) == 1 {
		return withParenthetical[0]
	}

	best := names[0]
	for _, n := range names[1:] {
		if len(n) > len(best) {
			best = n
		}
	}
	return best
}

func foldDiacritics(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		return s
	}
	return folded
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
