// Package lotplan extracts Queensland lot/plan identifiers and street
// addresses from raw text, typically OCR output from scanned documents.
package lotplan

import (
	"regexp"
	"strings"

	"parcel-agent/internal/models"
)

// planRef matches a QLD plan reference: survey plan prefix + plan number.
const planRef = `((?:RP|SP|CP|DP|CH|CC|BUP|GTP|HBL|HBP)\s*\d+)`

var (
	// "Lot 2 RP12345", "L2 on SP181800", "lot 3, DP752379"
	lotOnPlanRe = regexp.MustCompile(`(?i)\bL(?:OT)?\s*(\d+[A-Z]?)\s*(?:ON\b)?\s*[,.:;]?\s*` + planRef + `\b`)
	// "3/RP71499"
	slashRe = regexp.MustCompile(`(?i)\b(\d+[A-Z]?)\s*/\s*` + planRef + `\b`)
	// "4RP30439", "2 RP12345"
	bareRe = regexp.MustCompile(`(?i)\b(\d+[A-Z]?)\s*` + planRef + `\b`)

	// exact single-token forms: "2RP12345", "2 RP12345", "2/RP12345"
	tokenRe = regexp.MustCompile(`(?i)^\s*(\d+[A-Z]?)\s*/?\s*` + planRef + `\s*$`)

	spaceRe = regexp.MustCompile(`\s+`)
)

// ParseToken parses a single lot/plan value, such as the lotplan attribute
// the MapServer layers return, into its lot and plan parts.
func ParseToken(s string) (models.LotPlan, bool) {
	m := tokenRe.FindStringSubmatch(s)
	if m == nil {
		return models.LotPlan{}, false
	}
	return models.LotPlan{
		Lot:  strings.ToUpper(m[1]),
		Plan: spaceRe.ReplaceAllString(strings.ToUpper(m[2]), ""),
	}, true
}

// Extract scans noisy text for lot/plan notations and returns the matches
// normalized to canonical form, deduplicated, in order of first appearance.
// Fragments that do not match any known notation are ignored; extraction is
// best effort and never fails.
func Extract(text string) []models.LotPlan {
	var tokens []models.LotPlan
	seen := make(map[string]bool)

	add := func(lot, plan string) {
		tok := models.LotPlan{
			Lot:  strings.ToUpper(lot),
			Plan: spaceRe.ReplaceAllString(strings.ToUpper(plan), ""),
		}
		if !seen[tok.Canonical()] {
			seen[tok.Canonical()] = true
			tokens = append(tokens, tok)
		}
	}

	for _, re := range []*regexp.Regexp{lotOnPlanRe, slashRe, bareRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			add(m[1], m[2])
		}
	}

	return tokens
}

// ParseList parses an explicit comma/space-separated token list (e.g. the
// lotplan query parameter "4 RP30439, 3 RP048958") with the same
// normalization as Extract.
func ParseList(s string) []models.LotPlan {
	// Commas are purely separators here; turning them into newlines keeps
	// the per-fragment patterns from gluing adjacent tokens together.
	return Extract(strings.ReplaceAll(s, ",", "\n"))
}
