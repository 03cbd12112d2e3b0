package lotplan

import (
	"regexp"
	"strconv"
	"strings"

	"parcel-agent/internal/models"
)

const maxAddresses = 10

// addressLineRe matches one Australian street address line: an optional
// quoted property name, optional house number, street name, optional street
// type, then comma-separated suburb, state and optional postcode.
var addressLineRe = regexp.MustCompile(`(?i)(?:^"(?P<prop>[^"]+)"\s*,?\s+)?` +
	`(?:(?P<number>\d{1,5}[A-Z]?)\s+)?` +
	`(?P<street>[A-Za-z0-9 .'\-]+?)\s+` +
	`(?P<suffix>Road|Rd|Street|St|Avenue|Ave|Highway|Hwy|Drive|Dr|Court|Ct|Place|Pl|Boulevard|Blvd|Way|Lane|Ln|Crescent|Cres|Terrace|Tce|Close|Cl)?` +
	`\s*,\s*(?P<suburb>[A-Za-z ]+?)(?:\s*,\s*|\s+)` +
	`(?P<state>QLD|NSW|VIC|SA|WA|TAS|NT|ACT)\b(?:\s+(?P<pcode>\d{4}))?\s*$`)

var digitsRe = regexp.MustCompile(`[^0-9]`)

// ParseAddresses scans text line by line for structured Australian street
// addresses. Lines that do not match are skipped; at most a handful of
// candidates are returned since downstream lookups are one query each.
func ParseAddresses(text string) []models.AddressQuery {
	var results []models.AddressQuery

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		// OCR renders dashes inconsistently; fold the variants before matching.
		normalized := strings.ReplaceAll(strings.ReplaceAll(line, " – ", " - "), "—", "-")

		m := addressLineRe.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		groups := matchGroups(addressLineRe, m)

		q := models.AddressQuery{
			Original:     line,
			PropertyName: strings.Trim(groups["prop"], ` "'`),
			Street:       strings.ToUpper(collapseDashes(groups["street"])),
			Suffix:       strings.ToUpper(groups["suffix"]),
			Suburb:       strings.ToUpper(strings.TrimSpace(groups["suburb"])),
			State:        strings.ToUpper(groups["state"]),
		}
		if num := digitsRe.ReplaceAllString(groups["number"], ""); num != "" {
			if n, err := strconv.Atoi(num); err == nil {
				q.HouseNumber = &n
			}
		}
		if groups["pcode"] != "" {
			if p, err := strconv.Atoi(groups["pcode"]); err == nil {
				q.Postcode = &p
			}
		}

		results = append(results, q)
		if len(results) >= maxAddresses {
			break
		}
	}

	return results
}

func matchGroups(re *regexp.Regexp, m []string) map[string]string {
	groups := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(m) {
			groups[name] = m[i]
		}
	}
	return groups
}

func collapseDashes(s string) string {
	s = strings.ReplaceAll(s, " - ", "-")
	s = strings.ReplaceAll(s, " -", "-")
	s = strings.ReplaceAll(s, "- ", "-")
	return s
}
