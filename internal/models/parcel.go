package models

import (
	"strings"

	"github.com/paulmach/orb"
)

// LotPlan is a Queensland cadastral identifier: a lot number plus a plan
// reference (e.g. lot "2" on plan "RP12345").
type LotPlan struct {
	Lot  string `json:"lot"`
	Plan string `json:"plan"`
}

// Canonical returns the deterministic string form used for deduplication
// and upstream attribute filters: uppercase, no internal whitespace.
func (lp LotPlan) Canonical() string {
	return strings.ToUpper(lp.Lot) + strings.ToUpper(lp.Plan)
}

// Display returns the human-readable "2 RP12345" form.
func (lp LotPlan) Display() string {
	if lp.Lot == "" {
		return lp.Plan
	}
	return lp.Lot + " " + lp.Plan
}

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// AddressQuery is a structured Australian street address. All fields are
// optional; Original holds the raw line the structure was parsed from.
type AddressQuery struct {
	PropertyName string `json:"property_name,omitempty"`
	HouseNumber  *int   `json:"house_number,omitempty"`
	Street       string `json:"street,omitempty"`
	Suffix       string `json:"suffix,omitempty"`
	Suburb       string `json:"suburb,omitempty"`
	State        string `json:"state,omitempty"`
	Postcode     *int   `json:"postcode,omitempty"`
	Original     string `json:"original,omitempty"`
}

// Label returns a display name for the address, preferring the raw line.
func (a AddressQuery) Label() string {
	label := a.Original
	if label == "" {
		parts := []string{}
		if a.Street != "" {
			parts = append(parts, strings.TrimSpace(a.Street+" "+a.Suffix))
		}
		if a.Suburb != "" {
			parts = append(parts, a.Suburb)
		}
		if a.State != "" {
			parts = append(parts, a.State)
		}
		label = strings.Join(parts, ", ")
	}
	if a.PropertyName != "" && !strings.HasPrefix(strings.ToLower(label), strings.ToLower(a.PropertyName)) {
		label = strings.TrimSpace(a.PropertyName + " " + label)
	}
	return label
}

// ParcelFeature is one resolved cadastral unit. Geometry is a multipolygon
// in lng/lat order with the outer ring first in each polygon and any hole
// rings after it. Features live only for the duration of one request.
type ParcelFeature struct {
	LotPlan    LotPlan
	ObjectID   int64
	Geometry   orb.MultiPolygon
	Attributes ParcelAttributes
}

// ParcelAttributes holds the descriptive fields the Parcels layer returns.
type ParcelAttributes struct {
	Lot       string
	Plan      string
	Locality  string
	ShireName string
	Tenure    string
	AreaSqm   float64
}

// Name returns the placemark label for the parcel.
func (f ParcelFeature) Name() string {
	if c := f.LotPlan.Canonical(); c != "" {
		return c
	}
	return "parcel"
}

// ResolutionResult accumulates resolved parcels for one request, plus the
// tokens that failed to resolve so callers can report partial failure.
type ResolutionResult struct {
	Parcels []ParcelFeature
	Failed  []LotPlan
}

// Add appends a parcel unless an identical one was already recorded.
// Duplicates are features whose canonical lot/plan matches AND whose
// geometry is equal vertex for vertex; records sharing a lot/plan with
// differing geometry are distinct survey records and both are kept.
func (r *ResolutionResult) Add(f ParcelFeature) {
	for _, existing := range r.Parcels {
		if existing.LotPlan.Canonical() == f.LotPlan.Canonical() &&
			orb.Equal(existing.Geometry, f.Geometry) {
			return
		}
	}
	r.Parcels = append(r.Parcels, f)
}

// AddFailed records tokens whose upstream lookup could not complete.
func (r *ResolutionResult) AddFailed(tokens ...LotPlan) {
	for _, t := range tokens {
		dup := false
		for _, existing := range r.Failed {
			if existing.Canonical() == t.Canonical() {
				dup = true
				break
			}
		}
		if !dup {
			r.Failed = append(r.Failed, t)
		}
	}
}

// Partial reports whether some tokens resolved while others failed.
func (r *ResolutionResult) Partial() bool {
	return len(r.Failed) > 0 && len(r.Parcels) > 0
}

// Empty reports whether nothing resolved at all.
func (r *ResolutionResult) Empty() bool {
	return len(r.Parcels) == 0
}
