package arcgis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"parcel-agent/internal/models"
)

const parcelsResponse = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"geometry": {
				"type": "Polygon",
				"coordinates": [
					[[152.0, -27.0], [152.002, -27.0], [152.002, -27.002], [152.0, -27.002], [152.0, -27.0]],
					[[152.0005, -27.0005], [152.001, -27.0005], [152.001, -27.001], [152.0005, -27.0005]]
				]
			},
			"properties": {
				"objectid": 11, "lotplan": "4RP30439", "lot": "4", "plan": "RP30439",
				"locality": "DALBY", "shire_name": "WESTERN DOWNS", "tenure": "FREEHOLD", "lot_area": 1234.5
			}
		},
		{
			"type": "Feature",
			"geometry": null,
			"properties": {"objectid": 12, "lotplan": "9SP181800"}
		},
		{
			"type": "Feature",
			"geometry": {
				"type": "MultiPolygon",
				"coordinates": [
					[[[153.0, -26.0], [153.001, -26.0], [153.001, -26.001], [153.0, -26.0]]],
					[[[153.01, -26.01], [153.011, -26.01], [153.011, -26.011], [153.01, -26.01]]]
				]
			},
			"properties": {"objectid": 13, "lotplan": "3RP048958"}
		}
	]
}`

const addressResponse = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [151.2, -27.18]},
			"properties": {"objectid": 1, "lotplan": "4RP30439", "latitude": -27.18, "longitude": 151.2}
		},
		{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [151.2, -27.18]},
			"properties": {"objectid": 2, "lotplan": "4RP30439", "latitude": -27.181, "longitude": 151.201}
		},
		{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [151.3, -27.19]},
			"properties": {"objectid": 3, "lotplan": "5RP30439", "latitude": -27.19, "longitude": 151.3}
		}
	]
}`

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:      srv.URL,
		AddressLayer: 0,
		ParcelsLayer: 4,
		Timeout:      2 * time.Second,
		MaxRetries:   2,
		MaxResults:   100,
	}, nil)
}

func TestFetchParcels_BuildsBatchFilter(t *testing.T) {
	var gotPath, gotWhere, gotOutSR string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotWhere = r.URL.Query().Get("where")
		gotOutSR = r.URL.Query().Get("outSR")
		w.Write([]byte(parcelsResponse))
	}))

	tokens := []models.LotPlan{
		{Lot: "4", Plan: "RP30439"},
		{Lot: "3", Plan: "RP048958"},
	}
	parcels, err := c.FetchParcels(context.Background(), tokens)
	if err != nil {
		t.Fatalf("FetchParcels: %v", err)
	}

	if gotPath != "/4/query" {
		t.Fatalf("expected parcels layer path, got %q", gotPath)
	}
	if gotWhere != "UPPER(lotplan) IN ('4RP30439','3RP048958')" {
		t.Fatalf("unexpected where clause: %q", gotWhere)
	}
	if gotOutSR != "4326" {
		t.Fatalf("expected outSR=4326, got %q", gotOutSR)
	}

	// null-geometry feature is skipped
	if len(parcels) != 2 {
		t.Fatalf("expected 2 parcels, got %d", len(parcels))
	}

	first := parcels[0]
	if first.LotPlan.Canonical() != "4RP30439" {
		t.Fatalf("lotplan: %q", first.LotPlan.Canonical())
	}
	if first.Attributes.Locality != "DALBY" || first.Attributes.AreaSqm != 1234.5 {
		t.Fatalf("attributes: %+v", first.Attributes)
	}
	// ring order preserved: outer ring plus its single hole
	if len(first.Geometry) != 1 || len(first.Geometry[0]) != 2 {
		t.Fatalf("expected one polygon with two rings, got %+v", first.Geometry)
	}
	if first.Geometry[0][0][0][0] != 152.0 || first.Geometry[0][0][0][1] != -27.0 {
		t.Fatalf("vertex order not preserved: %+v", first.Geometry[0][0][0])
	}

	second := parcels[1]
	if second.LotPlan.Canonical() != "3RP048958" {
		t.Fatalf("lotplan: %q", second.LotPlan.Canonical())
	}
	if len(second.Geometry) != 2 {
		t.Fatalf("expected multipolygon with two parts, got %d", len(second.Geometry))
	}
}

func TestFetchParcels_EmptyTokens(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty token list")
	}))

	parcels, err := c.FetchParcels(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchParcels: %v", err)
	}
	if len(parcels) != 0 {
		t.Fatalf("expected no parcels, got %d", len(parcels))
	}
}

func TestResolveAddress(t *testing.T) {
	var gotWhere string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/0/query" {
			t.Fatalf("expected address layer path, got %q", r.URL.Path)
		}
		gotWhere = r.URL.Query().Get("where")
		w.Write([]byte(addressResponse))
	}))

	num := 145
	q := models.AddressQuery{
		HouseNumber: &num,
		Street:      "OLD GYMPIE",
		Suburb:      "CABOOLTURE",
		State:       "QLD",
	}
	tokens, pt, err := c.ResolveAddress(context.Background(), q, false)
	if err != nil {
		t.Fatalf("ResolveAddress: %v", err)
	}

	if !strings.Contains(gotWhere, "UPPER(street_number) = UPPER('145')") {
		t.Fatalf("where clause missing house number: %q", gotWhere)
	}
	if !strings.Contains(gotWhere, "UPPER(locality) = UPPER('CABOOLTURE')") {
		t.Fatalf("where clause missing suburb: %q", gotWhere)
	}

	// two records share a lotplan; tokens come back deduplicated in order
	if len(tokens) != 2 || tokens[0].Canonical() != "4RP30439" || tokens[1].Canonical() != "5RP30439" {
		got := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			got = append(got, tok.Canonical())
		}
		t.Fatalf("expected [4RP30439 5RP30439], got %v", got)
	}

	if pt == nil || pt.Lat != -27.18 || pt.Lng != 151.2 {
		t.Fatalf("expected first record's point, got %+v", pt)
	}
}

func TestResolveAddress_MissingHouseNumber(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	_, _, err := c.ResolveAddress(context.Background(), models.AddressQuery{Street: "MAIN"}, false)
	if err != ErrMissingHouseNumber {
		t.Fatalf("expected ErrMissingHouseNumber, got %v", err)
	}
}

func TestQuery_RetriesTransientFailures(t *testing.T) {
	attempts := 0
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))

	_, err := c.FetchParcels(context.Background(), []models.LotPlan{{Lot: "1", Plan: "RP1"}})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestQuery_DoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := c.FetchParcels(context.Background(), []models.LotPlan{{Lot: "1", Plan: "RP1"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestQuery_ExhaustedRetries(t *testing.T) {
	attempts := 0
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.FetchParcels(context.Background(), []models.LotPlan{{Lot: "1", Plan: "RP1"}})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestSQLEscape(t *testing.T) {
	if got := sqlEscape("O'Brien"); got != "O''Brien" {
		t.Fatalf("sqlEscape: %q", got)
	}
}
