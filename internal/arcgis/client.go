// Package arcgis queries the Queensland Land Parcel Property Framework
// MapServer: the Address layer for street-address resolution and the
// Parcels layer for cadastral boundary geometry.
package arcgis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"parcel-agent/internal/lotplan"
	"parcel-agent/internal/metrics"
	"parcel-agent/internal/models"
)

// ErrMissingHouseNumber is returned when a structured address has no house
// number and relaxed matching was not requested; matching a whole street
// would flood the result set.
var ErrMissingHouseNumber = errors.New("address has no house number")

// Default QLD spatial services endpoint and layer indexes.
const (
	DefaultBaseURL      = "https://spatial-gis.information.qld.gov.au/arcgis/rest/services/PlanningCadastre/LandParcelPropertyFramework/MapServer"
	DefaultAddressLayer = 0
	DefaultParcelsLayer = 4
)

// Config holds the process-wide upstream settings. It is immutable after
// construction; per-request state never lives here.
type Config struct {
	BaseURL      string
	AddressLayer int
	ParcelsLayer int
	AuthToken    string
	Timeout      time.Duration
	MaxRetries   int
	MaxResults   int
}

// DefaultConfig returns settings suitable for the public QLD MapServer.
func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		AddressLayer: DefaultAddressLayer,
		ParcelsLayer: DefaultParcelsLayer,
		Timeout:      8 * time.Second,
		MaxRetries:   2,
		MaxResults:   1000,
	}
}

// Client fetches address and parcel records from the MapServer.
type Client struct {
	httpClient *http.Client
	cfg        Config
	log        *slog.Logger
}

// NewClient creates a MapServer client from the given config, filling in
// zero values from the defaults.
func NewClient(cfg Config, log *slog.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		log:        log,
	}
}

// ResolveAddress queries the Address layer for records matching the given
// structured address and returns the lot/plan tokens they reference,
// deduplicated in upstream order, plus the first record's coordinates for
// point-intersection fallback. When relax is false a missing house number
// is rejected up front rather than matching a whole street.
func (c *Client) ResolveAddress(ctx context.Context, q models.AddressQuery, relax bool) ([]models.LotPlan, *models.Point, error) {
	where, err := addressWhere(q, relax)
	if err != nil {
		return nil, nil, err
	}

	params := url.Values{}
	params.Set("where", where)
	params.Set("resultRecordCount", fmt.Sprintf("%d", c.cfg.MaxResults))

	fc, err := c.query(ctx, c.cfg.AddressLayer, params)
	if err != nil {
		return nil, nil, fmt.Errorf("address lookup: %w", err)
	}

	var tokens []models.LotPlan
	var pt *models.Point
	seen := make(map[string]bool)
	for _, f := range fc.Features {
		props := f.Properties
		if lp := strings.TrimSpace(props.MustString("lotplan", "")); lp != "" {
			tok, ok := lotplan.ParseToken(lp)
			if ok && !seen[tok.Canonical()] {
				seen[tok.Canonical()] = true
				tokens = append(tokens, tok)
			}
		}
		if pt == nil {
			lat := props.MustFloat64("latitude", 0)
			lng := props.MustFloat64("longitude", 0)
			if lat != 0 && lng != 0 {
				pt = &models.Point{Lat: lat, Lng: lng}
			}
		}
	}

	return tokens, pt, nil
}

// FetchParcels queries the Parcels layer for all parcels matching the given
// tokens in a single attribute-filter request. Callers are responsible for
// keeping the batch within the service's filter-length limits.
func (c *Client) FetchParcels(ctx context.Context, tokens []models.LotPlan) ([]models.ParcelFeature, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	values := make([]string, 0, len(tokens))
	for _, t := range tokens {
		values = append(values, "'"+sqlEscape(t.Canonical())+"'")
	}
	where := fmt.Sprintf("UPPER(lotplan) IN (%s)", strings.Join(values, ","))

	params := url.Values{}
	params.Set("where", where)
	params.Set("resultRecordCount", fmt.Sprintf("%d", c.cfg.MaxResults))

	fc, err := c.query(ctx, c.cfg.ParcelsLayer, params)
	if err != nil {
		return nil, fmt.Errorf("parcel lookup: %w", err)
	}

	return decodeParcels(fc), nil
}

// FetchParcelsAtPoint queries the Parcels layer for parcels intersecting
// the given WGS84 point. Used as a fallback when an address record carries
// coordinates but its lot/plan yields no parcels.
func (c *Client) FetchParcelsAtPoint(ctx context.Context, pt models.Point) ([]models.ParcelFeature, error) {
	geom, err := json.Marshal(map[string]any{
		"x":                pt.Lng,
		"y":                pt.Lat,
		"spatialReference": map[string]any{"wkid": 4326},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding point geometry: %w", err)
	}

	params := url.Values{}
	params.Set("where", "1=1")
	params.Set("geometry", string(geom))
	params.Set("geometryType", "esriGeometryPoint")
	params.Set("inSR", "4326")
	params.Set("spatialRel", "esriSpatialRelIntersects")
	params.Set("resultRecordCount", "50")

	fc, err := c.query(ctx, c.cfg.ParcelsLayer, params)
	if err != nil {
		return nil, fmt.Errorf("point lookup: %w", err)
	}

	return decodeParcels(fc), nil
}

// query performs a GET against the given layer's query endpoint with the
// shared parameters every call needs, retrying transient failures.
func (c *Client) query(ctx context.Context, layer int, params url.Values) (_ *geojson.FeatureCollection, err error) {
	layerLabel := strconv.Itoa(layer)
	metrics.UpstreamRequestsTotal.WithLabelValues(layerLabel).Inc()
	start := time.Now()
	defer func() {
		metrics.UpstreamDurationMs.Observe(float64(time.Since(start).Milliseconds()))
		if err != nil {
			metrics.UpstreamFailuresTotal.WithLabelValues(layerLabel).Inc()
		}
	}()

	params.Set("f", "geojson")
	params.Set("outFields", "*")
	params.Set("returnGeometry", "true")
	params.Set("outSR", "4326")
	if c.cfg.AuthToken != "" {
		params.Set("token", c.cfg.AuthToken)
	}

	reqURL := fmt.Sprintf("%s/%d/query?%s", strings.TrimRight(c.cfg.BaseURL, "/"), layer, params.Encode())

	resp, err := c.doWithRetry(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("MapServer returned %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return fc, nil
}

// decodeParcels converts upstream GeoJSON features into parcel features,
// skipping records with missing or non-areal geometry. Ring and vertex
// order are preserved as returned by the service.
func decodeParcels(fc *geojson.FeatureCollection) []models.ParcelFeature {
	parcels := make([]models.ParcelFeature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}

		var geom orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			geom = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			geom = g
		default:
			continue
		}

		props := f.Properties
		parcel := models.ParcelFeature{
			ObjectID: int64(props.MustFloat64("objectid", 0)),
			Geometry: geom,
			Attributes: models.ParcelAttributes{
				Lot:       props.MustString("lot", ""),
				Plan:      props.MustString("plan", ""),
				Locality:  props.MustString("locality", ""),
				ShireName: props.MustString("shire_name", ""),
				Tenure:    props.MustString("tenure", ""),
				AreaSqm:   props.MustFloat64("lot_area", 0),
			},
		}
		if lp := strings.TrimSpace(props.MustString("lotplan", "")); lp != "" {
			if tok, ok := lotplan.ParseToken(lp); ok {
				parcel.LotPlan = tok
			} else {
				parcel.LotPlan = models.LotPlan{Plan: strings.ToUpper(lp)}
			}
		} else if parcel.Attributes.Lot != "" || parcel.Attributes.Plan != "" {
			parcel.LotPlan = models.LotPlan{
				Lot:  strings.ToUpper(parcel.Attributes.Lot),
				Plan: strings.ToUpper(parcel.Attributes.Plan),
			}
		}

		parcels = append(parcels, parcel)
	}
	return parcels
}

// addressWhere builds the Address layer attribute filter from the
// structured address, UPPER-matching each populated field.
func addressWhere(q models.AddressQuery, relax bool) (string, error) {
	var parts []string

	if q.Original != "" {
		parts = append(parts, fmt.Sprintf("UPPER(address) = UPPER('%s')", sqlEscape(q.Original)))
	}
	if q.HouseNumber != nil {
		parts = append(parts, fmt.Sprintf("UPPER(street_number) = UPPER('%d')", *q.HouseNumber))
	} else if !relax {
		return "", ErrMissingHouseNumber
	}
	if q.Street != "" {
		parts = append(parts, fmt.Sprintf("UPPER(street_name) LIKE '%%%s%%'", sqlEscape(strings.ToUpper(q.Street))))
	}
	if q.Suffix != "" {
		s := sqlEscape(strings.ToUpper(q.Suffix))
		parts = append(parts, fmt.Sprintf("(UPPER(street_type) LIKE '%%%s%%' OR UPPER(street_suffix) LIKE '%%%s%%')", s, s))
	}
	if q.Suburb != "" {
		parts = append(parts, fmt.Sprintf("UPPER(locality) = UPPER('%s')", sqlEscape(q.Suburb)))
	}
	if q.State != "" {
		parts = append(parts, fmt.Sprintf("UPPER(state) = UPPER('%s')", sqlEscape(q.State)))
	}

	if len(parts) == 0 {
		return "1=1", nil
	}
	return strings.Join(parts, " AND "), nil
}

func sqlEscape(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}
