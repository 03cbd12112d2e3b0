// Package kmz serializes resolved parcels into a KMZ archive: a KML 2.2
// document with one shared polygon style, zipped with the KML at the
// archive root as doc.kml.
package kmz

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image/color"
	"strings"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-kml/v2"

	"parcel-agent/internal/models"
)

const styleID = "parcel"

// Parcel overlay color #A23F97; fill at 40% alpha, outline opaque.
var (
	fillColor = color.RGBA{R: 0xA2, G: 0x3F, B: 0x97, A: 102}
	lineColor = color.RGBA{R: 0xA2, G: 0x3F, B: 0x97, A: 255}
)

const lineWidth = 3

// Encode builds the KMZ for a resolution result. An empty result still
// produces a valid archive with an empty document so callers can decide how
// to present "no parcels found".
func Encode(result *models.ResolutionResult, folderName string) ([]byte, error) {
	if folderName == "" {
		folderName = "parcels"
	}

	folder := kml.Folder(kml.Name(folderName))
	for _, parcel := range result.Parcels {
		folder.Add(placemark(parcel))
	}

	doc := kml.KML(kml.Document(
		kml.SharedStyle(styleID,
			kml.LineStyle(kml.Color(lineColor), kml.Width(lineWidth)),
			kml.PolyStyle(kml.Color(fillColor), kml.Fill(true)),
		),
		folder,
	))

	var kmlBuf bytes.Buffer
	if err := doc.WriteIndent(&kmlBuf, "", "  "); err != nil {
		return nil, fmt.Errorf("writing KML: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("doc.kml")
	if err != nil {
		return nil, fmt.Errorf("creating archive entry: %w", err)
	}
	if _, err := w.Write(kmlBuf.Bytes()); err != nil {
		return nil, fmt.Errorf("writing archive entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}

	return buf.Bytes(), nil
}

// placemark renders one parcel: a single Polygon, or a MultiGeometry when
// the parcel has multiple parts. Every placemark references the shared
// style rather than carrying its own.
func placemark(parcel models.ParcelFeature) kml.Element {
	children := []kml.Element{
		kml.Name(parcel.Name()),
		kml.StyleURL("#" + styleID),
	}
	if desc := description(parcel); desc != "" {
		children = append(children, kml.Description(desc))
	}

	switch len(parcel.Geometry) {
	case 0:
		// no geometry survived decoding; emit a bare named placemark
	case 1:
		children = append(children, polygon(parcel.Geometry[0]))
	default:
		parts := make([]kml.Element, 0, len(parcel.Geometry))
		for _, poly := range parcel.Geometry {
			parts = append(parts, polygon(poly))
		}
		children = append(children, kml.MultiGeometry(parts...))
	}

	return kml.Placemark(children...)
}

// polygon converts an orb polygon, outer ring first and hole rings after,
// into KML boundaries with lon,lat,0 coordinates.
func polygon(poly orb.Polygon) kml.Element {
	if len(poly) == 0 {
		return kml.Polygon()
	}

	children := []kml.Element{
		kml.OuterBoundaryIs(kml.LinearRing(kml.Coordinates(ringCoords(poly[0])...))),
	}
	for _, hole := range poly[1:] {
		children = append(children, kml.InnerBoundaryIs(kml.LinearRing(kml.Coordinates(ringCoords(hole)...))))
	}
	return kml.Polygon(children...)
}

func ringCoords(ring orb.Ring) []kml.Coordinate {
	coords := make([]kml.Coordinate, 0, len(ring))
	for _, pt := range ring {
		coords = append(coords, kml.Coordinate{Lon: pt[0], Lat: pt[1]})
	}
	return coords
}

// description lists the descriptive attributes the Parcels layer returned.
func description(parcel models.ParcelFeature) string {
	attrs := parcel.Attributes
	var lines []string
	add := func(key, value string) {
		if value != "" {
			lines = append(lines, key+": "+value)
		}
	}
	add("lot", attrs.Lot)
	add("plan", attrs.Plan)
	add("lotplan", parcel.LotPlan.Canonical())
	add("locality", attrs.Locality)
	add("shire_name", attrs.ShireName)
	add("tenure", attrs.Tenure)
	if attrs.AreaSqm > 0 {
		add("area_sqm", fmt.Sprintf("%.0f", attrs.AreaSqm))
	}
	return strings.Join(lines, "\n")
}
