// Package geojson parses uploaded GeoJSON FeatureCollections into the line
// features the registry ingests, and builds the FeatureCollections the query
// API returns. Only LineString geometries are ingested; other geometry kinds
// are skipped during extraction.
package geojson

import (
	"encoding/json"
)

// GeometryLineString is the GeoJSON type tag for line geometries.
const GeometryLineString = "LineString"

// ParseError reports GeoJSON input that cannot be ingested. It is raised
// before any storage is touched, so it never requires a rollback.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "geojson: " + e.Reason }

// LineString is an ordered sequence of lon/lat coordinate pairs.
type LineString [][]float64

// Geometry is a GeoJSON geometry object restricted to the kinds the
// registry understands.
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates LineString `json:"coordinates"`
}

// Feature is a single GeoJSON feature. ID is empty on input and set to the
// edge identity on output.
type Feature struct {
	Type       string         `json:"type"`
	ID         string         `json:"id,omitempty"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// FeatureCollection is the fixed output envelope of the query API.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection returns an empty FeatureCollection with the type tag
// set and a non-nil feature slice so it serializes as "features": [].
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{
		Type:     "FeatureCollection",
		Features: []Feature{},
	}
}

// rawFeature mirrors the incoming feature shape without committing to a
// geometry kind, so unsupported kinds can be skipped without decode errors.
type rawFeature struct {
	Type       string         `json:"type"`
	Geometry   *rawGeometry   `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type rawGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type rawCollection struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

// Extract parses a GeoJSON FeatureCollection and returns its LineString
// features in input order, each paired with its attribute map (empty when
// the feature carries no properties).
//
// It fails with *ParseError when the payload is not valid JSON, the top
// level is not a FeatureCollection, a LineString carries no coordinates, or
// no feature qualifies after skipping unsupported geometry kinds.
func Extract(raw []byte) ([]Feature, error) {
	var doc rawCollection
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ParseError{Reason: "invalid JSON"}
	}
	if doc.Type != "FeatureCollection" {
		return nil, &ParseError{Reason: "expected GeoJSON FeatureCollection"}
	}

	var out []Feature
	for _, feat := range doc.Features {
		if feat.Type != "Feature" || feat.Geometry == nil {
			continue
		}
		if feat.Geometry.Type != GeometryLineString {
			// Points, polygons and multi-geometries are skipped, not errors.
			continue
		}
		var coords LineString
		if len(feat.Geometry.Coordinates) > 0 {
			if err := json.Unmarshal(feat.Geometry.Coordinates, &coords); err != nil {
				return nil, &ParseError{Reason: "malformed LineString coordinates"}
			}
		}
		if len(coords) == 0 {
			return nil, &ParseError{Reason: "LineString has empty coordinates"}
		}
		props := feat.Properties
		if props == nil {
			props = map[string]any{}
		}
		out = append(out, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        GeometryLineString,
				Coordinates: coords,
			},
			Properties: props,
		})
	}

	if len(out) == 0 {
		return nil, &ParseError{Reason: "no usable features: no LineString geometry found"}
	}
	return out, nil
}
