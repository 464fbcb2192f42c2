package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Polygon represents a GeoJSON Polygon geometry in WGS84 (SRID 4326).
// Coordinates follow the GeoJSON structure: [rings][points][lon,lat],
// with one exterior ring followed by zero or more hole rings.
type Polygon struct {
	Coordinates [][][2]float64
}

// IsEmpty reports whether the polygon has no rings.
func (p Polygon) IsEmpty() bool {
	return len(p.Coordinates) == 0
}

// Bounds returns the bounding box [minLon, minLat, maxLon, maxLat] of the
// exterior ring. Returns the zero box for an empty polygon.
func (p Polygon) Bounds() [4]float64 {
	if p.IsEmpty() || len(p.Coordinates[0]) == 0 {
		return [4]float64{}
	}
	first := p.Coordinates[0][0]
	b := [4]float64{first[0], first[1], first[0], first[1]}
	for _, pt := range p.Coordinates[0] {
		if pt[0] < b[0] {
			b[0] = pt[0]
		}
		if pt[1] < b[1] {
			b[1] = pt[1]
		}
		if pt[0] > b[2] {
			b[2] = pt[0]
		}
		if pt[1] > b[3] {
			b[3] = pt[1]
		}
	}
	return b
}

// MarshalJSON implements json.Marshaler, emitting GeoJSON for API responses.
func (p Polygon) MarshalJSON() ([]byte, error) {
	geom := struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	}{
		Type:        "Polygon",
		Coordinates: p.Coordinates,
	}
	return json.Marshal(geom)
}

// UnmarshalJSON implements json.Unmarshaler for parsing GeoJSON input.
func (p *Polygon) UnmarshalJSON(data []byte) error {
	var geom struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	}

	if err := json.Unmarshal(data, &geom); err != nil {
		return fmt.Errorf("failed to unmarshal polygon: %w", err)
	}

	if geom.Type != "" && geom.Type != "Polygon" {
		return fmt.Errorf("expected Polygon type, got %s", geom.Type)
	}

	p.Coordinates = geom.Coordinates
	return nil
}

// Scan implements sql.Scanner so polygon geometry can be read back from the
// results store, where it is persisted as a GeoJSON text column.
func (p *Polygon) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to scan Polygon: expected []byte or string, got %T", value)
	}

	return p.UnmarshalJSON(raw)
}

// Value implements driver.Valuer for writing polygon geometry as GeoJSON text.
func (p Polygon) Value() (driver.Value, error) {
	if p.IsEmpty() {
		return nil, nil
	}
	raw, err := p.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal polygon to GeoJSON: %w", err)
	}
	return string(raw), nil
}
