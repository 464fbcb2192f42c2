package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cadastral layers arrive with wildly inconsistent property keys depending on
// which export produced them. Each logical field has an ordered list of keys;
// the first non-empty value wins. Resolution happens once at ingestion so the
// rest of the pipeline works with a typed ReferenceParcel.
var (
	refNameKeys = []string{"plotno_inf", "PLOT_NO", "plot_no", "plot_name", "kh_no"}

	refAllotteeKeys = []string{
		"allottee", "ALLOTTEE", "allottee_name", "allottee_n",
		"firm_name", "FIRM_NAME", "allotmentr",
	}

	refStatusKeys = []string{"status_inf", "status_from_csidc", "status", "allot_status"}

	refAreaKeys = []string{"total_area", "area_sqm", "AREA_SQM", "shape_area", "Shape_Area"}

	refDateKeys = []string{
		"allotment_date", "allot_date", "date_of_allotment", "allotment_dt",
		"dt_allotment", "date_allot", "allot_dt", "ALLOTMENT_DATE", "DATE_ALLOT",
	}

	refCategoryKeys = []string{"category_i", "plot_type"}
)

var refDateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"02.01.2006",
}

// ReferenceParcel is a single parcel from the authoritative cadastral layer
// with its display properties resolved into typed fields. Externally supplied
// and immutable once constructed.
type ReferenceParcel struct {
	Name          string            `json:"name"`
	Geometry      Polygon           `json:"geometry"`
	Allottee      string            `json:"allottee,omitempty"`
	Status        string            `json:"status,omitempty"`
	Category      string            `json:"category,omitempty"`
	AreaSqm       *float64          `json:"area_sqm,omitempty"`
	AllotmentDate *time.Time        `json:"allotment_date,omitempty"`
	Properties    map[string]string `json:"properties,omitempty"`
}

// NewReferenceParcel builds a ReferenceParcel from a raw feature, resolving
// the property bag against the per-field key priority lists. When no name key
// is present the ordinal-based fallback name is used.
func NewReferenceParcel(geometry Polygon, properties map[string]string, ordinal int) ReferenceParcel {
	name := lookupFirst(properties, refNameKeys)
	if name == "" {
		name = fmt.Sprintf("Plot-%d", ordinal)
	}

	category := lookupFirst(properties, refCategoryKeys)
	if category == "" {
		category = "industrial"
	}

	return ReferenceParcel{
		Name:          name,
		Geometry:      geometry,
		Allottee:      lookupFirst(properties, refAllotteeKeys),
		Status:        lookupFirst(properties, refStatusKeys),
		Category:      category,
		AreaSqm:       lookupArea(properties),
		AllotmentDate: lookupAllotmentDate(properties),
		Properties:    properties,
	}
}

func lookupFirst(props map[string]string, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(props[k]); v != "" {
			return v
		}
	}
	return ""
}

func lookupArea(props map[string]string) *float64 {
	for _, k := range refAreaKeys {
		v := strings.TrimSpace(props[k])
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			continue
		}
		return &f
	}
	return nil
}

func lookupAllotmentDate(props map[string]string) *time.Time {
	for _, k := range refDateKeys {
		v := strings.TrimSpace(props[k])
		if len(v) < 8 {
			continue
		}
		for _, layout := range refDateLayouts {
			t, err := time.Parse(layout, v)
			if err == nil {
				return &t
			}
		}
	}
	return nil
}
