package nspd

import (
	"encoding/json"

	"github.com/paulmach/orb"
)

type searchResponseBody struct {
	Data *struct {
		Features []Feature `json:"features"`
	} `json:"data"`
}

type Feature struct {
	Geometry   Geometry          `json:"geometry"`
	Properties FeatureProperties `json:"properties"`
}

type FeatureProperties struct {
	// Options is kept raw: only the presence of readable_address marks the primary shape.
	Options map[string]json.RawMessage `json:"options"`
}

type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
	CRS         struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
}

// GeoResult is the lot location: centroid in WGS84 (lon, lat) and the registry address.
type GeoResult struct {
	Centroid orb.Point
	Address  string
}

func (f Feature) readableAddress() (string, bool) {
	raw, ok := f.Properties.Options["readable_address"]
	if !ok {
		return "", false
	}

	var address string
	if err := json.Unmarshal(raw, &address); err != nil {
		return "", true
	}
	return address, true
}
