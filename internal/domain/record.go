package domain

// Record is one raw row pulled from the relational source. Keys are column
// names; values are whatever the driver produced (string, int64, float64,
// time.Time, nil).
type Record map[string]any

// Document is the transformed, enrichment-augmented shape handed to the
// document store. Values may be scalars or nested structures (geometry,
// region-code block).
type Document map[string]any

// Geometry returns a GeoJSON point for the given coordinates.
// Coordinate order is [lon, lat] per the GeoJSON spec.
func Geometry(lat, lon float64) map[string]any {
	return map[string]any{
		"type":        "Point",
		"coordinates": []float64{lon, lat},
	}
}
