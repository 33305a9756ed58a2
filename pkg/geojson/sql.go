package geojson

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// LineString round-trips through the database as a compact JSON array of
// positions, so the stored form is directly reusable as GeoJSON coordinates.

// Value implements the driver.Valuer interface for LineString.
func (l LineString) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for LineString.
func (l *LineString) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for LineString: %T", value)
	}
	return json.Unmarshal(bytes, l)
}
