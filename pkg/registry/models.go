// Package registry implements the versioned road-network store: network
// identity, the bitemporal version ledger, edge storage, and the ingestion
// and time-travel query operations composing them.
package registry

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roadgrid/network-registry/pkg/geojson"
)

// SRID is the fixed spatial reference for stored and returned geometry
// (WGS84 lon/lat).
const SRID = 4326

// JSONMap is a custom GORM type for an opaque attribute map stored as JSON.
type JSONMap map[string]any

// Scan implements the sql.Scanner interface for JSONMap.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONMap.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Network is a named, tenant-owned road network. The (tenant_id, name) pair
// is unique; networks are created implicitly on first ingestion.
type Network struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	TenantID  string    `gorm:"column:tenant_id;uniqueIndex:idx_network_tenant_name,priority:1;not null"`
	Name      string    `gorm:"column:name;uniqueIndex:idx_network_tenant_name,priority:2;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (Network) TableName() string { return "networks" }

// NetworkVersion is one immutable snapshot window of a network's edges,
// valid over [valid_from, valid_to). A NULL valid_to marks the current
// version; the partial unique index idx_version_current enforces at most
// one current version per network and is the invariant concurrent openers
// race on.
type NetworkVersion struct {
	ID        string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	NetworkID string     `gorm:"column:network_id;index:idx_version_network;index:idx_version_current,unique,where:valid_to IS NULL;not null"`
	ValidFrom time.Time  `gorm:"column:valid_from;not null"`
	ValidTo   *time.Time `gorm:"column:valid_to;check:chk_version_window,valid_to IS NULL OR valid_to > valid_from"`
}

// TableName returns the GORM table name.
func (NetworkVersion) TableName() string { return "network_versions" }

// IsCurrent reports whether the version window is still open.
func (v *NetworkVersion) IsCurrent() bool { return v.ValidTo == nil }

// Covers reports whether ts falls inside the version's validity window.
func (v *NetworkVersion) Covers(ts time.Time) bool {
	ts = ts.UTC()
	if ts.Before(v.ValidFrom) {
		return false
	}
	return v.ValidTo == nil || ts.Before(*v.ValidTo)
}

// Edge is one line-geometry feature bound to exactly one version. Edges are
// immutable; a changed edge is a new row in a new version.
type Edge struct {
	ID         string             `gorm:"primaryKey;column:id;type:varchar(36)"`
	VersionID  string             `gorm:"column:version_id;index:idx_edge_version;not null"`
	Geom       geojson.LineString `gorm:"column:geom;type:text;not null"`
	SRID       int                `gorm:"column:srid;not null;default:4326"`
	Attributes JSONMap            `gorm:"column:attributes;type:text;not null"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (Edge) TableName() string { return "edges" }
