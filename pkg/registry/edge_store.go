package registry

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/roadgrid/network-registry/pkg/geojson"
)

// insertBatchSize bounds the size of a single bulk INSERT statement so a
// large upload stays one set-oriented operation per batch instead of one
// round-trip per edge.
const insertBatchSize = 500

// EdgeStore provides database operations on the edges of a version.
type EdgeStore struct {
	db *gorm.DB
}

// NewEdgeStore creates a new EdgeStore.
func NewEdgeStore(db *gorm.DB) *EdgeStore {
	return &EdgeStore{db: db}
}

// AutoMigrate creates or updates the edges table.
func (s *EdgeStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Edge{}); err != nil {
		return fmt.Errorf("auto-migrate edges: %w", err)
	}
	return nil
}

// InsertEdges bulk-inserts one edge per feature bound to versionID,
// preserving feature order as insertion order. Geometry is stored under
// the fixed SRID; attributes are stored verbatim as opaque JSON. An empty
// feature sequence inserts nothing and returns 0 without error.
func (s *EdgeStore) InsertEdges(tx *gorm.DB, versionID string, features []geojson.Feature) (int, error) {
	if len(features) == 0 {
		return 0, nil
	}

	edges := make([]Edge, 0, len(features))
	for _, f := range features {
		edges = append(edges, Edge{
			ID:         uuid.NewString(),
			VersionID:  versionID,
			Geom:       f.Geometry.Coordinates,
			SRID:       SRID,
			Attributes: JSONMap(f.Properties),
		})
	}

	if err := tx.CreateInBatches(&edges, insertBatchSize).Error; err != nil {
		return 0, fmt.Errorf("insert %d edges for version %s: %w", len(edges), versionID, err)
	}
	return len(edges), nil
}

// EdgesAsOf reads all edges of a version as a FeatureCollection ordered by
// edge id, so repeated reads of an unchanged version are byte-for-byte
// reproducible. Geometry is reprojected into the fixed output SRID only
// when the stored reference differs.
func (s *EdgeStore) EdgesAsOf(versionID string) (*geojson.FeatureCollection, error) {
	var edges []Edge
	if err := s.db.Where("version_id = ?", versionID).Order("id ASC").Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("load edges of version %s: %w", versionID, err)
	}

	fc := geojson.NewFeatureCollection()
	for _, e := range edges {
		coords := e.Geom
		if e.SRID != SRID {
			reprojected, err := reproject(coords, e.SRID, SRID)
			if err != nil {
				return nil, fmt.Errorf("edge %s: %w", e.ID, err)
			}
			coords = reprojected
		}
		props := map[string]any(e.Attributes)
		if props == nil {
			props = map[string]any{}
		}
		fc.Features = append(fc.Features, geojson.Feature{
			Type: "Feature",
			ID:   e.ID,
			Geometry: geojson.Geometry{
				Type:        geojson.GeometryLineString,
				Coordinates: coords,
			},
			Properties: props,
		})
	}
	return fc, nil
}

// CountByVersion returns the number of edges bound to a version.
func (s *EdgeStore) CountByVersion(versionID string) (int64, error) {
	var n int64
	if err := s.db.Model(&Edge{}).Where("version_id = ?", versionID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count edges of version %s: %w", versionID, err)
	}
	return n, nil
}

// reproject converts coordinates between spatial references. Ingestion
// always writes the fixed SRID, so a differing stored reference can only
// come from data imported outside this service; until such an importer
// exists there is no transform to apply.
func reproject(coords geojson.LineString, fromSRID, toSRID int) (geojson.LineString, error) {
	if fromSRID == toSRID {
		return coords, nil
	}
	return nil, fmt.Errorf("no transform from SRID %d to %d", fromSRID, toSRID)
}
