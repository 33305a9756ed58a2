package registry

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NetworkStore provides database operations on networks.
type NetworkStore struct {
	db *gorm.DB
}

// NewNetworkStore creates a new NetworkStore.
func NewNetworkStore(db *gorm.DB) *NetworkStore {
	return &NetworkStore{db: db}
}

// AutoMigrate creates or updates the networks table.
func (s *NetworkStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Network{}); err != nil {
		return fmt.Errorf("auto-migrate networks: %w", err)
	}
	return nil
}

// Ensure upserts a network by (tenant, name) and returns the stored row.
// The uniqueness constraint is the source of truth under concurrent
// callers: a race loser lands on ON CONFLICT DO UPDATE and the follow-up
// read observes the winner's row.
func (s *NetworkStore) Ensure(tx *gorm.DB, tenantID, name string) (*Network, error) {
	row := &Network{ID: uuid.NewString(), TenantID: tenantID, Name: name}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "name"}},
		DoUpdates: clause.Assignments(map[string]any{"name": name}),
	}).Create(row).Error
	if err != nil {
		return nil, fmt.Errorf("ensure network %q: %w", name, err)
	}

	// Re-read by the natural key: on conflict the existing row keeps its id.
	var out Network
	if err := tx.Where("tenant_id = ? AND name = ?", tenantID, name).First(&out).Error; err != nil {
		return nil, fmt.Errorf("load network %q: %w", name, err)
	}
	return &out, nil
}

// GetOwned retrieves a network by id scoped to the owning tenant.
// Returns ErrNotFound when the network does not exist or belongs to a
// different tenant; the two cases are indistinguishable to the caller.
func (s *NetworkStore) GetOwned(tenantID, networkID string) (*Network, error) {
	var n Network
	err := s.db.Where("id = ? AND tenant_id = ?", networkID, tenantID).First(&n).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("network %s: %w", networkID, ErrNotFound)
		}
		return nil, fmt.Errorf("get network %s: %w", networkID, err)
	}
	return &n, nil
}

// FindByName retrieves a tenant's network by name. Returns ErrNotFound when
// no such network exists.
func (s *NetworkStore) FindByName(tx *gorm.DB, tenantID, name string) (*Network, error) {
	var n Network
	err := tx.Where("tenant_id = ? AND name = ?", tenantID, name).First(&n).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("network %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("find network %q: %w", name, err)
	}
	return &n, nil
}

// ListByTenant returns the tenant's networks, newest first, paginated by a
// created_at token.
func (s *NetworkStore) ListByTenant(tenantID string, pageSize int, pageToken string) ([]Network, string, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := s.db.Where("tenant_id = ?", tenantID).Order("created_at DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", ErrInvalidInput)
		}
		query = query.Where("created_at < ?", t)
	}

	var rows []Network
	if err := query.Find(&rows).Error; err != nil {
		return nil, "", fmt.Errorf("list networks: %w", err)
	}

	var nextToken string
	if len(rows) > pageSize {
		nextToken = rows[pageSize-1].CreatedAt.Format(time.RFC3339Nano)
		rows = rows[:pageSize]
	}
	return rows, nextToken, nil
}
