package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store provides database operations for ingestion audit records.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the ingestion_audit table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&IngestionRecord{}); err != nil {
		return fmt.Errorf("auto-migrate ingestion_audit: %w", err)
	}
	return nil
}

// Record inserts one audit record. The id is assigned here.
func (s *Store) Record(rec *IngestionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("record ingestion audit: %w", err)
	}
	return nil
}

// ListByTenant returns the tenant's audit records, newest first, paginated
// by a created_at token.
func (s *Store) ListByTenant(tenantID string, pageSize int, pageToken string) ([]IngestionRecord, string, error) {
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
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("created_at < ?", t)
	}

	var records []IngestionRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", fmt.Errorf("list ingestion audit: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].CreatedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}
	return records, nextToken, nil
}

// DeleteOlderThan removes audit records created before the cutoff.
func (s *Store) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&IngestionRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old audit records: %w", result.Error)
	}
	return result.RowsAffected, nil
}
