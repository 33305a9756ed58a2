// Package audit records an audit trail of ingestions: who uploaded what
// into which network, the resulting version, and the outcome. Records are
// written outside the ingestion transaction so a failed audit write never
// rolls back a committed upload.
package audit

import "time"

// Outcome classifies how an ingestion ended.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeRejected  Outcome = "rejected" // input error, nothing written
	OutcomeConflict  Outcome = "conflict" // lost version-open race, rolled back
	OutcomeFailed    Outcome = "failed"   // storage error, rolled back
)

// IngestionRecord is the GORM model for one ingestion attempt.
type IngestionRecord struct {
	ID          string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	TenantID    string    `gorm:"column:tenant_id;index:idx_audit_tenant;not null"`
	NetworkID   string    `gorm:"column:network_id;index:idx_audit_network"`
	NetworkName string    `gorm:"column:network_name;not null"`
	VersionID   string    `gorm:"column:version_id"`
	EdgeCount   int       `gorm:"column:edge_count"`
	Outcome     Outcome   `gorm:"column:outcome;index:idx_audit_outcome;not null"`
	Detail      string    `gorm:"column:detail"`
	DurationMs  int64     `gorm:"column:duration_ms"`
	CreatedAt   time.Time `gorm:"column:created_at;index:idx_audit_created;autoCreateTime"`
}

// TableName returns the GORM table name.
func (IngestionRecord) TableName() string { return "ingestion_audit" }
