package apikey

import "time"

// Tenant is an account that owns networks and API keys.
type Tenant struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Name      string    `gorm:"column:name;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (Tenant) TableName() string { return "tenants" }

// APIKey stores only the SHA-256 hex digest of an issued key; the plaintext
// is shown once at issue time and never persisted.
type APIKey struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	TenantID  string    `gorm:"column:tenant_id;index:idx_apikey_tenant;not null"`
	TokenHash string    `gorm:"column:token_hash;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (APIKey) TableName() string { return "api_keys" }
