package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrUnknownKey marks a presented key with no matching hash.
var ErrUnknownKey = errors.New("unknown api key")

// Store provides database operations for tenants and their API keys.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the tenants and api_keys tables.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Tenant{}, &APIKey{}); err != nil {
		return fmt.Errorf("auto-migrate tenants/api_keys: %w", err)
	}
	return nil
}

// EnsureTenant upserts a tenant by name and returns the stored row.
func (s *Store) EnsureTenant(name string) (*Tenant, error) {
	row := &Tenant{ID: uuid.NewString(), Name: name}
	err := s.db.Where("name = ?", name).FirstOrCreate(row).Error
	if err != nil {
		return nil, fmt.Errorf("ensure tenant %q: %w", name, err)
	}
	return row, nil
}

// IssueKey creates a new API key for the tenant and returns the plaintext
// token. Only its hash is stored, so the token cannot be recovered later.
func (s *Store) IssueKey(tenantID string) (token string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	token = hex.EncodeToString(buf)

	key := &APIKey{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		TokenHash: HashToken(token),
	}
	if err := s.db.Create(key).Error; err != nil {
		return "", fmt.Errorf("store api key: %w", err)
	}
	return token, nil
}

// ResolveTenant looks up the tenant owning the presented key.
// Returns ErrUnknownKey when no key matches.
func (s *Store) ResolveTenant(token string) (string, error) {
	var key APIKey
	err := s.db.Where("token_hash = ?", HashToken(token)).First(&key).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", ErrUnknownKey
		}
		return "", fmt.Errorf("resolve api key: %w", err)
	}
	return key.TenantID, nil
}

// HashToken returns the hex SHA-256 digest under which a token is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
