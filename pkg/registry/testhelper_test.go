package registry

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB creates an in-memory SQLite DB with all registry tables migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, NewService(db).AutoMigrate())
	return db
}

// mustCreateNetwork inserts a network row directly.
func mustCreateNetwork(t *testing.T, db *gorm.DB, id, tenantID, name string) *Network {
	t.Helper()
	n := &Network{ID: id, TenantID: tenantID, Name: name}
	require.NoError(t, db.Create(n).Error)
	return n
}

// utc builds a UTC instant for test fixtures.
func utc(year int, month time.Month, day, hour, min, sec int) time.Time {
	return time.Date(year, month, day, hour, min, sec, 0, time.UTC)
}
