package registry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VersionLedger owns the bitemporal state machine per network: each
// network's versions form an ordered chain of adjacent [valid_from,
// valid_to) windows with at most one open link. The ledger holds no locks;
// the partial unique index on (network_id) WHERE valid_to IS NULL is the
// only cross-request synchronization, so the invariant survives multiple
// service instances.
type VersionLedger struct {
	db *gorm.DB
}

// NewVersionLedger creates a new VersionLedger.
func NewVersionLedger(db *gorm.DB) *VersionLedger {
	return &VersionLedger{db: db}
}

// AutoMigrate creates or updates the network_versions table, including the
// one-current-version-per-network partial unique index.
func (l *VersionLedger) AutoMigrate() error {
	if err := l.db.AutoMigrate(&NetworkVersion{}); err != nil {
		return fmt.Errorf("auto-migrate network_versions: %w", err)
	}
	return nil
}

// OpenVersion closes the network's current version at `at` and inserts a
// new open version starting there, as one indivisible step of the caller's
// transaction. Both effects commit or roll back with the enclosing unit of
// work.
//
// Two racing openers serialize on the partial unique index: the loser's
// insert violates it and surfaces as ErrConflict, never as two open
// versions or a closed-over gap. A current version whose valid_from is not
// strictly before `at` cannot be closed without producing an empty window,
// which is also reported as ErrConflict so the caller retries with a fresh
// timestamp.
func (l *VersionLedger) OpenVersion(tx *gorm.DB, networkID string, at time.Time) (*NetworkVersion, error) {
	at = at.UTC()

	res := tx.Model(&NetworkVersion{}).
		Where("network_id = ? AND valid_to IS NULL AND valid_from < ?", networkID, at).
		Update("valid_to", at)
	if res.Error != nil {
		return nil, fmt.Errorf("close current version of network %s: %w", networkID, res.Error)
	}

	if res.RowsAffected == 0 {
		// Nothing closed: either the network has no version yet, or an open
		// version starts at or after `at` and closing it would invert the
		// window.
		var blocking int64
		err := tx.Model(&NetworkVersion{}).
			Where("network_id = ? AND valid_to IS NULL", networkID).
			Count(&blocking).Error
		if err != nil {
			return nil, fmt.Errorf("check current version of network %s: %w", networkID, err)
		}
		if blocking > 0 {
			return nil, fmt.Errorf("open version at %s: current version starts later: %w",
				at.Format(time.RFC3339Nano), ErrConflict)
		}
	}

	v := &NetworkVersion{ID: uuid.NewString(), NetworkID: networkID, ValidFrom: at}
	if err := tx.Create(v).Error; err != nil {
		if isDuplicateKey(err) {
			// Lost the race against a concurrent opener on the same network.
			return nil, fmt.Errorf("open version for network %s: %w", networkID, ErrConflict)
		}
		return nil, fmt.Errorf("open version for network %s: %w", networkID, err)
	}
	return v, nil
}

// isDuplicateKey reports whether err is a unique-constraint violation.
// Falls back to message matching for drivers without error translation.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// VersionAt returns the version whose validity window contains ts, or nil
// when no window covers it (for example a query time before the network's
// first ingestion). Windows are disjoint by construction; ordering by
// latest valid_from only makes the lookup robust to historical anomalies.
func (l *VersionLedger) VersionAt(networkID string, ts time.Time) (*NetworkVersion, error) {
	ts = ts.UTC()
	var v NetworkVersion
	err := l.db.
		Where("network_id = ? AND valid_from <= ? AND (valid_to IS NULL OR ? < valid_to)", networkID, ts, ts).
		Order("valid_from DESC").
		First(&v).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve version of network %s at %s: %w", networkID, ts.Format(time.RFC3339Nano), err)
	}
	return &v, nil
}

// CurrentVersion returns the network's open version, or nil when the
// network has never been ingested.
func (l *VersionLedger) CurrentVersion(networkID string) (*NetworkVersion, error) {
	var v NetworkVersion
	err := l.db.Where("network_id = ? AND valid_to IS NULL", networkID).First(&v).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("current version of network %s: %w", networkID, err)
	}
	return &v, nil
}
