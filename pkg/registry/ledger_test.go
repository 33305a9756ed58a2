package registry

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenVersion_FirstVersion(t *testing.T) {
	db := newTestDB(t)
	ledger := NewVersionLedger(db)
	net := mustCreateNetwork(t, db, uuid.NewString(), "tenant-a", "berlin")

	at := utc(2025, 9, 1, 12, 0, 0)
	v, err := ledger.OpenVersion(db, net.ID, at)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, at.Equal(v.ValidFrom))
	assert.Nil(t, v.ValidTo)
	assert.True(t, v.IsCurrent())
}

func TestOpenVersion_ClosesPreviousAdjacently(t *testing.T) {
	db := newTestDB(t)
	ledger := NewVersionLedger(db)
	net := mustCreateNetwork(t, db, uuid.NewString(), "tenant-a", "berlin")

	t0 := utc(2025, 9, 1, 12, 0, 0)
	t1 := utc(2025, 9, 2, 12, 0, 0)

	v1, err := ledger.OpenVersion(db, net.ID, t0)
	require.NoError(t, err)
	v2, err := ledger.OpenVersion(db, net.ID, t1)
	require.NoError(t, err)

	// The old window closes exactly where the new one opens: no gap, no
	// overlap.
	var closed NetworkVersion
	require.NoError(t, db.First(&closed, "id = ?", v1.ID).Error)
	require.NotNil(t, closed.ValidTo)
	assert.True(t, closed.ValidTo.Equal(v2.ValidFrom))
	assert.True(t, closed.ValidTo.After(closed.ValidFrom))

	// Exactly one current version remains.
	var open int64
	require.NoError(t, db.Model(&NetworkVersion{}).
		Where("network_id = ? AND valid_to IS NULL", net.ID).
		Count(&open).Error)
	assert.Equal(t, int64(1), open)
}

func TestOpenVersion_SameInstantIsConflict(t *testing.T) {
	db := newTestDB(t)
	ledger := NewVersionLedger(db)
	net := mustCreateNetwork(t, db, uuid.NewString(), "tenant-a", "berlin")

	at := utc(2025, 9, 1, 12, 0, 0)
	_, err := ledger.OpenVersion(db, net.ID, at)
	require.NoError(t, err)

	// Re-opening at the same instant would give the closed window zero
	// width; the caller is told to retry with a fresh timestamp.
	_, err = ledger.OpenVersion(db, net.ID, at)
	require.ErrorIs(t, err, ErrConflict)

	// The prior current version is untouched.
	var open int64
	require.NoError(t, db.Model(&NetworkVersion{}).
		Where("network_id = ? AND valid_to IS NULL", net.ID).
		Count(&open).Error)
	assert.Equal(t, int64(1), open)
}

func TestOpenVersion_PartialIndexRejectsSecondOpenVersion(t *testing.T) {
	db := newTestDB(t)
	ledger := NewVersionLedger(db)
	net := mustCreateNetwork(t, db, uuid.NewString(), "tenant-a", "berlin")

	_, err := ledger.OpenVersion(db, net.ID, utc(2025, 9, 1, 12, 0, 0))
	require.NoError(t, err)

	// Bypassing the ledger, a second open version must hit the partial
	// unique index: the invariant lives in the schema, not in code paths.
	err = db.Create(&NetworkVersion{
		ID:        uuid.NewString(),
		NetworkID: net.ID,
		ValidFrom: utc(2025, 9, 3, 12, 0, 0),
	}).Error
	require.Error(t, err)
	assert.True(t, isDuplicateKey(err))
}

func TestOpenVersion_IndependentNetworks(t *testing.T) {
	db := newTestDB(t)
	ledger := NewVersionLedger(db)
	netA := mustCreateNetwork(t, db, uuid.NewString(), "tenant-a", "berlin")
	netB := mustCreateNetwork(t, db, uuid.NewString(), "tenant-a", "hamburg")

	at := utc(2025, 9, 1, 12, 0, 0)
	_, err := ledger.OpenVersion(db, netA.ID, at)
	require.NoError(t, err)
	// Same instant on a different network is not a conflict.
	_, err = ledger.OpenVersion(db, netB.ID, at)
	require.NoError(t, err)
}

func TestVersionAt_WindowBoundaries(t *testing.T) {
	db := newTestDB(t)
	ledger := NewVersionLedger(db)
	net := mustCreateNetwork(t, db, uuid.NewString(), "tenant-a", "berlin")

	t0 := utc(2025, 9, 1, 12, 0, 0)
	t1 := utc(2025, 9, 2, 12, 0, 0)
	v1, err := ledger.OpenVersion(db, net.ID, t0)
	require.NoError(t, err)
	v2, err := ledger.OpenVersion(db, net.ID, t1)
	require.NoError(t, err)

	tests := []struct {
		name string
		ts   time.Time
		want string // version id, "" for none
	}{
		{"before first version", t0.Add(-time.Second), ""},
		{"at first valid_from (inclusive)", t0, v1.ID},
		{"inside first window", t0.Add(time.Hour), v1.ID},
		{"just before close", t1.Add(-time.Nanosecond), v1.ID},
		{"at close boundary (exclusive)", t1, v2.ID},
		{"inside current window", t1.Add(time.Hour), v2.ID},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ledger.VersionAt(net.ID, tc.ts)
			require.NoError(t, err)
			if tc.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tc.want, got.ID)
		})
	}
}

func TestVersionAt_UnknownNetwork(t *testing.T) {
	db := newTestDB(t)
	ledger := NewVersionLedger(db)

	got, err := ledger.VersionAt(uuid.NewString(), utc(2025, 9, 1, 12, 0, 0))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCurrentVersion(t *testing.T) {
	db := newTestDB(t)
	ledger := NewVersionLedger(db)
	net := mustCreateNetwork(t, db, uuid.NewString(), "tenant-a", "berlin")

	got, err := ledger.CurrentVersion(net.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	v, err := ledger.OpenVersion(db, net.ID, utc(2025, 9, 1, 12, 0, 0))
	require.NoError(t, err)

	got, err = ledger.CurrentVersion(net.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, v.ID, got.ID)
}
