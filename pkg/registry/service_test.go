package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func payloadWithLanes(lanes int) []byte {
	return []byte(fmt.Sprintf(`{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"geometry": {"type": "LineString", "coordinates": [[13.3, 52.5], [13.4, 52.51]]},
			"properties": {"lanes": %d}
		}]
	}`, lanes))
}

func newTestService(t *testing.T, clock func() time.Time) *Service {
	t.Helper()
	db := newTestDB(t)
	return NewService(db, WithClock(clock), WithLogger(discardLogger))
}

func TestIngest_CreatesNetworkAndVersion(t *testing.T) {
	now := utc(2024, 3, 1, 12, 0, 0)
	svc := newTestService(t, func() time.Time { return now })
	ctx := context.Background()

	res, err := svc.Ingest(ctx, "tenant-a", "berlin", payloadWithLanes(2))
	require.NoError(t, err)
	assert.NotEmpty(t, res.NetworkID)
	assert.NotEmpty(t, res.VersionID)
	assert.Equal(t, 1, res.EdgesInserted)

	current, err := svc.Ledger().CurrentVersion(res.NetworkID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, res.VersionID, current.ID)
	assert.True(t, now.Equal(current.ValidFrom))
	assert.Nil(t, current.ValidTo)
}

func TestIngest_SupersedesPreviousVersion(t *testing.T) {
	now := utc(2024, 3, 1, 12, 0, 0)
	svc := newTestService(t, func() time.Time { return now })
	ctx := context.Background()

	first, err := svc.Ingest(ctx, "tenant-a", "berlin", payloadWithLanes(2))
	require.NoError(t, err)

	now = utc(2024, 3, 2, 12, 0, 0)
	second, err := svc.Ingest(ctx, "tenant-a", "berlin", payloadWithLanes(3))
	require.NoError(t, err)
	assert.Equal(t, first.NetworkID, second.NetworkID)
	assert.NotEqual(t, first.VersionID, second.VersionID)

	// The first version is closed exactly where the second begins.
	prior, err := svc.Ledger().VersionAt(first.NetworkID, utc(2024, 3, 1, 18, 0, 0))
	require.NoError(t, err)
	require.NotNil(t, prior)
	assert.Equal(t, first.VersionID, prior.ID)
	require.NotNil(t, prior.ValidTo)
	assert.True(t, now.Equal(*prior.ValidTo))
}

func TestQueryAsOf_TimeTravel(t *testing.T) {
	now := utc(2024, 3, 1, 12, 0, 0)
	svc := newTestService(t, func() time.Time { return now })
	ctx := context.Background()

	first, err := svc.Ingest(ctx, "tenant-a", "berlin", payloadWithLanes(2))
	require.NoError(t, err)

	now = utc(2024, 3, 5, 12, 0, 0)
	_, err = svc.Ingest(ctx, "tenant-a", "berlin", payloadWithLanes(4))
	require.NoError(t, err)

	// Between the two ingestions the old snapshot answers.
	fc, err := svc.QueryAsOf("tenant-a", first.NetworkID, utc(2024, 3, 3, 0, 0, 0))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, float64(2), fc.Features[0].Properties["lanes"])

	// After the second ingestion the new snapshot answers.
	fc, err = svc.QueryAsOf("tenant-a", first.NetworkID, utc(2024, 3, 6, 0, 0, 0))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, float64(4), fc.Features[0].Properties["lanes"])
}

func TestQueryAsOf_BeforeFirstVersionIsEmpty(t *testing.T) {
	now := utc(2024, 3, 1, 12, 0, 0)
	svc := newTestService(t, func() time.Time { return now })
	ctx := context.Background()

	res, err := svc.Ingest(ctx, "tenant-a", "berlin", payloadWithLanes(2))
	require.NoError(t, err)

	fc, err := svc.QueryAsOf("tenant-a", res.NetworkID, utc(2024, 1, 1, 0, 0, 0))
	require.NoError(t, err)
	assert.NotNil(t, fc.Features)
	assert.Empty(t, fc.Features)
}

func TestQueryAsOf_UnknownNetwork(t *testing.T) {
	svc := newTestService(t, time.Now)

	_, err := svc.QueryAsOf("tenant-a", "no-such-network", time.Now())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestQueryAsOf_ForeignTenant(t *testing.T) {
	now := utc(2024, 3, 1, 12, 0, 0)
	svc := newTestService(t, func() time.Time { return now })
	ctx := context.Background()

	res, err := svc.Ingest(ctx, "tenant-a", "berlin", payloadWithLanes(2))
	require.NoError(t, err)

	_, err = svc.QueryAsOf("tenant-b", res.NetworkID, now)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_UnknownNetworkIsNotFound(t *testing.T) {
	svc := newTestService(t, time.Now)
	ctx := context.Background()

	_, err := svc.Update(ctx, "tenant-a", "berlin", payloadWithLanes(2))
	require.ErrorIs(t, err, ErrNotFound)

	// And the rejected update left no network behind.
	_, _, err2 := svc.Networks().ListByTenant("tenant-a", 10, "")
	require.NoError(t, err2)
}

func TestUpdate_ExistingNetwork(t *testing.T) {
	now := utc(2024, 3, 1, 12, 0, 0)
	svc := newTestService(t, func() time.Time { return now })
	ctx := context.Background()

	first, err := svc.Ingest(ctx, "tenant-a", "berlin", payloadWithLanes(2))
	require.NoError(t, err)

	now = utc(2024, 3, 2, 12, 0, 0)
	res, err := svc.Update(ctx, "tenant-a", "berlin", payloadWithLanes(3))
	require.NoError(t, err)
	assert.Equal(t, first.NetworkID, res.NetworkID)
	assert.NotEqual(t, first.VersionID, res.VersionID)
}

func TestIngest_RejectsNonLinePayload(t *testing.T) {
	svc := newTestService(t, time.Now)
	ctx := context.Background()

	polygonOnly := []byte(`{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]},
			"properties": {}
		}]
	}`)
	_, err := svc.Ingest(ctx, "tenant-a", "berlin", polygonOnly)
	require.ErrorIs(t, err, ErrInvalidInput)

	// Nothing was created: the payload failed before the transaction opened.
	rows, _, err := svc.Networks().ListByTenant("tenant-a", 10, "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestIngest_RejectsMalformedJSON(t *testing.T) {
	svc := newTestService(t, time.Now)

	_, err := svc.Ingest(context.Background(), "tenant-a", "berlin", []byte("{not json"))
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestIngest_SameInstantConflicts(t *testing.T) {
	now := utc(2024, 3, 1, 12, 0, 0)
	svc := newTestService(t, func() time.Time { return now })
	ctx := context.Background()

	res, err := svc.Ingest(ctx, "tenant-a", "berlin", payloadWithLanes(2))
	require.NoError(t, err)

	// A second ingestion at the exact same instant cannot close the open
	// window with a non-empty interval and must be retried later.
	_, err = svc.Ingest(ctx, "tenant-a", "berlin", payloadWithLanes(3))
	require.ErrorIs(t, err, ErrConflict)

	// The prior current version survives the failed attempt.
	current, err := svc.Ledger().CurrentVersion(res.NetworkID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, res.VersionID, current.ID)
}

func TestResolveVersion_NoCoverageIsNilNotError(t *testing.T) {
	now := utc(2024, 3, 1, 12, 0, 0)
	svc := newTestService(t, func() time.Time { return now })
	ctx := context.Background()

	res, err := svc.Ingest(ctx, "tenant-a", "berlin", payloadWithLanes(2))
	require.NoError(t, err)

	v, err := svc.ResolveVersion("tenant-a", res.NetworkID, utc(2020, 1, 1, 0, 0, 0))
	require.NoError(t, err)
	assert.Nil(t, v)
}
