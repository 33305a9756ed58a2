package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/roadgrid/network-registry/pkg/geojson"
)

// Service composes the network store, version ledger and edge store into
// the ingestion and time-travel query operations. It holds no in-process
// locks; every ingestion runs as one database transaction and the store's
// isolation is the only cross-request synchronization.
type Service struct {
	db       *gorm.DB
	networks *NetworkStore
	ledger   *VersionLedger
	edges    *EdgeStore
	now      func() time.Time
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the wall clock, used to pin version timestamps in
// tests and replays.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a Service on top of the given database handle.
func NewService(db *gorm.DB, opts ...ServiceOption) *Service {
	s := &Service{
		db:       db,
		networks: NewNetworkStore(db),
		ledger:   NewVersionLedger(db),
		edges:    NewEdgeStore(db),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AutoMigrate creates or updates all registry tables.
func (s *Service) AutoMigrate() error {
	if err := s.networks.AutoMigrate(); err != nil {
		return err
	}
	if err := s.ledger.AutoMigrate(); err != nil {
		return err
	}
	return s.edges.AutoMigrate()
}

// Networks exposes the network store for listing and ownership checks.
func (s *Service) Networks() *NetworkStore { return s.networks }

// Ledger exposes the version ledger for read-only version resolution.
func (s *Service) Ledger() *VersionLedger { return s.ledger }

// Edges exposes the edge store for read-only edge retrieval.
func (s *Service) Edges() *EdgeStore { return s.edges }

// Ping verifies database connectivity, for readiness probes.
func (s *Service) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// IngestResult reports a committed ingestion.
type IngestResult struct {
	NetworkID     string `json:"networkId"`
	VersionID     string `json:"versionId"`
	EdgesInserted int    `json:"edgesInserted"`
}

// Ingest uploads a feature collection into the named network, creating the
// network on first use. The payload is parsed before any storage is
// touched; ensure-network, open-version and insert-edges then commit
// together or not at all. A lost version-open race surfaces as ErrConflict
// with the prior current version left intact.
func (s *Service) Ingest(ctx context.Context, tenantID, name string, payload []byte) (*IngestResult, error) {
	features, err := geojson.Extract(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	return s.ingest(ctx, tenantID, name, features, true)
}

// Update is Ingest restricted to a network the tenant already owns;
// unknown names report ErrNotFound instead of creating a network.
func (s *Service) Update(ctx context.Context, tenantID, name string, payload []byte) (*IngestResult, error) {
	features, err := geojson.Extract(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	return s.ingest(ctx, tenantID, name, features, false)
}

func (s *Service) ingest(ctx context.Context, tenantID, name string, features []geojson.Feature, createMissing bool) (*IngestResult, error) {
	at := s.now().UTC()

	var result IngestResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var network *Network
		var err error
		if createMissing {
			network, err = s.networks.Ensure(tx, tenantID, name)
		} else {
			network, err = s.networks.FindByName(tx, tenantID, name)
		}
		if err != nil {
			return err
		}

		version, err := s.ledger.OpenVersion(tx, network.ID, at)
		if err != nil {
			return err
		}

		count, err := s.edges.InsertEdges(tx, version.ID, features)
		if err != nil {
			return err
		}

		result = IngestResult{
			NetworkID:     network.ID,
			VersionID:     version.ID,
			EdgesInserted: count,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ingested network version",
		"tenant", tenantID,
		"network", result.NetworkID,
		"version", result.VersionID,
		"edges", result.EdgesInserted,
	)
	return &result, nil
}

// ResolveVersion checks tenant ownership of the network and resolves the
// version valid at ts. Returns ErrNotFound for an unknown or foreign
// network and (nil, nil) when the network exists but no version covers ts.
func (s *Service) ResolveVersion(tenantID, networkID string, ts time.Time) (*NetworkVersion, error) {
	network, err := s.networks.GetOwned(tenantID, networkID)
	if err != nil {
		return nil, err
	}
	return s.ledger.VersionAt(network.ID, ts)
}

// QueryAsOf materializes the network's edges as they were at ts. A network
// with no version covering ts yields an empty FeatureCollection, which is a
// valid answer distinct from ErrNotFound.
func (s *Service) QueryAsOf(tenantID, networkID string, ts time.Time) (*geojson.FeatureCollection, error) {
	version, err := s.ResolveVersion(tenantID, networkID, ts)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return geojson.NewFeatureCollection(), nil
	}
	return s.edges.EdgesAsOf(version.ID)
}
