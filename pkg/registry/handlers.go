package registry

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/roadgrid/network-registry/pkg/apikey"
	"github.com/roadgrid/network-registry/pkg/audit"
	"github.com/roadgrid/network-registry/pkg/cache"
	"github.com/roadgrid/network-registry/pkg/geojson"
)

// geoJSONContentType is the media type of time-travel query responses.
const geoJSONContentType = "application/geo+json"

// defaultMaxUploadBytes bounds a single GeoJSON upload (64 MiB).
const defaultMaxUploadBytes = 64 << 20

// API holds the HTTP handlers for the registry endpoints.
type API struct {
	svc            *Service
	audit          *audit.Store
	snapshots      *cache.SnapshotCache
	logger         *slog.Logger
	maxUploadBytes int64
}

// APIOption configures an API.
type APIOption func(*API)

// WithAuditStore enables the ingestion audit trail.
func WithAuditStore(store *audit.Store) APIOption {
	return func(a *API) { a.audit = store }
}

// WithSnapshotCache enables caching of closed-version query responses.
func WithSnapshotCache(c *cache.SnapshotCache) APIOption {
	return func(a *API) { a.snapshots = c }
}

// WithAPILogger sets the structured logger.
func WithAPILogger(logger *slog.Logger) APIOption {
	return func(a *API) { a.logger = logger }
}

// WithMaxUploadBytes overrides the upload size limit.
func WithMaxUploadBytes(n int64) APIOption {
	return func(a *API) { a.maxUploadBytes = n }
}

// NewAPI creates the handler set on top of the service.
func NewAPI(svc *Service, opts ...APIOption) *API {
	a := &API{
		svc:            svc,
		logger:         slog.Default(),
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// networkListResponse is the API response for listing networks.
type networkListResponse struct {
	Networks      []networkResponse `json:"networks"`
	NextPageToken string            `json:"nextPageToken,omitempty"`
}

type networkResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

// CreateNetwork handles POST /api/v1/networks: multipart form with the
// network name and a GeoJSON file; creates the network on first use.
func (a *API) CreateNetwork(w http.ResponseWriter, r *http.Request) {
	a.handleUpload(w, r, true)
}

// UpdateNetwork handles POST /api/v1/networks/update: same payload, but
// the tenant must already own a network of that name.
func (a *API) UpdateNetwork(w http.ResponseWriter, r *http.Request) {
	a.handleUpload(w, r, false)
}

func (a *API) handleUpload(w http.ResponseWriter, r *http.Request, createMissing bool) {
	tenantID := apikey.TenantIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form with name and file fields")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing form field: name")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing form field: file")
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading upload: "+err.Error())
		return
	}

	start := time.Now()
	var result *IngestResult
	if createMissing {
		result, err = a.svc.Ingest(r.Context(), tenantID, name, payload)
	} else {
		result, err = a.svc.Update(r.Context(), tenantID, name, payload)
	}
	a.recordIngestion(tenantID, name, result, err, time.Since(start))

	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListNetworks handles GET /api/v1/networks.
func (a *API) ListNetworks(w http.ResponseWriter, r *http.Request) {
	tenantID := apikey.TenantIDFromContext(r.Context())

	pageSize := 20
	if v := r.URL.Query().Get("pageSize"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			pageSize = n
		}
	}
	rows, nextToken, err := a.svc.Networks().ListByTenant(tenantID, pageSize, r.URL.Query().Get("pageToken"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	resp := networkListResponse{Networks: make([]networkResponse, 0, len(rows)), NextPageToken: nextToken}
	for _, n := range rows {
		resp.Networks = append(resp.Networks, networkResponse{
			ID:        n.ID,
			Name:      n.Name,
			CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetEdges handles GET /api/v1/networks/{networkID}/edges?datetime=RFC3339.
// It resolves the version valid at the requested instant and returns its
// edges as GeoJSON. No version at that time yields an empty
// FeatureCollection; an unknown network yields 404.
func (a *API) GetEdges(w http.ResponseWriter, r *http.Request) {
	tenantID := apikey.TenantIDFromContext(r.Context())
	networkID := chi.URLParam(r, "networkID")

	ts := time.Now().UTC()
	if v := r.URL.Query().Get("datetime"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid datetime, expected RFC3339: "+err.Error())
			return
		}
		ts = parsed.UTC()
	}

	version, err := a.svc.ResolveVersion(tenantID, networkID, ts)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if version == nil {
		writeGeoJSON(w, mustMarshal(geojson.NewFeatureCollection()))
		return
	}

	// Closed versions are immutable, so their serialized form is cacheable.
	cacheable := a.snapshots != nil && !version.IsCurrent()
	if cacheable {
		if body, ok := a.snapshots.Get(version.ID); ok {
			writeGeoJSON(w, body)
			return
		}
	}

	fc, err := a.svc.Edges().EdgesAsOf(version.ID)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	body, err := json.Marshal(fc)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if cacheable {
		a.snapshots.Set(version.ID, body)
	}
	writeGeoJSON(w, body)
}

// recordIngestion writes one audit record for an ingestion attempt.
// Best-effort: an audit failure is logged, never surfaced to the caller.
func (a *API) recordIngestion(tenantID, name string, result *IngestResult, ingestErr error, elapsed time.Duration) {
	if a.audit == nil {
		return
	}

	rec := &audit.IngestionRecord{
		TenantID:    tenantID,
		NetworkName: name,
		DurationMs:  elapsed.Milliseconds(),
	}
	switch {
	case ingestErr == nil:
		rec.Outcome = audit.OutcomeSucceeded
		rec.NetworkID = result.NetworkID
		rec.VersionID = result.VersionID
		rec.EdgeCount = result.EdgesInserted
	case errors.Is(ingestErr, ErrInvalidInput), errors.Is(ingestErr, ErrNotFound):
		rec.Outcome = audit.OutcomeRejected
		rec.Detail = ingestErr.Error()
	case errors.Is(ingestErr, ErrConflict):
		rec.Outcome = audit.OutcomeConflict
		rec.Detail = ingestErr.Error()
	default:
		rec.Outcome = audit.OutcomeFailed
		rec.Detail = ingestErr.Error()
	}

	if err := a.audit.Record(rec); err != nil {
		a.logger.Error("failed to record ingestion audit", "error", err)
	}
}

// writeServiceError maps registry errors onto HTTP statuses: input 400,
// not-found 404, conflict 409 (retryable), anything else 500.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		a.logger.Error("registry request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeGeoJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", geoJSONContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("not positive")
	}
	return n, nil
}
