package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/credentials"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/invoker"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/resolver"
)

type fakeAssembler struct {
	system string
	opts   credentials.Options
	err    error
}

func (a *fakeAssembler) Assemble(_ context.Context, systemName string, opts credentials.Options) (*models.CredentialBundle, error) {
	a.system = systemName
	a.opts = opts
	if a.err != nil {
		return nil, a.err
	}
	return models.NewCredentialBundle(models.BundleParams{
		Connection:       models.Connection{BaseURL: "https://data.example.com", Token: "service-token"},
		SystemName:       systemName,
		ResolvedEntities: map[models.EntityKind]string{models.EntityKindProvider: "prov-123"},
		Timestamp:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		CorrelationID:    "corr-1",
	}), nil
}

type fakeDetector struct{}

func (fakeDetector) Detect(_ context.Context, name string) (*models.DetectionResult, bool) {
	if name != "Adriane Fontenot - March" {
		return nil, false
	}
	return &models.DetectionResult{EntityCode: "adriane_fontenot", EntityKind: models.EntityKindProvider, MatchedPattern: "fontenot"}, true
}

func (fakeDetector) DetectColumnGroups(headers []string) map[string][]int {
	return map[string][]int{"unclassified": {0}}
}

type memoryRegistry struct {
	mappings map[models.MappingKey]models.ExternalMapping
}

func (r *memoryRegistry) Upsert(_ context.Context, m models.ExternalMapping) error {
	r.mappings[m.Key()] = m
	return nil
}

func (r *memoryRegistry) Lookup(_ context.Context, systemName, externalID string, kind models.EntityKind) (string, bool, error) {
	m, ok := r.mappings[models.MappingKey{SystemName: systemName, ExternalID: externalID, EntityType: kind}]
	return m.EntityID, ok, nil
}

func (r *memoryRegistry) List(_ context.Context, systemName string) ([]models.ExternalMapping, error) {
	var out []models.ExternalMapping
	for _, m := range r.mappings {
		if m.SystemName == systemName {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeResolver struct {
	refreshed bool
}

func (r *fakeResolver) Kind() models.EntityKind { return models.EntityKindClinic }

func (r *fakeResolver) Resolve(_ context.Context, code string, opts ...invoker.CallOption) (string, bool, error) {
	r.refreshed = len(opts) > 0
	if code == "CLN-NORTH" {
		return "clinic-1", true, nil
	}
	return "", false, nil
}

type harness struct {
	server    *Server
	assembler *fakeAssembler
	registry  *memoryRegistry
	resolver  *fakeResolver
}

func newHarness(t *testing.T, detector Detector, verifier middleware.TokenVerifier) *harness {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	h := &harness{
		assembler: &fakeAssembler{},
		registry:  &memoryRegistry{mappings: map[models.MappingKey]models.ExternalMapping{}},
		resolver:  &fakeResolver{},
	}
	handlers := NewHandlers(h.assembler, detector, h.registry, resolver.NewSetOf(h.resolver), logger)
	h.server = New(Options{
		Config:   cfg,
		Handlers: handlers,
		Health:   health.NewChecker("test"),
		Verifier: verifier,
		Logger:   logger,
	})
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAssemble_RedactsTokenByDefault(t *testing.T) {
	h := newHarness(t, fakeDetector{}, nil)

	rec := h.do(t, http.MethodPost, "/api/v1/credentials/payroll-sheets", map[string]any{
		"codes":    map[string]string{"Provider": "adriane_fontenot"},
		"required": []string{"provider"},
		"detect":   true,
		"refresh":  true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "[redacted]", body["auth_token"])
	assert.Equal(t, "corr-1", body["correlation_id"])
	assert.NotContains(t, rec.Body.String(), "service-token")

	assert.Equal(t, "payroll-sheets", h.assembler.system)
	assert.Equal(t, "adriane_fontenot", h.assembler.opts.Codes[models.EntityKindProvider])
	assert.Equal(t, []models.EntityKind{models.EntityKindProvider}, h.assembler.opts.Required)
	assert.True(t, h.assembler.opts.Detect)
	assert.True(t, h.assembler.opts.Refresh)

	rec = h.do(t, http.MethodPost, "/api/v1/credentials/payroll-sheets?reveal_token=true", map[string]any{})
	assert.Equal(t, "service-token", decode(t, rec)["auth_token"])
}

func TestAssemble_Errors(t *testing.T) {
	h := newHarness(t, nil, nil)

	rec := h.do(t, http.MethodPost, "/api/v1/credentials/payroll-sheets", map[string]any{
		"codes": map[string]string{"building": "B-1"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.assembler.err = &credentials.AssemblyError{
		Step:          credentials.StateCodesResolving,
		CorrelationID: "corr-9",
		Err:           fernerrors.NewResolutionMissingError(models.EntityKindProvider, "nobody"),
	}
	rec = h.do(t, http.MethodPost, "/api/v1/credentials/payroll-sheets", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	meta := decode(t, rec)["meta"].(map[string]any)
	assert.Equal(t, "resolution_missing", meta["kind"])
	assert.Equal(t, "corr-9", meta["correlation_id"])
	assert.Equal(t, "CODES_RESOLVING", meta["step"])
}

func TestDetect(t *testing.T) {
	h := newHarness(t, fakeDetector{}, nil)

	rec := h.do(t, http.MethodPost, "/api/v1/detect", map[string]string{"document_name": "Adriane Fontenot - March"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp DetectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Detected)
	assert.Equal(t, "adriane_fontenot", resp.Result.EntityCode)

	rec = h.do(t, http.MethodPost, "/api/v1/detect", map[string]string{"document_name": "Quarterly totals"})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Detected)

	rec = h.do(t, http.MethodPost, "/api/v1/detect", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/columns/classify", map[string]any{"headers": []string{"notes"}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDetect_NotConfigured(t *testing.T) {
	h := newHarness(t, nil, nil)

	rec := h.do(t, http.MethodPost, "/api/v1/detect", map[string]string{"document_name": "x"})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestMappings(t *testing.T) {
	h := newHarness(t, nil, nil)

	rec := h.do(t, http.MethodPut, "/api/v1/mappings", map[string]any{
		"system_name": "payroll-sheets",
		"external_id": "emp-1042",
		"entity_type": "provider",
		"entity_id":   "prov-123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/v1/mappings/payroll-sheets/provider/emp-1042", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "prov-123", decode(t, rec)["entity_id"])

	rec = h.do(t, http.MethodGet, "/api/v1/mappings/payroll-sheets/provider/emp-9999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/v1/mappings/payroll-sheets/building/emp-1042", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/v1/mappings/payroll-sheets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	rec = h.do(t, http.MethodPut, "/api/v1/mappings", map[string]any{"system_name": "payroll-sheets"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolve(t *testing.T) {
	h := newHarness(t, nil, nil)

	rec := h.do(t, http.MethodGet, "/api/v1/resolve/clinic/CLN-NORTH?refresh=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "clinic-1", decode(t, rec)["entity_id"])
	assert.True(t, h.resolver.refreshed)

	rec = h.do(t, http.MethodGet, "/api/v1/resolve/clinic/CLN-GONE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, h.resolver.refreshed)

	rec = h.do(t, http.MethodGet, "/api/v1/resolve/location/LOC-MAIN", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

type denyAll struct{}

func (denyAll) Verify(context.Context, string) (middleware.UserClaims, error) {
	return middleware.UserClaims{}, assert.AnError
}

func TestAuthentication_ProtectsAPIOnly(t *testing.T) {
	h := newHarness(t, nil, denyAll{})

	rec := h.do(t, http.MethodGet, "/api/v1/resolve/clinic/CLN-NORTH", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/v1/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
