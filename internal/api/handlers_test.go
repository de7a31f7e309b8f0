package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/autotagger/internal/api"
	"github.com/jonesrussell/north-cloud/autotagger/internal/diagnostics"
	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
	"github.com/jonesrussell/north-cloud/autotagger/internal/logger"
	"github.com/jonesrussell/north-cloud/autotagger/internal/processor"
	"github.com/jonesrussell/north-cloud/autotagger/internal/settings"
	"github.com/jonesrussell/north-cloud/autotagger/internal/taxonomy"
	"github.com/jonesrussell/north-cloud/autotagger/internal/testhelpers"
)

// fakeClassifier returns canned results per content id.
type fakeClassifier struct {
	mu       sync.Mutex
	results  map[string]*domain.LinkResult
	errs     map[string]error
	preview  *domain.AnalysisResponse
	override *domain.AnalysisOptions
	panics   bool
	delay    time.Duration
}

func newFakeClassifier() *fakeClassifier {
	return &fakeClassifier{
		results: make(map[string]*domain.LinkResult),
		errs:    make(map[string]error),
	}
}

func (f *fakeClassifier) Classify(
	_ context.Context, contentID string, override *domain.AnalysisOptions,
) (*domain.AnalysisResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.override = override
	if err := f.errs[contentID]; err != nil {
		return nil, err
	}
	return f.preview, nil
}

func (f *fakeClassifier) ClassifyAndLink(ctx context.Context, contentID string) (*domain.LinkResult, error) {
	f.mu.Lock()
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &domain.TransportError{Err: ctx.Err(), Timeout: true}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	if err := f.errs[contentID]; err != nil {
		return nil, err
	}
	if res, ok := f.results[contentID]; ok {
		return res, nil
	}
	return &domain.LinkResult{ContentID: contentID, PerFeature: map[domain.FeatureName]domain.FeatureLinkResult{}}, nil
}

type testEnv struct {
	router     *gin.Engine
	classifier *fakeClassifier
	diag       *diagnostics.Store
}

func setupTestEnv(t *testing.T, health api.HealthOptions) *testEnv {
	t.Helper()
	return setupTestEnvWithConfig(t, api.ServerConfig{}, health)
}

func setupTestEnvWithConfig(t *testing.T, cfg api.ServerConfig, health api.HealthOptions) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	diag := diagnostics.NewStore(client, 0)

	cls := newFakeClassifier()
	svc := settings.New(testhelpers.NewSettingsStore(), taxonomy.NewRegistry(), nil)
	batch := processor.NewBatch(cls, processor.Options{Retry: processor.RetryConfig{MaxAttempts: 1}}, nil, nil)

	handler := api.NewHandler(cls, batch, svc, diag, nil)
	health.ServiceName = "autotagger"
	router := api.NewRouter(cfg, handler, logger.NewNop(), health, nil)

	return &testEnv{router: router, classifier: cls, diag: diag}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestClassifyContent_ErrorKindsMapToStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"not enabled", domain.ErrNotEnabled, http.StatusConflict, domain.KindNotEnabled},
		{"credentials missing", domain.ErrCredentialsMissing, http.StatusPreconditionFailed, domain.KindCredentialsMissing},
		{"transport", &domain.TransportError{Err: errors.New("dial tcp"), Timeout: true}, http.StatusGatewayTimeout, domain.KindTransport},
		{"provider", &domain.ProviderError{StatusCode: 401, Code: "401", Message: "Unauthorized"}, http.StatusBadGateway, domain.KindProvider},
		{"invalid response", &domain.InvalidResponseError{StatusCode: 200, Raw: []byte("not json")}, http.StatusBadGateway, domain.KindInvalidResponse},
		{"not found", domain.ErrContentNotFound, http.StatusNotFound, domain.KindContentNotFound},
		{"internal", errors.New("database is down"), http.StatusInternalServerError, domain.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t, api.HealthOptions{})
			env.classifier.errs["c1"] = tt.err

			w := env.do(t, http.MethodPost, "/api/v1/classify/c1", nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decode[api.ErrorResponse](t, w)
			assert.Equal(t, tt.wantKind, resp.Kind)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestClassifyContent_ReportsPartialLink(t *testing.T) {
	env := setupTestEnv(t, api.HealthOptions{})
	env.classifier.results["c1"] = &domain.LinkResult{
		ContentID: "c1",
		PerFeature: map[domain.FeatureName]domain.FeatureLinkResult{
			domain.FeatureKeyword: {
				Taxonomy: "nlu_keyword",
				Terms:    []domain.Term{{ID: 1, Taxonomy: "nlu_keyword", Name: "fox"}},
			},
			domain.FeatureConcept: {
				Taxonomy: "nlu_concept",
				Err:      &domain.LinkingError{Feature: domain.FeatureConcept, Taxonomy: "nlu_concept", Err: errors.New("store down")},
			},
		},
	}

	w := env.do(t, http.MethodPost, "/api/v1/classify/c1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[api.LinkResponse](t, w)
	assert.Equal(t, "partial", resp.Status)
	require.Len(t, resp.Features[domain.FeatureKeyword].Terms, 1)
	assert.Equal(t, "fox", resp.Features[domain.FeatureKeyword].Terms[0].Name)
	assert.Contains(t, resp.Features[domain.FeatureConcept].Error, "store down")
	assert.Empty(t, resp.Features[domain.FeatureConcept].Terms)
}

func TestClassifyContent_Preview(t *testing.T) {
	env := setupTestEnv(t, api.HealthOptions{})
	env.classifier.preview = &domain.AnalysisResponse{
		Language: "en",
		Features: map[domain.FeatureName][]domain.ScoredLabel{
			domain.FeatureKeyword: {{Text: "fox", Score: 0.9}},
		},
		Raw: json.RawMessage(`{"keywords":[{"text":"fox","relevance":0.9}]}`),
	}

	t.Run("without body", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/classify/c1?preview=true", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decode[api.PreviewResponse](t, w)
		assert.Equal(t, "c1", resp.ContentID)
		require.Len(t, resp.Features[domain.FeatureKeyword], 1)
		assert.Equal(t, "fox", resp.Features[domain.FeatureKeyword][0].Text)
		assert.Nil(t, env.classifier.override)
	})

	t.Run("with override", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/classify/c1?preview=true", api.PreviewRequest{
			Language:       "fr",
			TimeoutSeconds: 5,
			Features:       []string{"keywords", "keyword", "entity"},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		override := env.classifier.override
		require.NotNil(t, override)
		assert.Equal(t, "fr", override.Language)
		assert.Len(t, override.Features, 2)
		assert.Contains(t, override.Features, domain.FeatureKeyword)
		assert.Contains(t, override.Features, domain.FeatureEntity)
	})

	t.Run("unknown feature", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/classify/c1?preview=true", api.PreviewRequest{
			Features: []string{"sentiment"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad preview flag", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/classify/c1?preview=maybe", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestClassifyBatch(t *testing.T) {
	env := setupTestEnv(t, api.HealthOptions{})
	env.classifier.errs["missing"] = domain.ErrContentNotFound

	w := env.do(t, http.MethodPost, "/api/v1/classify/batch", api.BatchRequest{
		ContentIDs: []string{"c1", "missing", "c2"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	summary := decode[processor.Summary](t, w)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Results, 3)
	assert.Equal(t, "missing", summary.Results[1].ContentID)
	assert.Equal(t, domain.KindContentNotFound, summary.Results[1].Kind)
}

func TestClassifyBatch_RejectsEmptyList(t *testing.T) {
	env := setupTestEnv(t, api.HealthOptions{})

	w := env.do(t, http.MethodPost, "/api/v1/classify/batch", map[string]any{"content_ids": []string{}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decode[api.ErrorResponse](t, w).Kind)
}

func TestClassifyBatch_CapsContentIDs(t *testing.T) {
	env := setupTestEnv(t, api.HealthOptions{})

	ids := make([]string, api.MaxBatchIDs+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("c%d", i)
	}

	w := env.do(t, http.MethodPost, "/api/v1/classify/batch", api.BatchRequest{ContentIDs: ids})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decode[api.ErrorResponse](t, w).Kind)

	w = env.do(t, http.MethodPost, "/api/v1/classify/batch", api.BatchRequest{ContentIDs: ids[:api.MaxBatchIDs]})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, api.MaxBatchIDs, decode[processor.Summary](t, w).Succeeded)
}

func TestClassifyBatch_DeadlineReturnsSummary(t *testing.T) {
	env := setupTestEnvWithConfig(t, api.ServerConfig{BatchDeadline: 50 * time.Millisecond}, api.HealthOptions{})
	env.classifier.delay = 10 * time.Second

	start := time.Now()
	w := env.do(t, http.MethodPost, "/api/v1/classify/batch", api.BatchRequest{ContentIDs: []string{"c1", "c2", "c3"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Less(t, time.Since(start), 5*time.Second)

	summary := decode[processor.Summary](t, w)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, domain.KindTransport, summary.Results[0].Kind)
}

func TestServerConfig_BatchDeadlineFitsWriteTimeout(t *testing.T) {
	cfg := api.ServerConfig{}
	cfg.SetDefaults()
	assert.Equal(t, 110*time.Second, cfg.BatchDeadline)

	cfg = api.ServerConfig{WriteTimeout: 30 * time.Second, BatchDeadline: time.Minute}
	cfg.SetDefaults()
	assert.Equal(t, 20*time.Second, cfg.BatchDeadline)

	cfg = api.ServerConfig{WriteTimeout: 8 * time.Second}
	cfg.SetDefaults()
	assert.Equal(t, 4*time.Second, cfg.BatchDeadline)
}

func TestFeatureSettings(t *testing.T) {
	env := setupTestEnv(t, api.HealthOptions{})

	w := env.do(t, http.MethodGet, "/api/v1/settings/features/keyword", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cfg := decode[domain.FeatureConfig](t, w)
	assert.False(t, cfg.Enabled)
	assert.InDelta(t, domain.DefaultThreshold, cfg.Threshold, 0)

	enabled := true
	threshold := 55.0
	w = env.do(t, http.MethodPut, "/api/v1/settings/features/keywords", api.FeatureSettingsRequest{
		Enabled:   &enabled,
		Threshold: &threshold,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cfg = decode[domain.FeatureConfig](t, w)
	assert.True(t, cfg.Enabled)
	assert.InDelta(t, 55.0, cfg.Threshold, 0)
	assert.Equal(t, "nlu_keyword", cfg.Taxonomy)

	w = env.do(t, http.MethodGet, "/api/v1/settings/features", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[api.FeatureListResponse](t, w)
	assert.Equal(t, len(domain.AllFeatures), list.Total)
}

func TestFeatureSettings_Validation(t *testing.T) {
	env := setupTestEnv(t, api.HealthOptions{})

	tooHigh := 150.0
	w := env.do(t, http.MethodPut, "/api/v1/settings/features/entity", api.FeatureSettingsRequest{Threshold: &tooHigh})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.KindInvalidSettings, decode[api.ErrorResponse](t, w).Kind)

	w = env.do(t, http.MethodGet, "/api/v1/settings/features/sentiment", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTagFilterSettings(t *testing.T) {
	env := setupTestEnv(t, api.HealthOptions{})

	w := env.do(t, http.MethodGet, "/api/v1/settings/tag-filter", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "none", decode[api.TagFilterResponse](t, w).Mode)

	w = env.do(t, http.MethodPut, "/api/v1/settings/tag-filter", api.TagFilterRequest{
		Mode:   "deny",
		Labels: []string{" Spam ", "ads", "spam"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"ads", "spam"}, decode[api.TagFilterResponse](t, w).Labels)

	w = env.do(t, http.MethodGet, "/api/v1/settings/tag-filter", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[api.TagFilterResponse](t, w)
	assert.Equal(t, "deny", got.Mode)
	assert.Equal(t, []string{"ads", "spam"}, got.Labels)

	w = env.do(t, http.MethodPut, "/api/v1/settings/tag-filter", api.TagFilterRequest{Mode: "sometimes"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDiagnostics(t *testing.T) {
	env := setupTestEnv(t, api.HealthOptions{})
	ctx := context.Background()
	require.NoError(t, env.diag.RecordResponse(ctx, "c1", []byte(`{"language":"en"}`)))
	require.NoError(t, env.diag.RecordError(ctx, "c1", domain.KindTransport, "timeout"))

	w := env.do(t, http.MethodGet, "/api/v1/diagnostics/c1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	snap := decode[diagnostics.Snapshot](t, w)
	assert.JSONEq(t, `{"language":"en"}`, string(snap.Response))
	require.NotNil(t, snap.LastError)
	assert.Equal(t, domain.KindTransport, snap.LastError.Kind)

	w = env.do(t, http.MethodGet, "/api/v1/diagnostics/unknown", nil)
	require.Equal(t, http.StatusOK, w.Code)
	empty := decode[diagnostics.Snapshot](t, w)
	assert.Nil(t, empty.LastError)
	assert.Empty(t, empty.Response)
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("down") }

	tests := []struct {
		name       string
		db, redis  func(context.Context) error
		wantStatus int
		wantHealth api.HealthStatus
	}{
		{"all up", ok, ok, http.StatusOK, api.HealthStatusHealthy},
		{"redis down", ok, down, http.StatusOK, api.HealthStatusDegraded},
		{"database down", down, ok, http.StatusServiceUnavailable, api.HealthStatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t, api.HealthOptions{Checks: map[string]api.HealthChecker{
				"database": api.DatabaseHealthChecker(tt.db),
				"redis":    api.RedisHealthChecker(tt.redis),
			}})

			w := env.do(t, http.MethodGet, "/health", nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantHealth, decode[api.HealthResponse](t, w).Status)
		})
	}
}

func TestMiddleware_RequestIDAndRecovery(t *testing.T) {
	env := setupTestEnv(t, api.HealthOptions{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

	w = env.do(t, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	env.classifier.panics = true
	w = env.do(t, http.MethodPost, "/api/v1/classify/c1", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, domain.KindInternal, decode[api.ErrorResponse](t, w).Kind)
}
