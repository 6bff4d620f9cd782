package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/bulkpromo/internal/domain"
	"github.com/utafrali/bulkpromo/internal/generator"
	"github.com/utafrali/bulkpromo/internal/repository"
	redisrepo "github.com/utafrali/bulkpromo/internal/repository/redis"
	"github.com/utafrali/bulkpromo/internal/service"
	"github.com/utafrali/bulkpromo/internal/validation"
	apperrors "github.com/utafrali/bulkpromo/pkg/errors"
	"github.com/utafrali/bulkpromo/pkg/health"
	"github.com/utafrali/bulkpromo/pkg/httputil"
)

// ============================================================================
// Mocks
// ============================================================================

type mockCommitter struct {
	mock.Mock
}

func (m *mockCommitter) CommitBatch(ctx context.Context, batch *domain.Batch) (*domain.CommitReceipt, error) {
	args := m.Called(ctx, batch)
	if fn, ok := args.Get(0).(func(*domain.Batch) *domain.CommitReceipt); ok {
		return fn(batch), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CommitReceipt), args.Error(1)
}

func echoReceipt(b *domain.Batch) *domain.CommitReceipt {
	return &domain.CommitReceipt{BatchID: b.ID, CreatedCount: len(b.Codes), Codes: b.Codes}
}

type stubBatchReader struct {
	batches []domain.BatchSummary
}

func (s *stubBatchReader) GetBatch(_ context.Context, id string) (*domain.Batch, error) {
	for _, b := range s.batches {
		if b.ID == id {
			return &domain.Batch{ID: b.ID, Codes: []domain.GeneratedCode{}}, nil
		}
	}
	return nil, apperrors.NotFound("batch", id)
}

func (s *stubBatchReader) ListBatches(_ context.Context, _ repository.BatchFilter) ([]domain.BatchSummary, int, error) {
	return s.batches, len(s.batches), nil
}

// ============================================================================
// Test helpers
// ============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer(t *testing.T, c *mockCommitter, opts ...service.Option) http.Handler {
	t.Helper()
	synth, err := generator.NewSynthesizer("", 0, generator.NewSeededSource(11))
	require.NoError(t, err)
	return newTestServerWithSynth(t, c, synth, opts...)
}

func newTestServerWithSynth(t *testing.T, c *mockCommitter, synth *generator.Synthesizer, opts ...service.Option) http.Handler {
	t.Helper()
	svc := service.NewBulkCodeService(
		validation.New(validation.Config{}),
		generator.New(synth),
		c,
		nil,
		service.Config{PreviewSampleCap: 10},
		testLogger(),
		opts...,
	)
	t.Cleanup(svc.CloseSessions)
	return NewRouter(svc, health.NewHandler(), RouterConfig{ServiceName: "bulkpromo-test", Environment: "development"}, testLogger())
}

func bulkBody(count int, mutate func(map[string]any)) []byte {
	body := map[string]any{
		"baseTemplate": map[string]any{
			"name":               "Spring sale",
			"type":               "percentage",
			"value":              15,
			"duration":           "once",
			"maxRedemptions":     100,
			"maxUsesPerCustomer": 1,
		},
		"count":  count,
		"prefix": "spring",
	}
	if mutate != nil {
		mutate(body)
	}
	b, _ := json.Marshal(body)
	return b
}

func do(t *testing.T, h http.Handler, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage         `json:"data"`
	Error *httputil.ErrorResponse `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

// ============================================================================
// Validate
// ============================================================================

func TestValidate_ReturnsResultAsData(t *testing.T) {
	h := newTestServer(t, &mockCommitter{})

	rec := do(t, h, http.MethodPost, "/api/v1/bulk-codes/validate", bulkBody(0, func(b map[string]any) {
		b["prefix"] = "no spaces"
	}), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res domain.ValidationResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &res))
	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 2)
}

func TestValidate_RejectsWrongContentType(t *testing.T) {
	h := newTestServer(t, &mockCommitter{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bulk-codes/validate", bytes.NewReader(bulkBody(1, nil)))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestValidate_RejectsUnknownFieldsAndMissingTemplate(t *testing.T) {
	h := newTestServer(t, &mockCommitter{})

	rec := do(t, h, http.MethodPost, "/api/v1/bulk-codes/validate", bulkBody(1, func(b map[string]any) {
		b["surprise"] = true
	}), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/bulk-codes/validate", []byte(`{"count":1}`), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "baseTemplate")
}

// ============================================================================
// Preview
// ============================================================================

func TestPreview_Success(t *testing.T) {
	c := &mockCommitter{}
	h := newTestServer(t, c)

	rec := do(t, h, http.MethodPost, "/api/v1/bulk-codes/preview", bulkBody(500, nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res service.PreviewResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &res))
	assert.Len(t, res.Codes, 10)
	assert.Equal(t, 15.0, res.Codes[0].ResolvedValue)
	c.AssertNotCalled(t, "CommitBatch", mock.Anything, mock.Anything)
}

func TestPreview_InvalidReturns422(t *testing.T) {
	h := newTestServer(t, &mockCommitter{})

	rec := do(t, h, http.MethodPost, "/api/v1/bulk-codes/preview", bulkBody(1001, nil), nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	env := decode(t, rec)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Equal(t, []string{"count must be between 1 and 1000, got 1001"}, env.Error.Details)
}

// ============================================================================
// Generate
// ============================================================================

func TestGenerate_Created(t *testing.T) {
	c := &mockCommitter{}
	c.On("CommitBatch", mock.Anything, mock.Anything).Return(echoReceipt, nil).Once()
	h := newTestServer(t, c)

	rec := do(t, h, http.MethodPost, "/api/v1/bulk-codes/generate", bulkBody(20, nil), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var res service.GenerateResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &res))
	require.NotNil(t, res.Receipt)
	assert.Equal(t, 20, res.Receipt.CreatedCount)
	assert.Len(t, res.Receipt.Codes, 20)
	c.AssertExpectations(t)
}

func TestGenerate_IdempotentReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := redisrepo.NewIdempotencyStore(client, time.Hour, time.Minute)

	c := &mockCommitter{}
	c.On("CommitBatch", mock.Anything, mock.Anything).Return(echoReceipt, nil).Once()
	h := newTestServer(t, c, service.WithIdempotencyStore(store))
	headers := map[string]string{"Idempotency-Key": "req-42"}

	first := do(t, h, http.MethodPost, "/api/v1/bulk-codes/generate", bulkBody(3, nil), headers)
	require.Equal(t, http.StatusCreated, first.Code)

	second := do(t, h, http.MethodPost, "/api/v1/bulk-codes/generate", bulkBody(3, nil), headers)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))

	var a, b service.GenerateResult
	require.NoError(t, json.Unmarshal(decode(t, first).Data, &a))
	require.NoError(t, json.Unmarshal(decode(t, second).Data, &b))
	assert.Equal(t, a.Receipt.BatchID, b.Receipt.BatchID)
	assert.True(t, b.Replayed)

	c.AssertNumberOfCalls(t, "CommitBatch", 1)
}

func TestGenerate_InvalidReturns422(t *testing.T) {
	c := &mockCommitter{}
	h := newTestServer(t, c)

	rec := do(t, h, http.MethodPost, "/api/v1/bulk-codes/generate", bulkBody(5, func(b map[string]any) {
		b["enableRandomization"] = true
		b["valueVariation"] = map[string]any{"enabled": true, "minValue": 30, "maxValue": 10}
	}), nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", decode(t, rec).Error.Code)
	c.AssertNotCalled(t, "CommitBatch", mock.Anything, mock.Anything)
}

func TestGenerate_ExternalFailureReturns502(t *testing.T) {
	c := &mockCommitter{}
	c.On("CommitBatch", mock.Anything, mock.Anything).
		Return(nil, apperrors.ExternalService("discounts-backend", errors.New("connection reset"))).Once()
	h := newTestServer(t, c)

	rec := do(t, h, http.MethodPost, "/api/v1/bulk-codes/generate", bulkBody(2, nil), nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "EXTERNAL_SERVICE_ERROR", decode(t, rec).Error.Code)
}

func TestGenerate_ExhaustionReturns422(t *testing.T) {
	synth, err := generator.NewSynthesizer("XY", 4, generator.NewSeededSource(3))
	require.NoError(t, err)
	h := newTestServerWithSynth(t, &mockCommitter{}, synth)

	rec := do(t, h, http.MethodPost, "/api/v1/bulk-codes/generate", bulkBody(17, nil), nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "GENERATION_EXHAUSTED", decode(t, rec).Error.Code)
}

// ============================================================================
// Suggestions
// ============================================================================

func TestSuggest_LocalAdvisor(t *testing.T) {
	h := newTestServer(t, &mockCommitter{})

	rec := do(t, h, http.MethodPost, "/api/v1/bulk-codes/suggestions",
		[]byte(`{"businessType":"ecommerce","seasonality":"black_friday","campaignType":"promotional"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var s domain.Suggestions
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &s))
	require.NotEmpty(t, s.SuggestedTemplates)
	assert.Equal(t, "BLACKFRIDAY", s.SuggestedPrefixes[0])
}

// ============================================================================
// Batches
// ============================================================================

func TestBatches_UnavailableInRemoteMode(t *testing.T) {
	h := newTestServer(t, &mockCommitter{})

	rec := do(t, h, http.MethodGet, "/api/v1/bulk-codes/batches", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBatches_ListAndGet(t *testing.T) {
	id := "8d5cf6b2-5ef1-4c35-9f8f-0b4b7f1f2a10"
	reader := &stubBatchReader{batches: []domain.BatchSummary{{ID: id, Type: domain.DiscountTypePercentage, CreatedCount: 5}}}
	h := newTestServer(t, &mockCommitter{}, service.WithBatchReader(reader))

	rec := do(t, h, http.MethodGet, "/api/v1/bulk-codes/batches?page=1&per_page=10", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Data       []domain.BatchSummary `json:"data"`
		TotalCount int                   `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, id, page.Data[0].ID)

	rec = do(t, h, http.MethodGet, "/api/v1/bulk-codes/batches/"+id, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/bulk-codes/batches/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/bulk-codes/batches?type=mystery", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================================================
// Health
// ============================================================================

func TestHealthLive(t *testing.T) {
	h := newTestServer(t, &mockCommitter{})
	rec := do(t, h, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
