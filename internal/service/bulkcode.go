package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/bulkpromo/internal/advisor"
	"github.com/utafrali/bulkpromo/internal/backend"
	"github.com/utafrali/bulkpromo/internal/domain"
	"github.com/utafrali/bulkpromo/internal/orchestrator"
	"github.com/utafrali/bulkpromo/internal/repository"
	apperrors "github.com/utafrali/bulkpromo/pkg/errors"
	"github.com/utafrali/bulkpromo/pkg/tracing"
)

var tracer = tracing.Tracer("service")

// EventPublisher publishes batch lifecycle events.
type EventPublisher interface {
	PublishBatchGenerated(ctx context.Context, key string, t domain.DiscountTemplate, s domain.GenerationSettings, receipt *domain.CommitReceipt) error
	PublishBatchFailed(ctx context.Context, key string, t domain.DiscountTemplate, s domain.GenerationSettings, cause error) error
}

// RemotePreviewer returns the backend's validation echo for a request.
type RemotePreviewer interface {
	Preview(ctx context.Context, t domain.DiscountTemplate, s domain.GenerationSettings) (*backend.PreviewResponse, error)
}

// RemoteAdvisor returns suggestions computed by the backend.
type RemoteAdvisor interface {
	Suggest(ctx context.Context, bc domain.BusinessContext) (*domain.Suggestions, error)
}

// BatchReader reads committed batches.
type BatchReader interface {
	GetBatch(ctx context.Context, id string) (*domain.Batch, error)
	ListBatches(ctx context.Context, filter repository.BatchFilter) ([]domain.BatchSummary, int, error)
}

// Config tunes sessions and previews.
type Config struct {
	Debounce         time.Duration
	PreviewSampleCap int
}

// PreviewResult holds sample codes, local validation and, when a remote
// backend is configured, its validation echo.
type PreviewResult struct {
	Codes            []domain.GeneratedCode   `json:"codes"`
	Validation       domain.ValidationResult  `json:"validation"`
	ServerValidation *domain.ValidationResult `json:"serverValidation,omitempty"`
}

// GenerateResult holds the receipt of a committed batch. Receipt is nil when
// validation failed. Replayed is set when the receipt came from an earlier
// request with the same idempotency key.
type GenerateResult struct {
	Receipt    *domain.CommitReceipt   `json:"receipt,omitempty"`
	Validation domain.ValidationResult `json:"validation"`
	Replayed   bool                    `json:"replayed"`
}

// Option configures optional collaborators.
type Option func(*BulkCodeService)

// WithRemote enables the backend preview echo and remote suggestions.
func WithRemote(p RemotePreviewer, a RemoteAdvisor) Option {
	return func(s *BulkCodeService) {
		s.remotePreview = p
		s.remoteAdvisor = a
	}
}

// WithBatchReader enables batch history lookups.
func WithBatchReader(r BatchReader) Option {
	return func(s *BulkCodeService) { s.batches = r }
}

// WithIdempotencyStore enables request-level replay protection for Generate.
func WithIdempotencyStore(store repository.IdempotencyStore) Option {
	return func(s *BulkCodeService) { s.idempotency = store }
}

// BulkCodeService implements validation, preview, generation and
// suggestions for bulk discount codes, plus long-lived editing sessions.
type BulkCodeService struct {
	validator orchestrator.Validator
	generator orchestrator.CodeGenerator
	committer orchestrator.Committer
	advisor   *advisor.Advisor
	cfg       Config
	logger    *slog.Logger

	idempotency   repository.IdempotencyStore
	remotePreview RemotePreviewer
	remoteAdvisor RemoteAdvisor
	batches       BatchReader

	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
}

// NewBulkCodeService creates a new bulk code service. The committer is
// wrapped so every commit is timed and announced on the event bus.
func NewBulkCodeService(
	v orchestrator.Validator,
	g orchestrator.CodeGenerator,
	c orchestrator.Committer,
	producer EventPublisher,
	cfg Config,
	logger *slog.Logger,
	opts ...Option,
) *BulkCodeService {
	s := &BulkCodeService{
		validator: v,
		generator: g,
		committer: &publishingCommitter{next: c, producer: producer, logger: logger},
		advisor:   advisor.New(),
		cfg:       cfg,
		logger:    logger,
		sessions:  make(map[string]*session),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks a template and settings synchronously.
func (s *BulkCodeService) Validate(t domain.DiscountTemplate, settings domain.GenerationSettings) domain.ValidationResult {
	res := s.validator.Validate(t, settings.Normalize())
	validationResults.WithLabelValues(strconv.FormatBool(res.Valid)).Inc()
	return res
}

// Preview validates the request and returns a capped sample of codes.
// Nothing is persisted.
func (s *BulkCodeService) Preview(ctx context.Context, t domain.DiscountTemplate, settings domain.GenerationSettings) (*PreviewResult, error) {
	ctx, span := tracer.Start(ctx, "BulkCodeService.Preview", trace.WithAttributes(
		attribute.Int("bulkpromo.count", settings.Count),
		attribute.String("bulkpromo.type", string(t.Type)),
	))
	defer span.End()

	o := s.oneShot()
	defer o.Close()
	if err := o.Update(t, settings); err != nil {
		return nil, err
	}
	return s.preview(ctx, span, o)
}

// Generate validates, synthesizes and commits the full batch. When key is
// non-empty and an idempotency store is configured, a repeated request with
// the same key returns the first receipt instead of creating a new batch.
func (s *BulkCodeService) Generate(ctx context.Context, t domain.DiscountTemplate, settings domain.GenerationSettings, key string) (*GenerateResult, error) {
	ctx, span := tracer.Start(ctx, "BulkCodeService.Generate", trace.WithAttributes(
		attribute.Int("bulkpromo.count", settings.Count),
		attribute.String("bulkpromo.type", string(t.Type)),
	))
	defer span.End()

	if key != "" && s.idempotency != nil {
		res, done, err := s.replay(ctx, key, t, settings)
		if done || err != nil {
			recordSpanError(span, err)
			return res, err
		}
	}

	o := s.oneShot()
	defer o.Close()
	if err := o.Update(t, settings); err != nil {
		return nil, err
	}
	res, err := s.generate(ctx, span, o, key)

	if key != "" && s.idempotency != nil {
		s.settleKey(ctx, key, res, err)
	}
	return res, err
}

// replay resolves a request whose key may already be known. done reports
// that the caller must not run the generation.
func (s *BulkCodeService) replay(ctx context.Context, key string, t domain.DiscountTemplate, settings domain.GenerationSettings) (*GenerateResult, bool, error) {
	receipt, err := s.idempotency.Lookup(ctx, key)
	switch {
	case errors.Is(err, repository.ErrInProgress):
		generationFailures.WithLabelValues(reasonConflict).Inc()
		return nil, true, orchestrator.ErrOperationInProgress
	case err != nil:
		s.logger.WarnContext(ctx, "idempotency lookup failed, continuing without replay protection",
			slog.String("idempotency_key", key),
			slog.String("error", err.Error()),
		)
		return nil, false, nil
	case receipt != nil:
		s.logger.InfoContext(ctx, "replaying committed batch",
			slog.String("idempotency_key", key),
			slog.String("batch_id", receipt.BatchID),
		)
		return &GenerateResult{
			Receipt:    receipt,
			Validation: s.validator.Validate(t, settings.Normalize()),
			Replayed:   true,
		}, true, nil
	}

	reserved, err := s.idempotency.Reserve(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "idempotency reserve failed, continuing without replay protection",
			slog.String("idempotency_key", key),
			slog.String("error", err.Error()),
		)
		return nil, false, nil
	}
	if !reserved {
		generationFailures.WithLabelValues(reasonConflict).Inc()
		return nil, true, orchestrator.ErrOperationInProgress
	}
	return nil, false, nil
}

// settleKey stores the receipt under key, or frees the key so the client
// can retry.
func (s *BulkCodeService) settleKey(ctx context.Context, key string, res *GenerateResult, genErr error) {
	ctx = context.WithoutCancel(ctx)
	if genErr == nil && res != nil && res.Receipt != nil {
		if err := s.idempotency.Complete(ctx, key, res.Receipt); err != nil {
			s.logger.ErrorContext(ctx, "failed to store idempotency receipt",
				slog.String("idempotency_key", key),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	if err := s.idempotency.Release(ctx, key); err != nil {
		s.logger.ErrorContext(ctx, "failed to release idempotency key",
			slog.String("idempotency_key", key),
			slog.String("error", err.Error()),
		)
	}
}

// Suggest returns template and prefix suggestions. The remote backend is
// preferred; its failures fall back to the built-in advisor.
func (s *BulkCodeService) Suggest(ctx context.Context, bc domain.BusinessContext) domain.Suggestions {
	ctx, span := tracer.Start(ctx, "BulkCodeService.Suggest")
	defer span.End()

	if s.remoteAdvisor != nil {
		remote, err := s.remoteAdvisor.Suggest(ctx, bc)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "remote suggestions failed, using built-in advisor",
				slog.String("error", err.Error()),
			)
		case remote != nil && len(remote.SuggestedTemplates) > 0:
			if remote.SuggestedPrefixes == nil {
				remote.SuggestedPrefixes = []string{}
			}
			return *remote
		}
	}
	span.SetAttributes(attribute.Bool("bulkpromo.suggest.local", true))
	return s.advisor.Suggest(bc)
}

// GetBatch retrieves a committed batch by id.
func (s *BulkCodeService) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	if s.batches == nil {
		return nil, errBatchHistoryUnavailable
	}
	return s.batches.GetBatch(ctx, id)
}

// ListBatches returns committed batch summaries, newest first.
func (s *BulkCodeService) ListBatches(ctx context.Context, filter repository.BatchFilter) ([]domain.BatchSummary, int, error) {
	if s.batches == nil {
		return nil, 0, errBatchHistoryUnavailable
	}
	if filter.Type != nil && !domain.IsValidType(domain.DiscountType(*filter.Type)) {
		return nil, 0, apperrors.InvalidInput("unknown discount type filter: " + *filter.Type)
	}
	return s.batches.ListBatches(ctx, filter)
}

var errBatchHistoryUnavailable = apperrors.ServiceUnavailable("batch history is only available in local commit mode")

func (s *BulkCodeService) oneShot() *orchestrator.Orchestrator {
	return orchestrator.New(s.validator, s.generator, s.committer, orchestrator.Config{
		PreviewSampleCap: s.cfg.PreviewSampleCap,
	}, s.logger)
}

func (s *BulkCodeService) preview(ctx context.Context, span trace.Span, o *orchestrator.Orchestrator) (*PreviewResult, error) {
	res, err := o.Preview(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	validationResults.WithLabelValues(strconv.FormatBool(res.Validation.Valid)).Inc()

	out := &PreviewResult{Codes: res.Codes, Validation: res.Validation}
	if !res.Validation.Valid || s.remotePreview == nil {
		return out, nil
	}

	snap := o.Snapshot()
	echo, err := s.remotePreview.Preview(ctx, snap.Template, snap.Settings)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	out.ServerValidation = &echo.Validation
	return out, nil
}

func (s *BulkCodeService) generate(ctx context.Context, span trace.Span, o *orchestrator.Orchestrator, key string) (*GenerateResult, error) {
	res, err := o.GenerateWithKey(ctx, key)
	if err != nil {
		generationFailures.WithLabelValues(failureReason(err)).Inc()
		recordSpanError(span, err)
		s.logger.ErrorContext(ctx, "bulk generation failed",
			slog.String("idempotency_key", o.Snapshot().IdempotencyKey),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	validationResults.WithLabelValues(strconv.FormatBool(res.Validation.Valid)).Inc()
	if res.Receipt == nil {
		generationFailures.WithLabelValues(reasonValidation).Inc()
		return &GenerateResult{Validation: res.Validation}, nil
	}

	codesGenerated.Add(float64(res.Receipt.CreatedCount))
	span.SetAttributes(
		attribute.String("bulkpromo.batch_id", res.Receipt.BatchID),
		attribute.Int("bulkpromo.created_count", res.Receipt.CreatedCount),
	)
	s.logger.InfoContext(ctx, "bulk codes generated",
		slog.String("batch_id", res.Receipt.BatchID),
		slog.Int("created_count", res.Receipt.CreatedCount),
	)
	return &GenerateResult{Receipt: res.Receipt, Validation: res.Validation}, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return reasonCanceled
	case errors.Is(err, apperrors.ErrGenerationExhausted):
		return reasonExhausted
	case errors.Is(err, apperrors.ErrExternalService):
		return reasonExternal
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrAlreadyExists):
		return reasonConflict
	default:
		return reasonInternal
	}
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// publishingCommitter times commits and publishes their outcome. Publishing
// failures are logged and never fail the commit.
type publishingCommitter struct {
	next     orchestrator.Committer
	producer EventPublisher
	logger   *slog.Logger
}

func (c *publishingCommitter) CommitBatch(ctx context.Context, b *domain.Batch) (*domain.CommitReceipt, error) {
	start := time.Now()
	receipt, err := c.next.CommitBatch(ctx, b)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	commitDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if c.producer == nil {
		return receipt, err
	}
	pubCtx := context.WithoutCancel(ctx)
	if err != nil {
		if pubErr := c.producer.PublishBatchFailed(pubCtx, b.IdempotencyKey, b.Template, b.Settings, err); pubErr != nil {
			c.logger.ErrorContext(ctx, "failed to publish batch.failed event",
				slog.String("idempotency_key", b.IdempotencyKey),
				slog.String("error", pubErr.Error()),
			)
		}
		return nil, err
	}
	if pubErr := c.producer.PublishBatchGenerated(pubCtx, b.IdempotencyKey, b.Template, b.Settings, receipt); pubErr != nil {
		c.logger.ErrorContext(ctx, "failed to publish batch.generated event",
			slog.String("batch_id", receipt.BatchID),
			slog.String("error", pubErr.Error()),
		)
	}
	return receipt, nil
}
