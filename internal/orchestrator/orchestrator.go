// Package orchestrator drives one generation session through validation,
// preview and commit.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/bulkpromo/internal/domain"
	apperrors "github.com/utafrali/bulkpromo/pkg/errors"
)

// State is a session lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StatePreviewing State = "previewing"
	StateReady      State = "ready"
	StateGenerating State = "generating"
	StateCommitted  State = "committed"
	StateFailed     State = "failed"
)

const (
	DefaultDebounce         = 300 * time.Millisecond
	MaxDebounce             = time.Second
	DefaultPreviewSampleCap = 50
)

var (
	ErrOperationInProgress = apperrors.Conflict("another preview or generate is already running for this session")
	ErrAlreadyCommitted    = apperrors.Conflict("batch already committed, update the template or settings to generate again")
	ErrKeyPinned           = apperrors.Conflict("idempotency key is fixed once a commit was attempted, retry with the same key or update the template or settings")
)

// Validator checks inputs.
type Validator interface {
	Validate(t domain.DiscountTemplate, s domain.GenerationSettings) domain.ValidationResult
}

// CodeGenerator synthesizes codes with variation applied.
type CodeGenerator interface {
	Generate(ctx context.Context, t domain.DiscountTemplate, s domain.GenerationSettings, count int) ([]domain.GeneratedCode, error)
}

// Committer persists a batch as one unit.
type Committer interface {
	CommitBatch(ctx context.Context, batch *domain.Batch) (*domain.CommitReceipt, error)
}

// Config tunes timing and sample size.
type Config struct {
	Debounce         time.Duration
	PreviewSampleCap int
}

// PreviewResult holds sample codes. Codes is empty when validation failed.
type PreviewResult struct {
	Codes      []domain.GeneratedCode  `json:"codes"`
	Validation domain.ValidationResult `json:"validation"`
}

// GenerateResult holds the commit receipt. Receipt is nil when validation failed.
type GenerateResult struct {
	Receipt    *domain.CommitReceipt   `json:"receipt,omitempty"`
	Validation domain.ValidationResult `json:"validation"`
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	State          State                     `json:"state"`
	Template       domain.DiscountTemplate   `json:"template"`
	Settings       domain.GenerationSettings `json:"settings"`
	Validation     *domain.ValidationResult  `json:"validation,omitempty"`
	IdempotencyKey string                    `json:"idempotencyKey,omitempty"`
	Receipt        *domain.CommitReceipt     `json:"receipt,omitempty"`
	LastError      string                    `json:"lastError,omitempty"`
	UpdatedAt      time.Time                 `json:"updatedAt"`
}

// Orchestrator is one generation session. All methods are safe for
// concurrent use; at most one preview or generate runs at a time.
type Orchestrator struct {
	validator Validator
	generator CodeGenerator
	committer Committer
	logger    *slog.Logger
	debounce  time.Duration
	sampleCap int
	now       func() time.Time

	mu             sync.Mutex
	state          State
	template       domain.DiscountTemplate
	settings       domain.GenerationSettings
	validation     *domain.ValidationResult
	version        uint64
	timer          *time.Timer
	busy           bool
	idempotencyKey string
	keyPinned      bool
	receipt        *domain.CommitReceipt
	lastErr        error
	updatedAt      time.Time
}

// New returns an idle session.
func New(v Validator, g CodeGenerator, c Committer, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	}
	if cfg.Debounce > MaxDebounce {
		cfg.Debounce = MaxDebounce
	}
	if cfg.PreviewSampleCap <= 0 {
		cfg.PreviewSampleCap = DefaultPreviewSampleCap
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		validator: v,
		generator: g,
		committer: c,
		logger:    logger,
		debounce:  cfg.Debounce,
		sampleCap: cfg.PreviewSampleCap,
		now:       func() time.Time { return time.Now().UTC() },
		state:     StateIdle,
	}
	o.updatedAt = o.now()
	return o
}

// Update replaces the inputs with copies and schedules validation after the
// debounce window. It rotates the idempotency key.
func (o *Orchestrator) Update(t domain.DiscountTemplate, s domain.GenerationSettings) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.busy && o.state == StateGenerating {
		return ErrOperationInProgress
	}

	o.template = t.Clone()
	o.settings = s.Normalize()
	o.version++
	o.idempotencyKey = uuid.NewString()
	o.keyPinned = false
	o.receipt = nil
	o.lastErr = nil
	o.validation = nil
	o.setState(StateValidating)

	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	if o.debounce == 0 {
		o.validateLocked()
		return nil
	}
	version := o.version
	o.timer = time.AfterFunc(o.debounce, func() { o.validateIfCurrent(version) })
	return nil
}

// Flush runs any pending validation now and returns the current result.
func (o *Orchestrator) Flush() domain.ValidationResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.flushLocked()
}

// Preview validates and, when valid, synthesizes up to the sample cap. It
// never calls the committer.
func (o *Orchestrator) Preview(ctx context.Context) (*PreviewResult, error) {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return nil, ErrOperationInProgress
	}
	res := o.flushLocked()
	if !res.Valid {
		o.mu.Unlock()
		return &PreviewResult{Codes: []domain.GeneratedCode{}, Validation: res}, nil
	}

	t, s, version := o.template.Clone(), o.settings.Clone(), o.version
	o.busy = true
	o.setState(StatePreviewing)
	o.mu.Unlock()

	codes, err := o.generator.Generate(ctx, t, s, min(s.Count, o.sampleCap))

	o.mu.Lock()
	defer o.mu.Unlock()
	o.busy = false

	stale := version != o.version
	switch {
	case ctx.Err() != nil:
		if !stale {
			o.setState(o.settledState())
		}
		return nil, ctx.Err()
	case err != nil:
		if !stale {
			o.lastErr = err
			o.setState(StateFailed)
		}
		return nil, err
	}
	if !stale {
		o.setState(o.settledState())
	}
	return &PreviewResult{Codes: codes, Validation: res}, nil
}

// Generate re-validates, synthesizes the full count and commits the batch
// once. A failed commit leaves the inputs and idempotency key in place so a
// retry reuses them.
func (o *Orchestrator) Generate(ctx context.Context) (*GenerateResult, error) {
	return o.GenerateWithKey(ctx, "")
}

// GenerateWithKey is Generate with a caller-supplied idempotency key, which
// replaces the session key until the next Update. Once the committer has been
// called with a key, only that key is accepted.
func (o *Orchestrator) GenerateWithKey(ctx context.Context, key string) (*GenerateResult, error) {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return nil, ErrOperationInProgress
	}
	if o.receipt != nil {
		o.mu.Unlock()
		return nil, ErrAlreadyCommitted
	}
	if key != "" && key != o.idempotencyKey {
		if o.keyPinned {
			o.mu.Unlock()
			return nil, ErrKeyPinned
		}
		o.idempotencyKey = key
	}
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.validateLocked()
	res := *o.validation
	if !res.Valid {
		o.mu.Unlock()
		return &GenerateResult{Validation: res}, nil
	}

	t, s := o.template.Clone(), o.settings.Clone()
	if o.idempotencyKey == "" {
		o.idempotencyKey = uuid.NewString()
	}
	key = o.idempotencyKey
	o.busy = true
	o.lastErr = nil
	o.setState(StateGenerating)
	o.mu.Unlock()

	receipt, err := o.generateAndCommit(ctx, t, s, key, o.pinKey)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.busy = false

	if err != nil {
		if errors.Is(err, errDiscarded) {
			o.setState(StateReady)
			return nil, ctx.Err()
		}
		o.lastErr = err
		o.setState(StateFailed)
		return nil, err
	}
	o.receipt = receipt
	o.setState(StateCommitted)
	return &GenerateResult{Receipt: receipt, Validation: res}, nil
}

// errDiscarded marks work abandoned before the committer was reached.
var errDiscarded = errors.New("generation discarded before commit")

func (o *Orchestrator) generateAndCommit(ctx context.Context, t domain.DiscountTemplate, s domain.GenerationSettings, key string, beforeCommit func()) (*domain.CommitReceipt, error) {
	if ctx.Err() != nil {
		return nil, errDiscarded
	}
	codes, err := o.generator.Generate(ctx, t, s, s.Count)
	if ctx.Err() != nil {
		return nil, errDiscarded
	}
	if err != nil {
		return nil, err
	}

	batch := &domain.Batch{
		ID:             uuid.NewString(),
		IdempotencyKey: key,
		Template:       t,
		Settings:       s,
		Codes:          codes,
		CreatedAt:      o.now(),
	}
	beforeCommit()
	return o.committer.CommitBatch(ctx, batch)
}

func (o *Orchestrator) pinKey() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.keyPinned = true
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastError returns the error that moved the session to Failed, if any.
func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Snapshot returns a copy of the session.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{
		State:          o.state,
		Template:       o.template.Clone(),
		Settings:       o.settings.Clone(),
		IdempotencyKey: o.idempotencyKey,
		Receipt:        o.receipt,
		UpdatedAt:      o.updatedAt,
	}
	if o.validation != nil {
		v := *o.validation
		snap.Validation = &v
	}
	if o.lastErr != nil {
		snap.LastError = o.lastErr.Error()
	}
	return snap
}

// Close cancels any pending validation timer.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

func (o *Orchestrator) validateIfCurrent(version uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if version != o.version || o.state != StateValidating {
		return
	}
	o.timer = nil
	o.validateLocked()
}

func (o *Orchestrator) flushLocked() domain.ValidationResult {
	if o.state == StateValidating || o.validation == nil {
		if o.timer != nil {
			o.timer.Stop()
			o.timer = nil
		}
		o.validateLocked()
	}
	return *o.validation
}

func (o *Orchestrator) validateLocked() {
	res := o.validator.Validate(o.template, o.settings)
	o.validation = &res
	if res.Valid {
		o.setState(StateReady)
		return
	}
	o.setState(StateFailed)
}

// settledState is where a finished preview returns to.
func (o *Orchestrator) settledState() State {
	if o.receipt != nil {
		return StateCommitted
	}
	return StateReady
}

func (o *Orchestrator) setState(s State) {
	if o.state == s {
		return
	}
	o.logger.Debug("session state changed",
		slog.String("from", string(o.state)),
		slog.String("to", string(s)),
	)
	o.state = s
	o.updatedAt = o.now()
}
