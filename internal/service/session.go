package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/bulkpromo/internal/domain"
	"github.com/utafrali/bulkpromo/internal/orchestrator"
	apperrors "github.com/utafrali/bulkpromo/pkg/errors"
	"github.com/utafrali/bulkpromo/pkg/logger"
)

// SessionView is a session snapshot with its id.
type SessionView struct {
	ID string `json:"id"`
	orchestrator.Snapshot
}

type session struct {
	id       string
	orch     *orchestrator.Orchestrator
	lastUsed time.Time
}

// CreateSession opens an editing session seeded with t and settings.
// Validation runs after the configured debounce window.
func (s *BulkCodeService) CreateSession(ctx context.Context, t domain.DiscountTemplate, settings domain.GenerationSettings) (*SessionView, error) {
	id := uuid.NewString()
	l := s.logger.With(slog.String("session_id", id))
	o := orchestrator.New(s.validator, s.generator, s.committer, orchestrator.Config{
		Debounce:         s.cfg.Debounce,
		PreviewSampleCap: s.cfg.PreviewSampleCap,
	}, l)
	if err := o.Update(t, settings); err != nil {
		o.Close()
		return nil, err
	}

	s.mu.Lock()
	s.sessions[id] = &session{id: id, orch: o, lastUsed: s.now()}
	activeSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	logger.WithContext(ctx, l).InfoContext(ctx, "session created")
	return &SessionView{ID: id, Snapshot: o.Snapshot()}, nil
}

// UpdateSession replaces the session inputs and restarts validation.
func (s *BulkCodeService) UpdateSession(ctx context.Context, id string, t domain.DiscountTemplate, settings domain.GenerationSettings) (*SessionView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	if err := sess.orch.Update(t, settings); err != nil {
		return nil, err
	}
	return &SessionView{ID: id, Snapshot: sess.orch.Snapshot()}, nil
}

// GetSession returns the session snapshot. Pending validation is flushed so
// the returned result reflects the latest inputs.
func (s *BulkCodeService) GetSession(_ context.Context, id string) (*SessionView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.orch.Flush()
	return &SessionView{ID: id, Snapshot: sess.orch.Snapshot()}, nil
}

// PreviewSession returns sample codes for the session inputs.
func (s *BulkCodeService) PreviewSession(ctx context.Context, id string) (*PreviewResult, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(logger.WithSessionID(ctx, id), "BulkCodeService.PreviewSession",
		trace.WithAttributes(attribute.String("bulkpromo.session_id", id)))
	defer span.End()

	return s.preview(ctx, span, sess.orch)
}

// GenerateSession commits the session batch. A non-empty key replaces the
// session's own idempotency key until the next update, unless a commit with
// another key was already attempted.
func (s *BulkCodeService) GenerateSession(ctx context.Context, id, key string) (*GenerateResult, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(logger.WithSessionID(ctx, id), "BulkCodeService.GenerateSession",
		trace.WithAttributes(attribute.String("bulkpromo.session_id", id)))
	defer span.End()

	return s.generate(ctx, span, sess.orch, key)
}

// DeleteSession closes and forgets a session.
func (s *BulkCodeService) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
		activeSessions.Set(float64(len(s.sessions)))
	}
	s.mu.Unlock()

	if !ok {
		return apperrors.NotFound("session", id)
	}
	sess.orch.Close()
	return nil
}

// SweepSessions closes sessions unused for longer than idle. Sessions with
// an operation in flight are kept. It returns the number removed.
func (s *BulkCodeService) SweepSessions(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	var stale []*session
	for id, sess := range s.sessions {
		if sess.lastUsed.After(cutoff) {
			continue
		}
		switch sess.orch.State() {
		case orchestrator.StatePreviewing, orchestrator.StateGenerating:
			continue
		}
		stale = append(stale, sess)
		delete(s.sessions, id)
	}
	activeSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	for _, sess := range stale {
		sess.orch.Close()
	}
	if len(stale) > 0 {
		s.logger.Info("idle sessions swept", slog.Int("count", len(stale)))
	}
	return len(stale)
}

// RunSessionSweeper sweeps idle sessions every interval until ctx is done.
func (s *BulkCodeService) RunSessionSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepSessions(idle)
		}
	}
}

// CloseSessions closes every open session.
func (s *BulkCodeService) CloseSessions() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	activeSessions.Set(0)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.orch.Close()
	}
}

func (s *BulkCodeService) session(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.NotFound("session", id)
	}
	sess.lastUsed = s.now()
	return sess, nil
}
