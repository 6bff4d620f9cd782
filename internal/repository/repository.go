package repository

import (
	"context"
	"errors"

	"github.com/utafrali/bulkpromo/internal/domain"
)

// ErrInProgress is returned by an idempotency store when another request
// holds the key.
var ErrInProgress = errors.New("request with this idempotency key is in progress")

// BatchFilter defines filter criteria for listing batches.
type BatchFilter struct {
	Type    *string
	Page    int
	PerPage int
}

// BatchRepository persists committed batches and their codes.
type BatchRepository interface {
	// CommitBatch stores the batch and every code atomically. A repeated
	// idempotency key returns the receipt of the batch already stored.
	CommitBatch(ctx context.Context, batch *domain.Batch) (*domain.CommitReceipt, error)

	// GetBatch retrieves a batch with its codes.
	GetBatch(ctx context.Context, id string) (*domain.Batch, error)

	// ListBatches returns batch summaries matching the filter along with the total count.
	ListBatches(ctx context.Context, filter BatchFilter) ([]domain.BatchSummary, int, error)

	// CodesExist returns the subset of codes already stored.
	CodesExist(ctx context.Context, codes []string) ([]string, error)
}

// IdempotencyStore remembers the outcome of generate requests by client key.
type IdempotencyStore interface {
	// Reserve claims the key. It returns false when the key is already held
	// or completed.
	Reserve(ctx context.Context, key string) (bool, error)

	// Complete stores the receipt for the key.
	Complete(ctx context.Context, key string, receipt *domain.CommitReceipt) error

	// Lookup returns the stored receipt, nil when the key is unknown, or
	// ErrInProgress when the key is reserved but not completed.
	Lookup(ctx context.Context, key string) (*domain.CommitReceipt, error)

	// Release drops a reservation so the request may be retried.
	Release(ctx context.Context, key string) error
}
