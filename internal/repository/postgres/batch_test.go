package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/bulkpromo/internal/domain"
	"github.com/utafrali/bulkpromo/internal/repository"
	"github.com/utafrali/bulkpromo/pkg/database"
	apperrors "github.com/utafrali/bulkpromo/pkg/errors"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func setupRepo(t *testing.T) (*BatchRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewBatchRepository(mock), mock
}

var sampleTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleBatch() *domain.Batch {
	tmpl := domain.DiscountTemplate{
		Type:               domain.DiscountTypePercentage,
		Value:              15,
		Duration:           domain.DurationOnce,
		MaxRedemptions:     10,
		MaxUsesPerCustomer: 1,
	}
	settings := domain.GenerationSettings{Count: 2, Prefix: "SUMMER"}
	return &domain.Batch{
		ID:             "7b0f8f1e-7c39-4b57-9d0e-0d6c7d3c1a01",
		IdempotencyKey: "key-001",
		Template:       tmpl,
		Settings:       settings,
		Codes: []domain.GeneratedCode{
			domain.NewGeneratedCode("SUMMER_ABCDEFGH", tmpl, 15, nil, sampleTime),
			domain.NewGeneratedCode("SUMMER_JKLMNPQR", tmpl, 15, nil, sampleTime),
		},
		CreatedAt: sampleTime,
	}
}

func payloadOf(t *testing.T, c domain.GeneratedCode) []byte {
	t.Helper()
	b, err := json.Marshal(c)
	require.NoError(t, err)
	return b
}

// ---------------------------------------------------------------------------
// CommitBatch
// ---------------------------------------------------------------------------

func TestCommitBatch_Success(t *testing.T) {
	repo, mock := setupRepo(t)
	b := sampleBatch()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO code_batches").
		WithArgs(
			b.ID, b.IdempotencyKey, "percentage", "SUMMER",
			pgxmock.AnyArg(), // template JSON
			pgxmock.AnyArg(), // settings JSON
			2, b.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"discount_codes"}, codeColumns).WillReturnResult(2)
	mock.ExpectCommit()

	receipt, err := repo.CommitBatch(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, b.ID, receipt.BatchID)
	assert.Equal(t, 2, receipt.CreatedCount)
	assert.Equal(t, b.Codes, receipt.Codes)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitBatch_ReplayedKeyReturnsStoredReceipt(t *testing.T) {
	repo, mock := setupRepo(t)
	b := sampleBatch()
	stored := sampleBatch()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO code_batches").
		WithArgs(
			b.ID, b.IdempotencyKey, "percentage", "SUMMER",
			pgxmock.AnyArg(), pgxmock.AnyArg(), 2, b.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT b.id, c.payload").
		WithArgs(b.IdempotencyKey).
		WillReturnRows(pgxmock.NewRows([]string{"id", "payload"}).
			AddRow("stored-batch", payloadOf(t, stored.Codes[0])).
			AddRow("stored-batch", payloadOf(t, stored.Codes[1])))
	mock.ExpectRollback()

	receipt, err := repo.CommitBatch(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, "stored-batch", receipt.BatchID)
	assert.Equal(t, 2, receipt.CreatedCount)
	assert.Equal(t, "SUMMER_ABCDEFGH", receipt.Codes[0].Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitBatch_DuplicateCode(t *testing.T) {
	repo, mock := setupRepo(t)
	b := sampleBatch()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO code_batches").
		WithArgs(
			b.ID, b.IdempotencyKey, "percentage", "SUMMER",
			pgxmock.AnyArg(), pgxmock.AnyArg(), 2, b.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"discount_codes"}, codeColumns).
		WillReturnError(errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"))
	mock.ExpectRollback()

	receipt, err := repo.CommitBatch(context.Background(), b)
	assert.Nil(t, receipt)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitBatch_BeginError(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	_, err := repo.CommitBatch(context.Background(), sampleBatch())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// GetBatch
// ---------------------------------------------------------------------------

func TestGetBatch_Success(t *testing.T) {
	repo, mock := setupRepo(t)
	b := sampleBatch()
	templateJSON, _ := json.Marshal(b.Template)
	settingsJSON, _ := json.Marshal(b.Settings)

	mock.ExpectQuery("SELECT id, idempotency_key, template, settings, created_at").
		WithArgs(b.ID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "idempotency_key", "template", "settings", "created_at"}).
			AddRow(b.ID, b.IdempotencyKey, templateJSON, settingsJSON, b.CreatedAt))
	mock.ExpectQuery("SELECT payload FROM discount_codes").
		WithArgs(b.ID).
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).
			AddRow(payloadOf(t, b.Codes[0])).
			AddRow(payloadOf(t, b.Codes[1])))

	got, err := repo.GetBatch(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.IdempotencyKey, got.IdempotencyKey)
	assert.Equal(t, domain.DiscountTypePercentage, got.Template.Type)
	assert.Equal(t, "SUMMER", got.Settings.Prefix)
	require.Len(t, got.Codes, 2)
	assert.Equal(t, "SUMMER_JKLMNPQR", got.Codes[1].Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBatch_NotFound(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectQuery("SELECT id, idempotency_key").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetBatch(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// ListBatches
// ---------------------------------------------------------------------------

func TestListBatches_WithTypeFilter(t *testing.T) {
	repo, mock := setupRepo(t)
	typ := "percentage"

	mock.ExpectQuery("SELECT id, type, prefix, created_count, created_at").
		WithArgs(typ, 10, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "type", "prefix", "created_count", "created_at", "total_count"}).
			AddRow("b-1", "percentage", "SUMMER", 100, sampleTime, 11))

	batches, total, err := repo.ListBatches(context.Background(), repository.BatchFilter{Type: &typ, Page: 2, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, batches, 1)
	assert.Equal(t, domain.DiscountTypePercentage, batches[0].Type)
	assert.Equal(t, 100, batches[0].CreatedCount)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBatches_Empty(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectQuery("SELECT id, type, prefix").
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "type", "prefix", "created_count", "created_at", "total_count"}))

	batches, total, err := repo.ListBatches(context.Background(), repository.BatchFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NotNil(t, batches)
	assert.Empty(t, batches)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// CodesExist
// ---------------------------------------------------------------------------

func TestCodesExist(t *testing.T) {
	repo, mock := setupRepo(t)
	codes := []string{"A_1", "A_2", "A_3"}

	mock.ExpectQuery("SELECT code FROM discount_codes").
		WithArgs(codes).
		WillReturnRows(pgxmock.NewRows([]string{"code"}).AddRow("A_2"))

	existing, err := repo.CodesExist(context.Background(), codes)
	require.NoError(t, err)
	assert.Equal(t, []string{"A_2"}, existing)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCodesExist_EmptyInputSkipsQuery(t *testing.T) {
	repo, mock := setupRepo(t)

	existing, err := repo.CodesExist(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, existing)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Migrations
// ---------------------------------------------------------------------------

func TestMigrations_Embedded(t *testing.T) {
	entries, err := fs.ReadDir(Migrations(), ".")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "001_create_code_batches.up.sql")
	assert.Contains(t, names, "002_create_discount_codes.up.sql")

	content, err := fs.ReadFile(Migrations(), "002_create_discount_codes.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(content), "code            VARCHAR(50) PRIMARY KEY")
}
