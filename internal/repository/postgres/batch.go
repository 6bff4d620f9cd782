package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/bulkpromo/internal/domain"
	"github.com/utafrali/bulkpromo/internal/repository"
	"github.com/utafrali/bulkpromo/pkg/database"
	apperrors "github.com/utafrali/bulkpromo/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema migrations for the batch store.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err) // the directory is embedded at build time
	}
	return sub
}

var codeColumns = []string{
	"code", "batch_id", "position", "type", "resolved_value",
	"currency", "expires_at", "payload", "created_at",
}

// BatchRepository implements repository.BatchRepository using PostgreSQL.
type BatchRepository struct {
	pool database.DBTX
}

// NewBatchRepository creates a new PostgreSQL-backed batch repository.
func NewBatchRepository(pool database.DBTX) *BatchRepository {
	return &BatchRepository{pool: pool}
}

// CommitBatch inserts the batch row and bulk-copies its codes in one
// transaction. If the idempotency key was already used, the stored batch's
// receipt is returned and nothing is written.
func (r *BatchRepository) CommitBatch(ctx context.Context, b *domain.Batch) (receipt *domain.CommitReceipt, err error) {
	ctx, end := database.TraceQuery(ctx, "CommitBatch", "INSERT INTO code_batches; COPY discount_codes")
	defer func() { end(err) }()

	templateJSON, err := json.Marshal(b.Template)
	if err != nil {
		return nil, fmt.Errorf("marshal template: %w", err)
	}
	settingsJSON, err := json.Marshal(b.Settings)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batchQuery := `
		INSERT INTO code_batches (id, idempotency_key, type, prefix, template, settings, created_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (idempotency_key) DO NOTHING`

	tag, err := tx.Exec(ctx, batchQuery,
		b.ID,
		b.IdempotencyKey,
		string(b.Template.Type),
		b.Settings.Prefix,
		templateJSON,
		settingsJSON,
		len(b.Codes),
		b.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, err := receiptByKey(ctx, tx, b.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		return existing, nil
	}

	rows := make([][]any, 0, len(b.Codes))
	for i, c := range b.Codes {
		payload, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("marshal code %s: %w", c.Code, err)
		}
		rows = append(rows, []any{
			c.Code, b.ID, i, string(c.Type), c.ResolvedValue,
			c.Currency, c.ExpiresAt, payload, c.CreatedAt,
		})
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"discount_codes"}, codeColumns, pgx.CopyFromRows(rows))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.AlreadyExists("discount code", "batch", b.ID)
		}
		return nil, fmt.Errorf("copy discount codes: %w", err)
	}
	if int(copied) != len(b.Codes) {
		return nil, fmt.Errorf("copy discount codes: wrote %d of %d rows", copied, len(b.Codes))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return &domain.CommitReceipt{BatchID: b.ID, CreatedCount: len(b.Codes), Codes: b.Codes}, nil
}

// receiptByKey rebuilds the receipt of a previously committed batch.
func receiptByKey(ctx context.Context, q pgx.Tx, key string) (*domain.CommitReceipt, error) {
	query := `
		SELECT b.id, c.payload
		FROM code_batches b
		JOIN discount_codes c ON c.batch_id = b.id
		WHERE b.idempotency_key = $1
		ORDER BY c.position`

	rows, err := q.Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("query batch by idempotency key: %w", err)
	}
	defer rows.Close()

	receipt := &domain.CommitReceipt{Codes: []domain.GeneratedCode{}}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&receipt.BatchID, &payload); err != nil {
			return nil, fmt.Errorf("scan batch code row: %w", err)
		}
		var c domain.GeneratedCode
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, fmt.Errorf("unmarshal code payload: %w", err)
		}
		receipt.Codes = append(receipt.Codes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch code rows: %w", err)
	}
	if receipt.BatchID == "" {
		return nil, apperrors.NotFound("batch", "idempotency key "+key)
	}

	receipt.CreatedCount = len(receipt.Codes)
	return receipt, nil
}

// GetBatch retrieves a batch and its codes in creation order.
func (r *BatchRepository) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	query := `
		SELECT id, idempotency_key, template, settings, created_at
		FROM code_batches
		WHERE id = $1`

	var (
		b            domain.Batch
		templateJSON []byte
		settingsJSON []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID,
		&b.IdempotencyKey,
		&templateJSON,
		&settingsJSON,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("batch", id)
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}

	if err := json.Unmarshal(templateJSON, &b.Template); err != nil {
		return nil, fmt.Errorf("unmarshal template: %w", err)
	}
	if err := json.Unmarshal(settingsJSON, &b.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT payload FROM discount_codes WHERE batch_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query batch codes: %w", err)
	}
	defer rows.Close()

	b.Codes = []domain.GeneratedCode{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan code row: %w", err)
		}
		var c domain.GeneratedCode
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, fmt.Errorf("unmarshal code payload: %w", err)
		}
		b.Codes = append(b.Codes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate code rows: %w", err)
	}

	return &b, nil
}

// ListBatches returns batch summaries, newest first, with the total count.
func (r *BatchRepository) ListBatches(ctx context.Context, filter repository.BatchFilter) ([]domain.BatchSummary, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIndex))
		args = append(args, *filter.Type)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT id, type, prefix, created_count, created_at,
			   count(*) OVER() AS total_count
		FROM code_batches
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var (
		batches    []domain.BatchSummary
		totalCount int
	)
	for rows.Next() {
		var (
			s   domain.BatchSummary
			typ string
		)
		if err := rows.Scan(&s.ID, &typ, &s.Prefix, &s.CreatedCount, &s.CreatedAt, &totalCount); err != nil {
			return nil, 0, fmt.Errorf("scan batch row: %w", err)
		}
		s.Type = domain.DiscountType(typ)
		batches = append(batches, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate batch rows: %w", err)
	}

	if batches == nil {
		batches = []domain.BatchSummary{}
	}
	return batches, totalCount, nil
}

// CodesExist returns the subset of codes already present in discount_codes.
func (r *BatchRepository) CodesExist(ctx context.Context, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT code FROM discount_codes WHERE code = ANY($1)`, codes)
	if err != nil {
		return nil, fmt.Errorf("check existing codes: %w", err)
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		existing = append(existing, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate codes: %w", err)
	}
	return existing, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
