// Package backend is the REST client for the remote discounts API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/bulkpromo/internal/domain"
	"github.com/utafrali/bulkpromo/pkg/httpclient"
	apperrors "github.com/utafrali/bulkpromo/pkg/errors"
)

// ServiceName labels backend failures in errors and logs.
const ServiceName = "discounts-backend"

// IdempotencyKeyHeader carries the batch idempotency key on generate calls.
const IdempotencyKeyHeader = "Idempotency-Key"

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// BulkRequest is the body of the preview and generate calls.
type BulkRequest struct {
	BaseTemplate        domain.DiscountTemplate    `json:"baseTemplate"`
	Count               int                        `json:"count"`
	Prefix              string                     `json:"prefix,omitempty"`
	Suffix              string                     `json:"suffix,omitempty"`
	EnableRandomization bool                       `json:"enableRandomization"`
	ValueVariation      *domain.ValueVariation     `json:"valueVariation,omitempty"`
	ExpirationSettings  *domain.ExpirationSettings `json:"expirationSettings,omitempty"`
	Codes               []domain.GeneratedCode     `json:"codes,omitempty"`
}

// NewBulkRequest builds a request body from the template and settings.
func NewBulkRequest(t domain.DiscountTemplate, s domain.GenerationSettings) BulkRequest {
	return BulkRequest{
		BaseTemplate:        t,
		Count:               s.Count,
		Prefix:              s.Prefix,
		Suffix:              s.Suffix,
		EnableRandomization: s.EnableRandomization,
		ValueVariation:      s.ValueVariation,
		ExpirationSettings:  s.ExpirationSettings,
	}
}

// PreviewResponse is the backend's sample codes and validation echo.
type PreviewResponse struct {
	Codes      []domain.GeneratedCode  `json:"codes"`
	Validation domain.ValidationResult `json:"validation"`
}

// Client calls the remote discounts API.
type Client struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(doer HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Preview asks the backend to validate the request and return sample codes.
func (c *Client) Preview(ctx context.Context, t domain.DiscountTemplate, s domain.GenerationSettings) (*PreviewResponse, error) {
	var out PreviewResponse
	if err := c.post(ctx, "/discounts/bulk/preview", NewBulkRequest(t, s), nil, &out); err != nil {
		return nil, err
	}
	if out.Codes == nil {
		out.Codes = []domain.GeneratedCode{}
	}
	out.Validation = domain.NewValidationResult(out.Validation.Errors)
	return &out, nil
}

// CommitBatch persists the batch with a single attempt. The batch
// idempotency key is sent so the backend can deduplicate a retried commit.
func (c *Client) CommitBatch(ctx context.Context, b *domain.Batch) (*domain.CommitReceipt, error) {
	body := NewBulkRequest(b.Template, b.Settings)
	body.Codes = b.Codes

	headers := map[string]string{IdempotencyKeyHeader: b.IdempotencyKey}

	var receipt domain.CommitReceipt
	if err := c.post(httpclient.WithNoRetry(ctx), "/discounts/bulk/generate", body, headers, &receipt); err != nil {
		return nil, err
	}
	if receipt.BatchID == "" {
		return nil, apperrors.ExternalService(ServiceName, errors.New("generate response has no batch id"))
	}
	if receipt.CreatedCount != len(b.Codes) {
		return nil, apperrors.ExternalService(ServiceName,
			fmt.Errorf("generate response reports %d created codes, batch has %d", receipt.CreatedCount, len(b.Codes)))
	}
	if len(receipt.Codes) == 0 {
		receipt.Codes = b.Codes
	} else if len(receipt.Codes) != receipt.CreatedCount {
		return nil, apperrors.ExternalService(ServiceName,
			fmt.Errorf("generate response lists %d codes, created count is %d", len(receipt.Codes), receipt.CreatedCount))
	}

	c.logger.InfoContext(ctx, "batch committed to backend",
		slog.String("batch_id", receipt.BatchID),
		slog.Int("created_count", receipt.CreatedCount),
	)
	return &receipt, nil
}

// Suggest asks the backend for template and prefix suggestions.
func (c *Client) Suggest(ctx context.Context, bc domain.BusinessContext) (*domain.Suggestions, error) {
	var out domain.Suggestions
	if err := c.post(ctx, "/discounts/suggestions", bc, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, in any, headers map[string]string, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return httpclient.TranslateError(err, ServiceName)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return downstreamFailure(resp)
	}
	defer resp.Body.Close()

	if err := decodeBody(resp.Body, out); err != nil {
		return apperrors.ExternalService(ServiceName, fmt.Errorf("decode %s response: %w", path, err))
	}
	return nil
}

// downstreamFailure reports any non-2xx backend response as an external
// service failure, keeping the backend status and message in the cause.
func downstreamFailure(resp *http.Response) error {
	err := httpclient.ParseResponseError(resp, ServiceName)
	if errors.Is(err, apperrors.ErrExternalService) {
		return err
	}
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	return apperrors.ExternalService(ServiceName, fmt.Errorf("status %d: %s", resp.StatusCode, message))
}

// decodeBody accepts both a bare payload and the {"data": ...} envelope.
func decodeBody(r io.Reader, out any) error {
	raw, err := io.ReadAll(io.LimitReader(r, 32<<20))
	if err != nil {
		return err
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}
	if len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		raw = envelope.Data
	}
	return json.Unmarshal(raw, out)
}
