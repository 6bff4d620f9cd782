package domain

import "time"

// Batch is the full set of codes produced by a single Generate call.
type Batch struct {
	ID             string             `json:"batchId"`
	IdempotencyKey string             `json:"idempotencyKey"`
	Template       DiscountTemplate   `json:"baseTemplate"`
	Settings       GenerationSettings `json:"settings"`
	Codes          []GeneratedCode    `json:"codes"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// CommitReceipt is returned by the persistence collaborator once a batch
// has been durably created.
type CommitReceipt struct {
	BatchID      string          `json:"batchId"`
	CreatedCount int             `json:"createdCount"`
	Codes        []GeneratedCode `json:"codes"`
}

// BatchSummary is a lightweight listing row for persisted batches.
type BatchSummary struct {
	ID           string       `json:"batchId"`
	Type         DiscountType `json:"type"`
	Prefix       string       `json:"prefix,omitempty"`
	CreatedCount int          `json:"createdCount"`
	CreatedAt    time.Time    `json:"createdAt"`
}
