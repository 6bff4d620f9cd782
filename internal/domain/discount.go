package domain

import (
	"slices"
	"strings"
	"time"
)

// DiscountType identifies how a discount value is interpreted.
type DiscountType string

// Discount type constants.
const (
	DiscountTypePercentage   DiscountType = "percentage"
	DiscountTypeFixedAmount  DiscountType = "fixed_amount"
	DiscountTypeFreeTrial    DiscountType = "free_trial"
	DiscountTypeBuyXGetY     DiscountType = "buy_x_get_y"
	DiscountTypeFreeShipping DiscountType = "free_shipping"
)

// DurationKind describes how long a redeemed discount keeps applying.
type DurationKind string

// Duration constants.
const (
	DurationOnce      DurationKind = "once"
	DurationRepeating DurationKind = "repeating"
	DurationForever   DurationKind = "forever"
)

// ValidTypes returns the set of valid discount types.
func ValidTypes() []DiscountType {
	return []DiscountType{
		DiscountTypePercentage,
		DiscountTypeFixedAmount,
		DiscountTypeFreeTrial,
		DiscountTypeBuyXGetY,
		DiscountTypeFreeShipping,
	}
}

// IsValidType checks whether t is a known discount type.
func IsValidType(t DiscountType) bool {
	return slices.Contains(ValidTypes(), t)
}

// ValidDurations returns the set of valid duration kinds.
func ValidDurations() []DurationKind {
	return []DurationKind{DurationOnce, DurationRepeating, DurationForever}
}

// IsValidDuration checks whether d is a known duration kind.
func IsValidDuration(d DurationKind) bool {
	return slices.Contains(ValidDurations(), d)
}

// RequiresPositiveValue reports whether the type needs a strictly positive value.
func (t DiscountType) RequiresPositiveValue() bool {
	switch t {
	case DiscountTypePercentage, DiscountTypeFixedAmount, DiscountTypeBuyXGetY:
		return true
	default:
		return false
	}
}

// DiscountTemplate is the base definition shared by every code in a batch.
type DiscountTemplate struct {
	Name                 string       `json:"name,omitempty"`
	Description          string       `json:"description,omitempty"`
	Type                 DiscountType `json:"type"`
	Value                float64      `json:"value"`
	Currency             string       `json:"currency,omitempty"`
	Duration             DurationKind `json:"duration"`
	DurationInMonths     int          `json:"durationInMonths,omitempty"`
	ApplicablePlans      []string     `json:"applicablePlans"`
	ApplicableProducts   []string     `json:"applicableProducts"`
	MaxRedemptions       int          `json:"maxRedemptions"`
	MaxUsesPerCustomer   int          `json:"maxUsesPerCustomer"`
	IsActive             bool         `json:"isActive"`
	NewCustomersOnly     bool         `json:"newCustomersOnly"`
	EligibleCountries    []string     `json:"eligibleCountries"`
	EligibleEmailDomains []string     `json:"eligibleEmailDomains"`
	MinAmount            float64      `json:"minAmount"`
	IsStackable          bool         `json:"isStackable"`
	Priority             int          `json:"priority"`
	ExpiresAt            *time.Time   `json:"expiresAt,omitempty"`
}

// Clone returns a deep copy of the template. Slices and the expiry pointer are
// copied so the clone shares no memory with the receiver.
func (t DiscountTemplate) Clone() DiscountTemplate {
	c := t
	c.ApplicablePlans = cloneStrings(t.ApplicablePlans)
	c.ApplicableProducts = cloneStrings(t.ApplicableProducts)
	c.EligibleCountries = cloneStrings(t.EligibleCountries)
	c.EligibleEmailDomains = cloneStrings(t.EligibleEmailDomains)
	c.ExpiresAt = cloneTime(t.ExpiresAt)
	return c
}

// ValueVariation draws each code's value from [MinValue, MaxValue].
type ValueVariation struct {
	Enabled  bool    `json:"enabled"`
	MinValue float64 `json:"minValue"`
	MaxValue float64 `json:"maxValue"`
}

// ExpirationSettings overrides the template expiry with a per-batch offset.
type ExpirationSettings struct {
	UseCustomExpiry  bool `json:"useCustomExpiry"`
	DaysFromCreation int  `json:"daysFromCreation"`
}

// GenerationSettings controls how one template becomes many codes.
type GenerationSettings struct {
	Count               int                 `json:"count"`
	Prefix              string              `json:"prefix,omitempty"`
	Suffix              string              `json:"suffix,omitempty"`
	EnableRandomization bool                `json:"enableRandomization"`
	ValueVariation      *ValueVariation     `json:"valueVariation,omitempty"`
	ExpirationSettings  *ExpirationSettings `json:"expirationSettings,omitempty"`
}

// Normalize returns a copy with prefix and suffix trimmed and upper-cased.
func (s GenerationSettings) Normalize() GenerationSettings {
	n := s.Clone()
	n.Prefix = strings.ToUpper(strings.TrimSpace(s.Prefix))
	n.Suffix = strings.ToUpper(strings.TrimSpace(s.Suffix))
	return n
}

// Clone returns a deep copy of the settings.
func (s GenerationSettings) Clone() GenerationSettings {
	c := s
	if s.ValueVariation != nil {
		v := *s.ValueVariation
		c.ValueVariation = &v
	}
	if s.ExpirationSettings != nil {
		e := *s.ExpirationSettings
		c.ExpirationSettings = &e
	}
	return c
}

// VariationActive reports whether per-code value variation applies.
// EnableRandomization gates the variation block.
func (s GenerationSettings) VariationActive() bool {
	return s.EnableRandomization && s.ValueVariation != nil && s.ValueVariation.Enabled
}

// CustomExpiryActive reports whether codes get a creation-relative expiry.
func (s GenerationSettings) CustomExpiryActive() bool {
	return s.ExpirationSettings != nil && s.ExpirationSettings.UseCustomExpiry
}

// GeneratedCode is one synthesized code. It carries its own copy of every
// template field and is never mutated after creation.
type GeneratedCode struct {
	Code          string     `json:"code"`
	ResolvedValue float64    `json:"resolvedValue"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`

	Type                 DiscountType `json:"type"`
	Currency             string       `json:"currency,omitempty"`
	Duration             DurationKind `json:"duration"`
	DurationInMonths     int          `json:"durationInMonths,omitempty"`
	ApplicablePlans      []string     `json:"applicablePlans"`
	ApplicableProducts   []string     `json:"applicableProducts"`
	MaxRedemptions       int          `json:"maxRedemptions"`
	MaxUsesPerCustomer   int          `json:"maxUsesPerCustomer"`
	IsActive             bool         `json:"isActive"`
	NewCustomersOnly     bool         `json:"newCustomersOnly"`
	EligibleCountries    []string     `json:"eligibleCountries"`
	EligibleEmailDomains []string     `json:"eligibleEmailDomains"`
	MinAmount            float64      `json:"minAmount"`
	IsStackable          bool         `json:"isStackable"`
	Priority             int          `json:"priority"`
}

// NewGeneratedCode snapshots the template into a code record.
func NewGeneratedCode(code string, t DiscountTemplate, value float64, expiresAt *time.Time, createdAt time.Time) GeneratedCode {
	snap := t.Clone()
	return GeneratedCode{
		Code:                 code,
		ResolvedValue:        value,
		ExpiresAt:            cloneTime(expiresAt),
		CreatedAt:            createdAt,
		Type:                 snap.Type,
		Currency:             snap.Currency,
		Duration:             snap.Duration,
		DurationInMonths:     snap.DurationInMonths,
		ApplicablePlans:      snap.ApplicablePlans,
		ApplicableProducts:   snap.ApplicableProducts,
		MaxRedemptions:       snap.MaxRedemptions,
		MaxUsesPerCustomer:   snap.MaxUsesPerCustomer,
		IsActive:             snap.IsActive,
		NewCustomersOnly:     snap.NewCustomersOnly,
		EligibleCountries:    snap.EligibleCountries,
		EligibleEmailDomains: snap.EligibleEmailDomains,
		MinAmount:            snap.MinAmount,
		IsStackable:          snap.IsStackable,
		Priority:             snap.Priority,
	}
}

// ValidationResult is the outcome of validating a generation request.
// Valid is true exactly when Errors is empty.
type ValidationResult struct {
	Valid  bool     `json:"isValid"`
	Errors []string `json:"errors"`
}

// NewValidationResult builds a result from the collected messages.
func NewValidationResult(errs []string) ValidationResult {
	if errs == nil {
		errs = []string{}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
