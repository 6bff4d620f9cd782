// Package validation checks a generation request against the business rules
// before any code is synthesized or persisted.
package validation

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"

	"github.com/utafrali/bulkpromo/internal/domain"
)

const (
	DefaultMaxCount = 1000

	// MaxCodeLength is the width of the code column in the batch store.
	MaxCodeLength = 50

	MinDaysFromCreation = 1
	MaxDaysFromCreation = 365

	maxPercentage = 100
)

// Config holds the limits the validator enforces.
type Config struct {
	MaxCount int
	// BodyLength is the random body length used to check assembled code length.
	BodyLength int
}

// Validator runs the rule set. It is stateless and safe for concurrent use.
type Validator struct {
	maxCount   int
	bodyLength int
}

// New returns a Validator. Zero values select the defaults.
func New(cfg Config) *Validator {
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = DefaultMaxCount
	}
	if cfg.BodyLength <= 0 {
		cfg.BodyLength = 8
	}
	return &Validator{maxCount: cfg.MaxCount, bodyLength: cfg.BodyLength}
}

// MaxCount returns the largest batch size accepted.
func (v *Validator) MaxCount() int {
	return v.maxCount
}

// Validate checks template and settings and returns every violation found, in
// rule order. It never short-circuits.
func (v *Validator) Validate(t domain.DiscountTemplate, s domain.GenerationSettings) domain.ValidationResult {
	s = s.Normalize()
	var errs []string

	// 1. count
	if s.Count < 1 || s.Count > v.maxCount {
		errs = append(errs, fmt.Sprintf("count must be between 1 and %d, got %d", v.maxCount, s.Count))
	}

	// 2. type and value
	if !domain.IsValidType(t.Type) {
		errs = append(errs, fmt.Sprintf("discount type %q is not supported, must be one of: %s", t.Type, joinTypes()))
	} else if msg := checkValue(t.Type, "value", t.Value); msg != "" {
		errs = append(errs, msg)
	}

	// 3. value variation
	if s.ValueVariation != nil && s.ValueVariation.Enabled {
		vv := s.ValueVariation
		if vv.MinValue > vv.MaxValue {
			errs = append(errs, fmt.Sprintf("variation min value (%s) must be less than or equal to max value (%s)",
				formatNumber(vv.MinValue), formatNumber(vv.MaxValue)))
		}
		if domain.IsValidType(t.Type) {
			if msg := checkValue(t.Type, "variation min value", vv.MinValue); msg != "" {
				errs = append(errs, msg)
			}
			if msg := checkValue(t.Type, "variation max value", vv.MaxValue); msg != "" {
				errs = append(errs, msg)
			}
		}
	}

	// 4. custom expiry
	if s.CustomExpiryActive() {
		days := s.ExpirationSettings.DaysFromCreation
		if days < MinDaysFromCreation || days > MaxDaysFromCreation {
			errs = append(errs, fmt.Sprintf("days from creation must be between %d and %d, got %d",
				MinDaysFromCreation, MaxDaysFromCreation, days))
		}
	}

	// 5. usage limits
	if t.MaxRedemptions < 1 {
		errs = append(errs, "max redemptions must be at least 1")
	}
	if t.MaxUsesPerCustomer < 1 {
		errs = append(errs, "max uses per customer must be at least 1")
	}
	if t.MaxRedemptions >= 1 && t.MaxUsesPerCustomer > t.MaxRedemptions {
		errs = append(errs, "max uses per customer must not exceed max redemptions")
	}

	// 6. affixes
	if !isCodeSafe(s.Prefix) {
		errs = append(errs, "prefix may only contain letters, digits, '-' and '_'")
	}
	if !isCodeSafe(s.Suffix) {
		errs = append(errs, "suffix may only contain letters, digits, '-' and '_'")
	}
	if n := v.codeLength(s.Prefix, s.Suffix); n > MaxCodeLength {
		errs = append(errs, fmt.Sprintf("prefix and suffix make codes %d characters long, maximum is %d", n, MaxCodeLength))
	}

	// 7. currency
	if t.Type == domain.DiscountTypeFixedAmount {
		if msg := checkCurrency(t.Currency); msg != "" {
			errs = append(errs, msg)
		}
	}

	if t.MinAmount < 0 {
		errs = append(errs, "min amount must not be negative")
	}
	if t.Priority < 0 {
		errs = append(errs, "priority must not be negative")
	}
	// An empty duration means once.
	if t.Duration != "" && !domain.IsValidDuration(t.Duration) {
		errs = append(errs, fmt.Sprintf("duration %q is not supported, must be one of: once, repeating, forever", t.Duration))
	} else if t.Duration == domain.DurationRepeating && t.DurationInMonths < 1 {
		errs = append(errs, "duration in months must be at least 1 for repeating discounts")
	}

	return domain.NewValidationResult(errs)
}

// checkValue applies the type-specific range rule to one number.
func checkValue(t domain.DiscountType, field string, value float64) string {
	switch {
	case t == domain.DiscountTypePercentage:
		if value <= 0 || value > maxPercentage {
			return fmt.Sprintf("percentage %s must be greater than 0 and at most 100, got %s", field, formatNumber(value))
		}
	case t.RequiresPositiveValue():
		if value <= 0 {
			return fmt.Sprintf("%s %s must be greater than 0, got %s", t, field, formatNumber(value))
		}
	default:
		if value < 0 {
			return fmt.Sprintf("%s %s must not be negative, got %s", t, field, formatNumber(value))
		}
	}
	return ""
}

func checkCurrency(code string) string {
	if code == "" {
		return "currency is required for fixed_amount discounts"
	}
	if len(code) != 3 {
		return fmt.Sprintf("currency %q must be a 3-letter ISO 4217 code", code)
	}
	if _, err := currency.ParseISO(strings.ToUpper(code)); err != nil {
		return fmt.Sprintf("currency %q is not a recognized ISO 4217 code", code)
	}
	return ""
}

func isCodeSafe(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

func (v *Validator) codeLength(prefix, suffix string) int {
	n := len(prefix) + v.bodyLength + len(suffix)
	if prefix != "" {
		n++
	}
	return n
}

func joinTypes() string {
	types := domain.ValidTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func formatNumber(f float64) string {
	return fmt.Sprintf("%g", f)
}
