package http

import (
	"time"

	"github.com/utafrali/bulkpromo/internal/domain"
)

// BulkCodeRequest is the JSON body of the validate, preview and generate
// endpoints and of session create/update. Business rules are checked by the
// validation engine; tags here only bound the payload shape.
type BulkCodeRequest struct {
	BaseTemplate        *TemplateRequest           `json:"baseTemplate" validate:"required"`
	Count               int                        `json:"count"`
	Prefix              string                     `json:"prefix" validate:"max=50"`
	Suffix              string                     `json:"suffix" validate:"max=50"`
	EnableRandomization bool                       `json:"enableRandomization"`
	ValueVariation      *domain.ValueVariation     `json:"valueVariation"`
	ExpirationSettings  *domain.ExpirationSettings `json:"expirationSettings"`
}

// TemplateRequest is the base discount template of a request.
type TemplateRequest struct {
	Name                 string              `json:"name" validate:"max=255"`
	Description          string              `json:"description" validate:"max=2000"`
	Type                 domain.DiscountType `json:"type"`
	Value                float64             `json:"value"`
	Currency             string              `json:"currency" validate:"max=3"`
	Duration             domain.DurationKind `json:"duration"`
	DurationInMonths     int                 `json:"durationInMonths"`
	ApplicablePlans      []string            `json:"applicablePlans" validate:"max=500,dive,max=255"`
	ApplicableProducts   []string            `json:"applicableProducts" validate:"max=500,dive,max=255"`
	MaxRedemptions       int                 `json:"maxRedemptions"`
	MaxUsesPerCustomer   int                 `json:"maxUsesPerCustomer"`
	IsActive             bool                `json:"isActive"`
	NewCustomersOnly     bool                `json:"newCustomersOnly"`
	EligibleCountries    []string            `json:"eligibleCountries" validate:"max=300,dive,len=2"`
	EligibleEmailDomains []string            `json:"eligibleEmailDomains" validate:"max=500,dive,max=255"`
	MinAmount            float64             `json:"minAmount"`
	IsStackable          bool                `json:"isStackable"`
	Priority             int                 `json:"priority"`
	ExpiresAt            *time.Time          `json:"expiresAt"`
}

func (r BulkCodeRequest) toDomain() (domain.DiscountTemplate, domain.GenerationSettings) {
	t := r.BaseTemplate
	tmpl := domain.DiscountTemplate{
		Name:                 t.Name,
		Description:          t.Description,
		Type:                 t.Type,
		Value:                t.Value,
		Currency:             t.Currency,
		Duration:             t.Duration,
		DurationInMonths:     t.DurationInMonths,
		ApplicablePlans:      t.ApplicablePlans,
		ApplicableProducts:   t.ApplicableProducts,
		MaxRedemptions:       t.MaxRedemptions,
		MaxUsesPerCustomer:   t.MaxUsesPerCustomer,
		IsActive:             t.IsActive,
		NewCustomersOnly:     t.NewCustomersOnly,
		EligibleCountries:    t.EligibleCountries,
		EligibleEmailDomains: t.EligibleEmailDomains,
		MinAmount:            t.MinAmount,
		IsStackable:          t.IsStackable,
		Priority:             t.Priority,
		ExpiresAt:            t.ExpiresAt,
	}

	settings := domain.GenerationSettings{
		Count:               r.Count,
		Prefix:              r.Prefix,
		Suffix:              r.Suffix,
		EnableRandomization: r.EnableRandomization,
		ValueVariation:      r.ValueVariation,
		ExpirationSettings:  r.ExpirationSettings,
	}
	return tmpl.Clone(), settings.Clone()
}

// SuggestionRequest is the JSON body of the suggestions endpoint. Unknown
// enum values are accepted and treated as unset by the advisor.
type SuggestionRequest struct {
	BusinessType   string `json:"businessType" validate:"max=64"`
	CampaignType   string `json:"campaignType" validate:"max=64"`
	TargetAudience string `json:"targetAudience" validate:"max=64"`
	Seasonality    string `json:"seasonality" validate:"max=64"`
}

func (r SuggestionRequest) toDomain() domain.BusinessContext {
	return domain.BusinessContext{
		BusinessType:   domain.BusinessType(r.BusinessType),
		CampaignType:   domain.CampaignType(r.CampaignType),
		TargetAudience: domain.TargetAudience(r.TargetAudience),
		Seasonality:    domain.Seasonality(r.Seasonality),
	}
}
