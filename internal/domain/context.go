package domain

// BusinessType is the kind of business running the campaign.
type BusinessType string

// Business type constants.
const (
	BusinessTypeUnset      BusinessType = ""
	BusinessTypeEcommerce  BusinessType = "ecommerce"
	BusinessTypeSaaS       BusinessType = "saas"
	BusinessTypeRetail     BusinessType = "retail"
	BusinessTypeRestaurant BusinessType = "restaurant"
	BusinessTypeServices   BusinessType = "services"
)

// CampaignType is the marketing goal of the campaign.
type CampaignType string

// Campaign type constants.
const (
	CampaignTypeUnset        CampaignType = ""
	CampaignTypePromotional  CampaignType = "promotional"
	CampaignTypeAcquisition  CampaignType = "acquisition"
	CampaignTypeRetention    CampaignType = "retention"
	CampaignTypeLoyalty      CampaignType = "loyalty"
	CampaignTypeReactivation CampaignType = "reactivation"
)

// TargetAudience is who the codes are meant for.
type TargetAudience string

// Target audience constants.
const (
	AudienceUnset    TargetAudience = ""
	AudienceNew      TargetAudience = "new_customers"
	AudienceExisting TargetAudience = "existing_customers"
	AudienceVIP      TargetAudience = "vip"
	AudienceAll      TargetAudience = "all"
)

// Seasonality is the calendar moment the campaign targets.
type Seasonality string

// Seasonality constants.
const (
	SeasonalityUnset        Seasonality = ""
	SeasonalityHoliday      Seasonality = "holiday"
	SeasonalityBlackFriday  Seasonality = "black_friday"
	SeasonalitySummer       Seasonality = "summer"
	SeasonalityBackToSchool Seasonality = "back_to_school"
	SeasonalitySpring       Seasonality = "spring"
	SeasonalityNone         Seasonality = "none"
)

// BusinessContext is advisory input for the suggestion advisor. It is never persisted.
type BusinessContext struct {
	BusinessType   BusinessType   `json:"businessType,omitempty"`
	CampaignType   CampaignType   `json:"campaignType,omitempty"`
	TargetAudience TargetAudience `json:"targetAudience,omitempty"`
	Seasonality    Seasonality    `json:"seasonality,omitempty"`
}

// BusinessTypes lists every business type including unset.
func BusinessTypes() []BusinessType {
	return []BusinessType{BusinessTypeUnset, BusinessTypeEcommerce, BusinessTypeSaaS, BusinessTypeRetail, BusinessTypeRestaurant, BusinessTypeServices}
}

// CampaignTypes lists every campaign type including unset.
func CampaignTypes() []CampaignType {
	return []CampaignType{CampaignTypeUnset, CampaignTypePromotional, CampaignTypeAcquisition, CampaignTypeRetention, CampaignTypeLoyalty, CampaignTypeReactivation}
}

// TargetAudiences lists every audience including unset.
func TargetAudiences() []TargetAudience {
	return []TargetAudience{AudienceUnset, AudienceNew, AudienceExisting, AudienceVIP, AudienceAll}
}

// Seasonalities lists every seasonality including unset.
func Seasonalities() []Seasonality {
	return []Seasonality{SeasonalityUnset, SeasonalityHoliday, SeasonalityBlackFriday, SeasonalitySummer, SeasonalityBackToSchool, SeasonalitySpring, SeasonalityNone}
}
