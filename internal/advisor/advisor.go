// Package advisor maps a business context to suggested discount templates and
// code prefixes through fixed lookup tables.
package advisor

import (
	"github.com/utafrali/bulkpromo/internal/domain"
)

// campaignBase is the starting fragment for a campaign type.
type campaignBase struct {
	fragment domain.TemplateFragment
	prefix   string
}

// seasonBoost raises percentage values and contributes a prefix.
type seasonBoost struct {
	boost  float64
	prefix string
}

// audienceRule restricts who may redeem and how often.
type audienceRule struct {
	newCustomersOnly   bool
	maxUsesPerCustomer int
	boost              float64
	stackable          bool
	prefix             string
}

var campaignTable = map[domain.CampaignType]campaignBase{
	domain.CampaignTypeUnset: {
		fragment: domain.TemplateFragment{Name: "General discount", Type: domain.DiscountTypePercentage, Value: 10, Duration: domain.DurationOnce},
		prefix:   "PROMO",
	},
	domain.CampaignTypePromotional: {
		fragment: domain.TemplateFragment{Name: "Promotional discount", Type: domain.DiscountTypePercentage, Value: 15, Duration: domain.DurationOnce},
		prefix:   "SAVE",
	},
	domain.CampaignTypeAcquisition: {
		fragment: domain.TemplateFragment{Name: "Welcome offer", Type: domain.DiscountTypePercentage, Value: 20, Duration: domain.DurationOnce, NewCustomersOnly: true, MaxUsesPerCustomer: 1},
		prefix:   "WELCOME",
	},
	domain.CampaignTypeRetention: {
		fragment: domain.TemplateFragment{Name: "Retention discount", Type: domain.DiscountTypePercentage, Value: 10, Duration: domain.DurationRepeating, DurationInMonths: 3},
		prefix:   "THANKS",
	},
	domain.CampaignTypeLoyalty: {
		fragment: domain.TemplateFragment{Name: "Loyalty reward", Type: domain.DiscountTypePercentage, Value: 15, Duration: domain.DurationForever, IsStackable: true},
		prefix:   "LOYAL",
	},
	domain.CampaignTypeReactivation: {
		fragment: domain.TemplateFragment{Name: "Win-back offer", Type: domain.DiscountTypePercentage, Value: 25, Duration: domain.DurationOnce, MaxUsesPerCustomer: 1},
		prefix:   "COMEBACK",
	},
}

var seasonTable = map[domain.Seasonality]seasonBoost{
	domain.SeasonalityUnset:        {},
	domain.SeasonalityNone:         {},
	domain.SeasonalityHoliday:      {boost: 10, prefix: "HOLIDAY"},
	domain.SeasonalityBlackFriday:  {boost: 20, prefix: "BLACKFRIDAY"},
	domain.SeasonalitySummer:       {boost: 5, prefix: "SUMMER"},
	domain.SeasonalityBackToSchool: {boost: 5, prefix: "SCHOOL"},
	domain.SeasonalitySpring:       {boost: 5, prefix: "SPRING"},
}

var audienceTable = map[domain.TargetAudience]audienceRule{
	domain.AudienceUnset:    {},
	domain.AudienceAll:      {},
	domain.AudienceNew:      {newCustomersOnly: true, maxUsesPerCustomer: 1, prefix: "NEW"},
	domain.AudienceExisting: {maxUsesPerCustomer: 1},
	domain.AudienceVIP:      {maxUsesPerCustomer: 3, boost: 5, stackable: true, prefix: "VIP"},
}

// businessAlternatives are extra fragments ranked after the primary one.
var businessAlternatives = map[domain.BusinessType][]domain.TemplateFragment{
	domain.BusinessTypeSaaS: {
		{Name: "Extended free trial", Type: domain.DiscountTypeFreeTrial, Value: 14, Duration: domain.DurationOnce},
		{Name: "First months discount", Type: domain.DiscountTypePercentage, Value: 20, Duration: domain.DurationRepeating, DurationInMonths: 3},
	},
	domain.BusinessTypeEcommerce: {
		{Name: "Free shipping", Type: domain.DiscountTypeFreeShipping, Value: 0, Duration: domain.DurationOnce},
	},
	domain.BusinessTypeRetail: {
		{Name: "Fixed amount off", Type: domain.DiscountTypeFixedAmount, Value: 10, Currency: "USD", Duration: domain.DurationOnce},
	},
	domain.BusinessTypeRestaurant: {
		{Name: "Buy one get one", Type: domain.DiscountTypeBuyXGetY, Value: 1, Duration: domain.DurationOnce},
	},
	domain.BusinessTypeServices: {
		{Name: "Fixed amount off", Type: domain.DiscountTypeFixedAmount, Value: 25, Currency: "USD", Duration: domain.DurationOnce},
	},
}

var businessPrefix = map[domain.BusinessType]string{
	domain.BusinessTypeEcommerce:  "SHOP",
	domain.BusinessTypeSaaS:       "TRIAL",
	domain.BusinessTypeRetail:     "STORE",
	domain.BusinessTypeRestaurant: "DINE",
	domain.BusinessTypeServices:   "BOOK",
}

// defaultPrefixes backs the empty context.
var defaultPrefixes = []string{"PROMO", "SAVE", "DEAL"}

const maxPercentage = 100

// Advisor produces suggestions. It holds no state.
type Advisor struct{}

// New returns an Advisor.
func New() *Advisor {
	return &Advisor{}
}

// Suggest returns a ranked, non-empty list of template fragments and prefixes
// for the context. Unknown values are treated as unset.
func (a *Advisor) Suggest(bc domain.BusinessContext) domain.Suggestions {
	bc = Normalize(bc)
	if bc == (domain.BusinessContext{}) {
		return defaultSuggestions()
	}

	season := seasonTable[bc.Seasonality]
	audience := audienceTable[bc.TargetAudience]
	base := campaignTable[bc.CampaignType]

	primary := base.fragment
	if primary.Type == domain.DiscountTypePercentage {
		primary.Value = min(primary.Value+season.boost+audience.boost, maxPercentage)
	}
	applyAudience(&primary, audience)
	if bc.BusinessType == domain.BusinessTypeSaaS && primary.Duration == domain.DurationOnce {
		primary.Duration = domain.DurationRepeating
		primary.DurationInMonths = 1
	}

	templates := []domain.TemplateFragment{primary}
	for _, alt := range businessAlternatives[bc.BusinessType] {
		applyAudience(&alt, audience)
		templates = append(templates, alt)
	}

	var prefixes []string
	for _, p := range []string{season.prefix, audience.prefix, base.prefix, businessPrefix[bc.BusinessType]} {
		prefixes = appendUnique(prefixes, p)
	}

	return domain.Suggestions{SuggestedTemplates: templates, SuggestedPrefixes: prefixes}
}

func applyAudience(f *domain.TemplateFragment, r audienceRule) {
	if r.newCustomersOnly {
		f.NewCustomersOnly = true
	}
	if r.maxUsesPerCustomer > 0 {
		f.MaxUsesPerCustomer = r.maxUsesPerCustomer
	}
	if r.stackable {
		f.IsStackable = true
	}
}

func defaultSuggestions() domain.Suggestions {
	return domain.Suggestions{
		SuggestedTemplates: []domain.TemplateFragment{
			campaignTable[domain.CampaignTypeUnset].fragment,
			{Name: "Fixed amount off", Type: domain.DiscountTypeFixedAmount, Value: 10, Currency: "USD", Duration: domain.DurationOnce},
			{Name: "Free shipping", Type: domain.DiscountTypeFreeShipping, Value: 0, Duration: domain.DurationOnce},
		},
		SuggestedPrefixes: append([]string(nil), defaultPrefixes...),
	}
}

// Normalize clears any dimension that is not a known value.
func Normalize(bc domain.BusinessContext) domain.BusinessContext {
	if _, ok := businessPrefix[bc.BusinessType]; !ok {
		bc.BusinessType = domain.BusinessTypeUnset
	}
	if _, ok := campaignTable[bc.CampaignType]; !ok {
		bc.CampaignType = domain.CampaignTypeUnset
	}
	if _, ok := audienceTable[bc.TargetAudience]; !ok {
		bc.TargetAudience = domain.AudienceUnset
	}
	if _, ok := seasonTable[bc.Seasonality]; !ok {
		bc.Seasonality = domain.SeasonalityUnset
	}
	return bc
}

// AllContexts enumerates every combination of the four dimensions, unset included.
func AllContexts() []domain.BusinessContext {
	var out []domain.BusinessContext
	for _, b := range domain.BusinessTypes() {
		for _, c := range domain.CampaignTypes() {
			for _, a := range domain.TargetAudiences() {
				for _, s := range domain.Seasonalities() {
					out = append(out, domain.BusinessContext{BusinessType: b, CampaignType: c, TargetAudience: a, Seasonality: s})
				}
			}
		}
	}
	return out
}

// Merge applies a fragment onto a copy of the template. The input is not modified.
func Merge(t domain.DiscountTemplate, f domain.TemplateFragment) domain.DiscountTemplate {
	out := t.Clone()
	if f.Name != "" {
		out.Name = f.Name
	}
	if f.Description != "" {
		out.Description = f.Description
	}
	out.Type = f.Type
	out.Value = f.Value
	if f.Currency != "" {
		out.Currency = f.Currency
	}
	out.Duration = f.Duration
	out.DurationInMonths = f.DurationInMonths
	out.NewCustomersOnly = f.NewCustomersOnly
	out.IsStackable = f.IsStackable
	if f.MaxUsesPerCustomer > 0 {
		out.MaxUsesPerCustomer = f.MaxUsesPerCustomer
		if out.MaxRedemptions < f.MaxUsesPerCustomer {
			out.MaxRedemptions = f.MaxUsesPerCustomer
		}
	}
	return out
}

func appendUnique(list []string, s string) []string {
	if s == "" {
		return list
	}
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
