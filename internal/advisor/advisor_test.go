package advisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/bulkpromo/internal/domain"
	"github.com/utafrali/bulkpromo/internal/validation"
)

func TestSuggest_EmptyContextReturnsDefaults(t *testing.T) {
	s := New().Suggest(domain.BusinessContext{})

	assert.NotEmpty(t, s.SuggestedTemplates)
	assert.NotEmpty(t, s.SuggestedPrefixes)
	assert.Equal(t, "PROMO", s.SuggestedPrefixes[0])
}

func TestSuggest_UnknownValuesTreatedAsUnset(t *testing.T) {
	a := New()
	unknown := domain.BusinessContext{
		BusinessType:   "spaceship",
		CampaignType:   "??",
		TargetAudience: "martians",
		Seasonality:    "monsoon",
	}
	assert.Equal(t, a.Suggest(domain.BusinessContext{}), a.Suggest(unknown))

	partial := domain.BusinessContext{CampaignType: domain.CampaignTypeLoyalty, Seasonality: "monsoon"}
	assert.Equal(t, a.Suggest(domain.BusinessContext{CampaignType: domain.CampaignTypeLoyalty}), a.Suggest(partial))
}

func TestSuggest_HolidayPromotional(t *testing.T) {
	s := New().Suggest(domain.BusinessContext{
		CampaignType: domain.CampaignTypePromotional,
		Seasonality:  domain.SeasonalityHoliday,
	})

	require.NotEmpty(t, s.SuggestedTemplates)
	primary := s.SuggestedTemplates[0]
	assert.Equal(t, domain.DiscountTypePercentage, primary.Type)
	assert.Equal(t, 25.0, primary.Value)
	assert.Equal(t, []string{"HOLIDAY", "SAVE"}, s.SuggestedPrefixes)

	plain := New().Suggest(domain.BusinessContext{CampaignType: domain.CampaignTypePromotional})
	assert.Greater(t, primary.Value, plain.SuggestedTemplates[0].Value)
}

func TestSuggest_AudienceRestrictions(t *testing.T) {
	s := New().Suggest(domain.BusinessContext{TargetAudience: domain.AudienceNew})
	assert.True(t, s.SuggestedTemplates[0].NewCustomersOnly)
	assert.Equal(t, 1, s.SuggestedTemplates[0].MaxUsesPerCustomer)
	assert.Contains(t, s.SuggestedPrefixes, "NEW")

	vip := New().Suggest(domain.BusinessContext{TargetAudience: domain.AudienceVIP, CampaignType: domain.CampaignTypeLoyalty})
	assert.True(t, vip.SuggestedTemplates[0].IsStackable)
	assert.Equal(t, 3, vip.SuggestedTemplates[0].MaxUsesPerCustomer)
	assert.Equal(t, 20.0, vip.SuggestedTemplates[0].Value)
}

func TestSuggest_BusinessAlternatives(t *testing.T) {
	saas := New().Suggest(domain.BusinessContext{BusinessType: domain.BusinessTypeSaaS})
	require.Len(t, saas.SuggestedTemplates, 3)
	assert.Equal(t, domain.DurationRepeating, saas.SuggestedTemplates[0].Duration)
	assert.Equal(t, domain.DiscountTypeFreeTrial, saas.SuggestedTemplates[1].Type)

	shop := New().Suggest(domain.BusinessContext{BusinessType: domain.BusinessTypeEcommerce})
	require.Len(t, shop.SuggestedTemplates, 2)
	assert.Equal(t, domain.DiscountTypeFreeShipping, shop.SuggestedTemplates[1].Type)
	assert.Equal(t, []string{"PROMO", "SHOP"}, shop.SuggestedPrefixes)
}

func TestAllContexts_EveryCombinationYieldsValidSuggestions(t *testing.T) {
	contexts := AllContexts()
	assert.Len(t, contexts, 6*6*5*7)

	a := New()
	v := validation.New(validation.Config{})
	settings := domain.GenerationSettings{Count: 10}
	base := domain.DiscountTemplate{MaxRedemptions: 100, MaxUsesPerCustomer: 1}

	for _, bc := range contexts {
		s := a.Suggest(bc)
		require.NotEmpty(t, s.SuggestedTemplates, "%+v", bc)
		require.NotEmpty(t, s.SuggestedPrefixes, "%+v", bc)

		for _, f := range s.SuggestedTemplates {
			res := v.Validate(Merge(base, f), settings)
			assert.True(t, res.Valid, "%+v %s: %v", bc, f.Name, res.Errors)
		}
		for _, p := range s.SuggestedPrefixes {
			settings.Prefix = p
			assert.True(t, v.Validate(Merge(base, s.SuggestedTemplates[0]), settings).Valid, "prefix %s", p)
		}
	}
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	tmpl := domain.DiscountTemplate{
		Name:               "Mine",
		Type:               domain.DiscountTypeFixedAmount,
		Value:              5,
		Currency:           "EUR",
		ApplicablePlans:    []string{"basic"},
		MaxRedemptions:     1,
		MaxUsesPerCustomer: 1,
	}
	frag := domain.TemplateFragment{
		Name: "Loyalty reward", Type: domain.DiscountTypePercentage, Value: 15,
		Duration: domain.DurationForever, IsStackable: true, MaxUsesPerCustomer: 3,
	}

	merged := Merge(tmpl, frag)

	assert.Equal(t, "Mine", tmpl.Name)
	assert.Equal(t, domain.DiscountTypeFixedAmount, tmpl.Type)
	assert.Equal(t, 1, tmpl.MaxUsesPerCustomer)

	assert.Equal(t, "Loyalty reward", merged.Name)
	assert.Equal(t, domain.DiscountTypePercentage, merged.Type)
	assert.Equal(t, 15.0, merged.Value)
	assert.Equal(t, "EUR", merged.Currency)
	assert.Equal(t, 3, merged.MaxUsesPerCustomer)
	assert.Equal(t, 3, merged.MaxRedemptions)
	assert.True(t, merged.IsStackable)

	merged.ApplicablePlans[0] = "changed"
	assert.Equal(t, "basic", tmpl.ApplicablePlans[0])
}
