package domain

// TemplateFragment is a partial template proposed by the advisor. Only the
// fields it carries are applied when merged into a caller's template.
type TemplateFragment struct {
	Name               string       `json:"name"`
	Description        string       `json:"description,omitempty"`
	Type               DiscountType `json:"type"`
	Value              float64      `json:"value"`
	Currency           string       `json:"currency,omitempty"`
	Duration           DurationKind `json:"duration"`
	DurationInMonths   int          `json:"durationInMonths,omitempty"`
	NewCustomersOnly   bool         `json:"newCustomersOnly"`
	MaxUsesPerCustomer int          `json:"maxUsesPerCustomer,omitempty"`
	IsStackable        bool         `json:"isStackable"`
}

// Suggestions is the advisor output, best candidate first.
type Suggestions struct {
	SuggestedTemplates []TemplateFragment `json:"suggestedTemplates"`
	SuggestedPrefixes  []string           `json:"suggestedPrefixes"`
}
