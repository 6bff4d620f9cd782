package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/bulkpromo/internal/domain"
	apperrors "github.com/utafrali/bulkpromo/pkg/errors"
)

// maxExistenceRounds bounds how often codes already held by the store are redrawn.
const maxExistenceRounds = 5

// ExistenceChecker reports which of the given codes are already persisted.
type ExistenceChecker interface {
	CodesExist(ctx context.Context, codes []string) ([]string, error)
}

// Option configures a Generator.
type Option func(*Generator)

// WithPercentPrecision sets the decimals kept for percentage values.
func WithPercentPrecision(places int) Option {
	return func(g *Generator) { g.percentPrecision = int32(places) }
}

// WithExistenceChecker makes Generate redraw codes the checker reports as taken.
func WithExistenceChecker(c ExistenceChecker) Option {
	return func(g *Generator) { g.checker = c }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// Generator turns a template and settings into concrete codes.
type Generator struct {
	synth            *Synthesizer
	rng              RandomSource
	percentPrecision int32
	checker          ExistenceChecker
	now              func() time.Time
}

// New returns a Generator that shares rng with the synthesizer.
func New(synth *Synthesizer, opts ...Option) *Generator {
	g := &Generator{
		synth: synth,
		rng:   synth.rng,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Synthesizer exposes the underlying code synthesizer.
func (g *Generator) Synthesizer() *Synthesizer {
	return g.synth
}

// Generate synthesizes count codes and applies the template to each. All codes
// of one call share a creation timestamp.
func (g *Generator) Generate(ctx context.Context, template domain.DiscountTemplate, settings domain.GenerationSettings, count int) ([]domain.GeneratedCode, error) {
	settings = settings.Normalize()

	codes, err := g.synth.Synthesize(settings.Prefix, settings.Suffix, count)
	if err != nil {
		return nil, err
	}
	if g.checker != nil {
		if codes, err = g.excludeExisting(ctx, settings, codes); err != nil {
			return nil, err
		}
	}

	createdAt := g.now()
	out := make([]domain.GeneratedCode, 0, len(codes))
	for _, code := range codes {
		out = append(out, g.ApplyVariation(template, settings, code, createdAt))
	}
	return out, nil
}

// excludeExisting replaces codes the store already holds with fresh draws.
func (g *Generator) excludeExisting(ctx context.Context, settings domain.GenerationSettings, codes []string) ([]string, error) {
	exclude := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		exclude[c] = struct{}{}
	}

	for round := 0; round < maxExistenceRounds; round++ {
		existing, err := g.checker.CodesExist(ctx, codes)
		if err != nil {
			return nil, fmt.Errorf("check existing codes: %w", err)
		}
		if len(existing) == 0 {
			return codes, nil
		}

		taken := make(map[string]struct{}, len(existing))
		for _, c := range existing {
			taken[c] = struct{}{}
		}
		kept := codes[:0:0]
		for _, c := range codes {
			if _, ok := taken[c]; !ok {
				kept = append(kept, c)
			}
		}

		fresh, err := g.synth.synthesize(settings.Prefix, settings.Suffix, len(codes)-len(kept), exclude)
		if err != nil {
			return nil, err
		}
		for _, c := range fresh {
			exclude[c] = struct{}{}
		}
		codes = append(kept, fresh...)
	}
	return nil, apperrors.GenerationExhausted(exhaustedMessage)
}

// ApplyVariation builds one GeneratedCode from the template, resolving the
// discount value and expiry for this code.
func (g *Generator) ApplyVariation(template domain.DiscountTemplate, settings domain.GenerationSettings, code string, createdAt time.Time) domain.GeneratedCode {
	value := template.Value
	if settings.VariationActive() {
		value = g.drawValue(template.Type, *settings.ValueVariation)
	}

	expiresAt := template.ExpiresAt
	if settings.CustomExpiryActive() {
		exp := createdAt.AddDate(0, 0, settings.ExpirationSettings.DaysFromCreation)
		expiresAt = &exp
	}

	return domain.NewGeneratedCode(code, template, value, expiresAt, createdAt)
}

func (g *Generator) drawValue(t domain.DiscountType, v domain.ValueVariation) float64 {
	places := int32(2)
	if t == domain.DiscountTypePercentage {
		places = g.percentPrecision
	}

	lo, hi := v.MinValue, v.MaxValue
	if hi < lo {
		lo, hi = hi, lo
	}
	raw := lo + g.rng.Float64()*(hi-lo)
	return roundInRange(raw, lo, hi, places)
}

// roundInRange rounds raw to places decimals and pulls the result back inside
// [lo, hi]. When no value with that precision lies in the range, lo is returned.
func roundInRange(raw, lo, hi float64, places int32) float64 {
	dLo := decimal.NewFromFloat(lo)
	dHi := decimal.NewFromFloat(hi)

	d := decimal.NewFromFloat(raw).Round(places)
	if d.LessThan(dLo) {
		d = dLo.RoundCeil(places)
	}
	if d.GreaterThan(dHi) {
		d = dHi.RoundFloor(places)
	}
	if d.LessThan(dLo) {
		return lo
	}

	f, _ := d.Float64()
	return f
}
