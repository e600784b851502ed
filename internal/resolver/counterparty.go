package resolver

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/domain/entity"
)

// maxAlternatives caps how many fuzzy candidates accompany the primary match.
const maxAlternatives = 4

// Match confidence per cascade tier.
const (
	confidenceExactVAT   = 0.99
	confidenceExactEmail = 0.95
	confidenceFuzzyName  = 0.85
	confidenceNew        = 1.0
)

// Registry is the counterparty lookup surface the resolver matches
// against. SearchByName returns case-insensitive substring hits ordered
// by most recently updated first.
type Registry interface {
	FindByVAT(ctx context.Context, kind entity.CounterpartyKind, vatNumber string) (*entity.Counterparty, error)
	FindByEmail(ctx context.Context, kind entity.CounterpartyKind, email string) (*entity.Counterparty, error)
	SearchByName(ctx context.Context, kind entity.CounterpartyKind, name string, limit int) ([]entity.Counterparty, error)
}

// ResolveInput carries the extracted identity fields for one resolution.
type ResolveInput struct {
	Name      string
	VATNumber string
	Email     string
	Country   string
	Address   string
	IBAN      string
	Website   string
	Direction entity.Direction
}

// CounterpartyResolver matches extracted identities to registry entries
// using a short-circuiting cascade: exact VAT, exact email, fuzzy name,
// new. Only one tier executes per run.
type CounterpartyResolver struct {
	registry Registry
	logger   *zap.Logger
}

// NewCounterpartyResolver creates a counterparty resolver
func NewCounterpartyResolver(registry Registry, logger *zap.Logger) *CounterpartyResolver {
	return &CounterpartyResolver{
		registry: registry,
		logger:   logger,
	}
}

// Resolve runs the matching cascade against the registry selected by the
// trade direction. It never returns an error; registry failures are
// logged and fall through to the next tier, and a fully unmatched input
// yields a "new" result carrying a preview record.
func (r *CounterpartyResolver) Resolve(ctx context.Context, in ResolveInput) *entity.MatchResult {
	kind := entity.KindForDirection(in.Direction)

	// Tier 1: exact VAT number
	if vat := normalizeVAT(in.VATNumber); vat != "" {
		match, err := r.registry.FindByVAT(ctx, kind, vat)
		if err != nil {
			r.logger.Warn("VAT lookup failed", zap.String("vat", vat), zap.Error(err))
		} else if match != nil {
			return &entity.MatchResult{
				Matched:    match,
				MatchType:  entity.MatchExactVAT,
				Confidence: confidenceExactVAT,
			}
		}
	}

	// Tier 2: exact email, case-insensitive
	if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" {
		match, err := r.registry.FindByEmail(ctx, kind, email)
		if err != nil {
			r.logger.Warn("email lookup failed", zap.String("email", email), zap.Error(err))
		} else if match != nil {
			return &entity.MatchResult{
				Matched:    match,
				MatchType:  entity.MatchExactEmail,
				Confidence: confidenceExactEmail,
			}
		}
	}

	// Tier 3: fuzzy name, most recently updated hit wins
	if name := strings.TrimSpace(in.Name); name != "" {
		hits, err := r.registry.SearchByName(ctx, kind, name, maxAlternatives+1)
		if err != nil {
			r.logger.Warn("name search failed", zap.String("name", name), zap.Error(err))
		} else if len(hits) > 0 {
			primary := hits[0]
			alternatives := hits[1:]
			if len(alternatives) > maxAlternatives {
				alternatives = alternatives[:maxAlternatives]
			}
			return &entity.MatchResult{
				Matched:      &primary,
				MatchType:    entity.MatchFuzzyName,
				Confidence:   confidenceFuzzyName,
				Alternatives: alternatives,
			}
		}
	}

	// Tier 4: no match, build a preview for creation at save time
	return &entity.MatchResult{
		MatchType:  entity.MatchNew,
		Confidence: confidenceNew,
		Preview:    r.buildPreview(in, kind),
	}
}

func (r *CounterpartyResolver) buildPreview(in ResolveInput, kind entity.CounterpartyKind) *entity.Counterparty {
	return &entity.Counterparty{
		Kind:      kind,
		Name:      strings.TrimSpace(in.Name),
		VATNumber: normalizeVAT(in.VATNumber),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Country:   DetectCountry(in.VATNumber, in.Country, in.Address, in.IBAN),
		Address:   strings.TrimSpace(in.Address),
		IBAN:      strings.ToUpper(strings.ReplaceAll(in.IBAN, " ", "")),
		Website:   strings.TrimSpace(in.Website),
	}
}

// Promote makes the alternative with the given id the primary match. The
// previous primary is swapped into the alternatives list in its place.
// Returns false if the id is not among the alternatives.
func Promote(result *entity.MatchResult, alternativeID string) bool {
	if result == nil || result.Matched == nil {
		return false
	}
	for i, alt := range result.Alternatives {
		if alt.ID == alternativeID {
			promoted := alt
			result.Alternatives[i] = *result.Matched
			result.Matched = &promoted
			return true
		}
	}
	return false
}

func normalizeVAT(vat string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(vat), " ", ""))
}
