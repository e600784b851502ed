package recurring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/domain/entity"
)

// SubscriptionStore persists subscription aggregates.
type SubscriptionStore interface {
	FindActiveByName(ctx context.Context, name string) (*entity.Subscription, error)
	Create(ctx context.Context, s *entity.Subscription) error
	Update(ctx context.Context, s *entity.Subscription) error
}

// TemplateStore persists recurring document templates.
type TemplateStore interface {
	Create(ctx context.Context, t *entity.RecurringTemplate) error
}

// Tracker maintains recurring-subscription aggregates. Every recurring
// save gets a template record; the subscription matching the vendor name
// gets the new observation appended or is created from scratch.
type Tracker struct {
	subscriptions SubscriptionStore
	templates     TemplateStore
	logger        *zap.Logger
}

// NewTracker creates a recurring tracker
func NewTracker(subscriptions SubscriptionStore, templates TemplateStore, logger *zap.Logger) *Tracker {
	return &Tracker{
		subscriptions: subscriptions,
		templates:     templates,
		logger:        logger,
	}
}

// Track records one recurring observation. The template is created
// unconditionally; the subscription aggregate is found by
// case-insensitive name or created with this single observation.
func (t *Tracker) Track(ctx context.Context, doc *entity.ExtractedDocument, docType entity.DocumentType, counterpartyID string) error {
	cycle := entity.CycleFromFrequency(doc.Class.Frequency)

	observedAt := doc.InvoiceDate
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}

	template := &entity.RecurringTemplate{
		Name:           doc.VendorName,
		DocumentType:   docType,
		CounterpartyID: counterpartyID,
		Amount:         doc.Total,
		Currency:       doc.Currency,
		BillingCycle:   cycle,
		Category:       doc.Class.Category,
		NextRunDate:    cycle.NextDate(observedAt),
	}
	if err := t.templates.Create(ctx, template); err != nil {
		return fmt.Errorf("failed to create recurring template: %w", err)
	}

	sub, err := t.subscriptions.FindActiveByName(ctx, doc.VendorName)
	if err != nil {
		return fmt.Errorf("failed to look up subscription: %w", err)
	}

	observation := entity.AmountObservation{Date: observedAt, Amount: doc.Total}

	if sub == nil {
		sub = &entity.Subscription{
			Name:            doc.VendorName,
			CounterpartyID:  counterpartyID,
			AmountType:      entity.AmountFixed,
			AmountHistory:   []entity.AmountObservation{observation},
			EstimatedAmount: doc.Total,
			Currency:        doc.Currency,
			BillingCycle:    cycle,
			NextBillingDate: cycle.NextDate(observedAt),
			Category:        doc.Class.Category,
		}
		if err := t.subscriptions.Create(ctx, sub); err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		t.logger.Info("Subscription created",
			zap.String("name", sub.Name),
			zap.String("cycle", string(cycle)))
		return nil
	}

	appendObservation(sub, observation)
	sub.NextBillingDate = sub.BillingCycle.NextDate(observedAt)

	if err := t.subscriptions.Update(ctx, sub); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	t.logger.Info("Subscription updated",
		zap.String("name", sub.Name),
		zap.Int("observations", len(sub.AmountHistory)),
		zap.Float64("estimated_amount", sub.EstimatedAmount))
	return nil
}

// appendObservation adds the observation, keeps only the most recent
// entries up to the cap, and recomputes the estimate as the mean of the
// retained history. Differing observed amounts flip the subscription to
// variable.
func appendObservation(sub *entity.Subscription, obs entity.AmountObservation) {
	sub.AmountHistory = append(sub.AmountHistory, obs)
	if excess := len(sub.AmountHistory) - entity.MaxAmountHistory; excess > 0 {
		sub.AmountHistory = sub.AmountHistory[excess:]
	}

	var sum float64
	variable := false
	for _, o := range sub.AmountHistory {
		sum += o.Amount
		if o.Amount != sub.AmountHistory[0].Amount {
			variable = true
		}
	}
	sub.EstimatedAmount = sum / float64(len(sub.AmountHistory))
	if variable {
		sub.AmountType = entity.AmountVariable
	}
}
