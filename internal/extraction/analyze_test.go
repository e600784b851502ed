package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dstam/smart-import/internal/domain/entity"
)

func TestValidateMath(t *testing.T) {
	tests := []struct {
		name        string
		doc         entity.ExtractedDocument
		wantReasons int
	}{
		{
			name: "consistent amounts",
			doc: entity.ExtractedDocument{
				Subtotal: 100, TaxAmount: 21, Total: 121,
				LineItems: []entity.LineItem{{LineTotal: 60}, {LineTotal: 40}},
			},
			wantReasons: 0,
		},
		{
			name: "total off within tolerance",
			doc: entity.ExtractedDocument{
				Subtotal: 100, TaxAmount: 21, Total: 121.05,
			},
			wantReasons: 0,
		},
		{
			name: "total does not add up",
			doc: entity.ExtractedDocument{
				Subtotal: 100, TaxAmount: 21, Total: 130,
			},
			wantReasons: 1,
		},
		{
			name: "line items disagree with subtotal",
			doc: entity.ExtractedDocument{
				Subtotal: 100, TaxAmount: 21, Total: 121,
				LineItems: []entity.LineItem{{LineTotal: 50}, {LineTotal: 40}},
			},
			wantReasons: 1,
		},
		{
			name:        "empty amounts skip the total check",
			doc:         entity.ExtractedDocument{Total: 50},
			wantReasons: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reasons := ValidateMath(&tt.doc)
			assert.Len(t, reasons, tt.wantReasons)
		})
	}
}

func TestScoreConfidence(t *testing.T) {
	doc := &entity.ExtractedDocument{
		Confidence: entity.Confidence{
			Vendor: 1.0, Amounts: 1.0, LineItems: 1.0, Tax: 1.0, DocType: 1.0,
		},
	}
	ScoreConfidence(doc, nil)
	assert.InDelta(t, 1.0, doc.Confidence.Overall, 1e-9)
	assert.False(t, doc.RequiresReview)

	// Weighted mean with weak amounts drags the overall down
	doc.Confidence = entity.Confidence{Vendor: 0.9, Amounts: 0.4, LineItems: 0.8, Tax: 0.7, DocType: 0.9}
	ScoreConfidence(doc, nil)
	assert.InDelta(t, 0.9*0.20+0.4*0.30+0.8*0.15+0.7*0.20+0.9*0.15, doc.Confidence.Overall, 1e-9)
	assert.True(t, doc.RequiresReview)

	// Review reasons force the flag even with high confidence
	doc.Confidence = entity.Confidence{Vendor: 1, Amounts: 1, LineItems: 1, Tax: 1, DocType: 1}
	ScoreConfidence(doc, []string{"total does not add up"})
	assert.True(t, doc.RequiresReview)
}

func TestGLCodeForCategory(t *testing.T) {
	assert.Equal(t, "6100", GLCodeForCategory("software"))
	assert.Equal(t, "6110", GLCodeForCategory("Hosting"))
	assert.Equal(t, "6900", GLCodeForCategory("unknown-category"))
	assert.Equal(t, "6900", GLCodeForCategory(""))
}

func TestDetectRecurring(t *testing.T) {
	assert.True(t, DetectRecurring("Your monthly fee for March"))
	assert.True(t, DetectRecurring("Abonnement periode 01-03 t/m 31-03"))
	assert.False(t, DetectRecurring("One-time consulting engagement"))
}
