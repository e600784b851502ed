package resolver

import "github.com/dstam/smart-import/internal/domain/entity"

// ReviewAdvice is the advisory output of the confidence gate. It never
// blocks saving.
type ReviewAdvice struct {
	RequiresReview bool     `json:"requires_review"`
	Reasons        []string `json:"reasons,omitempty"`
	Overall        float64  `json:"overall"`
}

// GateConfidence aggregates the extraction confidence and externally
// supplied review reasons into display guidance. The requires-review
// flag is taken as given from the extraction step; no threshold is
// computed here.
func GateConfidence(doc *entity.ExtractedDocument) ReviewAdvice {
	return ReviewAdvice{
		RequiresReview: doc.RequiresReview,
		Reasons:        doc.ReviewReasons,
		Overall:        doc.Confidence.Overall,
	}
}
