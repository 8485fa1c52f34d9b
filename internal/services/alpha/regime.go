package alpha

import "AlphaForge/internal/domain/models"

// RegimeClassifier labels the trailing benchmark trend with a fixed
// deterministic rule: above the bull threshold is bull, below the bear
// threshold is bear, anything between is sideways.
type RegimeClassifier struct {
	bullPct float64
	bearPct float64
}

// NewRegimeClassifier builds a classifier from threshold percentages
// (defaults +5 / -5).
func NewRegimeClassifier(bullPct, bearPct float64) *RegimeClassifier {
	return &RegimeClassifier{bullPct: bullPct, bearPct: bearPct}
}

// Classify maps a trailing return to a regime label. Unknown input stays
// unknown; it is never coerced to sideways.
func (c *RegimeClassifier) Classify(trailingReturnPct *float64) string {
	if trailingReturnPct == nil {
		return models.RegimeUnknown
	}
	switch {
	case *trailingReturnPct > c.bullPct:
		return models.RegimeBull
	case *trailingReturnPct < c.bearPct:
		return models.RegimeBear
	default:
		return models.RegimeSideways
	}
}
