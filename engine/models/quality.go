package models

// QualityWeights are the seven non-negative weights applied to a
// QualityScore's dimensions; they must sum to 1 after Normalize, §4.6.
type QualityWeights struct {
	Relevance    float64
	Accuracy     float64
	Completeness float64
	Clarity      float64
	Credibility  float64
	Timeliness   float64
	Specificity  float64
}

// Normalize rescales the weights so they sum to exactly 1. A zero-sum input
// falls back to equal weighting across all seven dimensions.
func (w QualityWeights) Normalize() QualityWeights {
	sum := w.Relevance + w.Accuracy + w.Completeness + w.Clarity + w.Credibility + w.Timeliness + w.Specificity
	if sum <= 0 {
		const eq = 1.0 / 7.0
		return QualityWeights{eq, eq, eq, eq, eq, eq, eq}
	}
	return QualityWeights{
		Relevance:    w.Relevance / sum,
		Accuracy:     w.Accuracy / sum,
		Completeness: w.Completeness / sum,
		Clarity:      w.Clarity / sum,
		Credibility:  w.Credibility / sum,
		Timeliness:   w.Timeliness / sum,
		Specificity:  w.Specificity / sum,
	}
}

// DefaultWeights returns the "default" preset, §4.6.
func DefaultWeights() QualityWeights {
	return QualityWeights{
		Relevance: 0.2, Accuracy: 0.2, Completeness: 0.15,
		Clarity: 0.15, Credibility: 0.1, Timeliness: 0.1, Specificity: 0.1,
	}.Normalize()
}

// ResearchOptimizedWeights favors completeness and specificity over recency.
func ResearchOptimizedWeights() QualityWeights {
	return QualityWeights{
		Relevance: 0.2, Accuracy: 0.2, Completeness: 0.25,
		Clarity: 0.1, Credibility: 0.1, Timeliness: 0.05, Specificity: 0.1,
	}.Normalize()
}

// FactCheckingOptimizedWeights favors accuracy and credibility.
func FactCheckingOptimizedWeights() QualityWeights {
	return QualityWeights{
		Relevance: 0.15, Accuracy: 0.3, Completeness: 0.1,
		Clarity: 0.1, Credibility: 0.25, Timeliness: 0.05, Specificity: 0.05,
	}.Normalize()
}

// QualityScore is the multi-dimensional assessment of a research output, §3/§4.6.
type QualityScore struct {
	Relevance    float64
	Accuracy     float64
	Completeness float64
	Clarity      float64
	Credibility  float64
	Timeliness   float64
	Specificity  float64
	Composite    float64
}

// Composite computes the weighted sum for the given (already normalized) weights.
func Composite(s QualityScore, w QualityWeights) float64 {
	return w.Relevance*s.Relevance +
		w.Accuracy*s.Accuracy +
		w.Completeness*s.Completeness +
		w.Clarity*s.Clarity +
		w.Credibility*s.Credibility +
		w.Timeliness*s.Timeliness +
		w.Specificity*s.Specificity
}
