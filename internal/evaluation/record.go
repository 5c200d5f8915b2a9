package evaluation

import "time"

// Metric identifies one of the five quality dimensions. The set is closed;
// code that handles metrics ranges over AllMetrics rather than guessing at
// map keys.
type Metric string

const (
	MetricRelevance        Metric = "relevance"
	MetricFaithfulness     Metric = "faithfulness"
	MetricCompleteness     Metric = "completeness"
	MetricClarity          Metric = "clarity"
	MetricRetrievalQuality Metric = "retrieval_quality"
)

var AllMetrics = []Metric{
	MetricRelevance,
	MetricFaithfulness,
	MetricCompleteness,
	MetricClarity,
	MetricRetrievalQuality,
}

// MetricResult is a single scored metric. Score is always in [0,1].
type MetricResult struct {
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

// Record is the outcome of evaluating one question/answer/context triple.
// A nil metric field means that scorer failed or timed out; OverallScore is
// the mean of the present metrics only. Records are immutable once built.
type Record struct {
	Timestamp        time.Time     `json:"timestamp"`
	Relevance        *MetricResult `json:"relevance,omitempty"`
	Faithfulness     *MetricResult `json:"faithfulness,omitempty"`
	Completeness     *MetricResult `json:"completeness,omitempty"`
	Clarity          *MetricResult `json:"clarity,omitempty"`
	RetrievalQuality *MetricResult `json:"retrieval_quality,omitempty"`
	OverallScore     float64       `json:"overall_score"`
}

// Result returns the stored result for a metric, or nil when absent.
func (r *Record) Result(m Metric) *MetricResult {
	switch m {
	case MetricRelevance:
		return r.Relevance
	case MetricFaithfulness:
		return r.Faithfulness
	case MetricCompleteness:
		return r.Completeness
	case MetricClarity:
		return r.Clarity
	case MetricRetrievalQuality:
		return r.RetrievalQuality
	default:
		return nil
	}
}

func (r *Record) setResult(m Metric, res *MetricResult) {
	switch m {
	case MetricRelevance:
		r.Relevance = res
	case MetricFaithfulness:
		r.Faithfulness = res
	case MetricCompleteness:
		r.Completeness = res
	case MetricClarity:
		r.Clarity = res
	case MetricRetrievalQuality:
		r.RetrievalQuality = res
	}
}

// Scored reports whether at least one metric succeeded. Unscored records are
// kept for diagnostics but excluded from every average.
func (r *Record) Scored() bool {
	for _, m := range AllMetrics {
		if r.Result(m) != nil {
			return true
		}
	}
	return false
}

func (r *Record) presentScores() []float64 {
	var scores []float64
	for _, m := range AllMetrics {
		if res := r.Result(m); res != nil {
			scores = append(scores, res.Score)
		}
	}
	return scores
}
