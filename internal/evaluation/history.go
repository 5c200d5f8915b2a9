package evaluation

import (
	"sync"
	"time"
)

const (
	TrendImproving = "Improving"
	TrendDeclining = "Declining"
	TrendStable    = "Stable"
)

// Averages holds per-metric and overall mean scores. Each metric average is
// taken only over records where that metric is present; Overall only over
// records with at least one present metric.
type Averages struct {
	Relevance        float64 `json:"relevance"`
	Faithfulness     float64 `json:"faithfulness"`
	Completeness     float64 `json:"completeness"`
	Clarity          float64 `json:"clarity"`
	RetrievalQuality float64 `json:"retrieval_quality"`
	Overall          float64 `json:"overall"`
}

type Summary struct {
	TotalRecords    int        `json:"total_records"`
	AverageScores   Averages   `json:"average_scores"`
	RecentScores    Averages   `json:"recent_scores"`
	Trend           string     `json:"trend"`
	LastEvaluatedAt *time.Time `json:"last_evaluated_at,omitempty"`
}

// History is the append-only ledger of evaluation records. Append is the
// only mutation; records are never edited or removed. A single History
// instance is created at process start and shared by all requests.
type History struct {
	mu           sync.RWMutex
	records      []*Record
	recentWindow int
	epsilon      float64
}

func NewHistory(recentWindow int, epsilon float64) *History {
	if recentWindow <= 0 {
		recentWindow = 5
	}
	if epsilon <= 0 {
		epsilon = 0.05
	}
	return &History{
		recentWindow: recentWindow,
		epsilon:      epsilon,
	}
}

func (h *History) Append(record *Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record)
}

// Records returns the ledger in append order.
func (h *History) Records() []*Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Record, len(h.records))
	copy(out, h.records)
	return out
}

func (h *History) Summary() Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	summary := Summary{
		TotalRecords: len(h.records),
		Trend:        TrendStable,
	}
	if len(h.records) == 0 {
		return summary
	}

	last := h.records[len(h.records)-1].Timestamp
	summary.LastEvaluatedAt = &last

	recentStart := len(h.records) - h.recentWindow
	if recentStart < 0 {
		recentStart = 0
	}

	summary.AverageScores = averages(h.records)
	summary.RecentScores = averages(h.records[recentStart:])
	summary.Trend = Trend(summary.RecentScores.Overall, summary.AverageScores.Overall, h.epsilon)

	return summary
}

// Trend classifies recent performance against the all-time average.
func Trend(recentAverage, overallAverage, epsilon float64) string {
	switch {
	case recentAverage-overallAverage > epsilon:
		return TrendImproving
	case recentAverage-overallAverage < -epsilon:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func averages(records []*Record) Averages {
	var avg Averages

	for _, m := range AllMetrics {
		var sum float64
		count := 0
		for _, r := range records {
			if res := r.Result(m); res != nil {
				sum += res.Score
				count++
			}
		}
		if count > 0 {
			setAverage(&avg, m, sum/float64(count))
		}
	}

	var overallSum float64
	scored := 0
	for _, r := range records {
		if r.Scored() {
			overallSum += r.OverallScore
			scored++
		}
	}
	if scored > 0 {
		avg.Overall = overallSum / float64(scored)
	}

	return avg
}

func setAverage(avg *Averages, m Metric, value float64) {
	switch m {
	case MetricRelevance:
		avg.Relevance = value
	case MetricFaithfulness:
		avg.Faithfulness = value
	case MetricCompleteness:
		avg.Completeness = value
	case MetricClarity:
		avg.Clarity = value
	case MetricRetrievalQuality:
		avg.RetrievalQuality = value
	}
}
