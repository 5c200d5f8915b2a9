package evaluation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ragchat/backend/pkg/logger"
)

// Input carries everything a scorer may look at.
type Input struct {
	Query    string
	Answer   string
	Contexts []string
}

// Scorer produces a score in [0,1] plus a short description for one metric,
// or fails. Implementations must be safe for concurrent use.
type Scorer interface {
	Score(ctx context.Context, metric Metric, in Input) (MetricResult, error)
}

// Engine runs all five metric scorers for a completed answer. A scorer
// failure or timeout only drops that metric from the record; evaluation as
// a whole never fails.
type Engine struct {
	scorer  Scorer
	timeout time.Duration
}

func NewEngine(scorer Scorer, scorerTimeout time.Duration) *Engine {
	if scorerTimeout <= 0 {
		scorerTimeout = 20 * time.Second
	}
	return &Engine{
		scorer:  scorer,
		timeout: scorerTimeout,
	}
}

func (e *Engine) Evaluate(ctx context.Context, in Input) *Record {
	record := &Record{Timestamp: time.Now()}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, metric := range AllMetrics {
		wg.Add(1)
		go func(metric Metric) {
			defer wg.Done()

			scoreCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			result, err := e.scorer.Score(scoreCtx, metric, in)
			if err != nil {
				logger.Warn("Metric scorer failed",
					zap.String("metric", string(metric)),
					zap.Error(err),
				)
				return
			}

			result.Score = clamp(result.Score)

			mu.Lock()
			record.setResult(metric, &result)
			mu.Unlock()
		}(metric)
	}

	wg.Wait()

	if scores := record.presentScores(); len(scores) > 0 {
		var sum float64
		for _, s := range scores {
			sum += s
		}
		record.OverallScore = sum / float64(len(scores))
	}

	logger.Info("Answer evaluated",
		zap.Float64("overall_score", record.OverallScore),
		zap.Int("metrics_present", len(record.presentScores())),
	)

	return record
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
