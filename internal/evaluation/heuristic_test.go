package evaluation

import (
	"context"
	"testing"
)

func TestHeuristicScorer_RelevantAnswerOutscoresIrrelevant(t *testing.T) {
	scorer := NewHeuristicScorer()
	ctx := context.Background()
	query := "What are goroutines used for in concurrent programming?"

	relevant, err := scorer.Score(ctx, MetricRelevance, Input{
		Query:  query,
		Answer: "Goroutines are lightweight threads used for concurrent programming.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	irrelevant, err := scorer.Score(ctx, MetricRelevance, Input{
		Query:  query,
		Answer: "Bananas ripen faster inside paper bags.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if relevant.Score <= irrelevant.Score {
		t.Fatalf("expected relevant answer to score higher: %f <= %f", relevant.Score, irrelevant.Score)
	}
}

func TestHeuristicScorer_FaithfulnessRequiresContextSupport(t *testing.T) {
	scorer := NewHeuristicScorer()
	ctx := context.Background()
	contexts := []string{"Goroutines are lightweight threads managed by the runtime scheduler."}

	supported, err := scorer.Score(ctx, MetricFaithfulness, Input{
		Answer:   "Goroutines are lightweight threads managed by the scheduler.",
		Contexts: contexts,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	unsupported, err := scorer.Score(ctx, MetricFaithfulness, Input{
		Answer:   "Elephants communicate through seismic vibrations underground.",
		Contexts: contexts,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if supported.Score <= unsupported.Score {
		t.Fatalf("expected supported answer to score higher: %f <= %f", supported.Score, unsupported.Score)
	}
}

func TestHeuristicScorer_ClarityBands(t *testing.T) {
	scorer := NewHeuristicScorer()
	ctx := context.Background()

	readable, err := scorer.Score(ctx, MetricClarity, Input{
		Answer: "Goroutines are cheap to create. The runtime multiplexes them onto operating system threads.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if readable.Score != 1.0 {
		t.Fatalf("expected full clarity score for readable prose, got %f", readable.Score)
	}

	empty, err := scorer.Score(ctx, MetricClarity, Input{Answer: "   "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty.Score != 0 {
		t.Fatalf("expected zero clarity for an empty answer, got %f", empty.Score)
	}
}

func TestHeuristicScorer_CancelledContext(t *testing.T) {
	scorer := NewHeuristicScorer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := scorer.Score(ctx, MetricRelevance, Input{Query: "q", Answer: "a"}); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
