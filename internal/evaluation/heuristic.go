package evaluation

import (
	"context"
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
)

// HeuristicScorer grades answers without a judging model, using lexical
// overlap and sentence statistics. It is fully deterministic, which also
// makes it the scorer of choice in tests.
type HeuristicScorer struct{}

func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

func (s *HeuristicScorer) Score(ctx context.Context, metric Metric, in Input) (MetricResult, error) {
	if err := ctx.Err(); err != nil {
		return MetricResult{}, err
	}

	switch metric {
	case MetricRelevance:
		queryWords, err := contentWords(in.Query)
		if err != nil {
			return MetricResult{}, err
		}
		answerWords, err := contentWords(in.Answer)
		if err != nil {
			return MetricResult{}, err
		}
		return MetricResult{
			Score:       overlapF1(queryWords, answerWords),
			Description: metricDescriptions[MetricRelevance],
		}, nil

	case MetricCompleteness:
		queryWords, err := contentWords(in.Query)
		if err != nil {
			return MetricResult{}, err
		}
		answerWords, err := contentWords(in.Answer)
		if err != nil {
			return MetricResult{}, err
		}
		return MetricResult{
			Score:       coverage(queryWords, answerWords),
			Description: metricDescriptions[MetricCompleteness],
		}, nil

	case MetricFaithfulness:
		answerWords, err := contentWords(in.Answer)
		if err != nil {
			return MetricResult{}, err
		}
		contextWords, err := contentWords(strings.Join(in.Contexts, " "))
		if err != nil {
			return MetricResult{}, err
		}
		return MetricResult{
			Score:       coverage(answerWords, contextWords),
			Description: metricDescriptions[MetricFaithfulness],
		}, nil

	case MetricClarity:
		score, err := clarityScore(in.Answer)
		if err != nil {
			return MetricResult{}, err
		}
		return MetricResult{Score: score, Description: metricDescriptions[MetricClarity]}, nil

	case MetricRetrievalQuality:
		return retrievalQuality(in.Contexts), nil

	default:
		return MetricResult{}, fmt.Errorf("unknown metric %q", metric)
	}
}

func contentWords(text string) (map[string]bool, error) {
	words := make(map[string]bool)
	if strings.TrimSpace(text) == "" {
		return words, nil
	}

	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	for _, tok := range doc.Tokens() {
		word := strings.ToLower(tok.Text)
		if len(word) > 3 {
			words[word] = true
		}
	}
	return words, nil
}

// coverage is the share of want-words present in have-words.
func coverage(want, have map[string]bool) float64 {
	if len(want) == 0 {
		return 0.5
	}
	matched := 0
	for w := range want {
		if have[w] {
			matched++
		}
	}
	return float64(matched) / float64(len(want))
}

// overlapF1 balances how much of the query the answer touches against how
// much of the answer is on topic.
func overlapF1(query, answer map[string]bool) float64 {
	cov := coverage(query, answer)
	prec := coverage(answer, query)
	if cov+prec == 0 {
		return 0
	}
	return 2 * cov * prec / (cov + prec)
}

// clarityScore rewards answers whose sentences sit in a readable length
// band and penalizes walls of text or fragment-only replies.
func clarityScore(answer string) (float64, error) {
	if strings.TrimSpace(answer) == "" {
		return 0, nil
	}

	doc, err := prose.NewDocument(answer, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		return 0, fmt.Errorf("segment sentences: %w", err)
	}

	sentences := doc.Sentences()
	if len(sentences) == 0 {
		return 0, nil
	}

	avgWords := float64(len(doc.Tokens())) / float64(len(sentences))

	const lowBand, highBand = 5.0, 30.0
	switch {
	case avgWords >= lowBand && avgWords <= highBand:
		return 1.0, nil
	case avgWords < lowBand:
		return clamp(avgWords / lowBand), nil
	default:
		return clamp(1 - (avgWords-highBand)/highBand), nil
	}
}
