package evaluation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ragchat/backend/pkg/logger"
)

// Judge is the completion capability a JudgeScorer needs. It is satisfied by
// the LLM client but kept abstract so scoring logic is testable without one.
type Judge interface {
	JudgeCompletion(ctx context.Context, prompt string) (string, error)
}

// JudgeScorer scores metrics by asking a judging model to grade the answer
// against a fixed rubric. Retrieval quality is computed locally; it grades
// the retrieved chunks themselves, not the model's use of them.
type JudgeScorer struct {
	judge Judge
}

func NewJudgeScorer(judge Judge) *JudgeScorer {
	return &JudgeScorer{judge: judge}
}

var metricDescriptions = map[Metric]string{
	MetricRelevance:        "Measures how well the response addresses the user's query",
	MetricFaithfulness:     "Measures if the response is grounded in the retrieved context",
	MetricCompleteness:     "Measures how thoroughly the response addresses the query",
	MetricClarity:          "Measures how clear and well-structured the response is",
	MetricRetrievalQuality: "Measures relevance and diversity of the retrieved chunks",
}

func (s *JudgeScorer) Score(ctx context.Context, metric Metric, in Input) (MetricResult, error) {
	if metric == MetricRetrievalQuality {
		return retrievalQuality(in.Contexts), nil
	}

	prompt, err := judgePrompt(metric, in)
	if err != nil {
		return MetricResult{}, err
	}

	reply, err := s.judge.JudgeCompletion(ctx, prompt)
	if err != nil {
		return MetricResult{}, fmt.Errorf("judge completion for %s: %w", metric, err)
	}

	score, ok := ParseScore(reply)
	if !ok {
		logger.Warn("Could not parse judge score, using neutral default",
			zap.String("metric", string(metric)),
			zap.String("reply", reply),
		)
		score = 0.5
	}

	return MetricResult{Score: score, Description: metricDescriptions[metric]}, nil
}

func judgePrompt(metric Metric, in Input) (string, error) {
	switch metric {
	case MetricRelevance:
		return fmt.Sprintf(`Rate the relevance of the response to the query on a scale of 0.0 to 1.0.

Query: %s
Response: %s

Criteria:
- 1.0: Response directly and completely addresses the query
- 0.8: Response mostly addresses the query with minor gaps
- 0.6: Response partially addresses the query
- 0.4: Response somewhat relates but misses key aspects
- 0.2: Response barely relates to the query
- 0.0: Response is completely irrelevant

Provide only a numeric score between 0.0 and 1.0.`, in.Query, in.Answer), nil

	case MetricFaithfulness:
		contextText := strings.Join(topContexts(in.Contexts, 3), "\n\n")
		return fmt.Sprintf(`Rate the faithfulness of the response to the provided context on a scale of 0.0 to 1.0.

Context: %s
Response: %s

Criteria:
- 1.0: Response is completely supported by the context, no hallucinations
- 0.8: Response is mostly supported with minor unsupported details
- 0.6: Response is partially supported but has some unsupported claims
- 0.4: Response has significant unsupported or contradictory information
- 0.2: Response is mostly unsupported by the context
- 0.0: Response contradicts or is completely unsupported by context

Provide only a numeric score between 0.0 and 1.0.`, contextText, in.Answer), nil

	case MetricCompleteness:
		return fmt.Sprintf(`Rate the completeness of the response to the query on a scale of 0.0 to 1.0.

Query: %s
Response: %s

Criteria:
- 1.0: Response thoroughly answers all aspects of the query
- 0.8: Response covers most aspects with minor gaps
- 0.6: Response covers main points but misses some important aspects
- 0.4: Response covers some aspects but leaves significant gaps
- 0.2: Response only partially addresses the query
- 0.0: Response fails to address the query adequately

Provide only a numeric score between 0.0 and 1.0.`, in.Query, in.Answer), nil

	case MetricClarity:
		return fmt.Sprintf(`Rate the clarity and readability of the response on a scale of 0.0 to 1.0.

Response: %s

Criteria:
- 1.0: Response is very clear, well-structured, and easy to understand
- 0.8: Response is mostly clear with good structure
- 0.6: Response is reasonably clear but could be better structured
- 0.4: Response is somewhat unclear or poorly structured
- 0.2: Response is difficult to understand
- 0.0: Response is very unclear or confusing

Provide only a numeric score between 0.0 and 1.0.`, in.Answer), nil

	default:
		return "", fmt.Errorf("no judge prompt for metric %q", metric)
	}
}

func topContexts(contexts []string, n int) []string {
	if len(contexts) <= n {
		return contexts
	}
	return contexts[:n]
}

// retrievalQuality scores the retrieved chunks by count and distinctness:
// five distinct chunks score 1.0, fewer or duplicated chunks score less.
func retrievalQuality(contexts []string) MetricResult {
	if len(contexts) == 0 {
		return MetricResult{Score: 0, Description: "No contexts retrieved"}
	}

	distinct := make(map[string]bool, len(contexts))
	for _, c := range contexts {
		distinct[c] = true
	}
	diversity := float64(len(distinct)) / float64(len(contexts))

	score := (float64(len(contexts)) / 5.0) * diversity
	if score > 1 {
		score = 1
	}

	return MetricResult{
		Score:       score,
		Description: fmt.Sprintf("Retrieved %d contexts with %.2f diversity", len(contexts), diversity),
	}
}

var numberPattern = regexp.MustCompile(`\d+\.?\d*`)

// ParseScore extracts a [0,1] score from a judge reply. Bare floats are
// preferred; otherwise the first number in the text is used, rescaling
// replies given on a 0-10 scale.
func ParseScore(reply string) (float64, bool) {
	content := strings.TrimSpace(reply)

	if score, err := strconv.ParseFloat(content, 64); err == nil {
		return clamp(score), true
	}

	match := numberPattern.FindString(content)
	if match == "" {
		return 0, false
	}

	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	if score > 1.0 && score <= 10.0 {
		score = score / 10.0
	}
	return clamp(score), true
}
