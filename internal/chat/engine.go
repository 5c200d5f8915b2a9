package chat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ragchat/backend/internal/assembler"
	"github.com/ragchat/backend/internal/evaluation"
	"github.com/ragchat/backend/internal/llm"
	"github.com/ragchat/backend/internal/metrics"
	"github.com/ragchat/backend/internal/vector/milvus"
	"github.com/ragchat/backend/pkg/logger"
	"github.com/ragchat/backend/pkg/utils"
)

// Embedder produces the query embedding used for retrieval.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Generator produces the assistant answer for an assembled prompt.
type Generator interface {
	GenerateAnswer(ctx context.Context, userPrompt string, history []llm.Message) (string, error)
}

// Searcher retrieves the nearest chunks for a query embedding.
type Searcher interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]milvus.SearchResult, error)
}

// EmbeddingCache is an optional read-through cache for query embeddings.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, key string, embedding []float32, ttl time.Duration) error
}

// Evaluator scores a finished chat turn.
type Evaluator interface {
	Evaluate(ctx context.Context, in evaluation.Input) *evaluation.Record
}

const embeddingCacheTTL = 24 * time.Hour

type Config struct {
	TopK            int
	MaxContextChars int
}

type Engine struct {
	embedder  Embedder
	searcher  Searcher
	generator Generator
	cache     EmbeddingCache
	evaluator Evaluator
	history   *evaluation.History
	cfg       Config
}

type Request struct {
	Message  string
	History  []llm.Message
	Evaluate bool
}

type Response struct {
	Response   string             `json:"response"`
	Sources    []string           `json:"sources"`
	Evaluation *evaluation.Record `json:"evaluation,omitempty"`
	LatencyMS  int64              `json:"latency_ms"`
}

// NewEngine wires the chat pipeline. cache and evaluator may be nil; the
// engine then skips embedding caching or evaluation respectively.
func NewEngine(embedder Embedder, searcher Searcher, generator Generator, cache EmbeddingCache, evaluator Evaluator, history *evaluation.History, cfg Config) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = 8000
	}

	return &Engine{
		embedder:  embedder,
		searcher:  searcher,
		generator: generator,
		cache:     cache,
		evaluator: evaluator,
		history:   history,
		cfg:       cfg,
	}
}

func (e *Engine) Chat(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	embedding, err := e.queryEmbedding(ctx, req.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := e.searcher.Search(ctx, embedding, e.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	metrics.RetrievedChunks.Observe(float64(len(results)))

	candidates := make([]assembler.Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, assembler.Candidate{
			ChunkID:     r.ChunkID,
			ChunkIndex:  int(r.ChunkIndex),
			Score:       float64(r.Score),
			Text:        r.Text,
			ContextText: r.ContextText,
			Source:      r.Source,
		})
	}

	contextBlock, sources := assembler.Assemble(req.Message, candidates, e.cfg.MaxContextChars)

	userPrompt := req.Message
	if contextBlock != "" {
		userPrompt = fmt.Sprintf("%s\n\nQuestion: %s", contextBlock, req.Message)
	}

	answer, err := e.generator.GenerateAnswer(ctx, userPrompt, req.History)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	resp := &Response{
		Response:  answer,
		Sources:   sources,
		LatencyMS: time.Since(start).Milliseconds(),
	}

	if req.Evaluate && e.evaluator != nil && len(results) > 0 {
		contexts := make([]string, len(results))
		for i, r := range results {
			contexts[i] = r.Text
		}

		record := e.evaluator.Evaluate(ctx, evaluation.Input{
			Query:    req.Message,
			Answer:   answer,
			Contexts: contexts,
		})
		resp.Evaluation = record

		if e.history != nil {
			e.history.Append(record)
		}
	}

	logger.Info("Chat turn completed",
		zap.Int("retrieved", len(results)),
		zap.Int("sources", len(sources)),
		zap.Bool("evaluated", resp.Evaluation != nil),
		zap.Int64("latency_ms", resp.LatencyMS),
	)

	return resp, nil
}

func (e *Engine) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if e.cache == nil {
		return e.embedder.GenerateEmbedding(ctx, query)
	}

	key := utils.EmbeddingKey(query)

	if embedding, ok, err := e.cache.GetEmbedding(ctx, key); err != nil {
		logger.Warn("Embedding cache read failed", zap.Error(err))
	} else if ok {
		metrics.CacheHits.WithLabelValues("embedding").Inc()
		return embedding, nil
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()

	embedding, err := e.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	if err := e.cache.SetEmbedding(ctx, key, embedding, embeddingCacheTTL); err != nil {
		logger.Warn("Embedding cache write failed", zap.Error(err))
	}

	return embedding, nil
}
