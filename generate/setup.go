package generate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	qgen "github.com/Paranoid-AF/qgen"
	"github.com/Paranoid-AF/qgen/index"
)

// NewEngineFromConfig loads the knowledge base, builds the index and connects
// the generator. Any failure is a startup error.
func NewEngineFromConfig(ctx context.Context, cfg *qgen.Config) (*Engine, error) {
	if cfg == nil {
		cfg = qgen.DefaultConfig()
	}

	generator, err := NewGenerator(GeneratorConfig{
		ModelPath:        qgen.ResolveModelPath(cfg),
		Model:            cfg.Generation.Model,
		BaseURL:          qgen.ResolveGenerationBaseURL(cfg),
		APIKey:           qgen.ResolveGenerationAPIKey(cfg),
		APIType:          cfg.Generation.APIType,
		MaxTokens:        cfg.Generation.MaxTokens,
		MaxInputTokens:   cfg.Generation.MaxInputTokens,
		Temperature:      cfg.Generation.Temperature,
		TopP:             cfg.Generation.TopP,
		FrequencyPenalty: cfg.Generation.FrequencyPenalty,
		PresencePenalty:  cfg.Generation.PresencePenalty,
	})
	if err != nil {
		return nil, err
	}

	kbPath := qgen.ResolveKnowledgePath(cfg)
	docs, err := index.LoadKnowledgeBase(kbPath, cfg.Knowledge.Sheet)
	if err != nil {
		return nil, err
	}
	slog.Info("knowledge base loaded", "path", kbPath, "documents", len(docs))

	var embedder index.Embedder = index.NewAPIEmbedder(
		qgen.ResolveEmbeddingBaseURL(cfg),
		qgen.ResolveEmbeddingAPIKey(cfg),
		qgen.ResolveEmbeddingModel(cfg),
		cfg.Embedding.Dimensions,
	)
	var queryCache *index.QueryCache
	if ttl := cfg.Embedding.QueryCacheTTLMinutes; ttl > 0 {
		queryCache = index.NewQueryCache(embedder, time.Duration(ttl)*time.Minute, cfg.Embedding.QueryCacheCapacity)
		embedder = queryCache
	}

	idx, err := index.Build(ctx, docs, embedder, index.Options{CachePath: cfg.Knowledge.CachePath})
	if err != nil {
		if queryCache != nil {
			queryCache.Close()
		}
		return nil, fmt.Errorf("build knowledge index: %w", err)
	}

	e := NewEngine(idx, generator, EngineConfig{
		TopK:              cfg.Knowledge.TopK,
		AttemptMultiplier: cfg.Generation.AttemptMultiplier,
		MaxQuestions:      cfg.Generation.MaxQuestions,
		PromptTemplate:    LoadCustomPrompt(),
	})
	e.closers = append(e.closers, generator.Close)
	if queryCache != nil {
		e.closers = append(e.closers, queryCache.Close)
	}
	return e, nil
}
