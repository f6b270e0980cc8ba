// Package generate orchestrates retrieval and model sampling to generate interview questions.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/Paranoid-AF/qgen/index"
)

const (
	// DefaultTopK is the number of knowledge base documents used as context.
	DefaultTopK = 2
	// DefaultAttemptMultiplier bounds sampling rounds to count * multiplier.
	DefaultAttemptMultiplier = 3
	// DefaultMaxQuestions is the largest count accepted per request.
	DefaultMaxQuestions = 50
)

var (
	// ErrInvalidInput is returned for an empty description or a count outside
	// 1..MaxQuestions.
	ErrInvalidInput = errors.New("invalid input")
	// ErrGeneration matches every *GenerationError.
	ErrGeneration = errors.New("generation failed")
)

// GenerationError reports a retrieval or sampling failure that aborted a request.
type GenerationError struct {
	Op  string // "retrieve" or "sample"
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("error generating questions: %s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// EngineConfig tunes the generation loop.
type EngineConfig struct {
	TopK              int
	AttemptMultiplier int
	// MaxQuestions caps the requested count; zero uses DefaultMaxQuestions.
	MaxQuestions int
	// PromptTemplate is a text/template source; empty uses the built-in prompt.
	PromptTemplate string
}

// Engine retrieves context for a job description and samples questions until
// enough well-formed, unique ones are collected or the attempt budget runs out.
// An Engine is safe for concurrent use; each call owns its own accumulator.
type Engine struct {
	retriever  Retriever
	sampler    Sampler
	topK       int
	multiplier int
	maxCount   int
	prompt     *template.Template
	closers    []func()
}

// NewEngine creates an engine over the given retriever and sampler.
func NewEngine(retriever Retriever, sampler Sampler, cfg EngineConfig) *Engine {
	topK := cfg.TopK
	if topK < 0 {
		topK = 0
	}
	multiplier := cfg.AttemptMultiplier
	if multiplier <= 0 {
		multiplier = DefaultAttemptMultiplier
	}
	maxCount := cfg.MaxQuestions
	if maxCount <= 0 {
		maxCount = DefaultMaxQuestions
	}
	return &Engine{
		retriever:  retriever,
		sampler:    sampler,
		topK:       topK,
		multiplier: multiplier,
		maxCount:   maxCount,
		prompt:     parsePrompt(cfg.PromptTemplate),
	}
}

// Close releases resources held by the engine.
func (e *Engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// Result is the outcome of one generation request.
type Result struct {
	Questions []string
	Documents []index.Document
	Prompt    string
	Attempts  int
}

// Generate returns up to count unique, well-formed questions for description.
// Returning fewer than count is not an error.
func (e *Engine) Generate(ctx context.Context, description string, count int) ([]string, error) {
	res, err := e.GenerateVerbose(ctx, description, count)
	if err != nil {
		return nil, err
	}
	return res.Questions, nil
}

// GenerateVerbose is Generate that also reports the retrieved documents,
// the rendered prompt and the number of sampling rounds.
func (e *Engine) GenerateVerbose(ctx context.Context, description string, count int) (*Result, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: job description cannot be empty", ErrInvalidInput)
	}
	if count < 1 {
		return nil, fmt.Errorf("%w: number of questions must be at least 1", ErrInvalidInput)
	}
	if count > e.maxCount {
		return nil, fmt.Errorf("%w: number of questions must be at most %d", ErrInvalidInput, e.maxCount)
	}

	docs, err := e.retriever.Retrieve(ctx, description, e.topK)
	if err != nil {
		return nil, &GenerationError{Op: "retrieve", Err: err}
	}

	prompt := renderPrompt(e.prompt, PromptData{
		NumQuestions:   count,
		Context:        joinContext(docs),
		JobDescription: description,
	})
	slog.Debug("prompt", "documents", len(docs), "prompt", prompt)

	maxAttempts := count * e.multiplier
	accepted := []string{}
	attempts := 0
	for len(accepted) < count && attempts < maxAttempts {
		candidates, err := e.sampler.Sample(ctx, prompt, count)
		if err != nil {
			return nil, &GenerationError{Op: "sample", Err: err}
		}
		for _, c := range candidates {
			if IsWellFormed(c) {
				accepted = append(accepted, c)
			}
		}
		accepted = Deduplicate(accepted)
		attempts++
	}

	if len(accepted) < count {
		slog.Warn("generated fewer questions than requested",
			"requested", count,
			"accepted", len(accepted),
			"attempts", attempts,
		)
	}
	if len(accepted) > count {
		accepted = accepted[:count]
	}

	return &Result{
		Questions: accepted,
		Documents: docs,
		Prompt:    prompt,
		Attempts:  attempts,
	}, nil
}
