package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrModelNotFound is returned when the model artifact directory does not exist.
var ErrModelNotFound = errors.New("model artifact not found")

// Sampler draws candidate questions from a generative model.
type Sampler interface {
	// Sample returns exactly n independently sampled outputs for prompt.
	Sample(ctx context.Context, prompt string, n int) ([]string, error)
}

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	ModelPath        string // local artifact directory served by the inference server
	Model            string // served model name; defaults to the base name of ModelPath
	BaseURL          string
	APIKey           string
	APIType          string // "completions" or "chat_completions"
	MaxTokens        int
	MaxInputTokens   int
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// Generator samples text from a locally served model through an OpenAI-compatible API.
type Generator struct {
	client    *openai.Client
	model     string
	apiType   string
	cfg       GeneratorConfig
	truncator *PromptTruncator
}

// NewGenerator validates the model artifact and creates a generator for it.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	info, err := os.Stat(cfg.ModelPath)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}

	model := cfg.Model
	if model == "" {
		model = filepath.Base(filepath.Clean(cfg.ModelPath))
	}

	truncator, err := LoadPromptTruncator(cfg.ModelPath, cfg.MaxInputTokens)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	config.HTTPClient = &http.Client{Timeout: 60 * time.Second}

	apiType := cfg.APIType
	if apiType != "chat_completions" {
		apiType = "completions"
	}

	return &Generator{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		apiType:   apiType,
		cfg:       cfg,
		truncator: truncator,
	}, nil
}

// Model returns the served model name.
func (g *Generator) Model() string { return g.model }

// Close is a no-op (the model runs in a separate inference server).
func (g *Generator) Close() {}

// maxSampleCapacity bounds the preallocated result; larger batches grow on append.
const maxSampleCapacity = 64

// Sample requests n choices for prompt. Servers that return fewer choices than
// asked are queried again for the remainder.
func (g *Generator) Sample(ctx context.Context, prompt string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	prompt = g.truncator.Truncate(prompt)

	out := make([]string, 0, min(n, maxSampleCapacity))
	for len(out) < n {
		var (
			texts []string
			err   error
		)
		if g.apiType == "chat_completions" {
			texts, err = g.sampleChat(ctx, prompt, n-len(out))
		} else {
			texts, err = g.sampleCompletions(ctx, prompt, n-len(out))
		}
		if err != nil {
			return nil, err
		}
		if len(texts) == 0 {
			return nil, fmt.Errorf("no choices in response")
		}
		out = append(out, texts...)
	}
	if len(out) > n {
		out = out[:n]
	}
	slog.Debug("sampled candidates", "model", g.model, "count", len(out))
	return out, nil
}

func (g *Generator) sampleCompletions(ctx context.Context, prompt string, n int) ([]string, error) {
	resp, err := g.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:            g.model,
		Prompt:           prompt,
		N:                n,
		MaxTokens:        g.cfg.MaxTokens,
		Temperature:      float32(g.cfg.Temperature),
		TopP:             float32(g.cfg.TopP),
		FrequencyPenalty: float32(g.cfg.FrequencyPenalty),
		PresencePenalty:  float32(g.cfg.PresencePenalty),
	})
	if err != nil {
		return nil, fmt.Errorf("completion API error: %w", err)
	}
	texts := make([]string, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		texts = append(texts, strings.TrimSpace(c.Text))
	}
	return texts, nil
}

func (g *Generator) sampleChat(ctx context.Context, prompt string, n int) ([]string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		N:                n,
		MaxTokens:        g.cfg.MaxTokens,
		Temperature:      float32(g.cfg.Temperature),
		TopP:             float32(g.cfg.TopP),
		FrequencyPenalty: float32(g.cfg.FrequencyPenalty),
		PresencePenalty:  float32(g.cfg.PresencePenalty),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion API error: %w", err)
	}
	texts := make([]string, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		texts = append(texts, strings.TrimSpace(c.Message.Content))
	}
	return texts, nil
}
