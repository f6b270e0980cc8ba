package generate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Paranoid-AF/qgen/index"
)

// staticRetriever returns a fixed document list.
type staticRetriever struct {
	docs  []index.Document
	err   error
	calls int
	k     int
	query string
}

func (s *staticRetriever) Retrieve(_ context.Context, query string, k int) ([]index.Document, error) {
	s.calls++
	s.k = k
	s.query = query
	if s.err != nil {
		return nil, s.err
	}
	if k < len(s.docs) {
		return s.docs[:k], nil
	}
	return s.docs, nil
}

// scriptedSampler returns successive rounds from script, repeating the last one.
type scriptedSampler struct {
	mu      sync.Mutex
	script  [][]string
	err     error
	errAt   int // 1-based call that fails; 0 means every call when err is set
	calls   int
	prompts []string
	ns      []int
}

func (s *scriptedSampler) Sample(_ context.Context, prompt string, n int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.prompts = append(s.prompts, prompt)
	s.ns = append(s.ns, n)
	if s.err != nil && (s.errAt == 0 || s.errAt == s.calls) {
		return nil, s.err
	}
	if len(s.script) == 0 {
		return nil, nil
	}
	i := min(s.calls-1, len(s.script)-1)
	return s.script[i], nil
}

// uniqueSampler returns n fresh questions per call.
type uniqueSampler struct {
	mu    sync.Mutex
	next  int
	calls int
}

func (u *uniqueSampler) Sample(_ context.Context, _ string, n int) ([]string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	out := make([]string, n)
	for i := range out {
		u.next++
		out[i] = fmt.Sprintf("What is concept %d?", u.next)
	}
	return out, nil
}

func testKnowledge() []index.Document {
	return []index.Document{
		index.RenderDocument("Go backend developer", "What is a goroutine?,Explain channels"),
		index.RenderDocument("Python data engineer", "What is a DAG?"),
		index.RenderDocument("SRE", "What is an SLO?"),
	}
}

func TestGenerateExactCount(t *testing.T) {
	sampler := &uniqueSampler{}
	e := NewEngine(&staticRetriever{docs: testKnowledge()}, sampler, EngineConfig{TopK: 2, AttemptMultiplier: 3})

	got, err := e.Generate(context.Background(), "Go developer", 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"What is concept 1?", "What is concept 2?", "What is concept 3?"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("questions mismatch (-want +got):\n%s", diff)
	}
	if sampler.calls != 1 {
		t.Errorf("expected 1 sampling round, got %d", sampler.calls)
	}
}

func TestGenerateEmptyDescription(t *testing.T) {
	for _, desc := range []string{"", "   ", "\n\t"} {
		retriever := &staticRetriever{docs: testKnowledge()}
		sampler := &uniqueSampler{}
		e := NewEngine(retriever, sampler, EngineConfig{TopK: 2})

		_, err := e.Generate(context.Background(), desc, 3)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Generate(%q): expected ErrInvalidInput, got %v", desc, err)
		}
		if errors.Is(err, ErrGeneration) {
			t.Errorf("Generate(%q): input error must not match ErrGeneration", desc)
		}
		if sampler.calls != 0 || retriever.calls != 0 {
			t.Errorf("Generate(%q): expected no retrieval or sampling, got %d/%d", desc, retriever.calls, sampler.calls)
		}
	}
}

func TestGenerateNonPositiveCount(t *testing.T) {
	for _, n := range []int{0, -1} {
		sampler := &uniqueSampler{}
		e := NewEngine(&staticRetriever{}, sampler, EngineConfig{})
		if _, err := e.Generate(context.Background(), "Go developer", n); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("count %d: expected ErrInvalidInput, got %v", n, err)
		}
		if sampler.calls != 0 {
			t.Errorf("count %d: expected no sampling, got %d calls", n, sampler.calls)
		}
	}
}

func TestGenerateCountAboveLimit(t *testing.T) {
	tests := []struct {
		name  string
		max   int
		count int
	}{
		{"default limit", 0, DefaultMaxQuestions + 1},
		{"configured limit", 5, 6},
		{"overflowing budget", 0, math.MaxInt/DefaultAttemptMultiplier + 1},
		{"max int", 0, math.MaxInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sampler := &uniqueSampler{}
			retriever := &staticRetriever{}
			e := NewEngine(retriever, sampler, EngineConfig{MaxQuestions: tt.max})
			_, err := e.Generate(context.Background(), "Go developer", tt.count)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if sampler.calls != 0 || retriever.calls != 0 {
				t.Errorf("expected no retrieval or sampling, got %d/%d", retriever.calls, sampler.calls)
			}
		})
	}

	e := NewEngine(&staticRetriever{}, &uniqueSampler{}, EngineConfig{MaxQuestions: 5})
	got, err := e.Generate(context.Background(), "Go developer", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Errorf("expected 5 questions at the limit, got %d", len(got))
	}
}

func TestGenerateMalformedShortfall(t *testing.T) {
	sampler := &scriptedSampler{script: [][]string{{
		"What is the difference between TCP and TCP?",
		"What is the difference between TCP, UDP, and IP?",
		"Explain the difference between REST?",
	}}}
	e := NewEngine(&staticRetriever{docs: testKnowledge()}, sampler, EngineConfig{TopK: 2, AttemptMultiplier: 3})

	res, err := e.GenerateVerbose(context.Background(), "Network engineer", 3)
	if err != nil {
		t.Fatalf("shortfall must not be an error: %v", err)
	}
	if len(res.Questions) != 0 {
		t.Errorf("expected no questions, got %v", res.Questions)
	}
	if sampler.calls != 9 || res.Attempts != 9 {
		t.Errorf("expected exactly 9 attempts, got calls=%d attempts=%d", sampler.calls, res.Attempts)
	}
	if res.Questions == nil {
		t.Error("expected empty, non-nil question list")
	}
}

func TestGenerateAccumulatesAcrossRounds(t *testing.T) {
	sampler := &scriptedSampler{script: [][]string{
		{"What is REST?", "what is rest? ", "What is the difference between A and A?"},
		{"What is REST?", "What is gRPC?", "What is the difference between REST and gRPC?"},
	}}
	e := NewEngine(&staticRetriever{}, sampler, EngineConfig{TopK: 2, AttemptMultiplier: 3})

	got, err := e.Generate(context.Background(), "API designer", 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"What is REST?", "What is gRPC?", "What is the difference between REST and gRPC?"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("questions mismatch (-want +got):\n%s", diff)
	}
	if sampler.calls != 2 {
		t.Errorf("expected 2 rounds, got %d", sampler.calls)
	}
}

func TestGenerateTruncatesToCount(t *testing.T) {
	sampler := &scriptedSampler{script: [][]string{
		{"Q1?", "Q2?"},
		{"Q3?", "Q4?"},
	}}
	e := NewEngine(&staticRetriever{}, sampler, EngineConfig{AttemptMultiplier: 3})

	got, err := e.Generate(context.Background(), "anything", 3)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Q1?", "Q2?", "Q3?"}, got); diff != "" {
		t.Errorf("questions mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateSamplerErrorAborts(t *testing.T) {
	boom := errors.New("inference server down")
	sampler := &scriptedSampler{
		script: [][]string{{"What is a goroutine?"}},
		err:    boom,
		errAt:  2,
	}
	e := NewEngine(&staticRetriever{}, sampler, EngineConfig{AttemptMultiplier: 3})

	got, err := e.Generate(context.Background(), "Go developer", 3)
	if got != nil {
		t.Errorf("expected partial results to be discarded, got %v", got)
	}
	if !errors.Is(err, ErrGeneration) || !errors.Is(err, boom) {
		t.Fatalf("expected generation error wrapping cause, got %v", err)
	}
	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.Op != "sample" {
		t.Errorf("expected sample GenerationError, got %#v", err)
	}
	if sampler.calls != 2 {
		t.Errorf("expected abort on the failing round, got %d calls", sampler.calls)
	}
}

func TestGenerateRetrieverErrorAborts(t *testing.T) {
	sampler := &uniqueSampler{}
	e := NewEngine(&staticRetriever{err: errors.New("embedding API error")}, sampler, EngineConfig{TopK: 2})

	_, err := e.Generate(context.Background(), "Go developer", 3)
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if sampler.calls != 0 {
		t.Errorf("expected no sampling after retrieval failure, got %d", sampler.calls)
	}
}

func TestGeneratePromptAndContext(t *testing.T) {
	retriever := &staticRetriever{docs: testKnowledge()}
	sampler := &uniqueSampler{}
	e := NewEngine(retriever, sampler, EngineConfig{TopK: 2})

	res, err := e.GenerateVerbose(context.Background(), "  Go developer  ", 2)
	if err != nil {
		t.Fatal(err)
	}
	if retriever.k != 2 || retriever.query != "Go developer" {
		t.Errorf("unexpected retrieval k=%d query=%q", retriever.k, retriever.query)
	}
	if len(res.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(res.Documents))
	}

	want := "Given the following context and job description, generate 2 specific technical interview questions:\n" +
		"Context: Job Description: Go backend developer\nQuestions: What is a goroutine?, Explain channels\n" +
		"Job Description: Python data engineer\nQuestions: What is a DAG?\n" +
		"Job Description: Go developer"
	if res.Prompt != want {
		t.Errorf("unexpected prompt:\n%s\nwant:\n%s", res.Prompt, want)
	}
}

func TestGenerateSamePromptEveryRound(t *testing.T) {
	sampler := &scriptedSampler{script: [][]string{{"What is the difference between X and X?"}}}
	e := NewEngine(&staticRetriever{docs: testKnowledge()}, sampler, EngineConfig{TopK: 1, AttemptMultiplier: 2})

	if _, err := e.Generate(context.Background(), "SRE", 2); err != nil {
		t.Fatal(err)
	}
	if len(sampler.prompts) != 4 {
		t.Fatalf("expected 4 rounds, got %d", len(sampler.prompts))
	}
	for i, p := range sampler.prompts {
		if p != sampler.prompts[0] {
			t.Errorf("round %d used a different prompt", i)
		}
		if sampler.ns[i] != 2 {
			t.Errorf("round %d requested %d samples, want 2", i, sampler.ns[i])
		}
	}
}

func TestGenerateCustomPrompt(t *testing.T) {
	sampler := &scriptedSampler{script: [][]string{{"Q?"}}}
	e := NewEngine(&staticRetriever{}, sampler, EngineConfig{
		PromptTemplate: "{{.NumQuestions}} for {{.JobDescription}}\n",
	})
	res, err := e.GenerateVerbose(context.Background(), "DBA", 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Prompt != "1 for DBA" {
		t.Errorf("unexpected prompt %q", res.Prompt)
	}
}

func TestGenerateInvalidPromptFallsBack(t *testing.T) {
	sampler := &scriptedSampler{script: [][]string{{"Q?"}}}
	e := NewEngine(&staticRetriever{}, sampler, EngineConfig{PromptTemplate: "{{.Broken"})
	res, err := e.GenerateVerbose(context.Background(), "DBA", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.Prompt, "Given the following context and job description, generate 1 ") {
		t.Errorf("expected default prompt, got %q", res.Prompt)
	}
}

func TestGenerateUnknownFieldFallsBack(t *testing.T) {
	sampler := &scriptedSampler{script: [][]string{{"Q?"}}}
	e := NewEngine(&staticRetriever{}, sampler, EngineConfig{PromptTemplate: "{{.Missing}}"})
	res, err := e.GenerateVerbose(context.Background(), "DBA", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(res.Prompt, "Job Description: DBA") {
		t.Errorf("expected default prompt, got %q", res.Prompt)
	}
}

func TestGenerateConcurrentRequests(t *testing.T) {
	e := NewEngine(&staticRetrieverSafe{docs: testKnowledge()}, &uniqueSampler{}, EngineConfig{TopK: 2})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.Generate(context.Background(), "Go developer", 3)
			if err != nil {
				errs <- err
				return
			}
			if len(got) != 3 {
				errs <- fmt.Errorf("expected 3 questions, got %d", len(got))
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

// staticRetrieverSafe is a read-only retriever for concurrent tests.
type staticRetrieverSafe struct{ docs []index.Document }

func (s *staticRetrieverSafe) Retrieve(_ context.Context, _ string, k int) ([]index.Document, error) {
	return s.docs[:min(k, len(s.docs))], nil
}

func TestEngineCloseRunsClosers(t *testing.T) {
	var order []string
	e := NewEngine(&staticRetriever{}, &uniqueSampler{}, EngineConfig{})
	e.closers = append(e.closers, func() { order = append(order, "first") }, func() { order = append(order, "second") })
	e.Close()
	e.Close()
	if diff := cmp.Diff([]string{"second", "first"}, order); diff != "" {
		t.Errorf("close order mismatch (-want +got):\n%s", diff)
	}
}
