package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qgen "github.com/Paranoid-AF/qgen"
	"github.com/Paranoid-AF/qgen/index"
)

// embeddingsHandler fakes /v1/embeddings with keyword-count vectors.
func embeddingsHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data := make([]map[string]any, len(req.Input))
	for i, text := range req.Input {
		lower := strings.ToLower(text)
		data[i] = map[string]any{
			"object":    "embedding",
			"index":     i,
			"embedding": []float32{float32(strings.Count(lower, "go")), float32(strings.Count(lower, "python")), 0.01},
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"object": "list", "model": req.Model, "data": data})
}

func testConfig(t *testing.T, baseURL string) *qgen.Config {
	t.Helper()
	t.Setenv("QGEN_CONFIG_DIR", t.TempDir())
	dir := t.TempDir()

	kb := filepath.Join(dir, "knowledge_base.csv")
	content := "job_description,questions\n" +
		"Go developer,\"What is a goroutine?,What is a channel?\"\n" +
		"Python developer,What is a decorator?\n"
	if err := os.WriteFile(kb, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	modelDir := filepath.Join(dir, "t5_question_gen_model")
	if err := os.Mkdir(modelDir, 0755); err != nil {
		t.Fatal(err)
	}

	cfg := qgen.DefaultConfig()
	cfg.Knowledge.Path = kb
	cfg.Knowledge.CachePath = filepath.Join(dir, "embeddings.json")
	cfg.Embedding.BaseURL = baseURL + "/v1"
	cfg.Generation.BaseURL = baseURL + "/v1"
	cfg.Generation.ModelPath = modelDir
	return cfg
}

func TestNewEngineFromConfig(t *testing.T) {
	fake := &fakeModelServer{perCall: -1}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", embeddingsHandler)
	mux.Handle("/v1/completions", fake)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	e, err := NewEngineFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	res, err := e.GenerateVerbose(context.Background(), "Go developer", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Questions) != 3 {
		t.Errorf("expected 3 questions, got %v", res.Questions)
	}
	if len(res.Documents) != 2 || res.Documents[0].Source != "Go developer" {
		t.Errorf("unexpected retrieved documents %+v", res.Documents)
	}
	if len(fake.calls) != 1 || fake.calls[0].Model != "t5_question_gen_model" {
		t.Errorf("unexpected model calls %+v", fake.calls)
	}
	if _, err := os.Stat(cfg.Knowledge.CachePath); err != nil {
		t.Errorf("expected embedding cache to be written: %v", err)
	}
}

func TestNewEngineFromConfigMissingModel(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Generation.ModelPath = filepath.Join(t.TempDir(), "absent")
	if _, err := NewEngineFromConfig(context.Background(), cfg); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestNewEngineFromConfigMissingKnowledgeBase(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Knowledge.Path = filepath.Join(t.TempDir(), "absent.xlsx")
	if _, err := NewEngineFromConfig(context.Background(), cfg); !errors.Is(err, index.ErrKnowledgeBaseNotFound) {
		t.Fatalf("expected ErrKnowledgeBaseNotFound, got %v", err)
	}
}

func TestNewEngineFromConfigEmbeddingFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	if _, err := NewEngineFromConfig(context.Background(), cfg); err == nil {
		t.Fatal("expected startup error when embeddings fail")
	}
}
