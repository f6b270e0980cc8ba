package index

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type embeddingsCall struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

// newEmbeddingsServer fakes an OpenAI-compatible /embeddings endpoint.
// Each input gets the vector [len(input), index]; items are returned in reverse order.
func newEmbeddingsServer(t *testing.T, calls *[]embeddingsCall) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var call embeddingsCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		*calls = append(*calls, call)

		type item struct {
			Object    string    `json:"object"`
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]item, 0, len(call.Input))
		for i := len(call.Input) - 1; i >= 0; i-- {
			data = append(data, item{
				Object:    "embedding",
				Index:     i,
				Embedding: []float32{float32(len(call.Input[i])), float32(i)},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  call.Model,
			"data":   data,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIEmbedderModel(t *testing.T) {
	e := NewAPIEmbedder("http://localhost:8080/v1", "test-key", "test-model", 0)
	if e.Model() != "test-model" {
		t.Errorf("expected model test-model, got %s", e.Model())
	}
}

func TestEmbedBatchEmpty(t *testing.T) {
	e := NewAPIEmbedder("http://localhost:8080/v1", "test-key", "test-model", 0)
	result, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error for empty batch: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil for empty batch, got %v", result)
	}
}

func TestEmbedBatchOrdersByIndex(t *testing.T) {
	var calls []embeddingsCall
	srv := newEmbeddingsServer(t, &calls)
	e := NewAPIEmbedder(srv.URL+"/v1", "", "all-MiniLM-L6-v2", 0)

	vectors, err := e.EmbedBatch(context.Background(), []string{"a", "bbb", "cc"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	for i, want := range []float32{1, 3, 2} {
		if vectors[i][0] != want || vectors[i][1] != float32(i) {
			t.Errorf("vector %d = %v, want [%v %d]", i, vectors[i], want, i)
		}
	}
	if len(calls) != 1 || calls[0].Model != "all-MiniLM-L6-v2" {
		t.Errorf("unexpected calls %+v", calls)
	}
}

func TestEmbedSendsDimensions(t *testing.T) {
	var calls []embeddingsCall
	srv := newEmbeddingsServer(t, &calls)
	e := NewAPIEmbedder(srv.URL+"/v1", "key", "m", 384)

	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if vec[0] != 5 {
		t.Errorf("unexpected vector %v", vec)
	}
	if len(calls) != 1 || calls[0].Dimensions != 384 {
		t.Errorf("expected dimensions 384, got %+v", calls)
	}
}

func TestEmbedAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	e := NewAPIEmbedder(srv.URL+"/v1", "key", "m", 0)
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error from failing embedding API")
	}
}
