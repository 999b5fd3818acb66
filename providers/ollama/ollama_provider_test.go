package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/meysamhadeli/codelve/providers/models"
	ollama_models "github.com/meysamhadeli/codelve/providers/ollama/models"
	"github.com/meysamhadeli/codelve/token_management"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOllama struct {
	mu       sync.Mutex
	requests []ollama_models.OllamaChatCompletionRequest
	unloaded []ollama_models.OllamaUnloadRequest
}

func (f *fakeOllama) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"codellama:latest","model":"codellama:latest"}]}`)
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req ollama_models.OllamaChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		if !req.Stream {
			fmt.Fprint(w, `{"message":{"role":"assistant","content":"full answer"},"done":true,"prompt_eval_count":12,"eval_count":4}`)
			return
		}
		for _, chunk := range []string{"Hello ", "world\n", "second ", "line"} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", chunk)
		}
		fmt.Fprint(w, `{"message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":8,"eval_count":2}`+"\n")
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req ollama_models.OllamaUnloadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.unloaded = append(f.unloaded, req)
		f.mu.Unlock()
		fmt.Fprint(w, `{"done":true}`)
	})
	return mux
}

func newTestProvider(t *testing.T, model string) (*ollamaProvider, *fakeOllama) {
	t.Helper()
	fake := &fakeOllama{}
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	p := NewOllamaProvider(&OllamaConfig{
		BaseURL:         server.URL + "/api/",
		Model:           model,
		TokenManagement: token_management.NewTokenManagerWithWriter(nil),
	}).(*ollamaProvider)
	return p, fake
}

func TestInitialize(t *testing.T) {
	p, _ := newTestProvider(t, "codellama")
	assert.False(t, p.IsInitialized())
	require.NoError(t, p.Initialize(context.Background()))
	assert.True(t, p.IsInitialized())
	assert.Equal(t, "ollama/codellama", p.ModelInfo())
}

func TestInitialize_UnknownModel(t *testing.T) {
	p, _ := newTestProvider(t, "mistral")
	err := p.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral")
	assert.False(t, p.IsInitialized())
}

func TestRunInference_RequiresInitialize(t *testing.T) {
	p, _ := newTestProvider(t, "codellama")
	_, err := p.RunInference(context.Background(), "hi", models.DefaultInferenceParams())
	assert.ErrorIs(t, err, models.ErrNotInitialized)
}

func TestRunInference(t *testing.T) {
	p, fake := newTestProvider(t, "codellama")
	require.NoError(t, p.Initialize(context.Background()))

	params := models.DefaultInferenceParams()
	params.StopSequences = []string{"###"}

	answer, err := p.RunInference(context.Background(), "explain foo", params)
	require.NoError(t, err)
	assert.Equal(t, "full answer", answer)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, "codellama", req.Model)
	assert.False(t, req.Stream)
	assert.Equal(t, []ollama_models.Message{{Role: "user", Content: "explain foo"}}, req.Messages)
	require.NotNil(t, req.Options)
	assert.Equal(t, 0.7, req.Options.Temperature)
	assert.Equal(t, 0.95, req.Options.TopP)
	assert.Equal(t, 1024, req.Options.NumPredict)
	assert.Equal(t, []string{"###"}, req.Options.Stop)

	total, input, output := p.tokens.GetCurrentTokenUsage()
	assert.Equal(t, 16, total)
	assert.Equal(t, 12, input)
	assert.Equal(t, 4, output)
}

func TestRunInferenceStreaming(t *testing.T) {
	p, _ := newTestProvider(t, "codellama")
	require.NoError(t, p.Initialize(context.Background()))

	var chunks []string
	var done int
	for resp := range p.RunInferenceStreaming(context.Background(), "hi", models.DefaultInferenceParams()) {
		require.NoError(t, resp.Err)
		if resp.Done {
			done++
			continue
		}
		chunks = append(chunks, resp.Content)
	}

	assert.Equal(t, []string{"Hello world\n", "second line"}, chunks)
	assert.Equal(t, 1, done)
	assert.Equal(t, "Hello world\nsecond line", strings.Join(chunks, ""))

	total, _, _ := p.tokens.GetCurrentTokenUsage()
	assert.Equal(t, 10, total)
}

func TestRunInference_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tags" {
			fmt.Fprint(w, `{"models":[{"name":"codellama"}]}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"model crashed"}`)
	}))
	defer server.Close()

	p := NewOllamaProvider(&OllamaConfig{BaseURL: server.URL, Model: "codellama"})
	require.NoError(t, p.Initialize(context.Background()))

	_, err := p.RunInference(context.Background(), "hi", models.DefaultInferenceParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model crashed")

	var streamErr error
	for resp := range p.RunInferenceStreaming(context.Background(), "hi", models.DefaultInferenceParams()) {
		streamErr = resp.Err
	}
	require.Error(t, streamErr)
	assert.Contains(t, streamErr.Error(), "500")
}

func TestUnload(t *testing.T) {
	p, fake := newTestProvider(t, "codellama")

	require.NoError(t, p.Unload(context.Background()))
	assert.Empty(t, fake.unloaded, "nothing to unload before initialize")

	require.NoError(t, p.Initialize(context.Background()))
	require.NoError(t, p.Unload(context.Background()))
	assert.False(t, p.IsInitialized())
	require.Len(t, fake.unloaded, 1)
	assert.Equal(t, ollama_models.OllamaUnloadRequest{Model: "codellama", KeepAlive: 0}, fake.unloaded[0])
}

func TestCountTokens(t *testing.T) {
	p, _ := newTestProvider(t, "codellama")
	assert.Equal(t, 3, p.CountTokens("twelve chars"))
}
