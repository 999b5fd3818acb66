package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/meysamhadeli/codelve/providers/contracts"
	"github.com/meysamhadeli/codelve/providers/models"
	ollama_models "github.com/meysamhadeli/codelve/providers/ollama/models"
	token_contracts "github.com/meysamhadeli/codelve/token_management/contracts"
	"github.com/meysamhadeli/codelve/utils"
)

// OllamaConfig configures the Ollama backend.
type OllamaConfig struct {
	BaseURL         string
	Model           string
	Client          *http.Client
	TokenManagement token_contracts.ITokenManagement
	Logger          *slog.Logger
}

const (
	defaultBaseURL = "http://localhost:11434/api"
)

type ollamaProvider struct {
	baseURL     string
	model       string
	client      *http.Client
	tokens      token_contracts.ITokenManagement
	logger      *slog.Logger
	initialized atomic.Bool
}

// NewOllamaProvider creates a backend that talks to an Ollama server.
func NewOllamaProvider(config *OllamaConfig) contracts.IInferenceBackend {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := config.Client
	if client == nil {
		client = &http.Client{}
	}
	return &ollamaProvider{
		baseURL: baseURL,
		model:   config.Model,
		client:  client,
		tokens:  config.TokenManagement,
		logger:  utils.LoggerOrDiscard(config.Logger),
	}
}

// Initialize checks that the server is reachable and serves the configured model.
func (p *ollamaProvider) Initialize(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/tags", nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("error connecting to ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return p.apiError(resp)
	}

	var tags ollama_models.OllamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("error decoding model list: %w", err)
	}

	for _, m := range tags.Models {
		if matchesModel(m.Name, p.model) || matchesModel(m.Model, p.model) {
			p.initialized.Store(true)
			p.logger.Info("Language model ready", "provider", "ollama", "model", p.model)
			return nil
		}
	}
	return fmt.Errorf("model '%s' is not available on %s", p.model, p.baseURL)
}

func (p *ollamaProvider) IsInitialized() bool {
	return p.initialized.Load()
}

// RunInference sends a non-streaming chat request and returns the whole answer.
func (p *ollamaProvider) RunInference(ctx context.Context, prompt string, params models.InferenceParams) (string, error) {
	if !p.IsInitialized() {
		return "", models.ErrNotInitialized
	}

	resp, err := p.postChat(ctx, prompt, params, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var response ollama_models.OllamaChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("error decoding response: %w", err)
	}

	p.recordUsage(response)
	return response.Message.Content, nil
}

// RunInferenceStreaming streams the answer, flushing content at line boundaries.
func (p *ollamaProvider) RunInferenceStreaming(ctx context.Context, prompt string, params models.InferenceParams) <-chan models.StreamResponse {
	responseChan := make(chan models.StreamResponse)

	go func() {
		defer close(responseChan)

		send := func(r models.StreamResponse) bool {
			select {
			case responseChan <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !p.IsInitialized() {
			send(models.StreamResponse{Err: models.ErrNotInitialized})
			return
		}

		resp, err := p.postChat(ctx, prompt, params, true)
		if err != nil {
			send(models.StreamResponse{Err: err})
			return
		}
		defer resp.Body.Close()

		var markdownBuffer strings.Builder
		reader := bufio.NewReader(resp.Body)

		for {
			line, err := reader.ReadString('\n')
			if err != nil && !(errors.Is(err, io.EOF) && strings.TrimSpace(line) != "") {
				if errors.Is(err, io.EOF) {
					send(models.StreamResponse{Err: errors.New("stream ended before completion")})
					return
				}
				send(models.StreamResponse{Err: fmt.Errorf("error reading stream: %w", err)})
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}

			var response ollama_models.OllamaChatCompletionResponse
			if err := json.Unmarshal([]byte(line), &response); err != nil {
				send(models.StreamResponse{Err: fmt.Errorf("error unmarshalling chunk: %w", err)})
				return
			}

			if content := response.Message.Content; content != "" {
				markdownBuffer.WriteString(content)

				if strings.Contains(content, "\n") {
					if !send(models.StreamResponse{Content: markdownBuffer.String()}) {
						return
					}
					markdownBuffer.Reset()
				}
			}

			if response.Done {
				if markdownBuffer.Len() > 0 {
					if !send(models.StreamResponse{Content: markdownBuffer.String()}) {
						return
					}
				}
				p.recordUsage(response)
				send(models.StreamResponse{Done: true})
				return
			}
		}
	}()

	return responseChan
}

func (p *ollamaProvider) CountTokens(text string) int {
	if p.tokens != nil {
		return p.tokens.CountTokens(text)
	}
	return len(text) / 4
}

func (p *ollamaProvider) ModelInfo() string {
	return "ollama/" + p.model
}

// Unload asks the server to evict the model immediately.
func (p *ollamaProvider) Unload(ctx context.Context) error {
	if !p.initialized.Swap(false) {
		return nil
	}

	jsonData, err := json.Marshal(ollama_models.OllamaUnloadRequest{Model: p.model, KeepAlive: 0})
	if err != nil {
		return fmt.Errorf("error marshalling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/generate", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("error unloading model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return p.apiError(resp)
	}
	p.logger.Info("Language model unloaded", "model", p.model)
	return nil
}

func (p *ollamaProvider) postChat(ctx context.Context, prompt string, params models.InferenceParams, stream bool) (*http.Response, error) {
	reqBody := ollama_models.OllamaChatCompletionRequest{
		Model: p.model,
		Messages: []ollama_models.Message{
			{Role: "user", Content: prompt},
		},
		Stream: stream,
		Options: &ollama_models.Options{
			Temperature:      params.Temperature,
			TopP:             params.TopP,
			NumPredict:       params.MaxTokens,
			PresencePenalty:  params.PresencePenalty,
			FrequencyPenalty: params.FrequencyPenalty,
			Stop:             params.StopSequences,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("request canceled: %w", err)
		}
		return nil, fmt.Errorf("error sending request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, p.apiError(resp)
	}
	return resp, nil
}

func (p *ollamaProvider) apiError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var apiError models.AIError
	if err := json.Unmarshal(body, &apiError); err == nil && apiError.Error.Message != "" {
		return fmt.Errorf("API request failed with status code '%d' - %s", resp.StatusCode, apiError.Error.Message)
	}

	// Ollama also reports errors as {"error": "..."}.
	var plain struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &plain); err == nil && plain.Error != "" {
		return fmt.Errorf("API request failed with status code '%d' - %s", resp.StatusCode, plain.Error)
	}
	return fmt.Errorf("API request failed with status code '%d'", resp.StatusCode)
}

func (p *ollamaProvider) recordUsage(response ollama_models.OllamaChatCompletionResponse) {
	if p.tokens == nil || response.PromptEvalCount == 0 {
		return
	}
	p.tokens.UsedTokens(response.PromptEvalCount, response.EvalCount)
	p.logger.Debug("Token usage", "input", response.PromptEvalCount, "output", response.EvalCount)
}

func matchesModel(name, model string) bool {
	return name == model || strings.TrimSuffix(name, ":latest") == model
}
