package stub

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/meysamhadeli/codelve/providers/contracts"
	"github.com/meysamhadeli/codelve/providers/models"
	"github.com/meysamhadeli/codelve/utils"
)

// promptEchoLength is how much of the prompt the simulated answer repeats.
const promptEchoLength = 50

// StubConfig configures the offline backend.
type StubConfig struct {
	Model string
	// InitializeError, when set, is returned by every Initialize call.
	InitializeError error
	// TokenDelay pauses between streamed tokens.
	TokenDelay time.Duration
	Logger     *slog.Logger
}

type stubProvider struct {
	model       string
	initErr     error
	tokenDelay  time.Duration
	logger      *slog.Logger
	initialized atomic.Bool
}

// NewStubProvider creates a deterministic backend that needs no model server.
func NewStubProvider(config *StubConfig) contracts.IInferenceBackend {
	model := config.Model
	if model == "" {
		model = "simulated"
	}
	return &stubProvider{
		model:      model,
		initErr:    config.InitializeError,
		tokenDelay: config.TokenDelay,
		logger:     utils.LoggerOrDiscard(config.Logger),
	}
}

func (p *stubProvider) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.initErr != nil {
		p.logger.Error("Failed to load language model", "model", p.model, "error", p.initErr)
		return p.initErr
	}
	p.initialized.Store(true)
	p.logger.Info("Language model ready", "provider", "stub", "model", p.model)
	return nil
}

func (p *stubProvider) IsInitialized() bool {
	return p.initialized.Load()
}

func (p *stubProvider) RunInference(ctx context.Context, prompt string, params models.InferenceParams) (string, error) {
	if !p.IsInitialized() {
		return "", models.ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return SimulatedResponse(prompt), nil
}

// RunInferenceStreaming emits the simulated answer one word at a time.
func (p *stubProvider) RunInferenceStreaming(ctx context.Context, prompt string, params models.InferenceParams) <-chan models.StreamResponse {
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

		for _, token := range splitTokens(SimulatedResponse(prompt)) {
			if p.tokenDelay > 0 {
				select {
				case <-time.After(p.tokenDelay):
				case <-ctx.Done():
					return
				}
			}
			if !send(models.StreamResponse{Content: token}) {
				return
			}
		}
		send(models.StreamResponse{Done: true})
	}()

	return responseChan
}

func (p *stubProvider) CountTokens(text string) int {
	return len(text) / 4
}

func (p *stubProvider) ModelInfo() string {
	return "stub/" + p.model
}

func (p *stubProvider) Unload(ctx context.Context) error {
	if p.initialized.Swap(false) {
		p.logger.Info("Language model unloaded", "model", p.model)
	}
	return nil
}

// SimulatedResponse is the fixed answer the stub gives for prompt.
func SimulatedResponse(prompt string) string {
	echo := []rune(prompt)
	if len(echo) > promptEchoLength {
		echo = echo[:promptEchoLength]
	}

	var sb strings.Builder
	sb.WriteString("This is a simulated response from the LLM interface.\n")
	sb.WriteString("Configure llm.provider to get answers from a real model.\n")
	sb.WriteString("The prompt was: ")
	sb.WriteString(string(echo))
	sb.WriteString("...\n")
	return sb.String()
}

// splitTokens cuts s after every space and newline.
func splitTokens(s string) []string {
	var tokens []string
	start := 0
	for i, r := range s {
		if r == ' ' || r == '\n' {
			tokens = append(tokens, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		tokens = append(tokens, s[start:])
	}
	return tokens
}
