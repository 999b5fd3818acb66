package contracts

import (
	"context"

	"github.com/meysamhadeli/codelve/providers/models"
)

// IInferenceBackend is a language model that turns prompts into text.
type IInferenceBackend interface {
	Initialize(ctx context.Context) error
	IsInitialized() bool
	RunInference(ctx context.Context, prompt string, params models.InferenceParams) (string, error)
	// RunInferenceStreaming delivers the completion in pieces. The channel is
	// closed after a Done or Err response.
	RunInferenceStreaming(ctx context.Context, prompt string, params models.InferenceParams) <-chan models.StreamResponse
	CountTokens(text string) int
	ModelInfo() string
	Unload(ctx context.Context) error
}
