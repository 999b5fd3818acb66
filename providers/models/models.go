package models

import (
	"errors"

	"github.com/meysamhadeli/codelve/config"
)

// StreamResponse is one piece of a streamed completion. Done marks the final piece.
type StreamResponse struct {
	Content string
	Done    bool
	Err     error
}

// InferenceParams are the sampling parameters for a single completion.
type InferenceParams struct {
	Temperature      float64
	MaxTokens        int
	TopP             float64
	PresencePenalty  float64
	FrequencyPenalty float64
	StopSequences    []string
	Stream           bool
}

// DefaultInferenceParams mirrors the configuration defaults.
func DefaultInferenceParams() InferenceParams {
	return InferenceParams{
		Temperature: 0.7,
		MaxTokens:   1024,
		TopP:        0.95,
	}
}

// ParamsFromConfig reads the llm.* keys, falling back to the defaults.
func ParamsFromConfig(store config.Store) InferenceParams {
	def := DefaultInferenceParams()
	return InferenceParams{
		Temperature:      store.GetFloat(config.KeyTemperature, def.Temperature),
		MaxTokens:        store.GetInt(config.KeyMaxTokens, def.MaxTokens),
		TopP:             store.GetFloat(config.KeyTopP, def.TopP),
		PresencePenalty:  store.GetFloat(config.KeyPresencePenalty, 0),
		FrequencyPenalty: store.GetFloat(config.KeyFrequencyPenalty, 0),
		StopSequences:    config.ParseList(store.GetString(config.KeyStopSequences, ""), false),
		Stream:           store.GetBool(config.KeyStream, false),
	}
}

// AIError is the error body returned by HTTP backends.
type AIError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ErrNotInitialized is returned when inference is requested before Initialize succeeded.
var ErrNotInitialized = errors.New("inference backend is not initialized")
