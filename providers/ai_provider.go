package providers

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/meysamhadeli/codelve/config"
	"github.com/meysamhadeli/codelve/providers/contracts"
	"github.com/meysamhadeli/codelve/providers/models"
	"github.com/meysamhadeli/codelve/providers/ollama"
	"github.com/meysamhadeli/codelve/providers/stub"
	token_contracts "github.com/meysamhadeli/codelve/token_management/contracts"
)

var (
	ErrUnknownProvider = errors.New("unknown inference provider")
	ErrNotInitialized  = models.ErrNotInitialized
)

// ProviderFactory creates the backend named by llm.provider.
func ProviderFactory(store config.Store, tokenManagement token_contracts.ITokenManagement, logger *slog.Logger) (contracts.IInferenceBackend, error) {
	provider := strings.ToLower(strings.TrimSpace(store.GetString(config.KeyProvider, "stub")))
	model := store.GetString(config.KeyModel, "")

	switch provider {
	case "ollama":
		return ollama.NewOllamaProvider(&ollama.OllamaConfig{
			BaseURL:         store.GetString(config.KeyBaseURL, ""),
			Model:           model,
			TokenManagement: tokenManagement,
			Logger:          logger,
		}), nil
	case "stub":
		return stub.NewStubProvider(&stub.StubConfig{
			Model:  model,
			Logger: logger,
		}), nil
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownProvider, provider)
	}
}
