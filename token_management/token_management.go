package token_management

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/meysamhadeli/codelve/constants/lipgloss"
	"github.com/meysamhadeli/codelve/token_management/contracts"
)

// CharsPerToken is the rough character-to-token ratio used for estimates.
const CharsPerToken = 4

// TokenManager implementation
type tokenManager struct {
	mu              sync.Mutex
	out             io.Writer
	usedToken       int
	usedInputToken  int
	usedOutputToken int
}

// NewTokenManager creates a new token manager that prints to stdout.
func NewTokenManager() contracts.ITokenManagement {
	return NewTokenManagerWithWriter(os.Stdout)
}

// NewTokenManagerWithWriter creates a token manager that prints usage boxes to out.
func NewTokenManagerWithWriter(out io.Writer) contracts.ITokenManagement {
	if out == nil {
		out = io.Discard
	}
	return &tokenManager{out: out}
}

// UsedTokens accumulates the token count for the session.
func (tm *tokenManager) UsedTokens(inputToken int, outputToken int) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.usedInputToken += inputToken
	tm.usedOutputToken += outputToken
	tm.usedToken += inputToken + outputToken
}

// CountTokens estimates the token count of text.
func (tm *tokenManager) CountTokens(text string) int {
	return len(text) / CharsPerToken
}

func (tm *tokenManager) DisplayTokens(providerName string, model string) {
	total, input, output := tm.GetCurrentTokenUsage()

	tokenInfo := fmt.Sprintf("Token Used: %d (input %d / output %d) - Provider: %s - Model: %s",
		total, input, output, providerName, model)

	tokenBox := lipgloss.BoxStyle.Render(tokenInfo)
	fmt.Fprintln(tm.out, tokenBox)
}

func (tm *tokenManager) GetCurrentTokenUsage() (total int, input int, output int) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.usedToken, tm.usedInputToken, tm.usedOutputToken
}

func (tm *tokenManager) ClearToken() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.usedToken = 0
	tm.usedInputToken = 0
	tm.usedOutputToken = 0
}
