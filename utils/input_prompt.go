package utils

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/meysamhadeli/codelve/constants/lipgloss"
)

// ErrInputClosed is returned once the input stream reaches EOF.
var ErrInputClosed = errors.New("input closed")

type promptResult struct {
	input string
	err   error
}

// InputPromptWithContext prompts the user for a query with context cancellation support.
func InputPromptWithContext(ctx context.Context, out io.Writer, reader *bufio.Reader) (string, error) {
	resultChan := make(chan promptResult, 1)

	go func() {
		fmt.Fprint(out, lipgloss.BlueSky.Render("You > "))

		userInput, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && strings.TrimSpace(userInput) == "" {
				resultChan <- promptResult{err: ErrInputClosed}
				return
			}
			if err != io.EOF {
				resultChan <- promptResult{err: fmt.Errorf("error reading input: %w", err)}
				return
			}
		}
		resultChan <- promptResult{input: strings.TrimSpace(userInput)}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(out)
		return "", ctx.Err()
	case res := <-resultChan:
		return res.input, res.err
	}
}
