package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
)

// MarkdownRenderer highlights model answers line by line. It tracks fenced
// code blocks across calls so streamed chunks render consistently.
type MarkdownRenderer struct {
	out         io.Writer
	language    string
	theme       string
	isCodeBlock bool
	pending     string
}

// NewMarkdownRenderer creates a renderer writing highlighted markdown to out.
func NewMarkdownRenderer(out io.Writer, theme string) *MarkdownRenderer {
	return &MarkdownRenderer{out: out, language: "markdown", theme: theme}
}

// RenderLine renders a single line. The line is expected to carry its own newline.
func (r *MarkdownRenderer) RenderLine(line string) error {
	if strings.HasPrefix(line, "```") {
		r.isCodeBlock = !r.isCodeBlock
	}

	switch {
	case strings.HasPrefix(line, "+") && r.isCodeBlock:
		_, err := fmt.Fprint(r.out, "\x1b[92m"+line+"\x1b[0m")
		return err
	case strings.HasPrefix(line, "-") && r.isCodeBlock:
		_, err := fmt.Fprint(r.out, "\x1b[91m"+line+"\x1b[0m")
		return err
	default:
		var buf bytes.Buffer
		if err := quick.Highlight(&buf, line, r.language, "terminal256", r.theme); err != nil {
			return err
		}
		_, err := r.out.Write(buf.Bytes())
		return err
	}
}

// WriteChunk buffers streamed text and renders every completed line.
func (r *MarkdownRenderer) WriteChunk(chunk string) error {
	r.pending += chunk
	for {
		idx := strings.IndexByte(r.pending, '\n')
		if idx < 0 {
			return nil
		}
		line := r.pending[:idx+1]
		r.pending = r.pending[idx+1:]
		if err := r.RenderLine(line); err != nil {
			return err
		}
	}
}

// Flush renders any buffered partial line and resets the code-block state.
func (r *MarkdownRenderer) Flush() error {
	defer func() { r.isCodeBlock = false }()
	if r.pending == "" {
		return nil
	}
	line := r.pending
	r.pending = ""
	return r.RenderLine(line + "\n")
}

// Render renders a complete answer, stopping early when ctx is cancelled.
func (r *MarkdownRenderer) Render(ctx context.Context, content string) error {
	lines := strings.Split(content, "\n")

	for i, line := range lines {
		if i%5 == 0 {
			select {
			case <-ctx.Done():
				fmt.Fprintf(r.out, "\n\n🔄 Output interrupted...\n")
				return ctx.Err()
			default:
			}
		}

		if err := r.RenderLine(line + "\n"); err != nil {
			return err
		}
	}

	r.isCodeBlock = false
	return nil
}
