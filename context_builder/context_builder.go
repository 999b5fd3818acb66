package context_builder

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/meysamhadeli/codelve/budget"
	analyzer_models "github.com/meysamhadeli/codelve/code_analyzer/models"
	"github.com/meysamhadeli/codelve/context_builder/contracts"
	"github.com/meysamhadeli/codelve/context_builder/models"
	"github.com/meysamhadeli/codelve/utils"
)

// ErrNilIndex is returned by Initialize when there is no scan result to install.
var ErrNilIndex = errors.New("indexed code is nil")

const (
	historyHeader      = "### Conversation History ###\n"
	currentQueryHeader = "### Current Query ###\n"
	relevantCodeHeader = "### Relevant Code ###\n"
)

// minTermLength is the length a query word must exceed to count as a search term.
const minTermLength = 3

// snapshot is an immutable copy of the indexed files and symbols.
type snapshot struct {
	files       map[string]string
	symbols     map[string][]string
	symbolNames []string
	filePaths   []string
}

var emptySnapshot = &snapshot{
	files:   map[string]string{},
	symbols: map[string][]string{},
}

// ContextBuilder ranks indexed files against queries and renders the context
// handed to the model. Snapshot reads are lock-free; history is guarded by a mutex.
type ContextBuilder struct {
	budget        *budget.Budget
	assistantName string
	logger        *slog.Logger

	snap        atomic.Pointer[snapshot]
	truncations atomic.Int64

	historyMu sync.Mutex
	history   []models.ConversationEntry
}

// NewContextBuilder creates a builder with an empty index. assistantName labels
// the model's turns in the rendered history.
func NewContextBuilder(b *budget.Budget, assistantName string, logger *slog.Logger) contracts.IContextBuilder {
	if b == nil {
		b = budget.Default()
	}
	if assistantName == "" {
		assistantName = "CodeLve"
	}
	cb := &ContextBuilder{
		budget:        b,
		assistantName: assistantName,
		logger:        utils.LoggerOrDiscard(logger),
	}
	cb.snap.Store(emptySnapshot)
	return cb
}

// Initialize replaces the current snapshot with a copy of indexed. On failure
// the previous snapshot stays in place.
func (cb *ContextBuilder) Initialize(indexed *analyzer_models.IndexedCode) error {
	if indexed == nil {
		cb.logger.Error("Failed to initialize context with indexed code", "error", ErrNilIndex)
		return ErrNilIndex
	}

	next := &snapshot{
		files:   make(map[string]string, len(indexed.Files)),
		symbols: make(map[string][]string, len(indexed.Symbols)),
	}
	for path, content := range indexed.Files {
		next.files[path] = content
		next.filePaths = append(next.filePaths, path)
	}
	for name, paths := range indexed.Symbols {
		if len(paths) == 0 {
			continue
		}
		next.symbols[name] = append([]string(nil), paths...)
		next.symbolNames = append(next.symbolNames, name)
	}
	sort.Strings(next.filePaths)
	sort.Strings(next.symbolNames)

	cb.snap.Store(next)
	cb.logger.Info("Initialized context", "files", len(next.files), "symbols", len(next.symbols))
	return nil
}

// BuildContext renders history, the query and the relevant files, cut to the
// budget's character limit.
func (cb *ContextBuilder) BuildContext(query string) string {
	snap := cb.snap.Load()

	var sb strings.Builder

	if history := cb.GetConversationHistory(); history != "" {
		sb.WriteString(historyHeader)
		sb.WriteString(history)
		sb.WriteString("\n")
	}

	sb.WriteString(currentQueryHeader)
	sb.WriteString(query)
	sb.WriteString("\n\n")

	sb.WriteString(relevantCodeHeader)
	for _, path := range relevantFiles(snap, query, cb.budget.MaxRelevantFiles) {
		content, ok := snap.files[path]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "File: %s\n```\n%s\n```\n\n", path, content)
	}

	result := sb.String()
	limit := cb.budget.ContextCharLimit()
	if runes := []rune(result); len(runes) > limit {
		result = string(runes[:limit])
		cb.truncations.Add(1)
		cb.logger.Warn("Context truncated to fit token limit", "limit_chars", limit, "original_chars", len(runes))
	}

	cb.logger.Debug("Built context", "chars", len([]rune(result)))
	return result
}

// GetRelevantFiles returns up to maxFiles paths: files defining matching symbols
// first, then files whose base name contains a query term.
func (cb *ContextBuilder) GetRelevantFiles(query string, maxFiles int) []string {
	return relevantFiles(cb.snap.Load(), query, maxFiles)
}

// FindRelevantSymbols returns, in name order, every symbol whose lowercased name
// contains a query term or equals a query word.
func (cb *ContextBuilder) FindRelevantSymbols(query string) []string {
	return relevantSymbols(cb.snap.Load(), query)
}

// GetFile returns the indexed content of filePath, or "" when it is not indexed.
func (cb *ContextBuilder) GetFile(filePath string) string {
	return cb.snap.Load().files[filePath]
}

// FormatCodeSnippet returns lines startLine..endLine (0-based, inclusive) of an
// indexed file joined by newlines. Out-of-range bounds are clamped.
func (cb *ContextBuilder) FormatCodeSnippet(filePath string, startLine int, endLine int) string {
	lines := splitLines(cb.GetFile(filePath))
	if len(lines) == 0 {
		return ""
	}

	if startLine < 0 {
		startLine = 0
	}
	if endLine > len(lines)-1 {
		endLine = len(lines) - 1
	}
	if startLine > endLine {
		return ""
	}
	return strings.Join(lines[startLine:endLine+1], "\n")
}

// AddToHistory appends an exchange, evicting the oldest once the capacity is exceeded.
func (cb *ContextBuilder) AddToHistory(query string, response string) {
	cb.historyMu.Lock()
	defer cb.historyMu.Unlock()

	cb.history = append(cb.history, models.ConversationEntry{Query: query, Response: response})
	if limit := cb.budget.MaxHistoryEntries; limit >= 0 && len(cb.history) > limit {
		cb.history = append([]models.ConversationEntry(nil), cb.history[len(cb.history)-limit:]...)
	}
}

// GetConversationHistory renders the history oldest first.
func (cb *ContextBuilder) GetConversationHistory() string {
	cb.historyMu.Lock()
	defer cb.historyMu.Unlock()

	var sb strings.Builder
	for _, entry := range cb.history {
		fmt.Fprintf(&sb, "User: %s\n%s: %s\n\n", entry.Query, cb.assistantName, entry.Response)
	}
	return sb.String()
}

// History returns a copy of the stored exchanges, oldest first.
func (cb *ContextBuilder) History() []models.ConversationEntry {
	cb.historyMu.Lock()
	defer cb.historyMu.Unlock()
	return append([]models.ConversationEntry(nil), cb.history...)
}

func (cb *ContextBuilder) ClearHistory() {
	cb.historyMu.Lock()
	cb.history = nil
	cb.historyMu.Unlock()

	cb.logger.Info("Conversation history cleared")
}

func (cb *ContextBuilder) Stats() models.Stats {
	snap := cb.snap.Load()

	cb.historyMu.Lock()
	entries := len(cb.history)
	cb.historyMu.Unlock()

	return models.Stats{
		Files:          len(snap.files),
		Symbols:        len(snap.symbols),
		HistoryEntries: entries,
		Truncations:    cb.truncations.Load(),
	}
}

func relevantFiles(snap *snapshot, query string, maxFiles int) []string {
	if maxFiles <= 0 {
		return nil
	}

	var result []string
	selected := make(map[string]struct{})

	for _, name := range relevantSymbols(snap, query) {
		path := snap.symbols[name][0]
		if _, dup := selected[path]; dup {
			continue
		}
		selected[path] = struct{}{}
		result = append(result, path)
		if len(result) >= maxFiles {
			return result
		}
	}

	terms := queryTerms(query)
	if len(terms) == 0 {
		return result
	}

	for _, path := range snap.filePaths {
		if _, dup := selected[path]; dup {
			continue
		}
		base := strings.ToLower(filepath.Base(path))
		if containsAny(base, terms) {
			result = append(result, path)
			if len(result) >= maxFiles {
				break
			}
		}
	}
	return result
}

func relevantSymbols(snap *snapshot, query string) []string {
	terms := queryTerms(query)
	words := queryWords(query)
	if len(terms) == 0 && len(words) == 0 {
		return nil
	}

	var result []string
	for _, name := range snap.symbolNames {
		lower := strings.ToLower(name)
		if _, exact := words[lower]; exact || containsAny(lower, terms) {
			result = append(result, name)
		}
	}
	return result
}

// queryTerms returns the lowercased whitespace-separated words longer than minTermLength.
func queryTerms(query string) []string {
	var terms []string
	for _, field := range strings.Fields(query) {
		if len([]rune(field)) > minTermLength {
			terms = append(terms, strings.ToLower(field))
		}
	}
	return terms
}

// queryWords returns every query word, lowercased and stripped of surrounding punctuation.
func queryWords(query string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, field := range strings.Fields(query) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
		})
		if word != "" {
			words[strings.ToLower(word)] = struct{}{}
		}
	}
	return words
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

// splitLines splits like a line reader: a trailing newline does not start a new line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
