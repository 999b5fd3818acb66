package context_builder

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/meysamhadeli/codelve/budget"
	analyzer_models "github.com/meysamhadeli/codelve/code_analyzer/models"
	"github.com/meysamhadeli/codelve/context_builder/models"
	"github.com/meysamhadeli/codelve/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex() *analyzer_models.IndexedCode {
	ic := analyzer_models.NewIndexedCode("/repo")
	ic.AddFile("/repo/a.py", "def foo():\n    return 1\n", 24)
	ic.AddFile("/repo/b.cpp", "int unrelated() { return 0; }\n", 30)
	ic.AddFile("/repo/scanner_utils.go", "package scanner\n", 16)
	ic.AddSymbols([]analyzer_models.SymbolInfo{
		{Name: "foo", Type: analyzer_models.SymbolFunction, FilePath: "/repo/a.py", LineNumber: 1},
		{Name: "unrelated", Type: analyzer_models.SymbolFunction, FilePath: "/repo/b.cpp", LineNumber: 1},
	})
	return ic
}

func newTestBuilder(t *testing.T, b *budget.Budget) *ContextBuilder {
	t.Helper()
	cb := NewContextBuilder(b, "CodeLve", utils.NewDiscardLogger()).(*ContextBuilder)
	require.NoError(t, cb.Initialize(testIndex()))
	return cb
}

func TestBuildContext_Sections(t *testing.T) {
	cb := newTestBuilder(t, budget.Default())

	ctx := cb.BuildContext("explain the foo function")

	assert.Equal(t, "### Current Query ###\nexplain the foo function\n\n"+
		"### Relevant Code ###\n"+
		"File: /repo/a.py\n```\ndef foo():\n    return 1\n\n```\n\n", ctx)
	assert.NotContains(t, ctx, "### Conversation History ###")
}

func TestBuildContext_IncludesHistory(t *testing.T) {
	cb := newTestBuilder(t, budget.Default())
	cb.AddToHistory("hi", "hello")

	ctx := cb.BuildContext("what is this")

	assert.True(t, strings.HasPrefix(ctx, "### Conversation History ###\nUser: hi\nCodeLve: hello\n\n\n### Current Query ###\n"))
	assert.True(t, strings.HasSuffix(ctx, "### Relevant Code ###\n"))
}

func TestBuildContext_Idempotent(t *testing.T) {
	cb := newTestBuilder(t, budget.Default())
	cb.AddToHistory("q", "r")

	first := cb.BuildContext("explain scanner and foo")
	second := cb.BuildContext("explain scanner and foo")
	assert.Equal(t, first, second)
}

func TestBuildContext_TruncatesToBudget(t *testing.T) {
	var logs bytes.Buffer
	b := budget.Default()
	b.MaxContextSize = 10

	cb := NewContextBuilder(b, "CodeLve", utils.NewLogger(&logs, slog.LevelWarn))
	require.NoError(t, cb.Initialize(testIndex()))

	ctx := cb.BuildContext("explain the foo function")

	assert.Len(t, ctx, 40)
	assert.Equal(t, "### Current Query ###\nexplain the foo fu", ctx)
	assert.Contains(t, logs.String(), "Context truncated to fit token limit")
	assert.Equal(t, int64(1), cb.Stats().Truncations)
}

func TestBuildContext_UnderBudgetNotTruncated(t *testing.T) {
	var logs bytes.Buffer
	cb := NewContextBuilder(budget.Default(), "CodeLve", utils.NewLogger(&logs, slog.LevelWarn))
	require.NoError(t, cb.Initialize(testIndex()))

	cb.BuildContext("explain the foo function")
	assert.Empty(t, logs.String())
}

func TestBuildContext_TruncationCountsRunes(t *testing.T) {
	b := budget.Default()
	b.MaxContextSize = 8
	cb := NewContextBuilder(b, "CodeLve", nil)

	ctx := cb.BuildContext(strings.Repeat("é", 50))
	assert.Equal(t, 32, len([]rune(ctx)))
}

func TestGetRelevantFiles(t *testing.T) {
	cb := newTestBuilder(t, budget.Default())

	assert.Equal(t, []string{"/repo/a.py"}, cb.GetRelevantFiles("explain the foo function", 5))
	assert.Equal(t, []string{"/repo/scanner_utils.go"}, cb.GetRelevantFiles("where is the scanner", 5))
	assert.Equal(t, []string{"/repo/a.py", "/repo/b.cpp", "/repo/scanner_utils.go"},
		cb.GetRelevantFiles("foo unrelated scanner", 5))
	assert.Equal(t, []string{"/repo/a.py"}, cb.GetRelevantFiles("foo unrelated scanner", 1))
	assert.Empty(t, cb.GetRelevantFiles("what is the weather today", 5))
	assert.Empty(t, cb.GetRelevantFiles("foo", 0))
}

func TestGetRelevantFiles_SymbolFileDedup(t *testing.T) {
	ic := analyzer_models.NewIndexedCode("/repo")
	ic.AddFile("/repo/a.py", "def parse_one():\ndef parse_two():\n", 34)
	ic.AddFile("/repo/parser.py", "x = 1\n", 6)
	ic.AddSymbols([]analyzer_models.SymbolInfo{
		{Name: "parse_one", FilePath: "/repo/a.py"},
		{Name: "parse_two", FilePath: "/repo/a.py"},
	})

	cb := NewContextBuilder(budget.Default(), "", nil)
	require.NoError(t, cb.Initialize(ic))

	assert.Equal(t, []string{"parse_one", "parse_two"}, cb.FindRelevantSymbols("how does parse work"))
	assert.Equal(t, []string{"/repo/a.py", "/repo/parser.py"}, cb.GetRelevantFiles("how does parse work", 5))
}

func TestFindRelevantSymbols(t *testing.T) {
	cb := newTestBuilder(t, budget.Default())

	assert.Equal(t, []string{"foo"}, cb.FindRelevantSymbols("explain the foo function"))
	assert.Equal(t, []string{"foo"}, cb.FindRelevantSymbols("what does foo() do?"))
	assert.Equal(t, []string{"unrelated"}, cb.FindRelevantSymbols("RELATED code"))
	assert.Empty(t, cb.FindRelevantSymbols(""))
}

func TestFindRelevantSymbols_ShortWordsMatchWholeNamesOnly(t *testing.T) {
	ic := analyzer_models.NewIndexedCode("/repo")
	ic.AddFile("/repo/util.js", "function set(k, v) {}\nfunction reset() {}\n", 40)
	ic.AddSymbols([]analyzer_models.SymbolInfo{
		{Name: "set", Type: analyzer_models.SymbolFunction, FilePath: "/repo/util.js", LineNumber: 1},
		{Name: "reset", Type: analyzer_models.SymbolFunction, FilePath: "/repo/util.js", LineNumber: 2},
	})
	cb := NewContextBuilder(budget.Default(), "CodeLve", utils.NewDiscardLogger()).(*ContextBuilder)
	require.NoError(t, cb.Initialize(ic))

	// "set" is too short to be a substring term but equals a symbol name.
	assert.Equal(t, []string{"set"}, cb.FindRelevantSymbols("how do I set up a new laptop"))
	assert.Equal(t, []string{"/repo/util.js"}, cb.GetRelevantFiles("how do I set up a new laptop", 1))

	assert.Empty(t, cb.FindRelevantSymbols("go to the sea"), "short words never match as substrings")
	assert.Equal(t, []string{"reset"}, cb.FindRelevantSymbols("reset the cache"))
	assert.Equal(t, []string{"reset", "set"}, cb.FindRelevantSymbols("RESET and set"))
}

func TestFormatCodeSnippet(t *testing.T) {
	ic := analyzer_models.NewIndexedCode("/repo")
	ic.AddFile("/repo/lines.txt", "l0\nl1\nl2\nl3\n", 12)
	cb := NewContextBuilder(budget.Default(), "", nil)
	require.NoError(t, cb.Initialize(ic))

	assert.Equal(t, "l1\nl2", cb.FormatCodeSnippet("/repo/lines.txt", 1, 2))
	assert.Equal(t, "l0", cb.FormatCodeSnippet("/repo/lines.txt", 0, 0))
	assert.Equal(t, "l2\nl3", cb.FormatCodeSnippet("/repo/lines.txt", 2, 99))
	assert.Equal(t, "l0\nl1", cb.FormatCodeSnippet("/repo/lines.txt", -5, 1))
	assert.Equal(t, "", cb.FormatCodeSnippet("/repo/lines.txt", 3, 1))
	assert.Equal(t, "", cb.FormatCodeSnippet("/repo/lines.txt", 4, 10))
	assert.Equal(t, "", cb.FormatCodeSnippet("/repo/missing.txt", 0, 1))
}

func TestGetFile(t *testing.T) {
	cb := newTestBuilder(t, budget.Default())
	assert.Equal(t, "package scanner\n", cb.GetFile("/repo/scanner_utils.go"))
	assert.Equal(t, "", cb.GetFile("/repo/none.go"))
}

func TestHistory_EvictsOldest(t *testing.T) {
	b := budget.Default()
	b.MaxHistoryEntries = 3
	cb := NewContextBuilder(b, "CodeLve", nil)

	for i := 1; i <= 4; i++ {
		cb.AddToHistory(fmt.Sprintf("q%d", i), fmt.Sprintf("r%d", i))
	}

	assert.Equal(t, []models.ConversationEntry{
		{Query: "q2", Response: "r2"},
		{Query: "q3", Response: "r3"},
		{Query: "q4", Response: "r4"},
	}, cb.History())
	assert.Equal(t, "User: q2\nCodeLve: r2\n\nUser: q3\nCodeLve: r3\n\nUser: q4\nCodeLve: r4\n\n", cb.GetConversationHistory())

	cb.ClearHistory()
	assert.Empty(t, cb.GetConversationHistory())
	assert.Zero(t, cb.Stats().HistoryEntries)
}

func TestInitialize_NilKeepsPreviousSnapshot(t *testing.T) {
	cb := newTestBuilder(t, budget.Default())

	err := cb.Initialize(nil)
	assert.ErrorIs(t, err, ErrNilIndex)

	stats := cb.Stats()
	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 2, stats.Symbols)
	assert.NotEmpty(t, cb.GetFile("/repo/a.py"))
}

func TestInitialize_ReplacesAndCopies(t *testing.T) {
	cb := newTestBuilder(t, budget.Default())

	next := analyzer_models.NewIndexedCode("/other")
	next.AddFile("/other/main.go", "package main\n", 13)
	next.Symbols["orphan"] = nil
	require.NoError(t, cb.Initialize(next))

	assert.Equal(t, "", cb.GetFile("/repo/a.py"), "old snapshot is replaced wholesale")
	assert.Equal(t, 0, cb.Stats().Symbols, "symbols without files are dropped")

	next.Files["/other/main.go"] = "mutated"
	assert.Equal(t, "package main\n", cb.GetFile("/other/main.go"), "the builder owns a copy")
}

func TestConcurrentQueriesAndRescans(t *testing.T) {
	b := budget.Default()
	b.MaxHistoryEntries = 5
	cb := newTestBuilder(t, b)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			cb.AddToHistory(fmt.Sprintf("q%d", i), "r")
		}(i)
		go func() {
			defer wg.Done()
			ctx := cb.BuildContext("explain the foo function")
			assert.Contains(t, ctx, "### Current Query ###")
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, cb.Initialize(testIndex()))
		}()
	}
	wg.Wait()

	assert.Len(t, cb.History(), 5)
	assert.Equal(t, 3, cb.Stats().Files)
}
