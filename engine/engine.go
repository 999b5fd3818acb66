package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meysamhadeli/codelve/budget"
	"github.com/meysamhadeli/codelve/code_analyzer"
	analyzer_contracts "github.com/meysamhadeli/codelve/code_analyzer/contracts"
	analyzer_models "github.com/meysamhadeli/codelve/code_analyzer/models"
	"github.com/meysamhadeli/codelve/config"
	"github.com/meysamhadeli/codelve/context_builder"
	cb_contracts "github.com/meysamhadeli/codelve/context_builder/contracts"
	"github.com/meysamhadeli/codelve/embed_data"
	"github.com/meysamhadeli/codelve/engine/models"
	"github.com/meysamhadeli/codelve/providers"
	provider_contracts "github.com/meysamhadeli/codelve/providers/contracts"
	provider_models "github.com/meysamhadeli/codelve/providers/models"
	"github.com/meysamhadeli/codelve/query_processor"
	qp_contracts "github.com/meysamhadeli/codelve/query_processor/contracts"
	"github.com/meysamhadeli/codelve/token_management"
	token_contracts "github.com/meysamhadeli/codelve/token_management/contracts"
	"github.com/meysamhadeli/codelve/utils"
)

var (
	// ErrInvalidPath is returned by Scan when the directory is missing or not a directory.
	ErrInvalidPath = code_analyzer.ErrInvalidPath
	// ErrScanInProgress is returned by Scan while another scan is running.
	ErrScanInProgress = errors.New("a scan is already in progress")
	ErrEngineClosed   = errors.New("engine is closed")
)

const (
	commandQuit = "/quit"

	modelLoadFailedMessage = "Sorry, I couldn't load the language model. Please check the logs for details."
	queryFailedMessage     = "Sorry, an error occurred while processing your query: "
	resetMessage           = "Conversation history and token usage have been reset."

	scanEventBuffer  = 64
	queryEventBuffer = 64
	unloadTimeout    = 5 * time.Second
)

// ScanTask reports scan progress and holds the resulting index once done.
type ScanTask struct {
	*Task[analyzer_models.ScanProgress]
	result atomic.Pointer[analyzer_models.IndexedCode]
}

// Result returns the installed index, or nil before completion and after failure.
func (t *ScanTask) Result() *analyzer_models.IndexedCode {
	return t.result.Load()
}

// QueryTask streams the responses to one query.
type QueryTask = Task[models.Response]

// Dependencies are the collaborators of an Engine.
type Dependencies struct {
	Store          config.Store
	Budget         *budget.Budget
	Scanner        analyzer_contracts.IScanner
	ContextBuilder cb_contracts.IContextBuilder
	QueryProcessor qp_contracts.IQueryProcessor
	Backend        provider_contracts.IInferenceBackend
	Tokens         token_contracts.ITokenManagement
	Logger         *slog.Logger
}

// Engine coordinates scans and queries. Scans run one at a time; queries may
// run concurrently with each other and with a scan.
type Engine struct {
	store          config.Store
	budget         *budget.Budget
	scanner        analyzer_contracts.IScanner
	contextBuilder cb_contracts.IContextBuilder
	queryProcessor qp_contracts.IQueryProcessor
	backend        provider_contracts.IInferenceBackend
	tokens         token_contracts.ITokenManagement
	logger         *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc
	lifecycle  sync.Mutex
	tasks      sync.WaitGroup
	closeOnce  sync.Once
	closed     atomic.Bool

	scanning atomic.Bool
	index    atomic.Pointer[analyzer_models.IndexedCode]
}

// New creates an engine from explicit dependencies.
func New(deps Dependencies) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	store := deps.Store
	if store == nil {
		store = config.New()
	}
	b := deps.Budget
	if b == nil {
		b = budget.New(store)
	}
	tokens := deps.Tokens
	if tokens == nil {
		tokens = token_management.NewTokenManagerWithWriter(nil)
	}
	return &Engine{
		store:          store,
		budget:         b,
		scanner:        deps.Scanner,
		contextBuilder: deps.ContextBuilder,
		queryProcessor: deps.QueryProcessor,
		backend:        deps.Backend,
		tokens:         tokens,
		logger:         utils.LoggerOrDiscard(deps.Logger),
		baseCtx:        ctx,
		baseCancel:     cancel,
	}
}

// NewFromConfig wires every component from the configuration.
func NewFromConfig(store config.Store, logger *slog.Logger) (*Engine, error) {
	logger = utils.LoggerOrDiscard(logger)
	b := budget.New(store)

	var cache analyzer_contracts.ISymbolCache
	if store.GetBool(config.KeyEnableCache, false) {
		symbolCache, err := code_analyzer.NewSymbolCache(store.GetString(config.KeyCacheDir, ""))
		if err != nil {
			return nil, fmt.Errorf("failed to open symbol cache: %w", err)
		}
		cache = symbolCache
	}

	scanner := code_analyzer.NewScanner(b, code_analyzer.OptionsFromConfig(store), nil, cache, logger)
	contextBuilder := context_builder.NewContextBuilder(b, store.GetString(config.KeyAssistantName, "CodeLve"), logger)
	queryProcessor := query_processor.NewQueryProcessor(store, contextBuilder, logger)
	tokens := token_management.NewTokenManager()

	backend, err := providers.ProviderFactory(store, tokens, logger)
	if err != nil {
		return nil, err
	}

	return New(Dependencies{
		Store:          store,
		Budget:         b,
		Scanner:        scanner,
		ContextBuilder: contextBuilder,
		QueryProcessor: queryProcessor,
		Backend:        backend,
		Tokens:         tokens,
		Logger:         logger,
	}), nil
}

// Preload initializes the backend up front when llm.preload_model is set.
func (e *Engine) Preload(ctx context.Context) error {
	if !e.store.GetBool(config.KeyPreloadModel, false) || e.backend.IsInitialized() {
		return nil
	}
	e.logger.Info("Preloading language model", "model", e.backend.ModelInfo())
	return e.backend.Initialize(ctx)
}

// Scan indexes dir in the background. The new index replaces the current one
// only when the scan completes; a cancelled or failed scan leaves it untouched.
func (e *Engine) Scan(ctx context.Context, dir string) (*ScanTask, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		e.logger.Error("Invalid scan directory", "path", dir)
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, dir)
	}

	if !e.scanning.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}

	task, taskCtx := newTask[analyzer_models.ScanProgress](ctx, scanEventBuffer)
	scanTask := &ScanTask{Task: task}
	launched := e.launch(task.cancel, func() {
		task.start()
		err := e.runScan(taskCtx, scanTask, dir)
		e.scanning.Store(false)
		task.finish(err)
	})
	if !launched {
		e.scanning.Store(false)
		task.cancel()
		return nil, ErrEngineClosed
	}
	return scanTask, nil
}

func (e *Engine) runScan(ctx context.Context, task *ScanTask, dir string) error {
	result, err := e.scanner.Scan(ctx, dir, task.events)
	if err != nil {
		if result != nil {
			e.budget.Release(result.TotalSize)
		}
		e.logger.Warn("Scan discarded", "path", dir, "error", err)
		return err
	}

	if err := e.contextBuilder.Initialize(result); err != nil {
		e.budget.Release(result.TotalSize)
		return fmt.Errorf("failed to install index: %w", err)
	}

	e.budget.Install(result.TotalSize)
	e.index.Store(result)
	task.result.Store(result)

	if result.Truncated {
		e.logger.Warn("Index is partial, scan limits were reached", "files", result.FileCount)
	}
	e.logger.Info(fmt.Sprintf("Codebase loaded: %d files", result.FileCount))
	return nil
}

// SubmitQuery answers query in the background. Commands are resolved without
// calling the backend. Empty queries complete without events.
func (e *Engine) SubmitQuery(ctx context.Context, query string) *QueryTask {
	task, taskCtx := newTask[models.Response](ctx, queryEventBuffer)
	launched := e.launch(task.cancel, func() {
		task.start()
		task.finish(e.runQuery(taskCtx, task, query))
	})
	if !launched {
		task.finish(ErrEngineClosed)
	}
	return task
}

func (e *Engine) runQuery(ctx context.Context, task *QueryTask, query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil
	}

	if trimmed == commandQuit || strings.HasPrefix(trimmed, commandQuit+" ") {
		task.emit(ctx, models.Response{Kind: models.ResponseExit})
		return nil
	}

	if command := e.queryProcessor.ExtractCommand(query); command != "" {
		return e.runCommand(ctx, task, command)
	}

	if !e.backend.IsInitialized() {
		if err := e.backend.Initialize(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Error("Failed to load language model", "error", err)
			task.emit(ctx, models.Response{Kind: models.ResponseError, Text: modelLoadFailedMessage})
			return fmt.Errorf("%w: %v", providers.ErrNotInitialized, err)
		}
	}

	if !task.emit(ctx, models.Response{Kind: models.ResponseTypingIndicator}) {
		return ctx.Err()
	}

	prompt := e.queryProcessor.ProcessQuery(query)
	params := provider_models.ParamsFromConfig(e.store)

	var (
		response string
		err      error
	)
	if params.Stream {
		response, err = e.stream(ctx, task, prompt, params)
	} else {
		response, err = e.backend.RunInference(ctx, prompt, params)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Error("Query failed", "error", err)
		task.emit(ctx, models.Response{Kind: models.ResponseError, Text: queryFailedMessage + err.Error()})
		return err
	}

	e.contextBuilder.AddToHistory(query, response)

	kind := models.ResponseText
	if params.Stream {
		kind = models.ResponseDone
	}
	if !task.emit(ctx, models.Response{Kind: kind, Text: response}) {
		return ctx.Err()
	}
	return nil
}

// stream forwards chunks as they arrive and returns the full answer.
func (e *Engine) stream(ctx context.Context, task *QueryTask, prompt string, params provider_models.InferenceParams) (string, error) {
	var sb strings.Builder
	for resp := range e.backend.RunInferenceStreaming(ctx, prompt, params) {
		if resp.Err != nil {
			return "", resp.Err
		}
		if resp.Content != "" {
			sb.WriteString(resp.Content)
			if !task.emit(ctx, models.Response{Kind: models.ResponseChunk, Text: resp.Content}) {
				return "", ctx.Err()
			}
		}
		if resp.Done {
			return sb.String(), nil
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", errors.New("stream closed before completion")
}

func (e *Engine) runCommand(ctx context.Context, task *QueryTask, command string) error {
	e.logger.Debug("Handling command", "command", command)

	switch command {
	case query_processor.CommandExit:
		task.emit(ctx, models.Response{Kind: models.ResponseExit})
	case query_processor.CommandHelp:
		task.emit(ctx, models.Response{Kind: models.ResponseText, Text: string(embed_data.HelpText)})
	case query_processor.CommandClear:
		e.contextBuilder.ClearHistory()
		task.emit(ctx, models.Response{Kind: models.ResponseClearHistory})
	case query_processor.CommandReset:
		e.contextBuilder.ClearHistory()
		e.tokens.ClearToken()
		if task.emit(ctx, models.Response{Kind: models.ResponseClearHistory}) {
			task.emit(ctx, models.Response{Kind: models.ResponseText, Text: resetMessage})
		}
	case query_processor.CommandInfo:
		task.emit(ctx, models.Response{Kind: models.ResponseText, Text: e.Info()})
	case query_processor.CommandSettings:
		task.emit(ctx, models.Response{Kind: models.ResponseText, Text: e.settings()})
	}
	return ctx.Err()
}

// Info summarizes the loaded index, resource usage and backend state.
func (e *Engine) Info() string {
	var sb strings.Builder

	stats := e.contextBuilder.Stats()
	if index := e.index.Load(); index != nil {
		fmt.Fprintf(&sb, "Codebase: %s\n", index.RootDir)
		fmt.Fprintf(&sb, "Files: %d, symbols: %d, directories: %d\n", stats.Files, stats.Symbols, len(index.Directories))
		if exts := index.Extensions(); len(exts) > 0 {
			fmt.Fprintf(&sb, "Languages: %s\n", strings.Join(exts, ", "))
		}
		if index.Truncated {
			sb.WriteString("Index is partial: scan limits were reached\n")
		}
	} else {
		sb.WriteString("Codebase: not loaded\n")
	}

	sb.WriteString(e.budget.Report())
	sb.WriteString("\n")

	state := "not loaded"
	if e.backend.IsInitialized() {
		state = "loaded"
	}
	fmt.Fprintf(&sb, "Model: %s (%s)\n", e.backend.ModelInfo(), state)
	fmt.Fprintf(&sb, "Conversation: %d of %d entries\n", stats.HistoryEntries, e.budget.MaxHistoryEntries)

	total, input, output := e.tokens.GetCurrentTokenUsage()
	fmt.Fprintf(&sb, "Tokens used: %d (input %d / output %d)", total, input, output)
	return sb.String()
}

func (e *Engine) settings() string {
	lister, ok := e.store.(interface{ Settings() []string })
	if !ok {
		return "Settings are not available."
	}
	return "Current settings:\n" + strings.Join(lister.Settings(), "\n")
}

// Index returns the installed index, or nil before the first completed scan.
func (e *Engine) Index() *analyzer_models.IndexedCode {
	return e.index.Load()
}

// Tokens exposes the session token counter.
func (e *Engine) Tokens() token_contracts.ITokenManagement {
	return e.tokens
}

// ModelInfo describes the configured backend.
func (e *Engine) ModelInfo() string {
	return e.backend.ModelInfo()
}

// Close cancels running tasks, waits for them and unloads the backend.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.lifecycle.Lock()
		e.closed.Store(true)
		e.lifecycle.Unlock()

		e.baseCancel()
		e.tasks.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), unloadTimeout)
		defer cancel()
		if e.backend != nil {
			err = e.backend.Unload(ctx)
		}
		e.budget.Install(0)
	})
	return err
}

// launch runs fn in a goroutine tracked by Close and cancels the task when the
// engine closes. It reports false, without running fn, once the engine is closed.
func (e *Engine) launch(cancel context.CancelFunc, fn func()) bool {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	if e.closed.Load() {
		return false
	}

	stop := context.AfterFunc(e.baseCtx, cancel)
	e.tasks.Add(1)
	go func() {
		defer e.tasks.Done()
		defer stop()
		fn()
	}()
	return true
}
