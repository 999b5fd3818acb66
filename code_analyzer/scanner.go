package code_analyzer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/meysamhadeli/codelve/budget"
	"github.com/meysamhadeli/codelve/code_analyzer/contracts"
	"github.com/meysamhadeli/codelve/code_analyzer/models"
	"github.com/meysamhadeli/codelve/config"
	"github.com/meysamhadeli/codelve/utils"
)

// ErrInvalidPath is returned when the scan target is missing or not a directory.
var ErrInvalidPath = errors.New("scan target does not exist or is not a directory")

// ScannerOptions holds the file filters of a Scanner.
type ScannerOptions struct {
	// Extensions are matched case-insensitively and include the leading dot.
	Extensions []string
	// ExcludeDirectories are directory base names that are never traversed.
	ExcludeDirectories []string
	// IgnorePatterns are doublestar globs relative to the scan root, applied
	// together with the root's .codelve-ignore file.
	IgnorePatterns []string
}

// OptionsFromConfig reads the scanner filters from store.
func OptionsFromConfig(store config.Store) ScannerOptions {
	return ScannerOptions{
		Extensions:         config.ParseList(store.GetString(config.KeySupportedExtensions, config.DefaultSupportedExtensions), true),
		ExcludeDirectories: config.ParseList(store.GetString(config.KeyExcludeDirectories, config.DefaultExcludeDirectories), false),
		IgnorePatterns:     config.ParseList(store.GetString(config.KeyIgnorePatterns, ""), false),
	}
}

// Scanner walks a directory tree and builds an IndexedCode snapshot.
type Scanner struct {
	budget     *budget.Budget
	extensions map[string]struct{}
	excluded   map[string]struct{}
	patterns   []string
	extractor  contracts.ISymbolExtractor
	cache      contracts.ISymbolCache
	logger     *slog.Logger
}

// NewScanner creates a scanner. cache may be nil to always run the extractor.
func NewScanner(b *budget.Budget, opts ScannerOptions, extractor contracts.ISymbolExtractor, cache contracts.ISymbolCache, logger *slog.Logger) contracts.IScanner {
	if extractor == nil {
		extractor = NewSymbolExtractor()
	}
	s := &Scanner{
		budget:     b,
		extensions: make(map[string]struct{}, len(opts.Extensions)),
		excluded:   make(map[string]struct{}, len(opts.ExcludeDirectories)),
		patterns:   opts.IgnorePatterns,
		extractor:  extractor,
		cache:      cache,
		logger:     utils.LoggerOrDiscard(logger),
	}
	for _, ext := range opts.Extensions {
		s.extensions[strings.ToLower(ext)] = struct{}{}
	}
	for _, dir := range opts.ExcludeDirectories {
		s.excluded[dir] = struct{}{}
	}
	return s
}

// walkState is the per-scan mutable state shared by the two passes.
type walkState struct {
	root     string
	patterns []string
	result   *models.IndexedCode
	total    int
	progress chan<- models.ScanProgress
}

// Scan indexes rootDir in two passes: the first counts eligible files, the
// second reads them and extracts their symbols.
//
// A missing or non-directory root yields an empty result and ErrInvalidPath.
// Reaching the file-count or memory limit yields a partial result with
// Truncated set and no error. Cancelling ctx yields the partial result and ctx.Err().
func (s *Scanner) Scan(ctx context.Context, rootDir string, progress chan<- models.ScanProgress) (*models.IndexedCode, error) {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		root = rootDir
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		s.logger.Error("Invalid scan directory", "path", rootDir)
		return models.NewIndexedCode(root), fmt.Errorf("%w: %s", ErrInvalidPath, rootDir)
	}

	state := &walkState{
		root:     root,
		patterns: s.ignorePatterns(root),
		result:   models.NewIndexedCode(root),
		progress: progress,
	}

	s.logger.Info("Scanning directory", "path", root)
	if err := s.emit(ctx, state, models.StageCounting, 0, "Counting relevant files"); err != nil {
		return state.result, err
	}

	total, err := s.countFiles(ctx, state)
	if err != nil {
		return state.result, err
	}
	state.total = total

	if err := s.emit(ctx, state, models.StageScanning, 0, fmt.Sprintf("Found %d relevant files", total)); err != nil {
		return state.result, err
	}

	if err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		return s.visit(ctx, state, path, d, walkErr)
	}); err != nil {
		return state.result, err
	}

	s.logger.Info("Scan complete",
		"files", state.result.FileCount,
		"symbols", len(state.result.SymbolDetails),
		"bytes", state.result.TotalSize,
		"truncated", state.result.Truncated)
	if s.cache != nil {
		perf := s.cache.GetPerformanceStats()
		s.logger.Debug("Symbol cache usage",
			"hits", perf["cache_hits"],
			"misses", perf["cache_misses"],
			"hit_rate_percent", perf["hit_rate_percent"])
	}

	if err := s.emit(ctx, state, models.StageComplete, 1.0, fmt.Sprintf("Scanned %d files", state.result.FileCount)); err != nil {
		return state.result, err
	}
	return state.result, nil
}

func (s *Scanner) ignorePatterns(root string) []string {
	patterns := append([]string{}, s.patterns...)
	filePatterns, err := utils.GetIgnorePatterns(root)
	if err != nil {
		s.logger.Warn("Failed to read ignore file", "path", root, "error", err)
		return patterns
	}
	return append(patterns, filePatterns...)
}

// countFiles is the first pass. It applies the extension, size and exclusion
// filters; line counts need the content and are only checked in the second pass.
func (s *Scanner) countFiles(ctx context.Context, state *walkState) (int, error) {
	count := 0
	err := filepath.WalkDir(state.root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if d != nil && d.IsDir() && path != state.root {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != state.root && s.isExcludedDir(state, path) {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.isCandidateFile(state, path, d) {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > s.budget.MaxFileSize {
			return nil
		}
		count++
		return nil
	})
	return count, err
}

// visit is the second-pass callback.
func (s *Scanner) visit(ctx context.Context, state *walkState, path string, d fs.DirEntry, walkErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if walkErr != nil {
		s.logger.Warn("Failed to access path", "path", path, "error", walkErr)
		if d != nil && d.IsDir() && path != state.root {
			return filepath.SkipDir
		}
		return nil
	}

	if d.IsDir() {
		if path == state.root {
			return nil
		}
		state.result.Directories = append(state.result.Directories, path)
		if s.isExcludedDir(state, path) {
			s.logger.Debug("Skipping excluded directory", "path", path)
			return filepath.SkipDir
		}
		return nil
	}

	if !s.isCandidateFile(state, path, d) {
		return nil
	}

	result := state.result
	if result.FileCount >= s.budget.MaxFileCount {
		s.logger.Warn("Reached maximum file count limit", "limit", s.budget.MaxFileCount)
		result.Truncated = true
		return filepath.SkipAll
	}

	info, err := d.Info()
	if err != nil {
		s.logger.Warn("Failed to stat file", "path", path, "error", err)
		return nil
	}
	if info.Size() > s.budget.MaxFileSize {
		s.logger.Debug("Skipping file exceeding size limit", "path", path, "size", info.Size())
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("Failed to read file", "path", path, "error", err)
		return nil
	}
	content := string(data)

	if lines := strings.Count(content, "\n") + 1; lines > s.budget.MaxLineCount {
		s.logger.Debug("Skipping file exceeding line limit", "path", path, "lines", lines)
		return nil
	}

	if !s.budget.Reserve(info.Size()) {
		s.logger.Warn("Index memory limit reached", "limit", s.budget.MaxIndexBytes, "path", path)
		result.Truncated = true
		return filepath.SkipAll
	}

	result.AddFile(path, content, info.Size())
	result.AddSymbols(s.symbolsFor(path, content))

	processed := result.FileCount
	return s.emit(ctx, state, models.StageScanning, fraction(processed, state.total),
		fmt.Sprintf("Processed %d of %d files", processed, state.total))
}

func (s *Scanner) symbolsFor(path string, content string) []models.SymbolInfo {
	if s.cache != nil {
		if symbols, found := s.cache.GetSymbols(path); found {
			return symbols
		}
	}

	symbols := s.extractor.Extract(path, content)

	if s.cache != nil {
		if err := s.cache.SetSymbols(path, symbols); err != nil {
			s.logger.Debug("Failed to cache symbols", "path", path, "error", err)
		}
	}
	return symbols
}

func (s *Scanner) isExcludedDir(state *walkState, path string) bool {
	if _, excluded := s.excluded[filepath.Base(path)]; excluded {
		return true
	}
	return s.isIgnored(state, path, true)
}

// isCandidateFile applies the filters that need no file metadata.
func (s *Scanner) isCandidateFile(state *walkState, path string, d fs.DirEntry) bool {
	if !d.Type().IsRegular() {
		return false
	}
	if _, supported := s.extensions[strings.ToLower(filepath.Ext(path))]; !supported {
		return false
	}
	return !s.isIgnored(state, path, false)
}

func (s *Scanner) isIgnored(state *walkState, path string, isDir bool) bool {
	if len(state.patterns) == 0 {
		return false
	}
	rel, err := filepath.Rel(state.root, path)
	if err != nil {
		return false
	}
	return utils.IsIgnored(rel, isDir, state.patterns)
}

// emit delivers a progress event, blocking until it is received or ctx is done.
func (s *Scanner) emit(ctx context.Context, state *walkState, stage string, progress float64, message string) error {
	if state.progress == nil {
		return nil
	}
	select {
	case state.progress <- models.ScanProgress{Stage: stage, Progress: progress, Message: message}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func fraction(done, total int) float64 {
	if total <= 0 {
		return 1.0
	}
	f := float64(done) / float64(total)
	if f > 1.0 {
		return 1.0
	}
	return f
}
