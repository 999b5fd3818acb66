package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/meysamhadeli/codelve/config"
	"github.com/meysamhadeli/codelve/utils"
)

// DefaultDebounce is the quiet period before a burst of changes is reported.
const DefaultDebounce = 500 * time.Millisecond

// Options selects which changes are reported.
type Options struct {
	Extensions         []string
	ExcludeDirectories []string
	// IgnorePatterns are globs relative to the root, matched like the scanner
	// does. Patterns from the root's ignore file are added on every event.
	IgnorePatterns []string
	Debounce       time.Duration
}

// OptionsFromConfig reads the scanner filters so the watcher reports exactly
// the files a scan would index.
func OptionsFromConfig(store config.Store) Options {
	return Options{
		Extensions:         config.ParseList(store.GetString(config.KeySupportedExtensions, config.DefaultSupportedExtensions), true),
		ExcludeDirectories: config.ParseList(store.GetString(config.KeyExcludeDirectories, config.DefaultExcludeDirectories), false),
		IgnorePatterns:     config.ParseList(store.GetString(config.KeyIgnorePatterns, ""), false),
		Debounce:           DefaultDebounce,
	}
}

// ChangeHandler receives the changed paths of one debounced burst.
type ChangeHandler func(paths []string)

// Watcher reports source changes under a directory tree.
type Watcher struct {
	root       string
	extensions map[string]struct{}
	excluded   map[string]struct{}
	patterns   []string
	fsw        *fsnotify.Watcher
	debouncer  *BatchDebouncer
	logger     *slog.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New watches root and every non-excluded directory below it.
func New(root string, opts Options, handler ChangeHandler, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch root: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	w := &Watcher{
		root:       abs,
		extensions: make(map[string]struct{}, len(opts.Extensions)),
		excluded:   make(map[string]struct{}, len(opts.ExcludeDirectories)),
		patterns:   opts.IgnorePatterns,
		fsw:        fsw,
		debouncer:  NewBatchDebouncer(opts.Debounce, handler),
		logger:     utils.LoggerOrDiscard(logger),
	}
	for _, ext := range opts.Extensions {
		w.extensions[strings.ToLower(ext)] = struct{}{}
	}
	for _, dir := range opts.ExcludeDirectories {
		w.excluded[dir] = struct{}{}
	}

	if _, err := w.addTree(abs); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Start processes events until ctx ends or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
	w.logger.Info("Watching for changes", "path", w.root)
}

// Close stops the watcher and waits for its goroutines.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		err = w.fsw.Close()
		w.wg.Wait()
		w.debouncer.Stop()
	})
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod || w.inExcludedDir(event.Name) {
		return
	}

	patterns := w.ignorePatterns()
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.isIgnored(event.Name, true, patterns) {
				return
			}
			files, err := w.addTree(event.Name)
			if err != nil {
				w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}
			for _, file := range files {
				if !w.isIgnored(file, false, patterns) {
					w.debouncer.Add(file)
				}
			}
			return
		}
	}

	removed := event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	if w.isIgnored(event.Name, false, patterns) || (removed && w.isIgnored(event.Name, true, patterns)) {
		return
	}
	if w.isRelevantFile(event.Name) || (removed && filepath.Ext(event.Name) == "") {
		w.logger.Debug("Change detected", "path", event.Name, "op", event.Op.String())
		w.debouncer.Add(event.Name)
	}
}

// addTree watches dir and its subdirectories and returns the relevant files found.
func (w *Watcher) addTree(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if path != w.root && w.isExcluded(d.Name()) {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil && !errors.Is(err, fsnotify.ErrClosed) {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			return nil
		}
		if w.isRelevantFile(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func (w *Watcher) isRelevantFile(path string) bool {
	if filepath.Base(path) == utils.IgnoreFileName {
		return true
	}
	_, ok := w.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ignorePatterns merges the configured patterns with the root's ignore file.
func (w *Watcher) ignorePatterns() []string {
	patterns := append([]string{}, w.patterns...)
	filePatterns, err := utils.GetIgnorePatterns(w.root)
	if err != nil {
		w.logger.Warn("Failed to read ignore file", "path", w.root, "error", err)
		return patterns
	}
	return append(patterns, filePatterns...)
}

// isIgnored reports whether path, or any directory above it, matches patterns.
// The ignore file itself is never ignored so that edits to it are reported.
func (w *Watcher) isIgnored(path string, isDir bool, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)
	if rel == utils.IgnoreFileName {
		return false
	}

	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		if utils.IsIgnored(strings.Join(parts[:i], "/"), true, patterns) {
			return true
		}
	}
	return utils.IsIgnored(rel, isDir, patterns)
}

func (w *Watcher) isExcluded(name string) bool {
	_, ok := w.excluded[name]
	return ok
}

func (w *Watcher) inExcludedDir(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, part := range parts[:len(parts)-1] {
		if w.isExcluded(part) {
			return true
		}
	}
	return false
}
