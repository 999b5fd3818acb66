package budget

import (
	"fmt"
	"sync/atomic"

	"github.com/meysamhadeli/codelve/config"
)

// CharsPerToken converts the token-denominated context size into characters.
const CharsPerToken = 4

// Budget carries every resource limit of a session plus the bytes currently held
// by indexed file contents. One Budget is created at startup and shared by the
// scanner, the context builder and the engine.
type Budget struct {
	MaxFileSize       int64
	MaxFileCount      int
	MaxLineCount      int
	MaxContextSize    int
	MaxHistoryEntries int
	MaxRelevantFiles  int
	// MaxIndexBytes caps the total size of indexed file contents. Zero means unlimited.
	MaxIndexBytes int64

	used      atomic.Int64
	installed atomic.Int64
}

// Default returns a Budget with the built-in limits.
func Default() *Budget {
	return &Budget{
		MaxFileSize:       10 * 1024 * 1024,
		MaxFileCount:      10000,
		MaxLineCount:      10000,
		MaxContextSize:    8192,
		MaxHistoryEntries: 10,
		MaxRelevantFiles:  5,
	}
}

// New reads every limit from store, falling back to the built-in defaults.
func New(store config.Store) *Budget {
	d := Default()
	return &Budget{
		MaxFileSize:       store.GetInt64(config.KeyMaxFileSize, d.MaxFileSize),
		MaxFileCount:      store.GetInt(config.KeyMaxFileCount, d.MaxFileCount),
		MaxLineCount:      store.GetInt(config.KeyMaxLineCount, d.MaxLineCount),
		MaxContextSize:    store.GetInt(config.KeyMaxContextSize, d.MaxContextSize),
		MaxHistoryEntries: store.GetInt(config.KeyMaxHistory, d.MaxHistoryEntries),
		MaxRelevantFiles:  store.GetInt(config.KeyMaxRelevantFiles, d.MaxRelevantFiles),
		MaxIndexBytes:     store.GetInt64(config.KeyMaxIndexBytes, d.MaxIndexBytes),
	}
}

// ContextCharLimit is the maximum length of a rendered context.
func (b *Budget) ContextCharLimit() int {
	return b.MaxContextSize * CharsPerToken
}

// Reserve accounts n bytes of indexed content for the scan in progress. It
// returns false, reserving nothing, when the scan would exceed MaxIndexBytes.
// Bytes of the installed index do not count against the scan that replaces it.
func (b *Budget) Reserve(n int64) bool {
	for {
		cur := b.used.Load()
		next := cur + n
		if b.MaxIndexBytes > 0 && next-b.installed.Load() > b.MaxIndexBytes {
			return false
		}
		if b.used.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// Release returns n previously reserved bytes.
func (b *Budget) Release(n int64) {
	for {
		cur := b.used.Load()
		next := cur - n
		if next < 0 {
			next = 0
		}
		if b.used.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Install marks n reserved bytes as the installed index and releases the bytes
// of the index it replaces. Install(0) releases the installed index.
func (b *Budget) Install(n int64) {
	b.Release(b.installed.Swap(n))
}

// Installed returns the bytes held by the installed index.
func (b *Budget) Installed() int64 {
	return b.installed.Load()
}

// Used returns the bytes currently reserved.
func (b *Budget) Used() int64 {
	return b.used.Load()
}

// Report renders the current usage as one human-readable line.
func (b *Budget) Report() string {
	limit := "unlimited"
	if b.MaxIndexBytes > 0 {
		limit = formatBytes(b.MaxIndexBytes)
	}
	return fmt.Sprintf("Index memory: %s of %s, context window: %d tokens (%d characters)",
		formatBytes(b.Used()), limit, b.MaxContextSize, b.ContextCharLimit())
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
