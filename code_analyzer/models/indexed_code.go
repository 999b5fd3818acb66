package models

import (
	"path/filepath"
	"sort"
	"strings"
)

// SymbolType classifies an extracted symbol.
type SymbolType int

const (
	SymbolInclude SymbolType = iota
	SymbolImport
	SymbolClass
	SymbolFunction
	SymbolConstant
	SymbolComment
)

// SymbolTypes lists every symbol type in declaration order.
var SymbolTypes = []SymbolType{SymbolInclude, SymbolImport, SymbolClass, SymbolFunction, SymbolConstant, SymbolComment}

func (t SymbolType) String() string {
	switch t {
	case SymbolInclude:
		return "include"
	case SymbolImport:
		return "import"
	case SymbolClass:
		return "class"
	case SymbolFunction:
		return "function"
	case SymbolConstant:
		return "constant"
	case SymbolComment:
		return "comment"
	default:
		return "unknown"
	}
}

// SymbolInfo is a single code entity found by the pattern matchers.
type SymbolInfo struct {
	Name     string
	Type     SymbolType
	FilePath string
	// LineNumber is 1-based.
	LineNumber int
	// Signature holds the raw matched text.
	Signature string
	// Documentation is only set for comment symbols.
	Documentation string
}

// IndexedCode is the snapshot produced by one scan. It is built by a single
// scanner goroutine and must not be mutated once handed to a consumer.
type IndexedCode struct {
	RootDir string
	// Files maps absolute path to full content.
	Files map[string]string
	// Symbols maps a symbol name to the files defining it, in registration order.
	Symbols        map[string][]string
	SymbolDetails  []SymbolInfo
	Directories    []string
	FileExtensions map[string]struct{}
	TotalSize      int64
	FileCount      int
	// Truncated is set when a file-count or memory limit stopped the scan early.
	Truncated bool
}

// NewIndexedCode returns an empty snapshot rooted at rootDir.
func NewIndexedCode(rootDir string) *IndexedCode {
	return &IndexedCode{
		RootDir:        rootDir,
		Files:          make(map[string]string),
		Symbols:        make(map[string][]string),
		FileExtensions: make(map[string]struct{}),
	}
}

// AddFile records an accepted file and updates the aggregate counters.
func (ic *IndexedCode) AddFile(path string, content string, size int64) {
	ic.Files[path] = content
	ic.FileExtensions[strings.ToLower(filepath.Ext(path))] = struct{}{}
	ic.TotalSize += size
	ic.FileCount++
}

// AddSymbols appends symbols to SymbolDetails and registers each owning file
// under the symbol name once.
func (ic *IndexedCode) AddSymbols(symbols []SymbolInfo) {
	for _, symbol := range symbols {
		ic.SymbolDetails = append(ic.SymbolDetails, symbol)

		paths := ic.Symbols[symbol.Name]
		registered := false
		for _, p := range paths {
			if p == symbol.FilePath {
				registered = true
				break
			}
		}
		if !registered {
			ic.Symbols[symbol.Name] = append(paths, symbol.FilePath)
		}
	}
}

// Extensions returns the distinct extensions seen, sorted.
func (ic *IndexedCode) Extensions() []string {
	exts := make([]string, 0, len(ic.FileExtensions))
	for ext := range ic.FileExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// SymbolsOfType returns every symbol detail of the given type, in extraction order.
func (ic *IndexedCode) SymbolsOfType(t SymbolType) []SymbolInfo {
	var out []SymbolInfo
	for _, s := range ic.SymbolDetails {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}
