package code_analyzer

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/meysamhadeli/codelve/code_analyzer/contracts"
	"github.com/meysamhadeli/codelve/code_analyzer/models"
)

// symbolPattern describes one regular expression and how to turn its matches into symbols.
type symbolPattern struct {
	re         *regexp.Regexp
	symbolType models.SymbolType
	// nameGroups lists the capture groups holding the name; the first non-empty one wins.
	nameGroups []int
	// docGroup, when positive, is captured as documentation.
	docGroup int
	// reject filters false positives by looking at the submatches.
	reject func(groups []string) bool
}

// Return types that are really control-flow keywords.
var controlKeywords = map[string]struct{}{
	"if":     {},
	"for":    {},
	"while":  {},
	"switch": {},
}

var cFamilyPatterns = []symbolPattern{
	{
		re:         regexp.MustCompile(`#include\s*[<"]([^>"]+)[>"]`),
		symbolType: models.SymbolInclude,
		nameGroups: []int{1},
	},
	{
		re:         regexp.MustCompile(`class\s+(\w+)(\s*:\s*\w+\s+\w+)?\s*\{`),
		symbolType: models.SymbolClass,
		nameGroups: []int{1},
	},
	{
		re:         regexp.MustCompile(`(\w+)\s+(\w+)\s*\([^)]*\)\s*(\{|;)`),
		symbolType: models.SymbolFunction,
		nameGroups: []int{2},
		reject: func(groups []string) bool {
			_, isKeyword := controlKeywords[groups[1]]
			return isKeyword
		},
	},
}

var pythonPatterns = []symbolPattern{
	{
		re:         regexp.MustCompile(`import\s+(\w+)|from\s+(\w+)\s+import`),
		symbolType: models.SymbolImport,
		nameGroups: []int{1, 2},
	},
	{
		re:         regexp.MustCompile(`class\s+(\w+)(\([^)]*\))?\s*:`),
		symbolType: models.SymbolClass,
		nameGroups: []int{1},
	},
	{
		re:         regexp.MustCompile(`def\s+(\w+)\s*\([^)]*\)\s*:`),
		symbolType: models.SymbolFunction,
		nameGroups: []int{1},
	},
}

var javascriptPatterns = []symbolPattern{
	{
		re:         regexp.MustCompile(`import\s+.*?from\s+['"]([^'"]+)['"]|require\s*\(\s*['"]([^'"]+)['"]\s*\)`),
		symbolType: models.SymbolImport,
		nameGroups: []int{1, 2},
	},
	{
		re:         regexp.MustCompile(`class\s+(\w+)(\s+extends\s+\w+)?\s*\{`),
		symbolType: models.SymbolClass,
		nameGroups: []int{1},
	},
	{
		re:         regexp.MustCompile(`function\s+(\w+)\s*\([^)]*\)|(\w+)\s*:\s*function\s*\([^)]*\)|(\w+)\s*=\s*function\s*\([^)]*\)`),
		symbolType: models.SymbolFunction,
		nameGroups: []int{1, 2, 3},
	},
	{
		re:         regexp.MustCompile(`(?:const|let|var)\s+(\w+)\s*=\s*\([^)]*\)\s*=>`),
		symbolType: models.SymbolFunction,
		nameGroups: []int{1},
	},
}

// Applied to every file after the language-specific patterns.
var commonPatterns = []symbolPattern{
	{
		re:         regexp.MustCompile(`TODO\s*:?\s*(.*)`),
		symbolType: models.SymbolComment,
		docGroup:   1,
	},
	{
		re:         regexp.MustCompile(`const\s+([A-Z][A-Z0-9_]*)\s*=|#define\s+([A-Z][A-Z0-9_]*)`),
		symbolType: models.SymbolConstant,
		nameGroups: []int{1, 2},
	},
}

var languagePatterns = map[string][]symbolPattern{
	".c":   cFamilyPatterns,
	".cpp": cFamilyPatterns,
	".h":   cFamilyPatterns,
	".hpp": cFamilyPatterns,
	".py":  pythonPatterns,
	".js":  javascriptPatterns,
	".ts":  javascriptPatterns,
}

// todoSymbolName is the name every TODO comment is registered under.
const todoSymbolName = "TODO"

// SymbolExtractor finds symbols with per-language regular expressions.
type SymbolExtractor struct{}

func NewSymbolExtractor() contracts.ISymbolExtractor {
	return &SymbolExtractor{}
}

// Extract returns the symbols of one file: language-specific matches first,
// then TODO comments, then upper-case constants.
func (e *SymbolExtractor) Extract(filePath string, content string) []models.SymbolInfo {
	var symbols []models.SymbolInfo
	lines := newLineIndex(content)

	ext := strings.ToLower(filepath.Ext(filePath))
	for _, pattern := range languagePatterns[ext] {
		symbols = pattern.collect(symbols, filePath, content, lines)
	}
	for _, pattern := range commonPatterns {
		symbols = pattern.collect(symbols, filePath, content, lines)
	}

	return symbols
}

func (p symbolPattern) collect(symbols []models.SymbolInfo, filePath string, content string, lines lineIndex) []models.SymbolInfo {
	for _, loc := range p.re.FindAllStringSubmatchIndex(content, -1) {
		groups := submatches(content, loc)
		if p.reject != nil && p.reject(groups) {
			continue
		}

		symbol := models.SymbolInfo{
			Type:       p.symbolType,
			FilePath:   filePath,
			LineNumber: lines.lineAt(loc[0]),
			Signature:  strings.TrimSpace(groups[0]),
		}

		if p.symbolType == models.SymbolComment {
			symbol.Name = todoSymbolName
		} else {
			for _, g := range p.nameGroups {
				if groups[g] != "" {
					symbol.Name = groups[g]
					break
				}
			}
		}
		if symbol.Name == "" {
			continue
		}
		if p.docGroup > 0 {
			symbol.Documentation = strings.TrimSpace(groups[p.docGroup])
		}

		symbols = append(symbols, symbol)
	}
	return symbols
}

// submatches converts a FindStringSubmatchIndex result into strings; unmatched groups are empty.
func submatches(content string, loc []int) []string {
	groups := make([]string, len(loc)/2)
	for i := range groups {
		start, end := loc[2*i], loc[2*i+1]
		if start >= 0 && end >= 0 {
			groups[i] = content[start:end]
		}
	}
	return groups
}

// lineIndex holds the byte offset at which every line starts.
type lineIndex []int

func newLineIndex(content string) lineIndex {
	starts := lineIndex{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineAt returns the 1-based line containing the byte offset.
func (l lineIndex) lineAt(offset int) int {
	return sort.Search(len(l), func(i int) bool { return l[i] > offset })
}
