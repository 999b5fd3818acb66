package contracts

import (
	"context"

	"github.com/meysamhadeli/codelve/code_analyzer/models"
)

type IScanner interface {
	Scan(ctx context.Context, rootDir string, progress chan<- models.ScanProgress) (*models.IndexedCode, error)
}

type ISymbolExtractor interface {
	Extract(filePath string, content string) []models.SymbolInfo
}

type ISymbolCache interface {
	GetSymbols(filePath string) ([]models.SymbolInfo, bool)
	SetSymbols(filePath string, symbols []models.SymbolInfo) error
	ClearCache() error
	GetPerformanceStats() map[string]interface{}
}
