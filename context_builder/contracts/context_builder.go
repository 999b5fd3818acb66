package contracts

import (
	analyzer_models "github.com/meysamhadeli/codelve/code_analyzer/models"
	"github.com/meysamhadeli/codelve/context_builder/models"
)

type IContextBuilder interface {
	Initialize(indexed *analyzer_models.IndexedCode) error
	BuildContext(query string) string
	GetRelevantFiles(query string, maxFiles int) []string
	FindRelevantSymbols(query string) []string
	GetFile(filePath string) string
	FormatCodeSnippet(filePath string, startLine int, endLine int) string
	AddToHistory(query string, response string)
	GetConversationHistory() string
	History() []models.ConversationEntry
	ClearHistory()
	Stats() models.Stats
}
