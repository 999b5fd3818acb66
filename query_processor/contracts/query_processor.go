package contracts

import "github.com/meysamhadeli/codelve/query_processor/models"

type IQueryProcessor interface {
	ProcessQuery(rawQuery string) string
	Process(rawQuery string) models.ProcessedQuery
	ExtractCommand(rawQuery string) string
	IsCodebaseQuery(query string) bool
	DetectIntent(query string) models.Intent
	FormatInstructions(query string) string
}
