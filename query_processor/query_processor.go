package query_processor

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/meysamhadeli/codelve/config"
	cb_contracts "github.com/meysamhadeli/codelve/context_builder/contracts"
	"github.com/meysamhadeli/codelve/embed_data"
	"github.com/meysamhadeli/codelve/query_processor/contracts"
	"github.com/meysamhadeli/codelve/query_processor/models"
	"github.com/meysamhadeli/codelve/utils"
)

// In-band commands, in match priority order.
const (
	CommandHelp     = "/help"
	CommandClear    = "/clear"
	CommandReset    = "/reset"
	CommandExit     = "/exit"
	CommandInfo     = "/info"
	CommandSettings = "/settings"
)

var Commands = []string{CommandHelp, CommandClear, CommandReset, CommandExit, CommandInfo, CommandSettings}

var codeKeywords = []string{
	"code", "function", "class", "method", "variable", "implement",
	"debug", "bug", "error", "refactor", "optimize", "documentation",
	"api", "module", "library", "interface", "test", "unit test",
}

// intentRules are evaluated in order; the first rule with a matching keyword wins.
var intentRules = []struct {
	intent   models.Intent
	keywords []string
}{
	{models.IntentExplanation, []string{"explain", "understand", "what does"}},
	{models.IntentDebugging, []string{"bug", "error", "fix", "issue"}},
	{models.IntentOptimization, []string{"optimize", "performance", "faster", "efficient"}},
	{models.IntentImplementation, []string{"implement", "create", "write", "add"}},
	{models.IntentDocumentation, []string{"document", "comments", "readme"}},
}

var instructions = map[models.Intent]string{
	models.IntentExplanation: "Focus on explaining the code's purpose, functionality, and structure. " +
		"Break down complex parts and explain the logic step by step.",
	models.IntentDebugging: "Identify potential bugs or issues in the code. " +
		"Suggest specific fixes and explain why they would solve the problem.",
	models.IntentOptimization: "Analyze the code for performance bottlenecks. " +
		"Suggest optimizations and explain the expected improvements.",
	models.IntentImplementation: "Provide a complete implementation that follows best practices. " +
		"Ensure the code is well-documented and fits with the existing codebase style.",
	models.IntentDocumentation: "Generate comprehensive documentation for the code. " +
		"Include function descriptions, parameter details, return values, and usage examples.",
	models.IntentGeneral: "Provide a detailed analysis relevant to the user's query. " +
		"Include code examples where appropriate and explain any technical concepts.",
}

const (
	contextPlaceholder = "{context}"
	queryPlaceholder   = "{query}"
)

// QueryProcessor turns a raw user query into the prompt sent to the model.
type QueryProcessor struct {
	contextBuilder  cb_contracts.IContextBuilder
	codeTemplate    string
	generalTemplate string
	logger          *slog.Logger
}

// NewQueryProcessor reads the prompt templates from store, falling back to the embedded defaults.
func NewQueryProcessor(store config.Store, contextBuilder cb_contracts.IContextBuilder, logger *slog.Logger) contracts.IQueryProcessor {
	return &QueryProcessor{
		contextBuilder:  contextBuilder,
		codeTemplate:    store.GetString(config.KeyCodeTemplate, string(embed_data.CodePromptTemplate)),
		generalTemplate: store.GetString(config.KeyGeneralTemplate, string(embed_data.GeneralPromptTemplate)),
		logger:          utils.LoggerOrDiscard(logger),
	}
}

// ProcessQuery returns the formatted prompt, or the command itself when the
// query is an in-band command.
func (qp *QueryProcessor) ProcessQuery(rawQuery string) string {
	processed := qp.Process(rawQuery)
	if processed.Command != "" {
		return processed.Command
	}
	return processed.Prompt
}

// Process classifies rawQuery and builds its prompt.
func (qp *QueryProcessor) Process(rawQuery string) models.ProcessedQuery {
	if command := qp.ExtractCommand(rawQuery); command != "" {
		return models.ProcessedQuery{Command: command}
	}

	result := models.ProcessedQuery{IsCodebase: qp.IsCodebaseQuery(rawQuery)}

	if result.IsCodebase {
		result.Intent = qp.DetectIntent(rawQuery)
		prompt := fillTemplate(qp.codeTemplate, []placeholder{
			{token: contextPlaceholder, value: qp.contextBuilder.BuildContext(rawQuery)},
			{token: queryPlaceholder, value: rawQuery},
		})
		result.Prompt = prompt + "\n" + instructions[result.Intent]
	} else {
		result.Prompt = fillTemplate(qp.generalTemplate, []placeholder{
			{token: queryPlaceholder, value: rawQuery},
		})
	}

	kind := "general"
	if result.IsCodebase {
		kind = "code-related"
	}
	qp.logger.Info("Processed query", "kind", kind, "intent", result.Intent.String())
	return result
}

// ExtractCommand returns the first command, in Commands order, that the trimmed
// query equals or starts with followed by a space. It returns "" otherwise.
func (qp *QueryProcessor) ExtractCommand(rawQuery string) string {
	trimmed := strings.TrimSpace(rawQuery)
	for _, cmd := range Commands {
		if trimmed == cmd || strings.HasPrefix(trimmed, cmd+" ") {
			qp.logger.Debug("Extracted command", "command", cmd)
			return cmd
		}
	}
	return ""
}

// IsCodebaseQuery reports whether the query mentions a code keyword or matches
// at least one indexed file.
func (qp *QueryProcessor) IsCodebaseQuery(query string) bool {
	lower := strings.ToLower(query)
	for _, keyword := range codeKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return len(qp.contextBuilder.GetRelevantFiles(query, 1)) > 0
}

// DetectIntent matches the query case-insensitively against the intent keywords.
func (qp *QueryProcessor) DetectIntent(query string) models.Intent {
	lower := strings.ToLower(query)
	for _, rule := range intentRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return rule.intent
			}
		}
	}
	return models.IntentGeneral
}

// FormatInstructions returns the instruction block for the query's intent.
func (qp *QueryProcessor) FormatInstructions(query string) string {
	return instructions[qp.DetectIntent(query)]
}

type placeholder struct {
	token string
	value string
}

// fillTemplate replaces the first occurrence of each token in template.
// Positions are taken from the template itself, so substituted values are
// never searched for later tokens. Missing tokens are skipped.
func fillTemplate(template string, placeholders []placeholder) string {
	type hit struct {
		start, end int
		value      string
	}

	var hits []hit
	for _, p := range placeholders {
		if idx := strings.Index(template, p.token); idx >= 0 {
			hits = append(hits, hit{start: idx, end: idx + len(p.token), value: p.value})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	var sb strings.Builder
	last := 0
	for _, h := range hits {
		if h.start < last {
			continue
		}
		sb.WriteString(template[last:h.start])
		sb.WriteString(h.value)
		last = h.end
	}
	sb.WriteString(template[last:])
	return sb.String()
}
