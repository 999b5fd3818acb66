package models

// Intent selects the instruction block appended to code prompts.
type Intent int

const (
	IntentGeneral Intent = iota
	IntentExplanation
	IntentDebugging
	IntentOptimization
	IntentImplementation
	IntentDocumentation
)

func (i Intent) String() string {
	switch i {
	case IntentExplanation:
		return "explanation"
	case IntentDebugging:
		return "debugging"
	case IntentOptimization:
		return "optimization"
	case IntentImplementation:
		return "implementation"
	case IntentDocumentation:
		return "documentation"
	default:
		return "general"
	}
}

// ProcessedQuery describes how a raw query was interpreted.
type ProcessedQuery struct {
	// Command is the in-band command, empty for ordinary queries.
	Command    string
	IsCodebase bool
	Intent     Intent
	Prompt     string
}
