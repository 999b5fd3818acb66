package models

// ConversationEntry is one answered query.
type ConversationEntry struct {
	Query    string
	Response string
}

// Stats summarizes the state of a context builder.
type Stats struct {
	Files          int
	Symbols        int
	HistoryEntries int
	// Truncations counts rendered contexts cut to the character limit.
	Truncations int64
}
