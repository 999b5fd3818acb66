package models

// ResponseKind tells the UI how to treat a Response.
type ResponseKind int

const (
	// ResponseText is a complete answer or command output.
	ResponseText ResponseKind = iota
	// ResponseChunk is one streamed piece of an answer.
	ResponseChunk
	// ResponseDone ends a stream and carries the full answer.
	ResponseDone
	ResponseTypingIndicator
	ResponseClearHistory
	ResponseError
	ResponseExit
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseText:
		return "text"
	case ResponseChunk:
		return "chunk"
	case ResponseDone:
		return "done"
	case ResponseTypingIndicator:
		return "typing"
	case ResponseClearHistory:
		return "clear_history"
	case ResponseError:
		return "error"
	case ResponseExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Response is one event of a query task.
type Response struct {
	Kind ResponseKind
	Text string
}
