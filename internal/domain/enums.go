// Package domain defines the core domain models for the assistant.
package domain

// Route is the closed set of paths a turn can be dispatched to.
type Route string

const (
	RouteStructuredQuery    Route = "structured_query"
	RouteKnowledgeRetrieval Route = "knowledge_retrieval"
	RouteToolAction         Route = "tool_action"
	RouteConversational     Route = "conversational"
)

// ParseRoute maps a raw classifier label to a Route. Unknown or malformed
// labels are rejected so a misspelled label can never fall through silently.
func ParseRoute(s string) (Route, bool) {
	switch Route(s) {
	case RouteStructuredQuery, RouteKnowledgeRetrieval, RouteToolAction, RouteConversational:
		return Route(s), true
	}
	return "", false
}

// TurnStatus represents the state of a turn as it moves through the pipeline.
type TurnStatus string

const (
	TurnStatusReceived   TurnStatus = "RECEIVED"
	TurnStatusClassified TurnStatus = "CLASSIFIED"
	TurnStatusRouting    TurnStatus = "ROUTING"
	TurnStatusComposed   TurnStatus = "COMPOSED"
	TurnStatusPersisted  TurnStatus = "PERSISTED"
	TurnStatusDone       TurnStatus = "DONE"
	TurnStatusError      TurnStatus = "ERROR"
)

// ChunkSource identifies which corpus a retrieved chunk came from.
type ChunkSource string

const (
	SourceDocument ChunkSource = "document"
	SourceLearning ChunkSource = "learning"
)

// MessageRole is the author of a persisted message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)
