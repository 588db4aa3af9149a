package domain

import (
	"time"
)

// Session represents a conversation session.
type Session struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Message represents a single message in a session. Messages are append-only;
// ordering within a session is (created_at, seq).
type Message struct {
	MessageID  string      `json:"message_id"`
	SessionID  string      `json:"session_id"`
	Seq        int64       `json:"seq"`
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	RouteTrace *RouteTrace `json:"route_trace,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// RouteTrace records which path produced an assistant message, plus evidence
// references for the UI. Persisted as JSON on the message row.
type RouteTrace struct {
	Route    Route    `json:"route"`
	Evidence []string `json:"evidence,omitempty"`
	Fallback bool     `json:"fallback,omitempty"`
}

// RouteDecision is the classifier's ephemeral output for one turn.
type RouteDecision struct {
	Route     Route  `json:"route"`
	Rationale string `json:"rationale,omitempty"`
	Heuristic bool   `json:"heuristic,omitempty"`
}

// RetrievedChunk is per-turn evidence from the vector index.
type RetrievedChunk struct {
	ChunkID   string      `json:"chunk_id"`
	Source    ChunkSource `json:"source"`
	Score     float32     `json:"score"`
	Text      string      `json:"text"`
	Title     string      `json:"title"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// SQLResult is a bounded, stringified result set from the NL2SQL path.
type SQLResult struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Ticket is a work item assigned to a user.
type Ticket struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	AssignedTo  string `json:"assigned_to"`
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name,omitempty"`
}

// PullRequest is a change proposal linked to a ticket.
type PullRequest struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	TicketID  string `json:"ticket_id"`
	AuthorID  string `json:"author_id"`
	ProjectID string `json:"project_id"`
}

// Learning is a curated learning resource.
type Learning struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Tags    string `json:"tags"`
	URL     string `json:"url"`
}
