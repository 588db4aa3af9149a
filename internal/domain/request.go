package domain

// TurnRequest is the inbound request for one conversation turn. An empty
// SessionID means "create a new session".
type TurnRequest struct {
	UserID    string `json:"user_id"`
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// TurnResponse is the outcome of a completed turn.
type TurnResponse struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
	Route     Route  `json:"route"`
}

// RecommendationRequest asks for follow-up suggestions for a session.
type RecommendationRequest struct {
	SessionID   string `json:"session_id"`
	NumMessages int    `json:"num_messages,omitempty"`
}

// RecommendationResponse carries 2-3 clean follow-up suggestions.
type RecommendationResponse struct {
	Suggestions     []string `json:"suggestions"`
	SessionID       string   `json:"session_id"`
	Status          string   `json:"status"`
	DurationSeconds float64  `json:"duration_seconds"`
}
