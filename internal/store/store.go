// Package store defines the storage interface and implementations.
package store

import (
	"context"

	"devmate/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ListSessions(ctx context.Context, userID string) ([]domain.Session, error)
	RenameSession(ctx context.Context, sessionID, title string) error
	TouchSession(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, sessionID string) error

	// Message operations. AppendMessage assigns the per-session sequence
	// number; messages are immutable once written.
	AppendMessage(ctx context.Context, message *domain.Message) error
	ListMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)
	RecentMessages(ctx context.Context, sessionID string, n int) ([]domain.Message, error)

	// Read paths for the tool dispatcher, always scoped to the acting user
	// except for public learning resources.
	TicketsByUser(ctx context.Context, userID, status, keyword string) ([]domain.Ticket, error)
	PullRequestsByTicket(ctx context.Context, ticketID, userID string) ([]domain.PullRequest, error)
	DiffsForPR(ctx context.Context, prID, userID string) ([]string, error)
	SearchLearnings(ctx context.Context, query string) ([]domain.Learning, error)

	// QueryReadOnly executes one already-guarded SELECT with the acting user
	// bound to :user_id, capped at limit rows.
	QueryReadOnly(ctx context.Context, query, userID string, limit int) (*domain.SQLResult, error)

	// Lifecycle
	Close() error
}
