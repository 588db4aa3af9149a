package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"devmate/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT 'New Chat',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_active_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, last_active_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			route_trace TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at, seq)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL,
			assigned_to TEXT NOT NULL,
			project_id TEXT,
			FOREIGN KEY (project_id) REFERENCES projects(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_user ON tickets(assigned_to, status)`,
		`CREATE TABLE IF NOT EXISTS pull_requests (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			summary TEXT,
			ticket_id TEXT,
			author_id TEXT NOT NULL,
			project_id TEXT,
			FOREIGN KEY (ticket_id) REFERENCES tickets(id)
		)`,
		`CREATE TABLE IF NOT EXISTS git_diffs (
			id TEXT PRIMARY KEY,
			diff_text TEXT NOT NULL,
			pr_id TEXT NOT NULL,
			FOREIGN KEY (pr_id) REFERENCES pull_requests(id)
		)`,
		`CREATE TABLE IF NOT EXISTS learnings (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			summary TEXT,
			tags TEXT,
			url TEXT
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Exec runs a raw statement. Used for seeding and maintenance, not by the
// turn path.
func (s *SQLiteStore) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession creates a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, title, created_at, last_active_at) VALUES (?, ?, ?, ?, ?)`,
		session.SessionID, session.UserID, session.Title, session.CreatedAt, session.LastActiveAt)
	return err
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, title, created_at, last_active_at FROM sessions WHERE session_id = ?`,
		sessionID).Scan(&session.SessionID, &session.UserID, &session.Title, &session.CreatedAt, &session.LastActiveAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions lists a user's sessions, most recently active first.
func (s *SQLiteStore) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, user_id, title, created_at, last_active_at FROM sessions WHERE user_id = ? ORDER BY last_active_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var sess domain.Session
		if err := rows.Scan(&sess.SessionID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.LastActiveAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// RenameSession updates a session's title.
func (s *SQLiteStore) RenameSession(ctx context.Context, sessionID, title string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ? WHERE session_id = ?`, title, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	return nil
}

// TouchSession bumps a session's last_active_at.
func (s *SQLiteStore) TouchSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_active_at = ? WHERE session_id = ?`, time.Now(), sessionID)
	return err
}

// DeleteSession deletes a session and, via the FK cascade, its messages.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	return nil
}

// AppendMessage writes a new message, assigning the next per-session sequence
// number inside a transaction so ties on created_at still order correctly.
func (s *SQLiteStore) AppendMessage(ctx context.Context, message *domain.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?`,
		message.SessionID).Scan(&seq); err != nil {
		return err
	}
	message.Seq = seq

	var trace sql.NullString
	if message.RouteTrace != nil {
		data, err := json.Marshal(message.RouteTrace)
		if err != nil {
			return fmt.Errorf("failed to marshal route trace: %w", err)
		}
		trace = sql.NullString{String: string(data), Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (message_id, session_id, seq, role, content, route_trace, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		message.MessageID, message.SessionID, seq, message.Role, message.Content, trace, message.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func scanMessages(rows *sql.Rows) ([]domain.Message, error) {
	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var trace sql.NullString
		if err := rows.Scan(&msg.MessageID, &msg.SessionID, &msg.Seq, &msg.Role, &msg.Content, &trace, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if trace.Valid {
			var rt domain.RouteTrace
			if err := json.Unmarshal([]byte(trace.String), &rt); err == nil {
				msg.RouteTrace = &rt
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ListMessages retrieves messages for a session, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	query := `SELECT message_id, session_id, seq, role, content, route_trace, created_at FROM messages WHERE session_id = ? ORDER BY created_at ASC, seq ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// RecentMessages returns the newest n messages, reordered oldest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, sessionID string, n int) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, session_id, seq, role, content, route_trace, created_at FROM messages WHERE session_id = ? ORDER BY created_at DESC, seq DESC LIMIT ?`,
		sessionID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// TicketsByUser returns the acting user's tickets, optionally filtered by
// status and keyword (title/description substring, case-insensitive).
func (s *SQLiteStore) TicketsByUser(ctx context.Context, userID, status, keyword string) ([]domain.Ticket, error) {
	query := `SELECT t.id, t.title, COALESCE(t.description, ''), t.status, t.assigned_to, COALESCE(t.project_id, ''), COALESCE(p.name, '')
		FROM tickets t LEFT JOIN projects p ON t.project_id = p.id
		WHERE t.assigned_to = ?`
	args := []interface{}{userID}
	if status != "" {
		query += ` AND LOWER(t.status) = LOWER(?)`
		args = append(args, status)
	}
	if keyword != "" {
		query += ` AND (LOWER(t.title) LIKE ? OR LOWER(t.description) LIKE ?)`
		pattern := "%" + strings.ToLower(keyword) + "%"
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY t.status, t.title`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.AssignedTo, &t.ProjectID, &t.ProjectName); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// PullRequestsByTicket returns PRs for a ticket the acting user is assigned to.
func (s *SQLiteStore) PullRequestsByTicket(ctx context.Context, ticketID, userID string) ([]domain.PullRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pr.id, pr.title, COALESCE(pr.summary, ''), COALESCE(pr.ticket_id, ''), pr.author_id, COALESCE(pr.project_id, '')
		 FROM pull_requests pr JOIN tickets t ON pr.ticket_id = t.id
		 WHERE pr.ticket_id = ? AND t.assigned_to = ? ORDER BY pr.title`,
		ticketID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prs []domain.PullRequest
	for rows.Next() {
		var pr domain.PullRequest
		if err := rows.Scan(&pr.ID, &pr.Title, &pr.Summary, &pr.TicketID, &pr.AuthorID, &pr.ProjectID); err != nil {
			return nil, err
		}
		prs = append(prs, pr)
	}
	return prs, rows.Err()
}

// DiffsForPR returns the diffs for a PR visible to the acting user: the PR's
// author or the assignee of its ticket.
func (s *SQLiteStore) DiffsForPR(ctx context.Context, prID, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.diff_text FROM git_diffs d
		 JOIN pull_requests pr ON d.pr_id = pr.id
		 LEFT JOIN tickets t ON pr.ticket_id = t.id
		 WHERE d.pr_id = ? AND (pr.author_id = ? OR t.assigned_to = ?)`,
		prID, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var diffs []string
	for rows.Next() {
		var diff string
		if err := rows.Scan(&diff); err != nil {
			return nil, err
		}
		diffs = append(diffs, diff)
	}
	return diffs, rows.Err()
}

// SearchLearnings returns learning resources matching the query in title,
// summary, or tags. Learning resources are public.
func (s *SQLiteStore) SearchLearnings(ctx context.Context, query string) ([]domain.Learning, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, COALESCE(summary, ''), COALESCE(tags, ''), COALESCE(url, '')
		 FROM learnings
		 WHERE LOWER(title) LIKE ? OR LOWER(summary) LIKE ? OR LOWER(tags) LIKE ?
		 ORDER BY title`,
		pattern, pattern, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var learnings []domain.Learning
	for rows.Next() {
		var l domain.Learning
		if err := rows.Scan(&l.ID, &l.Title, &l.Summary, &l.Tags, &l.URL); err != nil {
			return nil, err
		}
		learnings = append(learnings, l)
	}
	return learnings, rows.Err()
}

// QueryReadOnly executes one guarded SELECT with :user_id bound to the acting
// user, returning at most limit stringified rows. Callers must run the query
// through the NL2SQL guard first; this method only enforces the row cap.
func (s *SQLiteStore) QueryReadOnly(ctx context.Context, query, userID string, limit int) (*domain.SQLResult, error) {
	// Public-table queries carry no parameter; binding one anyway makes
	// database/sql reject the statement.
	var args []interface{}
	if strings.Contains(strings.ToLower(query), ":user_id") {
		args = append(args, sql.Named("user_id", userID))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &domain.SQLResult{Columns: cols}
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if limit > 0 && len(result.Rows) >= limit {
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range values {
			switch val := v.(type) {
			case nil:
				row[i] = ""
			case []byte:
				row[i] = string(val)
			case time.Time:
				row[i] = val.Format(time.RFC3339)
			default:
				row[i] = fmt.Sprintf("%v", val)
			}
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}
