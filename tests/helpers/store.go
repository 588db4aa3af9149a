package helpers

import (
	"context"
	"testing"

	"devmate/internal/domain"
	"devmate/internal/store"
)

// NewTestStore returns an in-memory SQLite store wired for cleanup.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

// SeedFixtures loads a small, deterministic data set for integration-style
// tests: one project, two tickets for user_1, one PR with a diff, and two
// learning resources.
func SeedFixtures(t *testing.T, s *store.SQLiteStore) {
	t.Helper()
	ctx := context.Background()

	stmts := []struct {
		query string
		args  []interface{}
	}{
		{`INSERT INTO projects (id, name, description) VALUES (?, ?, ?)`,
			[]interface{}{"proj_1", "Payments", "Payment processing service"}},
		{`INSERT INTO tickets (id, title, description, status, assigned_to, project_id) VALUES (?, ?, ?, ?, ?, ?)`,
			[]interface{}{"tck_1", "Fix login bug", "Users cannot log in with SSO", "Open", "user_1", "proj_1"}},
		{`INSERT INTO tickets (id, title, description, status, assigned_to, project_id) VALUES (?, ?, ?, ?, ?, ?)`,
			[]interface{}{"tck_2", "Add retry to webhook sender", "Webhooks drop on transient failures", "Done", "user_1", "proj_1"}},
		{`INSERT INTO pull_requests (id, title, summary, ticket_id, author_id, project_id) VALUES (?, ?, ?, ?, ?, ?)`,
			[]interface{}{"pr_1", "Fix SSO login", "Corrects the token refresh path", "tck_1", "user_1", "proj_1"}},
		{`INSERT INTO git_diffs (id, diff_text, pr_id) VALUES (?, ?, ?)`,
			[]interface{}{"diff_1", "--- a/auth.go\n+++ b/auth.go\n@@ refresh token before expiry @@", "pr_1"}},
		{`INSERT INTO learnings (id, title, summary, tags, url) VALUES (?, ?, ?, ?, ?)`,
			[]interface{}{"lrn_1", "Go concurrency patterns", "Channels, contexts and worker pools", "go,concurrency", "https://example.com/go-conc"}},
		{`INSERT INTO learnings (id, title, summary, tags, url) VALUES (?, ?, ?, ?, ?)`,
			[]interface{}{"lrn_2", "SQL indexing basics", "When and how to add indexes", "sql,performance", "https://example.com/sql-idx"}},
	}

	for _, stmt := range stmts {
		if _, err := s.Exec(ctx, stmt.query, stmt.args...); err != nil {
			t.Fatalf("failed to seed fixtures: %v", err)
		}
	}
}

// MustCreateSession creates a session or fails the test.
func MustCreateSession(t *testing.T, s store.Store, session *domain.Session) {
	t.Helper()
	if err := s.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
}
