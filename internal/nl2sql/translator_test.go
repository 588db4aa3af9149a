package nl2sql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devmate/internal/config"
	"devmate/internal/domain"
	"devmate/internal/llm"
	"devmate/internal/store"
)

// recordingStore counts QueryReadOnly calls and returns scripted results.
type recordingStore struct {
	store.Store

	calls   int
	queries []string
	results []*domain.SQLResult
	errs    []error
}

func (r *recordingStore) QueryReadOnly(ctx context.Context, query, userID string, limit int) (*domain.SQLResult, error) {
	idx := r.calls
	r.calls++
	r.queries = append(r.queries, query)
	var res *domain.SQLResult
	var err error
	if idx < len(r.results) {
		res = r.results[idx]
	}
	if idx < len(r.errs) {
		err = r.errs[idx]
	}
	return res, err
}

func newTestTranslator(t *testing.T, mock *llm.MockClient, st store.Store) *Translator {
	t.Helper()
	schema := config.DefaultSchema()
	guard, err := NewGuard(context.Background(), schema)
	require.NoError(t, err)
	return NewTranslator(mock, "test-model", guard, st, schema, 50, 5*time.Second)
}

func TestTranslateHappyPath(t *testing.T) {
	mock := llm.NewMockClient()
	mock.EnqueueContent("SELECT COUNT(*) FROM tickets WHERE LOWER(status) = 'open' AND assigned_to = :user_id")

	st := &recordingStore{results: []*domain.SQLResult{
		{Columns: []string{"COUNT(*)"}, Rows: [][]string{{"3"}}},
	}}

	tr := newTestTranslator(t, mock, st)
	res, err := tr.Translate(context.Background(), "how many open tickets do I have?", "user_1")
	require.NoError(t, err)
	assert.Equal(t, 1, st.calls)
	assert.Equal(t, [][]string{{"3"}}, res.Data.Rows)
}

func TestTranslateStripsFences(t *testing.T) {
	mock := llm.NewMockClient()
	mock.EnqueueContent("```sql\nSELECT name FROM projects\n```")

	st := &recordingStore{results: []*domain.SQLResult{{Columns: []string{"name"}}}}
	tr := newTestTranslator(t, mock, st)

	res, err := tr.Translate(context.Background(), "list projects", "user_1")
	require.NoError(t, err)
	assert.Equal(t, "SELECT name FROM projects", res.Query)
}

func TestTranslateRejectedSQLNeverExecuted(t *testing.T) {
	mock := llm.NewMockClient()
	mock.EnqueueContent("DELETE FROM tickets WHERE assigned_to = :user_id")

	st := &recordingStore{}
	tr := newTestTranslator(t, mock, st)

	_, err := tr.Translate(context.Background(), "clear my tickets", "user_1")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, st.calls)
	// Guard rejection is terminal: no regeneration either.
	assert.Len(t, mock.Requests(), 1)
}

func TestTranslateOneCorrectiveRegeneration(t *testing.T) {
	mock := llm.NewMockClient()
	mock.EnqueueContent("SELECT bogus_column FROM tickets WHERE assigned_to = :user_id")
	mock.EnqueueContent("SELECT id FROM tickets WHERE assigned_to = :user_id")

	st := &recordingStore{
		results: []*domain.SQLResult{nil, {Columns: []string{"id"}, Rows: [][]string{{"t1"}}}},
		errs:    []error{errors.New("no such column: bogus_column"), nil},
	}
	tr := newTestTranslator(t, mock, st)

	res, err := tr.Translate(context.Background(), "my ticket ids", "user_1")
	require.NoError(t, err)
	assert.Equal(t, 2, st.calls)
	assert.Equal(t, "SELECT id FROM tickets WHERE assigned_to = :user_id", res.Query)

	// The corrective request carries the failed statement and the error.
	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	correction := reqs[1].Messages[len(reqs[1].Messages)-1].Content
	assert.Contains(t, correction, "bogus_column")
}

func TestTranslateSecondFailureTerminates(t *testing.T) {
	mock := llm.NewMockClient()
	mock.EnqueueContent("SELECT bogus FROM tickets WHERE assigned_to = :user_id")
	mock.EnqueueContent("SELECT still_bogus FROM tickets WHERE assigned_to = :user_id")

	st := &recordingStore{
		errs: []error{errors.New("no such column: bogus"), errors.New("no such column: still_bogus")},
	}
	tr := newTestTranslator(t, mock, st)

	_, err := tr.Translate(context.Background(), "my tickets", "user_1")
	require.Error(t, err)
	// Exactly one regeneration: two executions, two generations, no more.
	assert.Equal(t, 2, st.calls)
	assert.Len(t, mock.Requests(), 2)
}
