package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devmate/internal/classifier"
	"devmate/internal/composer"
	"devmate/internal/config"
	"devmate/internal/domain"
	"devmate/internal/embedding"
	"devmate/internal/llm"
	"devmate/internal/nl2sql"
	"devmate/internal/recommend"
	"devmate/internal/retriever"
	"devmate/internal/service"
	"devmate/internal/store"
	"devmate/internal/tools"
	"devmate/internal/vectorindex"
	"devmate/tests/helpers"
)

func newTestHandler(t *testing.T) (*Handler, *store.SQLiteStore, *llm.MockClient) {
	t.Helper()

	st := helpers.NewTestStore(t)
	helpers.SeedFixtures(t, st)

	mock := llm.NewMockClient()
	mock.RespondFn = func(req *llm.ChatCompletionRequest) string {
		switch {
		case llm.SystemPromptContains(req, "query router"):
			return "conversational"
		case llm.SystemPromptContains(req, "concise title"):
			return "Test Title"
		default:
			return "Hello from the assistant."
		}
	}

	schema := config.DefaultSchema()
	guard, err := nl2sql.NewGuard(context.Background(), schema)
	require.NoError(t, err)
	ix := vectorindex.NewInMemory(embedding.Func(embedding.NewLocalEngine()))

	svc := service.New(service.Options{
		Store:         st,
		Classifier:    classifier.New(mock, "test-model", 4),
		Translator:    nl2sql.NewTranslator(mock, "test-model", guard, st, schema, 50, 5*time.Second),
		Retriever:     retriever.New(ix, 8, 4000),
		Dispatcher:    tools.NewDispatcher(st, mock, "test-model"),
		Composer:      composer.New(mock, "test-model", 4),
		Recommender:   recommend.New(st, mock, "test-model"),
		Client:        mock,
		Model:         "test-model",
		HistoryWindow: 4,
		TurnTimeout:   30 * time.Second,
	})
	return NewHandler(svc), st, mock
}

func TestPostTurn(t *testing.T) {
	e := echo.New()
	h, st, _ := newTestHandler(t)

	body := `{"user_id":"user_1","query":"hello there"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/turns", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.PostTurn(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.TurnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "Hello from the assistant.", resp.Response)

	messages, err := st.ListMessages(context.Background(), resp.SessionID, 0)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func TestPostTurnValidation(t *testing.T) {
	e := echo.New()
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/turns", strings.NewReader(`{"user_id":"u1","query":""}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, h.PostTurn(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostTurnUnknownSession(t *testing.T) {
	e := echo.New()
	h, _, _ := newTestHandler(t)

	body := `{"user_id":"user_1","query":"hi","session_id":"sess_missing"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/turns", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, h.PostTurn(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostRecommendations(t *testing.T) {
	e := echo.New()
	h, st, _ := newTestHandler(t)

	helpers.MustCreateSession(t, st, &domain.Session{
		SessionID: "sess_1", UserID: "user_1", Title: "T",
		CreatedAt: time.Now(), LastActiveAt: time.Now(),
	})
	require.NoError(t, st.AppendMessage(context.Background(), &domain.Message{
		MessageID: "msg_1", SessionID: "sess_1", Role: domain.RoleUser,
		Content: "I found a bug in the login flow", CreatedAt: time.Now(),
	}))

	body := `{"session_id":"sess_1","num_messages":5}`
	req := httptest.NewRequest(http.MethodPost, "/v1/recommendations", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, h.PostRecommendations(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.RecommendationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.GreaterOrEqual(t, len(resp.Suggestions), 2)
	assert.LessOrEqual(t, len(resp.Suggestions), 3)
}

func TestPostRecommendationsMissingSessionID(t *testing.T) {
	e := echo.New()
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/recommendations", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, h.PostRecommendations(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSessionsOrderedByActivity(t *testing.T) {
	e := echo.New()
	h, st, _ := newTestHandler(t)

	now := time.Now()
	helpers.MustCreateSession(t, st, &domain.Session{
		SessionID: "sess_old", UserID: "user_1", Title: "Old",
		CreatedAt: now.Add(-2 * time.Hour), LastActiveAt: now.Add(-2 * time.Hour),
	})
	helpers.MustCreateSession(t, st, &domain.Session{
		SessionID: "sess_new", UserID: "user_1", Title: "New",
		CreatedAt: now.Add(-time.Hour), LastActiveAt: now,
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/users/user_1/sessions", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("user_id")
	c.SetParamValues("user_1")

	require.NoError(t, h.ListSessions(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sessions []domain.Session `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sessions, 2)
	assert.Equal(t, "sess_new", resp.Sessions[0].SessionID)
}

func TestRenameAndDeleteSession(t *testing.T) {
	e := echo.New()
	h, st, _ := newTestHandler(t)

	helpers.MustCreateSession(t, st, &domain.Session{
		SessionID: "sess_1", UserID: "user_1", Title: "T",
		CreatedAt: time.Now(), LastActiveAt: time.Now(),
	})

	req := httptest.NewRequest(http.MethodPatch, "/v1/sessions/sess_1", strings.NewReader(`{"title":"Renamed"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues("sess_1")
	require.NoError(t, h.RenameSession(c))
	require.Equal(t, http.StatusOK, rec.Code)

	session, err := st.GetSession(context.Background(), "sess_1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", session.Title)

	req = httptest.NewRequest(http.MethodDelete, "/v1/sessions/sess_1", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues("sess_1")
	require.NoError(t, h.DeleteSession(c))
	require.Equal(t, http.StatusOK, rec.Code)

	session, err = st.GetSession(context.Background(), "sess_1")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestDeleteSessionNotFound(t *testing.T) {
	e := echo.New()
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/v1/sessions/sess_missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues("sess_missing")

	require.NoError(t, h.DeleteSession(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSessionMessagesPaging(t *testing.T) {
	e := echo.New()
	h, st, _ := newTestHandler(t)

	helpers.MustCreateSession(t, st, &domain.Session{
		SessionID: "sess_1", UserID: "user_1", Title: "T",
		CreatedAt: time.Now(), LastActiveAt: time.Now(),
	})
	for i := 0; i < 3; i++ {
		require.NoError(t, st.AppendMessage(context.Background(), &domain.Message{
			MessageID: "msg_" + string(rune('a'+i)), SessionID: "sess_1",
			Role: domain.RoleUser, Content: "m", CreatedAt: time.Now(),
		}))
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/sess_1/messages?limit=2", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues("sess_1")

	require.NoError(t, h.GetSessionMessages(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []domain.Message `json:"messages"`
		HasMore  bool             `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Messages, 2)
	assert.True(t, resp.HasMore)
}

func TestHealth(t *testing.T) {
	e := echo.New()
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Health(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
}
