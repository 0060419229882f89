package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/support-desk/internal/auth"
	"github.com/suPer8Hu/support-desk/internal/chat"
	"github.com/suPer8Hu/support-desk/internal/config"
	"github.com/suPer8Hu/support-desk/internal/escalation"
	"github.com/suPer8Hu/support-desk/internal/httpapi/handlers"
	"github.com/suPer8Hu/support-desk/internal/sentiment"
)

const testSecret = "test-secret"

type nopEmitter struct{}

func (nopEmitter) Emit(chat.Audience, string, any) {}
func (nopEmitter) Join(string, string)              {}
func (nopEmitter) Leave(string, string)             {}

type fakeTickets struct {
	tickets []escalation.Ticket
	ackErr  error
	ackedBy string
}

func (f *fakeTickets) List(_ context.Context, status escalation.Status, limit int) ([]escalation.Ticket, error) {
	var out []escalation.Ticket
	for _, t := range f.tickets {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeTickets) Ack(_ context.Context, id, by string, at time.Time) (*escalation.Ticket, error) {
	if f.ackErr != nil {
		return nil, f.ackErr
	}
	f.ackedBy = by
	return &escalation.Ticket{ID: id, Status: escalation.StatusAcknowledged, AcknowledgedBy: &by, AcknowledgedAt: &at}, nil
}

type fakeTranscripts struct {
	archived map[string][]chat.Message
	cleared  []string
}

func (f *fakeTranscripts) Load(_ context.Context, id string) ([]chat.Message, error) {
	return f.archived[id], nil
}

func (f *fakeTranscripts) Clear(_ context.Context, id string) error {
	f.cleared = append(f.cleared, id)
	return nil
}

type fixture struct {
	engine      *gin.Engine
	store       *chat.MemoryStore
	tickets     *fakeTickets
	transcripts *fakeTranscripts
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zerolog.Nop()
	store := chat.NewMemoryStore(2*time.Second, 10, log)
	responder := chat.NewResponseGenerator(nil, chat.ResponderConfig{}, log)
	policy, err := chat.NewPolicy(chat.DefaultKeywords(), sentiment.NewSafe(sentiment.NewLexicon(nil), time.Second, log), responder.Available, -0.4)
	require.NoError(t, err)
	router := chat.NewRouter(store, policy, responder, nopEmitter{}, chat.RouterOptions{Sleep: func(time.Duration) {}}, log)

	h := handlers.NewHandler(router, "support-desk", log)
	f := &fixture{store: store, tickets: &fakeTickets{}, transcripts: &fakeTranscripts{archived: map[string][]chat.Message{}}}
	h.Tickets = f.tickets
	h.Transcripts = f.transcripts

	cfg := &config.Config{JWTSecret: testSecret, AllowedOrigins: []string{"*"}}
	f.engine = NewRouter(cfg, h, nil, log)
	return f
}

func bearer(t *testing.T, role auth.Role) string {
	t.Helper()
	tok, err := auth.SignJWT(auth.Identity{ID: "9", Username: "alice", Role: role}, testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *fixture) do(t *testing.T, method, path, authz string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func TestPublicEndpoints(t *testing.T) {
	f := newFixture(t)

	w, env := f.do(t, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, _ = f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")

	w, env = f.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40400, env.Code)
}

func TestStaffAPI_RequiresStaffRole(t *testing.T) {
	f := newFixture(t)

	w, env := f.do(t, http.MethodGet, "/support/conversations", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 40101, env.Code)

	w, env = f.do(t, http.MethodGet, "/support/conversations", bearer(t, auth.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 40301, env.Code)
}

func TestStaffAPI_Conversations(t *testing.T) {
	f := newFixture(t)
	staff := bearer(t, auth.RoleStaff)

	f.store.Append(chat.Message{ID: "m1", UserID: "42", Author: chat.AuthorCustomer, Content: "hello", IsCustomer: true, Timestamp: time.Now()})

	w, env := f.do(t, http.MethodGet, "/support/conversations", staff)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Conversations []chat.ConversationSummary `json:"conversations"`
		Total         int                        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "42", list.Conversations[0].UserID)
	assert.Equal(t, 1, list.Conversations[0].MessageCount)

	w, env = f.do(t, http.MethodGet, "/support/conversations/42/messages", staff)
	require.Equal(t, http.StatusOK, w.Code)
	var tr struct {
		Source   string         `json:"source"`
		Messages []chat.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tr))
	assert.Equal(t, "live", tr.Source)
	require.Len(t, tr.Messages, 1)
	assert.Equal(t, "hello", tr.Messages[0].Content)

	w, _ = f.do(t, http.MethodDelete, "/support/conversations/42", staff)
	require.Equal(t, http.StatusOK, w.Code)
	_, ok := f.store.Get("42")
	assert.False(t, ok)
	assert.Equal(t, []string{"42"}, f.transcripts.cleared)

	w, env = f.do(t, http.MethodGet, "/support/conversations/42/messages", staff)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40401, env.Code)
}

func TestStaffAPI_MessagesFallBackToArchive(t *testing.T) {
	f := newFixture(t)
	f.transcripts.archived["7"] = []chat.Message{{ID: "old", UserID: "7", Content: "archived"}}

	w, env := f.do(t, http.MethodGet, "/support/conversations/7/messages", bearer(t, auth.RoleStaff))
	require.Equal(t, http.StatusOK, w.Code)
	var tr struct {
		Source   string         `json:"source"`
		Messages []chat.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tr))
	assert.Equal(t, "archive", tr.Source)
	require.Len(t, tr.Messages, 1)
	assert.Equal(t, "archived", tr.Messages[0].Content)
}

func TestStaffAPI_Escalations(t *testing.T) {
	f := newFixture(t)
	staff := bearer(t, auth.RoleStaff)
	f.tickets.tickets = []escalation.Ticket{
		{ID: "t1", CustomerID: "1", Status: escalation.StatusOpen},
		{ID: "t2", CustomerID: "2", Status: escalation.StatusAcknowledged},
	}

	w, env := f.do(t, http.MethodGet, "/support/escalations?status=open", staff)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Tickets []escalation.Ticket `json:"tickets"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out.Tickets, 1)
	assert.Equal(t, "t1", out.Tickets[0].ID)

	w, env = f.do(t, http.MethodGet, "/support/escalations?status=bogus", staff)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40001, env.Code)

	w, env = f.do(t, http.MethodGet, "/support/escalations?limit=0", staff)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40002, env.Code)

	w, _ = f.do(t, http.MethodPost, "/support/escalations/t1/ack", staff)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", f.tickets.ackedBy)

	f.tickets.ackErr = escalation.ErrAlreadyAcknowledged
	w, env = f.do(t, http.MethodPost, "/support/escalations/t1/ack", staff)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 40901, env.Code)

	f.tickets.ackErr = escalation.ErrNotFound
	w, _ = f.do(t, http.MethodPost, "/support/escalations/zz/ack", staff)
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.tickets.ackErr = errors.New("db down")
	w, _ = f.do(t, http.MethodPost, "/support/escalations/t1/ack", staff)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCORS_PreflightAndOrigin(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/support/conversations", nil)
	req.Header.Set("Origin", "https://shop.example")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))
}
