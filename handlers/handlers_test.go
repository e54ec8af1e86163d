package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg"
	"github.com/akinalp/parley/pkg/ratelimit"
)

// ─── Fakes ───

type fakeAuth struct {
	signup func(*models.SignupRequest) (*models.AuthResponse, error)
	login  func(*models.LoginRequest) (*models.AuthResponse, error)
	logout []string
}

func (f *fakeAuth) Signup(_ context.Context, req *models.SignupRequest) (*models.AuthResponse, error) {
	return f.signup(req)
}

func (f *fakeAuth) Login(_ context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	return f.login(req)
}

func (f *fakeAuth) Logout(_ context.Context, userID string) error {
	f.logout = append(f.logout, userID)
	return nil
}

func (f *fakeAuth) ValidateAccessToken(string) (*models.TokenClaims, error) {
	return nil, pkg.ErrUnauthorized
}

type fakeConversations struct {
	created bool
	err     error
	read    []string
}

func (f *fakeConversations) List(context.Context, string) ([]models.Conversation, error) {
	return []models.Conversation{}, f.err
}

func (f *fakeConversations) Create(_ context.Context, userID string, req *models.CreateConversationRequest) (*models.Conversation, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return &models.Conversation{ID: "c1", Kind: models.ConversationPrivate, CreatedBy: userID}, f.created, nil
}

func (f *fakeConversations) MarkRead(_ context.Context, conversationID, userID string) error {
	f.read = append(f.read, conversationID+"/"+userID)
	return f.err
}

func (f *fakeConversations) RoomIDsForUser(context.Context, string) ([]string, error) {
	return nil, nil
}

type fakeMessages struct {
	err        error
	lastParams models.MessageListParams
	lastID     string
}

func (f *fakeMessages) List(_ context.Context, conversationID, _ string, params models.MessageListParams) ([]models.Message, error) {
	f.lastID = conversationID
	f.lastParams = params
	return []models.Message{}, f.err
}

func (f *fakeMessages) Send(_ context.Context, userID string, req *models.SendMessageRequest) (*models.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Message{ID: "m1", ConversationID: req.ConversationID, SenderID: userID, Content: req.Content}, nil
}

func (f *fakeMessages) Edit(_ context.Context, messageID, userID string, req *models.EditMessageRequest) (*models.Message, error) {
	f.lastID = messageID
	if f.err != nil {
		return nil, f.err
	}
	return &models.Message{ID: messageID, SenderID: userID, Content: req.Content, Edited: true}, nil
}

func (f *fakeMessages) Delete(_ context.Context, messageID, _ string) error {
	f.lastID = messageID
	return f.err
}

func (f *fakeMessages) ToggleReaction(_ context.Context, messageID, userID string, req *models.ReactRequest) (*models.ReactionResult, error) {
	f.lastID = messageID
	if f.err != nil {
		return nil, f.err
	}
	emoji := req.Emoji
	return &models.ReactionResult{MessageID: messageID, UserID: userID, Emoji: &emoji,
		Reactions: models.Reactions{userID: emoji}}, nil
}

// ─── Helpers ───

var alice = &models.User{ID: "alice-id", Username: "alice"}

func request(method, target, body string, user *models.User) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if user != nil {
		r = r.WithContext(context.WithValue(r.Context(), UserContextKey, user))
	}
	return r
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) pkg.APIResponse {
	t.Helper()
	var resp pkg.APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return resp
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) pkg.APIResponse {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	resp := decode(t, rec)
	if resp.Code != code {
		t.Errorf("code = %q, want %q", resp.Code, code)
	}
	return resp
}

// ─── Tests ───

func TestSignup(t *testing.T) {
	auth := &fakeAuth{signup: func(req *models.SignupRequest) (*models.AuthResponse, error) {
		if req.Username == "taken" {
			return nil, fmt.Errorf("%w: username already taken", pkg.ErrAlreadyExists)
		}
		return &models.AuthResponse{Token: "tok", User: &models.User{ID: "u1", Username: req.Username}}, nil
	}}
	h := NewAuthHandler(auth, nil, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	h.Signup(rec, request(http.MethodPost, "/api/auth/signup", `{"username":"alice","password":"secret1"}`, nil))
	resp := expect(t, rec, http.StatusCreated, "")
	if !resp.Success {
		t.Error("success = false")
	}

	rec = httptest.NewRecorder()
	h.Signup(rec, request(http.MethodPost, "/api/auth/signup", `{"username":"taken","password":"secret1"}`, nil))
	expect(t, rec, http.StatusConflict, pkg.CodeConflict)

	rec = httptest.NewRecorder()
	h.Signup(rec, request(http.MethodPost, "/api/auth/signup", `{"username":`, nil))
	expect(t, rec, http.StatusBadRequest, pkg.CodeValidation)
}

func TestLoginRateLimit(t *testing.T) {
	calls := 0
	auth := &fakeAuth{login: func(req *models.LoginRequest) (*models.AuthResponse, error) {
		calls++
		if req.Password != "right" {
			return nil, fmt.Errorf("%w: invalid username or password", pkg.ErrUnauthorized)
		}
		return &models.AuthResponse{Token: "tok"}, nil
	}}
	h := NewAuthHandler(auth, ratelimit.PerMinute(2, 2, time.Minute), zaptest.NewLogger(t))

	login := func(password string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r := request(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"`+password+`"}`, nil)
		r.RemoteAddr = "203.0.113.9:4000"
		h.Login(rec, r)
		return rec
	}

	expect(t, login("wrong"), http.StatusUnauthorized, pkg.CodeUnauthenticated)
	expect(t, login("right"), http.StatusOK, "")
	// Success cleared the bucket.
	expect(t, login("wrong"), http.StatusUnauthorized, pkg.CodeUnauthenticated)
	expect(t, login("wrong"), http.StatusUnauthorized, pkg.CodeUnauthenticated)

	rec := login("right")
	expect(t, rec, http.StatusTooManyRequests, pkg.CodeRateLimited)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if calls != 4 {
		t.Errorf("service calls = %d, want 4", calls)
	}
}

func TestLogoutRequiresUser(t *testing.T) {
	auth := &fakeAuth{}
	h := NewAuthHandler(auth, nil, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	h.Logout(rec, request(http.MethodPost, "/api/auth/logout", "", nil))
	expect(t, rec, http.StatusUnauthorized, pkg.CodeUnauthenticated)

	rec = httptest.NewRecorder()
	h.Logout(rec, request(http.MethodPost, "/api/auth/logout", "", alice))
	expect(t, rec, http.StatusOK, "")
	if len(auth.logout) != 1 || auth.logout[0] != alice.ID {
		t.Errorf("logout calls = %v", auth.logout)
	}
}

func TestCreateConversationStatus(t *testing.T) {
	for _, tt := range []struct {
		created bool
		want    int
	}{{true, http.StatusCreated}, {false, http.StatusOK}} {
		svc := &fakeConversations{created: tt.created}
		h := NewConversationHandler(svc, zaptest.NewLogger(t))

		rec := httptest.NewRecorder()
		h.Create(rec, request(http.MethodPost, "/api/conversations", `{"participants":["bob-id"]}`, alice))
		expect(t, rec, tt.want, "")
	}
}

func TestMarkRead(t *testing.T) {
	svc := &fakeConversations{}
	h := NewConversationHandler(svc, zaptest.NewLogger(t))

	r := request(http.MethodPatch, "/api/messages/read/c1", "", alice)
	r.SetPathValue("conversationId", "c1")
	rec := httptest.NewRecorder()
	h.MarkRead(rec, r)
	expect(t, rec, http.StatusOK, "")
	if len(svc.read) != 1 || svc.read[0] != "c1/alice-id" {
		t.Errorf("MarkRead calls = %v", svc.read)
	}

	svc.err = fmt.Errorf("%w: not a participant", pkg.ErrAccessDenied)
	rec = httptest.NewRecorder()
	h.MarkRead(rec, r)
	expect(t, rec, http.StatusForbidden, pkg.CodeAccessDenied)
}

func TestListMessagesQuery(t *testing.T) {
	svc := &fakeMessages{}
	h := NewMessageHandler(svc, nil, zaptest.NewLogger(t))

	r := request(http.MethodGet, "/api/messages/c1?limit=1&skip=2", "", alice)
	r.SetPathValue("conversationId", "c1")
	rec := httptest.NewRecorder()
	h.List(rec, r)
	expect(t, rec, http.StatusOK, "")
	if svc.lastID != "c1" || svc.lastParams != (models.MessageListParams{Limit: 1, Offset: 2}) {
		t.Errorf("List called with %s %+v", svc.lastID, svc.lastParams)
	}

	r = request(http.MethodGet, "/api/messages/c1?limit=-3", "", alice)
	r.SetPathValue("conversationId", "c1")
	rec = httptest.NewRecorder()
	h.List(rec, r)
	expect(t, rec, http.StatusBadRequest, pkg.CodeValidation)

	svc.err = fmt.Errorf("%w: not a participant", pkg.ErrAccessDenied)
	r = request(http.MethodGet, "/api/messages/c1", "", alice)
	r.SetPathValue("conversationId", "c1")
	rec = httptest.NewRecorder()
	h.List(rec, r)
	expect(t, rec, http.StatusForbidden, pkg.CodeAccessDenied)
}

func TestSendRateLimitedPerUser(t *testing.T) {
	h := NewMessageHandler(&fakeMessages{}, ratelimit.New(1, 1, time.Minute), zaptest.NewLogger(t))
	body := `{"conversationId":"c1","content":"hi"}`

	rec := httptest.NewRecorder()
	h.Send(rec, request(http.MethodPost, "/api/messages", body, alice))
	expect(t, rec, http.StatusCreated, "")

	rec = httptest.NewRecorder()
	h.Send(rec, request(http.MethodPost, "/api/messages", body, alice))
	expect(t, rec, http.StatusTooManyRequests, pkg.CodeRateLimited)

	rec = httptest.NewRecorder()
	h.Send(rec, request(http.MethodPost, "/api/messages", body, &models.User{ID: "bob-id"}))
	expect(t, rec, http.StatusCreated, "")
}

func TestEditDeleteReactErrors(t *testing.T) {
	svc := &fakeMessages{}
	h := NewMessageHandler(svc, nil, zaptest.NewLogger(t))

	withID := func(r *http.Request) *http.Request {
		r.SetPathValue("id", "m1")
		return r
	}

	rec := httptest.NewRecorder()
	h.React(rec, withID(request(http.MethodPatch, "/api/messages/m1/react", `{"emoji":"👍"}`, alice)))
	resp := expect(t, rec, http.StatusOK, "")
	data := resp.Data.(map[string]any)
	if data["emoji"] != "👍" || data["messageId"] != "m1" {
		t.Errorf("react data = %v", data)
	}

	svc.err = fmt.Errorf("%w: only the sender can change this message", pkg.ErrForbidden)
	rec = httptest.NewRecorder()
	h.Edit(rec, withID(request(http.MethodPatch, "/api/messages/m1", `{"content":"x"}`, alice)))
	expect(t, rec, http.StatusForbidden, pkg.CodeForbidden)

	svc.err = fmt.Errorf("%w: message not found", pkg.ErrNotFound)
	rec = httptest.NewRecorder()
	h.Delete(rec, withID(request(http.MethodDelete, "/api/messages/m1", "", alice)))
	expect(t, rec, http.StatusNotFound, pkg.CodeNotFound)

	svc.err = errors.New("database is locked: SQLITE_BUSY")
	rec = httptest.NewRecorder()
	h.Delete(rec, withID(request(http.MethodDelete, "/api/messages/m1", "", alice)))
	resp = expect(t, rec, http.StatusInternalServerError, pkg.CodeInternal)
	if strings.Contains(resp.Error, "SQLITE") {
		t.Errorf("internal detail leaked: %q", resp.Error)
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"status":"ok"}` {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}
}
