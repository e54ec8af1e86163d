package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg"
	"github.com/akinalp/parley/ws"
)

const testSecret = "test-secret-at-least-32-bytes-long!!"

func newAuth(t *testing.T, f *fixture) (*authService, PresenceService) {
	t.Helper()
	presence := NewPresenceService(f.users, f.convs, nil, f.hub, zaptest.NewLogger(t))
	t.Cleanup(presence.Close)
	svc := NewAuthService(f.users, presence, f.hub, testSecret, time.Hour, zaptest.NewLogger(t))
	return svc.(*authService), presence
}

func TestSignupAndLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	auth, _ := newAuth(t, f)

	resp, err := auth.Signup(ctx, &models.SignupRequest{Username: "  alice ", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.User.Username != "alice" || resp.User.Avatar != "AL" || resp.User.Status != models.UserStatusOnline {
		t.Errorf("user = %+v", resp.User)
	}

	claims, err := auth.ValidateAccessToken(resp.Token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != resp.User.ID || claims.Username != "alice" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := auth.Login(ctx, &models.LoginRequest{Username: "alice", Password: "wrong"}); !errors.Is(err, pkg.ErrUnauthorized) {
		t.Errorf("wrong password err = %v, want ErrUnauthorized", err)
	}
	if _, err := auth.Login(ctx, &models.LoginRequest{Username: "nobody", Password: "secret1"}); !errors.Is(err, pkg.ErrUnauthorized) {
		t.Errorf("unknown user err = %v, want ErrUnauthorized", err)
	}

	login, err := auth.Login(ctx, &models.LoginRequest{Username: "alice", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	if login.User.ID != resp.User.ID {
		t.Errorf("login user = %s, want %s", login.User.ID, resp.User.ID)
	}
}

func TestSignupRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	auth, _ := newAuth(t, f)

	if _, err := auth.Signup(ctx, &models.SignupRequest{Username: "bob", Password: "secret1"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		req  models.SignupRequest
		want error
	}{
		{"Taken", models.SignupRequest{Username: "bob", Password: "secret1"}, pkg.ErrAlreadyExists},
		{"ShortUsername", models.SignupRequest{Username: "bo", Password: "secret1"}, pkg.ErrBadRequest},
		{"WeakPassword", models.SignupRequest{Username: "carol", Password: "123"}, pkg.ErrBadRequest},
		{"BadCharacters", models.SignupRequest{Username: "car ol", Password: "secret1"}, pkg.ErrBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := auth.Signup(ctx, &tt.req); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateAccessTokenRejects(t *testing.T) {
	f := newFixture(t)
	auth, _ := newAuth(t, f)
	user := &models.User{ID: "u1", Username: "alice"}

	expired := *auth
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := expired.issueToken(user)
	if err != nil {
		t.Fatal(err)
	}

	other := *auth
	other.jwtSecret = []byte("another-secret-another-secret-!!")
	forged, err := other.issueToken(user)
	if err != nil {
		t.Fatal(err)
	}

	for name, token := range map[string]string{"Expired": stale, "WrongKey": forged, "Garbage": "not.a.jwt"} {
		t.Run(name, func(t *testing.T) {
			if _, err := auth.ValidateAccessToken(token); !errors.Is(err, pkg.ErrUnauthorized) {
				t.Errorf("err = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestLogoutRespectsLiveSockets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	auth, _ := newAuth(t, f)
	alice := f.user(t, "alice")
	if err := f.users.UpdatePresence(ctx, alice.ID, models.UserStatusOnline, nil); err != nil {
		t.Fatal(err)
	}

	f.hub.setOnline(alice.ID, true)
	if err := auth.Logout(ctx, alice.ID); err != nil {
		t.Fatal(err)
	}
	if u, _ := f.users.GetByID(ctx, alice.ID); u.Status != models.UserStatusOnline {
		t.Errorf("status = %s while a socket is live, want online", u.Status)
	}

	f.hub.setOnline(alice.ID, false)
	if err := auth.Logout(ctx, alice.ID); err != nil {
		t.Fatal(err)
	}
	u, _ := f.users.GetByID(ctx, alice.ID)
	if u.Status != models.UserStatusOffline || u.LastSeen == nil {
		t.Errorf("after logout user = %+v", u)
	}

	events := f.hub.ops(ws.OpUserStatusChange)
	if len(events) != 1 || events[0].scope != "all" {
		t.Fatalf("status events = %+v", events)
	}
	data := events[0].event.Data.(ws.StatusChangeData)
	if data.Status != "offline" || data.LastSeen == nil {
		t.Errorf("payload = %+v", data)
	}
}
