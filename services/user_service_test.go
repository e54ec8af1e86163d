package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg"
)

func TestUserServiceSettings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewUserService(f.users)
	alice := f.user(t, "alice")

	dark := "dark"
	u, err := svc.UpdateSettings(ctx, alice.ID, &models.UpdateSettingsRequest{Theme: &dark})
	if err != nil {
		t.Fatal(err)
	}
	want := models.UserSettings{Theme: "dark", Notifications: true}
	if diff := cmp.Diff(want, u.Settings); diff != "" {
		t.Errorf("settings (-want +got):\n%s", diff)
	}

	off := false
	if _, err := svc.UpdateSettings(ctx, alice.ID, &models.UpdateSettingsRequest{Notifications: &off}); err != nil {
		t.Fatal(err)
	}
	me, err := svc.Me(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	want.Notifications = false
	if diff := cmp.Diff(want, me.Settings); diff != "" {
		t.Errorf("persisted settings (-want +got):\n%s", diff)
	}

	blue := "blue"
	if _, err := svc.UpdateSettings(ctx, alice.ID, &models.UpdateSettingsRequest{Theme: &blue}); !errors.Is(err, pkg.ErrBadRequest) {
		t.Errorf("err = %v, want ErrBadRequest", err)
	}
}

func TestUserServiceListExcludesCaller(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewUserService(f.users)
	f.user(t, "carol")
	alice := f.user(t, "alice")
	f.user(t, "bob")

	users, err := svc.List(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, u := range users {
		names = append(names, u.Username)
	}
	if diff := cmp.Diff([]string{"bob", "carol"}, names); diff != "" {
		t.Errorf("users (-want +got):\n%s", diff)
	}
}
