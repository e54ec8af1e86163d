// Package models defines the domain types shared by the repository, service,
// handler and ws layers, together with the request payloads and their
// validation rules.
package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/akinalp/parley/pkg/validate"
)

// UserStatus is a user's presence state.
type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusOffline UserStatus = "offline"
	UserStatusAway    UserStatus = "away"
)

// Valid reports whether s is a known status.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusOnline, UserStatusOffline, UserStatusAway:
		return true
	}
	return false
}

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// UserSettings are per-user client preferences.
type UserSettings struct {
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
}

// DefaultSettings is what a fresh account starts with.
func DefaultSettings() UserSettings {
	return UserSettings{Theme: ThemeLight, Notifications: true}
}

// User is a registered account. PasswordHash never leaves the server.
type User struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	PasswordHash string       `json:"-"`
	Avatar       string       `json:"avatar"`
	Status       UserStatus   `json:"status"`
	LastSeen     *time.Time   `json:"lastSeen"`
	Settings     UserSettings `json:"settings"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Summary is the public projection of u.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Username: u.Username,
		Avatar:   u.Avatar,
		Status:   u.Status,
		LastSeen: u.LastSeen,
	}
}

// UserSummary is what other users see: the user directory and conversation
// participant lists.
type UserSummary struct {
	ID       string     `json:"id"`
	Username string     `json:"username"`
	Avatar   string     `json:"avatar"`
	Status   UserStatus `json:"status"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// AvatarGlyph derives the two-letter avatar shown for a username.
func AvatarGlyph(username string) string {
	runes := []rune(username)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	for i, r := range runes {
		runes[i] = unicode.ToUpper(r)
	}
	return string(runes)
}

// SignupRequest is the POST /api/auth/signup body.
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=20,username"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// Validate trims the username and checks both fields.
func (r *SignupRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	return validate.Struct(r)
}

// LoginRequest is the POST /api/auth/login body.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	return validate.Struct(r)
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// UpdateSettingsRequest is a partial settings patch; nil fields are left
// unchanged.
type UpdateSettingsRequest struct {
	Theme         *string `json:"theme" validate:"omitempty,oneof=light dark"`
	Notifications *bool   `json:"notifications"`
}

func (r *UpdateSettingsRequest) Validate() error {
	return validate.Struct(r)
}

// Apply merges the patch into s.
func (r *UpdateSettingsRequest) Apply(s UserSettings) UserSettings {
	if r.Theme != nil {
		s.Theme = *r.Theme
	}
	if r.Notifications != nil {
		s.Notifications = *r.Notifications
	}
	return s
}

// SetStatusRequest is the payload of the socket setStatus op.
type SetStatusRequest struct {
	Status UserStatus `json:"status" validate:"required,oneof=online away"`
}

func (r *SetStatusRequest) Validate() error {
	return validate.Struct(r)
}
