// Package services holds the business rules between the HTTP/socket layer and
// the repositories.
//
// A service never sees http.Request or http.ResponseWriter and never runs SQL
// itself. It takes domain models, enforces ownership and membership rules,
// calls repositories and hands committed results to the ws hub for fan-out.
// Failures are returned as wrapped pkg sentinel errors.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg"
	"github.com/akinalp/parley/repository"
	"github.com/akinalp/parley/ws"
)

const bcryptCost = 12

// AuthService issues and checks identity claims.
type AuthService interface {
	Signup(ctx context.Context, req *models.SignupRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error)
	// Logout marks the caller offline unless a socket of theirs is still live;
	// while one is, the presence registry owns the status.
	Logout(ctx context.Context, userID string) error
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

type authService struct {
	userRepo  repository.UserRepository
	presence  PresenceService
	hub       ws.Broadcaster
	jwtSecret []byte
	tokenExp  time.Duration
	now       func() time.Time
	log       *zap.Logger
}

// NewAuthService, constructor.
func NewAuthService(
	userRepo repository.UserRepository,
	presence PresenceService,
	hub ws.Broadcaster,
	jwtSecret string,
	tokenExp time.Duration,
	log *zap.Logger,
) AuthService {
	return &authService{
		userRepo:  userRepo,
		presence:  presence,
		hub:       hub,
		jwtSecret: []byte(jwtSecret),
		tokenExp:  tokenExp,
		now:       time.Now,
		log:       log,
	}
}

// Signup creates the account, online from the start, and returns a token.
func (s *authService) Signup(ctx context.Context, req *models.SignupRequest) (*models.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: string(hash),
		Avatar:       models.AvatarGlyph(req.Username),
		Status:       models.UserStatusOnline,
		Settings:     models.DefaultSettings(),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err // ErrAlreadyExists when the username is taken
	}

	s.log.Info("user signed up", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return s.respond(user)
}

func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid username or password", pkg.ErrUnauthorized)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid username or password", pkg.ErrUnauthorized)
	}

	if err := s.userRepo.UpdatePresence(ctx, user.ID, models.UserStatusOnline, nil); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	user.Status = models.UserStatusOnline

	return s.respond(user)
}

func (s *authService) Logout(ctx context.Context, userID string) error {
	if s.hub.IsOnline(userID) {
		return nil
	}
	return s.presence.MarkOffline(ctx, userID)
}

func (s *authService) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("%w: invalid token claims", pkg.ErrUnauthorized)
	}
	return claims, nil
}

func (s *authService) respond(user *models.User) (*models.AuthResponse, error) {
	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Token: token, User: user}, nil
}

// issueToken signs an HS256 token carrying {userId, username}.
func (s *authService) issueToken(user *models.User) (string, error) {
	now := s.now()
	claims := models.TokenClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExp)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
