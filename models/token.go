package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims is the signed identity carried by bearer tokens. It lives in
// models so that services, middleware and ws can share it.
type TokenClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}
