package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims are the claims carried by short-lived access tokens.
// Refresh credentials are opaque and never JWTs; they live in
// active_sessions as one-way hashes.
type TokenClaims struct {
	ActorID string `json:"actor_id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}
