package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for actor access tokens. Tokens are
// minted by the campus identity service; this API only validates them.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	Role      UserRole `json:"role"`
	SocietyID string   `json:"society_id,omitempty"`
	FullName  string   `json:"full_name"`
	jwt.RegisteredClaims
}
