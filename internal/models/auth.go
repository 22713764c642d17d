package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	Role      UserRole `json:"role"`
	StudentID string   `json:"student_id,omitempty"`
	FullName  string   `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the engine's caller identity.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{UserID: c.UserID, Role: c.Role, StudentID: c.StudentID}
}
