package models

import "time"

// JWTClaims is the verified identity behind a chat request
type JWTClaims struct {
	Sub       string    `json:"sub"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	Iss       string    `json:"iss"`
	Aud       string    `json:"aud,omitempty"`
	ExpiresAt time.Time `json:"exp"`
	IssuedAt  time.Time `json:"iat"`
}

// UserID is the key conversation state is stored under. Only one issuer is
// trusted, so the subject alone is unique.
func (c *JWTClaims) UserID() string {
	return c.Sub
}
