package domain

import "time"

// TokenKind selects which secret and expiry policy a bearer token uses.
type TokenKind string

const (
	TokenKindUser    TokenKind = "user"
	TokenKindService TokenKind = "service"
)

// Claims is the verified payload of a bearer token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}
