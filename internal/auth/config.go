package auth

import "time"

// Config holds the identity provider settings used to verify bearer tokens.
type Config struct {
	Issuer   string
	JWKSURL  string
	Audience string
	// JWKSRefresh is the background key refresh interval; 0 means 15m.
	JWKSRefresh time.Duration
}
