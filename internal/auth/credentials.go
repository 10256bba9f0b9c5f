// Package auth supplies the bearer credential used to open live connections
// and call the REST API.
package auth

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oggyb/jobswipe/internal/config"
	svcErr "github.com/oggyb/jobswipe/internal/errors"
)

// CredentialSource returns the current bearer token, or "" when the user is
// signed out. It is read once per connection open and never refreshed
// mid-connection.
type CredentialSource interface {
	Token() string
}

// Static is a fixed token.
type Static string

func (s Static) Token() string { return strings.TrimSpace(string(s)) }

// File reads the token from a file on every call so a sign-in performed by
// another process is picked up by the next open.
type File string

func (f File) Token() string {
	b, err := os.ReadFile(string(f))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// FromConfig prefers the token file over the inline token.
func FromConfig(cfg *config.Config) CredentialSource {
	if cfg.Auth.TokenFile != "" {
		return File(cfg.Auth.TokenFile)
	}
	return Static(cfg.Auth.Token)
}

// Require returns the token or ErrAuthMissing.
func Require(src CredentialSource) (string, error) {
	if src == nil {
		return "", svcErr.ErrAuthMissing
	}
	token := src.Token()
	if token == "" {
		return "", svcErr.ErrAuthMissing
	}
	return token, nil
}

// UserID extracts the numeric user id the server put in the token subject
// (or a userId claim). The signature is not verified: the server does that,
// the client only needs the id to build per-user topic names.
func UserID(token string) (int64, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}

	if v, ok := claims["userId"]; ok {
		switch id := v.(type) {
		case float64:
			return int64(id), nil
		case string:
			return strconv.ParseInt(id, 10, 64)
		}
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return 0, fmt.Errorf("token has no subject")
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("token subject %q is not a user id", sub)
	}
	return id, nil
}
