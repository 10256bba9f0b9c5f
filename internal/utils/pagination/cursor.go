package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidToken is returned for tokens that were not produced by Encode.
var ErrInvalidToken = errors.New("invalid pagination token")

// Cursor marks the last outbox row of a page. Rows are ordered by
// (Updated, Kind, TargetID) descending, which matches the composite key.
type Cursor struct {
	Kind     string `json:"k,omitempty"`
	TargetID int64  `json:"t"`
	Updated  int64  `json:"u,omitempty"` // unix nanos
}

// At builds the cursor that resumes after a row.
func At(kind string, targetID int64, updated time.Time) Cursor {
	return Cursor{Kind: kind, TargetID: targetID, Updated: updated.UnixNano()}
}

// IsZero reports whether the cursor points at the first page.
func (c Cursor) IsZero() bool { return c.Updated == 0 }

// UpdatedAt returns the row timestamp in local time, as it was written.
func (c Cursor) UpdatedAt() time.Time { return time.Unix(0, c.Updated) }

// Encode returns the opaque token for c.
func Encode(c Cursor) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Decode parses a token. An empty token is the first page.
func Decode(token string) (Cursor, error) {
	var c Cursor
	if token == "" {
		return c, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return c, ErrInvalidToken
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}
