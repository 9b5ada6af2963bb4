// Package state implements the opaque correlator round-tripped through the
// provider during the OAuth2 redirect.
//
// The token is advisory: it carries no secrets and is never trusted on its
// own. The callback cross-checks its canonical form against the state blob
// persisted when the flow started, so any tampering surfaces as a mismatch.
package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrMalformed indicates the inbound state string is not a valid token.
var ErrMalformed = errors.New("state: malformed token")

// Token correlates a callback with its pending attachment.
// AttachmentID is empty only before the row is minted.
type Token struct {
	Name         string `json:"name"`
	UserID       string `json:"user_id"`
	AttachmentID string `json:"attachment_id,omitempty"`
}

// Encode serializes the token. Field order is fixed by the struct, so two
// tokens with equal fields always produce byte-equal output.
func Encode(t Token) string {
	b, _ := json.Marshal(t)
	return string(b)
}

// Decode parses a state string. Unknown fields are rejected: the only writer
// of these tokens is this package, so anything extra is tampering.
func Decode(s string) (Token, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.DisallowUnknownFields()

	var t Token
	if err := dec.Decode(&t); err != nil {
		return Token{}, ErrMalformed
	}
	// Trailing garbage after the JSON object is also malformed.
	if dec.More() {
		return Token{}, ErrMalformed
	}
	if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.UserID) == "" {
		return Token{}, ErrMalformed
	}
	return t, nil
}

// Canonical re-serializes the token without the attachment id. This is the
// form persisted at authorize time and compared at callback time; it ignores
// how the inbound JSON happened to order its fields.
func Canonical(t Token) string {
	t.AttachmentID = ""
	return Encode(t)
}
