package state

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
	tok := Token{Name: "my drive", UserID: "user-1", AttachmentID: "att-9"}

	raw := Encode(tok)
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != tok {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", got, tok)
	}
}

func TestEncodeFieldOrderIsStable(t *testing.T) {
	tok := Token{Name: "n", UserID: "u", AttachmentID: "a"}
	want := `{"name":"n","user_id":"u","attachment_id":"a"}`
	if got := Encode(tok); got != want {
		t.Fatalf("Encode = %s, want %s", got, want)
	}
}

func TestCanonicalOmitsAttachmentID(t *testing.T) {
	tok := Token{Name: "n", UserID: "u", AttachmentID: "a"}
	canon := Canonical(tok)
	if strings.Contains(canon, "attachment_id") {
		t.Fatalf("canonical form leaks attachment_id: %s", canon)
	}
	if canon != Encode(Token{Name: "n", UserID: "u"}) {
		t.Fatalf("canonical form differs from encoding without attachment id: %s", canon)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"not json":       "pending-xyz",
		"unknown field":  `{"name":"n","user_id":"u","extra":"x"}`,
		"missing name":   `{"user_id":"u"}`,
		"missing user":   `{"name":"n"}`,
		"trailing bytes": `{"name":"n","user_id":"u"}{"x":1}`,
		"array":          `[{"name":"n","user_id":"u"}]`,
	}
	for label, raw := range cases {
		if _, err := Decode(raw); err == nil {
			t.Errorf("%s: Decode(%q) accepted, want error", label, raw)
		}
	}
}

func TestDecodeErrorIsMalformed(t *testing.T) {
	_, err := Decode("nope")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want %v", err, ErrMalformed)
	}
}
