package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims, method jwt.SigningMethod) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func TestParseValidToken(t *testing.T) {
	v := NewVerifier("s3cret", "https://issuer.test")
	raw := sign(t, "s3cret", jwt.MapClaims{
		"sub": "user-1",
		"iss": "https://issuer.test",
		"exp": time.Now().Add(time.Hour).Unix(),
	}, jwt.SigningMethodHS256)

	claims, err := v.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if Subject(claims) != "user-1" {
		t.Fatalf("sub = %q", Subject(claims))
	}
}

func TestParseRejections(t *testing.T) {
	v := NewVerifier("s3cret", "https://issuer.test")
	base := jwt.MapClaims{
		"sub": "user-1",
		"iss": "https://issuer.test",
		"exp": time.Now().Add(time.Hour).Unix(),
	}

	t.Run("empty", func(t *testing.T) {
		if _, err := v.Parse(""); !errors.Is(err, ErrTokenMissing) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		raw := sign(t, "otro", base, jwt.SigningMethodHS256)
		if _, err := v.Parse(raw); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		claims := jwt.MapClaims{
			"sub": "user-1",
			"iss": "https://issuer.test",
			"exp": time.Now().Add(-time.Hour).Unix(),
		}
		raw := sign(t, "s3cret", claims, jwt.SigningMethodHS256)
		if _, err := v.Parse(raw); !errors.Is(err, ErrTokenExpired) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := jwt.MapClaims{
			"sub": "user-1",
			"iss": "https://evil.test",
			"exp": time.Now().Add(time.Hour).Unix(),
		}
		raw := sign(t, "s3cret", claims, jwt.SigningMethodHS256)
		if _, err := v.Parse(raw); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("missing exp", func(t *testing.T) {
		claims := jwt.MapClaims{"sub": "user-1", "iss": "https://issuer.test"}
		raw := sign(t, "s3cret", claims, jwt.SigningMethodHS256)
		if _, err := v.Parse(raw); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestParseRejectsUnexpectedAlg(t *testing.T) {
	v := NewVerifier("s3cret", "")
	// HS512 firmado con el mismo secreto: el método no está permitido
	raw := sign(t, "s3cret", jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}, jwt.SigningMethodHS512)

	if _, err := v.Parse(raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v", err)
	}
}
