package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestJWTValidator(t *testing.T) {
	t.Parallel()

	v := NewJWTValidator("test-secret")

	t.Run("valid token round trip", func(t *testing.T) {
		t.Parallel()
		token, err := v.Sign("user-42", time.Minute)
		if err != nil {
			t.Fatalf("Sign() error = %v", err)
		}

		userID, err := v.Validate(context.Background(), token)
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if userID != "user-42" {
			t.Errorf("Validate() = %q, want %q", userID, "user-42")
		}
	})

	t.Run("empty token", func(t *testing.T) {
		t.Parallel()
		_, err := v.Validate(context.Background(), "")
		if !errors.Is(err, ErrMissingToken) {
			t.Errorf("Validate() error = %v, want ErrMissingToken", err)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		t.Parallel()
		_, err := v.Validate(context.Background(), "not-a-jwt")
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Validate() error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()
		token, err := v.Sign("user-42", -time.Minute)
		if err != nil {
			t.Fatalf("Sign() error = %v", err)
		}

		_, err = v.Validate(context.Background(), token)
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Validate() error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		other := NewJWTValidator("other-secret")
		token, err := other.Sign("user-42", time.Minute)
		if err != nil {
			t.Fatalf("Sign() error = %v", err)
		}

		_, err = v.Validate(context.Background(), token)
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Validate() error = %v, want ErrInvalidToken", err)
		}
	})
}
