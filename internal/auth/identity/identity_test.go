package identity

import (
	"context"
	"testing"
	"time"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("s3cret", "photo-nexus")
	token, err := v.Issue("user-42", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	sub, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sub != "user-42" {
		t.Fatalf("expected user-42, got %s", sub)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("s3cret", "photo-nexus")
	expired, _ := v.Issue("u", -time.Minute)
	otherKey, _ := NewVerifier("different", "photo-nexus").Issue("u", time.Minute)
	otherIssuer, _ := NewVerifier("s3cret", "someone-else").Issue("u", time.Minute)

	tests := map[string]string{
		"expired":      expired,
		"wrong key":    otherKey,
		"wrong issuer": otherIssuer,
		"garbage":      "not-a-jwt",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(token); err == nil {
				t.Fatalf("expected rejection")
			}
		})
	}
}

func TestUserIDContext(t *testing.T) {
	ctx := context.Background()
	if UserID(ctx) != "" {
		t.Fatalf("expected empty user id")
	}
	if got := UserID(WithUserID(ctx, "u1")); got != "u1" {
		t.Fatalf("expected u1, got %q", got)
	}
}
