package token

import (
	"errors"
	"testing"
	"time"

	"tori-server/internal/session"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)
	user := session.UserIdentity{ID: "42", Nickname: "player"}

	raw, err := iss.Issue(user, 7)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	data, err := iss.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if data.User != user {
		t.Fatalf("expected identity %+v, got %+v", user, data.User)
	}
	if data.RoomID != 7 {
		t.Fatalf("expected room 7, got %d", data.RoomID)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	raw, err := NewIssuer("secret-a", time.Hour).Issue(session.UserIdentity{ID: "1"}, 1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewIssuer("secret-b", time.Hour).Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	iss := NewIssuer("secret", time.Minute)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss.now = func() time.Time { return start }

	raw, err := iss.Issue(session.UserIdentity{ID: "1"}, 1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	iss.now = func() time.Time { return start.Add(2 * time.Minute) }
	if _, err := iss.Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)
	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := iss.Parse(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("input %q: expected ErrInvalidToken, got %v", raw, err)
		}
	}
}
