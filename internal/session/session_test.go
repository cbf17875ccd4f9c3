package session

import (
	"testing"
	"time"

	"ia-assistant-platform/internal/config"
)

func testStore() *Store {
	return NewStore(nil, &config.Config{
		SessionSecret:     "0123456789abcdef0123456789abcdef",
		SessionTTLMinutes: 240,
	})
}

func TestTokenRoundtrip(t *testing.T) {
	s := testStore()
	token, err := s.issueToken("sess-1")
	if err != nil {
		t.Fatalf("issueToken() error: %v", err)
	}

	id, err := s.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if id != "sess-1" {
		t.Errorf("session id = %q, want sess-1", id)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	s := testStore()
	token, err := s.issueToken("sess-1")
	if err != nil {
		t.Fatalf("issueToken() error: %v", err)
	}

	other := NewStore(nil, &config.Config{
		SessionSecret:     "another-secret-another-secret-ok",
		SessionTTLMinutes: 240,
	})
	if _, err := other.Validate(token); err == nil {
		t.Error("token signed with a different secret must be rejected")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	s := testStore()
	for _, token := range []string{"", "not.a.token", "a.b"} {
		if _, err := s.Validate(token); err == nil {
			t.Errorf("Validate(%q) should fail", token)
		}
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	s := testStore()
	s.ttl = -time.Minute
	token, err := s.issueToken("sess-1")
	if err != nil {
		t.Fatalf("issueToken() error: %v", err)
	}
	if _, err := s.Validate(token); err == nil {
		t.Error("expired token must be rejected")
	}
}
