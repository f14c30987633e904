package security

import (
	"testing"
	"time"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("secret"))
	p := Principal{ID: "u1", Username: "alice", Role: RoleUser}

	token, exp, err := Generate(opts, p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expiry in the past")
	}

	got, err := Verify(opts, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != p {
		t.Fatalf("principal mismatch: %+v != %+v", got, p)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, _, err := Generate(DefaultOptions([]byte("right")), Principal{ID: "u1", Role: RoleUser})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Verify(DefaultOptions([]byte("wrong")), token); err == nil {
		t.Fatalf("token verified with wrong secret")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	opts := Options{Secret: []byte("secret"), TTL: -time.Hour}
	token, _, err := Generate(Options{Secret: opts.Secret, TTL: 1}, Principal{ID: "u1", Role: RoleUser})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := Verify(opts, token); err == nil {
		t.Fatalf("expired token verified")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	if _, err := Verify(DefaultOptions([]byte("s")), "not-a-token"); err == nil {
		t.Fatalf("garbage verified")
	}
}

func TestIsAdmin(t *testing.T) {
	if (Principal{Role: RoleUser}).IsAdmin() {
		t.Fatalf("user flagged admin")
	}
	if !(Principal{Role: RoleAdmin}).IsAdmin() {
		t.Fatalf("admin not flagged")
	}
}
