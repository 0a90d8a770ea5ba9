//go:build !integration

package security

import (
	"errors"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestEncryptionService_RoundTrip(t *testing.T) {
	svc, err := NewEncryptionService(testKey)
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte(`{"listeningSessions":[]}`)

	sealed, err := svc.Seal("user_default", payload)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !IsSealed(sealed) {
		t.Fatalf("expected sealed prefix, got %q", sealed)
	}
	again, _ := svc.Seal("user_default", payload)
	if again == sealed {
		t.Error("nonce must differ between calls")
	}

	got, err := svc.Open("user_default", sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("round trip mismatch: %s", got)
	}
}

func TestEncryptionService_BoundToAgent(t *testing.T) {
	svc, _ := NewEncryptionService(testKey)
	sealed, _ := svc.Seal("alice", []byte("secret"))
	if _, err := svc.Open("bob", sealed); err == nil {
		t.Fatal("expected open under a different agent id to fail")
	}
}

func TestEncryptionService_PlaintextPassthrough(t *testing.T) {
	svc, _ := NewEncryptionService(testKey)
	got, err := svc.Open("a", `{"x":1}`)
	if err != nil || string(got) != `{"x":1}` {
		t.Fatalf("expected passthrough, got %q, %v", got, err)
	}
	if _, err := svc.Open("a", sealedPrefix+"AAAA"); !errors.Is(err, ErrCiphertextTooShort) {
		t.Fatalf("expected ErrCiphertextTooShort, got %v", err)
	}
}

func TestNewEncryptionService_KeyLength(t *testing.T) {
	if _, err := NewEncryptionService("too-short"); err == nil {
		t.Fatal("expected key length error")
	}
}
