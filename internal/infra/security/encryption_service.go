package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks values produced by Seal so plaintext rows written before
// encryption was enabled can still be read.
const sealedPrefix = "enc:v1:"

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// EncryptionService seals snapshot payloads with AES-GCM and a random nonce per value.
type EncryptionService struct {
	gcm cipher.AEAD
}

// NewEncryptionService accepts a 16, 24 or 32 byte key (AES-128/192/256).
func NewEncryptionService(key string) (*EncryptionService, error) {
	k := []byte(key)
	if n := len(k); n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", n)
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &EncryptionService{gcm: gcm}, nil
}

// Seal returns "enc:v1:" + base64(nonce || ciphertext). The agent id is bound
// as additional data so a sealed snapshot cannot be replayed under another agent.
func (e *EncryptionService) Seal(agentID string, plaintext []byte) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := e.gcm.Seal(nonce, nonce, plaintext, []byte(agentID))
	return sealedPrefix + base64.StdEncoding.EncodeToString(ct), nil
}

// Open reverses Seal. Values without the sealed prefix are returned unchanged.
func (e *EncryptionService) Open(agentID, value string) ([]byte, error) {
	if !IsSealed(value) {
		return []byte(value), nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	ns := e.gcm.NonceSize()
	if len(data) < ns {
		return nil, ErrCiphertextTooShort
	}
	pt, err := e.gcm.Open(nil, data[:ns], data[ns:], []byte(agentID))
	if err != nil {
		return nil, fmt.Errorf("gcm open: %w", err)
	}
	return pt, nil
}

func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
