package db

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecrypt is returned when a stored stage payload cannot be opened.
var ErrDecrypt = errors.New("failed to decrypt stage payload")

// Payload format prefixes.
const (
	formatPlain  byte = 0x00
	formatSealed byte = 0x01
)

// Sealer encrypts stage outputs at rest with XChaCha20-Poly1305. A Sealer
// built without a key writes plaintext payloads; it still reads sealed ones
// only when a key is present.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a Sealer. An empty key disables encryption.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) == 0 {
		return &Sealer{}, nil
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Enabled reports whether payloads are encrypted.
func (s *Sealer) Enabled() bool {
	return s != nil && s.aead != nil
}

// Seal encodes plain for storage. additional binds the ciphertext to its
// row so payloads cannot be swapped between runs or stages.
func (s *Sealer) Seal(plain, additional []byte) ([]byte, error) {
	if !s.Enabled() {
		return append([]byte{formatPlain}, plain...), nil
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := append([]byte{formatSealed}, s.aead.Seal(nonce, nonce, plain, additional)...)
	return out, nil
}

// Open decodes a stored payload.
func (s *Sealer) Open(data, additional []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecrypt)
	}
	switch data[0] {
	case formatPlain:
		return data[1:], nil
	case formatSealed:
		if !s.Enabled() {
			return nil, fmt.Errorf("%w: payload is encrypted but no key is configured", ErrDecrypt)
		}
		body := data[1:]
		ns := s.aead.NonceSize()
		if len(body) < ns+s.aead.Overhead() {
			return nil, fmt.Errorf("%w: payload too short", ErrDecrypt)
		}
		plain, err := s.aead.Open(nil, body[:ns], body[ns:], additional)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
		}
		return plain, nil
	default:
		return nil, fmt.Errorf("%w: unknown format 0x%02x", ErrDecrypt, data[0])
	}
}
