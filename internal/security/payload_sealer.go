package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	PayloadEncryptionKeyEnv = "REVEAL_ENCRYPTION_KEY"
	SealedPrefix            = "enc:"
)

var ErrNoEncryptionKey = errors.New("payload encryption key not set: " + PayloadEncryptionKeyEnv)

// Sealer encrypts payloads that leave the process, such as reveal findings
// kept in a shared redis.
type Sealer struct {
	gcm cipher.AEAD
}

// NewSealerFromEnv builds a Sealer from REVEAL_ENCRYPTION_KEY.
func NewSealerFromEnv() (*Sealer, error) {
	rawKey := strings.TrimSpace(os.Getenv(PayloadEncryptionKeyEnv))
	if rawKey == "" {
		return nil, ErrNoEncryptionKey
	}
	return NewSealer(rawKey)
}

// NewSealer accepts a base64 key of 16, 24 or 32 bytes. Any other value is
// hashed into a 32 byte key.
func NewSealer(rawKey string) (*Sealer, error) {
	if rawKey == "" {
		return nil, ErrNoEncryptionKey
	}

	block, err := aes.NewCipher(deriveKey(rawKey))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &Sealer{gcm: gcm}, nil
}

func deriveKey(raw string) []byte {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err == nil {
		switch len(decoded) {
		case 16, 24, 32:
			return decoded
		}
		sum := sha256.Sum256(decoded)
		return sum[:]
	}

	sum := sha256.Sum256([]byte(raw))
	return sum[:]
}

func (s *Sealer) Seal(plain []byte) (string, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	cipherText := s.gcm.Seal(nil, nonce, plain, nil)
	payload := append(nonce, cipherText...)

	return SealedPrefix + base64.StdEncoding.EncodeToString(payload), nil
}

// Open reverses Seal. Values without the sealed prefix are returned as they are.
func (s *Sealer) Open(value string) ([]byte, error) {
	if !IsSealed(value) {
		return []byte(value), nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	nonceSize := s.gcm.NonceSize()
	if len(data) <= nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	plain, err := s.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt ciphertext: %w", err)
	}
	return plain, nil
}

func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}
