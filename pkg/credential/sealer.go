package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// SaltSize is the length of the random salt a storage keeps next to its data.
const SaltSize = 16

// Argon2id parameters for deriving the sealing key from a passphrase.
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
	kdfKeyLen  = 32
)

// ErrEmptyPassphrase is returned when a sealed backend is built without a key.
var ErrEmptyPassphrase = errors.New("storage passphrase is empty")

// Sealer encrypts records with AES-GCM. The namespace and account are bound
// as additional data so a payload cannot be replayed under another key.
type Sealer struct {
	aead cipher.AEAD
}

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}
	return salt, nil
}

// NewSealer derives an AES-256 key from the passphrase and salt with Argon2id.
func NewSealer(passphrase string, salt []byte) (*Sealer, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if len(salt) < SaltSize {
		return nil, fmt.Errorf("salt must be at least %d bytes", SaltSize)
	}

	key := argon2.IDKey([]byte(passphrase), salt, kdfTime, kdfMemory, kdfThreads, kdfKeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

func additionalData(namespace, account string) []byte {
	return []byte(namespace + "\x00" + account)
}

// Seal encodes and encrypts a record. The payload is nonce || ciphertext.
func (s *Sealer) Seal(namespace, account string, record Record) ([]byte, error) {
	plaintext, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}

	ciphertext := s.aead.Seal(nil, nonce, plaintext, additionalData(namespace, account))
	return append(nonce, ciphertext...), nil
}

// Open decrypts and decodes a payload produced by Seal.
func (s *Sealer) Open(namespace, account string, payload []byte) (Record, error) {
	nonceSize := s.aead.NonceSize()
	if len(payload) < nonceSize {
		return nil, errors.New("sealed payload is too short")
	}

	plaintext, err := s.aead.Open(nil, payload[:nonceSize], payload[nonceSize:], additionalData(namespace, account))
	if err != nil {
		return nil, fmt.Errorf("decrypt sealed payload: %w", err)
	}

	var record Record
	if err := json.Unmarshal(plaintext, &record); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return record, nil
}
