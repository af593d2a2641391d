package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	aes256KeySize = 32
	nonceSize     = 12

	// kdfSalt and kdfIterations are application-wide constants. Changing
	// either breaks decryption of every existing room.
	kdfSalt       = "secure-salt"
	kdfIterations = 100000
)

// ErrDecrypt indicates a ciphertext failed authentication or is malformed.
// Callers render a placeholder instead of propagating it.
var ErrDecrypt = errors.New("crypto: decryption failed")

// RoomKey is the AES-256-GCM key derived from a room id. The derived key
// bytes are wiped after the AEAD is constructed and are never exportable.
type RoomKey struct {
	aead cipher.AEAD
}

// DeriveRoomKey derives the room's symmetric key with PBKDF2-SHA256 over the
// UTF-8 bytes of the room id. Derivation is deterministic: the same room id
// always yields the same key.
func DeriveRoomKey(roomID string) (*RoomKey, error) {
	if roomID == "" {
		return nil, errors.New("crypto: room id is required")
	}

	keyBytes := pbkdf2.Key([]byte(roomID), []byte(kdfSalt), kdfIterations, aes256KeySize, sha256.New)
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	for i := range keyBytes {
		keyBytes[i] = 0
	}

	return &RoomKey{aead: aead}, nil
}

// EncryptText seals plaintext under a fresh random 96-bit nonce and returns
// base64(nonce||ciphertext), the combined form the wire protocol carries for
// text messages.
func (k *RoomKey) EncryptText(plaintext string) (string, error) {
	nonce, ciphertext, err := k.seal([]byte(plaintext))
	if err != nil {
		return "", err
	}
	combined := append(nonce, ciphertext...)
	return base64.StdEncoding.EncodeToString(combined), nil
}

// DecryptText opens a combined base64(nonce||ciphertext) payload. Tampered,
// truncated, or otherwise malformed payloads fail with ErrDecrypt.
func (k *RoomKey) DecryptText(payload string) (string, error) {
	combined, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: decode base64: %v", ErrDecrypt, err)
	}
	if len(combined) <= nonceSize {
		return "", fmt.Errorf("%w: payload too short", ErrDecrypt)
	}

	plaintext, err := k.open(combined[:nonceSize], combined[nonceSize:])
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (k *RoomKey) seal(plaintext []byte) (nonce, ciphertext []byte, err error) {
	nonce = make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	return nonce, k.aead.Seal(nil, nonce, plaintext, nil), nil
}

func (k *RoomKey) open(nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != nonceSize {
		return nil, fmt.Errorf("%w: invalid nonce length %d", ErrDecrypt, len(nonce))
	}
	plaintext, err := k.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}
