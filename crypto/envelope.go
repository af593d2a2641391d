package crypto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"roomchat/models"
)

// mediaEnvelope is the structured ciphertext container for non-text content.
// The nonce travels as a JSON number array alongside the media metadata,
// unlike text payloads where it is prepended to the ciphertext.
type mediaEnvelope struct {
	Kind string `json:"t"`
	Mime string `json:"mime"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	IV   []int  `json:"iv"`
	Data string `json:"data"`
}

// EncryptMedia seals media bytes and returns the JSON envelope string. Size
// records the plaintext length so receivers can display it without
// decrypting first.
func (k *RoomKey) EncryptMedia(kind, mime, name string, data []byte) (string, error) {
	if !models.ValidMediaKind(kind) {
		return "", fmt.Errorf("crypto: invalid media kind %q", kind)
	}
	if len(data) == 0 {
		return "", errors.New("crypto: media data is required")
	}

	nonce, ciphertext, err := k.seal(data)
	if err != nil {
		return "", err
	}

	iv := make([]int, len(nonce))
	for i, b := range nonce {
		iv[i] = int(b)
	}

	raw, err := json.Marshal(mediaEnvelope{
		Kind: kind,
		Mime: mime,
		Name: name,
		Size: int64(len(data)),
		IV:   iv,
		Data: base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return "", fmt.Errorf("encode media envelope: %w", err)
	}

	return string(raw), nil
}

// DecryptMedia opens a JSON media envelope. Any structural or
// authentication failure reports ErrDecrypt.
func (k *RoomKey) DecryptMedia(payload string) (*models.MediaPayload, error) {
	var envelope mediaEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", ErrDecrypt, err)
	}
	if !models.ValidMediaKind(envelope.Kind) {
		return nil, fmt.Errorf("%w: invalid media kind %q", ErrDecrypt, envelope.Kind)
	}
	if len(envelope.IV) != nonceSize {
		return nil, fmt.Errorf("%w: invalid envelope nonce length %d", ErrDecrypt, len(envelope.IV))
	}

	nonce := make([]byte, nonceSize)
	for i, v := range envelope.IV {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: envelope nonce byte out of range", ErrDecrypt)
		}
		nonce[i] = byte(v)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(envelope.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode envelope data: %v", ErrDecrypt, err)
	}

	data, err := k.open(nonce, ciphertext)
	if err != nil {
		return nil, err
	}

	return &models.MediaPayload{
		Kind: envelope.Kind,
		Mime: envelope.Mime,
		Name: envelope.Name,
		Size: envelope.Size,
		Data: data,
	}, nil
}

// DetectEnvelope reports whether a ciphertext payload is a media envelope
// rather than a combined text blob. Text payloads are base64 and never start
// with '{'.
func DetectEnvelope(payload string) bool {
	trimmed := strings.TrimSpace(payload)
	if !strings.HasPrefix(trimmed, "{") {
		return false
	}
	var envelope mediaEnvelope
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return false
	}
	return envelope.Kind != "" && envelope.Data != ""
}
