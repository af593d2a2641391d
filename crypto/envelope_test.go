package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"testing"

	"roomchat/models"
)

func TestMediaEnvelopeRoundTrip(t *testing.T) {
	key, err := DeriveRoomKey("ABCD1234")
	if err != nil {
		t.Fatalf("DeriveRoomKey failed: %v", err)
	}

	data := make([]byte, 4096)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("generate media data: %v", err)
	}

	payload, err := key.EncryptMedia(models.MediaKindImage, "image/png", "photo.png", data)
	if err != nil {
		t.Fatalf("EncryptMedia failed: %v", err)
	}
	if !DetectEnvelope(payload) {
		t.Fatalf("expected payload to be detected as media envelope")
	}

	media, err := key.DecryptMedia(payload)
	if err != nil {
		t.Fatalf("DecryptMedia failed: %v", err)
	}
	if media.Kind != models.MediaKindImage || media.Mime != "image/png" || media.Name != "photo.png" {
		t.Fatalf("unexpected media metadata: %+v", media)
	}
	if media.Size != int64(len(data)) {
		t.Fatalf("expected size %d, got %d", len(data), media.Size)
	}
	if !bytes.Equal(media.Data, data) {
		t.Fatalf("decrypted media does not match original")
	}
}

func TestTamperedMediaEnvelopeFails(t *testing.T) {
	key, err := DeriveRoomKey("ABCD1234")
	if err != nil {
		t.Fatalf("DeriveRoomKey failed: %v", err)
	}

	payload, err := key.EncryptMedia(models.MediaKindVoice, "audio/ogg", "note.ogg", []byte("voice bytes"))
	if err != nil {
		t.Fatalf("EncryptMedia failed: %v", err)
	}

	var envelope mediaEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	envelope.IV[0] ^= 0x01
	tampered, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("re-encode envelope: %v", err)
	}

	if _, err := key.DecryptMedia(string(tampered)); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt for tampered envelope, got %v", err)
	}
}

func TestEncryptMediaRejectsInvalidKind(t *testing.T) {
	key, err := DeriveRoomKey("ABCD1234")
	if err != nil {
		t.Fatalf("DeriveRoomKey failed: %v", err)
	}
	if _, err := key.EncryptMedia("video", "video/mp4", "clip.mp4", []byte("data")); err == nil {
		t.Fatalf("expected error for unknown media kind")
	}
}

func TestDetectEnvelope(t *testing.T) {
	key, err := DeriveRoomKey("ABCD1234")
	if err != nil {
		t.Fatalf("DeriveRoomKey failed: %v", err)
	}
	textPayload, err := key.EncryptText("plain text message")
	if err != nil {
		t.Fatalf("EncryptText failed: %v", err)
	}

	if DetectEnvelope(textPayload) {
		t.Fatalf("text payload misdetected as media envelope")
	}
	if DetectEnvelope(`{"unrelated":"json"}`) {
		t.Fatalf("unrelated JSON misdetected as media envelope")
	}
	if DetectEnvelope("") {
		t.Fatalf("empty payload misdetected as media envelope")
	}
}
