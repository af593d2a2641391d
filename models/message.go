package models

// Action discriminators accepted by the chat endpoint.
const (
	ActionSend   = "send"
	ActionGet    = "get"
	ActionDelete = "delete"
)

// Media payload kinds carried inside an encrypted media envelope.
const (
	MediaKindImage = "image"
	MediaKindAudio = "audio"
	MediaKindVoice = "voice"
	MediaKindFile  = "file"
)

// Message represents one stored room message. Payload is opaque ciphertext:
// either a base64 blob for text or a JSON media envelope. All timestamps are
// epoch milliseconds.
type Message struct {
	ID        string `json:"id"`
	RoomID    string `json:"room_id"`
	Payload   string `json:"payload"`
	Sender    string `json:"sender"`
	CustomID  string `json:"custom_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Deleted   bool   `json:"deleted"`
	UpdatedAt int64  `json:"updated_at"`
}

// MediaPayload is a decrypted non-text message payload.
type MediaPayload struct {
	Kind string
	Mime string
	Name string
	Size int64
	Data []byte
}

// ValidMediaKind reports whether kind is a known media payload kind.
func ValidMediaKind(kind string) bool {
	switch kind {
	case MediaKindImage, MediaKindAudio, MediaKindVoice, MediaKindFile:
		return true
	default:
		return false
	}
}
