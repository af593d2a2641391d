package models

// Request is the single JSON request shape accepted by the chat endpoint.
// Action and RoomID are always required; the remaining fields depend on the
// action.
type Request struct {
	Action string `json:"action"`
	RoomID string `json:"roomId"`

	// send
	Message string `json:"message,omitempty"`
	// EncryptedMsg is the legacy name for Message, still accepted on send.
	EncryptedMsg string `json:"encryptedMsg,omitempty"`
	MessageID    string `json:"messageId,omitempty"`
	Sender       string `json:"sender,omitempty"`

	// get
	LastUpdate int64 `json:"lastUpdate,omitempty"`

	// delete
	MessageIDs []string `json:"messageIds,omitempty"`
}

// WireMessage is one live message row in a get response.
type WireMessage struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	Timestamp int64  `json:"timestamp"`
}

// DeleteEntry records one soft-deleted message id in a get response.
type DeleteEntry struct {
	ID        string `json:"id"`
	UpdatedAt int64  `json:"updated_at"`
}

// GetResponse is the delta returned for a get action: messages created and
// messages soft-deleted since the requested watermark.
type GetResponse struct {
	Messages []WireMessage `json:"messages"`
	Deletes  []DeleteEntry `json:"deletes"`
}

// SendResponse confirms a stored message with its server-assigned identity.
type SendResponse struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

// DeleteResponse confirms a bulk soft delete.
type DeleteResponse struct {
	Success bool     `json:"success"`
	Deleted []string `json:"deleted"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
