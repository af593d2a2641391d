package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"roomchat/models"
	"roomchat/storage"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	store, _, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close test store: %v", err)
		}
	})

	return New(store, Options{Logger: log.New(io.Discard, "", 0)})
}

func postJSON(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, EndpointPath, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestNonPostMethodIsRejected(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, EndpointPath, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	body := decodeBody[models.ErrorResponse](t, rec)
	if body.Error == "" {
		t.Fatalf("expected error body for 405")
	}
}

func TestPreflightGetsCORSHeaders(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodOptions, EndpointPath, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing permissive CORS origin header")
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatalf("missing CORS methods header")
	}
}

func TestValidationErrors(t *testing.T) {
	h := newTestHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"invalid json", "{not json"},
		{"missing action", `{"roomId":"ROOM1"}`},
		{"missing room", `{"action":"get"}`},
		{"unknown action", `{"action":"subscribe","roomId":"ROOM1"}`},
		{"send without message", `{"action":"send","roomId":"ROOM1"}`},
		{"delete without ids", `{"action":"delete","roomId":"ROOM1"}`},
	}

	for _, tc := range cases {
		rec := postJSON(t, h, tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d (%s)", tc.name, rec.Code, rec.Body.String())
		}
		body := decodeBody[models.ErrorResponse](t, rec)
		if body.Error == "" {
			t.Fatalf("%s: expected error detail", tc.name)
		}
	}
}

func TestSendStoresAndReturnsIdentity(t *testing.T) {
	h := newTestHandler(t)

	rec := postJSON(t, h, `{"action":"send","roomId":"ROOM1","message":"cipher","messageId":"temp-1","sender":"sender-a"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	sent := decodeBody[models.SendResponse](t, rec)
	if sent.ID == "" || sent.Timestamp == 0 {
		t.Fatalf("expected id and timestamp, got %+v", sent)
	}

	rec = postJSON(t, h, `{"action":"get","roomId":"ROOM1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	delta := decodeBody[models.GetResponse](t, rec)
	if len(delta.Messages) != 1 {
		t.Fatalf("expected one message, got %+v", delta)
	}
	msg := delta.Messages[0]
	if msg.ID != sent.ID || msg.Message != "cipher" || msg.Sender != "sender-a" || msg.Timestamp != sent.Timestamp {
		t.Fatalf("unexpected wire message: %+v", msg)
	}
}

func TestSendAcceptsLegacyEncryptedMsgField(t *testing.T) {
	h := newTestHandler(t)

	rec := postJSON(t, h, `{"action":"send","roomId":"ROOM1","encryptedMsg":"legacy-cipher"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for legacy field, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, h, `{"action":"get","roomId":"ROOM1"}`)
	delta := decodeBody[models.GetResponse](t, rec)
	if len(delta.Messages) != 1 || delta.Messages[0].Message != "legacy-cipher" {
		t.Fatalf("expected legacy payload stored, got %+v", delta)
	}
}

func TestGetReturnsDeltasPastWatermark(t *testing.T) {
	h := newTestHandler(t)

	first := decodeBody[models.SendResponse](t, postJSON(t, h, `{"action":"send","roomId":"ROOM1","message":"one"}`))
	second := decodeBody[models.SendResponse](t, postJSON(t, h, `{"action":"send","roomId":"ROOM1","message":"two"}`))

	body, err := json.Marshal(models.Request{Action: models.ActionGet, RoomID: "ROOM1", LastUpdate: first.Timestamp})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	rec := postJSON(t, h, string(body))
	delta := decodeBody[models.GetResponse](t, rec)
	if len(delta.Messages) != 1 || delta.Messages[0].ID != second.ID {
		t.Fatalf("expected only the second message past the watermark, got %+v", delta)
	}
	if delta.Deletes == nil {
		t.Fatalf("expected deletes to encode as an empty array, not null")
	}
}

func TestDeleteFlowSurfacesInDeletesBatch(t *testing.T) {
	h := newTestHandler(t)

	sent := decodeBody[models.SendResponse](t, postJSON(t, h, `{"action":"send","roomId":"ROOM1","message":"cipher"}`))

	body, err := json.Marshal(models.Request{Action: models.ActionDelete, RoomID: "ROOM1", MessageIDs: []string{sent.ID}})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	rec := postJSON(t, h, string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	deleted := decodeBody[models.DeleteResponse](t, rec)
	if !deleted.Success || len(deleted.Deleted) != 1 || deleted.Deleted[0] != sent.ID {
		t.Fatalf("unexpected delete response: %+v", deleted)
	}

	rec = postJSON(t, h, `{"action":"get","roomId":"ROOM1"}`)
	delta := decodeBody[models.GetResponse](t, rec)
	if len(delta.Messages) != 0 {
		t.Fatalf("expected no live messages after delete, got %+v", delta.Messages)
	}
	if len(delta.Deletes) != 1 || delta.Deletes[0].ID != sent.ID {
		t.Fatalf("expected deletion entry, got %+v", delta.Deletes)
	}
}

func TestDeleteIsRoomScoped(t *testing.T) {
	h := newTestHandler(t)

	sent := decodeBody[models.SendResponse](t, postJSON(t, h, `{"action":"send","roomId":"ROOM1","message":"cipher"}`))

	body, err := json.Marshal(models.Request{Action: models.ActionDelete, RoomID: "ROOM2", MessageIDs: []string{sent.ID}})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	rec := postJSON(t, h, string(body))
	deleted := decodeBody[models.DeleteResponse](t, rec)
	if len(deleted.Deleted) != 0 {
		t.Fatalf("cross-room delete must not touch other rooms, got %+v", deleted)
	}

	rec = postJSON(t, h, `{"action":"get","roomId":"ROOM1"}`)
	delta := decodeBody[models.GetResponse](t, rec)
	if len(delta.Messages) != 1 {
		t.Fatalf("expected message to survive cross-room delete, got %+v", delta)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from health check, got %d", rec.Code)
	}
}
