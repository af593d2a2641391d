// Package server implements the stateless chat endpoint: one JSON POST
// route dispatching send, get, and delete actions against the message
// store.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"roomchat/models"
	"roomchat/storage"
)

const (
	// EndpointPath is the chat endpoint route.
	EndpointPath = "/api/chat"
	// maxBodySize caps accepted request bodies (4 MB, enough for an
	// encrypted media envelope).
	maxBodySize = 4 * 1024 * 1024
)

// Handler serves the chat endpoint backed by a message store. Every request
// is independent; no session spans calls.
type Handler struct {
	store      *storage.Store
	router     *mux.Router
	logger     *log.Logger
	fetchLimit int
}

// Options tunes a Handler. The zero value gives defaults.
type Options struct {
	// FetchLimit caps each get batch. Zero means storage.DefaultFetchLimit.
	FetchLimit int
	Logger     *log.Logger
}

// New builds the handler and its routes.
func New(store *storage.Store, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	h := &Handler{
		store:      store,
		logger:     logger,
		fetchLimit: opts.FetchLimit,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc(EndpointPath, h.chat).Methods(http.MethodPost, http.MethodOptions)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.methodNotAllowed)
	h.router = r

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeCORS(w)
	respondJSON(w, http.StatusMethodNotAllowed, models.ErrorResponse{Error: "method not allowed"})
}

// chat validates the request shape, then dispatches on the action
// discriminator. Validation order matches the contract: body presence, JSON
// shape, required fields, then action.
func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	writeCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil || len(body) == 0 {
		respondJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "request body is empty"})
		return
	}

	var req models.Request
	if err := json.Unmarshal(body, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid JSON format"})
		return
	}

	if req.Action == "" || req.RoomID == "" {
		respondJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "missing required fields"})
		return
	}

	switch req.Action {
	case models.ActionSend:
		h.handleSend(w, &req)
	case models.ActionGet:
		h.handleGet(w, &req)
	case models.ActionDelete:
		h.handleDelete(w, &req)
	default:
		respondJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("invalid action %q", req.Action)})
	}
}

func (h *Handler) handleSend(w http.ResponseWriter, req *models.Request) {
	payload := req.Message
	if payload == "" {
		// Legacy clients sent the ciphertext under encryptedMsg.
		payload = req.EncryptedMsg
	}
	if payload == "" {
		respondJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "message is required"})
		return
	}

	msg, err := h.store.InsertMessage(req.RoomID, payload, req.Sender, req.MessageID)
	if err != nil {
		h.internalError(w, "send", err)
		return
	}

	respondJSON(w, http.StatusCreated, models.SendResponse{ID: msg.ID, Timestamp: msg.CreatedAt})
}

func (h *Handler) handleGet(w http.ResponseWriter, req *models.Request) {
	live, err := h.store.MessagesSince(req.RoomID, req.LastUpdate, h.fetchLimit)
	if err != nil {
		h.internalError(w, "get", err)
		return
	}
	deleted, err := h.store.DeletedSince(req.RoomID, req.LastUpdate, h.fetchLimit)
	if err != nil {
		h.internalError(w, "get", err)
		return
	}

	resp := models.GetResponse{
		Messages: make([]models.WireMessage, 0, len(live)),
		Deletes:  make([]models.DeleteEntry, 0, len(deleted)),
	}
	for _, msg := range live {
		resp.Messages = append(resp.Messages, models.WireMessage{
			ID:        msg.ID,
			Message:   msg.Payload,
			Sender:    msg.Sender,
			Timestamp: msg.CreatedAt,
		})
	}
	for _, msg := range deleted {
		resp.Deletes = append(resp.Deletes, models.DeleteEntry{ID: msg.ID, UpdatedAt: msg.UpdatedAt})
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDelete(w http.ResponseWriter, req *models.Request) {
	if len(req.MessageIDs) == 0 {
		respondJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "messageIds is required"})
		return
	}

	deleted, err := h.store.SoftDelete(req.RoomID, req.MessageIDs)
	if err != nil {
		h.internalError(w, "delete", err)
		return
	}
	if deleted == nil {
		deleted = []string{}
	}

	respondJSON(w, http.StatusOK, models.DeleteResponse{Success: true, Deleted: deleted})
}

func (h *Handler) internalError(w http.ResponseWriter, action string, err error) {
	h.logger.Printf("%s action failed: %v", action, err)
	respondJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "internal server error"})
}

// writeCORS sets the permissive headers the browser client depends on for
// cross-origin preflight.
func writeCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
