package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"roomchat/models"
)

const (
	// DefaultEndpointPath is the chat endpoint path on the room server.
	DefaultEndpointPath = "/api/chat"
	// DefaultRequestTimeout bounds one HTTP attempt including body read.
	DefaultRequestTimeout = 10 * time.Second
	// maxResponseSize caps how much of a response body is read (4 MB).
	maxResponseSize = 4 * 1024 * 1024
)

// StatusError reports a non-2xx response from the chat endpoint.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("network: server returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("network: server returned HTTP %d: %s", e.StatusCode, e.Detail)
}

// Client wraps the single remote chat endpoint. All three actions go through
// the same retry policy; a zero policy means sensible defaults.
type Client struct {
	endpoint string
	http     *http.Client
	retry    RetryPolicy
}

// NewClient builds a client for a server base URL such as
// "http://192.168.1.10:8787".
func NewClient(baseURL string, retry RetryPolicy) *Client {
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + DefaultEndpointPath,
		http:     &http.Client{Timeout: DefaultRequestTimeout},
		retry:    retry.withDefaults(),
	}
}

// Send submits one encrypted payload and returns the server-assigned id and
// creation timestamp. messageID is the client idempotency token used to
// reconcile the optimistic entry.
func (c *Client) Send(ctx context.Context, roomID, payload, messageID, sender string) (*models.SendResponse, error) {
	if roomID == "" {
		return nil, errors.New("network: room id is required")
	}
	if payload == "" {
		return nil, errors.New("network: message payload is required")
	}

	var out models.SendResponse
	req := &models.Request{
		Action:    models.ActionSend,
		RoomID:    roomID,
		Message:   payload,
		MessageID: messageID,
		Sender:    sender,
	}
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Fetch retrieves the delta past a watermark: messages created and messages
// soft-deleted since lastUpdate.
func (c *Client) Fetch(ctx context.Context, roomID string, lastUpdate int64) (*models.GetResponse, error) {
	if roomID == "" {
		return nil, errors.New("network: room id is required")
	}

	var out models.GetResponse
	req := &models.Request{
		Action:     models.ActionGet,
		RoomID:     roomID,
		LastUpdate: lastUpdate,
	}
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete requests a room-scoped soft delete of the given message ids.
func (c *Client) Delete(ctx context.Context, roomID string, ids []string) (*models.DeleteResponse, error) {
	if roomID == "" {
		return nil, errors.New("network: room id is required")
	}
	if len(ids) == 0 {
		return nil, errors.New("network: at least one message id is required")
	}

	var out models.DeleteResponse
	req := &models.Request{
		Action:     models.ActionDelete,
		RoomID:     roomID,
		MessageIDs: ids,
	}
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do posts one action request and decodes the response into out, retrying
// transport failures and 5xx responses per the client's retry policy. 4xx
// responses and malformed response bodies are terminal.
func (c *Client) do(ctx context.Context, req *models.Request, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", req.Action, err)
	}

	attempt := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build %s request: %w", req.Action, err))
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return fmt.Errorf("post %s: %w", req.Action, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return fmt.Errorf("read %s response: %w", req.Action, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := &StatusError{StatusCode: resp.StatusCode, Detail: errorDetail(raw)}
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(statusErr)
			}
			return statusErr
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s response: %w", req.Action, err))
		}
		return nil
	}

	return backoff.Retry(attempt, backoff.WithContext(c.retry.schedule(), ctx))
}

func errorDetail(raw []byte) string {
	var body models.ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return body.Error
}
