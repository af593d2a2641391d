package reconcile

import (
	"context"
	"sync"
	"testing"

	"roomchat/models"
)

func newTestSession(t *testing.T, senderID string) *Session {
	t.Helper()

	session, err := NewSession("ABCD1234", senderID)
	if err != nil {
		t.Fatalf("create test session: %v", err)
	}
	return session
}

func encryptText(t *testing.T, session *Session, text string) string {
	t.Helper()

	payload, err := session.Key.EncryptText(text)
	if err != nil {
		t.Fatalf("encrypt test payload: %v", err)
	}
	return payload
}

// fakeView records every view mutation for assertions.
type fakeView struct {
	mu       sync.Mutex
	rendered []string // ids passed to AppendIncoming/AppendMedia
	texts    map[string]string
	failed   []string
	removed  []string
	pending  []string
}

func newFakeView() *fakeView {
	return &fakeView{texts: make(map[string]string)}
}

func (v *fakeView) AppendIncoming(id, sender, text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rendered = append(v.rendered, id)
	v.texts[id] = text
}

func (v *fakeView) AppendMedia(id, sender string, media *models.MediaPayload) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rendered = append(v.rendered, id)
	v.texts[id] = media.Name
}

func (v *fakeView) AppendFailed(id, sender string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failed = append(v.failed, id)
}

func (v *fakeView) Remove(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.removed = append(v.removed, id)
}

func (v *fakeView) AppendPending(tempID, text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = append(v.pending, tempID)
	v.texts[tempID] = text
}

func (v *fakeView) ReconcileID(tempID, serverID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.texts[serverID] = v.texts[tempID]
	delete(v.texts, tempID)
	v.rendered = append(v.rendered, serverID)
}

func (v *fakeView) RemovePending(tempID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.removed = append(v.removed, tempID)
}

func (v *fakeView) renderCount(id string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	count := 0
	for _, rendered := range v.rendered {
		if rendered == id {
			count++
		}
	}
	return count
}

// fakeFetcher serves canned deltas, optionally blocking to simulate a slow
// network.
type fakeFetcher struct {
	mu       sync.Mutex
	deltas   []*models.GetResponse
	calls    int
	inFlight int
	maxFlight int
	block    chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, roomID string, lastUpdate int64) (*models.GetResponse, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	var delta *models.GetResponse
	if len(f.deltas) > 0 {
		delta = f.deltas[0]
		f.deltas = f.deltas[1:]
	} else {
		delta = &models.GetResponse{}
	}
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return delta, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) maxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxFlight
}
