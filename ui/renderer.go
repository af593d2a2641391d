// Package ui renders the room transcript for the terminal client. The
// Renderer keeps an in-memory ordered transcript and mirrors every change
// to an io.Writer, so the poll loop and the interactive command loop can
// share one view of the room.
package ui

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"roomchat/models"
)

// DecryptFailurePlaceholder is shown in place of a message that could not
// be decrypted with the current room key.
const DecryptFailurePlaceholder = "[unable to decrypt]"

// Entry is one rendered transcript line.
type Entry struct {
	ID      string
	Sender  string
	Text    string
	Media   *models.MediaPayload
	Pending bool
	Failed  bool
}

// Renderer implements the transcript view consumed by the reconciliation
// loop. All methods are safe for concurrent use.
type Renderer struct {
	mu      sync.Mutex
	out     io.Writer
	self    string
	entries []Entry
	index   map[string]int

	selectionMode bool
	selected      map[string]bool
}

// NewRenderer returns a Renderer writing transcript lines to out. self is
// the local sender id, used to label optimistic entries.
func NewRenderer(out io.Writer, self string) *Renderer {
	return &Renderer{
		out:      out,
		self:     self,
		index:    make(map[string]int),
		selected: make(map[string]bool),
	}
}

// AppendIncoming adds a decrypted text message to the transcript.
func (r *Renderer) AppendIncoming(id, sender, text string) {
	r.append(Entry{ID: id, Sender: sender, Text: text})
}

// AppendMedia adds a decrypted media message to the transcript.
func (r *Renderer) AppendMedia(id, sender string, media *models.MediaPayload) {
	text := fmt.Sprintf("[%s] %s (%d bytes)", media.Kind, media.Name, len(media.Data))
	r.append(Entry{ID: id, Sender: sender, Text: text, Media: media})
}

// AppendFailed adds a placeholder for a message that failed to decrypt.
func (r *Renderer) AppendFailed(id, sender string) {
	r.append(Entry{ID: id, Sender: sender, Text: DecryptFailurePlaceholder, Failed: true})
}

// AppendPending adds an optimistic local message awaiting a server id.
func (r *Renderer) AppendPending(tempID, text string) {
	r.append(Entry{ID: tempID, Sender: r.self, Text: text, Pending: true})
}

// ReconcileID replaces a pending entry's temporary id with the id assigned
// by the server, keeping the entry in place.
func (r *Renderer) ReconcileID(tempID, serverID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[tempID]
	if !ok {
		return
	}
	delete(r.index, tempID)
	r.entries[pos].ID = serverID
	r.entries[pos].Pending = false
	r.index[serverID] = pos
	r.printLocked("sent %s", serverID)
}

// RemovePending drops an optimistic entry whose send failed.
func (r *Renderer) RemovePending(tempID string) {
	r.remove(tempID, "send failed, message removed")
}

// Remove drops an entry from the transcript, local or remote.
func (r *Renderer) Remove(id string) {
	r.remove(id, "deleted "+id)
}

func (r *Renderer) append(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[entry.ID]; exists {
		return
	}
	r.entries = append(r.entries, entry)
	r.index[entry.ID] = len(r.entries) - 1
	r.printLocked("%s", formatEntry(entry))
}

func (r *Renderer) remove(id, note string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[id]
	if !ok {
		return
	}
	r.entries = append(r.entries[:pos], r.entries[pos+1:]...)
	delete(r.index, id)
	delete(r.selected, id)
	for i := pos; i < len(r.entries); i++ {
		r.index[r.entries[i].ID] = i
	}
	r.printLocked("%s", note)
}

// Entries returns a copy of the transcript in render order.
func (r *Renderer) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len reports the transcript length.
func (r *Renderer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// SetSelectionMode toggles multi-select. Leaving selection mode clears the
// current selection.
func (r *Renderer) SetSelectionMode(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.selectionMode = enabled
	if !enabled {
		r.selected = make(map[string]bool)
	}
}

// SelectionMode reports whether multi-select is active.
func (r *Renderer) SelectionMode() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectionMode
}

// ToggleSelected flips an entry in or out of the selection. It reports
// whether the entry is now selected, and false for unknown ids.
func (r *Renderer) ToggleSelected(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.selectionMode {
		return false
	}
	if _, ok := r.index[id]; !ok {
		return false
	}
	if r.selected[id] {
		delete(r.selected, id)
		return false
	}
	r.selected[id] = true
	return true
}

// SelectedIDs returns the selected entry ids in render order.
func (r *Renderer) SelectedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.selected))
	for id := range r.selected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return r.index[ids[i]] < r.index[ids[j]]
	})
	return ids
}

func (r *Renderer) printLocked(format string, args ...interface{}) {
	if r.out == nil {
		return
	}
	fmt.Fprintf(r.out, format+"\n", args...)
}

func formatEntry(entry Entry) string {
	marker := ""
	if entry.Pending {
		marker = " (sending...)"
	}
	return fmt.Sprintf("%s: %s%s", entry.Sender, entry.Text, marker)
}
