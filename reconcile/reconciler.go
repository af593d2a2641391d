package reconcile

import (
	"log"
	"sync"
	"time"

	"roomchat/crypto"
	"roomchat/models"
)

// DefaultRetainWindow is how far below the watermark processed and deleted
// ids are retained before pruning.
const DefaultRetainWindow = 5 * time.Minute

// ReconcilerOptions tunes a Reconciler. The zero value gives defaults.
type ReconcilerOptions struct {
	RetainWindow time.Duration
	Logger       *log.Logger
}

func (o ReconcilerOptions) withDefaults() ReconcilerOptions {
	out := o
	if out.RetainWindow <= 0 {
		out.RetainWindow = DefaultRetainWindow
	}
	if out.Logger == nil {
		out.Logger = log.Default()
	}
	return out
}

// Reconciler maintains the local view of one room's message list against
// periodic delta fetches. It tracks a monotonic watermark plus bounded sets
// of processed and deleted message ids, and feeds decrypted messages to the
// view exactly once each.
type Reconciler struct {
	session *Session
	view    View

	mu        sync.Mutex
	watermark int64
	processed *seenSet
	deleted   *seenSet

	retainWindow time.Duration
	logger       *log.Logger
}

// NewReconciler builds a reconciler for one room session.
func NewReconciler(session *Session, view View, opts ReconcilerOptions) *Reconciler {
	o := opts.withDefaults()
	return &Reconciler{
		session:      session,
		view:         view,
		processed:    newSeenSet(),
		deleted:      newSeenSet(),
		retainWindow: o.RetainWindow,
		logger:       o.Logger,
	}
}

// Watermark returns the highest timestamp through which server state has
// been reconciled.
func (r *Reconciler) Watermark() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.watermark
}

// MarkProcessed registers a server-issued id, typically for a message this
// client just sent, so a later poll does not render it again.
func (r *Reconciler) MarkProcessed(id string, at int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed.Record(id, at)
}

// MarkDeleted registers ids removed optimistically by the local delete path
// so replayed inserts for them stay suppressed.
func (r *Reconciler) MarkDeleted(ids []string, at int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.deleted.Record(id, at)
		r.processed.Remove(id)
	}
}

// ApplyDelta applies one fetched delta batch. Deletes are applied before
// inserts so a delete observed ahead of its insert still suppresses the late
// insert. The watermark advances to the maximum timestamp seen across both
// batches and never regresses.
func (r *Reconciler) ApplyDelta(delta *models.GetResponse) {
	if delta == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	maxSeen := r.watermark

	for _, entry := range delta.Deletes {
		if entry.UpdatedAt > maxSeen {
			maxSeen = entry.UpdatedAt
		}
		if entry.ID == "" {
			continue
		}
		r.view.Remove(entry.ID)
		r.deleted.Record(entry.ID, entry.UpdatedAt)
		r.processed.Remove(entry.ID)
	}

	for _, msg := range delta.Messages {
		if msg.Timestamp > maxSeen {
			maxSeen = msg.Timestamp
		}
		if msg.ID == "" {
			continue
		}
		if r.deleted.Has(msg.ID) || r.processed.Has(msg.ID) {
			continue
		}
		if msg.Sender != "" && msg.Sender == r.session.SenderID {
			// Echo of a message this client already rendered at send time.
			r.processed.Record(msg.ID, msg.Timestamp)
			continue
		}
		r.renderIncoming(msg)
		r.processed.Record(msg.ID, msg.Timestamp)
	}

	if maxSeen > r.watermark {
		r.watermark = maxSeen
	}

	floor := r.watermark - r.retainWindow.Milliseconds()
	if floor > 0 {
		r.processed.Prune(floor)
		r.deleted.Prune(floor)
	}
}

// renderIncoming decrypts one foreign message and hands it to the view. A
// decryption failure renders a placeholder; it never aborts the batch.
func (r *Reconciler) renderIncoming(msg models.WireMessage) {
	if crypto.DetectEnvelope(msg.Message) {
		media, err := r.session.Key.DecryptMedia(msg.Message)
		if err != nil {
			r.logger.Printf("decrypt media %s: %v", msg.ID, err)
			r.view.AppendFailed(msg.ID, msg.Sender)
			return
		}
		r.view.AppendMedia(msg.ID, msg.Sender, media)
		return
	}

	text, err := r.session.Key.DecryptText(msg.Message)
	if err != nil {
		r.logger.Printf("decrypt message %s: %v", msg.ID, err)
		r.view.AppendFailed(msg.ID, msg.Sender)
		return
	}
	r.view.AppendIncoming(msg.ID, msg.Sender, text)
}

// trackedIDs reports the current sizes of the processed and deleted sets.
func (r *Reconciler) trackedIDs() (processed, deleted int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed.Len(), r.deleted.Len()
}
