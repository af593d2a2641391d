package reconcile

import "roomchat/models"

// View receives reconciled message events. The terminal renderer implements
// it; tests substitute a recording fake.
type View interface {
	// AppendIncoming renders a newly decrypted text message from another
	// sender. Implementations must ignore ids they have already rendered.
	AppendIncoming(id, sender, text string)
	// AppendMedia renders a decrypted media message from another sender.
	AppendMedia(id, sender string, media *models.MediaPayload)
	// AppendFailed renders a placeholder for a message whose payload could
	// not be decrypted.
	AppendFailed(id, sender string)
	// Remove removes a message from the rendered view. Unknown ids are a
	// no-op.
	Remove(id string)
}

// PendingView is the optimistic-entry surface of the renderer used by the
// send path.
type PendingView interface {
	// AppendPending renders a just-sent message before server confirmation.
	AppendPending(tempID, text string)
	// ReconcileID swaps a pending entry's temporary id for the
	// server-issued one, keeping the same rendered entry.
	ReconcileID(tempID, serverID string)
	// RemovePending drops an optimistic entry whose send failed.
	RemovePending(tempID string)
	// Remove removes any entry by id (shared with View).
	Remove(id string)
}
