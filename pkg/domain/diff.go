package domain

// StateDiff represents what one turn changed in a conversation.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	CurrentNode *NodeID     `json:"current_node,omitempty"`
	Status      *TurnStatus `json:"status,omitempty"`
	LastIntent  *Intent     `json:"last_intent,omitempty"`

	// Transcript and Cart are append-only, so only the new tail is reported.
	Transcript []Turn     `json:"transcript,omitempty"`
	Cart       []CartLine `json:"cart,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
func Diff(oldState, newState *ConversationState) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{SessionID: newState.SessionID}

	if oldState == nil || oldState.CurrentNode != newState.CurrentNode {
		node := newState.CurrentNode
		diff.CurrentNode = &node
	}
	if oldState == nil || oldState.Status != newState.Status {
		status := newState.Status
		diff.Status = &status
	}
	if oldState == nil || oldState.LastIntent != newState.LastIntent {
		intent := newState.LastIntent
		diff.LastIntent = &intent
	}

	var oldTranscript, oldCart int
	if oldState != nil {
		oldTranscript, oldCart = len(oldState.Transcript), len(oldState.Cart)
	}
	if len(newState.Transcript) > oldTranscript {
		diff.Transcript = newState.Transcript[oldTranscript:]
	}
	if len(newState.Cart) > oldCart {
		diff.Cart = newState.Cart[oldCart:]
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.CurrentNode == nil &&
		d.Status == nil &&
		d.LastIntent == nil &&
		len(d.Transcript) == 0 &&
		len(d.Cart) == 0
}
