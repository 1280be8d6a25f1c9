package domain

import "time"

// Role tags a transcript turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message of a transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemTurn, UserTurn and AssistantTurn build transcript turns.
func SystemTurn(content string) Turn    { return Turn{Role: RoleSystem, Content: content} }
func UserTurn(content string) Turn      { return Turn{Role: RoleUser, Content: content} }
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }

// TurnRecord remembers the outcome of the last committed turn so a caller
// retrying with the same key gets the same replies back.
type TurnRecord struct {
	Key      string     `json:"key"`
	Messages []string   `json:"messages"`
	Status   TurnStatus `json:"status"`
}

// ConversationState is the single object threaded through the dialogue graph
// and persisted as the session checkpoint.
type ConversationState struct {
	SessionID string `json:"session_id"`
	UserName  string `json:"user_name"`

	Catalog   []MenuItem `json:"catalog"`
	Discounts []MenuItem `json:"discounts"`

	Transcript       []Turn `json:"transcript"`
	IntentTranscript []Turn `json:"intent_transcript"`

	Cart       []CartLine `json:"cart"`
	LastIntent Intent     `json:"last_intent,omitempty"`

	// PendingInput is injected by the caller to resume from AwaitInput and
	// cleared by the node that consumes it.
	PendingInput *string `json:"pending_input,omitempty"`

	CurrentNode NodeID     `json:"current_node"`
	Status      TurnStatus `json:"status,omitempty"`

	// Version increments on every committed turn. Stores use it for compare-and-set.
	Version  int64       `json:"version"`
	LastTurn *TurnRecord `json:"last_turn,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversationState creates a state positioned before LoadCatalog.
func NewConversationState(sessionID, userName string) *ConversationState {
	return &ConversationState{
		SessionID:   sessionID,
		UserName:    userName,
		CurrentNode: NodeStart,
		LastIntent:  IntentUnclear,
	}
}

// Terminated reports whether the session reached END.
func (s *ConversationState) Terminated() bool {
	return s.Status == StatusTerminated || s.CurrentNode == NodeEnd
}

// CatalogIndex indexes the session's catalog snapshot.
func (s *ConversationState) CatalogIndex() CatalogIndex {
	return NewCatalogIndex(s.Catalog)
}

// LatestUserTurn returns the content of the most recent user turn.
func (s *ConversationState) LatestUserTurn() (string, bool) {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Role == RoleUser {
			return s.Transcript[i].Content, true
		}
	}
	return "", false
}

// Clone returns a deep copy so a turn can work on a scratch state and commit
// only once the whole node sequence succeeded.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	c := *s
	c.Catalog = cloneItems(s.Catalog)
	c.Discounts = cloneItems(s.Discounts)
	c.Transcript = append([]Turn(nil), s.Transcript...)
	c.IntentTranscript = append([]Turn(nil), s.IntentTranscript...)
	c.Cart = append([]CartLine(nil), s.Cart...)
	if s.PendingInput != nil {
		v := *s.PendingInput
		c.PendingInput = &v
	}
	if s.LastTurn != nil {
		lt := *s.LastTurn
		lt.Messages = append([]string(nil), s.LastTurn.Messages...)
		c.LastTurn = &lt
	}
	return &c
}

func cloneItems(items []MenuItem) []MenuItem {
	if items == nil {
		return nil
	}
	out := make([]MenuItem, len(items))
	for i, it := range items {
		it.Categories = append([]string(nil), it.Categories...)
		it.Flavours = append([]string(nil), it.Flavours...)
		out[i] = it
	}
	return out
}
