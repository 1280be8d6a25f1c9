package runner

import "github.com/aretw0/orderbot/pkg/domain"

// SessionView is the public shape of a checkpoint, shared by the HTTP, MCP
// and CLI surfaces.
type SessionView struct {
	ThreadID    string            `json:"thread_id"`
	UserName    string            `json:"user_name"`
	Status      domain.TurnStatus `json:"status"`
	CurrentNode domain.NodeID     `json:"current_node"`
	LastIntent  domain.Intent     `json:"last_intent,omitempty"`
	Cart        []domain.CartLine `json:"cart"`
	Total       int64             `json:"total"`
	Transcript  []domain.Turn     `json:"transcript"`
	Version     int64             `json:"version"`
}

// NewSessionView builds the view of st. System turns are left out.
func NewSessionView(st *domain.ConversationState) SessionView {
	v := SessionView{
		ThreadID:    st.SessionID,
		UserName:    st.UserName,
		Status:      st.Status,
		CurrentNode: st.CurrentNode,
		LastIntent:  st.LastIntent,
		Cart:        st.Cart,
		Total:       domain.CartTotal(st.Cart),
		Transcript:  []domain.Turn{},
		Version:     st.Version,
	}
	if v.Cart == nil {
		v.Cart = []domain.CartLine{}
	}
	for _, t := range st.Transcript {
		if t.Role != domain.RoleSystem {
			v.Transcript = append(v.Transcript, t)
		}
	}
	return v
}
