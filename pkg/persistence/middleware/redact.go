package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/ports"
)

// Mask replaces redacted text.
const Mask = "***"

// DefaultRedactPatterns match phone numbers and e-mail addresses.
var DefaultRedactPatterns = []string{
	`[\w.+-]+@[\w-]+\.[\w.-]+`,
	`(?:\+?84|0)(?:[\s.-]?\d){8,10}`,
}

type redactor struct {
	next     ports.CheckpointStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware masks matches of patterns in the transcripts of
// loaded checkpoints. Saves pass through untouched, so wrap a store with it
// only for export and inspection, never for the engine.
func NewRedactionMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &redactor{next: next, patterns: patterns}
	}
}

func (m *redactor) Save(ctx context.Context, sessionID string, state *domain.ConversationState) error {
	return m.next.Save(ctx, sessionID, state)
}

func (m *redactor) Load(ctx context.Context, sessionID string) (*domain.ConversationState, error) {
	st, err := m.next.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// Stores may hand out shared values.
	st = st.Clone()
	m.mask(st.Transcript)
	m.mask(st.IntentTranscript)
	if st.PendingInput != nil {
		v := m.apply(*st.PendingInput)
		st.PendingInput = &v
	}
	if st.LastTurn != nil {
		for i, msg := range st.LastTurn.Messages {
			st.LastTurn.Messages[i] = m.apply(msg)
		}
	}
	return st, nil
}

func (m *redactor) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *redactor) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *redactor) mask(turns []domain.Turn) {
	for i := range turns {
		if turns[i].Role == domain.RoleSystem {
			continue
		}
		turns[i].Content = m.apply(turns[i].Content)
	}
}

func (m *redactor) apply(s string) string {
	for _, re := range m.patterns {
		s = re.ReplaceAllString(s, Mask)
	}
	return s
}
