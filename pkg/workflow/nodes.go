package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/orderbot/pkg/cart"
	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/intent"
	"github.com/aretw0/orderbot/pkg/respond"
)

// turn carries what one Advance call accumulates across nodes.
type turn struct {
	sink     respond.Sink
	input    string
	messages []string
}

type nodeHandler func(ctx context.Context, st *domain.ConversationState, t *turn) (domain.Event, error)

func (e *Engine) handlers() map[domain.NodeID]nodeHandler {
	return map[domain.NodeID]nodeHandler{
		domain.NodeStart:                  e.start,
		domain.NodeLoadCatalog:            e.loadCatalog,
		domain.NodeGreet:                  e.greet,
		domain.NodeAwaitInput:             e.awaitInput,
		domain.NodeExtractIntent:          e.extractIntent,
		domain.NodeRespondBuyFollowup:     e.respondBuyFollowup,
		domain.NodeRespondClarify:         e.respondClarify,
		domain.NodeRespondCheckoutHandoff: e.respondCheckoutHandoff,
	}
}

func (e *Engine) start(context.Context, *domain.ConversationState, *turn) (domain.Event, error) {
	return domain.EventNext, nil
}

// loadCatalog snapshots the menu and seeds both transcripts.
func (e *Engine) loadCatalog(ctx context.Context, st *domain.ConversationState, _ *turn) (domain.Event, error) {
	items, err := e.catalog.ListActiveItems(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	discounted, err := e.catalog.ListDiscountedItems(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}

	st.Catalog = items
	st.Discounts = discounted
	st.Transcript = []domain.Turn{domain.SystemTurn(respond.SystemPrompt(items, discounted))}
	st.IntentTranscript = []domain.Turn{domain.SystemTurn(intent.SystemPrompt(items))}
	return domain.EventNext, nil
}

func (e *Engine) greet(ctx context.Context, st *domain.ConversationState, t *turn) (domain.Event, error) {
	text, extended, err := e.generate(ctx, st.Transcript, respond.GreetInstruction(st.UserName, st.Discounts), t)
	if err != nil {
		return "", err
	}
	st.Transcript = extended
	t.messages = append(t.messages, text)
	return domain.EventNext, nil
}

// awaitInput consumes the injected input.
func (e *Engine) awaitInput(_ context.Context, st *domain.ConversationState, t *turn) (domain.Event, error) {
	if st.PendingInput != nil {
		t.input = *st.PendingInput
	}
	st.PendingInput = nil
	if strings.TrimSpace(t.input) != "" {
		st.Transcript = append(st.Transcript, domain.UserTurn(t.input))
	}
	return domain.EventNext, nil
}

func (e *Engine) extractIntent(ctx context.Context, st *domain.ConversationState, t *turn) (domain.Event, error) {
	idx := st.CatalogIndex()
	extracted := e.extractor.Extract(ctx, st.IntentTranscript, t.input, idx)
	if strings.TrimSpace(t.input) != "" {
		st.IntentTranscript = intent.Request(st.IntentTranscript, strings.TrimSpace(t.input), idx)
	}

	lines, resolved := cart.ResolveAndAppend(st.Cart, extracted, idx)
	st.Cart = lines
	st.LastIntent = resolved

	e.logger.Debug("intent resolved",
		"session_id", st.SessionID,
		"intent", resolved,
		"extracted", extracted.Intent,
	)
	return Route(resolved), nil
}

// respondBuyFollowup keeps only the reply in the user-facing transcript;
// the intent transcript gets both so the classifier sees what was asked.
func (e *Engine) respondBuyFollowup(ctx context.Context, st *domain.ConversationState, t *turn) (domain.Event, error) {
	instruction := respond.BuyFollowupInstruction()
	text, _, err := e.generate(ctx, st.Transcript, instruction, t)
	if err != nil {
		return "", err
	}
	reply := domain.AssistantTurn(text)
	st.Transcript = append(st.Transcript, reply)
	st.IntentTranscript = append(st.IntentTranscript, instruction, reply)
	t.messages = append(t.messages, text)
	return domain.EventNext, nil
}

// respondClarify feeds the question back to the classifier too, so a short
// confirmation on the next turn can be resolved.
func (e *Engine) respondClarify(ctx context.Context, st *domain.ConversationState, t *turn) (domain.Event, error) {
	text, _, err := e.generate(ctx, st.Transcript, respond.ClarifyInstruction(), t)
	if err != nil {
		return "", err
	}
	reply := domain.AssistantTurn(text)
	st.Transcript = append(st.Transcript, reply)
	st.IntentTranscript = append(st.IntentTranscript, reply)
	t.messages = append(t.messages, text)
	return domain.EventNext, nil
}

func (e *Engine) respondCheckoutHandoff(ctx context.Context, st *domain.ConversationState, t *turn) (domain.Event, error) {
	text, extended, err := e.generate(ctx, st.Transcript, respond.CheckoutInstruction(st.Cart), t)
	if err != nil {
		return "", err
	}
	st.Transcript = extended
	t.messages = append(t.messages, text)
	return domain.EventNext, nil
}

func (e *Engine) generate(ctx context.Context, transcript []domain.Turn, instruction domain.Turn, t *turn) (string, []domain.Turn, error) {
	text, extended, err := e.generator.Generate(ctx, transcript, instruction, t.sink)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	return text, extended, nil
}
