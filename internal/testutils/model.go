package testutils

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// ErrScriptExhausted is returned when a ScriptedModel runs out of replies.
var ErrScriptExhausted = errors.New("scripted model: no reply queued")

// Reply is one scripted model answer.
type Reply struct {
	Text  string
	Err   error
	Delay time.Duration
	// Partial is streamed before Err is returned, to simulate a mid-stream failure.
	Partial string
}

// Text is a successful reply.
func Text(s string) Reply { return Reply{Text: s} }

// Fail is a failing reply.
func Fail(err error) Reply { return Reply{Err: err} }

// Request is what the model saw on one call.
type Request struct {
	Messages []llms.MessageContent
	Options  llms.CallOptions
}

// ScriptedModel is a deterministic llms.Model for tests. It pops one Reply
// per call, streams replies word by word when a streaming func is set, and
// records every request.
type ScriptedModel struct {
	mu       sync.Mutex
	replies  []Reply
	fallback *Reply
	requests []Request

	gate    chan struct{}
	entered chan struct{}
}

var _ llms.Model = (*ScriptedModel)(nil)

// NewScriptedModel queues replies in order.
func NewScriptedModel(replies ...Reply) *ScriptedModel {
	return &ScriptedModel{replies: replies}
}

// Enqueue appends replies.
func (m *ScriptedModel) Enqueue(replies ...Reply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, replies...)
}

// Always answers r whenever the queue is empty.
func (m *ScriptedModel) Always(r Reply) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &r
	return m
}

// Block makes every following call wait until release is called. entered
// receives once per call that reached the gate.
func (m *ScriptedModel) Block() (entered <-chan struct{}, release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
	m.entered = make(chan struct{}, 16)
	gate := m.gate
	var once sync.Once
	return m.entered, func() { once.Do(func() { close(gate) }) }
}

// Requests returns a copy of the recorded requests.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Calls returns the number of calls made.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest returns the most recent request.
func (m *ScriptedModel) LastRequest() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return Request{}
	}
	return m.requests[len(m.requests)-1]
}

// GenerateContent implements llms.Model.
func (m *ScriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}

	m.mu.Lock()
	m.requests = append(m.requests, Request{Messages: messages, Options: opts})
	var (
		reply Reply
		ok    bool
	)
	if len(m.replies) > 0 {
		reply, m.replies, ok = m.replies[0], m.replies[1:], true
	} else if m.fallback != nil {
		reply, ok = *m.fallback, true
	}
	gate, entered := m.gate, m.entered
	m.mu.Unlock()

	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if !ok {
		return nil, ErrScriptExhausted
	}

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if reply.Err != nil {
		if reply.Partial != "" && opts.StreamingFunc != nil {
			if err := stream(ctx, opts.StreamingFunc, reply.Partial); err != nil {
				return nil, err
			}
		}
		return nil, reply.Err
	}

	if opts.StreamingFunc != nil {
		if err := stream(ctx, opts.StreamingFunc, reply.Text); err != nil {
			return nil, err
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: reply.Text}}}, nil
}

// Call implements llms.Model.
func (m *ScriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func stream(ctx context.Context, fn func(context.Context, []byte) error, text string) error {
	for _, chunk := range strings.SplitAfter(text, " ") {
		if chunk == "" {
			continue
		}
		if err := fn(ctx, []byte(chunk)); err != nil {
			return err
		}
	}
	return nil
}

// MessageText flattens the text parts of a message.
func MessageText(mc llms.MessageContent) string {
	var b strings.Builder
	for _, p := range mc.Parts {
		if tc, ok := p.(llms.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}
