package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/orderbot/internal/testutils"
	"github.com/aretw0/orderbot/pkg/adapters/memory"
	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/intent"
	"github.com/aretw0/orderbot/pkg/llm"
	"github.com/aretw0/orderbot/pkg/observability"
	"github.com/aretw0/orderbot/pkg/respond"
	"github.com/aretw0/orderbot/pkg/runner"
	"github.com/aretw0/orderbot/pkg/session"
	"github.com/aretw0/orderbot/pkg/workflow"
)

type fixture struct {
	srv     *Server
	handler http.Handler
	model   *testutils.ScriptedModel
	engine  *workflow.Engine
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	catalog, err := memory.NewCatalog(testutils.ScenarioItems())
	require.NoError(t, err)

	model := testutils.NewScriptedModel()
	client := llm.NewClient(model, llm.WithRetry(llm.RetryConfig{MaxAttempts: 1}))
	engine := workflow.New(session.NewManager(memory.NewStore()), catalog, intent.New(client), respond.New(client))
	srv := NewServer(engine, opts...)
	return &fixture{srv: srv, handler: srv.Routes(), model: model, engine: engine}
}

func (f *fixture) post(t *testing.T, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/chat/message", bytes.NewReader(data))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func (f *fixture) start(t *testing.T, id string) {
	t.Helper()
	f.model.Enqueue(testutils.Text("Chào bạn!"))
	w := f.post(t, map[string]any{"thread_id": id, "is_first_message": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

// events splits an SSE body into its data payloads.
func events(body string) []string {
	var out []string
	for _, block := range strings.Split(body, "\n\n") {
		if data, ok := strings.CutPrefix(block, "data: "); ok {
			out = append(out, data)
		}
	}
	return out
}

func TestPostMessage_FirstMessageMintsThread(t *testing.T) {
	f := newFixture(t)
	f.model.Enqueue(testutils.Text("Chào Hoàng! Mời bạn xem thực đơn."))

	w := f.post(t, map[string]any{"isFirstMessage": true, "userName": "Hoàng"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	id := w.Header().Get(HeaderThreadID)
	require.NotEmpty(t, id)

	evs := events(w.Body.String())
	require.NotEmpty(t, evs)
	assert.Equal(t, EventDone, evs[len(evs)-1])
	assert.Equal(t, "Chào Hoàng! Mời bạn xem thực đơn.", strings.Join(evs[:len(evs)-1], ""))

	st, err := f.engine.State(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Hoàng", st.UserName)
	assert.Equal(t, domain.NodeAwaitInput, st.CurrentNode)
}

func TestPostMessage_Scenario(t *testing.T) {
	f := newFixture(t)
	f.start(t, "t1")

	f.model.Enqueue(
		testutils.Text(`{"intent":"BUY","item_id":1,"quantity":2}`),
		testutils.Text("Thêm món gì nữa không?"),
	)
	w := f.post(t, map[string]any{"thread_id": "t1", "message": "cho tôi 2 phở"})
	require.Equal(t, http.StatusOK, w.Code)
	evs := events(w.Body.String())
	assert.Equal(t, EventDone, evs[len(evs)-1])
	assert.NotContains(t, w.Body.String(), EventCartData)

	f.model.Enqueue(
		testutils.Text(`{"intent":"NOT_BUY","item_id":null,"quantity":null}`),
		testutils.Text("Cảm ơn!\nMời bạn thanh toán."),
	)
	w = f.post(t, map[string]any{"threadId": "t1", "message": "đủ rồi"})
	require.Equal(t, http.StatusOK, w.Code)
	evs = events(w.Body.String())
	require.GreaterOrEqual(t, len(evs), 3)

	// Text, then cart data, then done.
	assert.Equal(t, EventDone, evs[len(evs)-1])
	cartEvent := evs[len(evs)-2]
	require.True(t, strings.HasPrefix(cartEvent, EventCartData), cartEvent)
	var lines []domain.CartLine
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(cartEvent, EventCartData)), &lines))
	assert.Equal(t, []domain.CartLine{{ItemID: 1, Title: "Phở", UnitPrice: 50000, Quantity: 2}}, lines)

	text := strings.Join(evs[:len(evs)-2], "")
	assert.Equal(t, `Cảm ơn!\nMời bạn thanh toán.`, text, "newlines are escaped inside a data line")

	// The session is over.
	w = f.post(t, map[string]any{"thread_id": "t1", "message": "còn nữa"})
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestPostMessage_Errors(t *testing.T) {
	f := newFixture(t, WithMaxInputSize(16))
	f.start(t, "t1")

	tests := []struct {
		name string
		body any
		raw  string
		code int
	}{
		{name: "malformed body", raw: "{", code: http.StatusBadRequest},
		{name: "missing thread id", body: map[string]any{"message": "hi"}, code: http.StatusBadRequest},
		{name: "unknown thread", body: map[string]any{"thread_id": "nope", "message": "hi"}, code: http.StatusNotFound},
		{name: "already started", body: map[string]any{"thread_id": "t1", "is_first_message": true}, code: http.StatusConflict},
		{name: "input too large", body: map[string]any{"thread_id": "t1", "message": strings.Repeat("a", 17)}, code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w *httptest.ResponseRecorder
			if tt.raw != "" {
				req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(tt.raw))
				w = httptest.NewRecorder()
				f.handler.ServeHTTP(w, req)
			} else {
				w = f.post(t, tt.body)
			}
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Code)
		})
	}
	assert.Equal(t, 1, f.model.Calls(), "rejected requests never reach the model")
}

func TestPostMessage_GenerationFailure(t *testing.T) {
	t.Run("before streaming", func(t *testing.T) {
		f := newFixture(t)
		f.model.Enqueue(testutils.Fail(errors.New("API key not valid")))

		w := f.post(t, map[string]any{"thread_id": "t1", "is_first_message": true})
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), "generation_failed")

		_, err := f.engine.State(context.Background(), "t1")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("mid stream", func(t *testing.T) {
		f := newFixture(t)
		f.model.Enqueue(testutils.Reply{Partial: "Chào ", Err: errors.New("API key not valid")})

		w := f.post(t, map[string]any{"thread_id": "t1", "is_first_message": true})
		assert.Equal(t, http.StatusOK, w.Code)
		evs := events(w.Body.String())
		require.NotEmpty(t, evs)
		assert.True(t, strings.HasPrefix(evs[len(evs)-1], EventError), evs)
		assert.NotContains(t, evs, EventDone)
	})
}

// flakyStore fails every Save while down is set.
type flakyStore struct {
	*memory.Store
	down atomic.Bool
}

func (s *flakyStore) Save(ctx context.Context, id string, st *domain.ConversationState) error {
	if s.down.Load() {
		return errors.New("connection refused")
	}
	return s.Store.Save(ctx, id, st)
}

func TestPostMessage_SaveFailureAfterStreaming(t *testing.T) {
	catalog, err := memory.NewCatalog(testutils.ScenarioItems())
	require.NoError(t, err)
	store := &flakyStore{Store: memory.NewStore()}
	model := testutils.NewScriptedModel()
	client := llm.NewClient(model, llm.WithRetry(llm.RetryConfig{MaxAttempts: 1}))
	engine := workflow.New(session.NewManager(store), catalog, intent.New(client), respond.New(client))
	handler := NewServer(engine).Routes()
	post := func(body map[string]any) []string {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat/message", bytes.NewReader(data)))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		return events(w.Body.String())
	}

	model.Enqueue(testutils.Text("Chào bạn!"))
	post(map[string]any{"thread_id": "t1", "is_first_message": true})
	before, err := engine.State(context.Background(), "t1")
	require.NoError(t, err)

	store.down.Store(true)
	model.Enqueue(testutils.Text(`{"intent":"BUY","item_id":1,"quantity":2}`), testutils.Text("Thêm gì nữa không?"))
	evs := post(map[string]any{"thread_id": "t1", "message": "2 phở"})
	require.Greater(t, len(evs), 1)
	assert.Equal(t, "Thêm ", evs[0], "reply text streamed before the failure")
	assert.True(t, strings.HasPrefix(evs[len(evs)-1], EventError), evs)
	assert.NotContains(t, evs, EventDone)

	after, err := engine.State(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Empty(t, after.Cart)
	assert.Equal(t, before.Transcript, after.Transcript)

	store.down.Store(false)
	model.Enqueue(testutils.Text(`{"intent":"BUY","item_id":1,"quantity":2}`), testutils.Text("Thêm gì nữa không?"))
	evs = post(map[string]any{"thread_id": "t1", "message": "2 phở"})
	assert.Equal(t, EventDone, evs[len(evs)-1])

	final, err := engine.State(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, final.Cart, 1)
	assert.Equal(t, 2, final.Cart[0].Quantity)
}

func TestPostMessage_IdempotencyKeyReplays(t *testing.T) {
	f := newFixture(t)
	f.start(t, "t1")

	f.model.Enqueue(
		testutils.Text(`{"intent":"BUY","item_id":2,"quantity":1}`),
		testutils.Text("Thêm gì nữa không?"),
	)
	body := map[string]any{"thread_id": "t1", "message": "1 bánh mì"}
	first := f.post(t, body, "Idempotency-Key", "m-1")
	require.Equal(t, http.StatusOK, first.Code)
	calls := f.model.Calls()

	second := f.post(t, body, "Idempotency-Key", "m-1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, calls, f.model.Calls())

	evs := events(second.Body.String())
	assert.Equal(t, []string{"Thêm gì nữa không?", EventDone}, evs)

	st, err := f.engine.State(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, st.Cart, 1)
}

func TestReset(t *testing.T) {
	f := newFixture(t)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/chat/reset?thread_id=t1", nil),
		httptest.NewRequest(http.MethodPost, "/chat/reset", strings.NewReader(`{"thread_id":"t1"}`)),
	} {
		w := httptest.NewRecorder()
		f.handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok","message":"Please use a new thread_id to start fresh."}`, w.Body.String())
	}
}

func TestGetSession(t *testing.T) {
	f := newFixture(t)
	f.start(t, "t1")

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chat/sessions/t1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var view runner.SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "t1", view.ThreadID)
	assert.Equal(t, domain.StatusSuspended, view.Status)
	assert.Equal(t, domain.NodeAwaitInput, view.CurrentNode)
	assert.Empty(t, view.Cart)
	for _, turn := range view.Transcript {
		assert.NotEqual(t, domain.RoleSystem, turn.Role)
	}

	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chat/sessions/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetGraph(t *testing.T) {
	f := newFixture(t)
	f.start(t, "t1")

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/graph", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "graph TD"))
	assert.NotContains(t, w.Body.String(), "class ")

	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/graph?thread_id=t1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "class AwaitInput current;")
}

func TestHealthInfoMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = observability.NewMetrics(reg)
	f := newFixture(t, WithMetrics(reg), WithVersion("1.2.3\n"))

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/info", nil))
	assert.JSONEq(t, `{"app":"orderbot-http","version":"1.2.3"}`, w.Body.String())

	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "orderbot_turn_duration_seconds")

	// Without a gatherer there is no /metrics route.
	plain := newFixture(t)
	w = httptest.NewRecorder()
	plain.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORS(t *testing.T) {
	f := newFixture(t)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/chat/message", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key")
	assert.Equal(t, HeaderThreadID, w.Header().Get("Access-Control-Expose-Headers"))
}

func TestSubscribeEvents_Session(t *testing.T) {
	f := newFixture(t)
	f.start(t, "t1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wSub := httptest.NewRecorder()
	reqSub := httptest.NewRequest(http.MethodGet, "/chat/events?thread_id=t1", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.handler.ServeHTTP(wSub, reqSub)
	}()

	require.Eventually(t, func() bool { return f.srv.streams.Subscribers("t1") == 1 }, time.Second, 5*time.Millisecond)

	f.model.Enqueue(
		testutils.Text(`{"intent":"BUY","item_id":1,"quantity":1}`),
		testutils.Text("Thêm gì nữa không?"),
	)
	w := f.post(t, map[string]any{"thread_id": "t1", "message": "1 phở"})
	require.Equal(t, http.StatusOK, w.Code)

	// The subscriber channel is buffered; give the handler a moment to drain it.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	output := wSub.Body.String()
	assert.Contains(t, output, "event: ping")
	assert.Contains(t, output, "event: diff")
	assert.Contains(t, output, `"item_id":1`)
	assert.Equal(t, 0, f.srv.streams.Subscribers("t1"))
}

func TestSubscribeEvents_RequiresThread(t *testing.T) {
	f := newFixture(t)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chat/events", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamManager(t *testing.T) {
	sm := NewStreamManager()
	ch, cancel := sm.Subscribe("s1")
	sm.Broadcast("s1", "hello")
	sm.Broadcast("s2", "ignored")
	assert.Equal(t, "hello", <-ch)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, sm.Subscribers("s1"))
}
