package workflow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/aretw0/orderbot/internal/testutils"
	"github.com/aretw0/orderbot/pkg/adapters/memory"
	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/intent"
	"github.com/aretw0/orderbot/pkg/llm"
	"github.com/aretw0/orderbot/pkg/ports"
	"github.com/aretw0/orderbot/pkg/respond"
	"github.com/aretw0/orderbot/pkg/session"
	"github.com/aretw0/orderbot/pkg/workflow"
)

type harness struct {
	engine *workflow.Engine
	model  *testutils.ScriptedModel
	store  ports.CheckpointStore
}

func newHarness(t *testing.T, opts ...workflow.Option) *harness {
	t.Helper()
	return newHarnessWithStore(t, memory.NewStore(), opts...)
}

func newHarnessWithStore(t *testing.T, store ports.CheckpointStore, opts ...workflow.Option) *harness {
	t.Helper()
	catalog, err := memory.NewCatalog(testutils.ScenarioItems())
	require.NoError(t, err)

	model := testutils.NewScriptedModel()
	client := llm.NewClient(model, llm.WithRetry(llm.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}))
	engine := workflow.New(
		session.NewManager(store),
		catalog,
		intent.New(client),
		respond.New(client),
		opts...,
	)
	return &harness{engine: engine, model: model, store: store}
}

func (h *harness) load(t *testing.T, id string) *domain.ConversationState {
	t.Helper()
	st, err := h.store.Load(context.Background(), id)
	require.NoError(t, err)
	return st
}

type chunkSink struct {
	mu     sync.Mutex
	chunks []string
}

func (s *chunkSink) Write(c string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, c)
	return nil
}

func (s *chunkSink) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	return nil
}

func (s *chunkSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.chunks, "")
}

func TestEngine_Scenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Turn 1: greeting.
	h.model.Enqueue(testutils.Text("Chào Hoàng! Hôm nay Bánh mì đang giảm 10%, bạn muốn đặt gì?"))
	sink := &chunkSink{}
	res, err := h.engine.Start(ctx, "t1", "", sink)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuspended, res.Status)
	require.Len(t, res.Messages, 1)
	assert.Contains(t, res.Messages[0], "Bánh mì")
	assert.Equal(t, res.Messages[0], sink.String())

	st := h.load(t, "t1")
	assert.Equal(t, domain.NodeAwaitInput, st.CurrentNode)
	assert.Equal(t, int64(1), st.Version)
	assert.Equal(t, "Lê Hoàng", st.UserName)
	assert.Len(t, st.Catalog, 2)
	assert.Len(t, st.Discounts, 1)
	require.Len(t, st.Transcript, 3, "system prompt, greet instruction, reply")
	require.Len(t, st.IntentTranscript, 1)
	assert.Contains(t, st.IntentTranscript[0].Content, "- ID 1: Phở")

	// Turn 2: buy two phở.
	h.model.Enqueue(
		testutils.Text(`{"intent":"BUY","item_id":1,"quantity":2}`),
		testutils.Text("Bạn có muốn thêm món gì nữa không?"),
	)
	res, err = h.engine.Resume(ctx, "t1", "cho tôi 2 phở", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuspended, res.Status)
	assert.Equal(t, domain.IntentBuy, res.Intent)
	assert.Equal(t, []domain.CartLine{{ItemID: 1, Title: "Phở", UnitPrice: 50000, Quantity: 2}}, res.Cart)
	require.NotNil(t, res.Diff)
	assert.Len(t, res.Diff.Cart, 1)

	st = h.load(t, "t1")
	assert.Equal(t, domain.IntentBuy, st.LastIntent)
	assert.Nil(t, st.PendingInput)
	assert.Equal(t, domain.UserTurn("cho tôi 2 phở"), st.Transcript[3])
	assert.Equal(t, domain.RoleAssistant, st.Transcript[4].Role, "follow-up instruction not kept")
	// intent transcript: rules, user turn, follow-up instruction, reply.
	require.Len(t, st.IntentTranscript, 4)

	// Turn 3: done.
	h.model.Enqueue(
		testutils.Text(`{"intent":"NOT_BUY","item_id":null,"quantity":null}`),
		testutils.Text("Cảm ơn bạn! Mời bạn đến giỏ hàng để thanh toán."),
	)
	res, err = h.engine.Resume(ctx, "t1", "vậy đủ rồi, không mua gì nữa", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTerminated, res.Status)
	assert.Equal(t, domain.IntentNotBuy, res.Intent)
	require.Len(t, res.Cart, 1)
	assert.Contains(t, res.Messages[0], "giỏ hàng")

	// The checkout instruction carried the cart summary.
	last := h.model.LastRequest().Messages
	assert.Contains(t, testutils.MessageText(last[len(last)-1]), "- Phở (ID:1): 2 x 50,000đ = 100,000đ")

	st = h.load(t, "t1")
	assert.Equal(t, domain.NodeEnd, st.CurrentNode)
	assert.True(t, st.Terminated())
	assert.Equal(t, int64(3), st.Version)
}

func TestEngine_UnknownItemDowngradesToUnclear(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.model.Enqueue(testutils.Text("Chào bạn!"))
	_, err := h.engine.Start(ctx, "t1", "", nil)
	require.NoError(t, err)

	h.model.Enqueue(
		testutils.Text(`{"intent":"BUY","item_id":42,"quantity":3}`),
		testutils.Text("Xin lỗi, món đó không có. Bạn muốn món nào?"),
	)
	res, err := h.engine.Resume(ctx, "t1", "cho tôi 3 bò kho", nil)
	require.NoError(t, err)

	assert.Equal(t, domain.IntentUnclear, res.Intent)
	assert.Empty(t, res.Cart)
	assert.Equal(t, domain.StatusSuspended, res.Status)

	st := h.load(t, "t1")
	assert.Equal(t, domain.IntentUnclear, st.LastIntent)
	// The clarification also lands in the intent transcript.
	assert.Equal(t, domain.AssistantTurn("Xin lỗi, món đó không có. Bạn muốn món nào?"), st.IntentTranscript[len(st.IntentTranscript)-1])
}

func TestEngine_BuyWithoutQuantityNeverRecordedAsBuy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.model.Enqueue(testutils.Text("Chào bạn!"))
	_, err := h.engine.Start(ctx, "t1", "", nil)
	require.NoError(t, err)

	h.model.Enqueue(
		testutils.Text(`{"intent":"BUY","item_id":1,"quantity":0}`),
		testutils.Text("Bạn muốn mấy phần phở?"),
	)
	res, err := h.engine.Resume(ctx, "t1", "phở", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentUnclear, res.Intent)
	assert.Equal(t, domain.IntentUnclear, h.load(t, "t1").LastIntent)
}

func TestEngine_ExtractionFailureFoldsToUnclear(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.model.Enqueue(testutils.Text("Chào bạn!"))
	_, err := h.engine.Start(ctx, "t1", "", nil)
	require.NoError(t, err)

	h.model.Enqueue(
		testutils.Fail(errors.New("API key not valid")),
		testutils.Text("Bạn nói lại giúp mình nhé?"),
	)
	res, err := h.engine.Resume(ctx, "t1", "cho tôi 2 phở", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentUnclear, res.Intent)
	assert.Equal(t, []string{"Bạn nói lại giúp mình nhé?"}, res.Messages)
}

func TestEngine_EmptyInputIsUnclearWithoutExtraction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.model.Enqueue(testutils.Text("Chào bạn!"))
	_, err := h.engine.Start(ctx, "t1", "", nil)
	require.NoError(t, err)
	before := h.load(t, "t1")

	h.model.Enqueue(testutils.Text("Bạn muốn gọi món gì?"))
	res, err := h.engine.Resume(ctx, "t1", "   ", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentUnclear, res.Intent)
	assert.Equal(t, 2, h.model.Calls(), "greeting and clarification only")

	after := h.load(t, "t1")
	assert.Len(t, after.IntentTranscript, len(before.IntentTranscript)+1, "only the clarification reply")
}

func TestEngine_ProtocolErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.Resume(ctx, "missing", "hi", nil)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = h.engine.Advance(ctx, workflow.TurnRequest{})
	assert.ErrorIs(t, err, domain.ErrEmptySessionID)

	h.model.Enqueue(testutils.Text("Chào bạn!"))
	_, err = h.engine.Start(ctx, "t1", "", nil)
	require.NoError(t, err)

	_, err = h.engine.Start(ctx, "t1", "", nil)
	assert.ErrorIs(t, err, domain.ErrSessionExists)
	assert.Equal(t, int64(1), h.load(t, "t1").Version)
}

func TestEngine_TerminalImmutability(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.model.Enqueue(
		testutils.Text("Chào bạn!"),
		testutils.Text(`{"intent":"NOT_BUY"}`),
		testutils.Text("Tạm biệt, hẹn gặp lại!"),
	)
	_, err := h.engine.Start(ctx, "t1", "", nil)
	require.NoError(t, err)
	res, err := h.engine.Resume(ctx, "t1", "không mua đâu", nil)
	require.NoError(t, err)
	require.Equal(t, domain.StatusTerminated, res.Status)
	assert.Empty(t, res.Cart)

	before := h.load(t, "t1")
	calls := h.model.Calls()

	for _, input := range []string{"cho tôi 2 phở", "", "xin chào"} {
		_, err := h.engine.Resume(ctx, "t1", input, nil)
		assert.ErrorIs(t, err, domain.ErrSessionTerminated)
	}

	after := h.load(t, "t1")
	assert.Equal(t, before.Transcript, after.Transcript)
	assert.Equal(t, before.Cart, after.Cart)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, calls, h.model.Calls())
}

func TestEngine_IdempotencyKeyReplays(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.model.Enqueue(testutils.Text("Chào bạn!"))
	_, err := h.engine.Start(ctx, "t1", "", nil)
	require.NoError(t, err)

	h.model.Enqueue(
		testutils.Text(`{"intent":"BUY","item_id":2,"quantity":1}`),
		testutils.Text("Thêm gì nữa không?"),
	)
	input := "một bánh mì"
	req := workflow.TurnRequest{SessionID: "t1", Input: &input, IdempotencyKey: "m-1"}

	first, err := h.engine.Advance(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	afterFirst := h.load(t, "t1")

	second, err := h.engine.Advance(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Messages, second.Messages)
	assert.Equal(t, first.Cart, second.Cart)

	afterSecond := h.load(t, "t1")
	assert.Equal(t, afterFirst.Version, afterSecond.Version)
	assert.Len(t, afterSecond.Cart, 1)
	assert.Len(t, afterSecond.Transcript, len(afterFirst.Transcript))
}

// flakyStore fails the first n saves.
type flakyStore struct {
	ports.CheckpointStore
	mu    sync.Mutex
	fails int
}

func (s *flakyStore) Save(ctx context.Context, id string, st *domain.ConversationState) error {
	s.mu.Lock()
	if s.fails > 0 {
		s.fails--
		s.mu.Unlock()
		return errors.New("connection refused")
	}
	s.mu.Unlock()
	return s.CheckpointStore.Save(ctx, id, st)
}

func TestEngine_RetryAfterFailedCommitDoesNotDuplicate(t *testing.T) {
	store := &flakyStore{CheckpointStore: memory.NewStore()}
	h := newHarnessWithStore(t, store)
	ctx := context.Background()

	h.model.Enqueue(testutils.Text("Chào bạn!"))
	_, err := h.engine.Start(ctx, "t1", "", nil)
	require.NoError(t, err)
	before := h.load(t, "t1")

	buy := []testutils.Reply{
		testutils.Text(`{"intent":"BUY","item_id":1,"quantity":2}`),
		testutils.Text("Thêm gì nữa không?"),
	}

	store.fails = 1
	h.model.Enqueue(buy...)
	_, err = h.engine.Resume(ctx, "t1", "cho tôi 2 phở", nil)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	unchanged := h.load(t, "t1")
	assert.Equal(t, before.Version, unchanged.Version)
	assert.Equal(t, before.Transcript, unchanged.Transcript)
	assert.Empty(t, unchanged.Cart)

	h.model.Enqueue(buy...)
	_, err = h.engine.Resume(ctx, "t1", "cho tôi 2 phở", nil)
	require.NoError(t, err)

	after := h.load(t, "t1")
	assert.Len(t, after.Cart, 1)
	assert.Len(t, after.Transcript, len(before.Transcript)+2, "one user turn, one reply")
}

func TestEngine_GenerationFailureAbortsTurn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.model.Enqueue(testutils.Text("Chào bạn!"))
	_, err := h.engine.Start(ctx, "t1", "", nil)
	require.NoError(t, err)
	before := h.load(t, "t1")

	h.model.Enqueue(
		testutils.Text(`{"intent":"BUY","item_id":1,"quantity":1}`),
		testutils.Fail(errors.New("503 unavailable")),
		testutils.Fail(errors.New("503 unavailable")),
	)
	_, err = h.engine.Resume(ctx, "t1", "1 phở", nil)
	require.ErrorIs(t, err, domain.ErrGenerationFailed)
	assert.True(t, llm.IsTransient(err))

	after := h.load(t, "t1")
	assert.Equal(t, before.Version, after.Version)
	assert.Empty(t, after.Cart)
	assert.Equal(t, domain.NodeAwaitInput, after.CurrentNode)
}

func TestEngine_GreetFailureSavesNothing(t *testing.T) {
	h := newHarness(t)
	h.model.Enqueue(testutils.Fail(errors.New("API key not valid")))

	_, err := h.engine.Start(context.Background(), "t1", "", nil)
	require.ErrorIs(t, err, domain.ErrGenerationFailed)

	_, err = h.store.Load(context.Background(), "t1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

type brokenCatalog struct{ ports.CatalogService }

func (brokenCatalog) ListActiveItems(context.Context) ([]domain.MenuItem, error) {
	return nil, errors.New("no route to host")
}

func TestEngine_CatalogFailure(t *testing.T) {
	store := memory.NewStore()
	client := llm.NewClient(testutils.NewScriptedModel())
	engine := workflow.New(session.NewManager(store), brokenCatalog{}, intent.New(client), respond.New(client))

	_, err := engine.Start(context.Background(), "t1", "", nil)
	require.ErrorIs(t, err, domain.ErrCatalogUnavailable)
	_, err = store.Load(context.Background(), "t1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_ConcurrentTurnIsBusy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.model.Enqueue(testutils.Text("Chào bạn!"))
	_, err := h.engine.Start(ctx, "t1", "", nil)
	require.NoError(t, err)

	h.model.Enqueue(
		testutils.Text(`{"intent":"BUY","item_id":1,"quantity":1}`),
		testutils.Text("Thêm gì nữa không?"),
	)
	entered, release := h.model.Block()

	done := make(chan error, 1)
	go func() {
		_, err := h.engine.Resume(ctx, "t1", "1 phở", nil)
		done <- err
	}()
	<-entered

	_, err = h.engine.Resume(ctx, "t1", "1 phở", nil)
	assert.ErrorIs(t, err, domain.ErrSessionBusy)

	release()
	require.NoError(t, <-done)
	assert.Len(t, h.load(t, "t1").Cart, 1)
}

func TestEngine_CustomUserName(t *testing.T) {
	h := newHarness(t, workflow.WithDefaultUserName("Minh"))
	ctx := context.Background()

	h.model.Enqueue(testutils.Text("Chào Minh!"), testutils.Text("Chào An!"))
	_, err := h.engine.Start(ctx, "a", "", nil)
	require.NoError(t, err)
	_, err = h.engine.Start(ctx, "b", "An", nil)
	require.NoError(t, err)

	assert.Equal(t, "Minh", h.load(t, "a").UserName)
	assert.Equal(t, "An", h.load(t, "b").UserName)
	assert.Contains(t, testutils.MessageText(h.model.LastRequest().Messages[1]), "Người dùng tên là An.")
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.CheckoutEvent
	err    error
}

func (p *recordingPublisher) PublishCheckout(_ context.Context, ev ports.CheckoutEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func TestEngine_CheckoutPublished(t *testing.T) {
	for _, pubErr := range []error{nil, errors.New("nats: no responders")} {
		pub := &recordingPublisher{err: pubErr}
		h := newHarness(t, workflow.WithCheckoutPublisher(pub))
		ctx := context.Background()

		h.model.Enqueue(
			testutils.Text("Chào bạn!"),
			testutils.Text(`{"intent":"BUY","item_id":2,"quantity":3}`),
			testutils.Text("Thêm gì nữa không?"),
			testutils.Text(`{"intent":"NOT_BUY"}`),
			testutils.Text("Mời bạn đến giỏ hàng."),
		)
		_, err := h.engine.Start(ctx, "t1", "", nil)
		require.NoError(t, err)
		_, err = h.engine.Resume(ctx, "t1", "3 bánh mì", nil)
		require.NoError(t, err)
		assert.Empty(t, pub.events)

		res, err := h.engine.Resume(ctx, "t1", "thôi", nil)
		require.NoError(t, err, "publish failure never fails the turn")
		assert.Equal(t, domain.StatusTerminated, res.Status)

		require.Len(t, pub.events, 1)
		assert.Equal(t, "t1", pub.events[0].SessionID)
		assert.Equal(t, int64(54000), pub.events[0].Total)
	}
}

func TestEngine_NoCheckoutForEmptyCart(t *testing.T) {
	pub := &recordingPublisher{}
	h := newHarness(t, workflow.WithCheckoutPublisher(pub))
	ctx := context.Background()

	h.model.Enqueue(testutils.Text("Chào bạn!"), testutils.Text(`{"intent":"NOT_BUY"}`), testutils.Text("Tạm biệt!"))
	_, err := h.engine.Start(ctx, "t1", "", nil)
	require.NoError(t, err)
	_, err = h.engine.Resume(ctx, "t1", "không", nil)
	require.NoError(t, err)
	assert.Empty(t, pub.events)
}

func TestEngine_LifecycleHooks(t *testing.T) {
	var (
		mu      sync.Mutex
		entered []domain.NodeID
		commits []*domain.TurnEvent
		failed  int
	)
	hooks := domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			mu.Lock()
			defer mu.Unlock()
			entered = append(entered, e.NodeID)
		},
		OnTurnCommit: func(_ context.Context, e *domain.TurnEvent) {
			mu.Lock()
			defer mu.Unlock()
			commits = append(commits, e)
		},
		OnTurnFailed: func(context.Context, *domain.TurnEvent) {
			mu.Lock()
			defer mu.Unlock()
			failed++
		},
	}
	h := newHarness(t, workflow.WithLifecycleHooks(hooks))
	ctx := context.Background()

	h.model.Enqueue(
		testutils.Text("Chào bạn!"),
		testutils.Text(`{"intent":"BUY","item_id":1,"quantity":1}`),
		testutils.Text("Thêm gì nữa không?"),
	)
	_, err := h.engine.Start(ctx, "t1", "", nil)
	require.NoError(t, err)
	_, err = h.engine.Resume(ctx, "t1", "1 phở", nil)
	require.NoError(t, err)
	_, err = h.engine.Resume(ctx, "nope", "x", nil)
	require.Error(t, err)

	assert.Equal(t, []domain.NodeID{
		domain.NodeStart, domain.NodeLoadCatalog, domain.NodeGreet,
		domain.NodeAwaitInput, domain.NodeExtractIntent, domain.NodeRespondBuyFollowup,
	}, entered)
	require.Len(t, commits, 2)
	assert.Equal(t, 1, commits[1].CartAdded)
	assert.Equal(t, domain.IntentBuy, commits[1].Intent)
	assert.Equal(t, 1, failed)
}

func TestEngine_Tracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	h := newHarness(t, workflow.WithTracerProvider(tp))
	h.model.Enqueue(testutils.Text("Chào bạn!"))
	_, err := h.engine.Start(context.Background(), "t1", "", nil)
	require.NoError(t, err)

	names := map[string]bool{}
	var turnSpan tracetest.SpanStub
	for _, s := range exporter.GetSpans() {
		names[s.Name] = true
		if s.Name == "orderbot.turn" {
			turnSpan = s
		}
	}
	for _, want := range []string{"orderbot.turn", "orderbot.node.START", "orderbot.node.LoadCatalog", "orderbot.node.Greet"} {
		assert.True(t, names[want], "missing span %s", want)
	}
	assert.False(t, names["orderbot.node.AwaitInput"], "suspension does not run AwaitInput")

	for _, s := range exporter.GetSpans() {
		if strings.HasPrefix(s.Name, "orderbot.node.") {
			assert.Equal(t, turnSpan.SpanContext.SpanID(), s.Parent.SpanID())
		}
	}
}
