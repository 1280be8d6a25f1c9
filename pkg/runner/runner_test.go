package runner_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/orderbot/internal/testutils"
	"github.com/aretw0/orderbot/pkg/adapters/memory"
	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/intent"
	"github.com/aretw0/orderbot/pkg/llm"
	"github.com/aretw0/orderbot/pkg/respond"
	"github.com/aretw0/orderbot/pkg/runner"
	"github.com/aretw0/orderbot/pkg/session"
	"github.com/aretw0/orderbot/pkg/workflow"
)

// fakeEngine echoes inputs and terminates on "bye".
type fakeEngine struct {
	mu      sync.Mutex
	state   *domain.ConversationState
	inputs  []string
	started int
	failOn  string
}

func (f *fakeEngine) Start(_ context.Context, id, userName string, _ respond.Sink) (*workflow.TurnResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	f.state = domain.NewConversationState(id, userName)
	f.state.CurrentNode = domain.NodeAwaitInput
	return &workflow.TurnResult{SessionID: id, Status: domain.StatusSuspended, Messages: []string{"hello " + userName}}, nil
}

func (f *fakeEngine) Resume(_ context.Context, id, input string, _ respond.Sink) (*workflow.TurnResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if input == f.failOn {
		return nil, domain.ErrGenerationFailed
	}
	f.inputs = append(f.inputs, input)
	if input == "bye" {
		f.state.CurrentNode = domain.NodeEnd
		f.state.Status = domain.StatusTerminated
		return &workflow.TurnResult{SessionID: id, Status: domain.StatusTerminated, Messages: []string{"goodbye"}}, nil
	}
	return &workflow.TurnResult{SessionID: id, Status: domain.StatusSuspended, Messages: []string{"echo " + input}}, nil
}

func (f *fakeEngine) State(_ context.Context, id string) (*domain.ConversationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == nil {
		return nil, domain.ErrSessionNotFound
	}
	return f.state.Clone(), nil
}

func run(t *testing.T, eng runner.Engine, input string, opts ...runner.Option) string {
	t.Helper()
	out := &bytes.Buffer{}
	opts = append([]runner.Option{
		runner.WithSessionID("s1"),
		runner.WithInputHandler(runner.NewTextHandler(strings.NewReader(input), out)),
	}, opts...)
	require.NoError(t, runner.NewRunner(opts...).Run(context.Background(), eng))
	return out.String()
}

func TestRunner_LoopUntilTerminated(t *testing.T) {
	eng := &fakeEngine{}
	out := run(t, eng, "one\ntwo\nbye\nnever\n", runner.WithUserName("An"))

	assert.Equal(t, []string{"one", "two", "bye"}, eng.inputs)
	assert.Contains(t, out, "hello An")
	assert.Contains(t, out, "echo two")
	assert.Contains(t, out, "goodbye")
}

func TestRunner_ExitWordKeepsSession(t *testing.T) {
	eng := &fakeEngine{}
	run(t, eng, "one\nQUIT\ntwo\n")
	assert.Equal(t, []string{"one"}, eng.inputs)

	out := run(t, eng, "two\n")
	assert.Equal(t, 1, eng.started, "second run resumes")
	assert.Contains(t, out, "Resuming session s1")
	assert.Equal(t, []string{"one", "two"}, eng.inputs)
}

func TestRunner_EOFEndsLoop(t *testing.T) {
	eng := &fakeEngine{}
	run(t, eng, "")
	assert.Equal(t, 1, eng.started)
	assert.Empty(t, eng.inputs)
}

func TestRunner_RetryableErrorContinues(t *testing.T) {
	eng := &fakeEngine{failOn: "boom"}
	out := run(t, eng, "boom\nok\n")
	assert.Contains(t, out, "[System] Error:")
	assert.Equal(t, []string{"ok"}, eng.inputs)
}

func TestRunner_TerminatedSession(t *testing.T) {
	eng := &fakeEngine{}
	run(t, eng, "bye\n")

	out := run(t, eng, "again\n")
	assert.Contains(t, out, "has already ended")
	assert.Equal(t, []string{"bye"}, eng.inputs)
}

type failingEngine struct{ fakeEngine }

func (*failingEngine) State(context.Context, string) (*domain.ConversationState, error) {
	return nil, errors.New("redis down")
}

func TestRunner_LoadFailure(t *testing.T) {
	r := runner.NewRunner(
		runner.WithSessionID("s1"),
		runner.WithInputHandler(runner.NewTextHandler(strings.NewReader(""), &bytes.Buffer{})),
	)
	err := r.Run(context.Background(), &failingEngine{})
	assert.ErrorContains(t, err, "redis down")
}

func TestRunner_GeneratesSessionID(t *testing.T) {
	r := runner.NewRunner(runner.WithInputHandler(runner.NewTextHandler(strings.NewReader(""), &bytes.Buffer{})))
	require.NoError(t, r.Run(context.Background(), &fakeEngine{}))
	assert.NotEmpty(t, r.SessionID)
}

func TestRunner_Engine(t *testing.T) {
	catalog, err := memory.NewCatalog(testutils.ScenarioItems())
	require.NoError(t, err)
	model := testutils.NewScriptedModel(
		testutils.Text("Chào Hoàng! Bánh mì đang giảm giá."),
		testutils.Text(`{"intent":"BUY","item_id":1,"quantity":2}`),
		testutils.Text("Bạn muốn thêm gì không?"),
		testutils.Text(`{"intent":"NOT_BUY"}`),
		testutils.Text("Mời bạn đến giỏ hàng."),
	)
	client := llm.NewClient(model, llm.WithRetry(llm.NoRetry))
	eng := workflow.New(session.NewManager(memory.NewStore()), catalog, intent.New(client), respond.New(client))

	out := &bytes.Buffer{}
	r := runner.NewRunner(
		runner.WithSessionID("cli"),
		runner.WithInputHandler(runner.NewTextHandler(
			strings.NewReader("cho tôi 2 phở\nvậy thôi\n"), out,
			runner.WithTextHandlerStreaming(true),
		)),
	)
	require.NoError(t, r.Run(context.Background(), eng))

	text := out.String()
	assert.Contains(t, text, "Chào Hoàng! Bánh mì đang giảm giá.")
	assert.Contains(t, text, "Mời bạn đến giỏ hàng.")
	assert.Contains(t, text, "- Phở (ID:1): 2 x 50,000đ = 100,000đ")
	assert.Equal(t, 5, model.Calls())
}
