package aggregator_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avatar-relay/internal/aggregator"
	"avatar-relay/internal/dedup"
	app_errors "avatar-relay/internal/errors"
	"avatar-relay/internal/model"
	"avatar-relay/internal/notify"
	"avatar-relay/internal/publisher"
	"avatar-relay/internal/state"
	"avatar-relay/internal/stream"
)

// harness wires a real store, bus and publisher around one turn.
type harness struct {
	store   *state.Store
	bus     *notify.Bus
	pub     *publisher.Publisher
	session *publisher.TurnSession
	sub     *notify.Subscription
}

func newHarness(t *testing.T, grace time.Duration) *harness {
	t.Helper()
	store := state.NewStore(dedup.New(dedup.DefaultThreshold))
	bus := notify.NewBus()
	pub := publisher.New(store, bus, publisher.WithGrace(grace))
	session, err := pub.BeginTurn()
	require.NoError(t, err)
	sub := bus.Subscribe(256, notify.ForTurn(session.ID()))

	t.Cleanup(func() {
		session.Cancel()
		bus.Close()
	})
	return &harness{store: store, bus: bus, pub: pub, session: session, sub: sub}
}

// run feeds the given data lines through a stream reader and an aggregator.
func (h *harness) run(t *testing.T, lines ...string) (*aggregator.Result, error) {
	t.Helper()
	body := "data: " + strings.Join(lines, "\n\ndata: ") + "\n\n"
	return h.runBody(io.NopCloser(strings.NewReader(body)))
}

func (h *harness) runBody(body io.ReadCloser) (*aggregator.Result, error) {
	reader := stream.NewReader(body)
	defer func() { _ = reader.Close() }()
	agg := aggregator.New(h.session, dedup.New(dedup.DefaultThreshold), nil)
	return agg.Run(context.Background(), reader)
}

func (h *harness) container(t *testing.T, id string) model.ChatMessage {
	t.Helper()
	msg, ok := h.store.Message(id)
	require.True(t, ok, "container %s not found", id)
	return msg
}

// notifications drains every notification published so far.
func (h *harness) notifications() []notify.Notification {
	var out []notify.Notification
	for {
		select {
		case n := <-h.sub.C():
			out = append(out, n)
		default:
			return out
		}
	}
}

func contents(responses []model.ProviderResponse) map[string]string {
	out := make(map[string]string, len(responses))
	for _, r := range responses {
		out[r.Provider] = r.Content
	}
	return out
}

const (
	startDeepseek = `{"type":"provider_start","provider":"deepseek","aiName":"DeepSeek","index":0,"total":2}`
	endDeepseek   = `{"type":"provider_end","provider":"deepseek","aiName":"DeepSeek","content":"Hello there"}`
	startGLM      = `{"type":"provider_start","provider":"glm","aiName":"GLM","index":1,"total":2}`
	endGLM        = `{"type":"provider_end","provider":"glm","aiName":"GLM","content":"Hi!"}`
	endEvent      = `{"type":"end"}`
)

func TestAggregator_ExampleTurn(t *testing.T) {
	h := newHarness(t, time.Hour)

	result, err := h.run(t,
		startDeepseek,
		`{"type":"content","content":"Hello","provider":"deepseek"}`,
		endDeepseek,
		startGLM,
		endGLM,
		endEvent,
	)
	require.NoError(t, err)

	assert.Equal(t, aggregator.Complete, result.State)
	require.NotEmpty(t, result.ContainerID)

	msg := h.container(t, result.ContainerID)
	assert.True(t, msg.GroupChat)
	assert.True(t, msg.Complete)
	assert.Empty(t, msg.Content)
	require.Len(t, msg.Responses, 2)
	assert.Equal(t, "deepseek", msg.Responses[0].Provider)
	assert.Equal(t, "DeepSeek", msg.Responses[0].AiName)
	assert.Equal(t, "Hello there", msg.Responses[0].Content)
	assert.Equal(t, 0, *msg.Responses[0].Index)
	assert.Equal(t, "glm", msg.Responses[1].Provider)
	assert.Equal(t, "Hi!", msg.Responses[1].Content)

	// Both announced providers ended, so the turn is released without waiting.
	select {
	case <-h.session.Done():
	default:
		t.Fatal("session should be released when every provider ended")
	}
	assert.False(t, h.pub.Busy())

	var names []notify.Name
	for _, n := range h.notifications() {
		names = append(names, n.Name)
	}
	assert.Equal(t, []notify.Name{
		notify.GroupChatProviderStart,
		notify.GroupChatContent,
		notify.GroupChatProviderEnd,
		notify.GroupChatProviderStart,
		notify.GroupChatProviderEnd,
		notify.GroupChatComplete,
	}, names)
}

func TestAggregator_AtMostOnePerProvider(t *testing.T) {
	t.Run("Identical re-delivery", func(t *testing.T) {
		h := newHarness(t, 0)
		result, err := h.run(t, startDeepseek, endDeepseek, endDeepseek, endEvent)
		require.NoError(t, err)

		msg := h.container(t, result.ContainerID)
		require.Len(t, msg.Responses, 1)
		assert.Equal(t, "Hello there", msg.Responses[0].Content)
	})

	t.Run("Near-duplicate with trailing punctuation", func(t *testing.T) {
		h := newHarness(t, 0)
		result, err := h.run(t,
			startDeepseek,
			endDeepseek,
			`{"type":"provider_end","provider":"deepseek","content":"Hello there!  "}`,
			endEvent,
		)
		require.NoError(t, err)

		msg := h.container(t, result.ContainerID)
		require.Len(t, msg.Responses, 1)
		assert.Equal(t, "Hello there", msg.Responses[0].Content)
	})

	t.Run("Conflicting second answer keeps the first", func(t *testing.T) {
		h := newHarness(t, 0)
		result, err := h.run(t,
			startDeepseek,
			endDeepseek,
			`{"type":"provider_end","provider":"deepseek","content":"A completely different and much longer answer than before"}`,
			endEvent,
		)
		require.NoError(t, err)

		msg := h.container(t, result.ContainerID)
		require.Len(t, msg.Responses, 1)
		assert.Equal(t, "Hello there", msg.Responses[0].Content)
		assert.Len(t, result.Responses, 1)
	})
}

func TestAggregator_InterleavedProviders(t *testing.T) {
	sequential := []string{
		startDeepseek,
		`{"type":"content","content":"Hello ","provider":"deepseek"}`,
		`{"type":"content","content":"there","provider":"deepseek"}`,
		endDeepseek,
		startGLM,
		`{"type":"content","content":"Hi!","provider":"glm"}`,
		endGLM,
		endEvent,
	}
	interleaved := []string{
		startDeepseek,
		startGLM,
		`{"type":"content","content":"Hi!","provider":"glm"}`,
		`{"type":"content","content":"Hello ","provider":"deepseek"}`,
		endGLM,
		`{"type":"content","content":"there","provider":"deepseek"}`,
		endDeepseek,
		endEvent,
	}

	h1 := newHarness(t, 0)
	r1, err := h1.run(t, sequential...)
	require.NoError(t, err)

	h2 := newHarness(t, 0)
	r2, err := h2.run(t, interleaved...)
	require.NoError(t, err)

	assert.Equal(t, contents(h1.container(t, r1.ContainerID).Responses), contents(h2.container(t, r2.ContainerID).Responses))
	assert.Equal(t, map[string]string{"deepseek": "Hello there", "glm": "Hi!"}, contents(r2.Responses))
}

func TestAggregator_MalformedLineIsInert(t *testing.T) {
	h := newHarness(t, 0)

	result, err := h.run(t,
		startDeepseek,
		`this is { not json`,
		endDeepseek,
		startGLM,
		endGLM,
		endEvent,
	)
	require.NoError(t, err)

	msg := h.container(t, result.ContainerID)
	assert.Equal(t, map[string]string{"deepseek": "Hello there", "glm": "Hi!"}, contents(msg.Responses))
}

func TestAggregator_SentinelEquivalence(t *testing.T) {
	withEnd := newHarness(t, 0)
	r1, err := withEnd.run(t, startDeepseek, endDeepseek, startGLM, endGLM, endEvent)
	require.NoError(t, err)

	withDone := newHarness(t, 0)
	r2, err := withDone.run(t, startDeepseek, endDeepseek, startGLM, endGLM, "[DONE]")
	require.NoError(t, err)

	withFlag := newHarness(t, 0)
	r3, err := withFlag.run(t, startDeepseek, endDeepseek, startGLM, endGLM, `{"done":true}`)
	require.NoError(t, err)

	for _, r := range []*aggregator.Result{r2, r3} {
		assert.Equal(t, r1.State, r.State)
		assert.Equal(t, contents(r1.Responses), contents(r.Responses))
	}
	assert.Equal(t, contents(withEnd.container(t, r1.ContainerID).Responses), contents(withDone.container(t, r2.ContainerID).Responses))
}

func TestAggregator_FlushOnEnd(t *testing.T) {
	h := newHarness(t, 0)

	result, err := h.run(t,
		startDeepseek,
		`{"type":"content","content":"Hello","provider":"deepseek"}`,
		`{"type":"content","content":" there "}`,
		startGLM,
		endGLM,
		endEvent,
	)
	require.NoError(t, err)

	msg := h.container(t, result.ContainerID)
	assert.Equal(t, map[string]string{"deepseek": "Hello there", "glm": "Hi!"}, contents(msg.Responses))
	// Responses follow the order in which they were appended.
	assert.Equal(t, "glm", msg.Responses[0].Provider)
}

func TestAggregator_ProviderError(t *testing.T) {
	h := newHarness(t, 0)

	result, err := h.run(t,
		startDeepseek,
		`{"type":"content","content":"partial","provider":"deepseek"}`,
		`{"type":"provider_error","provider":"deepseek","error":"rate limited"}`,
		startGLM,
		endGLM,
		endEvent,
	)
	require.NoError(t, err)

	assert.Equal(t, aggregator.Complete, result.State)
	msg := h.container(t, result.ContainerID)
	assert.Equal(t, map[string]string{"glm": "Hi!"}, contents(msg.Responses))

	var providerErr *notify.Notification
	for _, n := range h.notifications() {
		n := n
		if n.Name == notify.GroupChatProviderError {
			providerErr = &n
		}
	}
	require.NotNil(t, providerErr)
	assert.Equal(t, "deepseek", providerErr.Detail.Provider)
	assert.Equal(t, "rate limited", providerErr.Detail.Error)
}

func TestAggregator_TurnError(t *testing.T) {
	h := newHarness(t, time.Hour)

	result, err := h.run(t,
		startDeepseek,
		endDeepseek,
		`{"type":"error","message":"upstream exploded"}`,
		startGLM,
		endGLM,
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, app_errors.ErrUpstream)
	assert.Equal(t, aggregator.Failed, result.State)

	msg := h.container(t, result.ContainerID)
	assert.Len(t, msg.Responses, 1)
	assert.Equal(t, "upstream exploded", msg.Error)

	select {
	case <-h.session.Done():
	default:
		t.Fatal("a failed turn must be released immediately")
	}
}

func TestAggregator_TransportError(t *testing.T) {
	h := newHarness(t, time.Hour)

	body := io.MultiReader(
		strings.NewReader("data: "+startDeepseek+"\n\ndata: {\"type\":\"content\",\"content\":\"Hel\",\"provider\":\"deepseek\"}\n\n"),
		iotest.ErrReader(errors.New("connection reset by peer")),
	)
	result, err := h.runBody(io.NopCloser(body))

	require.Error(t, err)
	assert.ErrorIs(t, err, app_errors.ErrTransport)
	assert.Equal(t, aggregator.Failed, result.State)

	// Best-effort flush keeps what was streamed.
	msg := h.container(t, result.ContainerID)
	assert.Equal(t, map[string]string{"deepseek": "Hel"}, contents(msg.Responses))
	assert.NotEmpty(t, msg.Error)
}

func TestAggregator_EndOfStreamWithoutEnd(t *testing.T) {
	h := newHarness(t, time.Hour)

	result, err := h.run(t, startDeepseek, endDeepseek)
	require.NoError(t, err)

	assert.Equal(t, aggregator.Complete, result.State)
	assert.Len(t, result.Responses, 1)
	// glm was announced but never ended, so the session waits for the grace delay.
	assert.True(t, h.pub.Busy())
}

func TestAggregator_StragglersAfterEnd(t *testing.T) {
	h := newHarness(t, time.Hour)

	result, err := h.run(t,
		startDeepseek,
		endDeepseek,
		endEvent,
		startGLM,
		endGLM,
	)
	require.NoError(t, err)

	msg := h.container(t, result.ContainerID)
	assert.Equal(t, map[string]string{"deepseek": "Hello there", "glm": "Hi!"}, contents(msg.Responses))

	notes := h.notifications()
	require.NotEmpty(t, notes)
	last := notes[len(notes)-1]
	assert.Equal(t, notify.GroupChatComplete, last.Name)
	assert.Equal(t, 2, last.Detail.TotalCount)
	assert.Equal(t, map[string]string{"deepseek": "Hello there", "glm": "Hi!"}, contents(last.Detail.Responses))

	// Both announced providers ended, so the grace period is skipped.
	select {
	case <-h.session.Done():
	default:
		t.Fatal("session still held after every provider ended")
	}
	assert.False(t, h.pub.Busy())
}

func TestAggregator_IgnoresTerminalEventsAfterEnd(t *testing.T) {
	h := newHarness(t, 0)

	result, err := h.run(t,
		startDeepseek,
		endDeepseek,
		endEvent,
		`{"type":"error","message":"late failure"}`,
		endEvent,
	)
	require.NoError(t, err)
	assert.Equal(t, aggregator.Complete, result.State)

	msg := h.container(t, result.ContainerID)
	assert.Empty(t, msg.Error)
	assert.Len(t, msg.Responses, 1)
}

func TestAggregator_Cancellation(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	pr, pw := io.Pipe()
	reader := stream.NewReader(pr)
	go func() {
		_, _ = io.WriteString(pw, "data: "+startDeepseek+"\n\n")
		cancel()
		// Closing the body is what unblocks a pending read.
		_ = reader.Close()
	}()

	agg := aggregator.New(h.session, dedup.New(dedup.DefaultThreshold), nil)
	result, err := agg.Run(ctx, reader)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, aggregator.Failed, result.State)
	assert.False(t, h.pub.Busy())
}

func TestAggregator_WinnerAndThinking(t *testing.T) {
	h := newHarness(t, 0)

	result, err := h.run(t,
		`{"type":"start","mode":"exclusive"}`,
		`{"type":"provider_thinking","provider":"glm","ai_name":"GLM","index":1,"total":2}`,
		startGLM,
		endGLM,
		`{"type":"winner","provider":"glm","aiName":"GLM"}`,
		endEvent,
	)
	require.NoError(t, err)

	assert.Equal(t, "glm", result.Winner)
	msg := h.container(t, result.ContainerID)
	assert.Equal(t, "glm", msg.Winner)

	ns := h.notifications()
	require.NotEmpty(t, ns)
	assert.Equal(t, notify.GroupChatThinking, ns[0].Name)
	assert.Equal(t, "GLM", ns[0].Detail.AiName)
}

func TestAggregator_EmptyTurn(t *testing.T) {
	h := newHarness(t, time.Hour)

	result, err := h.run(t, endEvent)
	require.NoError(t, err)

	assert.Equal(t, aggregator.Complete, result.State)
	assert.Empty(t, result.ContainerID)
	assert.Empty(t, h.store.Messages())
	assert.False(t, h.pub.Busy())
}
