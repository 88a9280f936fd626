// Package aggregator assembles the interleaved events of one group-chat turn
// into a single container message with at most one response per provider.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"avatar-relay/internal/dedup"
	app_errors "avatar-relay/internal/errors"
	"avatar-relay/internal/events"
	"avatar-relay/internal/model"
	"avatar-relay/internal/notify"
	"avatar-relay/internal/publisher"
)

// State is the lifecycle position of a turn.
type State int

const (
	Idle State = iota
	AwaitingFirstProvider
	CollectingResponses
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingFirstProvider:
		return "awaiting_first_provider"
	case CollectingResponses:
		return "collecting_responses"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Source yields stream payloads. TryNext must not block.
type Source interface {
	Next() (string, error)
	TryNext() (string, bool)
}

// Session is the per-turn sink the aggregator writes to.
type Session interface {
	ID() string
	ContainerID() string
	CreateContainer(id string) bool
	AppendResponse(r model.ProviderResponse) bool
	Notify(name notify.Name, detail notify.Detail)
	Complete(c publisher.Completion, allEnded bool)
	Fail(message string)
}

// Result summarizes a finished turn.
type Result struct {
	ContainerID string
	Responses   []model.ProviderResponse
	Winner      string
	State       State
}

// track is the per-provider streaming buffer.
type track struct {
	provider string
	aiName   string
	index    *int
	buf      strings.Builder
	ended    bool
	failed   bool
}

// Aggregator is the state machine of a single turn. It is not safe for
// concurrent use; one goroutine drives it.
type Aggregator struct {
	session Session
	guard   dedup.Guard
	logger  *slog.Logger
	newID   func() string
	now     func() time.Time

	state     State
	tracks    map[string]*track
	order     []string
	current   string
	total     int
	responses []model.ProviderResponse
	winner    string

	src Source
}

// New returns an aggregator for one turn.
func New(session Session, guard dedup.Guard, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		session: session,
		guard:   guard,
		logger:  logger.With("turn_id", session.ID()),
		newID:   uuid.NewString,
		now:     func() time.Time { return time.Now().UTC() },
		tracks:  make(map[string]*track),
	}
}

// State returns the current lifecycle position.
func (a *Aggregator) State() State { return a.state }

// Result returns a snapshot of what the turn produced so far.
func (a *Aggregator) Result() *Result {
	return &Result{
		ContainerID: a.session.ContainerID(),
		Responses:   append([]model.ProviderResponse(nil), a.responses...),
		Winner:      a.winner,
		State:       a.state,
	}
}

// Run drives the turn from src until it completes, fails, or ctx is done.
// When the end event arrives, lines already received are applied first so
// that stragglers from the same chunk are part of the completion.
func (a *Aggregator) Run(ctx context.Context, src Source) (*Result, error) {
	if a.state == Idle {
		a.state = AwaitingFirstProvider
	}
	a.src = src
	defer func() { a.src = nil }()

	for {
		if err := ctx.Err(); err != nil {
			a.abort(err)
			return a.Result(), err
		}

		payload, err := src.Next()
		if err != nil {
			return a.Result(), a.handleReadError(ctx, err)
		}

		if err := a.apply(payload); err != nil {
			return a.Result(), err
		}
		if a.state == Complete {
			return a.Result(), nil
		}
	}
}

func (a *Aggregator) apply(payload string) error {
	ev, ok := events.Classify(payload)
	if !ok {
		a.logger.Debug("Ignoring stream payload", "payload", truncate(payload, 200))
		return nil
	}
	return a.Handle(ev)
}

func (a *Aggregator) handleReadError(ctx context.Context, err error) error {
	if errors.Is(err, io.EOF) {
		if a.state != Complete && a.state != Failed {
			a.logger.Warn("Stream ended without an end event, completing turn", "state", a.state.String())
			a.finish()
		}
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		a.abort(ctxErr)
		return ctxErr
	}
	if a.state == Complete {
		return nil
	}
	a.logger.Error("Stream transport failed", "error", err)
	a.fail(err.Error())
	return err
}

// Handle applies one event. It returns an error only when the event
// terminates the turn with a failure.
func (a *Aggregator) Handle(ev events.Event) error {
	if a.state == Failed {
		return nil
	}
	if a.state == Complete {
		// Only late provider results are still of interest.
		if end, ok := ev.(events.ProviderEnd); ok {
			a.onProviderEnd(end)
		}
		return nil
	}

	switch e := ev.(type) {
	case events.Start:
		if a.state == Idle {
			a.state = AwaitingFirstProvider
		}
	case events.ProviderThinking:
		a.onThinking(e)
	case events.ProviderStart:
		a.onProviderStart(e)
	case events.Content:
		a.onContent(e)
	case events.ProviderEnd:
		a.onProviderEnd(e)
	case events.Winner:
		a.winner = e.Provider
		a.session.Notify(notify.GroupChatWinner, notify.Detail{Provider: e.Provider, AiName: e.AiName, Winner: e.Provider})
	case events.ProviderError:
		a.onProviderError(e)
	case events.End:
		a.drainPending()
		a.finish()
	case events.Error:
		a.logger.Error("Upstream reported a turn error", "message", e.Message)
		a.fail(e.Message)
		return fmt.Errorf("%w: %s", app_errors.ErrUpstream, e.Message)
	}
	return nil
}

func (a *Aggregator) trackFor(provider, aiName string, index *int) *track {
	t, ok := a.tracks[provider]
	if !ok {
		t = &track{provider: provider, aiName: provider}
		a.tracks[provider] = t
		a.order = append(a.order, provider)
	}
	if aiName != "" {
		t.aiName = aiName
	}
	if index != nil {
		t.index = index
	}
	return t
}

func (a *Aggregator) ensureContainer() {
	if a.session.ContainerID() == "" {
		a.session.CreateContainer(a.newID())
	}
}

func (a *Aggregator) onThinking(e events.ProviderThinking) {
	if e.Total > a.total {
		a.total = e.Total
	}
	if a.state == Idle {
		a.state = AwaitingFirstProvider
	}
	a.session.Notify(notify.GroupChatThinking, notify.Detail{Provider: e.Provider, AiName: e.AiName, Index: e.Index, Total: e.Total})
}

func (a *Aggregator) onProviderStart(e events.ProviderStart) {
	if e.Provider == "" {
		a.logger.Warn("Ignoring provider_start without provider")
		return
	}
	if e.Total > a.total {
		a.total = e.Total
	}
	a.ensureContainer()
	a.state = CollectingResponses

	t := a.trackFor(e.Provider, e.AiName, e.Index)
	a.current = e.Provider
	a.session.Notify(notify.GroupChatProviderStart, notify.Detail{Provider: e.Provider, AiName: t.aiName, Index: e.Index, Total: e.Total})
}

func (a *Aggregator) onContent(e events.Content) {
	provider := e.Provider
	if provider == "" && !e.Raw {
		provider = a.current
	}
	if provider == "" {
		// Unattributed text is surfaced live but never becomes a response.
		a.session.Notify(notify.GroupChatContent, notify.Detail{Content: e.Content, FullContent: e.FullContent})
		return
	}

	t := a.trackFor(provider, e.AiName, e.Index)
	if t.ended || t.failed {
		a.logger.Debug("Ignoring content for finished provider", "provider", provider)
		return
	}
	t.buf.WriteString(e.Content)

	full := e.FullContent
	if full == "" {
		full = t.buf.String()
	}
	a.session.Notify(notify.GroupChatContent, notify.Detail{Provider: provider, AiName: t.aiName, Content: e.Content, FullContent: full, Index: t.index})
}

func (a *Aggregator) onProviderEnd(e events.ProviderEnd) {
	provider := e.Provider
	if provider == "" {
		provider = a.current
	}
	if provider == "" {
		a.logger.Warn("Ignoring provider_end without provider")
		return
	}

	t := a.trackFor(provider, e.AiName, e.Index)
	content := strings.TrimSpace(e.Content)
	if content == "" {
		content = strings.TrimSpace(t.buf.String())
	}
	t.ended = true
	if a.current == provider {
		a.current = ""
	}

	a.merge(model.ProviderResponse{
		Provider:    provider,
		AiName:      t.aiName,
		Content:     content,
		Model:       e.Model,
		Performance: e.Performance,
		Tokens:      e.Tokens,
		Index:       t.index,
	})
}

func (a *Aggregator) onProviderError(e events.ProviderError) {
	if e.Provider != "" {
		t := a.trackFor(e.Provider, e.AiName, nil)
		t.failed = true
		t.buf.Reset()
		if a.current == e.Provider {
			a.current = ""
		}
	}
	a.logger.Warn("Provider failed", "provider", e.Provider, "message", e.Message)
	a.session.Notify(notify.GroupChatProviderError, notify.Detail{Provider: e.Provider, AiName: e.AiName, Error: e.Message})
}

// merge records a final provider response. Empty answers, duplicates and
// second answers from a provider that already has one are dropped.
func (a *Aggregator) merge(r model.ProviderResponse) bool {
	if r.Content == "" {
		a.logger.Debug("Skipping empty provider response", "provider", r.Provider)
		return false
	}
	if !a.guard.ShouldAccept(a.responses, r) {
		a.logger.Debug("Duplicate provider response rejected", "provider", r.Provider)
		return false
	}
	for _, existing := range a.responses {
		if existing.Provider == r.Provider {
			a.logger.Warn("Conflicting provider response ignored, keeping the first", "provider", r.Provider)
			return false
		}
	}

	a.ensureContainer()
	r.Timestamp = a.now()
	if !a.session.AppendResponse(r) {
		a.logger.Warn("Provider response was not accepted by the container", "provider", r.Provider)
		return false
	}
	a.responses = append(a.responses, r)

	a.session.Notify(notify.GroupChatProviderEnd, notify.Detail{
		Provider:    r.Provider,
		AiName:      r.AiName,
		Content:     r.Content,
		Model:       r.Model,
		Performance: r.Performance,
		Tokens:      r.Tokens,
		Index:       r.Index,
	})
	return true
}

// flush appends providers that streamed content but never sent provider_end.
func (a *Aggregator) flush() {
	for _, provider := range a.order {
		t := a.tracks[provider]
		if t.ended || t.failed {
			continue
		}
		content := strings.TrimSpace(t.buf.String())
		if content == "" {
			continue
		}
		a.logger.Info("Flushing provider without provider_end", "provider", provider)
		t.ended = true
		a.merge(model.ProviderResponse{Provider: provider, AiName: t.aiName, Content: content, Index: t.index})
	}
}

// drainPending applies provider events already buffered behind the end event.
func (a *Aggregator) drainPending() {
	if a.src == nil {
		return
	}
	for {
		payload, ok := a.src.TryNext()
		if !ok {
			return
		}
		ev, ok := events.Classify(payload)
		if !ok {
			continue
		}
		switch ev.(type) {
		case events.Start, events.End, events.Error:
			a.logger.Debug("Ignoring event buffered after end", "kind", string(ev.Kind()))
			continue
		}
		_ = a.Handle(ev)
	}
}

func (a *Aggregator) allEnded() bool {
	finished := 0
	for _, t := range a.tracks {
		if t.ended || t.failed {
			finished++
		}
	}
	return finished == len(a.tracks) && finished >= a.total
}

func (a *Aggregator) finish() {
	a.flush()
	a.state = Complete
	a.current = ""
	allEnded := a.allEnded()

	a.session.Complete(publisher.Completion{Winner: a.winner}, allEnded)
	a.session.Notify(notify.GroupChatComplete, notify.Detail{
		Responses:  append([]model.ProviderResponse(nil), a.responses...),
		TotalCount: len(a.responses),
		Winner:     a.winner,
	})
	a.logger.Info("Group chat turn complete", "responses", len(a.responses), "all_ended", allEnded)
}

func (a *Aggregator) fail(message string) {
	a.flush()
	a.state = Failed
	a.session.Fail(message)
	a.session.Notify(notify.GroupChatError, notify.Detail{Error: message, Responses: append([]model.ProviderResponse(nil), a.responses...)})
}

func (a *Aggregator) abort(err error) {
	if a.state == Complete || a.state == Failed {
		return
	}
	a.logger.Info("Group chat turn aborted", "reason", err)
	a.fail(err.Error())
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
