// Package publisher forwards the results of a turn into application state and
// onto the notification bus, and makes sure only one group-chat turn owns the
// "current container" at a time.
package publisher

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	app_errors "avatar-relay/internal/errors"
	"avatar-relay/internal/model"
	"avatar-relay/internal/notify"
	"avatar-relay/internal/state"
)

// DefaultGrace is how long a completed turn keeps its container before the
// next turn may start.
const DefaultGrace = time.Second

// Completion describes how a container finished.
type Completion struct {
	Winner string
	Error  string
}

// Publisher dispatches container actions and notifications.
type Publisher struct {
	store  state.Dispatcher
	bus    *notify.Bus
	grace  time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	active *TurnSession
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithGrace sets the delay between completing a turn and releasing it.
func WithGrace(d time.Duration) Option {
	return func(p *Publisher) {
		if d >= 0 {
			p.grace = d
		}
	}
}

// WithLogger sets the publisher's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// New returns a Publisher writing to store and bus. bus may be nil.
func New(store state.Dispatcher, bus *notify.Bus, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		bus:    bus,
		grace:  DefaultGrace,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CreateContainer adds an empty group-chat container with the given id.
func (p *Publisher) CreateContainer(id string) bool {
	return p.store.Dispatch(state.Action{
		Type:    state.ActionCreateGroupContainer,
		Payload: state.CreateContainerPayload{ID: id},
	})
}

// AppendResponse appends a provider response to a container. It returns false
// when the response was rejected as a duplicate or the container is unknown.
func (p *Publisher) AppendResponse(containerID string, r model.ProviderResponse) bool {
	return p.store.Dispatch(state.Action{
		Type:    state.ActionAppendGroupResponse,
		Payload: state.AppendResponsePayload{ContainerID: containerID, Item: r},
	})
}

// CompleteContainer marks a container as finished.
func (p *Publisher) CompleteContainer(containerID string, c Completion) bool {
	return p.store.Dispatch(state.Action{
		Type:    state.ActionCompleteGroupContainer,
		Payload: state.CompleteContainerPayload{ContainerID: containerID, Winner: c.Winner, Error: c.Error},
	})
}

// Publish puts a notification on the bus.
func (p *Publisher) Publish(n notify.Notification) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(n)
}

// Busy reports whether a turn currently holds the publisher.
func (p *Publisher) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active != nil
}

// BeginTurn reserves the publisher for a new group-chat turn. It fails with
// ErrTurnInProgress until the previous session has been released.
func (p *Publisher) BeginTurn() (*TurnSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active != nil {
		return nil, fmt.Errorf("%w: turn %s has not been released", app_errors.ErrTurnInProgress, p.active.id)
	}
	s := &TurnSession{
		id:       uuid.NewString(),
		pub:      p,
		released: make(chan struct{}),
	}
	p.active = s
	p.logger.Debug("Group chat turn started", "turn_id", s.id)
	return s, nil
}

func (p *Publisher) release(s *TurnSession) {
	p.mu.Lock()
	if p.active == s {
		p.active = nil
	}
	p.mu.Unlock()
}

// TurnSession is the per-turn handle threaded through the pipeline. It owns
// the id of the container being filled.
type TurnSession struct {
	id  string
	pub *Publisher

	mu          sync.Mutex
	containerID string
	timer       *time.Timer
	finished    bool

	releaseOnce sync.Once
	released    chan struct{}
}

// ID returns the turn id used to tag notifications.
func (s *TurnSession) ID() string { return s.id }

// ContainerID returns the id of the turn's container, or "" before it exists.
func (s *TurnSession) ContainerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.containerID
}

// CreateContainer creates the turn's container once. Later calls are no-ops
// and return false.
func (s *TurnSession) CreateContainer(id string) bool {
	s.mu.Lock()
	if s.containerID != "" || s.finished {
		s.mu.Unlock()
		return false
	}
	s.containerID = id
	s.mu.Unlock()

	return s.pub.CreateContainer(id)
}

// AppendResponse appends to the turn's container.
func (s *TurnSession) AppendResponse(r model.ProviderResponse) bool {
	id := s.ContainerID()
	if id == "" {
		return false
	}
	return s.pub.AppendResponse(id, r)
}

// Notify publishes a notification tagged with this turn.
func (s *TurnSession) Notify(name notify.Name, detail notify.Detail) {
	if detail.MessageID == "" {
		detail.MessageID = s.ContainerID()
	}
	s.pub.Publish(notify.Notification{Name: name, TurnID: s.id, Detail: detail})
}

// Complete marks the container finished. The session is released right away
// when allEnded is true and after the grace delay otherwise, so that
// straggling events still reach the same container.
func (s *TurnSession) Complete(c Completion, allEnded bool) {
	if !s.finish() {
		return
	}
	if id := s.ContainerID(); id != "" {
		s.pub.CompleteContainer(id, c)
	}

	if allEnded || s.pub.grace == 0 {
		s.release()
		return
	}

	s.mu.Lock()
	s.timer = time.AfterFunc(s.pub.grace, s.release)
	s.mu.Unlock()
}

// Fail marks the container failed and releases the session immediately.
func (s *TurnSession) Fail(message string) {
	if s.finish() {
		if id := s.ContainerID(); id != "" {
			s.pub.CompleteContainer(id, Completion{Error: message})
		}
	}
	s.Cancel()
}

// Cancel stops a pending grace timer and releases the session.
func (s *TurnSession) Cancel() {
	s.mu.Lock()
	s.finished = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.release()
}

// Done is closed once the session has been released.
func (s *TurnSession) Done() <-chan struct{} { return s.released }

func (s *TurnSession) finish() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return false
	}
	s.finished = true
	return true
}

func (s *TurnSession) release() {
	s.releaseOnce.Do(func() {
		s.pub.release(s)
		close(s.released)
		s.pub.logger.Debug("Group chat turn released", "turn_id", s.id, "container_id", s.ContainerID())
	})
}
