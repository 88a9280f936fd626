// Package notify is an in-process, fire-and-forget notification bus used to
// tell interested components about the progress of a turn.
package notify

import (
	"sync"
	"time"

	"avatar-relay/internal/model"
)

// Name identifies a notification.
type Name string

const (
	GroupChatThinking      Name = "groupChatThinking"
	GroupChatProviderStart Name = "groupChatProviderStart"
	GroupChatContent       Name = "groupChatContent"
	GroupChatProviderEnd   Name = "groupChatProviderEnd"
	GroupChatProviderError Name = "groupChatProviderError"
	GroupChatWinner        Name = "groupChatWinner"
	GroupChatComplete      Name = "groupChatComplete"
	GroupChatError         Name = "groupChatError"
	ChatContent            Name = "chatContent"
	ChatComplete           Name = "chatComplete"
)

// Detail carries the normalized fields of the event that caused a
// notification. Unused fields are omitted from JSON.
type Detail struct {
	MessageID   string                   `json:"messageId,omitempty"`
	Provider    string                   `json:"provider,omitempty"`
	AiName      string                   `json:"aiName,omitempty"`
	Content     string                   `json:"content,omitempty"`
	FullContent string                   `json:"fullContent,omitempty"`
	Model       string                   `json:"model,omitempty"`
	Index       *int                     `json:"index,omitempty"`
	Total       int                      `json:"total,omitempty"`
	Performance *model.Performance       `json:"performance,omitempty"`
	Tokens      *model.TokenUsage        `json:"tokens,omitempty"`
	Responses   []model.ProviderResponse `json:"responses,omitempty"`
	TotalCount  int                      `json:"totalCount,omitempty"`
	Winner      string                   `json:"winner,omitempty"`
	Error       string                   `json:"error,omitempty"`
}

// Notification is one message on the bus.
type Notification struct {
	Name   Name      `json:"type"`
	TurnID string    `json:"turnId,omitempty"`
	Detail Detail    `json:"detail"`
	At     time.Time `json:"at"`
}

// Filter selects the notifications a subscriber receives.
type Filter func(Notification) bool

// ForTurn selects the notifications of a single turn.
func ForTurn(turnID string) Filter {
	return func(n Notification) bool { return n.TurnID == turnID }
}

// Bus fans notifications out to subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the notification.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscription receives notifications until it is closed.
type Subscription struct {
	bus    *Bus
	ch     chan Notification
	filter Filter
	once   sync.Once
}

// C returns the delivery channel. It is closed when the subscription or the
// bus is closed.
func (s *Subscription) C() <-chan Notification { return s.ch }

// Close detaches the subscription from the bus.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	s.once.Do(func() {
		delete(s.bus.subs, s)
		close(s.ch)
	})
}

// Subscribe registers a subscriber with the given buffer size. A nil filter
// receives everything.
func (b *Bus) Subscribe(buffer int, filter Filter) *Subscription {
	if buffer < 0 {
		buffer = 0
	}
	sub := &Subscription{bus: b, ch: make(chan Notification, buffer), filter: filter}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish delivers n to every matching subscriber and returns how many
// received it.
func (b *Bus) Publish(n Notification) int {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for sub := range b.subs {
		if sub.filter != nil && !sub.filter(n) {
			continue
		}
		select {
		case sub.ch <- n:
			delivered++
		default:
		}
	}
	return delivered
}

// Close closes every subscription; later subscriptions are closed on creation.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for sub := range b.subs {
		sub.closeLocked()
	}
}
