// Package state holds the in-memory conversation shown to clients. All changes
// go through Dispatch so that every mutation is a named, replayable action.
package state

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"avatar-relay/internal/dedup"
	"avatar-relay/internal/model"
)

// ActionType names a state transition.
type ActionType string

const (
	ActionCreateGroupContainer   ActionType = "chat/createGroupContainerMessage"
	ActionAppendGroupResponse    ActionType = "chat/appendGroupResponse"
	ActionCompleteGroupContainer ActionType = "chat/completeGroupContainer"
	ActionSendMessage            ActionType = "chat/sendMessage"
	ActionAddMessage             ActionType = "chat/addMessage"
	ActionUpdateMessage          ActionType = "chat/updateMessage"
	ActionRemoveMessage          ActionType = "chat/removeMessage"
	ActionClearMessages          ActionType = "chat/clearMessages"
	ActionDeduplicateMessages    ActionType = "chat/deduplicateMessages"
)

const (
	// recentWindow is how many trailing messages sendMessage inspects.
	recentWindow = 5
	// recentInterval is how close in time an identical message must be to be
	// dropped by sendMessage.
	recentInterval = 5 * time.Second
)

// Action is a state transition request.
type Action struct {
	Type    ActionType
	Payload any
}

// CreateContainerPayload creates an empty group-chat container.
type CreateContainerPayload struct {
	ID string
}

// AppendResponsePayload appends one provider response to a container.
type AppendResponsePayload struct {
	ContainerID string
	Item        model.ProviderResponse
}

// CompleteContainerPayload marks a container as finished.
type CompleteContainerPayload struct {
	ContainerID string
	Winner      string
	Error       string
}

// UpdateMessagePayload changes selected fields of a message. AppendContent is
// added to the current content; Content replaces it.
type UpdateMessagePayload struct {
	ID            string
	Content       *string
	AppendContent string
	Model         string
	Error         string
	Performance   *model.Performance
	Tokens        *model.TokenUsage
}

// RemoveMessagePayload removes one message.
type RemoveMessagePayload struct {
	ID string
}

// Dispatcher applies actions to application state.
type Dispatcher interface {
	Dispatch(action Action) bool
}

// Store is a mutex-guarded, ordered list of chat messages.
type Store struct {
	mu       sync.RWMutex
	messages []model.ChatMessage
	guard    dedup.Guard
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for rejected actions.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore returns an empty store that rejects duplicate provider responses
// with guard.
func NewStore(guard dedup.Guard, opts ...Option) *Store {
	s := &Store{
		guard:  guard,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Messages returns a snapshot of the conversation.
func (s *Store) Messages() []model.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ChatMessage, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// Message returns a snapshot of one message.
func (s *Store) Message(id string) (model.ChatMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.messages[i].Clone(), true
	}
	return model.ChatMessage{}, false
}

// Dispatch applies the action and reports whether state changed.
func (s *Store) Dispatch(action Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch action.Type {
	case ActionCreateGroupContainer:
		p, ok := action.Payload.(CreateContainerPayload)
		if !ok {
			return s.badPayload(action)
		}
		return s.createContainer(p)
	case ActionAppendGroupResponse:
		p, ok := action.Payload.(AppendResponsePayload)
		if !ok {
			return s.badPayload(action)
		}
		return s.appendResponse(p)
	case ActionCompleteGroupContainer:
		p, ok := action.Payload.(CompleteContainerPayload)
		if !ok {
			return s.badPayload(action)
		}
		return s.completeContainer(p)
	case ActionSendMessage:
		p, ok := action.Payload.(model.ChatMessage)
		if !ok {
			return s.badPayload(action)
		}
		return s.sendMessage(p)
	case ActionAddMessage:
		p, ok := action.Payload.(model.ChatMessage)
		if !ok {
			return s.badPayload(action)
		}
		return s.addMessage(p)
	case ActionUpdateMessage:
		p, ok := action.Payload.(UpdateMessagePayload)
		if !ok {
			return s.badPayload(action)
		}
		return s.updateMessage(p)
	case ActionRemoveMessage:
		p, ok := action.Payload.(RemoveMessagePayload)
		if !ok {
			return s.badPayload(action)
		}
		return s.removeMessage(p.ID)
	case ActionClearMessages:
		changed := len(s.messages) > 0
		s.messages = nil
		return changed
	case ActionDeduplicateMessages:
		return s.deduplicate()
	default:
		s.logger.Warn("Ignoring unknown state action", "action", action.Type)
		return false
	}
}

func (s *Store) badPayload(action Action) bool {
	s.logger.Error("Ignoring state action with unexpected payload", "action", action.Type)
	return false
}

func (s *Store) indexOf(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) createContainer(p CreateContainerPayload) bool {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	if s.indexOf(id) >= 0 {
		return false
	}
	s.messages = append(s.messages, model.ChatMessage{
		ID:        id,
		Role:      model.RoleAssistant,
		Content:   "",
		Provider:  model.GroupChatProvider,
		Model:     model.GroupChatModel,
		Timestamp: s.now(),
		Responses: []model.ProviderResponse{},
		GroupChat: true,
	})
	return true
}

func (s *Store) appendResponse(p AppendResponsePayload) bool {
	i := s.indexOf(p.ContainerID)
	if i < 0 {
		s.logger.Error("Container message not found", "container_id", p.ContainerID, "provider", p.Item.Provider)
		return false
	}

	item := p.Item
	item.Content = strings.TrimSpace(item.Content)
	if !s.guard.ShouldAccept(s.messages[i].Responses, item) {
		s.logger.Debug("Skipping duplicate group response", "container_id", p.ContainerID, "provider", item.Provider)
		return false
	}
	if item.Provider != "" {
		for _, existing := range s.messages[i].Responses {
			if existing.Provider == item.Provider {
				s.logger.Warn("Provider already answered in this container", "container_id", p.ContainerID, "provider", item.Provider)
				return false
			}
		}
	}
	if item.AiName == "" {
		item.AiName = item.Provider
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = s.now()
	}

	s.messages[i].Responses = append(s.messages[i].Responses, item)
	return true
}

func (s *Store) completeContainer(p CompleteContainerPayload) bool {
	i := s.indexOf(p.ContainerID)
	if i < 0 {
		return false
	}
	msg := &s.messages[i]
	changed := !msg.Complete
	msg.Complete = true
	if p.Winner != "" && p.Winner != msg.Winner {
		msg.Winner = p.Winner
		changed = true
	}
	if p.Error != "" && p.Error != msg.Error {
		msg.Error = p.Error
		changed = true
	}
	return changed
}

// sendMessage drops re-sends: a known id, or identical non-empty content from
// the same role among the last few messages within a short interval.
func (s *Store) sendMessage(msg model.ChatMessage) bool {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if s.indexOf(msg.ID) >= 0 {
		s.logger.Debug("Skipping message with known id", "message_id", msg.ID)
		return false
	}

	now := s.now()
	content := strings.TrimSpace(msg.Content)
	start := max(0, len(s.messages)-recentWindow)
	for _, recent := range s.messages[start:] {
		if recent.Role != msg.Role || content == "" {
			continue
		}
		age := now.Sub(recent.Timestamp)
		if age < 0 {
			age = -age
		}
		if age < recentInterval && strings.TrimSpace(recent.Content) == content {
			s.logger.Debug("Skipping repeated message", "role", msg.Role)
			return false
		}
	}

	msg.Timestamp = now
	s.messages = append(s.messages, msg.Clone())
	return true
}

func (s *Store) addMessage(msg model.ChatMessage) bool {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	s.messages = append(s.messages, msg.Clone())
	return true
}

func (s *Store) updateMessage(p UpdateMessagePayload) bool {
	i := s.indexOf(p.ID)
	if i < 0 {
		return false
	}
	msg := &s.messages[i]
	if p.Content != nil {
		msg.Content = *p.Content
	}
	msg.Content += p.AppendContent
	if p.Model != "" {
		msg.Model = p.Model
	}
	if p.Error != "" {
		msg.Error = p.Error
	}
	if p.Performance != nil {
		msg.Performance = p.Performance
	}
	if p.Tokens != nil {
		msg.Tokens = p.Tokens
	}
	return true
}

func (s *Store) removeMessage(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.messages = append(s.messages[:i:i], s.messages[i+1:]...)
	return true
}

// deduplicate keeps the first occurrence of each id and of each non-empty
// content, in timestamp order. Messages without content are dropped unless
// they are group-chat containers, whose text lives in their responses.
func (s *Store) deduplicate() bool {
	sorted := make([]model.ChatMessage, len(s.messages))
	copy(sorted, s.messages)
	slices.SortStableFunc(sorted, func(a, b model.ChatMessage) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	seenIDs := make(map[string]struct{}, len(sorted))
	seenContent := make(map[string]struct{}, len(sorted))
	unique := make([]model.ChatMessage, 0, len(sorted))
	for _, msg := range sorted {
		if _, dup := seenIDs[msg.ID]; dup {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if !msg.GroupChat {
			if content == "" {
				continue
			}
			if _, dup := seenContent[content]; dup {
				continue
			}
			seenContent[content] = struct{}{}
		}
		seenIDs[msg.ID] = struct{}{}
		unique = append(unique, msg)
	}

	changed := len(unique) != len(s.messages)
	s.messages = unique
	return changed
}
