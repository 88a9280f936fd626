package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"avatar-relay/internal/aggregator"
	"avatar-relay/internal/dedup"
	app_errors "avatar-relay/internal/errors"
	"avatar-relay/internal/events"
	"avatar-relay/internal/model"
	"avatar-relay/internal/notify"
	"avatar-relay/internal/publisher"
	"avatar-relay/internal/repository"
	"avatar-relay/internal/state"
	"avatar-relay/internal/stream"
	"avatar-relay/internal/upstream"
)

// Chat modes.
const (
	ModeGroup  = "group"
	ModeSingle = "single"
)

const (
	titleLength = 50
	turnBuffer  = 1024
)

type ChatService struct {
	repo            repository.Repository
	upstream        upstream.Client
	settings        *SettingsService
	publisher       *publisher.Publisher
	store           *state.Store
	bus             *notify.Bus
	guard           dedup.Guard
	defaultProvider string
	logger          *slog.Logger
}

// GroupMessageRequest starts a group-chat turn. GroupSettings overrides the
// stored settings for this turn only.
type GroupMessageRequest struct {
	ChatID        string               `json:"chat_id"`
	Query         string               `json:"query" validate:"required"`
	GroupSettings *model.GroupSettings `json:"group_settings,omitempty"`
}

// CreateMessageRequest starts a single-provider turn.
type CreateMessageRequest struct {
	ChatID   string         `json:"chat_id"`
	Query    string         `json:"query" validate:"required"`
	Provider string         `json:"provider"`
	Config   map[string]any `json:"config,omitempty"`
}

// ChatOption configures a ChatService.
type ChatOption func(*ChatService)

// WithGuard sets the duplicate guard used by the turn aggregator.
func WithGuard(guard dedup.Guard) ChatOption {
	return func(s *ChatService) { s.guard = guard }
}

// WithDefaultProvider sets the provider used when a single-provider request
// names none.
func WithDefaultProvider(provider string) ChatOption {
	return func(s *ChatService) { s.defaultProvider = provider }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ChatOption {
	return func(s *ChatService) { s.logger = logger }
}

func NewChatService(
	repo repository.Repository,
	client upstream.Client,
	settings *SettingsService,
	pub *publisher.Publisher,
	store *state.Store,
	bus *notify.Bus,
	opts ...ChatOption,
) *ChatService {
	s := &ChatService{
		repo:            repo,
		upstream:        client,
		settings:        settings,
		publisher:       pub,
		store:           store,
		bus:             bus,
		guard:           dedup.New(dedup.DefaultThreshold),
		defaultProvider: "openrouter",
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateChatTitle handles the logic for manually updating a chat's title.
func (s *ChatService) UpdateChatTitle(ctx context.Context, chatID, newTitle string) error {
	newTitle = strings.TrimSpace(newTitle)
	if newTitle == "" {
		return fmt.Errorf("%w: title cannot be empty", app_errors.ErrValidation)
	}
	s.logger.Info("Updating chat title", "chat_id", chatID, "title", newTitle)
	return mapRepoErr(s.repo.UpdateChatTitle(ctx, chatID, newTitle), "chat "+chatID)
}

// DeleteChat deletes a chat and all its messages.
func (s *ChatService) DeleteChat(ctx context.Context, chatID string) error {
	s.logger.Info("Deleting chat", "chat_id", chatID)
	return mapRepoErr(s.repo.DeleteChat(ctx, chatID), "chat "+chatID)
}

// ListChats returns every stored chat, most recently updated first.
func (s *ChatService) ListChats(ctx context.Context) ([]*model.Chat, error) {
	return s.repo.GetChats(ctx)
}

// GetFullChat retrieves a chat's metadata and all its messages.
func (s *ChatService) GetFullChat(ctx context.Context, chatID string) (*model.FullChat, error) {
	chat, err := s.repo.GetChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("could not get chat: %w", mapRepoErr(err, "chat "+chatID))
	}
	messages, err := s.repo.GetMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("could not get messages: %w", err)
	}
	return &model.FullChat{Chat: *chat, Messages: messages}, nil
}

// Messages returns the in-memory message list.
func (s *ChatService) Messages() []model.ChatMessage {
	return s.store.Messages()
}

// ClearMessages empties the in-memory message list. Stored history is kept.
func (s *ChatService) ClearMessages() {
	s.store.Dispatch(state.Action{Type: state.ActionClearMessages})
}

// DeduplicateMessages removes repeated messages from the in-memory list and
// reports whether anything changed.
func (s *ChatService) DeduplicateMessages() bool {
	return s.store.Dispatch(state.Action{Type: state.ActionDeduplicateMessages})
}

// Subscribe attaches to the notification bus.
func (s *ChatService) Subscribe(buffer int, filter notify.Filter) *notify.Subscription {
	return s.bus.Subscribe(buffer, filter)
}

// GroupTurn is a running group-chat turn.
type GroupTurn struct {
	ChatID string
	TurnID string

	events <-chan notify.Notification
	stop   func()
	done   chan struct{}
	result *aggregator.Result
	err    error

	// release frees the publisher once the turn is both aggregated and closed.
	release func()

	mu         sync.Mutex
	closed     bool
	aggregated bool
}

// NewGroupTurn wraps the event channel of a turn. stop, when not nil, is
// called by Close.
func NewGroupTurn(chatID, turnID string, events <-chan notify.Notification, stop func()) *GroupTurn {
	return &GroupTurn{ChatID: chatID, TurnID: turnID, events: events, stop: stop, done: make(chan struct{})}
}

// Events delivers the notifications of the turn. The channel is closed once
// the turn has been aggregated and saved.
func (t *GroupTurn) Events() <-chan notify.Notification { return t.events }

// Wait blocks until the turn has finished and returns its outcome.
func (t *GroupTurn) Wait() (*aggregator.Result, error) {
	<-t.done
	return t.result, t.err
}

// Close stops delivering events. A turn that is still streaming keeps
// running; once it has been aggregated, any pending grace delay is cut short.
func (t *GroupTurn) Close() {
	t.stopEvents()

	t.mu.Lock()
	t.closed = true
	aggregated := t.aggregated
	t.mu.Unlock()

	if aggregated && t.release != nil {
		t.release()
	}
}

func (t *GroupTurn) stopEvents() {
	if t.stop != nil {
		t.stop()
	}
}

func (t *GroupTurn) markAggregated() {
	t.mu.Lock()
	t.aggregated = true
	closed := t.closed
	t.mu.Unlock()

	if closed && t.release != nil {
		t.release()
	}
}

// HandleGroupMessage starts a group-chat turn. It fails with
// ErrTurnInProgress while the previous turn still holds the publisher, and
// with ErrTransport when the upstream stream cannot be opened.
func (s *ChatService) HandleGroupMessage(ctx context.Context, req *GroupMessageRequest) (*GroupTurn, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", app_errors.ErrValidation)
	}

	settings, err := s.groupSettings(ctx, req.GroupSettings)
	if err != nil {
		return nil, err
	}

	session, err := s.publisher.BeginTurn()
	if err != nil {
		return nil, err
	}
	sub := s.bus.Subscribe(turnBuffer, notify.ForTurn(session.ID()))
	abort := func() {
		sub.Close()
		session.Cancel()
	}

	chatID, err := s.ensureChat(ctx, req.ChatID, query, ModeGroup)
	if err != nil {
		abort()
		return nil, err
	}
	s.recordUserMessage(ctx, chatID, query)

	reader, err := s.upstream.StreamGroupChat(ctx, &upstream.GroupChatRequest{Query: query, GroupSettings: *settings})
	if err != nil {
		s.logger.Error("Failed to open group chat stream", "chat_id", chatID, "error", err)
		abort()
		return nil, err
	}

	turn := NewGroupTurn(chatID, session.ID(), sub.C(), sub.Close)
	turn.release = session.Cancel
	s.logger.Info("Group chat turn started", "chat_id", chatID, "turn_id", turn.TurnID,
		"providers", settings.SelectedProviders, "strategy", settings.ReplyStrategy)

	go s.runGroupTurn(ctx, turn, session, reader)
	return turn, nil
}

func (s *ChatService) runGroupTurn(ctx context.Context, turn *GroupTurn, session *publisher.TurnSession, reader *stream.Reader) {
	defer close(turn.done)
	defer turn.stopEvents()
	defer func() { _ = reader.Close() }()

	agg := aggregator.New(session, s.guard, s.logger.With("chat_id", turn.ChatID))
	turn.result, turn.err = agg.Run(ctx, reader)
	turn.markAggregated()

	if turn.result == nil || turn.result.ContainerID == "" {
		return
	}
	container, ok := s.store.Message(turn.result.ContainerID)
	if !ok {
		return
	}
	if err := s.repo.AddMessage(context.WithoutCancel(ctx), &container, turn.ChatID); err != nil {
		s.logger.Error("Failed to save group chat container", "chat_id", turn.ChatID, "message_id", container.ID, "error", err)
	}
}

// HandleMessage runs a single-provider turn and relays its content deltas to
// streamChan, which it closes when done.
func (s *ChatService) HandleMessage(ctx context.Context, req *CreateMessageRequest, streamChan chan<- model.StreamResponse) {
	defer close(streamChan)

	query := strings.TrimSpace(req.Query)
	if query == "" {
		send(ctx, streamChan, model.StreamResponse{Error: "query is required", Done: true})
		return
	}
	provider := strings.TrimSpace(req.Provider)
	if provider == "" {
		provider = s.defaultProvider
	}

	chatID, err := s.ensureChat(ctx, req.ChatID, query, ModeSingle)
	if err != nil {
		s.logger.Error("Could not prepare chat", "chat_id", req.ChatID, "error", err)
		send(ctx, streamChan, model.StreamResponse{Error: "Could not find chat", Done: true})
		return
	}
	s.recordUserMessage(ctx, chatID, query)

	reader, err := s.upstream.StreamChat(ctx, &upstream.ChatRequest{Query: query, Provider: provider, Config: req.Config})
	if err != nil {
		s.logger.Error("Failed to open chat stream", "chat_id", chatID, "provider", provider, "error", err)
		send(ctx, streamChan, model.StreamResponse{ChatID: chatID, Provider: provider, Error: err.Error(), Done: true})
		return
	}
	defer func() { _ = reader.Close() }()

	assistant := model.ChatMessage{
		ID:        uuid.NewString(),
		Role:      model.RoleAssistant,
		Provider:  provider,
		AiName:    provider,
		Timestamp: time.Now().UTC(),
	}
	s.store.Dispatch(state.Action{Type: state.ActionAddMessage, Payload: assistant})

	update := state.UpdateMessagePayload{ID: assistant.ID}
	var full strings.Builder
	errMsg := ""

loop:
	for {
		payload, err := reader.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				errMsg = err.Error()
			}
			break
		}
		ev, ok := events.Classify(payload)
		if !ok {
			continue
		}

		switch e := ev.(type) {
		case events.Content:
			if e.Content == "" {
				continue
			}
			full.WriteString(e.Content)
			s.store.Dispatch(state.Action{Type: state.ActionUpdateMessage, Payload: state.UpdateMessagePayload{ID: assistant.ID, AppendContent: e.Content}})
			s.bus.Publish(notify.Notification{Name: notify.ChatContent, Detail: notify.Detail{
				MessageID: assistant.ID, Provider: provider, Content: e.Content, FullContent: full.String(),
			}})
			if !send(ctx, streamChan, model.StreamResponse{ChatID: chatID, Provider: provider, Content: e.Content}) {
				errMsg = ctx.Err().Error()
				break loop
			}
		case events.ProviderEnd:
			if full.Len() == 0 && e.Content != "" {
				full.WriteString(e.Content)
				content := e.Content
				update.Content = &content
				send(ctx, streamChan, model.StreamResponse{ChatID: chatID, Provider: provider, Content: content})
			}
			update.Model = e.Model
			update.Performance = e.Performance
			update.Tokens = e.Tokens
		case events.ProviderError:
			errMsg = e.Message
			break loop
		case events.Error:
			errMsg = e.Message
			break loop
		case events.End:
			break loop
		}
	}

	update.Error = errMsg
	s.store.Dispatch(state.Action{Type: state.ActionUpdateMessage, Payload: update})
	s.bus.Publish(notify.Notification{Name: notify.ChatComplete, Detail: notify.Detail{
		MessageID: assistant.ID, Provider: provider, FullContent: full.String(), Model: update.Model,
		Performance: update.Performance, Tokens: update.Tokens, Error: errMsg,
	}})
	send(ctx, streamChan, model.StreamResponse{ChatID: chatID, Provider: provider, Done: true, Error: errMsg})

	if saved, ok := s.store.Message(assistant.ID); ok {
		if err := s.repo.AddMessage(context.WithoutCancel(ctx), &saved, chatID); err != nil {
			s.logger.Error("Failed to save assistant message", "chat_id", chatID, "message_id", saved.ID, "error", err)
		}
	}
	s.logger.Info("Chat turn complete", "chat_id", chatID, "provider", provider, "chars", full.Len(), "error", errMsg)
}

func (s *ChatService) groupSettings(ctx context.Context, override *model.GroupSettings) (*model.GroupSettings, error) {
	if override == nil {
		return s.settings.InitAndGet(ctx)
	}
	if err := s.settings.validate.Struct(override); err != nil {
		return nil, fmt.Errorf("%w: %s", app_errors.ErrValidation, err.Error())
	}
	return override, nil
}

func (s *ChatService) ensureChat(ctx context.Context, chatID, query, mode string) (string, error) {
	if chatID != "" {
		if _, err := s.repo.GetChat(ctx, chatID); err != nil {
			return "", mapRepoErr(err, "chat "+chatID)
		}
		return chatID, nil
	}

	now := time.Now().UTC()
	chat := &model.Chat{ID: uuid.NewString(), Title: truncate(query, titleLength), Mode: mode, CreatedAt: now, UpdatedAt: now}
	if err := s.repo.CreateChat(ctx, chat); err != nil {
		return "", fmt.Errorf("could not create chat: %w", err)
	}
	return chat.ID, nil
}

func (s *ChatService) recordUserMessage(ctx context.Context, chatID, query string) {
	msg := model.ChatMessage{ID: uuid.NewString(), Role: model.RoleUser, Content: query}
	if !s.store.Dispatch(state.Action{Type: state.ActionSendMessage, Payload: msg}) {
		s.logger.Debug("Repeated user message not recorded", "chat_id", chatID)
		return
	}
	stored, _ := s.store.Message(msg.ID)
	if err := s.repo.AddMessage(ctx, &stored, chatID); err != nil {
		s.logger.Error("Error adding user message", "chat_id", chatID, "error", err)
	}
}

// send delivers resp unless ctx is done first.
func send(ctx context.Context, ch chan<- model.StreamResponse, resp model.StreamResponse) bool {
	select {
	case ch <- resp:
		return true
	case <-ctx.Done():
		return false
	}
}

func mapRepoErr(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", app_errors.ErrNotFound, what)
	}
	return err
}

// truncate shortens a string to a specified number of runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
