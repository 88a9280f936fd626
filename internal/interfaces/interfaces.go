package interfaces

import (
	"context"

	"avatar-relay/internal/model"
	"avatar-relay/internal/notify"
	"avatar-relay/internal/service"
)

// This file defines the interfaces for our core services.
// The API layer depends on these instead of the concrete services, so
// handlers can be tested against generated mocks.

// ChatService defines the contract for chat and turn handling.
type ChatService interface {
	UpdateChatTitle(ctx context.Context, chatID, newTitle string) error
	DeleteChat(ctx context.Context, chatID string) error
	ListChats(ctx context.Context) ([]*model.Chat, error)
	GetFullChat(ctx context.Context, chatID string) (*model.FullChat, error)
	Messages() []model.ChatMessage
	ClearMessages()
	DeduplicateMessages() bool
	Subscribe(buffer int, filter notify.Filter) *notify.Subscription
	HandleGroupMessage(ctx context.Context, req *service.GroupMessageRequest) (*service.GroupTurn, error)
	HandleMessage(ctx context.Context, req *service.CreateMessageRequest, streamChan chan<- model.StreamResponse)
}

// SettingsService defines the contract for managing group-chat settings.
type SettingsService interface {
	InitAndGet(ctx context.Context) (*model.GroupSettings, error)
	Get(ctx context.Context) (*model.GroupSettings, error)
	Save(ctx context.Context, settings *model.GroupSettings) error
}

// ProviderService defines the contract for the provider catalogue.
type ProviderService interface {
	List(ctx context.Context) ([]model.Provider, error)
	Test(ctx context.Context, provider string) (*model.ProviderTestResult, error)
}

var (
	_ ChatService     = (*service.ChatService)(nil)
	_ SettingsService = (*service.SettingsService)(nil)
	_ ProviderService = (*service.ProviderService)(nil)
)
