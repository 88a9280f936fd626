package repository

import (
	"context"

	"avatar-relay/internal/model"
)

// Repository defines the interface for data storage operations.
// This interface makes it easy to switch database implementations.
type Repository interface {
	CreateChat(ctx context.Context, chat *model.Chat) error
	GetChat(ctx context.Context, chatID string) (*model.Chat, error)
	GetChats(ctx context.Context) ([]*model.Chat, error)
	UpdateChatTitle(ctx context.Context, chatID, newTitle string) error
	DeleteChat(ctx context.Context, chatID string) error

	// AddMessage inserts the message or replaces a stored message with the
	// same id, so a container can be saved again once stragglers landed.
	AddMessage(ctx context.Context, message *model.ChatMessage, chatID string) error
	GetMessages(ctx context.Context, chatID string) ([]model.ChatMessage, error)
}
