package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"avatar-relay/internal/model"
)

const chatsKey = "chats"

type redisRepository struct {
	rdb *redis.Client
}

func NewRedisRepository(rdb *redis.Client) Repository {
	return &redisRepository{rdb: rdb}
}

// Key Generation Helpers
func (r *redisRepository) chatKey(chatID string) string { return fmt.Sprintf("chat:%s", chatID) }
func (r *redisRepository) messagesKey(chatID string) string { return fmt.Sprintf("chat:%s:messages", chatID) }
func (r *redisRepository) messageKey(messageID string) string { return fmt.Sprintf("message:%s", messageID) }

// --- Chat Operations ---
func (r *redisRepository) CreateChat(ctx context.Context, chat *model.Chat) error {
	chatMap, err := structToMap(chat)
	if err != nil {
		return fmt.Errorf("could not convert chat to map: %w", err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, r.chatKey(chat.ID), chatMap)
	pipe.ZAdd(ctx, chatsKey, redis.Z{Score: float64(-chat.UpdatedAt.UnixNano()), Member: chat.ID})
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisRepository) GetChat(ctx context.Context, chatID string) (*model.Chat, error) {
	chatMap, err := r.rdb.HGetAll(ctx, r.chatKey(chatID)).Result()
	if err != nil {
		return nil, err
	}
	if len(chatMap) == 0 {
		return nil, ErrNotFound
	}
	var chat model.Chat
	return &chat, mapToStruct(chatMap, &chat)
}

func (r *redisRepository) GetChats(ctx context.Context) ([]*model.Chat, error) {
	chatIDs, err := r.rdb.ZRange(ctx, chatsKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	chats := make([]*model.Chat, 0, len(chatIDs))
	for _, id := range chatIDs {
		chat, err := r.GetChat(ctx, id)
		if err == nil && chat != nil {
			chats = append(chats, chat)
		}
	}
	return chats, nil
}

func (r *redisRepository) UpdateChatTitle(ctx context.Context, chatID, newTitle string) error {
	key := r.chatKey(chatID)
	exists, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	now := time.Now().UTC()
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, "title", newTitle, "updated_at", now.Format(time.RFC3339Nano))
	pipe.ZAdd(ctx, chatsKey, redis.Z{Score: float64(-now.UnixNano()), Member: chatID})
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisRepository) DeleteChat(ctx context.Context, chatID string) error {
	if _, err := r.GetChat(ctx, chatID); err != nil {
		return err
	}

	msgIDs, err := r.rdb.ZRange(ctx, r.messagesKey(chatID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("could not get message IDs for deletion: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	if len(msgIDs) > 0 {
		messageKeys := make([]string, len(msgIDs))
		for i, id := range msgIDs {
			messageKeys[i] = r.messageKey(id)
		}
		pipe.Del(ctx, messageKeys...)
	}
	pipe.Del(ctx, r.chatKey(chatID), r.messagesKey(chatID))
	pipe.ZRem(ctx, chatsKey, chatID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute chat deletion pipeline: %w", err)
	}
	return nil
}

// --- Message Operations ---

// AddMessage stores the message as one JSON document, since containers carry
// nested responses that a flat hash cannot hold.
func (r *redisRepository) AddMessage(ctx context.Context, message *model.ChatMessage, chatID string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("could not encode message: %w", err)
	}
	now := time.Now().UTC()
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.messageKey(message.ID), data, 0)
	pipe.ZAdd(ctx, r.messagesKey(chatID), redis.Z{Score: float64(message.Timestamp.UnixNano()), Member: message.ID})
	pipe.HSet(ctx, r.chatKey(chatID), "updated_at", now.Format(time.RFC3339Nano))
	pipe.ZAdd(ctx, chatsKey, redis.Z{Score: float64(-now.UnixNano()), Member: chatID})
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisRepository) GetMessages(ctx context.Context, chatID string) ([]model.ChatMessage, error) {
	msgIDs, err := r.rdb.ZRange(ctx, r.messagesKey(chatID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []model.ChatMessage{}, nil
		}
		return nil, err
	}
	messages := make([]model.ChatMessage, 0, len(msgIDs))
	for _, id := range msgIDs {
		data, err := r.rdb.Get(ctx, r.messageKey(id)).Bytes()
		if err != nil {
			continue
		}
		var msg model.ChatMessage
		if err := json.Unmarshal(data, &msg); err == nil {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

// --- Helper Functions ---
func structToMap(obj any) (map[string]any, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var mapData map[string]any
	return mapData, json.Unmarshal(data, &mapData)
}

func mapToStruct(data map[string]string, obj any) error {
	jsonStr, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonStr, obj)
}
