package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"avatar-relay/internal/model"
)

type sqliteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) Repository {
	return &sqliteRepository{db: db}
}

func (r *sqliteRepository) CreateChat(ctx context.Context, chat *model.Chat) error {
	query := "INSERT INTO chats (id, title, mode, created_at, updated_at) VALUES (?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query, chat.ID, chat.Title, chat.Mode, chat.CreatedAt, chat.UpdatedAt)
	return err
}

func (r *sqliteRepository) GetChat(ctx context.Context, chatID string) (*model.Chat, error) {
	query := "SELECT id, title, mode, created_at, updated_at FROM chats WHERE id = ?"
	row := r.db.QueryRowContext(ctx, query, chatID)
	var chat model.Chat
	err := row.Scan(&chat.ID, &chat.Title, &chat.Mode, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &chat, nil
}

func (r *sqliteRepository) GetChats(ctx context.Context) ([]*model.Chat, error) {
	query := "SELECT id, title, mode, created_at, updated_at FROM chats ORDER BY updated_at DESC"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chats := []*model.Chat{}
	for rows.Next() {
		var chat model.Chat
		if err := rows.Scan(&chat.ID, &chat.Title, &chat.Mode, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, &chat)
	}
	return chats, rows.Err()
}

func (r *sqliteRepository) UpdateChatTitle(ctx context.Context, chatID, newTitle string) error {
	query := "UPDATE chats SET title = ?, updated_at = ? WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, newTitle, time.Now().UTC(), chatID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *sqliteRepository) DeleteChat(ctx context.Context, chatID string) error {
	query := "DELETE FROM chats WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, chatID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// AddMessage upserts the message and bumps the chat in one transaction.
func (r *sqliteRepository) AddMessage(ctx context.Context, message *model.ChatMessage, chatID string) error {
	responses, err := nullJSON(message.Responses, len(message.Responses) > 0)
	if err != nil {
		return fmt.Errorf("could not encode responses: %w", err)
	}
	performance, err := nullJSON(message.Performance, message.Performance != nil)
	if err != nil {
		return fmt.Errorf("could not encode performance: %w", err)
	}
	tokens, err := nullJSON(message.Tokens, message.Tokens != nil)
	if err != nil {
		return fmt.Errorf("could not encode tokens: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertMsgQuery := `
		INSERT INTO messages (id, chat_id, role, content, provider, model, ai_name, timestamp,
			group_chat, winner, complete, error, responses, performance, tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			winner = excluded.winner,
			complete = excluded.complete,
			error = excluded.error,
			responses = excluded.responses,
			performance = excluded.performance,
			tokens = excluded.tokens
	`
	_, err = tx.ExecContext(ctx, insertMsgQuery,
		message.ID,
		chatID,
		message.Role,
		message.Content,
		message.Provider,
		message.Model,
		message.AiName,
		message.Timestamp,
		message.GroupChat,
		message.Winner,
		message.Complete,
		message.Error,
		responses,
		performance,
		tokens,
	)
	if err != nil {
		return fmt.Errorf("could not insert message: %w", err)
	}

	updateChatQuery := "UPDATE chats SET updated_at = ? WHERE id = ?"
	_, err = tx.ExecContext(ctx, updateChatQuery, time.Now().UTC(), chatID)
	if err != nil {
		return fmt.Errorf("could not update chat timestamp: %w", err)
	}

	return tx.Commit()
}

func (r *sqliteRepository) GetMessages(ctx context.Context, chatID string) ([]model.ChatMessage, error) {
	query := `
		SELECT id, role, content, provider, model, ai_name, timestamp,
			group_chat, winner, complete, error, responses, performance, tokens
		FROM messages
		WHERE chat_id = ?
		ORDER BY timestamp ASC
	`
	rows, err := r.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	messages := []model.ChatMessage{}
	for rows.Next() {
		var msg model.ChatMessage
		var responses, performance, tokens sql.NullString

		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.Provider, &msg.Model, &msg.AiName, &msg.Timestamp,
			&msg.GroupChat, &msg.Winner, &msg.Complete, &msg.Error, &responses, &performance, &tokens); err != nil {
			return nil, err
		}

		if responses.Valid {
			if err := json.Unmarshal([]byte(responses.String), &msg.Responses); err != nil {
				return nil, fmt.Errorf("could not decode responses of message %s: %w", msg.ID, err)
			}
		}
		if performance.Valid {
			msg.Performance = &model.Performance{}
			if err := json.Unmarshal([]byte(performance.String), msg.Performance); err != nil {
				return nil, fmt.Errorf("could not decode performance of message %s: %w", msg.ID, err)
			}
		}
		if tokens.Valid {
			msg.Tokens = &model.TokenUsage{}
			if err := json.Unmarshal([]byte(tokens.String), msg.Tokens); err != nil {
				return nil, fmt.Errorf("could not decode tokens of message %s: %w", msg.ID, err)
			}
		}

		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func nullJSON(v any, valid bool) (sql.NullString, error) {
	if !valid {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
