package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avatar-relay/internal/model"
	"avatar-relay/internal/repository"
)

func setupSQLiteRepository(t *testing.T) (repository.Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mockDB.ExpectationsWereMet())
		_ = db.Close()
	})
	return repository.NewSQLiteRepository(db), mockDB
}

func TestSQLiteRepository_GetChat(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Success", func(t *testing.T) {
		repo, mockDB := setupSQLiteRepository(t)
		rows := sqlmock.NewRows([]string{"id", "title", "mode", "created_at", "updated_at"}).
			AddRow("chat1", "Hello", "group", now, now)
		mockDB.ExpectQuery("SELECT id, title, mode, created_at, updated_at FROM chats WHERE id = ?").
			WithArgs("chat1").
			WillReturnRows(rows)

		chat, err := repo.GetChat(ctx, "chat1")

		require.NoError(t, err)
		assert.Equal(t, "Hello", chat.Title)
		assert.Equal(t, "group", chat.Mode)
	})

	t.Run("Failure - Not found", func(t *testing.T) {
		repo, mockDB := setupSQLiteRepository(t)
		mockDB.ExpectQuery("SELECT id, title, mode, created_at, updated_at FROM chats").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetChat(ctx, "missing")

		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestSQLiteRepository_GetChats(t *testing.T) {
	repo, mockDB := setupSQLiteRepository(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "title", "mode", "created_at", "updated_at"}).
		AddRow("b", "Second", "group", now, now).
		AddRow("a", "First", "single", now.Add(-time.Hour), now.Add(-time.Hour))
	mockDB.ExpectQuery("SELECT (.+) FROM chats ORDER BY updated_at DESC").WillReturnRows(rows)

	chats, err := repo.GetChats(context.Background())

	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "b", chats[0].ID)
}

func TestSQLiteRepository_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Update title", func(t *testing.T) {
		repo, mockDB := setupSQLiteRepository(t)
		mockDB.ExpectExec("UPDATE chats SET title = ?").
			WithArgs("New", sqlmock.AnyArg(), "chat1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateChatTitle(ctx, "chat1", "New"))
	})

	t.Run("Failure - Update unknown chat", func(t *testing.T) {
		repo, mockDB := setupSQLiteRepository(t)
		mockDB.ExpectExec("UPDATE chats SET title = ?").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.UpdateChatTitle(ctx, "nope", "New"), repository.ErrNotFound)
	})

	t.Run("Success - Delete", func(t *testing.T) {
		repo, mockDB := setupSQLiteRepository(t)
		mockDB.ExpectExec("DELETE FROM chats WHERE id = ?").
			WithArgs("chat1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.DeleteChat(ctx, "chat1"))
	})
}

func TestSQLiteRepository_AddMessage(t *testing.T) {
	ctx := context.Background()
	idx := 0
	container := &model.ChatMessage{
		ID:        "m1",
		Role:      model.RoleAssistant,
		Provider:  model.GroupChatProvider,
		Model:     model.GroupChatModel,
		Timestamp: time.Now().UTC(),
		GroupChat: true,
		Complete:  true,
		Responses: []model.ProviderResponse{{Provider: "glm", AiName: "GLM", Content: "Hi!", Index: &idx}},
	}

	t.Run("Success - Upserts the message inside a transaction", func(t *testing.T) {
		repo, mockDB := setupSQLiteRepository(t)
		mockDB.ExpectBegin()
		mockDB.ExpectExec("INSERT INTO messages").
			WithArgs("m1", "chat1", model.RoleAssistant, "", model.GroupChatProvider, model.GroupChatModel, "",
				sqlmock.AnyArg(), true, "", true, "", sqlmock.AnyArg(), nil, nil).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mockDB.ExpectExec("UPDATE chats SET updated_at = ?").
			WithArgs(sqlmock.AnyArg(), "chat1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mockDB.ExpectCommit()

		assert.NoError(t, repo.AddMessage(ctx, container, "chat1"))
	})

	t.Run("Failure - Insert error rolls back", func(t *testing.T) {
		repo, mockDB := setupSQLiteRepository(t)
		mockDB.ExpectBegin()
		mockDB.ExpectExec("INSERT INTO messages").WillReturnError(errors.New("disk full"))
		mockDB.ExpectRollback()

		err := repo.AddMessage(ctx, container, "chat1")

		assert.ErrorContains(t, err, "could not insert message")
	})
}

func TestSQLiteRepository_GetMessages(t *testing.T) {
	repo, mockDB := setupSQLiteRepository(t)
	now := time.Now().UTC()
	columns := []string{"id", "role", "content", "provider", "model", "ai_name", "timestamp",
		"group_chat", "winner", "complete", "error", "responses", "performance", "tokens"}
	rows := sqlmock.NewRows(columns).
		AddRow("u1", model.RoleUser, "hello", "", "", "", now, false, "", false, "", nil, nil, nil).
		AddRow("m1", model.RoleAssistant, "", model.GroupChatProvider, model.GroupChatModel, "", now, true, "glm", true, "",
			`[{"provider":"glm","aiName":"GLM","content":"Hi!"}]`, nil, `{"input":1,"output":2,"total":3}`)
	mockDB.ExpectQuery("SELECT (.+) FROM messages WHERE chat_id = ?").
		WithArgs("chat1").
		WillReturnRows(rows)

	messages, err := repo.GetMessages(context.Background(), "chat1")

	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Nil(t, messages[0].Responses)
	assert.True(t, messages[1].GroupChat)
	require.Len(t, messages[1].Responses, 1)
	assert.Equal(t, "Hi!", messages[1].Responses[0].Content)
	require.NotNil(t, messages[1].Tokens)
	assert.Equal(t, 3, messages[1].Tokens.Total)
	assert.Nil(t, messages[1].Performance)
}
