package service_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"avatar-relay/internal/aggregator"
	"avatar-relay/internal/dedup"
	app_errors "avatar-relay/internal/errors"
	"avatar-relay/internal/model"
	"avatar-relay/internal/notify"
	"avatar-relay/internal/publisher"
	"avatar-relay/internal/repository"
	mock_repo "avatar-relay/internal/repository/mocks"
	"avatar-relay/internal/service"
	"avatar-relay/internal/state"
	"avatar-relay/internal/stream"
	"avatar-relay/internal/upstream"
	mock_upstream "avatar-relay/internal/upstream/mocks"
)

type Mocks struct {
	repo     *mock_repo.MockRepository
	upstream *mock_upstream.MockClient
	store    *state.Store
	pub      *publisher.Publisher
	db       *sql.DB
	mockDB   sqlmock.Sqlmock
}

func setupChatService(t *testing.T) (*service.ChatService, Mocks) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)

	guard := dedup.New(dedup.DefaultThreshold)
	bus := notify.NewBus()
	t.Cleanup(bus.Close)

	mocks := Mocks{
		repo:     mock_repo.NewMockRepository(t),
		upstream: mock_upstream.NewMockClient(t),
		store:    state.NewStore(guard),
		db:       db,
		mockDB:   mockDB,
	}
	mocks.pub = publisher.New(mocks.store, bus, publisher.WithGrace(time.Hour))

	settingsService := service.NewSettingsService(mocks.db, mocks.upstream, service.SettingsDefaults{Provider: "openrouter"})
	chatService := service.NewChatService(mocks.repo, mocks.upstream, settingsService, mocks.pub, mocks.store, bus,
		service.WithGuard(guard), service.WithDefaultProvider("openrouter"))

	return chatService, mocks
}

func sseBody(lines ...string) *stream.Reader {
	body := "data: " + strings.Join(lines, "\n\ndata: ") + "\n\n"
	return stream.NewReader(io.NopCloser(strings.NewReader(body)))
}

func TestChatService_UpdateChatTitle(t *testing.T) {
	ctx := context.Background()
	chatID := "chat123"
	newTitle := "New Title"

	t.Run("Success", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		defer func() {
			_ = mocks.db.Close()
		}()

		mocks.repo.On("UpdateChatTitle", ctx, chatID, newTitle).Return(nil).Once()

		err := chatService.UpdateChatTitle(ctx, chatID, "  "+newTitle+" ")
		assert.NoError(t, err)
	})

	t.Run("Failure - Repository returns not found", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		defer func() {
			_ = mocks.db.Close()
		}()
		mocks.repo.On("UpdateChatTitle", ctx, chatID, newTitle).Return(repository.ErrNotFound).Once()

		err := chatService.UpdateChatTitle(ctx, chatID, newTitle)
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	})

	t.Run("Failure - Empty title", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		defer func() {
			_ = mocks.db.Close()
		}()

		err := chatService.UpdateChatTitle(ctx, chatID, "   ")
		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})
}

func TestChatService_ListChats(t *testing.T) {
	ctx := context.Background()
	chatService, mocks := setupChatService(t)
	defer func() {
		_ = mocks.db.Close()
	}()

	expected := []*model.Chat{{ID: "a"}, {ID: "b"}}
	mocks.repo.On("GetChats", ctx).Return(expected, nil).Once()

	chats, err := chatService.ListChats(ctx)
	require.NoError(t, err)
	assert.Equal(t, expected, chats)
}

func TestChatService_GetFullChat(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		defer func() {
			_ = mocks.db.Close()
		}()

		mocks.repo.On("GetChat", ctx, "c1").Return(&model.Chat{ID: "c1", Title: "hi"}, nil).Once()
		mocks.repo.On("GetMessages", ctx, "c1").Return([]model.ChatMessage{{ID: "u1", Role: model.RoleUser}}, nil).Once()

		full, err := chatService.GetFullChat(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "hi", full.Title)
		assert.Len(t, full.Messages, 1)
	})

	t.Run("Failure - Chat not found", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		defer func() {
			_ = mocks.db.Close()
		}()

		mocks.repo.On("GetChat", ctx, "nope").Return(nil, repository.ErrNotFound).Once()

		_, err := chatService.GetFullChat(ctx, "nope")
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	})

	t.Run("Failure - Messages error", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		defer func() {
			_ = mocks.db.Close()
		}()

		mocks.repo.On("GetChat", ctx, "c1").Return(&model.Chat{ID: "c1"}, nil).Once()
		mocks.repo.On("GetMessages", ctx, "c1").Return(nil, errors.New("db gone")).Once()

		_, err := chatService.GetFullChat(ctx, "c1")
		assert.ErrorContains(t, err, "could not get messages")
	})
}

func TestChatService_HandleGroupMessage(t *testing.T) {
	ctx := context.Background()
	settings := &model.GroupSettings{SelectedProviders: []string{"deepseek", "glm"}, ReplyStrategy: model.StrategyDiscussion}

	t.Run("Success - Turn is aggregated, relayed and saved", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		defer func() {
			_ = mocks.db.Close()
		}()

		mocks.repo.On("CreateChat", ctx, mock.MatchedBy(func(c *model.Chat) bool {
			return c.Title == "hello everyone" && c.Mode == service.ModeGroup
		})).Return(nil).Once()
		mocks.repo.On("AddMessage", ctx, mock.MatchedBy(func(m *model.ChatMessage) bool {
			return m.Role == model.RoleUser && m.Content == "hello everyone"
		}), mock.AnythingOfType("string")).Return(nil).Once()
		mocks.repo.On("AddMessage", mock.Anything, mock.MatchedBy(func(m *model.ChatMessage) bool {
			return m.GroupChat && m.Complete && len(m.Responses) == 2
		}), mock.AnythingOfType("string")).Return(nil).Once()
		mocks.upstream.On("StreamGroupChat", ctx, mock.MatchedBy(func(r *upstream.GroupChatRequest) bool {
			return r.Query == "hello everyone" && len(r.GroupSettings.SelectedProviders) == 2
		})).Return(sseBody(
			`{"type":"provider_start","provider":"deepseek","aiName":"DeepSeek","index":0,"total":2}`,
			`{"type":"provider_end","provider":"deepseek","content":"Hello there"}`,
			`{"type":"provider_start","provider":"glm","aiName":"GLM","index":1,"total":2}`,
			`{"type":"provider_end","provider":"glm","content":"Hi!"}`,
			`{"type":"end"}`,
		), nil).Once()

		turn, err := chatService.HandleGroupMessage(ctx, &service.GroupMessageRequest{Query: " hello everyone ", GroupSettings: settings})
		require.NoError(t, err)
		require.NotEmpty(t, turn.ChatID)

		var names []notify.Name
		for n := range turn.Events() {
			names = append(names, n.Name)
		}
		result, err := turn.Wait()

		require.NoError(t, err)
		assert.Equal(t, aggregator.Complete, result.State)
		assert.Equal(t, notify.GroupChatComplete, names[len(names)-1])

		messages := chatService.Messages()
		require.Len(t, messages, 2)
		assert.Equal(t, model.RoleUser, messages[0].Role)
		assert.True(t, messages[1].GroupChat)
		assert.False(t, mocks.pub.Busy())
	})

	t.Run("Success - Closing a finished turn cuts the grace delay short", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		defer func() {
			_ = mocks.db.Close()
		}()

		mocks.repo.On("CreateChat", ctx, mock.Anything).Return(nil).Once()
		mocks.repo.On("AddMessage", ctx, mock.MatchedBy(func(m *model.ChatMessage) bool {
			return m.Role == model.RoleUser
		}), mock.AnythingOfType("string")).Return(nil).Once()
		mocks.repo.On("AddMessage", mock.Anything, mock.MatchedBy(func(m *model.ChatMessage) bool {
			return m.GroupChat && len(m.Responses) == 1
		}), mock.AnythingOfType("string")).Return(nil).Once()
		// glm is announced but never ends, so completion waits for the grace delay.
		mocks.upstream.On("StreamGroupChat", ctx, mock.Anything).Return(sseBody(
			`{"type":"provider_start","provider":"deepseek","index":0,"total":2}`,
			`{"type":"provider_end","provider":"deepseek","content":"Hello there"}`,
			`{"type":"end"}`,
		), nil).Once()

		turn, err := chatService.HandleGroupMessage(ctx, &service.GroupMessageRequest{Query: "hello", GroupSettings: settings})
		require.NoError(t, err)

		for range turn.Events() {
		}
		result, err := turn.Wait()
		require.NoError(t, err)
		assert.Equal(t, aggregator.Complete, result.State)
		assert.True(t, mocks.pub.Busy())

		// ACT
		turn.Close()

		// ASSERT
		assert.False(t, mocks.pub.Busy())
	})

	t.Run("Failure - Turn already in progress", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		defer func() {
			_ = mocks.db.Close()
		}()

		active, err := mocks.pub.BeginTurn()
		require.NoError(t, err)
		defer active.Cancel()

		_, err = chatService.HandleGroupMessage(ctx, &service.GroupMessageRequest{Query: "hi", GroupSettings: settings})
		assert.ErrorIs(t, err, app_errors.ErrTurnInProgress)
	})

	t.Run("Failure - Upstream cannot be reached", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		defer func() {
			_ = mocks.db.Close()
		}()

		mocks.repo.On("CreateChat", ctx, mock.Anything).Return(nil).Once()
		mocks.repo.On("AddMessage", ctx, mock.Anything, mock.Anything).Return(nil).Once()
		mocks.upstream.On("StreamGroupChat", ctx, mock.Anything).
			Return(nil, &stream.TransportError{StatusCode: 503}).Once()

		_, err := chatService.HandleGroupMessage(ctx, &service.GroupMessageRequest{Query: "hi", GroupSettings: settings})
		assert.ErrorIs(t, err, app_errors.ErrTransport)
		assert.False(t, mocks.pub.Busy(), "a failed start must release the publisher")
	})

	t.Run("Failure - Unknown chat", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		defer func() {
			_ = mocks.db.Close()
		}()

		mocks.repo.On("GetChat", ctx, "missing").Return(nil, repository.ErrNotFound).Once()

		_, err := chatService.HandleGroupMessage(ctx, &service.GroupMessageRequest{ChatID: "missing", Query: "hi", GroupSettings: settings})
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
		assert.False(t, mocks.pub.Busy())
	})

	t.Run("Failure - Invalid settings override", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		defer func() {
			_ = mocks.db.Close()
		}()

		_, err := chatService.HandleGroupMessage(ctx, &service.GroupMessageRequest{
			Query:         "hi",
			GroupSettings: &model.GroupSettings{ReplyStrategy: "loud"},
		})
		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})

	t.Run("Failure - Empty query", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		defer func() {
			_ = mocks.db.Close()
		}()

		_, err := chatService.HandleGroupMessage(ctx, &service.GroupMessageRequest{Query: "  "})
		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})
}

func TestChatService_HandleMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Deltas are relayed and the answer saved", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		defer func() {
			_ = mocks.db.Close()
		}()

		mocks.repo.On("GetChat", ctx, "c1").Return(&model.Chat{ID: "c1"}, nil).Once()
		mocks.repo.On("AddMessage", ctx, mock.MatchedBy(func(m *model.ChatMessage) bool {
			return m.Role == model.RoleUser
		}), "c1").Return(nil).Once()
		mocks.repo.On("AddMessage", mock.Anything, mock.MatchedBy(func(m *model.ChatMessage) bool {
			return m.Role == model.RoleAssistant && m.Content == "Hello plain world" && m.Model == "glm-4"
		}), "c1").Return(nil).Once()
		mocks.upstream.On("StreamChat", ctx, &upstream.ChatRequest{Query: "hi", Provider: "openrouter"}).Return(sseBody(
			`{"type":"content","content":"Hello "}`,
			`plain world`,
			`{"type":"provider_end","model":"glm-4"}`,
			`[DONE]`,
		), nil).Once()

		ch := make(chan model.StreamResponse)
		go chatService.HandleMessage(ctx, &service.CreateMessageRequest{ChatID: "c1", Query: "hi"}, ch)

		var chunks []model.StreamResponse
		for c := range ch {
			chunks = append(chunks, c)
		}

		require.Len(t, chunks, 3)
		assert.Equal(t, "Hello ", chunks[0].Content)
		assert.Equal(t, "plain world", chunks[1].Content)
		assert.True(t, chunks[2].Done)
		assert.Empty(t, chunks[2].Error)
		assert.Equal(t, "c1", chunks[2].ChatID)
	})

	t.Run("Failure - Provider error ends the turn", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		defer func() {
			_ = mocks.db.Close()
		}()

		mocks.repo.On("CreateChat", ctx, mock.Anything).Return(nil).Once()
		mocks.repo.On("AddMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()
		mocks.upstream.On("StreamChat", ctx, mock.Anything).Return(sseBody(
			`{"type":"provider_error","provider":"glm","error":"quota exceeded"}`,
		), nil).Once()

		ch := make(chan model.StreamResponse, 4)
		chatService.HandleMessage(ctx, &service.CreateMessageRequest{Query: "hi", Provider: "glm"}, ch)

		last := model.StreamResponse{}
		for c := range ch {
			last = c
		}
		assert.True(t, last.Done)
		assert.Equal(t, "quota exceeded", last.Error)

		messages := chatService.Messages()
		require.Len(t, messages, 2)
		assert.Equal(t, "quota exceeded", messages[1].Error)
	})

	t.Run("Failure - Empty query", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		defer func() {
			_ = mocks.db.Close()
		}()

		ch := make(chan model.StreamResponse, 1)
		chatService.HandleMessage(ctx, &service.CreateMessageRequest{Query: ""}, ch)

		resp := <-ch
		assert.Equal(t, "query is required", resp.Error)
	})
}

func TestChatService_MessageState(t *testing.T) {
	chatService, mocks := setupChatService(t)
	defer func() {
		_ = mocks.db.Close()
	}()

	mocks.store.Dispatch(state.Action{Type: state.ActionAddMessage, Payload: model.ChatMessage{ID: "a", Role: model.RoleUser, Content: "x"}})
	mocks.store.Dispatch(state.Action{Type: state.ActionAddMessage, Payload: model.ChatMessage{ID: "a", Role: model.RoleUser, Content: "x"}})

	assert.True(t, chatService.DeduplicateMessages())
	assert.Len(t, chatService.Messages(), 1)

	chatService.ClearMessages()
	assert.Empty(t, chatService.Messages())
}
