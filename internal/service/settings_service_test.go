package service_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app_errors "avatar-relay/internal/errors"
	"avatar-relay/internal/model"
	"avatar-relay/internal/service"
	"avatar-relay/internal/upstream/mocks"
)

var (
	selectSettings = regexp.QuoteMeta("SELECT value FROM settings WHERE key = ?")
	upsertSettings = regexp.QuoteMeta("INSERT INTO settings (key, value) VALUES (?, ?)")
)

func setupSettingsService(t *testing.T) (*service.SettingsService, *sql.DB, sqlmock.Sqlmock, *mocks.MockClient) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)

	mockClient := mocks.NewMockClient(t)
	settingsService := service.NewSettingsService(db, mockClient, service.SettingsDefaults{
		Provider:      "openrouter",
		ReplyStrategy: model.StrategyDiscussion,
		SystemPrompt:  "Be brief.",
	})

	return settingsService, db, mockDB, mockClient
}

func enabled(names ...string) []model.Provider {
	providers := make([]model.Provider, len(names))
	for i, n := range names {
		providers[i] = model.Provider{Name: n, Config: model.ProviderConfig{Enabled: true}}
	}
	return providers
}

func TestSettingsService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Get existing settings", func(t *testing.T) {
		settingsService, db, mockDB, mockClient := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		rows := sqlmock.NewRows([]string{"value"}).
			AddRow(`{"selectedProviders":["deepseek","glm"],"replyStrategy":"exclusive","systemPrompt":"p"}`)
		mockDB.ExpectQuery(selectSettings).WithArgs("group_settings").WillReturnRows(rows)
		mockClient.On("ListProviders", ctx).Return(enabled("deepseek", "glm", "openrouter"), nil).Once()

		settings, err := settingsService.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"deepseek", "glm"}, settings.SelectedProviders)
		assert.Equal(t, model.StrategyExclusive, settings.ReplyStrategy)

		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("Success - Self-heal drops providers that disappeared", func(t *testing.T) {
		settingsService, db, mockDB, mockClient := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		rows := sqlmock.NewRows([]string{"value"}).
			AddRow(`{"selectedProviders":["deepseek","retired"],"replyStrategy":"discussion"}`)
		mockDB.ExpectQuery(selectSettings).WillReturnRows(rows)
		mockClient.On("ListProviders", ctx).Return(enabled("deepseek"), nil).Once()
		mockDB.ExpectExec(upsertSettings).
			WithArgs("group_settings", `{"selectedProviders":["deepseek"],"replyStrategy":"discussion","systemPrompt":""}`).
			WillReturnResult(sqlmock.NewResult(1, 1))

		settings, err := settingsService.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"deepseek"}, settings.SelectedProviders)

		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("Success - Upstream unavailable keeps the stored selection", func(t *testing.T) {
		settingsService, db, mockDB, mockClient := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		rows := sqlmock.NewRows([]string{"value"}).
			AddRow(`{"selectedProviders":["retired"],"replyStrategy":"discussion"}`)
		mockDB.ExpectQuery(selectSettings).WillReturnRows(rows)
		mockClient.On("ListProviders", ctx).Return(nil, errors.New("connection refused")).Once()

		settings, err := settingsService.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"retired"}, settings.SelectedProviders)
	})

	t.Run("Failure - Nothing stored", func(t *testing.T) {
		settingsService, db, mockDB, _ := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		mockDB.ExpectQuery(selectSettings).WillReturnError(sql.ErrNoRows)

		_, err := settingsService.Get(ctx)
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	})
}

func TestSettingsService_InitAndGet(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Initializes with the configured default provider", func(t *testing.T) {
		settingsService, db, mockDB, mockClient := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		mockDB.ExpectQuery(selectSettings).WillReturnError(sql.ErrNoRows)
		mockClient.On("ListProviders", ctx).Return(enabled("deepseek", "openrouter"), nil).Once()
		mockDB.ExpectExec(upsertSettings).
			WithArgs("group_settings", `{"selectedProviders":["openrouter"],"replyStrategy":"discussion","systemPrompt":"Be brief."}`).
			WillReturnResult(sqlmock.NewResult(1, 1))

		settings, err := settingsService.InitAndGet(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"openrouter"}, settings.SelectedProviders)
		assert.Equal(t, "Be brief.", settings.SystemPrompt)

		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("Success - Falls back to the first enabled provider", func(t *testing.T) {
		settingsService, db, mockDB, mockClient := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		mockDB.ExpectQuery(selectSettings).WillReturnError(sql.ErrNoRows)
		mockClient.On("ListProviders", ctx).Return(enabled("glm", "deepseek"), nil).Once()
		mockDB.ExpectExec(upsertSettings).WillReturnResult(sqlmock.NewResult(1, 1))

		settings, err := settingsService.InitAndGet(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"glm"}, settings.SelectedProviders)
	})

	t.Run("Failure - Database error", func(t *testing.T) {
		settingsService, db, mockDB, _ := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		mockDB.ExpectQuery(selectSettings).WillReturnError(errors.New("db locked"))

		_, err := settingsService.InitAndGet(ctx)
		assert.ErrorContains(t, err, "db locked")
	})
}

func TestSettingsService_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		settingsService, db, mockDB, mockClient := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		mockClient.On("ListProviders", ctx).Return(enabled("deepseek", "glm"), nil).Once()
		mockDB.ExpectExec(upsertSettings).WillReturnResult(sqlmock.NewResult(1, 1))

		err := settingsService.Save(ctx, &model.GroupSettings{
			SelectedProviders: []string{"glm"},
			ReplyStrategy:     model.StrategySupplement,
		})
		assert.NoError(t, err)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("Failure - Invalid strategy", func(t *testing.T) {
		settingsService, db, _, _ := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		err := settingsService.Save(ctx, &model.GroupSettings{
			SelectedProviders: []string{"glm"},
			ReplyStrategy:     "shouting",
		})
		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})

	t.Run("Failure - No providers selected", func(t *testing.T) {
		settingsService, db, _, _ := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		err := settingsService.Save(ctx, &model.GroupSettings{ReplyStrategy: model.StrategyDiscussion})
		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})

	t.Run("Failure - Unknown provider", func(t *testing.T) {
		settingsService, db, _, mockClient := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		mockClient.On("ListProviders", ctx).Return(enabled("deepseek"), nil).Once()

		err := settingsService.Save(ctx, &model.GroupSettings{
			SelectedProviders: []string{"glm"},
			ReplyStrategy:     model.StrategyDiscussion,
		})
		assert.ErrorIs(t, err, app_errors.ErrValidation)
		assert.ErrorContains(t, err, "glm")
	})
}
