package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/go-playground/validator/v10"

	app_errors "avatar-relay/internal/errors"
	"avatar-relay/internal/model"
	"avatar-relay/internal/upstream"
)

const groupSettingsKey = "group_settings"

// SettingsDefaults seed the group settings when none are stored yet.
type SettingsDefaults struct {
	Provider      string
	ReplyStrategy string
	SystemPrompt  string
}

type SettingsService struct {
	db       *sql.DB
	upstream upstream.Client
	defaults SettingsDefaults
	validate *validator.Validate
}

func NewSettingsService(db *sql.DB, client upstream.Client, defaults SettingsDefaults) *SettingsService {
	if defaults.ReplyStrategy == "" {
		defaults.ReplyStrategy = model.StrategyDiscussion
	}
	return &SettingsService{
		db:       db,
		upstream: client,
		defaults: defaults,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// InitAndGet returns the stored group settings, creating them from the
// defaults and the upstream provider list on first use.
func (s *SettingsService) InitAndGet(ctx context.Context) (*model.GroupSettings, error) {
	settings, err := s.Get(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, app_errors.ErrNotFound) {
		return nil, err
	}

	slog.Info("No group settings found. Performing smart initialization...")
	enabled, listErr := s.enabledProviders(ctx)
	if listErr != nil {
		slog.Warn("Could not list upstream providers during init, using the configured default.", "error", listErr)
	}

	initial := &model.GroupSettings{
		SelectedProviders: s.defaultSelection(enabled),
		ReplyStrategy:     s.defaults.ReplyStrategy,
		SystemPrompt:      s.defaults.SystemPrompt,
	}
	if err := s.store(ctx, initial); err != nil {
		return nil, fmt.Errorf("failed to save initial group settings: %w", err)
	}
	slog.Info("Initialized group settings.", "providers", initial.SelectedProviders, "strategy", initial.ReplyStrategy)
	return initial, nil
}

// Get loads the stored settings and drops providers the upstream no longer
// offers. It returns ErrNotFound when nothing is stored.
func (s *SettingsService) Get(ctx context.Context) (*model.GroupSettings, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", groupSettingsKey).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: group settings", app_errors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read group settings: %w", err)
	}

	var settings model.GroupSettings
	if err := json.Unmarshal([]byte(value), &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal group settings: %w", err)
	}

	s.heal(ctx, &settings)
	return &settings, nil
}

// Save validates and stores the settings. Providers are checked against the
// upstream list when it can be fetched.
func (s *SettingsService) Save(ctx context.Context, settings *model.GroupSettings) error {
	if err := s.validate.Struct(settings); err != nil {
		return fmt.Errorf("%w: %s", app_errors.ErrValidation, err.Error())
	}

	enabled, err := s.enabledProviders(ctx)
	if err != nil {
		slog.Warn("Could not list providers for validation, saving settings without check.", "error", err)
	} else {
		for _, p := range settings.SelectedProviders {
			if !slices.Contains(enabled, p) {
				return fmt.Errorf("%w: provider '%s' is not available", app_errors.ErrValidation, p)
			}
		}
	}

	return s.store(ctx, settings)
}

func (s *SettingsService) heal(ctx context.Context, settings *model.GroupSettings) {
	enabled, err := s.enabledProviders(ctx)
	if err != nil || len(enabled) == 0 {
		return
	}

	kept := make([]string, 0, len(settings.SelectedProviders))
	for _, p := range settings.SelectedProviders {
		if slices.Contains(enabled, p) {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(settings.SelectedProviders) {
		return
	}
	if len(kept) == 0 {
		kept = s.defaultSelection(enabled)
	}

	slog.Warn("Selected providers are no longer available, repairing group settings.",
		"before", settings.SelectedProviders, "after", kept)
	settings.SelectedProviders = kept
	if err := s.store(ctx, settings); err != nil {
		slog.Error("Failed to save repaired group settings", "error", err)
	}
}

func (s *SettingsService) defaultSelection(enabled []string) []string {
	if len(enabled) == 0 || slices.Contains(enabled, s.defaults.Provider) {
		return []string{s.defaults.Provider}
	}
	return []string{enabled[0]}
}

func (s *SettingsService) enabledProviders(ctx context.Context) ([]string, error) {
	providers, err := s.upstream.ListProviders(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name
	}
	return names, nil
}

// store writes the settings without validation.
func (s *SettingsService) store(ctx context.Context, settings *model.GroupSettings) error {
	val, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal group settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		groupSettingsKey, string(val))
	return err
}
