package service

import (
	"context"
	"fmt"
	"strings"

	app_errors "avatar-relay/internal/errors"
	"avatar-relay/internal/model"
	"avatar-relay/internal/upstream"
)

// ProviderService handles the business logic for the upstream provider catalogue.
type ProviderService struct {
	upstream upstream.Client
}

// NewProviderService creates a new ProviderService.
func NewProviderService(client upstream.Client) *ProviderService {
	return &ProviderService{upstream: client}
}

// List returns the providers the upstream reports as enabled.
func (s *ProviderService) List(ctx context.Context) ([]model.Provider, error) {
	return s.upstream.ListProviders(ctx)
}

// Test asks the upstream to check the connection of one provider.
func (s *ProviderService) Test(ctx context.Context, provider string) (*model.ProviderTestResult, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return nil, fmt.Errorf("%w: provider is required", app_errors.ErrValidation)
	}
	return s.upstream.TestProvider(ctx, provider)
}
