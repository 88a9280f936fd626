package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	app_errors "avatar-relay/internal/errors"
	"avatar-relay/internal/interfaces"
	"avatar-relay/internal/upstream"
)

// ProviderHandler exposes the provider catalogue of the chat backend.
type ProviderHandler struct {
	service interfaces.ProviderService
}

func NewProviderHandler(svc interfaces.ProviderService) *ProviderHandler {
	return &ProviderHandler{service: svc}
}

// HandleListProviders godoc
// @Summary      List providers
// @Description  Gets the enabled providers offered by the chat backend.
// @Tags         Providers
// @Produce      json
// @Success      200  {array}   model.Provider
// @Failure      502  {object}  ErrorResponse
// @Router       /v1/providers [get]
func (h *ProviderHandler) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if token := bearerToken(r); token != "" {
		ctx = upstream.WithToken(ctx, token)
	}

	providers, err := h.service.List(ctx)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, providers)
}

// HandleTestProvider godoc
// @Summary      Test a provider
// @Description  Asks the chat backend to check the connection of one provider.
// @Tags         Providers
// @Accept       json
// @Produce      json
// @Param        providerRequest  body      TestProviderRequest  true  "Provider name"
// @Success      200              {object}  model.ProviderTestResult
// @Failure      400              {object}  ErrorResponse
// @Failure      502              {object}  ErrorResponse
// @Router       /v1/providers/test [post]
func (h *ProviderHandler) HandleTestProvider(w http.ResponseWriter, r *http.Request) {
	var req TestProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request payload", app_errors.ErrValidation))
		return
	}
	if err := validateRequest(&req); err != nil {
		respondWithError(w, err)
		return
	}

	ctx := r.Context()
	if token := bearerToken(r); token != "" {
		ctx = upstream.WithToken(ctx, token)
	}

	result, err := h.service.Test(ctx, req.Provider)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
