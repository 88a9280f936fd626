package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	app_errors "avatar-relay/internal/errors"
)

// This file contains shared DTOs for API responses and helper functions for
// sending consistent HTTP and SSE responses.

// ErrorResponse defines the standard JSON structure for error messages.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse defines a generic success response for operations that
// don't return a resource.
type StatusResponse struct {
	Status string `json:"status"`
}

// UpdateTitleRequest is the DTO for the manual chat title update endpoint.
type UpdateTitleRequest struct {
	Title string `json:"title" validate:"required,min=1,max=100" example:"Weekend plans"`
}

// TestProviderRequest is the DTO for the provider connection test.
type TestProviderRequest struct {
	Provider string `json:"provider" validate:"required" example:"deepseek"`
}

// DeduplicateResponse reports whether the in-memory messages changed.
type DeduplicateResponse struct {
	Changed bool `json:"changed"`
}

// statusFor maps business-layer errors to an HTTP status code and a client
// message. Unknown errors become 500 so internals never leak.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, app_errors.ErrNotFound):
		return http.StatusNotFound, "The requested resource was not found."
	case errors.Is(err, app_errors.ErrValidation):
		// Validation messages are already user-facing.
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, app_errors.ErrTurnInProgress):
		return http.StatusConflict, "A group chat turn is already in progress."
	case errors.Is(err, app_errors.ErrConflict):
		return http.StatusConflict, "A conflict occurred with the current state of the resource."
	case errors.Is(err, app_errors.ErrPermission):
		return http.StatusForbidden, "You do not have permission to perform this action."
	case errors.Is(err, app_errors.ErrTransport), errors.Is(err, app_errors.ErrUpstream):
		return http.StatusBadGateway, "The chat backend is unavailable."
	default:
		return http.StatusInternalServerError, "An unexpected internal server error occurred."
	}
}

// respondWithError is the centralized error handling function for the API layer.
func respondWithError(w http.ResponseWriter, err error) {
	statusCode, message := statusFor(err)

	// The detailed error is logged, the client only gets the generic message.
	slog.Warn("Responding with error", "status_code", statusCode, "client_message", message, "internal_error", err)

	respondWithJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondWithJSON marshals a payload to JSON and writes it with the given
// status code.
func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

// startStream writes the SSE headers. After this the status code is fixed
// at 200 and errors travel as `event: error` frames.
func startStream(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// sendStreamError sends a structured error message over an SSE stream.
func sendStreamError(w http.ResponseWriter, message string) {
	slog.Warn("Sending stream error to client", "message", message)
	jsonData, err := json.Marshal(ErrorResponse{Error: message})
	if err != nil {
		slog.Error("Failed to marshal stream error payload", "error", err)
		return
	}

	// `event: error` lets clients attach a dedicated listener.
	if _, err := fmt.Fprintf(w, "event: error\ndata: %s\n\n", string(jsonData)); err != nil {
		slog.Warn("Failed to write stream error, client might have disconnected", "error", err)
		return
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// writeStreamEvent marshals data and writes it as one SSE frame. A non-empty
// event name adds an `event:` line. It returns an error on write failure,
// which signals that the client has disconnected.
func writeStreamEvent(w http.ResponseWriter, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		// The stream is still usable, only this payload is dropped.
		slog.Error("Failed to marshal stream data to JSON", "error", err)
		return nil
	}

	if event != "" {
		_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
	} else {
		_, err = fmt.Fprintf(w, "data: %s\n\n", jsonData)
	}
	if err != nil {
		return fmt.Errorf("failed to write data to stream: %w", err)
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
