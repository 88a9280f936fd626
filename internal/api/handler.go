package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	app_errors "avatar-relay/internal/errors"
	"avatar-relay/internal/interfaces"
	"avatar-relay/internal/model"
	"avatar-relay/internal/notify"
	"avatar-relay/internal/service"
	"avatar-relay/internal/upstream"
)

// eventsBuffer is the per-client buffer of the notification feed. A client
// that falls further behind misses notifications.
const eventsBuffer = 256

// Response headers identifying the chat and turn of a group chat stream.
const (
	ChatIDHeader = "X-Chat-Id"
	TurnIDHeader = "X-Turn-Id"
)

// ChatHandler serves chats, group-chat turns and the in-memory message state.
type ChatHandler struct {
	chatService     interfaces.ChatService
	settingsService interfaces.SettingsService
}

func NewChatHandler(chatSvc interfaces.ChatService, settingsSvc interfaces.SettingsService) *ChatHandler {
	return &ChatHandler{chatService: chatSvc, settingsService: settingsSvc}
}

// GetGroupSettings godoc
// @Summary      Get group chat settings
// @Description  Returns the providers, reply strategy and system prompt used for group chat turns. Settings are created from defaults on first use.
// @Tags         Settings
// @Produce      json
// @Success      200  {object}  model.GroupSettings
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/group-settings [get]
func (h *ChatHandler) GetGroupSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsService.InitAndGet(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

// UpdateGroupSettings godoc
// @Summary      Update group chat settings
// @Description  Validates and stores the group chat settings. Every selected provider must be offered by the backend.
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Param        settings  body      model.GroupSettings  true  "Group chat settings"
// @Success      200       {object}  model.GroupSettings
// @Failure      400       {object}  ErrorResponse
// @Failure      500       {object}  ErrorResponse
// @Router       /v1/group-settings [post]
func (h *ChatHandler) UpdateGroupSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.GroupSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request payload", app_errors.ErrValidation))
		return
	}
	if err := validateRequest(&settings); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.settingsService.Save(r.Context(), &settings); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

// GetChats godoc
// @Summary      List chats
// @Description  Returns all chats, most recently updated first.
// @Tags         Chats
// @Produce      json
// @Success      200  {array}   model.Chat
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/chats [get]
func (h *ChatHandler) GetChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chatService.ListChats(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, chats)
}

// GetChat godoc
// @Summary      Get a chat
// @Description  Returns a chat with all of its messages, including group chat containers.
// @Tags         Chats
// @Produce      json
// @Param        chatID  path      string  true  "Chat ID"
// @Success      200     {object}  model.FullChat
// @Failure      404     {object}  ErrorResponse
// @Router       /v1/chats/{chatID} [get]
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	fullChat, err := h.chatService.GetFullChat(r.Context(), chatID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, fullChat)
}

// UpdateChatTitle godoc
// @Summary      Rename a chat
// @Tags         Chats
// @Accept       json
// @Produce      json
// @Param        chatID  path      string              true  "Chat ID"
// @Param        title   body      UpdateTitleRequest  true  "New title"
// @Success      200     {object}  StatusResponse
// @Failure      400     {object}  ErrorResponse
// @Failure      404     {object}  ErrorResponse
// @Router       /v1/chats/{chatID}/title [put]
func (h *ChatHandler) UpdateChatTitle(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var req UpdateTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request payload", app_errors.ErrValidation))
		return
	}
	if err := validateRequest(&req); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.chatService.UpdateChatTitle(r.Context(), chatID, req.Title); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// HandleDeleteChat godoc
// @Summary      Delete a chat
// @Description  Deletes a chat and all of its messages.
// @Tags         Chats
// @Produce      json
// @Param        chatID  path      string  true  "Chat ID"
// @Success      200     {object}  StatusResponse
// @Failure      404     {object}  ErrorResponse
// @Router       /v1/chats/{chatID} [delete]
func (h *ChatHandler) HandleDeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if err := h.chatService.DeleteChat(r.Context(), chatID); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// GetMessages godoc
// @Summary      Current messages
// @Description  Returns the in-memory message list of the running session.
// @Tags         Messages
// @Produce      json
// @Success      200  {array}  model.ChatMessage
// @Router       /v1/messages [get]
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	messages := h.chatService.Messages()
	if messages == nil {
		messages = []model.ChatMessage{}
	}
	respondWithJSON(w, http.StatusOK, messages)
}

// ClearMessages godoc
// @Summary      Clear messages
// @Description  Empties the in-memory message list. Stored chats are not touched.
// @Tags         Messages
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /v1/messages [delete]
func (h *ChatHandler) ClearMessages(w http.ResponseWriter, r *http.Request) {
	h.chatService.ClearMessages()
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// DeduplicateMessages godoc
// @Summary      Deduplicate messages
// @Description  Removes repeated user and assistant messages from the in-memory list. Group chat containers are kept.
// @Tags         Messages
// @Produce      json
// @Success      200  {object}  DeduplicateResponse
// @Router       /v1/messages/deduplicate [post]
func (h *ChatHandler) DeduplicateMessages(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, DeduplicateResponse{Changed: h.chatService.DeduplicateMessages()})
}

// HandleGroupMessage godoc
// @Summary      Send a group chat message
// @Description  Starts a group chat turn and streams its notifications as Server-Sent Events until groupChatComplete or groupChatError. A turn that is still running yields 409, an unreachable backend 502.
// @Tags         Group Chat
// @Accept       json
// @Produce      text/event-stream
// @Param        message  body      service.GroupMessageRequest  true  "Query and optional settings override"
// @Success      200      {object}  notify.Notification  "Stream of turn notifications"
// @Failure      400      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse
// @Failure      502      {object}  ErrorResponse
// @Router       /v1/group-chat/messages [post]
func (h *ChatHandler) HandleGroupMessage(w http.ResponseWriter, r *http.Request) {
	var req service.GroupMessageRequest
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

	// Status codes can only be chosen before the stream starts.
	turn, err := h.chatService.HandleGroupMessage(ctx, &req)
	if err != nil {
		respondWithError(w, err)
		return
	}
	defer turn.Close()

	w.Header().Set(ChatIDHeader, turn.ChatID)
	w.Header().Set(TurnIDHeader, turn.TurnID)
	startStream(w)
	slog.Info("Streaming group chat turn.", "chat_id", turn.ChatID, "turn_id", turn.TurnID)

	for {
		select {
		case <-r.Context().Done():
			slog.Info("Client disconnected during group chat turn.", "turn_id", turn.TurnID)
			return
		case n, ok := <-turn.Events():
			if !ok {
				return
			}
			if err := writeStreamEvent(w, "", n); err != nil {
				slog.Warn("Could not write to group chat stream, client likely disconnected.", "error", err)
				return
			}
			if n.Name == notify.GroupChatComplete || n.Name == notify.GroupChatError {
				slog.Info("Finished streaming group chat turn.", "turn_id", turn.TurnID, "outcome", n.Name)
				return
			}
		}
	}
}

// HandleStreamMessage godoc
// @Summary      Send a message to a single provider
// @Description  Streams the reply of one provider as Server-Sent Events. Errors are sent as `event: error` frames.
// @Tags         Chats
// @Accept       json
// @Produce      text/event-stream
// @Param        message  body      service.CreateMessageRequest  true  "Query and provider"
// @Success      200      {object}  model.StreamResponse  "Stream of content deltas"
// @Router       /v1/chats/messages [post]
func (h *ChatHandler) HandleStreamMessage(w http.ResponseWriter, r *http.Request) {
	startStream(w)

	var req service.CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Error decoding request body", "error", err)
		sendStreamError(w, "Invalid request body")
		return
	}
	if err := validateRequest(&req); err != nil {
		sendStreamError(w, err.Error())
		return
	}

	ctx := r.Context()
	if token := bearerToken(r); token != "" {
		ctx = upstream.WithToken(ctx, token)
	}

	streamChan := make(chan model.StreamResponse)
	go h.chatService.HandleMessage(ctx, &req, streamChan)

	for chunk := range streamChan {
		if r.Context().Err() != nil {
			slog.Info("Client disconnected.")
			break
		}
		if err := writeStreamEvent(w, "", chunk); err != nil {
			slog.Warn("Could not write to chat stream, client likely disconnected.", "error", err)
			break
		}
	}

	slog.Info("Finished streaming response.", "provider", req.Provider)
}

// HandleEvents godoc
// @Summary      Notification feed
// @Description  Streams every notification published on the bus as Server-Sent Events.
// @Tags         Group Chat
// @Produce      text/event-stream
// @Success      200  {object}  notify.Notification  "Stream of notifications"
// @Router       /v1/events [get]
func (h *ChatHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	sub := h.chatService.Subscribe(eventsBuffer, nil)
	defer sub.Close()

	startStream(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-sub.C():
			if !ok {
				return
			}
			if err := writeStreamEvent(w, "", n); err != nil {
				slog.Warn("Could not write to notification feed, client likely disconnected.", "error", err)
				return
			}
		}
	}
}

func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
