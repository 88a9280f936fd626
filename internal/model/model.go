package model

import (
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Fixed attributes of a group-chat container message.
const (
	GroupChatProvider = "群聊模式"
	GroupChatModel    = "group-chat"
)

// Reply strategies for a group-chat turn.
const (
	StrategyExclusive  = "exclusive"
	StrategyDiscussion = "discussion"
	StrategySupplement = "supplement"
)

// Chat stores metadata about a conversation.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Performance holds the timing statistics reported for one provider response.
type Performance struct {
	FirstTokenTime  float64 `json:"first_token_time"`
	ResponseTime    float64 `json:"response_time"`
	TokensPerSecond float64 `json:"tokens_per_second"`
}

// TokenUsage holds token counts and costs reported for one provider response.
type TokenUsage struct {
	Input        int      `json:"input"`
	Output       int      `json:"output"`
	Total        int      `json:"total"`
	Cache        *int     `json:"cache,omitempty"`
	InputCost    *float64 `json:"input_cost,omitempty"`
	OutputCost   *float64 `json:"output_cost,omitempty"`
	CacheCost    *float64 `json:"cache_cost,omitempty"`
	TotalCostCNY *float64 `json:"total_cost_cny,omitempty"`
}

// ProviderResponse is one provider's completed answer inside a container message.
type ProviderResponse struct {
	Provider    string       `json:"provider"`
	AiName      string       `json:"aiName"`
	Content     string       `json:"content"`
	Model       string       `json:"model,omitempty"`
	Performance *Performance `json:"performance,omitempty"`
	Tokens      *TokenUsage  `json:"tokens,omitempty"`
	Index       *int         `json:"index,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// ChatMessage is a single entry of the conversation. A group-chat turn is
// represented by one container message (GroupChat == true) whose Content stays
// empty and whose Responses grow as providers finish.
type ChatMessage struct {
	ID          string             `json:"id"`
	Role        string             `json:"role"`
	Content     string             `json:"content"`
	Provider    string             `json:"provider,omitempty"`
	Model       string             `json:"model,omitempty"`
	AiName      string             `json:"aiName,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
	Responses   []ProviderResponse `json:"responses,omitempty"`
	GroupChat   bool               `json:"group_chat,omitempty"`
	Winner      string             `json:"winner,omitempty"`
	Complete    bool               `json:"complete,omitempty"`
	Error       string             `json:"error,omitempty"`
	Performance *Performance       `json:"performance,omitempty"`
	Tokens      *TokenUsage        `json:"tokens,omitempty"`
}

// Clone returns a copy of the message that shares no slices with the receiver.
func (m ChatMessage) Clone() ChatMessage {
	if m.Responses != nil {
		m.Responses = append([]ProviderResponse(nil), m.Responses...)
	}
	return m
}

// FullChat includes the chat metadata and all its messages.
type FullChat struct {
	Chat
	Messages []ChatMessage `json:"messages"`
}

// StreamResponse is the structure for a single chunk relayed to a
// single-provider chat client.
type StreamResponse struct {
	ChatID   string `json:"chat_id,omitempty"`
	Provider string `json:"provider,omitempty"`
	Content  string `json:"content"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// GroupSettings configures which providers take part in a group-chat turn
// and how they reply.
type GroupSettings struct {
	SelectedProviders []string `json:"selectedProviders" validate:"required,min=1,dive,required"`
	ReplyStrategy     string   `json:"replyStrategy" validate:"required,oneof=exclusive discussion supplement"`
	SystemPrompt      string   `json:"systemPrompt"`
}

// Provider describes an upstream AI provider as listed by the backend.
type Provider struct {
	Name        string         `json:"name"`
	DisplayName string         `json:"display_name,omitempty"`
	Models      []string       `json:"models,omitempty"`
	Config      ProviderConfig `json:"config"`
}

// ProviderConfig is the provider configuration exposed by the backend.
type ProviderConfig struct {
	Enabled      bool   `json:"enabled"`
	BaseURL      string `json:"base_url,omitempty"`
	DefaultModel string `json:"default_model,omitempty"`
}

// ProviderTestResult is the outcome of a provider connection test.
type ProviderTestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
