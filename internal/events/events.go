// Package events turns raw stream payloads into a closed set of typed events.
// Field-name variants used by different backend versions (aiName/ai_name,
// fullContent/full_content) are normalized here and nowhere else.
package events

import (
	"encoding/json"
	"strings"

	"avatar-relay/internal/model"
)

// Kind names an event variant.
type Kind string

const (
	KindStart            Kind = "start"
	KindProviderThinking Kind = "provider_thinking"
	KindProviderStart    Kind = "provider_start"
	KindContent          Kind = "content"
	KindProviderEnd      Kind = "provider_end"
	KindWinner           Kind = "winner"
	KindProviderError    Kind = "provider_error"
	KindEnd              Kind = "end"
	KindError            Kind = "error"
)

// DoneSentinel is the legacy end-of-stream payload.
const DoneSentinel = "[DONE]"

// Event is implemented by exactly the variants declared in this package.
type Event interface {
	Kind() Kind
	isEvent()
}

// Start opens a turn.
type Start struct {
	Mode string
}

// ProviderThinking reports that a provider is preparing its answer.
type ProviderThinking struct {
	Provider string
	AiName   string
	Index    *int
	Total    int
}

// ProviderStart announces that a provider begins streaming.
type ProviderStart struct {
	Provider string
	AiName   string
	Index    *int
	Total    int
}

// Content carries a content delta. Raw is set when the payload was not JSON
// and was passed through verbatim.
type Content struct {
	Content     string
	FullContent string
	Provider    string
	AiName      string
	Index       *int
	Raw         bool
}

// ProviderEnd carries a provider's final answer and statistics.
type ProviderEnd struct {
	Provider    string
	AiName      string
	Content     string
	Model       string
	Performance *model.Performance
	Tokens      *model.TokenUsage
	Index       *int
}

// Winner names the selected provider of an exclusive turn.
type Winner struct {
	Provider string
	AiName   string
}

// ProviderError reports a failure of a single provider.
type ProviderError struct {
	Provider string
	AiName   string
	Message  string
}

// End closes the turn.
type End struct{}

// Error reports a failure of the whole turn.
type Error struct {
	Message string
}

func (Start) Kind() Kind            { return KindStart }
func (ProviderThinking) Kind() Kind { return KindProviderThinking }
func (ProviderStart) Kind() Kind    { return KindProviderStart }
func (Content) Kind() Kind          { return KindContent }
func (ProviderEnd) Kind() Kind      { return KindProviderEnd }
func (Winner) Kind() Kind           { return KindWinner }
func (ProviderError) Kind() Kind    { return KindProviderError }
func (End) Kind() Kind              { return KindEnd }
func (Error) Kind() Kind            { return KindError }

func (Start) isEvent()            {}
func (ProviderThinking) isEvent() {}
func (ProviderStart) isEvent()    {}
func (Content) isEvent()          {}
func (ProviderEnd) isEvent()      {}
func (Winner) isEvent()           {}
func (ProviderError) isEvent()    {}
func (End) isEvent()              {}
func (Error) isEvent()            {}

// wireEvent is the union of every field the backend may send. Numeric and
// statistics fields stay raw so a badly typed value drops only that field.
type wireEvent struct {
	Type             string          `json:"type"`
	Mode             string          `json:"mode"`
	Provider         string          `json:"provider"`
	AiName           string          `json:"aiName"`
	AiNameSnake      string          `json:"ai_name"`
	Content          *string         `json:"content"`
	FullContent      string          `json:"fullContent"`
	FullContentSnake string          `json:"full_content"`
	Model            string          `json:"model"`
	Index            json.RawMessage `json:"index"`
	Total            json.RawMessage `json:"total"`
	Performance      json.RawMessage `json:"performance"`
	Tokens           json.RawMessage `json:"tokens"`
	Winner           string          `json:"winner"`
	Error            string          `json:"error"`
	Message          string          `json:"message"`
	Done             bool            `json:"done"`
}

// Classify maps one payload to an event. The boolean is false when the payload
// carries nothing the pipeline acts on; Classify never fails.
func Classify(payload string) (Event, bool) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, false
	}
	if payload == DoneSentinel {
		return End{}, true
	}
	if !json.Valid([]byte(payload)) {
		return Content{Content: payload, Raw: true}, true
	}

	var w wireEvent
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		// Valid JSON that is not an object: nothing to act on.
		return nil, false
	}

	aiName := firstNonEmpty(w.AiName, w.AiNameSnake, w.Provider)
	content := ""
	if w.Content != nil {
		content = *w.Content
	}
	index := decodeIndex(w.Index)
	total, _ := decodeInt(w.Total)

	switch w.Type {
	case "start":
		return Start{Mode: w.Mode}, true
	case "provider_thinking":
		return ProviderThinking{Provider: w.Provider, AiName: aiName, Index: index, Total: total}, true
	case "provider_start":
		return ProviderStart{Provider: w.Provider, AiName: aiName, Index: index, Total: total}, true
	case "content":
		return Content{
			Content:     content,
			FullContent: firstNonEmpty(w.FullContent, w.FullContentSnake),
			Provider:    w.Provider,
			AiName:      aiName,
			Index:       index,
		}, true
	case "provider_end", "groupChatProviderEnd":
		return ProviderEnd{
			Provider:    w.Provider,
			AiName:      aiName,
			Content:     firstNonEmpty(content, w.FullContent, w.FullContentSnake),
			Model:       w.Model,
			Performance: decodePerformance(w.Performance),
			Tokens:      decodeTokens(w.Tokens),
			Index:       index,
		}, true
	case "winner":
		provider := firstNonEmpty(w.Winner, w.Provider)
		return Winner{Provider: provider, AiName: firstNonEmpty(w.AiName, w.AiNameSnake, provider)}, true
	case "provider_error":
		return ProviderError{Provider: w.Provider, AiName: aiName, Message: firstNonEmpty(w.Error, w.Message)}, true
	case "end":
		return End{}, true
	case "error":
		return Error{Message: firstNonEmpty(w.Error, w.Message, content, "unknown stream error")}, true
	}

	// Untyped or unknown payloads: honour the legacy done flag, and treat
	// anything carrying content as a content delta.
	if w.Done {
		return End{}, true
	}
	if w.Content != nil {
		return Content{
			Content:     content,
			FullContent: firstNonEmpty(w.FullContent, w.FullContentSnake),
			Provider:    w.Provider,
			AiName:      aiName,
			Index:       index,
		}, true
	}
	return nil, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func decodeIndex(raw json.RawMessage) *int {
	if v, ok := decodeInt(raw); ok {
		return &v
	}
	return nil
}

// decodeInt accepts integers, integral floats such as 12.0 and numeric
// strings. Anything else reports false.
func decodeInt(raw json.RawMessage) (int, bool) {
	f, ok := decodeFloat(raw)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func decodeFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

func decodeFloatPtr(raw json.RawMessage) *float64 {
	if f, ok := decodeFloat(raw); ok {
		return &f
	}
	return nil
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func decodePerformance(raw json.RawMessage) *model.Performance {
	fields, ok := decodeObject(raw)
	if !ok {
		return nil
	}
	var p model.Performance
	p.FirstTokenTime, _ = decodeFloat(fields["first_token_time"])
	p.ResponseTime, _ = decodeFloat(fields["response_time"])
	p.TokensPerSecond, _ = decodeFloat(fields["tokens_per_second"])
	return &p
}

func decodeTokens(raw json.RawMessage) *model.TokenUsage {
	fields, ok := decodeObject(raw)
	if !ok {
		return nil
	}
	var t model.TokenUsage
	t.Input, _ = decodeInt(fields["input"])
	t.Output, _ = decodeInt(fields["output"])
	t.Total, _ = decodeInt(fields["total"])
	if v, ok := decodeInt(fields["cache"]); ok {
		t.Cache = &v
	}
	t.InputCost = decodeFloatPtr(fields["input_cost"])
	t.OutputCost = decodeFloatPtr(fields["output_cost"])
	t.CacheCost = decodeFloatPtr(fields["cache_cost"])
	t.TotalCostCNY = decodeFloatPtr(fields["total_cost_cny"])
	return &t
}
