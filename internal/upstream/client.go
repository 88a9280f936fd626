package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"avatar-relay/internal/model"
	"avatar-relay/internal/stream"
)

// Client defines the interface for talking to the multi-provider chat backend.
type Client interface {
	StreamGroupChat(ctx context.Context, req *GroupChatRequest) (*stream.Reader, error)
	StreamChat(ctx context.Context, req *ChatRequest) (*stream.Reader, error)
	ListProviders(ctx context.Context) ([]model.Provider, error)
	TestProvider(ctx context.Context, provider string) (*model.ProviderTestResult, error)
	Ping(ctx context.Context) error
}

// GroupChatRequest is the body of a group-chat turn.
type GroupChatRequest struct {
	Query         string              `json:"query"`
	ChatMode      string              `json:"chat_mode"`
	GroupSettings model.GroupSettings `json:"group_settings"`
}

// ChatRequest is the body of a single-provider turn.
type ChatRequest struct {
	Query    string         `json:"query"`
	Provider string         `json:"provider"`
	Config   map[string]any `json:"config,omitempty"`
}

type providersResponse struct {
	Success   bool             `json:"success"`
	Providers []model.Provider `json:"providers"`
	Error     string           `json:"error,omitempty"`
}

type tokenKey struct{}

// WithToken returns a context carrying a bearer token that overrides the
// client's configured one for requests made with it.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

type httpClient struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewClient returns a Client for the backend at baseURL. token may be empty.
func NewClient(baseURL, token string) Client {
	return &httpClient{
		client:  &http.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

func (c *httpClient) headers(ctx context.Context) http.Header {
	h := http.Header{}
	h.Set("Cache-Control", "no-cache")
	token := c.token
	if t, ok := ctx.Value(tokenKey{}).(string); ok && t != "" {
		token = t
	}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func (c *httpClient) StreamGroupChat(ctx context.Context, req *GroupChatRequest) (*stream.Reader, error) {
	body := *req
	body.ChatMode = "group"
	return stream.Open(ctx, c.client, stream.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/api/chat/stream",
		Header: c.headers(ctx),
		Body:   body,
	})
}

func (c *httpClient) StreamChat(ctx context.Context, req *ChatRequest) (*stream.Reader, error) {
	return stream.Open(ctx, c.client, stream.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/api/chat/stream",
		Header: c.headers(ctx),
		Body:   req,
	})
}

// ListProviders returns the providers the backend reports as enabled.
func (c *httpClient) ListProviders(ctx context.Context) ([]model.Provider, error) {
	var resp providersResponse
	if err := c.doJSON(ctx, http.MethodGet, "/providers", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("backend could not list providers: %s", resp.Error)
	}

	enabled := make([]model.Provider, 0, len(resp.Providers))
	for _, p := range resp.Providers {
		if p.Config.Enabled {
			enabled = append(enabled, p)
		}
	}
	return enabled, nil
}

func (c *httpClient) TestProvider(ctx context.Context, provider string) (*model.ProviderTestResult, error) {
	var result model.ProviderTestResult
	body := map[string]string{"provider": provider}
	if err := c.doJSON(ctx, http.MethodPost, "/providers/test", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Ping checks that the backend answers at all.
func (c *httpClient) Ping(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/providers", nil, nil)
}

func (c *httpClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("could not marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("could not create http request: %w", err)
	}
	httpReq.Header = c.headers(ctx)
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return &stream.TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &stream.TransportError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not decode response: %w", err)
	}
	return nil
}
