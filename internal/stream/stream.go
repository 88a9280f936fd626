// Package stream reads Server-Sent Events payloads from an upstream HTTP
// response. Only `data: ` lines are forwarded; everything else on the wire
// (comments, `event:` fields, blank separators) is dropped.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	app_errors "avatar-relay/internal/errors"
)

const (
	dataPrefix = "data: "
	// maxErrorBody bounds how much of a non-2xx body is kept for diagnostics.
	maxErrorBody = 4 << 10
)

// Request describes the streaming HTTP request to issue. Body, when not nil,
// is marshaled as JSON.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   any
}

// TransportError is returned when the stream cannot be opened or breaks while
// being read. StatusCode is set when the server answered with a non-2xx status.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("HTTP error! status: %d: %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("stream transport failed: %v", e.Err)
	default:
		return "stream transport failed"
	}
}

// Unwrap exposes both the ErrTransport sentinel and the underlying cause.
func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{app_errors.ErrTransport}
	}
	return []error{app_errors.ErrTransport, e.Err}
}

// Reader yields the payloads of `data: ` lines in arrival order.
// It is not safe for concurrent use, except for Close.
type Reader struct {
	body      io.ReadCloser
	buf       *bufio.Reader
	err       error
	closeOnce sync.Once
}

// Open issues the request with the caller's context and returns a Reader over
// the response body. Non-2xx responses are reported as *TransportError before
// any line is read.
func Open(ctx context.Context, client *http.Client, req Request) (*Reader, error) {
	if client == nil {
		client = http.DefaultClient
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stream request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	return NewReader(resp.Body), nil
}

// NewReader wraps an already open body. Bytes are decoded as UTF-8
// incrementally, so a multi-byte sequence split across reads is reassembled;
// invalid sequences become U+FFFD.
func NewReader(body io.ReadCloser) *Reader {
	decoded := transform.NewReader(body, unicode.UTF8.NewDecoder())
	return &Reader{
		body: body,
		buf:  bufio.NewReader(decoded),
	}
}

// Next returns the next non-empty payload with the `data: ` prefix removed and
// surrounding whitespace trimmed. It returns io.EOF once the body is exhausted
// and a *TransportError if reading fails. Errors are sticky.
func (r *Reader) Next() (string, error) {
	for {
		if r.err != nil {
			return "", r.err
		}

		line, err := r.buf.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.err = io.EOF
			} else {
				r.err = &TransportError{Err: err}
			}
		}

		// A final line without a newline is still processed.
		if payload, ok := parseLine(line); ok {
			return payload, nil
		}
	}
}

// TryNext returns the next payload only if a complete line has already been
// received. It never blocks on the network.
func (r *Reader) TryNext() (string, bool) {
	for r.err == nil {
		n := r.buf.Buffered()
		if n == 0 {
			return "", false
		}
		peek, err := r.buf.Peek(n)
		if err != nil || bytes.IndexByte(peek, '\n') < 0 {
			return "", false
		}
		line, err := r.buf.ReadString('\n')
		if err != nil {
			return "", false
		}
		if payload, ok := parseLine(line); ok {
			return payload, true
		}
	}
	return "", false
}

// Buffered reports how many decoded bytes were already received but not
// consumed by Next.
func (r *Reader) Buffered() int {
	if r.err != nil {
		return 0
	}
	return r.buf.Buffered()
}

// Close releases the underlying body. It may be called more than once and
// from another goroutine to abort a blocked Next.
func (r *Reader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.body.Close()
	})
	return err
}

func parseLine(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	payload, found := strings.CutPrefix(line, dataPrefix)
	if !found {
		return "", false
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", false
	}
	return payload, true
}
