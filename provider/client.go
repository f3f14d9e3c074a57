package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"seekchat/config"
)

// StatusError is a non-2xx answer from the endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP error! status: %d: %s", e.StatusCode, e.Body)
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Client streams chat completions over plain HTTP.
type Client struct {
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds a whole exchange. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.httpClient
			hc.Timeout = d
			c.httpClient = &hc
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send performs one exchange, calling onPartial with the accumulated text
// after every non-empty delta. It blocks until the stream ends.
func (c *Client) Send(ctx context.Context, req Request, onPartial func(string)) Result {
	if onPartial == nil {
		onPartial = func(string) {}
	}
	return c.run(ctx, req, onPartial)
}

// Stream performs one exchange in the background. The channel yields one
// Event per partial text, in order, then a final Event, then closes. The
// caller must drain it.
func (c *Client) Stream(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, 16)

	go func() {
		defer close(events)

		res := c.run(ctx, req, func(partial string) {
			select {
			case events <- Event{Partial: partial}:
			case <-ctx.Done():
			}
		})
		events <- Event{Final: &res}
	}()

	return events
}

func (c *Client) run(ctx context.Context, req Request, onPartial func(string)) Result {
	settings := req.Settings.WithDefaults()

	body, err := json.Marshal(chatRequest{
		Model:    settings.Model,
		Messages: req.Messages(),
		Stream:   true,
	})
	if err != nil {
		return c.finish(ctx, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, settings.APIBase, bytes.NewReader(body))
	if err != nil {
		return c.finish(ctx, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+settings.APIKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	config.DebugLog.Debug("chat request", "url", settings.APIBase, "model", settings.Model, "messages", len(req.History)+2)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.finish(ctx, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return c.finish(ctx, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		})
	}

	var acc strings.Builder
	frames := NewFrameReader(resp.Body)

	for {
		if ctx.Err() != nil {
			return c.finish(ctx, ctx.Err())
		}

		payload, err := frames.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return c.finish(ctx, fmt.Errorf("failed to read stream: %w", err))
		}

		if IsDone(payload) {
			continue
		}

		delta, err := DecodeDelta(payload)
		if err != nil {
			config.DebugLog.Warn("skipping malformed stream frame", "frame", string(payload), "err", err)
			continue
		}
		if delta == "" {
			continue
		}

		acc.WriteString(delta)
		onPartial(acc.String())
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return c.finish(ctx, ctx.Err())
	}

	config.DebugLog.Debug("chat stream complete", "length", acc.Len())
	return Result{Text: acc.String(), Outcome: OutcomeCompleted}
}

// finish maps an aborted exchange to its outcome. Cancellation of ctx wins
// over whatever error the transport reported for it.
func (c *Client) finish(ctx context.Context, err error) Result {
	if errors.Is(ctx.Err(), context.Canceled) {
		config.DebugLog.Info("chat stream cancelled")
		return Result{Text: CancelledNotice, Outcome: OutcomeCancelled}
	}

	config.DebugLog.Error("chat stream failed", "err", err)
	return Result{Text: ErrorNotice, Outcome: OutcomeFailed, Err: err}
}
