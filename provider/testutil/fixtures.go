package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// DeltaFrame returns a "data: " frame carrying one content delta.
func DeltaFrame(content string) string {
	payload, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion.chunk",
		"model":  "deepseek-chat",
		"choices": []map[string]any{{
			"index": 0,
			"delta": map[string]string{"content": content},
		}},
	})
	return fmt.Sprintf("data: %s", payload)
}

const DoneFrame = "data: [DONE]"

// CapturedRequest is what an SSE test server received.
type CapturedRequest struct {
	Method  string
	Path    string
	Header  http.Header
	Body    []byte
	Decoded struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Stream bool `json:"stream"`
	}
}

// SSEServer serves the given frames, each followed by a blank line and a
// flush, and records the incoming request.
type SSEServer struct {
	*httptest.Server

	mu       sync.Mutex
	captured *CapturedRequest
}

func NewSSEServer(t *testing.T, frames ...string) *SSEServer {
	t.Helper()
	return NewSSEServerFunc(t, func(w http.ResponseWriter, r *http.Request) {
		WriteFrames(w, frames...)
	})
}

// NewSSEServerFunc records the request and then delegates to handler.
func NewSSEServerFunc(t *testing.T, handler http.HandlerFunc) *SSEServer {
	t.Helper()

	s := &SSEServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c := &CapturedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   body,
		}
		_ = json.Unmarshal(body, &c.Decoded)

		s.mu.Lock()
		s.captured = c
		s.mu.Unlock()

		handler(w, r)
	}))
	t.Cleanup(s.Close)

	return s
}

// Captured returns the last recorded request.
func (s *SSEServer) Captured() *CapturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captured
}

// Endpoint is the chat completions URL of the server.
func (s *SSEServer) Endpoint() string {
	return s.URL + "/chat/completions"
}

// WriteFrames writes SSE frames with the event-stream content type.
func WriteFrames(w http.ResponseWriter, frames ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, frame := range frames {
		fmt.Fprintf(w, "%s\n\n", frame)
		if flusher != nil {
			flusher.Flush()
		}
	}
}
