// Package provider performs the streamed chat-completion exchange.
//
// A Client sends one request to an OpenAI-compatible /chat/completions
// endpoint (DeepSeek by default) and turns the server-sent-events body into a
// sequence of accumulated partial texts followed by exactly one final Result.
//
// # Outcomes
//
// Failures never surface as Go errors. Every exchange ends in one of three
// outcomes and always carries displayable text:
//   - OutcomeCompleted: the text is everything the stream delivered
//   - OutcomeCancelled: the context was cancelled, the text is CancelledNotice
//   - OutcomeFailed: transport error or non-2xx status, the text is ErrorNotice
//
// # Usage
//
//	client := provider.NewClient()
//	res := client.Send(ctx, provider.Request{
//	    Settings: settings,
//	    History:  history,
//	    UserText: "hello",
//	}, func(partial string) {
//	    fmt.Print(partial)
//	})
package provider

import (
	"seekchat/storage"
)

const (
	// DefaultSystemRole is sent when the conversation has no system role.
	DefaultSystemRole = "You are a helpful assistant."

	CancelledNotice = "Response generation was cancelled."
	ErrorNotice     = "Sorry, there was an error processing your request."
)

// Outcome is how a streamed exchange ended.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeCancelled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Message is one role/content pair of the outgoing history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one exchange.
type Request struct {
	Settings   storage.Settings
	SystemRole string
	History    []Message
	UserText   string
}

// Messages returns the wire message list: system, history, then the new user turn.
func (r Request) Messages() []Message {
	role := r.SystemRole
	if role == "" {
		role = DefaultSystemRole
	}

	messages := make([]Message, 0, len(r.History)+2)
	messages = append(messages, Message{Role: "system", Content: role})
	messages = append(messages, r.History...)
	messages = append(messages, Message{Role: storage.RoleUser, Content: r.UserText})
	return messages
}

// Result is the terminal state of an exchange.
type Result struct {
	Text    string
	Outcome Outcome
	// Err is the underlying cause of OutcomeFailed, kept for logging only.
	Err error
}

// Event is one step of a stream. Every event but the last carries the
// accumulated text so far; the last one carries Final.
type Event struct {
	Partial string
	Final   *Result
}

// ConvertMessages maps stored messages to wire messages.
func ConvertMessages(messages []storage.Message) []Message {
	result := make([]Message, len(messages))
	for i, msg := range messages {
		role := msg.Role
		if role != storage.RoleUser {
			role = storage.RoleAssistant
		}
		result[i] = Message{
			Role:    role,
			Content: msg.Content,
		}
	}
	return result
}
