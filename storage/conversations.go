package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// DefaultChatName is the display name of a chat until its first message.
	DefaultChatName = "Untitled Chat"

	// MaxChatNameLength bounds names derived from the first user message.
	MaxChatNameLength = 30

	DefaultAPIBase = "https://api.deepseek.com/chat/completions"
	DefaultModel   = "deepseek-chat"
)

// Message represents a chat message
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is one chat: its ordered messages plus metadata.
type Conversation struct {
	Messages   []Message `json:"messages"`
	CreatedAt  time.Time `json:"createdAt"`
	Name       string    `json:"name"`
	SystemRole string    `json:"systemRole,omitempty"`
}

// Clone returns a copy whose message slice does not alias c's.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

// ConversationSet maps conversation keys to conversations.
type ConversationSet map[string]Conversation

// Clone copies the map. Conversations are values, message slices are shared.
func (s ConversationSet) Clone() ConversationSet {
	out := make(ConversationSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ConversationMetadata is a lightweight view of a conversation for listing
type ConversationMetadata struct {
	Key          string
	Name         string
	CreatedAt    time.Time
	MessageCount int
}

// List returns metadata for every conversation, newest first.
func (s ConversationSet) List() []ConversationMetadata {
	list := make([]ConversationMetadata, 0, len(s))
	for key, conv := range s {
		list = append(list, ConversationMetadata{
			Key:          key,
			Name:         conv.Name,
			CreatedAt:    conv.CreatedAt,
			MessageCount: len(conv.Messages),
		})
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].Key > list[j].Key
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	return list
}

// Newest returns the key of the most recently created conversation.
func (s ConversationSet) Newest() (string, bool) {
	list := s.List()
	if len(list) == 0 {
		return "", false
	}
	return list[0].Key, true
}

// Settings is the persisted endpoint configuration.
type Settings struct {
	APIKey  string `json:"apiKey"`
	APIBase string `json:"apiBase"`
	Model   string `json:"model"`
}

func DefaultSettings() Settings {
	return Settings{
		APIBase: DefaultAPIBase,
		Model:   DefaultModel,
	}
}

// WithDefaults fills empty base URL and model with the defaults.
func (s Settings) WithDefaults() Settings {
	if s.APIBase == "" {
		s.APIBase = DefaultAPIBase
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
	return s
}

// NewConversationKey returns a unique key that sorts by creation time.
func NewConversationKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate conversation key: %w", err)
	}
	return id.String(), nil
}

// GenerateChatName derives a chat name from the first user message: its first
// MaxChatNameLength characters.
func GenerateChatName(firstMessage string) string {
	runes := []rune(firstMessage)
	if len(runes) > MaxChatNameLength {
		runes = runes[:MaxChatNameLength]
	}
	return string(runes)
}
