package storage

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Records reads and writes the two persisted records, the conversation set
// and the settings, as JSON through a Backend.
type Records struct {
	backend Backend
}

func NewRecords(backend Backend) *Records {
	return &Records{backend: backend}
}

// LoadConversations returns an empty set when nothing was saved yet.
func (r *Records) LoadConversations() (ConversationSet, error) {
	data, err := r.backend.Read(RecordChats)
	if errors.Is(err, ErrRecordNotFound) {
		return ConversationSet{}, nil
	}
	if err != nil {
		return nil, err
	}

	set := ConversationSet{}
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chats: %w", err)
	}

	for key, conv := range set {
		if conv.Messages == nil {
			conv.Messages = []Message{}
			set[key] = conv
		}
	}

	return set, nil
}

func (r *Records) SaveConversations(set ConversationSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to marshal chats: %w", err)
	}
	return r.backend.Write(RecordChats, data)
}

// LoadSettings returns DefaultSettings when nothing was saved yet.
func (r *Records) LoadSettings() (Settings, error) {
	data, err := r.backend.Read(RecordSettings)
	if errors.Is(err, ErrRecordNotFound) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, err
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	return settings, nil
}

func (r *Records) SaveSettings(settings Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return r.backend.Write(RecordSettings, data)
}

func (r *Records) Close() error {
	return r.backend.Close()
}
