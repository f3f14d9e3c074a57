package model

import (
	"seekchat/config"
)

// Model holds the core application state shared by every front end.
type Model struct {
	// Core dependencies
	Config *config.Config
	Store  *Store
	Chat   *Chat

	// Application metadata
	Version string
}

// NewModel wires a Chat over store using assembler for every turn.
func NewModel(cfg *config.Config, store *Store, assembler Assembler, version string, opts ...ChatOption) *Model {
	return &Model{
		Config:  cfg,
		Store:   store,
		Chat:    NewChat(store, assembler, opts...),
		Version: version,
	}
}

// CurrentConversation returns the selected conversation and its key.
func (m *Model) CurrentConversation() (string, Conversation) {
	key := m.Store.Current()
	conv, err := m.Store.Conversation(key)
	if err != nil {
		config.DebugLog.Warn("current conversation missing", "key", key, "err", err)
	}
	return key, conv
}

// Close stops running turns and releases the store.
func (m *Model) Close() error {
	m.Chat.CancelAll()
	return m.Store.Close()
}
