package model

import (
	"seekchat/provider"
	"seekchat/storage"
)

// Conversation is re-exported so front ends need not import storage for it.
type Conversation = storage.Conversation

// StoreChangedMsg is sent after any store mutation.
type StoreChangedMsg struct{}

// TurnDoneMsg is sent when a Submit, Regenerate or Edit returns.
type TurnDoneMsg struct {
	Key    string
	Result provider.Result
	Err    error
}

type SettingsSavedMsg struct {
	Err error
}

type ClipboardCopiedMsg struct {
	Err error
}
