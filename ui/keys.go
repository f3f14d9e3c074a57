package ui

import (
	"github.com/charmbracelet/bubbles/key"

	"seekchat/config"
)

type keyMap struct {
	Send          key.Binding
	InsertNewline key.Binding
	Stop          key.Binding
	NewChat       key.Binding
	Sidebar       key.Binding
	RemoveChat    key.Binding
	Settings      key.Binding
	SelectPrev    key.Binding
	SelectNext    key.Binding
	Regenerate    key.Binding
	EditMessage   key.Binding
	DeleteMessage key.Binding
	CopyMessage   key.Binding
	PageUp        key.Binding
	PageDown      key.Binding
	Help          key.Binding
	Quit          key.Binding
}

func newKeyMap(kb *config.KeyBindingsConfig) keyMap {
	if kb == nil {
		kb = config.DefaultKeybindings()
	}

	bind := func(action, desc string, extra ...string) key.Binding {
		keys := append([]string{kb.GetActionKey(action)}, extra...)
		return key.NewBinding(
			key.WithKeys(keys...),
			key.WithHelp(kb.DisplayActionKey(action), desc),
		)
	}

	return keyMap{
		Send:          bind("send", "Send"),
		InsertNewline: bind("insert_newline", "Newline", "ctrl+j"),
		Stop:          bind("stop", "Stop"),
		NewChat:       bind("new_chat", "New chat"),
		Sidebar:       bind("sidebar", "Chats"),
		RemoveChat:    bind("remove_chat", "Remove chat"),
		Settings:      bind("settings", "Settings"),
		SelectPrev:    bind("select_prev", "Previous message"),
		SelectNext:    bind("select_next", "Next message"),
		Regenerate:    bind("regenerate", "Regenerate"),
		EditMessage:   bind("edit_message", "Edit"),
		DeleteMessage: bind("delete_message", "Delete"),
		CopyMessage:   bind("copy_message", "Copy"),
		PageUp:        bind("page_up", "Page up"),
		PageDown:      bind("page_down", "Page down"),
		Help:          bind("help", "Help"),
		Quit:          bind("quit", "Quit"),
	}
}
