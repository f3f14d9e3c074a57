package model

import (
	"context"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"seekchat/storage"
)

// WaitForStoreChange blocks until the store reports a change.
func WaitForStoreChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return StoreChangedMsg{}
	}
}

// SubmitCmd runs a Submit turn in the background.
func (m *Model) SubmitCmd(key, text string) tea.Cmd {
	chat := m.Chat
	return func() tea.Msg {
		res, err := chat.Submit(context.Background(), key, text)
		return TurnDoneMsg{Key: key, Result: res, Err: err}
	}
}

// RegenerateCmd runs a Regenerate turn in the background.
func (m *Model) RegenerateCmd(key string, index int) tea.Cmd {
	chat := m.Chat
	return func() tea.Msg {
		res, err := chat.Regenerate(context.Background(), key, index)
		return TurnDoneMsg{Key: key, Result: res, Err: err}
	}
}

// EditCmd runs an Edit turn in the background.
func (m *Model) EditCmd(key string, index int, content string) tea.Cmd {
	chat := m.Chat
	return func() tea.Msg {
		res, err := chat.Edit(context.Background(), key, index, content)
		return TurnDoneMsg{Key: key, Result: res, Err: err}
	}
}

func (m *Model) SaveSettingsCmd(settings storage.Settings) tea.Cmd {
	store := m.Store
	return func() tea.Msg {
		return SettingsSavedMsg{Err: store.SaveSettings(settings)}
	}
}

// CopyToClipboardCmd copies text to the system clipboard.
func CopyToClipboardCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return ClipboardCopiedMsg{Err: clipboard.WriteAll(text)}
	}
}
