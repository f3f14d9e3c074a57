package ui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"seekchat/config"
	appmodel "seekchat/model"
	"seekchat/storage"
)

func (a AppView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.layout()
		a.updateViewportContent(true)
		return a, nil

	case appmodel.StoreChangedMsg:
		if a.sidebar.visible {
			a.refreshSidebar()
		}
		a.clampSelection()
		a.updateViewportContent(a.selectedMsg < 0)
		return a, appmodel.WaitForStoreChange(a.changes)

	case appmodel.TurnDoneMsg:
		a.updateViewportContent(a.selectedMsg < 0)
		if msg.Err != nil && !errors.Is(msg.Err, appmodel.ErrEmptyMessage) {
			a.showError("Chat", msg.Err)
		}
		return a, nil

	case appmodel.SettingsSavedMsg:
		a.handleSettingsSaved(msg)
		return a, nil

	case appmodel.ClipboardCopiedMsg:
		if msg.Err != nil {
			a.showError("Clipboard", msg.Err)
			return a, nil
		}
		a.status = "Copied to clipboard"
		return a, nil

	case spinner.TickMsg:
		if !a.dataModel.Chat.Busy(a.dataModel.Store.Current()) {
			return a, nil
		}
		var cmd tea.Cmd
		a.loadingSpinner, cmd = a.loadingSpinner.Update(msg)
		a.updateViewportContent(a.selectedMsg < 0)
		return a, cmd

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	var cmd tea.Cmd
	a.textarea, cmd = a.textarea.Update(msg)
	return a, cmd
}

func (a AppView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.status = ""

	if a.errorMsg != "" {
		switch msg.String() {
		case "enter", "esc":
			a.errorTitle = ""
			a.errorMsg = ""
		}
		return a, nil
	}

	if a.confirmRemove.Active {
		switch msg.String() {
		case "y", "Y":
			a.confirmRemove = ConfirmationState{}
			if err := a.dataModel.Chat.RemoveConversation(a.removeKey); err != nil {
				a.showError("Remove chat", err)
			}
			a.removeKey = ""
			a.selectedMsg = -1
			if a.sidebar.visible {
				a.refreshSidebar()
			}
			a.updateViewportContent(true)
		case "n", "N", "esc":
			a.confirmRemove = ConfirmationState{}
			a.removeKey = ""
		}
		return a, nil
	}

	if a.showHelp {
		if msg.String() == "esc" || a.keyMatches(msg, a.keys.Help) {
			a.showHelp = false
		}
		return a, nil
	}

	if a.settings.active {
		return a.handleSettingsKey(msg)
	}

	if a.textModal.mode != textModalNone {
		return a.handleTextModalKey(msg)
	}

	if a.sidebar.visible {
		return a.handleSidebarKey(msg)
	}

	return a.handleMainKey(msg)
}

func (a AppView) handleMainKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := a.keys
	chatKey, conv := a.dataModel.CurrentConversation()
	busy := a.dataModel.Chat.Busy(chatKey)

	switch {
	case a.keyMatches(msg, k.Quit):
		a.Close()
		return a, tea.Quit

	case a.keyMatches(msg, k.Stop):
		if busy {
			a.dataModel.Chat.Cancel(chatKey)
			return a, nil
		}
		a.selectedMsg = -1
		a.updateViewportContent(true)
		return a, nil

	case a.keyMatches(msg, k.Send):
		if busy {
			return a, nil
		}
		text := a.textarea.Value()
		if strings.TrimSpace(text) == "" {
			return a, nil
		}
		a.textarea.Reset()
		a.selectedMsg = -1
		return a, tea.Batch(a.dataModel.SubmitCmd(chatKey, text), a.loadingSpinner.Tick)

	case a.keyMatches(msg, k.NewChat):
		a.openSystemRoleModal()
		return a, nil

	case a.keyMatches(msg, k.Sidebar):
		a.openSidebar()
		return a, nil

	case a.keyMatches(msg, k.Settings):
		a.openSettings()
		return a, nil

	case a.keyMatches(msg, k.Help):
		a.showHelp = true
		return a, nil

	case a.keyMatches(msg, k.RemoveChat):
		a.askRemove(storage.ConversationMetadata{Key: chatKey, Name: conv.Name, MessageCount: len(conv.Messages)})
		return a, nil

	case a.keyMatches(msg, k.SelectPrev):
		a.moveSelection(-1, len(conv.Messages))
		return a, nil

	case a.keyMatches(msg, k.SelectNext):
		a.moveSelection(1, len(conv.Messages))
		return a, nil

	case a.keyMatches(msg, k.Regenerate):
		if busy {
			return a, nil
		}
		target := regenerateTarget(conv.Messages, a.selectedMsg)
		if target < 0 {
			a.status = "Nothing to regenerate"
			return a, nil
		}
		a.selectedMsg = -1
		return a, tea.Batch(a.dataModel.RegenerateCmd(chatKey, target), a.loadingSpinner.Tick)

	case a.keyMatches(msg, k.EditMessage):
		if busy || a.selectedMsg < 0 || a.selectedMsg >= len(conv.Messages) {
			return a, nil
		}
		selected := conv.Messages[a.selectedMsg]
		if selected.Role != storage.RoleUser {
			a.status = "Only your own messages can be edited"
			return a, nil
		}
		a.openEditModal(chatKey, a.selectedMsg, selected.Content)
		return a, nil

	case a.keyMatches(msg, k.DeleteMessage):
		if a.selectedMsg < 0 {
			return a, nil
		}
		if err := a.dataModel.Chat.Delete(chatKey, a.selectedMsg); err != nil {
			a.showError("Delete message", err)
			return a, nil
		}
		a.clampSelection()
		a.updateViewportContent(false)
		return a, nil

	case a.keyMatches(msg, k.CopyMessage):
		text := copyTarget(conv.Messages, a.selectedMsg)
		if text == "" {
			return a, nil
		}
		return a, appmodel.CopyToClipboardCmd(text)

	case a.keyMatches(msg, k.PageUp), a.keyMatches(msg, k.PageDown):
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.textarea, cmd = a.textarea.Update(msg)
	return a, cmd
}

func (a AppView) keyMatches(msg tea.KeyMsg, binding key.Binding) bool {
	return key.Matches(msg, binding)
}

func (a *AppView) showError(title string, err error) {
	config.DebugLog.Error("ui error", "title", title, "error", err)
	a.errorTitle = title
	a.errorMsg = err.Error()
}

func (a *AppView) askRemove(meta storage.ConversationMetadata) {
	a.removeKey = meta.Key
	a.confirmRemove = ConfirmationState{
		Active:  true,
		Title:   "Remove chat?",
		Message: "\"" + meta.Name + "\" and its messages will be deleted.",
	}
}

func (a *AppView) moveSelection(delta, count int) {
	if count == 0 {
		a.selectedMsg = -1
		return
	}
	switch {
	case a.selectedMsg < 0 && delta < 0:
		a.selectedMsg = count - 1
	case a.selectedMsg < 0:
		a.selectedMsg = 0
	default:
		a.selectedMsg += delta
	}
	if a.selectedMsg < 0 {
		a.selectedMsg = 0
	}
	if a.selectedMsg >= count {
		a.selectedMsg = count - 1
	}
	a.updateViewportContent(false)
}

func (a *AppView) clampSelection() {
	_, conv := a.dataModel.CurrentConversation()
	if a.selectedMsg >= len(conv.Messages) {
		a.selectedMsg = len(conv.Messages) - 1
	}
}

// regenerateTarget is the user message at or before selected, or the last
// user message when nothing is selected. -1 when there is none.
func regenerateTarget(messages []storage.Message, selected int) int {
	start := len(messages) - 1
	if selected >= 0 && selected < len(messages) {
		start = selected
	}
	for i := start; i >= 0; i-- {
		if messages[i].Role == storage.RoleUser {
			return i
		}
	}
	return -1
}

// copyTarget is the selected message, or the last assistant answer.
func copyTarget(messages []storage.Message, selected int) string {
	if selected >= 0 && selected < len(messages) {
		return messages[selected].Content
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == storage.RoleAssistant {
			return messages[i].Content
		}
	}
	return ""
}
