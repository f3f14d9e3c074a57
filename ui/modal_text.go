package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"seekchat/provider"
)

type textModalMode int

const (
	textModalNone textModalMode = iota
	textModalSystemRole
	textModalEdit
)

// textModalState is the multi-line editor used for the system role of a new
// chat and for editing a message.
type textModalState struct {
	mode  textModalMode
	input textarea.Model

	// edit target
	key   string
	index int
}

func newTextModalState(keys keyMap) textModalState {
	ta := textarea.New()
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(8)
	ta.KeyMap.InsertNewline = keys.InsertNewline
	return textModalState{input: ta}
}

func (s *textModalState) setWidth(width int) {
	w := width - 20
	if w > 76 {
		w = 76
	}
	if w < 20 {
		w = 20
	}
	s.input.SetWidth(w)
}

func (a *AppView) openSystemRoleModal() {
	role := a.dataModel.Store.DefaultSystemRole()
	if role == "" {
		role = provider.DefaultSystemRole
	}
	a.textModal.mode = textModalSystemRole
	a.textModal.input.SetValue(role)
	a.textModal.input.Focus()
	a.textarea.Blur()
}

func (a *AppView) openEditModal(key string, index int, content string) {
	a.textModal.mode = textModalEdit
	a.textModal.key = key
	a.textModal.index = index
	a.textModal.input.SetValue(content)
	a.textModal.input.Focus()
	a.textarea.Blur()
}

func (a *AppView) closeTextModal() {
	a.textModal.mode = textModalNone
	a.textModal.input.Blur()
	a.textModal.input.Reset()
	a.textarea.Focus()
}

func (a AppView) handleTextModalKey(msg tea.KeyMsg) (AppView, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.closeTextModal()
		return a, nil
	case "enter":
		value := a.textModal.input.Value()
		if strings.TrimSpace(value) == "" {
			return a, nil
		}
		mode, key, index := a.textModal.mode, a.textModal.key, a.textModal.index
		a.closeTextModal()
		return a.submitTextModal(mode, key, index, value)
	}

	var cmd tea.Cmd
	a.textModal.input, cmd = a.textModal.input.Update(msg)
	return a, cmd
}

func (a AppView) submitTextModal(mode textModalMode, key string, index int, value string) (AppView, tea.Cmd) {
	switch mode {
	case textModalSystemRole:
		if _, err := a.dataModel.Store.CreateConversation(value); err != nil {
			a.showError("New chat", err)
			return a, nil
		}
		a.selectedMsg = -1
		a.updateViewportContent(true)
		return a, nil
	case textModalEdit:
		a.selectedMsg = -1
		return a, tea.Batch(a.dataModel.EditCmd(key, index, value), a.loadingSpinner.Tick)
	}
	return a, nil
}

func (a AppView) renderTextModal(width, height int) string {
	title := "New Chat: System Role"
	if a.textModal.mode == textModalEdit {
		title = "Edit Message"
	}

	lines := strings.Split(a.textModal.input.View(), "\n")
	for i := range lines {
		lines[i] = "  " + lines[i]
	}
	if a.textModal.mode == textModalEdit {
		lines = append(lines, "", DimStyle.Render("  Everything after this message is replaced by a new answer."))
	}

	footer := FormatFooter("Enter", "Save", a.keys.InsertNewline.Help().Key, "Newline", "Esc", "Cancel")
	return RenderThreeSectionModal(title, lines, footer, ModalTypeInfo, 80, width, height)
}
