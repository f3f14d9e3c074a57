package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"seekchat/storage"
)

type sidebarState struct {
	visible bool
	filter  textinput.Model
	cursor  int
	matches []storage.ConversationMatch
}

func newSidebarState() sidebarState {
	filter := textinput.New()
	filter.Prompt = "Filter: "
	filter.CharLimit = 64
	return sidebarState{filter: filter}
}

func (a *AppView) openSidebar() {
	a.sidebar.visible = true
	a.sidebar.filter.SetValue("")
	a.sidebar.filter.Focus()
	a.textarea.Blur()
	a.refreshSidebar()
	a.sidebar.cursor = 0
	current := a.dataModel.Store.Current()
	for i, m := range a.sidebar.matches {
		if m.Key == current {
			a.sidebar.cursor = i
			break
		}
	}
	a.layout()
}

func (a *AppView) closeSidebar() {
	a.sidebar.visible = false
	a.sidebar.filter.Blur()
	a.textarea.Focus()
	a.layout()
}

func (a *AppView) refreshSidebar() {
	a.sidebar.matches = a.dataModel.Store.Search(a.sidebar.filter.Value())
	if a.sidebar.cursor >= len(a.sidebar.matches) {
		a.sidebar.cursor = len(a.sidebar.matches) - 1
	}
	if a.sidebar.cursor < 0 {
		a.sidebar.cursor = 0
	}
}

func (a AppView) handleSidebarKey(msg tea.KeyMsg) (AppView, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.closeSidebar()
		return a, nil
	case "up", "ctrl+p":
		if a.sidebar.cursor > 0 {
			a.sidebar.cursor--
		}
		return a, nil
	case "down", "ctrl+n":
		if a.sidebar.cursor < len(a.sidebar.matches)-1 {
			a.sidebar.cursor++
		}
		return a, nil
	case "enter":
		if len(a.sidebar.matches) == 0 {
			return a, nil
		}
		key := a.sidebar.matches[a.sidebar.cursor].Key
		if err := a.dataModel.Store.SelectConversation(key); err != nil {
			a.showError("Select chat", err)
			return a, nil
		}
		a.selectedMsg = -1
		a.closeSidebar()
		a.updateViewportContent(true)
		return a, nil
	}

	if a.keyMatches(msg, a.keys.Sidebar) {
		a.closeSidebar()
		return a, nil
	}
	if a.keyMatches(msg, a.keys.RemoveChat) {
		if len(a.sidebar.matches) > 0 {
			a.askRemove(a.sidebar.matches[a.sidebar.cursor].ConversationMetadata)
		}
		return a, nil
	}

	var cmd tea.Cmd
	before := a.sidebar.filter.Value()
	a.sidebar.filter, cmd = a.sidebar.filter.Update(msg)
	if a.sidebar.filter.Value() != before {
		a.sidebar.cursor = 0
		a.refreshSidebar()
	}
	return a, cmd
}

func (a AppView) renderSidebar(width, height int) string {
	current := a.dataModel.Store.Current()

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Chats"))
	b.WriteString("\n")
	b.WriteString(a.sidebar.filter.View())
	b.WriteString("\n\n")

	if len(a.sidebar.matches) == 0 {
		b.WriteString(DimStyle.Render("No matching chats"))
	}

	// rows available below title, filter and the blank line
	rows := height - 4
	start := 0
	if a.sidebar.cursor >= rows {
		start = a.sidebar.cursor - rows + 1
	}

	for i := start; i < len(a.sidebar.matches) && i < start+rows; i++ {
		m := a.sidebar.matches[i]
		marker := "  "
		if m.Key == current {
			marker = "• "
		}
		line := marker + truncateTitle(m.Name, width-runewidth.StringWidth(marker)-4) + DimStyle.Render(fmt.Sprintf(" %d", m.MessageCount))
		if i == a.sidebar.cursor {
			line = SelectedStyle.Render(stripANSI(line))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}

// truncateTitle shortens s to width terminal cells, ending in an ellipsis
// when cut.
func truncateTitle(s string, width int) string {
	if width <= 1 {
		return ""
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
