package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	appmodel "seekchat/model"
)

const (
	inputHeight  = 3
	sidebarWidth = 30
)

type AppView struct {
	// Reference to core data model
	dataModel *appmodel.Model

	// UI Components
	viewport       viewport.Model
	textarea       textarea.Model
	loadingSpinner spinner.Model
	keys           keyMap

	// Window state
	width  int
	height int
	ready  bool

	// Store change notifications
	changes     <-chan struct{}
	unsubscribe func()

	// Rendered markdown by content and width; a pointer so copies of the
	// view share it
	renderCache *markdownCache

	// Message selection, -1 for none
	selectedMsg int

	showHelp bool
	status   string

	sidebar   sidebarState
	settings  settingsState
	textModal textModalState

	confirmRemove ConfirmationState
	removeKey     string

	errorTitle string
	errorMsg   string
}

func NewAppView(dataModel *appmodel.Model) AppView {
	keys := newKeyMap(dataModel.Config.KeyBindings)

	ta := textarea.New()
	ta.Placeholder = "Type a message. Enter sends, " + keys.InsertNewline.Help().Key + " inserts a newline."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(inputHeight)
	ta.SetWidth(80)
	ta.KeyMap.InsertNewline = keys.InsertNewline

	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = AssistantStyle

	changes, unsubscribe := dataModel.Store.Subscribe()

	return AppView{
		dataModel:      dataModel,
		viewport:       viewport.New(0, 0),
		textarea:       ta,
		loadingSpinner: sp,
		keys:           keys,
		changes:        changes,
		unsubscribe:    unsubscribe,
		renderCache:    newMarkdownCache(),
		selectedMsg:    -1,
		sidebar:        newSidebarState(),
		settings:       newSettingsState(),
		textModal:      newTextModalState(keys),
	}
}

func (a AppView) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		appmodel.WaitForStoreChange(a.changes),
	)
}

func (a AppView) View() string {
	if !a.ready {
		return "Loading seekchat..."
	}

	// Modal rendering order, top layer first
	if a.errorMsg != "" {
		return RenderAcknowledgeModal(a.errorTitle, a.errorMsg, ModalTypeError, a.width, a.height)
	}
	if a.confirmRemove.Active {
		return RenderConfirmationModal(a.confirmRemove, a.width, a.height)
	}
	if a.showHelp {
		return a.renderHelpModal(a.width, a.height)
	}
	if a.settings.active {
		return a.renderSettingsModal(a.width, a.height)
	}
	if a.textModal.mode != textModalNone {
		return a.renderTextModal(a.width, a.height)
	}

	main := lipgloss.JoinVertical(
		lipgloss.Left,
		a.renderHeader(),
		a.viewport.View(),
		a.textarea.View(),
		a.renderStatusBar(),
	)

	if !a.sidebar.visible {
		return main
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		SidebarStyle.Height(a.height).Render(a.renderSidebar(sidebarWidth, a.height)),
		main,
	)
}

func (a AppView) renderHeader() string {
	key, conv := a.dataModel.CurrentConversation()
	settings := a.dataModel.Store.EffectiveSettings()

	title := TitleStyle.Render(conv.Name)
	info := DimStyle.Render(fmt.Sprintf("  %s · %d messages", settings.Model, len(conv.Messages)))
	if a.dataModel.Chat.Busy(key) {
		info += " " + a.loadingSpinner.View()
	}
	return title + info
}

func (a AppView) renderStatusBar() string {
	if a.status != "" {
		return StatusStyle.Render(a.status)
	}

	k := a.keys
	if a.dataModel.Chat.Busy(a.dataModel.Store.Current()) {
		return StatusStyle.Render(FormatFooter(k.Stop.Help().Key, "Stop"))
	}
	if a.selectedMsg >= 0 {
		return StatusStyle.Render(FormatFooter(
			k.Regenerate.Help().Key, "Regenerate",
			k.EditMessage.Help().Key, "Edit",
			k.DeleteMessage.Help().Key, "Delete",
			k.CopyMessage.Help().Key, "Copy",
			k.Stop.Help().Key, "Unselect",
		))
	}
	return StatusStyle.Render(FormatFooter(
		k.NewChat.Help().Key, "New chat",
		k.Sidebar.Help().Key, "Chats",
		k.Settings.Help().Key, "Settings",
		k.SelectPrev.Help().Key, "Select",
		k.Help.Help().Key, "Help",
	))
}

// layout resizes the components after a window or sidebar change.
func (a *AppView) layout() {
	mainWidth := a.width
	if a.sidebar.visible {
		mainWidth -= sidebarWidth + 2
	}
	if mainWidth < 20 {
		mainWidth = 20
	}

	a.textarea.SetWidth(mainWidth)
	a.viewport.Width = mainWidth
	// header + input + status bar
	vpHeight := a.height - inputHeight - 2
	if vpHeight < 3 {
		vpHeight = 3
	}
	a.viewport.Height = vpHeight

	a.settings.setWidth(mainWidth)
	a.textModal.setWidth(mainWidth)
}

func (a AppView) mainWidth() int {
	return a.viewport.Width
}

// Close releases the store subscription.
func (a AppView) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}
