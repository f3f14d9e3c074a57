package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func (a AppView) renderHelpModal(width, height int) string {
	k := a.keys

	green := lipgloss.NewStyle().
		Bold(true).
		Foreground(successColor)

	title := green.Render("seekchat - Keyboard Shortcuts")

	blue := lipgloss.NewStyle().Foreground(accentColor)

	entry := func(keyName, desc string) string {
		return fmt.Sprintf("• %-13s %s", keyName, desc)
	}

	chats := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Chats"),
		entry(k.NewChat.Help().Key, "New chat"),
		entry(k.Sidebar.Help().Key, "Chat list and search"),
		entry(k.RemoveChat.Help().Key, "Remove chat"),
		entry(k.Settings.Help().Key, "Settings"),
		entry(k.Help.Help().Key, "Toggle this help"),
		entry(k.Quit.Help().Key, "Quit"),
	)

	input := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Input"),
		entry(k.Send.Help().Key, "Send message"),
		entry(k.InsertNewline.Help().Key, "Insert newline"),
		entry(k.Stop.Help().Key, "Stop answer"),
		entry(k.PageUp.Help().Key, "Scroll up"),
		entry(k.PageDown.Help().Key, "Scroll down"),
	)

	messages := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Messages"),
		entry(k.SelectPrev.Help().Key, "Select previous"),
		entry(k.SelectNext.Help().Key, "Select next"),
		entry(k.Regenerate.Help().Key, "Regenerate answer"),
		entry(k.EditMessage.Help().Key, "Edit question"),
		entry(k.DeleteMessage.Help().Key, "Delete message"),
		entry(k.CopyMessage.Help().Key, "Copy message"),
	)

	column1 := lipgloss.JoinVertical(lipgloss.Left, chats, "", input)

	columnStyle := lipgloss.NewStyle().Width(40).PaddingLeft(4)

	twoColumns := lipgloss.JoinHorizontal(
		lipgloss.Top,
		columnStyle.Render(column1),
		columnStyle.Render(messages),
	)

	footer := lipgloss.NewStyle().
		Foreground(dimColor).
		Render(fmt.Sprintf("Press %s or Esc to close this help", k.Help.Help().Key))

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		title,
		"",
		twoColumns,
		"",
		footer,
	)

	helpBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1, 2).
		Width(88)

	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		helpBox.Render(content),
	)
}
