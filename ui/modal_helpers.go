package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// ModalType determines the color and styling of a modal
type ModalType int

const (
	ModalTypeInfo ModalType = iota
	ModalTypeWarning
	ModalTypeError
)

func (t ModalType) color() lipgloss.Color {
	switch t {
	case ModalTypeWarning:
		return warningColor
	case ModalTypeError:
		return dangerColor
	default:
		return accentColor
	}
}

// RenderAcknowledgeModal renders a modal that only needs Enter or Esc to
// dismiss. Used for errors from background operations.
func RenderAcknowledgeModal(title, message string, modalType ModalType, width, height int) string {
	modalWidth := clampModalWidth(60, width)

	messageStyle := lipgloss.NewStyle().
		Width(modalWidth).
		Align(lipgloss.Center)

	var lines []string
	for _, line := range strings.Split(message, "\n") {
		lines = append(lines, messageStyle.Render(line))
	}

	return RenderThreeSectionModal(title, lines, "Press Enter to acknowledge", modalType, modalWidth, width, height)
}

// RenderThreeSectionModal renders a borderless modal with title, message and
// footer sections: Title (no border), Message (BorderTop), Footer (BorderTop).
// messageLines are pre-formatted; desiredWidth 0 means 60.
func RenderThreeSectionModal(title string, messageLines []string, footer string, modalType ModalType, desiredWidth, width, height int) string {
	if desiredWidth == 0 {
		desiredWidth = 60
	}
	modalWidth := clampModalWidth(desiredWidth, width)

	// runewidth keeps wide characters centered correctly
	titleVisualWidth := runewidth.StringWidth(title)
	leftPad := (modalWidth - titleVisualWidth) / 2
	if leftPad < 0 {
		leftPad = 0
	}
	rightPad := modalWidth - titleVisualWidth - leftPad
	if rightPad < 0 {
		rightPad = 0
	}
	centeredTitle := strings.Repeat(" ", leftPad) + title + strings.Repeat(" ", rightPad)

	titleSection := lipgloss.NewStyle().
		Bold(true).
		Foreground(modalType.color()).
		Render(centeredTitle)

	contentLines := make([]string, 0, len(messageLines)+2)
	contentLines = append(contentLines, strings.Repeat(" ", modalWidth))
	contentLines = append(contentLines, messageLines...)
	contentLines = append(contentLines, strings.Repeat(" ", modalWidth))

	messageSection := lipgloss.NewStyle().
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Width(modalWidth).
		Render(strings.Join(contentLines, "\n"))

	footerSection := lipgloss.NewStyle().
		Foreground(dimColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(footer)

	content := strings.Join([]string{titleSection, messageSection, footerSection}, "\n")

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

func clampModalWidth(desired, width int) int {
	if width < desired+10 {
		desired = width - 10
	}
	if desired < 20 {
		desired = 20
	}
	return desired
}
