package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type ConfirmationState struct {
	Active  bool
	Title   string
	Message string
}

// RenderConfirmationModal asks a y/n question.
func RenderConfirmationModal(state ConfirmationState, width, height int) string {
	modalWidth := clampModalWidth(60, width)

	messageStyle := lipgloss.NewStyle().
		Width(modalWidth).
		Align(lipgloss.Center)

	var lines []string
	for _, line := range strings.Split(state.Message, "\n") {
		lines = append(lines, messageStyle.Render(line))
	}

	return RenderThreeSectionModal(state.Title, lines, FormatFooter("y", "Yes", "n", "No"), ModalTypeWarning, modalWidth, width, height)
}
