package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	appmodel "seekchat/model"
	"seekchat/storage"
)

const (
	settingAPIKey = iota
	settingAPIBase
	settingModel
	settingCount
)

var settingLabels = [settingCount]string{"API Key", "API Base URL", "Model"}

type settingsState struct {
	active bool
	inputs [settingCount]textinput.Model
	focus  int
}

func newSettingsState() settingsState {
	var s settingsState
	for i := range s.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 256
		s.inputs[i] = in
	}
	s.inputs[settingAPIKey].EchoMode = textinput.EchoPassword
	s.inputs[settingAPIKey].EchoCharacter = '•'
	s.inputs[settingAPIBase].Placeholder = storage.DefaultAPIBase
	s.inputs[settingModel].Placeholder = storage.DefaultModel
	return s
}

func (s *settingsState) setWidth(width int) {
	w := width - 24
	if w > 60 {
		w = 60
	}
	if w < 10 {
		w = 10
	}
	for i := range s.inputs {
		s.inputs[i].Width = w
	}
}

func (s *settingsState) setFocus(i int) {
	s.focus = (i + settingCount) % settingCount
	for j := range s.inputs {
		if j == s.focus {
			s.inputs[j].Focus()
		} else {
			s.inputs[j].Blur()
		}
	}
}

// values returns the entered settings. Blank base and model fall back to
// the defaults.
func (s settingsState) values() storage.Settings {
	return storage.Settings{
		APIKey:  strings.TrimSpace(s.inputs[settingAPIKey].Value()),
		APIBase: strings.TrimSpace(s.inputs[settingAPIBase].Value()),
		Model:   strings.TrimSpace(s.inputs[settingModel].Value()),
	}.WithDefaults()
}

func (a *AppView) openSettings() {
	current := a.dataModel.Store.Settings()
	a.settings.inputs[settingAPIKey].SetValue(current.APIKey)
	a.settings.inputs[settingAPIBase].SetValue(current.APIBase)
	a.settings.inputs[settingModel].SetValue(current.Model)
	a.settings.active = true
	a.settings.setFocus(settingAPIKey)
	a.textarea.Blur()
}

func (a *AppView) closeSettings() {
	a.settings.active = false
	a.settings.setFocus(-1)
	a.textarea.Focus()
}

func (a AppView) handleSettingsKey(msg tea.KeyMsg) (AppView, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.closeSettings()
		return a, nil
	case "tab", "down":
		a.settings.setFocus(a.settings.focus + 1)
		return a, nil
	case "shift+tab", "up":
		a.settings.setFocus(a.settings.focus - 1)
		return a, nil
	case "enter":
		values := a.settings.values()
		a.closeSettings()
		return a, a.dataModel.SaveSettingsCmd(values)
	}

	var cmd tea.Cmd
	a.settings.inputs[a.settings.focus], cmd = a.settings.inputs[a.settings.focus].Update(msg)
	return a, cmd
}

func (a AppView) renderSettingsModal(width, height int) string {
	labelStyle := lipgloss.NewStyle().Width(14).Foreground(accentColor).Bold(true)

	var lines []string
	for i, in := range a.settings.inputs {
		label := labelStyle.Render(settingLabels[i])
		if i == a.settings.focus {
			label = labelStyle.Foreground(warningColor).Render(settingLabels[i])
		}
		lines = append(lines, "  "+label+in.View(), "")
	}

	if a.dataModel.Config.APIKeyOverride != "" {
		lines = append(lines, DimStyle.Render("  SEEKCHAT_API_KEY overrides the saved key for this session."))
	}

	footer := FormatFooter("Tab", "Next", "Enter", "Save", "Esc", "Cancel")
	return RenderThreeSectionModal("Settings", lines, footer, ModalTypeInfo, 80, width, height)
}

func (a *AppView) handleSettingsSaved(msg appmodel.SettingsSavedMsg) {
	if msg.Err != nil {
		a.showError("Settings", msg.Err)
		return
	}
	a.status = "Settings saved"
}
