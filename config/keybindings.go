package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// KeyBindingsConfig holds modifier customization and optional per-action overrides
type KeyBindingsConfig struct {
	Modifiers ModifierConfig    `toml:"modifiers"`
	Actions   map[string]string `toml:"actions"`
}

type ModifierConfig struct {
	Primary   string `toml:"primary"`   // e.g., "ctrl", "alt"
	Secondary string `toml:"secondary"` // e.g., "alt", "ctrl+shift"
}

const (
	defaultPrimary   = "ctrl"
	defaultSecondary = "alt"
)

// actionDef defines the default modifier and key for an action
type actionDef struct {
	modifier string // "primary", "secondary", or "none"
	key      string
}

// actionRegistry maps action names to their default keybindings.
// Any of these can be overridden in the [actions] section of keybindings.toml.
var actionRegistry = map[string]actionDef{
	// Chat input
	"send":           {"none", "enter"},
	"insert_newline": {"secondary", "enter"},
	"stop":           {"none", "esc"},

	// Chats
	"new_chat":    {"primary", "n"},
	"sidebar":     {"primary", "s"},
	"remove_chat": {"primary", "x"},
	"settings":    {"primary", "o"},

	// Messages
	"select_prev":    {"secondary", "up"},
	"select_next":    {"secondary", "down"},
	"regenerate":     {"primary", "r"},
	"edit_message":   {"primary", "e"},
	"delete_message": {"primary", "d"},
	"copy_message":   {"primary", "y"},

	// Scrolling
	"page_up":   {"none", "pgup"},
	"page_down": {"none", "pgdown"},

	"help": {"none", "f1"},
	"quit": {"primary", "c"},
}

// KeyActions lists every configurable action name, sorted.
func KeyActions() []string {
	names := make([]string, 0, len(actionRegistry))
	for name := range actionRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultKeybindings returns default configuration
func DefaultKeybindings() *KeyBindingsConfig {
	return &KeyBindingsConfig{
		Modifiers: ModifierConfig{
			Primary:   defaultPrimary,
			Secondary: defaultSecondary,
		},
	}
}

// LoadKeybindings loads keybindings.toml from dir, creating it on first run.
func LoadKeybindings(dir string) (*KeyBindingsConfig, error) {
	cfg := DefaultKeybindings()
	keybindingsPath := filepath.Join(dir, "keybindings.toml")

	if !FileExists(keybindingsPath) {
		if err := CreateDefaultKeybindings(dir); err != nil {
			return nil, fmt.Errorf("failed to create keybindings: %w", err)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(keybindingsPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse keybindings: %w", err)
	}

	if cfg.Modifiers.Primary == "" {
		cfg.Modifiers.Primary = defaultPrimary
	}
	if cfg.Modifiers.Secondary == "" {
		cfg.Modifiers.Secondary = defaultSecondary
	}

	if ok, warning := cfg.Validate(); !ok {
		return nil, fmt.Errorf("invalid keybindings: %s", warning)
	}

	return cfg, nil
}

// CreateDefaultKeybindings writes the keybindings template into dir.
func CreateDefaultKeybindings(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	keybindingsPath := filepath.Join(dir, "keybindings.toml")
	if FileExists(keybindingsPath) {
		return nil
	}

	if err := os.WriteFile(keybindingsPath, []byte(GenerateKeybindingsTemplate()), 0600); err != nil {
		return fmt.Errorf("failed to write keybindings: %w", err)
	}

	return nil
}

// GenerateKeybindingsTemplate returns the default TOML template
func GenerateKeybindingsTemplate() string {
	return `# seekchat keybindings
# Location: ~/.config/seekchat/keybindings.toml

[modifiers]
primary = "ctrl"    # new chat, sidebar, settings, regenerate, edit, delete, copy
secondary = "alt"   # newline in the input, message selection

# For tmux users (ctrl+s may be taken by flow control):
#   primary = "alt"
#   secondary = "ctrl"

[actions]
# Override single actions, for example:
#   sidebar = "ctrl+b"
#   quit = "ctrl+q"
#
# Available actions: send, insert_newline, stop, new_chat, sidebar,
# remove_chat, settings, select_prev, select_next, regenerate, edit_message,
# delete_message, copy_message, page_up, page_down, help, quit
`
}

// Primary returns the primary modifier
func (kb *KeyBindingsConfig) Primary() string {
	if kb.Modifiers.Primary == "" {
		return defaultPrimary
	}
	return kb.Modifiers.Primary
}

// Secondary returns the secondary modifier
func (kb *KeyBindingsConfig) Secondary() string {
	if kb.Modifiers.Secondary == "" {
		return defaultSecondary
	}
	return kb.Modifiers.Secondary
}

// PrimaryKey builds a keybinding string with the primary modifier.
// Example: PrimaryKey("s") returns "ctrl+s"
func (kb *KeyBindingsConfig) PrimaryKey(key string) string {
	return kb.Primary() + "+" + key
}

// SecondaryKey builds a keybinding string with the secondary modifier.
// A "shift" modifier with a single letter becomes the uppercase letter,
// matching what the terminal reports: "alt+shift" + "s" is "alt+S".
func (kb *KeyBindingsConfig) SecondaryKey(key string) string {
	secondary := kb.Secondary()

	if strings.Contains(strings.ToLower(secondary), "shift") && len(key) == 1 && key[0] >= 'a' && key[0] <= 'z' {
		var cleanMods []string
		for _, part := range strings.Split(secondary, "+") {
			if strings.ToLower(part) != "shift" {
				cleanMods = append(cleanMods, part)
			}
		}
		if len(cleanMods) > 0 {
			return strings.Join(cleanMods, "+") + "+" + strings.ToUpper(key)
		}
		return strings.ToUpper(key)
	}

	return secondary + "+" + key
}

// GetActionKey returns the keybinding for an action: the user override if
// any, otherwise the registry default. Unknown actions give "".
func (kb *KeyBindingsConfig) GetActionKey(action string) string {
	if override, exists := kb.Actions[action]; exists && override != "" {
		return override
	}

	if def, exists := actionRegistry[action]; exists {
		switch def.modifier {
		case "primary":
			return kb.PrimaryKey(def.key)
		case "secondary":
			return kb.SecondaryKey(def.key)
		case "none":
			return def.key
		}
	}

	return ""
}

// DisplayActionKey returns a display-friendly version of an action's keybinding
// Example: "ctrl+shift+j" -> "Ctrl+Shift+J"
func (kb *KeyBindingsConfig) DisplayActionKey(action string) string {
	key := kb.GetActionKey(action)
	if key == "" {
		return ""
	}
	return capitalizeKeybinding(key)
}

// capitalizeKeybinding capitalizes a keybinding string for display.
// An uppercase letter after a modifier is shown as Shift+<letter>.
func capitalizeKeybinding(key string) string {
	parts := strings.Split(key, "+")
	hasShift := false
	for _, p := range parts {
		if strings.ToLower(p) == "shift" {
			hasShift = true
			break
		}
	}

	var result []string
	for i, part := range parts {
		if len(part) == 0 {
			continue
		}
		if len(part) == 1 && part[0] >= 'A' && part[0] <= 'Z' {
			if !hasShift && i > 0 {
				result = append(result, "Shift")
			}
			result = append(result, part)
			continue
		}
		result = append(result, strings.ToUpper(part[:1])+part[1:])
	}

	return strings.Join(result, "+")
}

// Validate checks the modifiers and overrides.
// Returns (isValid, warningMessage)
func (kb *KeyBindingsConfig) Validate() (bool, string) {
	primary := kb.Primary()
	secondary := kb.Secondary()

	if primary == secondary {
		return false, fmt.Sprintf("primary and secondary modifiers are both %q", primary)
	}

	for action := range kb.Actions {
		if _, known := actionRegistry[action]; !known {
			return false, fmt.Sprintf("unknown action %q", action)
		}
	}

	return true, ""
}
