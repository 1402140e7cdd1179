package robot

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Keymap binds single-character keys to operator actions. Keys are matched
// case-insensitively.
type Keymap struct {
	Quit     string `yaml:"quit,omitempty"`
	Forward  string `yaml:"forward,omitempty"`
	Backward string `yaml:"backward,omitempty"`
	Left     string `yaml:"left,omitempty"`
	Right    string `yaml:"right,omitempty"`
	HeadUp   string `yaml:"head_up,omitempty"`
	HeadDown string `yaml:"head_down,omitempty"`
}

// Action is what a key press asks for.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionMove
	ActionHead
)

// DefaultKeymap returns the WASD + I/K layout.
func DefaultKeymap() Keymap {
	return Keymap{
		Quit:     "q",
		Forward:  "w",
		Backward: "s",
		Left:     "a",
		Right:    "d",
		HeadUp:   "i",
		HeadDown: "k",
	}
}

func (k Keymap) bindings() []struct {
	name string
	key  string
} {
	return []struct {
		name string
		key  string
	}{
		{"quit", k.Quit},
		{"forward", k.Forward},
		{"backward", k.Backward},
		{"left", k.Left},
		{"right", k.Right},
		{"head_up", k.HeadUp},
		{"head_down", k.HeadDown},
	}
}

// Merge returns k with the non-empty bindings of override applied.
func (k Keymap) Merge(override Keymap) Keymap {
	pick := func(a, b string) string {
		if b != "" {
			return b
		}
		return a
	}
	return Keymap{
		Quit:     pick(k.Quit, override.Quit),
		Forward:  pick(k.Forward, override.Forward),
		Backward: pick(k.Backward, override.Backward),
		Left:     pick(k.Left, override.Left),
		Right:    pick(k.Right, override.Right),
		HeadUp:   pick(k.HeadUp, override.HeadUp),
		HeadDown: pick(k.HeadDown, override.HeadDown),
	}
}

// Validate requires one distinct character per binding.
func (k Keymap) Validate() error {
	seen := make(map[string]string)
	for _, b := range k.bindings() {
		if utf8.RuneCountInString(b.key) != 1 {
			return fmt.Errorf("keys: %s must be a single character, got %q", b.name, b.key)
		}
		key := strings.ToLower(b.key)
		if other, dup := seen[key]; dup {
			return fmt.Errorf("keys: %s and %s both bound to %q", other, b.name, b.key)
		}
		seen[key] = b.name
	}
	return nil
}

// Lookup maps a key to its action. For ActionMove it returns the preset,
// for ActionHead the signed step.
func (k Keymap) Lookup(key rune) (Action, MotionVector, int) {
	s := strings.ToLower(string(key))
	switch s {
	case strings.ToLower(k.Quit):
		return ActionQuit, Neutral, 0
	case strings.ToLower(k.Forward):
		return ActionMove, Forward, 0
	case strings.ToLower(k.Backward):
		return ActionMove, Backward, 0
	case strings.ToLower(k.Left):
		return ActionMove, LeftSpin, 0
	case strings.ToLower(k.Right):
		return ActionMove, RightSpin, 0
	case strings.ToLower(k.HeadUp):
		return ActionHead, Neutral, HeadStep
	case strings.ToLower(k.HeadDown):
		return ActionHead, Neutral, -HeadStep
	}
	return ActionNone, Neutral, 0
}
