package typer

import "fmt"

// ActionKind tags an Action.
type ActionKind int

const (
	// ActionType types text character by character.
	ActionType ActionKind = iota
	// ActionKey taps a named key.
	ActionKey
	// ActionModifierHold presses a modifier and keeps it down until the batch ends.
	ActionModifierHold
	// ActionModifierPress taps a modifier.
	ActionModifierPress
)

func (k ActionKind) String() string {
	switch k {
	case ActionType:
		return "type"
	case ActionKey:
		return "key"
	case ActionModifierHold:
		return "hold"
	case ActionModifierPress:
		return "press"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// Action is one step of a batch. Arg is the text for ActionType and the
// key or modifier name otherwise.
type Action struct {
	Kind ActionKind
	Arg  string
}

// Type returns an action typing text.
func Type(text string) Action { return Action{Kind: ActionType, Arg: text} }

// Key returns an action tapping the named key.
func Key(name string) Action { return Action{Kind: ActionKey, Arg: name} }

// ModifierHold returns an action holding the named modifier.
func ModifierHold(name string) Action { return Action{Kind: ActionModifierHold, Arg: name} }

// ModifierPress returns an action tapping the named modifier.
func ModifierPress(name string) Action { return Action{Kind: ActionModifierPress, Arg: name} }

func (a Action) String() string {
	return fmt.Sprintf("%s(%q)", a.Kind, a.Arg)
}
