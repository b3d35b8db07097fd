package profile

import (
	"strings"

	"github.com/pterm/pterm"

	"github.com/HerbHall/netscope/pkg/models"
)

// TerminalPrompter asks questions interactively using pterm widgets.
// Ctrl-C at any prompt aborts the session.
type TerminalPrompter struct {
	interrupted bool
}

// Compile-time interface guard.
var _ Prompter = (*TerminalPrompter)(nil)

// NewTerminalPrompter returns an interactive prompter.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{}
}

func (t *TerminalPrompter) onInterrupt() { t.interrupted = true }

func (t *TerminalPrompter) Ask(prompt, def string) (string, error) {
	t.interrupted = false
	in := pterm.DefaultInteractiveTextInput.
		WithDefaultValue(def).
		WithOnInterruptFunc(t.onInterrupt)
	a, err := in.Show(prompt)
	if t.interrupted {
		return "", models.ErrSessionAborted
	}
	if err != nil {
		return "", err
	}
	a = strings.TrimSpace(a)
	if a == AbortAnswer {
		return "", models.ErrSessionAborted
	}
	return a, nil
}

func (t *TerminalPrompter) Confirm(prompt string, def bool) (bool, error) {
	t.interrupted = false
	c := pterm.DefaultInteractiveConfirm.
		WithDefaultValue(def).
		WithOnInterruptFunc(t.onInterrupt)
	ok, err := c.Show(prompt)
	if t.interrupted {
		return false, models.ErrSessionAborted
	}
	return ok, err
}

func (t *TerminalPrompter) Select(prompt string, options []string, def string) (string, error) {
	t.interrupted = false
	sel := pterm.DefaultInteractiveSelect.
		WithOptions(options).
		WithDefaultOption(def).
		WithOnInterruptFunc(t.onInterrupt)
	choice, err := sel.Show(prompt)
	if t.interrupted {
		return "", models.ErrSessionAborted
	}
	return choice, err
}

func (t *TerminalPrompter) Warn(msg string) {
	pterm.Warning.Println(msg)
}
