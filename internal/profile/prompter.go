package profile

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/HerbHall/netscope/pkg/models"
)

// AbortAnswer ends a session when typed at any prompt.
const AbortAnswer = ":q"

// Prompter collects one answer at a time from an operator or a script.
// Returning models.ErrSessionAborted ends the session without a profile.
type Prompter interface {
	Ask(prompt, def string) (string, error)
	Confirm(prompt string, def bool) (bool, error)
	Select(prompt string, options []string, def string) (string, error)
	Warn(msg string)
}

// ScriptedPrompter answers prompts from a fixed list, for batch runs and
// tests. An empty answer selects the prompt's default. Running out of
// answers aborts the session.
type ScriptedPrompter struct {
	answers  []string
	pos      int
	Warnings []string
}

// Compile-time interface guard.
var _ Prompter = (*ScriptedPrompter)(nil)

// NewScriptedPrompter returns a prompter that replays answers in order.
func NewScriptedPrompter(answers ...string) *ScriptedPrompter {
	return &ScriptedPrompter{answers: answers}
}

// LoadAnswers reads one answer per line. Lines starting with '#' are skipped.
func LoadAnswers(r io.Reader) (*ScriptedPrompter, error) {
	var answers []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		answers = append(answers, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	return NewScriptedPrompter(answers...), nil
}

func (s *ScriptedPrompter) next() (string, error) {
	if s.pos >= len(s.answers) {
		return "", fmt.Errorf("%w: answers exhausted", models.ErrSessionAborted)
	}
	a := strings.TrimSpace(s.answers[s.pos])
	s.pos++
	if a == AbortAnswer {
		return "", models.ErrSessionAborted
	}
	return a, nil
}

func (s *ScriptedPrompter) Ask(_ string, def string) (string, error) {
	a, err := s.next()
	if err != nil {
		return "", err
	}
	if a == "" {
		return def, nil
	}
	return a, nil
}

// Confirm reprompts on an unrecognized answer, recording a warning, until a
// yes, a no or a blank default is read.
func (s *ScriptedPrompter) Confirm(_ string, def bool) (bool, error) {
	for {
		a, err := s.next()
		if err != nil {
			return false, err
		}
		ok, err := parseConfirm(a, def)
		if err != nil {
			s.Warn(err.Error())
			continue
		}
		return ok, nil
	}
}

func parseConfirm(a string, def bool) (bool, error) {
	switch strings.ToLower(a) {
	case "":
		return def, nil
	case "y", "yes", "true":
		return true, nil
	case "n", "no", "false":
		return false, nil
	}
	return false, fmt.Errorf("answer %q is not yes or no", a)
}

func (s *ScriptedPrompter) Select(_ string, options []string, def string) (string, error) {
	a, err := s.next()
	if err != nil {
		return "", err
	}
	if a == "" {
		return def, nil
	}
	for _, o := range options {
		if strings.EqualFold(o, a) {
			return o, nil
		}
	}
	return a, nil
}

func (s *ScriptedPrompter) Warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// Remaining reports how many answers were not consumed.
func (s *ScriptedPrompter) Remaining() int {
	return len(s.answers) - s.pos
}
