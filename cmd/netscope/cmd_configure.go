package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/HerbHall/netscope/internal/profile"
	"github.com/HerbHall/netscope/pkg/models"
)

func newConfigureCmd(a *app) *cobra.Command {
	var answers string
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Build a network profile interactively and emit its scan plan",
		Long: `configure walks through customer identity, authorization, networks, VLANs,
exclusions, and scan preferences, then writes the profile, exclusion file,
and scan plan into a new engagement directory.

With --answers, each line of the file answers one prompt in order; a blank
line takes the default and ":q" aborts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prompter, err := newPrompter(answers)
			if err != nil {
				return err
			}
			return a.configure(cmd, prompter)
		},
	}
	cmd.Flags().StringVar(&answers, "answers", "", "file with one answer per line (batch mode)")
	return cmd
}

func newPrompter(answersFile string) (profile.Prompter, error) {
	if answersFile == "" {
		return profile.NewTerminalPrompter(), nil
	}
	f, err := os.Open(answersFile)
	if err != nil {
		return nil, fmt.Errorf("open answers: %w", err)
	}
	defer f.Close()
	sp, err := profile.LoadAnswers(f)
	if err != nil {
		return nil, err
	}
	return consolePrompter{sp}, nil
}

func (a *app) configure(cmd *cobra.Command, prompter profile.Prompter) error {
	ctx := cmd.Context()
	p, err := profile.NewSession(prompter, a.logger.Named("session"), profile.WithClock(a.now)).Run(ctx)
	if err != nil {
		if errors.Is(err, models.ErrSessionAborted) {
			pterm.Warning.Println("configuration aborted, nothing was written")
			return exitCodeError{code: 1}
		}
		return err
	}
	_, err = a.emitAndRecord(ctx, p)
	return err
}
