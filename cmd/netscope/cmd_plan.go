package main

import (
	"github.com/spf13/cobra"

	"github.com/HerbHall/netscope/internal/profile"
)

func newPlanCmd(a *app) *cobra.Command {
	var profilePath string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Re-emit the exclusion file and scan plan from a saved profile",
		Long: `plan loads a profile written by configure or discover and writes its
artifacts again. The output is byte-identical for the same profile, so the
command is safe to repeat after editing exclusions or VLANs by hand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := profile.Load(profilePath)
			if err != nil {
				return err
			}
			_, err = a.emitAndRecord(cmd.Context(), p)
			return err
		},
	}
	cmd.Flags().StringVar(&profilePath, "profile", "", "profile YAML file (required)")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}
