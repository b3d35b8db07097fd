package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HerbHall/netscope/internal/archive"
	"github.com/HerbHall/netscope/internal/services"
	"github.com/HerbHall/netscope/pkg/models"
)

func newArchiveCmd(a *app) *cobra.Command {
	var (
		engagement string
		output     string
	)
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Pack an engagement directory and the history database into a tar.gz",
		Long: `archive writes the engagement's artifacts, results, and reports plus a copy
of the history database into one tar.gz, then marks the engagement closed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			repo, err := a.engagements(ctx)
			if err != nil {
				return err
			}
			e, err := findEngagement(ctx, repo, engagement)
			if err != nil {
				return err
			}
			if e.OutputDir == "" {
				return fmt.Errorf("engagement %s has no artifact directory", e.ID)
			}
			if output == "" {
				output = filepath.Clean(e.OutputDir) + ".tar.gz"
			}

			if err := archive.Archive(ctx, e.OutputDir, a.settings.Store.Path, output); err != nil {
				return err
			}
			if err := repo.Close(ctx, e.ID, a.now().UTC()); err != nil {
				return fmt.Errorf("mark engagement closed: %w", err)
			}
			a.logger.Info("engagement archived", zap.String("engagement", e.ID), zap.String("archive", output))
			pterm.Success.Printfln("Archive created: %s", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&engagement, "engagement", "", "engagement id or customer slug (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "archive path (default: <engagement dir>.tar.gz)")
	_ = cmd.MarkFlagRequired("engagement")
	return cmd
}

func newRestoreCmd(a *app) *cobra.Command {
	var (
		input string
		dest  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Extract an engagement archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dest == "" {
				dest = a.settings.Output.Dir
			}
			if err := archive.Restore(cmd.Context(), input, dest, force); err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			pterm.Success.Printfln("Restore complete: files restored to %s", dest)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "archive to restore (required)")
	cmd.Flags().StringVar(&dest, "dest", "", "target directory (default: output dir)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// findEngagement resolves an engagement by ID, then by customer slug.
func findEngagement(ctx context.Context, repo services.EngagementRepository, ref string) (*models.Engagement, error) {
	e, err := repo.Get(ctx, ref)
	if errors.Is(err, services.ErrNotFound) {
		e, err = repo.GetBySlug(ctx, ref)
	}
	if errors.Is(err, services.ErrNotFound) {
		return nil, fmt.Errorf("engagement %q not found", ref)
	}
	return e, err
}
