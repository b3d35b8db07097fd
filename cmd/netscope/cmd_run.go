package main

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HerbHall/netscope/internal/emitter"
	"github.com/HerbHall/netscope/internal/runner"
	"github.com/HerbHall/netscope/internal/services"
	"github.com/HerbHall/netscope/pkg/models"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		planPath string
		noRecord bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a scan plan with nmap",
		Long: `run executes every step of a scan plan written by configure, discover, or
plan. Phases after discovery only target hosts found up. Every step is
attempted; the exit status is 1 when any phase failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			plan, err := emitter.LoadPlan(planPath)
			if err != nil {
				return err
			}
			if plan.Unauthorized {
				pterm.Warning.Println(models.UnauthorizedBanner)
			}

			var opts []runner.Option
			if !noRecord {
				if repo, err := a.runRecorder(ctx, plan, filepath.Dir(planPath)); err != nil {
					pterm.Warning.Printfln("scan runs not recorded in history: %v", err)
				} else {
					opts = append(opts, runner.WithRecorder(repo))
				}
			}

			r := runner.New(runner.NewExecExecutor(a.logger.Named("scanner")), runner.Options{
				ScannerPath:  a.scannerOverride(),
				PhaseTimeout: a.settings.Scanner.PhaseTimeout,
				MaxRetries:   a.settings.Scanner.MaxRetries,
				StepInterval: a.settings.Runner.StepInterval,
				Parallel:     a.settings.Runner.ParallelSegments,
			}, a.logger.Named("runner"), opts...)

			sum, runErr := r.Run(ctx, plan, filepath.Dir(planPath))
			if sum == nil {
				return runErr
			}
			if err := renderSummary(sum); err != nil {
				return err
			}
			if runErr != nil {
				pterm.Warning.Println(runErr.Error())
			}
			if sum.Failed {
				pterm.Error.Println("one or more scan phases failed")
				return exitCodeError{code: sum.ExitCode()}
			}
			pterm.Success.Println("scan plan complete")
			return runErr
		},
	}
	cmd.Flags().StringVar(&planPath, "plan", "", "scan plan YAML file (required)")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "do not record scan runs in the history database")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

// scannerOverride returns the configured scanner only when it differs from
// the default, so plans keep the scanner they were written with.
func (a *app) scannerOverride() string {
	if a.settings.Scanner.Path == emitter.DefaultScannerPath {
		return ""
	}
	return a.settings.Scanner.Path
}

// runRecorder opens the scan-run repository and makes sure the plan's
// engagement exists so runs can reference it.
func (a *app) runRecorder(ctx context.Context, plan *models.ScanPlan, dir string) (services.ScanRunRepository, error) {
	if plan.EngagementID == "" {
		return nil, errors.New("plan has no engagement_id; re-emit it with `netscope plan`")
	}
	engagements, err := a.engagements(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := engagements.Get(ctx, plan.EngagementID); errors.Is(err, services.ErrNotFound) {
		a.logger.Info("recording engagement from plan", zap.String("engagement", plan.EngagementID))
		err = engagements.Create(ctx, &models.Engagement{
			ID:           plan.EngagementID,
			Slug:         plan.Slug,
			CustomerName: plan.Customer,
			CreatedAt:    plan.CreatedAt,
			Authorized:   !plan.Unauthorized,
			OutputDir:    dir,
		})
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return a.scanRuns(ctx)
}

func renderSummary(sum *runner.Summary) error {
	data := pterm.TableData{{"Segment", "CIDR", "Phase", "Status", "Attempts", "Live hosts", "Duration"}}
	for _, s := range sum.Steps {
		live := ""
		if s.Phase == models.PhaseDiscovery && s.Status == models.ScanRunSucceeded {
			live = strconv.Itoa(s.LiveHosts)
		}
		data = append(data, []string{
			s.Segment, s.CIDR, s.Phase, string(s.Status),
			strconv.Itoa(s.Attempts), live, s.Duration.Round(time.Millisecond).String(),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
