package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HerbHall/netscope/internal/config"
	"github.com/HerbHall/netscope/internal/emitter"
	"github.com/HerbHall/netscope/internal/logging"
	"github.com/HerbHall/netscope/internal/profile"
	"github.com/HerbHall/netscope/internal/services"
	"github.com/HerbHall/netscope/internal/slug"
	"github.com/HerbHall/netscope/internal/store"
	"github.com/HerbHall/netscope/internal/version"
	"github.com/HerbHall/netscope/pkg/models"
)

// app holds state shared by every command once the root pre-run has loaded
// configuration and built the logger.
type app struct {
	v        *viper.Viper
	cfgFile  string
	settings config.Settings
	logger   *zap.Logger
	now      func() time.Time

	store *store.SQLiteStore
}

func newApp() *app {
	return &app{
		v:      viper.New(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	_ = a.logger.Sync()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "netscope",
		Short: "Plan, run, and report on customer network scans",
		Long: `netscope collects a customer's network profile, turns it into a scan plan
for nmap, runs the plan, and renders host, topology, and service reports
from the results.

Examples:
  netscope configure
  netscope discover --customer "Acme Corp"
  netscope run --plan engagements/acme_corp_20260420_093100/acme_corp_scan_plan_20260420_093100.yaml
  netscope report --input acme_corp_primary_20260420_093100_services.xml --profile acme.yaml`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.SetVersionTemplate(version.Info() + "\n")

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: netscope.yaml in ., ./configs, $HOME/.netscope)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("output-dir", "", "directory engagement artifacts are written to")
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("output.dir", flags.Lookup("output-dir"))

	root.AddCommand(
		newConfigureCmd(a),
		newDiscoverCmd(a),
		newPlanCmd(a),
		newRunCmd(a),
		newReportCmd(a),
		newHistoryCmd(a),
		newArchiveCmd(a),
		newRestoreCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	if a.settings, err = cfg.Settings(); err != nil {
		return err
	}
	logger, err := logging.New(a.settings.Log)
	if err != nil {
		return err
	}
	a.logger = logger
	if a.settings.Log.Level == "debug" {
		pterm.EnableDebugMessages()
	}
	a.logger.Debug("configuration loaded",
		zap.String("file", a.v.ConfigFileUsed()),
		zap.String("output_dir", a.settings.Output.Dir),
	)
	return nil
}

// openStore opens the engagement database on first use.
func (a *app) openStore() (*store.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	st, err := store.New(a.settings.Store.Path)
	if err != nil {
		return nil, err
	}
	a.store = st
	return st, nil
}

func (a *app) engagements(ctx context.Context) (*services.SQLiteEngagementRepository, error) {
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	return services.NewSQLiteEngagementRepository(ctx, st)
}

func (a *app) scanRuns(ctx context.Context) (*services.SQLiteScanRunRepository, error) {
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	return services.NewSQLiteScanRunRepository(ctx, st)
}

func (a *app) newEmitter() *emitter.Emitter {
	return emitter.New(a.settings.Output.Dir, a.settings.Scanner.Path, a.settings.Scanner.HostTimeout, a.logger.Named("emitter"))
}

// emitAndRecord writes the artifacts for p, records the engagement, and
// prints what was written. A database failure only warns: the artifacts
// on disk are the deliverable.
func (a *app) emitAndRecord(ctx context.Context, p *models.NetworkProfile) (*emitter.Artifacts, error) {
	arts, err := a.newEmitter().Emit(p)
	if err != nil {
		return nil, err
	}
	if !p.Authorized() {
		pterm.Warning.Println(models.UnauthorizedBanner)
	}
	if err := a.recordEngagement(ctx, p, arts.Dir); err != nil {
		pterm.Warning.Printfln("engagement not recorded in history: %v", err)
		a.logger.Warn("engagement not recorded", zap.Error(err))
	}

	data := pterm.TableData{{"Artifact", "Path"}}
	data = append(data,
		[]string{"profile", arts.Profile},
		[]string{"exclusions", arts.Exclusions},
		[]string{"scan script", arts.Script},
		[]string{"scan plan", arts.PlanFile},
	)
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return arts, err
	}
	pterm.Success.Printfln("%d scan step(s) planned for %s", len(arts.Plan.Steps), p.CustomerName)
	return arts, nil
}

// recordEngagement inserts p unless an engagement with its ID exists.
func (a *app) recordEngagement(ctx context.Context, p *models.NetworkProfile, dir string) error {
	repo, err := a.engagements(ctx)
	if err != nil {
		return err
	}
	if _, err := repo.Get(ctx, p.ID); err == nil {
		return nil
	}
	data, err := profile.Marshal(p)
	if err != nil {
		return err
	}
	return repo.Create(ctx, &models.Engagement{
		ID:           p.ID,
		Slug:         slug.Slugify(p.CustomerName),
		CustomerName: p.CustomerName,
		CreatedAt:    p.CreatedAt,
		Authorized:   p.Authorized(),
		ProfileYAML:  string(data),
		OutputDir:    dir,
	})
}

// consolePrompter prints warnings from a scripted prompter as they happen.
type consolePrompter struct {
	profile.Prompter
}

func (c consolePrompter) Warn(msg string) {
	pterm.Warning.Println(msg)
	c.Prompter.Warn(msg)
}

func newVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(version.Current())
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print build information as JSON")
	return cmd
}
