package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/HerbHall/netscope/internal/catalog"
	"github.com/HerbHall/netscope/internal/emitter"
	"github.com/HerbHall/netscope/internal/netutil"
	"github.com/HerbHall/netscope/internal/profile"
	"github.com/HerbHall/netscope/internal/recon"
	"github.com/HerbHall/netscope/internal/report"
	"github.com/HerbHall/netscope/internal/slug"
	pkgcatalog "github.com/HerbHall/netscope/pkg/catalog"
	"github.com/HerbHall/netscope/pkg/models"
)

type reportOptions struct {
	inputs      []string
	planPath    string
	profilePath string
	gateway     string
	macPrefixes string
	output      string
}

func newReportCmd(a *app) *cobra.Command {
	var o reportOptions
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render host, topology, and service reports from scan results",
		Long: `report merges nmap XML (or CSV written by a previous report) into one host
inventory and writes a host report, a hub-and-spoke topology diagram, a
service summary, a GraphML export, and a CSV inventory. Sections with no
usable data say so instead of failing.

Results come from --input files, from every phase output listed in --plan,
or both.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.report(o)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&o.inputs, "input", nil, "scan result files (nmap XML or netscope CSV), comma separated")
	f.StringVar(&o.planPath, "plan", "", "scan plan whose phase outputs should be read")
	f.StringVar(&o.profilePath, "profile", "", "profile YAML used for the title and authorization stamp")
	f.StringVar(&o.gateway, "gateway", "", "known gateway address (default: .1/.254 heuristic)")
	f.StringVar(&o.macPrefixes, "mac-prefixes", "", "extra MAC vendor prefixes (nmap-mac-prefixes format)")
	f.StringVarP(&o.output, "output", "o", "", "report base path (default derived from the profile or plan)")
	return cmd
}

func (a *app) report(o reportOptions) error {
	inputs := append([]string(nil), o.inputs...)
	var plan *models.ScanPlan
	if o.planPath != "" {
		var err error
		if plan, err = emitter.LoadPlan(o.planPath); err != nil {
			return err
		}
		inputs = append(inputs, planOutputs(plan, filepath.Dir(o.planPath))...)
	}
	if len(inputs) == 0 && plan == nil {
		return errors.New("no results given: use --input or --plan")
	}

	var prof *models.NetworkProfile
	if o.profilePath != "" {
		var err error
		if prof, err = profile.Load(o.profilePath); err != nil {
			return err
		}
	}

	ingestOpts := []recon.IngestOption{}
	if o.gateway != "" {
		addr, err := netutil.ValidateIPv4(o.gateway)
		if err != nil {
			return err
		}
		ingestOpts = append(ingestOpts, recon.WithClassifier(recon.AddressClassifier{
			Address:  addr.String(),
			Fallback: recon.OctetClassifier{},
		}))
	}
	if o.macPrefixes != "" {
		oui, err := loadMACPrefixes(o.macPrefixes)
		if err != nil {
			return err
		}
		ingestOpts = append(ingestOpts, recon.WithOUITable(oui))
	}
	inv := recon.NewIngester(a.logger.Named("recon"), ingestOpts...).Ingest(inputs...)

	engine := catalog.NewEngine(pkgcatalog.NewCatalog())
	if err := engine.Err(); err != nil {
		return fmt.Errorf("load service catalog: %w", err)
	}
	w := report.NewWriter(engine, a.logger.Named("report"))
	switch {
	case prof != nil:
		w.Title = "Customer: " + prof.CustomerName
		w.Unauthorized = !prof.Authorized()
	case plan != nil:
		w.Title = "Customer: " + plan.Customer
		w.Unauthorized = plan.Unauthorized
	}
	if w.Unauthorized {
		pterm.Warning.Println(models.UnauthorizedBanner)
	}

	base := o.output
	if base == "" {
		dir := a.settings.Output.Dir
		switch {
		case o.planPath != "":
			dir = filepath.Dir(o.planPath)
		case len(inputs) > 0:
			dir = filepath.Dir(inputs[0])
		}
		base = a.reportBase(dir, prof, plan)
	}
	outs, err := w.WriteAll(inv, base)
	if renderErr := renderReportOutputs(inv, outs); renderErr != nil {
		return renderErr
	}
	return err
}

func loadMACPrefixes(path string) (*recon.OUITable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mac prefixes: %w", err)
	}
	defer f.Close()
	oui := recon.NewOUITable()
	if _, err := oui.Merge(f); err != nil {
		return nil, err
	}
	return oui, nil
}

// planOutputs lists the phase result files of plan that exist on disk.
func planOutputs(plan *models.ScanPlan, dir string) []string {
	var out []string
	for _, step := range plan.Steps {
		for _, ph := range step.Phases {
			path := ph.OutputFile
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, path)
			}
			if _, err := os.Stat(path); err == nil {
				out = append(out, path)
			}
		}
	}
	return out
}

// reportBase names reports in dir after the engagement when one is known.
func (a *app) reportBase(dir string, prof *models.NetworkProfile, plan *models.ScanPlan) string {
	switch {
	case prof != nil:
		return filepath.Join(dir, slug.ArtifactName(slug.Slugify(prof.CustomerName), "report", prof.CreatedAt))
	case plan != nil:
		return filepath.Join(dir, slug.ArtifactName(plan.Slug, "report", plan.CreatedAt))
	default:
		return filepath.Join(dir, slug.ArtifactName("", "report", a.now()))
	}
}

func renderReportOutputs(inv *models.HostInventory, outs []report.Output) error {
	if !inv.HasData() {
		msg := report.NoDataMarker
		if inv.Err != nil {
			msg += ": " + inv.Err.Error()
		}
		pterm.Warning.Println(msg)
	} else {
		gw := "not identified"
		if inv.Gateway != nil {
			gw = inv.Gateway.Address
		}
		pterm.Info.Printfln("%d host(s), gateway %s", len(inv.Hosts), gw)
		for _, err := range inv.Skipped {
			pterm.Warning.Printfln("result file skipped: %v", err)
		}
	}

	data := pterm.TableData{{"Section", "Path", "Bytes", "Status"}}
	for _, o := range outs {
		status := "ok"
		if o.Err != nil {
			status = o.Err.Error()
		}
		data = append(data, []string{o.Section, o.Path, strconv.Itoa(o.Bytes), status})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
