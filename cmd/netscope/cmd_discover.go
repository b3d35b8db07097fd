package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/HerbHall/netscope/internal/discovery"
	"github.com/HerbHall/netscope/internal/profile"
	"github.com/HerbHall/netscope/pkg/models"
)

// pingCount is how many echo requests the gateway check sends.
const pingCount = 2

func newDiscoverCmd(a *app) *cobra.Command {
	var (
		customer string
		scan     string
		answers  string
		noPing   bool
		routes   string
	)
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Detect the local network and emit a minimal scan plan for it",
		Long: `discover finds the interface that carries the default route, derives its
network, estimated host count, and gateway, and builds a single-network
profile from it. When no usable interface exists it offers the manual
configure session instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prompter, err := newPrompter(answers)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var opts []discovery.Option
			if a.settings.Discovery.PingGateway && !noPing {
				opts = append(opts, discovery.WithGatewayCheck(
					discovery.NewICMPChecker(a.settings.Discovery.PingTimeout, pingCount)))
			}
			disc := discovery.NewDiscoverer(discovery.SystemInterfaces{}, discovery.ProcRoutes{Path: routes},
				a.logger.Named("discovery"), opts...)

			d, err := disc.Discover(ctx)
			if errors.Is(err, models.ErrNoNetworkInterface) {
				return a.offerManualConfigure(cmd, prompter)
			}
			if err != nil {
				return err
			}
			if err := renderDiscovery(d); err != nil {
				return err
			}

			p, err := discoveredProfile(d, prompter, customer, scan, a)
			if err != nil {
				if errors.Is(err, models.ErrSessionAborted) {
					pterm.Warning.Println("discovery aborted, nothing was written")
					return exitCodeError{code: 1}
				}
				return err
			}
			_, err = a.emitAndRecord(ctx, p)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&customer, "customer", "", "customer name (prompted when empty)")
	f.StringVar(&scan, "scan", "", "scan type: "+strings.Join(discovery.ScanChoices, ", ")+" (prompted when empty)")
	f.StringVar(&answers, "answers", "", "file with one answer per line (batch mode)")
	f.BoolVar(&noPing, "no-ping", false, "skip the gateway reachability check")
	f.StringVar(&routes, "route-table", "", "route table file (default /proc/net/route)")
	return cmd
}

func (a *app) offerManualConfigure(cmd *cobra.Command, prompter profile.Prompter) error {
	pterm.Warning.Println("No network interface with an assigned address was found.")
	pterm.Info.Println("Use `netscope configure` to enter the network details manually.")
	ok, err := prompter.Confirm("Start manual configuration now?", true)
	if err != nil || !ok {
		return nil
	}
	return a.configure(cmd, prompter)
}

func renderDiscovery(d *discovery.Discovery) error {
	reach := "not checked"
	if c := d.GatewayCheck; c != nil {
		reach = "no answer: " + c.Reason
		if c.Reachable() {
			reach = fmt.Sprintf("reachable, %d/%d replies, avg %s",
				c.Received, c.Sent, c.AvgRTT.Round(time.Microsecond))
		}
	}
	data := pterm.TableData{
		{"Interface", d.Interface},
		{"Address", d.Prefix.String()},
		{"Network", d.Network.String()},
		{"Gateway", fmt.Sprintf("%s (%s, %s)", d.Gateway, d.GatewaySource, reach)},
		{"Hosts", strconv.Itoa(d.HostCount)},
		{"Estimated duration", string(d.Bucket)},
	}
	return pterm.DefaultTable.WithData(data).Render()
}

// discoveredProfile asks for whatever the flags did not supply and builds
// the profile for d.
func discoveredProfile(d *discovery.Discovery, prompter profile.Prompter, customer, scan string, a *app) (*models.NetworkProfile, error) {
	var err error
	for strings.TrimSpace(customer) == "" {
		if customer, err = prompter.Ask("Customer name", ""); err != nil {
			return nil, err
		}
		if strings.TrimSpace(customer) == "" {
			prompter.Warn("customer name is required")
		}
	}

	var scanType models.ScanType
	for scanType == "" {
		if scan == "" {
			if scan, err = prompter.Select("Scan type", discovery.ScanChoices, discovery.ScanChoices[0]); err != nil {
				return nil, err
			}
		}
		if scanType, err = discovery.ParseScanChoice(scan); err != nil {
			prompter.Warn(err.Error())
			scan = ""
		}
	}

	p := d.ToProfile(strings.TrimSpace(customer), scanType, a.now())
	received, err := prompter.Confirm("Has written authorization to scan this network been received?", false)
	if err != nil {
		return nil, err
	}
	p.Authorization.Received = received
	if received {
		if p.Authorization.Reference, err = prompter.Ask("Authorization reference (optional)", ""); err != nil {
			return nil, err
		}
	}
	return p, nil
}
