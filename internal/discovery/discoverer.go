// Package discovery finds the local network a laptop is plugged into and
// turns it into a minimal network profile.
package discovery

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/netscope/internal/netutil"
	"github.com/HerbHall/netscope/pkg/models"
)

// Gateway sources recorded in Discovery.GatewaySource.
const (
	GatewayFromRoute    = "route"
	GatewayConventional = "assumed"
)

// ScanChoices are the scan types offered after discovery.
var ScanChoices = []string{"quick", "port-scan", "intense"}

// ParseScanChoice maps a discovery scan choice to a scan type.
func ParseScanChoice(s string) (models.ScanType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quick":
		return models.ScanTypeQuick, nil
	case "port-scan", "standard":
		return models.ScanTypeStandard, nil
	case "intense":
		return models.ScanTypeIntense, nil
	}
	return "", fmt.Errorf("unknown scan choice %q", s)
}

// Discovery describes the primary local network.
type Discovery struct {
	Interface        string
	Address          netip.Addr
	Prefix           netip.Prefix
	Network          netip.Prefix
	Gateway          netip.Addr
	GatewaySource    string
	HostCount        int
	Bucket           netutil.DurationBucket
	// GatewayCheck is nil unless the gateway was pinged.
	GatewayCheck *Reachability
}

// Discoverer finds the primary network from local interface and route data.
type Discoverer struct {
	ifaces      InterfaceSource
	routes      RouteSource
	checker     Checker
	pingGateway bool
	logger      *zap.Logger
}

// Option customizes a Discoverer.
type Option func(*Discoverer)

// WithGatewayCheck pings the discovered gateway with c.
func WithGatewayCheck(c Checker) Option {
	return func(p *Discoverer) {
		p.checker = c
		p.pingGateway = c != nil
	}
}

// NewDiscoverer creates a Discoverer reading from the given sources.
func NewDiscoverer(ifaces InterfaceSource, routes RouteSource, logger *zap.Logger, opts ...Option) *Discoverer {
	p := &Discoverer{ifaces: ifaces, routes: routes, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SelectPrimary picks the interface that owns the default route, or the
// first eligible interface when no default route matches. It returns
// models.ErrNoNetworkInterface when no interface holds an IPv4 address.
func SelectPrimary(ifaces []Interface, routes []Route) (Interface, *Route, error) {
	var eligible []Interface
	for _, iface := range ifaces {
		if Eligible(iface) {
			eligible = append(eligible, iface)
		}
	}
	if len(eligible) == 0 {
		return Interface{}, nil, models.ErrNoNetworkInterface
	}
	if def, ok := DefaultRoute(routes); ok {
		for _, iface := range eligible {
			if iface.Name == def.Iface {
				return iface, &def, nil
			}
		}
	}
	return eligible[0], nil, nil
}

// Discover enumerates interfaces, selects the primary one, and computes
// its network and gateway. A missing route table is not an error.
func (p *Discoverer) Discover(ctx context.Context) (*Discovery, error) {
	ifaces, err := p.ifaces.Interfaces(ctx)
	if err != nil {
		return nil, err
	}
	var routes []Route
	if p.routes != nil {
		routes, err = p.routes.Routes()
		if err != nil {
			p.logger.Debug("route table unavailable", zap.Error(err))
		}
	}

	iface, def, err := SelectPrimary(ifaces, routes)
	if err != nil {
		return nil, err
	}

	addr := iface.Addrs[0]
	network, err := netutil.NetworkAddress(addr.Addr(), addr.Bits())
	if err != nil {
		return nil, err
	}
	hosts := netutil.EstimateHostCount(network.Bits())
	d := &Discovery{
		Interface: iface.Name,
		Address:   addr.Addr(),
		Prefix:    addr,
		Network:   network,
		HostCount: hosts,
		Bucket:    netutil.EstimateDurationBucket(hosts),
	}
	if def != nil {
		d.Gateway = def.Gateway
		d.GatewaySource = GatewayFromRoute
	} else {
		d.Gateway = netutil.GatewayAddress(network)
		d.GatewaySource = GatewayConventional
	}

	if p.pingGateway && d.Gateway.IsValid() {
		res, err := p.checker.Check(ctx, d.Gateway)
		if err != nil {
			res = Reachability{Gateway: d.Gateway, Reason: err.Error()}
			p.logger.Warn("gateway check failed", zap.String("gateway", d.Gateway.String()), zap.Error(err))
		} else if !res.Reachable() {
			p.logger.Warn("gateway did not answer", zap.String("gateway", d.Gateway.String()),
				zap.String("reason", res.Reason))
		}
		d.GatewayCheck = &res
	}

	p.logger.Info("discovered primary network",
		zap.String("interface", d.Interface),
		zap.String("network", d.Network.String()),
		zap.String("gateway", d.Gateway.String()),
		zap.String("gateway_source", d.GatewaySource),
		zap.Int("hosts", d.HostCount),
		zap.String("duration", string(d.Bucket)),
	)
	return d, nil
}

// ToProfile builds a minimal profile for the discovered network: a single
// primary network, no VLANs, and authorization not yet confirmed.
func (d *Discovery) ToProfile(customer string, scanType models.ScanType, now time.Time) *models.NetworkProfile {
	now = now.UTC()
	return &models.NetworkProfile{
		ID:             uuid.New().String(),
		CustomerName:   customer,
		Authorization:  models.Authorization{Timestamp: now},
		PrimaryNetwork: d.Network.String(),
		ScanPreferences: models.ScanPreferences{
			Type:   scanType,
			Timing: models.TimingNormal,
		},
		Notes:     fmt.Sprintf("auto-discovered on %s (gateway %s, %s)", d.Interface, d.Gateway, d.GatewaySource),
		CreatedAt: now,
	}
}
