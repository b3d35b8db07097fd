package discovery

import (
	"context"
	"fmt"
	"net/netip"
	"slices"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// Interface is a local network interface and its IPv4 assignments.
type Interface struct {
	Name  string
	Flags []string
	Addrs []netip.Prefix
}

// InterfaceSource lists local interfaces.
type InterfaceSource interface {
	Interfaces(ctx context.Context) ([]Interface, error)
}

// ignoredPrefixes name loopback, container, VPN, and hypervisor interfaces
// that never carry the customer network.
var ignoredPrefixes = []string{
	"lo", "docker", "br-", "veth", "virbr", "vmnet", "vboxnet", "cni",
	"flannel", "cali", "kube", "tun", "tap", "wg", "zt", "tailscale",
	"utun", "podman",
}

// Eligible reports whether iface may be the primary interface: up, not
// loopback, not virtual, with at least one IPv4 address.
func Eligible(iface Interface) bool {
	if len(iface.Addrs) == 0 {
		return false
	}
	if !slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") {
		return false
	}
	name := strings.ToLower(iface.Name)
	for _, p := range ignoredPrefixes {
		if strings.HasPrefix(name, p) {
			return false
		}
	}
	return true
}

// SystemInterfaces reads interfaces from the host through gopsutil.
type SystemInterfaces struct{}

// Interfaces returns every interface with its IPv4 prefixes. IPv6 and
// unparsable addresses are skipped.
func (SystemInterfaces) Interfaces(ctx context.Context) ([]Interface, error) {
	stats, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	out := make([]Interface, 0, len(stats))
	for _, st := range stats {
		iface := Interface{Name: st.Name, Flags: st.Flags}
		for _, a := range st.Addrs {
			p, err := netip.ParsePrefix(a.Addr)
			if err != nil || !p.Addr().Is4() {
				continue
			}
			iface.Addrs = append(iface.Addrs, p)
		}
		out = append(out, iface)
	}
	return out, nil
}
