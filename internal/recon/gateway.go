package recon

import (
	"net/netip"

	"github.com/HerbHall/netscope/pkg/models"
)

// GatewayClassifier picks the host most likely to be the network gateway.
// It returns the index into hosts, or -1 when no host qualifies.
type GatewayClassifier interface {
	Classify(hosts []models.HostRecord) int
}

// OctetClassifier selects the first host, in scan order, whose address ends
// in .1 or .254. It is a guess based on addressing convention only.
type OctetClassifier struct{}

// Classify implements GatewayClassifier.
func (OctetClassifier) Classify(hosts []models.HostRecord) int {
	for i, h := range hosts {
		addr, err := netip.ParseAddr(h.Address)
		if err != nil || !addr.Is4() {
			continue
		}
		last := addr.As4()[3]
		if last == 1 || last == 254 {
			return i
		}
	}
	return -1
}

// AddressClassifier selects the host with a known gateway address, for
// example the default route's next hop. When no host matches it defers to
// Fallback, if set.
type AddressClassifier struct {
	Address  string
	Fallback GatewayClassifier
}

// Classify implements GatewayClassifier.
func (c AddressClassifier) Classify(hosts []models.HostRecord) int {
	if c.Address != "" {
		for i, h := range hosts {
			if h.Address == c.Address {
				return i
			}
		}
	}
	if c.Fallback != nil {
		return c.Fallback.Classify(hosts)
	}
	return -1
}

// ClassifyGateway marks at most one host of inv as gateway using c.
func ClassifyGateway(inv *models.HostInventory, c GatewayClassifier) {
	inv.Gateway = nil
	for i := range inv.Hosts {
		inv.Hosts[i].IsGateway = false
	}
	if c == nil {
		return
	}
	idx := c.Classify(inv.Hosts)
	if idx < 0 || idx >= len(inv.Hosts) {
		return
	}
	inv.Hosts[idx].IsGateway = true
	gw := inv.Hosts[idx]
	inv.Gateway = &gw
}
