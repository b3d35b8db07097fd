package report

import (
	"fmt"
	"strings"

	"github.com/HerbHall/netscope/internal/catalog"
	"github.com/HerbHall/netscope/internal/recon"
	pkgcatalog "github.com/HerbHall/netscope/pkg/catalog"
	"github.com/HerbHall/netscope/pkg/models"
)

// ServiceLine is one open port in the service summary.
type ServiceLine struct {
	Address string
	Port    models.OpenPort
}

// String renders "address:port -> product version", falling back to the
// service name when the scanner reported no product.
func (l ServiceLine) String() string {
	detail := portDetail(l.Port)
	if detail == "" {
		detail = orDash(l.Port.Service)
	}
	return fmt.Sprintf("%s:%d/%s -> %s", l.Address, l.Port.Port, l.Port.Protocol, detail)
}

// GroupServices buckets every open port by category. Hosts keep discovery
// order and ports are sorted within each host.
func GroupServices(inv *models.HostInventory, engine *catalog.Engine) map[pkgcatalog.Category][]ServiceLine {
	groups := make(map[pkgcatalog.Category][]ServiceLine)
	if inv == nil {
		return groups
	}
	for _, h := range inv.Hosts {
		for _, p := range recon.SortedPorts(h.OpenPorts) {
			c := engine.Categorize(p.Service, p.Port)
			groups[c] = append(groups[c], ServiceLine{Address: h.Address, Port: p})
		}
	}
	return groups
}

// ServiceSummary prints one block per non-empty category in the fixed
// category order.
func ServiceSummary(inv *models.HostInventory, engine *catalog.Engine) string {
	var b strings.Builder
	heading(&b, "SERVICE SUMMARY")
	if !inv.HasData() {
		noData(&b, inv)
		return b.String()
	}

	groups := GroupServices(inv, engine)
	if len(groups) == 0 {
		b.WriteString("No open ports were found on any host.\n")
		return b.String()
	}
	for _, c := range pkgcatalog.Order {
		lines := groups[c]
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "[%s] %d service(s)\n", c, len(lines))
		for _, l := range lines {
			b.WriteString("  ")
			b.WriteString(l.String())
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return b.String()
}
