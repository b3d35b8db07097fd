// Package report renders a host inventory into the engagement reports:
// a detailed host listing, an ASCII topology diagram, a service summary,
// and a GraphML export. Every renderer is a pure function of its input and
// degrades to a labeled no-data section instead of failing.
package report

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/HerbHall/netscope/internal/recon"
	"github.com/HerbHall/netscope/pkg/models"
)

// NoDataMarker labels every section that had nothing to render.
const NoDataMarker = "NO DATA AVAILABLE"

// TopologyNote is printed with every topology rendering.
const TopologyNote = "simplified hub-and-spoke view, not discovered wiring"

func heading(b *strings.Builder, title string) {
	b.WriteString(title)
	b.WriteByte('\n')
	b.WriteString(strings.Repeat("=", len(title)))
	b.WriteString("\n\n")
}

// noData writes the marker and, when known, the reason.
func noData(b *strings.Builder, inv *models.HostInventory) {
	b.WriteString(NoDataMarker)
	switch {
	case inv == nil:
		b.WriteString(": no scan results were loaded")
	case inv.Err != nil:
		b.WriteString(": ")
		b.WriteString(inv.Err.Error())
	default:
		b.WriteString(": no live hosts were found")
	}
	b.WriteByte('\n')
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// portDetail joins product, version, and extra info, e.g. "OpenSSH 8.9p1 (Ubuntu)".
func portDetail(p models.OpenPort) string {
	parts := make([]string, 0, 3)
	if p.Product != "" {
		parts = append(parts, p.Product)
	}
	if p.Version != "" {
		parts = append(parts, p.Version)
	}
	if p.ExtraInfo != "" {
		parts = append(parts, "("+p.ExtraInfo+")")
	}
	return strings.Join(parts, " ")
}

// HostReport lists every host in discovery order with its identity fields
// and a table of open ports sorted by port number.
func HostReport(inv *models.HostInventory) string {
	var b strings.Builder
	heading(&b, "DETAILED HOST REPORT")
	if !inv.HasData() {
		noData(&b, inv)
		return b.String()
	}

	fmt.Fprintf(&b, "%d live host(s)\n", len(inv.Hosts))
	if len(inv.Skipped) > 0 {
		fmt.Fprintf(&b, "Skipped %d result file(s):\n", len(inv.Skipped))
		for _, err := range inv.Skipped {
			fmt.Fprintf(&b, "  - %v\n", err)
		}
	}
	b.WriteByte('\n')
	for i, h := range inv.Hosts {
		title := fmt.Sprintf("Host %d: %s", i+1, h.Address)
		if h.IsGateway {
			title += " [gateway]"
		}
		b.WriteString(title)
		b.WriteByte('\n')
		b.WriteString(strings.Repeat("-", len(title)))
		b.WriteByte('\n')

		osGuess := "-"
		if h.OS != nil {
			osGuess = fmt.Sprintf("%s (%d%%)", h.OS.Name, h.OS.Accuracy)
		}
		fmt.Fprintf(&b, "  Address:  %s\n", h.Address)
		if h.IPv6Address != "" {
			fmt.Fprintf(&b, "  IPv6:     %s\n", h.IPv6Address)
		}
		fmt.Fprintf(&b, "  Hostname: %s\n", orDash(h.Hostname))
		fmt.Fprintf(&b, "  MAC:      %s\n", orDash(h.MACAddress))
		fmt.Fprintf(&b, "  Vendor:   %s\n", orDash(h.Vendor))
		fmt.Fprintf(&b, "  OS:       %s\n", osGuess)

		if len(h.OpenPorts) == 0 {
			b.WriteString("  No open ports found.\n\n")
			continue
		}
		b.WriteByte('\n')
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  PORT\tPROTO\tSERVICE\tVERSION")
		for _, p := range recon.SortedPorts(h.OpenPorts) {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\n", p.Port, p.Protocol, orDash(p.Service), orDash(portDetail(p)))
		}
		_ = tw.Flush()
		b.WriteByte('\n')
	}
	return b.String()
}
