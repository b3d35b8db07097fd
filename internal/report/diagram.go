package report

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/HerbHall/netscope/internal/recon"
	"github.com/HerbHall/netscope/pkg/models"
)

const (
	// HostsPerRow is how many host boxes share a diagram row.
	HostsPerRow = 3
	boxInner    = 20
	trunkIndent = "    "
)

// Rows splits hosts into left-to-right groups of HostsPerRow.
func Rows(hosts []models.HostRecord) [][]models.HostRecord {
	var rows [][]models.HostRecord
	for start := 0; start < len(hosts); start += HostsPerRow {
		end := min(start+HostsPerRow, len(hosts))
		rows = append(rows, hosts[start:end])
	}
	return rows
}

func fit(s string) string {
	if utf8.RuneCountInString(s) > boxInner {
		r := []rune(s)
		s = string(r[:boxInner-1]) + "~"
	}
	return s + strings.Repeat(" ", boxInner-utf8.RuneCountInString(s))
}

// box draws lines inside a fixed-width frame.
func box(lines ...string) []string {
	edge := "+" + strings.Repeat("-", boxInner+2) + "+"
	out := []string{edge}
	for _, l := range lines {
		out = append(out, "| "+fit(l)+" |")
	}
	return append(out, edge)
}

// sideBySide joins boxes of equal height with one space between them.
func sideBySide(boxes [][]string) []string {
	if len(boxes) == 0 {
		return nil
	}
	out := make([]string, len(boxes[0]))
	for i := range out {
		parts := make([]string, len(boxes))
		for j, bx := range boxes {
			parts[j] = bx[i]
		}
		out[i] = strings.Join(parts, " ")
	}
	return out
}

func writeLines(b *strings.Builder, prefix string, lines []string) {
	for _, l := range lines {
		b.WriteString(strings.TrimRight(prefix+l, " "))
		b.WriteByte('\n')
	}
}

// TopologyDiagram draws the external node, the gateway (or a generic
// switch/hub placeholder when none was classified), and the remaining
// hosts in rows of HostsPerRow. Each host box shows its address and its
// vendor, hostname, or "Unknown Device".
func TopologyDiagram(inv *models.HostInventory) string {
	var b strings.Builder
	heading(&b, "NETWORK TOPOLOGY")
	fmt.Fprintf(&b, "Note: %s. Every host is drawn below the assumed gateway because\n", TopologyNote)
	b.WriteString("scanner results carry no layer-2 adjacency data.\n\n")
	if !inv.HasData() {
		noData(&b, inv)
		return b.String()
	}

	topo := recon.InferTopology(inv)

	writeLines(&b, "", box("INTERNET / WAN"))
	writeLines(&b, "", []string{trunkIndent + "|"})
	if topo.Hub.Host != nil {
		writeLines(&b, "", box("GATEWAY", topo.Hub.Host.Address, topo.Hub.Host.DisplayName()))
	} else {
		writeLines(&b, "", box("SWITCH/HUB", "(gateway not identified)"))
	}

	members := inv.Members()
	if len(members) == 0 {
		b.WriteString("\nNo other hosts were found.\n")
		return b.String()
	}

	rows := Rows(members)
	writeLines(&b, trunkIndent, []string{"|"})
	for i, row := range rows {
		last := i == len(rows)-1
		branch, cont := "+-- ", "|   "
		if last {
			branch, cont = "`-- ", "    "
		}
		writeLines(&b, trunkIndent, []string{fmt.Sprintf("%srow %d (%d host(s))", branch, i+1, len(row))})

		boxes := make([][]string, len(row))
		for j, h := range row {
			boxes[j] = box(h.Address, h.DisplayName())
		}
		writeLines(&b, trunkIndent+cont, sideBySide(boxes))
		if !last {
			writeLines(&b, trunkIndent, []string{"|"})
		}
	}
	return b.String()
}
