package report

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/HerbHall/netscope/internal/catalog"
	"github.com/HerbHall/netscope/internal/recon"
	pkgcatalog "github.com/HerbHall/netscope/pkg/catalog"
	"github.com/HerbHall/netscope/pkg/models"
)

func sampleInventory() *models.HostInventory {
	inv := &models.HostInventory{Hosts: []models.HostRecord{
		{
			Address:    "192.168.1.1",
			MACAddress: "24:A4:3C:01:02:03",
			Vendor:     "Ubiquiti Networks Inc.",
			Hostname:   "gw.lan",
			OS:         &models.OSGuess{Name: "Linux 4.x", Accuracy: 88},
			OpenPorts: []models.OpenPort{
				{Port: 443, Protocol: "tcp", Service: "https", Product: "lighttpd", Version: "1.4.59"},
				{Port: 53, Protocol: "tcp", Service: "domain", Product: "dnsmasq", Version: "2.80"},
			},
		},
		{
			Address:  "192.168.1.20",
			Hostname: "sql01",
			OpenPorts: []models.OpenPort{
				{Port: 3389, Protocol: "tcp", Service: "ms-wbt-server"},
				{Port: 1433, Protocol: "tcp", Service: "ms-sql-s", Product: "Microsoft SQL Server 2019"},
				{Port: 25, Protocol: "tcp", Service: "smtp", Product: "Postfix smtpd"},
			},
		},
		{Address: "192.168.1.30"},
	}}
	recon.ClassifyGateway(inv, recon.OctetClassifier{})
	return inv
}

func hostsN(n int) *models.HostInventory {
	inv := &models.HostInventory{}
	for i := 0; i < n; i++ {
		inv.Hosts = append(inv.Hosts, models.HostRecord{Address: fmt.Sprintf("10.0.0.%d", 10+i)})
	}
	return inv
}

func newEngine() *catalog.Engine {
	return catalog.NewEngine(pkgcatalog.NewCatalog())
}

func TestHostReport(t *testing.T) {
	out := HostReport(sampleInventory())

	for _, want := range []string{
		"Host 1: 192.168.1.1 [gateway]",
		"Hostname: gw.lan",
		"Vendor:   Ubiquiti Networks Inc.",
		"OS:       Linux 4.x (88%)",
		"Host 3: 192.168.1.30",
		"No open ports found.",
		"MAC:      -",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("host report missing %q", want)
		}
	}
	// Ports are sorted: 53 before 443.
	if strings.Index(out, "  53 ") > strings.Index(out, "  443 ") {
		t.Error("ports not sorted by number")
	}
	if !strings.Contains(out, "lighttpd 1.4.59") {
		t.Error("missing product/version column")
	}
}

func TestHostReport_ListsSkippedFiles(t *testing.T) {
	inv := sampleInventory()
	inv.Skipped = []error{fmt.Errorf("%w: open /tmp/scan-2.xml: no such file or directory", models.ErrMissingScanResults)}
	out := HostReport(inv)

	if !strings.Contains(out, "Skipped 1 result file(s):\n  - ") {
		t.Errorf("host report missing skipped header:\n%s", out)
	}
	if !strings.Contains(out, "/tmp/scan-2.xml") {
		t.Error("skipped entry does not name the file")
	}
	if strings.Index(out, "Skipped 1") > strings.Index(out, "Host 1:") {
		t.Error("skipped files should be listed before the hosts")
	}

	clean := HostReport(sampleInventory())
	if strings.Contains(clean, "Skipped") {
		t.Error("skipped header rendered with nothing skipped")
	}
}

func TestRows(t *testing.T) {
	tests := []struct {
		hosts int
		sizes []int
	}{
		{0, nil},
		{1, []int{1}},
		{3, []int{3}},
		{7, []int{3, 3, 1}},
		{9, []int{3, 3, 3}},
	}
	for _, tt := range tests {
		rows := Rows(hostsN(tt.hosts).Hosts)
		if len(rows) != len(tt.sizes) {
			t.Errorf("Rows(%d) = %d rows, want %d", tt.hosts, len(rows), len(tt.sizes))
			continue
		}
		for i, r := range rows {
			if len(r) != tt.sizes[i] {
				t.Errorf("Rows(%d)[%d] = %d hosts, want %d", tt.hosts, i, len(r), tt.sizes[i])
			}
		}
	}
}

func TestTopologyDiagram_SevenHosts(t *testing.T) {
	inv := hostsN(8)
	inv.Hosts[0].Address = "10.0.0.1"
	recon.ClassifyGateway(inv, recon.OctetClassifier{})

	out := TopologyDiagram(inv)
	if got := strings.Count(out, "row "); got != 3 {
		t.Errorf("rows = %d, want 3\n%s", got, out)
	}
	if !strings.Contains(out, "row 3 (1 host(s))") {
		t.Errorf("last row should hold one host\n%s", out)
	}
	if !strings.Contains(out, "| GATEWAY") || !strings.Contains(out, "| 10.0.0.1") {
		t.Errorf("gateway box missing\n%s", out)
	}
	if strings.Count(out, "Unknown Device") != 8 {
		t.Errorf("want 8 Unknown Device labels (gateway plus 7 hosts)\n%s", out)
	}
	if !strings.Contains(out, TopologyNote) {
		t.Error("diagram must state the hub-and-spoke limitation")
	}
}

func TestTopologyDiagram_PlaceholderHub(t *testing.T) {
	inv := hostsN(2)
	out := TopologyDiagram(inv)
	if !strings.Contains(out, "SWITCH/HUB") {
		t.Errorf("want switch/hub placeholder\n%s", out)
	}
	if strings.Contains(out, "GATEWAY") {
		t.Error("no gateway was classified")
	}
}

func TestTopologyDiagram_LabelPriority(t *testing.T) {
	inv := &models.HostInventory{Hosts: []models.HostRecord{
		{Address: "10.0.0.2", Vendor: "Dell Inc.", Hostname: "ws1"},
		{Address: "10.0.0.3", Hostname: "printer"},
	}}
	out := TopologyDiagram(inv)
	if !strings.Contains(out, "| Dell Inc.") || strings.Contains(out, "| ws1") {
		t.Errorf("vendor should win over hostname\n%s", out)
	}
	if !strings.Contains(out, "| printer") {
		t.Errorf("hostname fallback missing\n%s", out)
	}
}

func TestServiceSummary(t *testing.T) {
	out := ServiceSummary(sampleInventory(), newEngine())

	order := []string{"[web]", "[dns]", "[database]", "[windows-services]", "[mail]"}
	last := -1
	for _, h := range order {
		idx := strings.Index(out, h)
		if idx < 0 {
			t.Errorf("missing category %s\n%s", h, out)
			continue
		}
		if idx < last {
			t.Errorf("category %s out of order", h)
		}
		last = idx
	}
	if strings.Contains(out, "[other]") {
		t.Error("empty category should be omitted")
	}
	for _, want := range []string{
		"192.168.1.1:443/tcp -> lighttpd 1.4.59",
		"192.168.1.20:1433/tcp -> Microsoft SQL Server 2019",
		"192.168.1.20:3389/tcp -> ms-wbt-server",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q", want)
		}
	}
}

func TestGraphML(t *testing.T) {
	data, err := GraphML(sampleInventory(), "Acme Corp")
	if err != nil {
		t.Fatalf("GraphML: %v", err)
	}
	var doc graphMLDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("output is not valid XML: %v", err)
	}
	if len(doc.Graph.Nodes) != 3 {
		t.Errorf("nodes = %d, want 3", len(doc.Graph.Nodes))
	}
	if len(doc.Graph.Edges) != 2 {
		t.Errorf("edges = %d, want 2", len(doc.Graph.Edges))
	}
	for _, e := range doc.Graph.Edges {
		if e.Source != "192.168.1.1" {
			t.Errorf("edge %s source = %q, want gateway", e.ID, e.Source)
		}
	}
	if !strings.HasPrefix(doc.Graph.Desc, "Acme Corp\n") {
		t.Errorf("desc = %q", doc.Graph.Desc)
	}
}

func TestGraphML_Placeholder(t *testing.T) {
	data, err := GraphML(hostsN(2))
	if err != nil {
		t.Fatalf("GraphML: %v", err)
	}
	var doc graphMLDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Graph.Nodes[0].ID != recon.PlaceholderNodeID {
		t.Errorf("hub node = %q, want placeholder", doc.Graph.Nodes[0].ID)
	}
	if len(doc.Graph.Edges) != 2 {
		t.Errorf("edges = %d, want 2", len(doc.Graph.Edges))
	}
}

func TestRenderers_NoData(t *testing.T) {
	invs := map[string]*models.HostInventory{
		"nil":     nil,
		"empty":   {},
		"missing": {Err: fmt.Errorf("%w: open a.xml", models.ErrMissingScanResults)},
		"bad":     {Err: errors.New("scan results malformed")},
	}
	for name, inv := range invs {
		t.Run(name, func(t *testing.T) {
			sections := map[string]string{
				"hosts":    HostReport(inv),
				"topology": TopologyDiagram(inv),
				"services": ServiceSummary(inv, newEngine()),
			}
			g, err := GraphML(inv)
			if err != nil {
				t.Fatalf("GraphML: %v", err)
			}
			sections["graphml"] = string(g)
			for section, out := range sections {
				if !strings.Contains(out, NoDataMarker) {
					t.Errorf("%s section missing %q", section, NoDataMarker)
				}
			}
		})
	}
}

func TestWriter_WriteAll(t *testing.T) {
	base := filepath.Join(t.TempDir(), "out", "acme_20260420_093100")
	w := NewWriter(newEngine(), zap.NewNop())
	w.Title = "Customer: Acme Corp"
	w.Unauthorized = true

	outputs, err := w.WriteAll(sampleInventory(), base)
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(outputs) != 5 {
		t.Fatalf("outputs = %d, want 5", len(outputs))
	}
	for _, o := range outputs {
		data, err := os.ReadFile(o.Path)
		if err != nil {
			t.Errorf("%s: %v", o.Section, err)
			continue
		}
		if !strings.Contains(string(data), models.UnauthorizedBanner) {
			t.Errorf("%s missing unauthorized stamp", o.Section)
		}
	}

	csvData, err := os.ReadFile(base + SuffixCSV)
	if err != nil {
		t.Fatal(err)
	}
	hosts, err := recon.ReadCSV(strings.NewReader(string(csvData)))
	if err != nil {
		t.Fatalf("stamped CSV should still parse: %v", err)
	}
	if len(hosts) != 3 {
		t.Errorf("csv hosts = %d, want 3", len(hosts))
	}
}

func TestWriter_WriteAll_NoData(t *testing.T) {
	base := filepath.Join(t.TempDir(), "empty")
	inv := &models.HostInventory{Err: models.ErrMissingScanResults}

	outputs, err := NewWriter(newEngine(), zap.NewNop()).WriteAll(inv, base)
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	for _, o := range outputs {
		data, err := os.ReadFile(o.Path)
		if err != nil {
			t.Fatalf("%s: %v", o.Section, err)
		}
		if !strings.Contains(string(data), NoDataMarker) {
			t.Errorf("%s missing no-data marker", o.Section)
		}
	}
}
