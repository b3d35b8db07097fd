package recon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/HerbHall/netscope/pkg/models"
)

const discoveryXML = `<?xml version="1.0"?>
<nmaprun startstr="x">
<host><status state="up"/><address addr="10.0.0.5" addrtype="ipv4"/></host>
<host><status state="up"/><address addr="10.0.0.1" addrtype="ipv4"/><address addr="DC:A6:32:00:11:22" addrtype="mac"/></host>
<host><status state="up"/><address addr="10.0.0.9" addrtype="ipv4"/></host>
</nmaprun>`

const servicesXML = `<?xml version="1.0"?>
<nmaprun startstr="y">
<host><status state="up"/><address addr="10.0.0.9" addrtype="ipv4"/>
<hostnames><hostname name="nas.lan"/></hostnames>
<ports><port protocol="tcp" portid="445"><state state="open"/><service name="microsoft-ds" product="Samba smbd" version="4.6.2"/></port></ports>
<os><osmatch name="Linux 5.x" accuracy="90"/></os>
</host>
<host><status state="up"/><address addr="10.0.0.5" addrtype="ipv4"/>
<ports><port protocol="tcp" portid="80"><state state="open"/><service name="http" product="nginx"/></port></ports>
</host>
</nmaprun>`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIngest_MergesPhases(t *testing.T) {
	dir := t.TempDir()
	disc := writeFile(t, dir, "a_discovery.xml", discoveryXML)
	svc := writeFile(t, dir, "a_services.xml", servicesXML)

	inv := NewIngester(zap.NewNop()).Ingest(disc, svc)
	if inv.Err != nil {
		t.Fatalf("Err = %v", inv.Err)
	}
	if len(inv.Hosts) != 3 {
		t.Fatalf("hosts = %d, want 3", len(inv.Hosts))
	}
	order := []string{"10.0.0.5", "10.0.0.1", "10.0.0.9"}
	for i, want := range order {
		if inv.Hosts[i].Address != want {
			t.Errorf("host[%d] = %s, want %s (first-seen order)", i, inv.Hosts[i].Address, want)
		}
	}
	nas := inv.Hosts[2]
	if nas.Hostname != "nas.lan" || nas.OS == nil || len(nas.OpenPorts) != 1 {
		t.Errorf("merged host = %+v", nas)
	}
	if len(inv.Sources) != 2 {
		t.Errorf("Sources = %v", inv.Sources)
	}
}

func TestIngest_VendorFromOUI(t *testing.T) {
	path := writeFile(t, t.TempDir(), "d.xml", discoveryXML)
	inv := NewIngester(zap.NewNop()).Ingest(path)
	if got := inv.Hosts[1].Vendor; got != "Raspberry Pi Trading Ltd" {
		t.Errorf("Vendor = %q, want OUI vendor", got)
	}
}

func TestIngest_ClassifiesGateway(t *testing.T) {
	path := writeFile(t, t.TempDir(), "d.xml", discoveryXML)

	inv := NewIngester(zap.NewNop()).Ingest(path)
	if inv.Gateway == nil || inv.Gateway.Address != "10.0.0.1" {
		t.Fatalf("Gateway = %+v, want 10.0.0.1", inv.Gateway)
	}
	if !inv.Hosts[1].IsGateway {
		t.Error("gateway host not flagged")
	}

	inv = NewIngester(zap.NewNop(), WithClassifier(AddressClassifier{Address: "10.0.0.9"})).Ingest(path)
	if inv.Gateway == nil || inv.Gateway.Address != "10.0.0.9" {
		t.Errorf("Gateway = %+v, want 10.0.0.9", inv.Gateway)
	}
}

func TestIngest_MissingFile(t *testing.T) {
	inv := NewIngester(zap.NewNop()).Ingest(filepath.Join(t.TempDir(), "nope.xml"))
	if !errors.Is(inv.Err, models.ErrMissingScanResults) {
		t.Errorf("Err = %v, want ErrMissingScanResults", inv.Err)
	}
	if inv.HasData() {
		t.Error("inventory should have no data")
	}
}

func TestIngest_MalformedFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.xml", "<nmaprun><host>")
	inv := NewIngester(zap.NewNop()).Ingest(path)
	if !errors.Is(inv.Err, models.ErrMalformedScanResults) {
		t.Errorf("Err = %v, want ErrMalformedScanResults", inv.Err)
	}
}

func TestIngest_NoPaths(t *testing.T) {
	inv := NewIngester(zap.NewNop()).Ingest()
	if !errors.Is(inv.Err, models.ErrMissingScanResults) {
		t.Errorf("Err = %v, want ErrMissingScanResults", inv.Err)
	}
}

func TestIngest_PartialFailureKeepsGoodFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.xml", discoveryXML)
	inv := NewIngester(zap.NewNop()).Ingest(good, filepath.Join(dir, "missing.xml"))
	if inv.Err != nil {
		t.Errorf("Err = %v, want nil when one file parsed", inv.Err)
	}
	if len(inv.Hosts) != 3 {
		t.Errorf("hosts = %d, want 3", len(inv.Hosts))
	}
	if len(inv.Skipped) != 1 || !errors.Is(inv.Skipped[0], models.ErrMissingScanResults) {
		t.Errorf("Skipped = %v, want one missing-results error", inv.Skipped)
	}
	if len(inv.Sources) != 1 || inv.Sources[0] != good {
		t.Errorf("Sources = %v, want only %s", inv.Sources, good)
	}
}

func TestMergeHosts_PortsAndOS(t *testing.T) {
	first := []models.HostRecord{{
		Address:   "10.0.0.2",
		OS:        &models.OSGuess{Name: "Windows", Accuracy: 92},
		OpenPorts: []models.OpenPort{{Port: 80, Protocol: "tcp", Service: "http"}},
	}}
	second := []models.HostRecord{{
		Address: "10.0.0.2",
		OS:      &models.OSGuess{Name: "Linux", Accuracy: 85},
		OpenPorts: []models.OpenPort{
			{Port: 80, Protocol: "tcp", Service: "http", Product: "Apache httpd", Version: "2.4.57"},
			{Port: 53, Protocol: "udp", Service: "domain"},
		},
	}}

	got := MergeHosts(first, second)
	if len(got) != 1 {
		t.Fatalf("hosts = %d, want 1", len(got))
	}
	h := got[0]
	if h.OS.Name != "Windows" {
		t.Errorf("OS = %q, want the more accurate Windows guess", h.OS.Name)
	}
	if len(h.OpenPorts) != 2 {
		t.Fatalf("ports = %d, want 2", len(h.OpenPorts))
	}
	if h.OpenPorts[0].Product != "Apache httpd" || h.OpenPorts[0].Version != "2.4.57" {
		t.Errorf("port 80 = %+v, want product filled in", h.OpenPorts[0])
	}
	if first[0].OpenPorts[0].Product != "" {
		t.Error("MergeHosts modified its input")
	}
}

func TestSortedPorts(t *testing.T) {
	ports := []models.OpenPort{{Port: 443, Protocol: "tcp"}, {Port: 22, Protocol: "tcp"}, {Port: 53, Protocol: "udp"}, {Port: 53, Protocol: "tcp"}}
	got := SortedPorts(ports)
	want := []string{"22/tcp", "53/tcp", "53/udp", "443/tcp"}
	for i, p := range got {
		if s := portKey(p); s != want[i] {
			t.Errorf("port[%d] = %s, want %s", i, s, want[i])
		}
	}
	if ports[0].Port != 443 {
		t.Error("SortedPorts modified its input")
	}
}

func portKey(p models.OpenPort) string {
	return fmt.Sprintf("%d/%s", p.Port, p.Protocol)
}
