package recon

import (
	"errors"
	"strings"
	"testing"

	"github.com/HerbHall/netscope/pkg/models"
)

const sampleXML = `Warning: broadcast-profinet: No profinet devices
<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE nmaprun>
<nmaprun scanner="nmap" args="nmap -sV -O" startstr="Mon Apr 20 09:31:00 2026">
<host><status state="up" reason="arp-response"/>
<address addr="192.168.1.1" addrtype="ipv4"/>
<address addr="24:a4:3c:01:02:03" addrtype="mac" vendor="Ubiquiti Networks"/>
<hostnames><hostname name="gw.lan" type="PTR"/><hostname name="router" type="user"/></hostnames>
<ports>
<port protocol="tcp" portid="443"><state state="open"/><service name="https" product="lighttpd" version="1.4.59"/></port>
<port protocol="tcp" portid="22"><state state="open"/><service name="ssh" product="Dropbear sshd" version="2020.81"/></port>
<port protocol="tcp" portid="23"><state state="closed"/><service name="telnet"/></port>
</ports>
</host>
<host><status state="down" reason="no-response"/>
<address addr="192.168.1.2" addrtype="ipv4"/>
</host>
<host><status state="up" reason="arp-response"/>
<address addr="192.168.1.20" addrtype="ipv4"/>
<address addr="fe80::20" addrtype="ipv6"/>
<address addr="00:50:56:aa:bb:cc" addrtype="mac"/>
<ports>
<port protocol="tcp" portid="3389"><state state="open"/><service name="ms-wbt-server" product="Microsoft Terminal Services" extrainfo="RDP"/></port>
<port protocol="tcp" portid="445"><state state="filtered"/><service name="microsoft-ds"/></port>
</ports>
<os>
<osmatch name="Linux 5.4" accuracy="85"/>
<osmatch name="Microsoft Windows Server 2019" accuracy="92"/>
<osmatch name="Microsoft Windows 10" accuracy="92"/>
</os>
</host>
<host><status state="up"/>
<address addr="fe80::99" addrtype="ipv6"/>
</host>
</nmaprun>
NSE: script post-scanning done.`

func TestParseNmapXML(t *testing.T) {
	hosts, err := ParseNmapXML(strings.NewReader(sampleXML))
	if err != nil {
		t.Fatalf("ParseNmapXML: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("hosts = %d, want 2 (down and IPv6-only hosts skipped)", len(hosts))
	}

	gw := hosts[0]
	if gw.Address != "192.168.1.1" {
		t.Errorf("Address = %q, want 192.168.1.1", gw.Address)
	}
	if gw.MACAddress != "24:A4:3C:01:02:03" || gw.Vendor != "Ubiquiti Networks" {
		t.Errorf("MAC/vendor = %q/%q", gw.MACAddress, gw.Vendor)
	}
	if gw.Hostname != "gw.lan" {
		t.Errorf("Hostname = %q, want first entry gw.lan", gw.Hostname)
	}
	if len(gw.OpenPorts) != 2 {
		t.Fatalf("open ports = %d, want 2 (closed port skipped)", len(gw.OpenPorts))
	}
	if p := gw.OpenPorts[0]; p.Port != 443 || p.Service != "https" || p.Product != "lighttpd" || p.Version != "1.4.59" {
		t.Errorf("port[0] = %+v", p)
	}
	if gw.OS != nil {
		t.Errorf("OS = %+v, want nil", gw.OS)
	}

	win := hosts[1]
	if win.IPv6Address != "fe80::20" {
		t.Errorf("IPv6Address = %q", win.IPv6Address)
	}
	if win.Vendor != "" {
		t.Errorf("Vendor = %q, want empty before OUI lookup", win.Vendor)
	}
	if len(win.OpenPorts) != 1 || win.OpenPorts[0].ExtraInfo != "RDP" {
		t.Errorf("open ports = %+v", win.OpenPorts)
	}
}

func TestBestOSMatch(t *testing.T) {
	tests := []struct {
		name    string
		matches []nmapOSMatch
		want    *models.OSGuess
	}{
		{"none", nil, nil},
		{
			"highest accuracy wins",
			[]nmapOSMatch{{"Linux", 85}, {"Windows", 92}},
			&models.OSGuess{Name: "Windows", Accuracy: 92},
		},
		{
			"tie keeps first",
			[]nmapOSMatch{{"Windows Server 2019", 92}, {"Windows 10", 92}, {"Linux", 85}},
			&models.OSGuess{Name: "Windows Server 2019", Accuracy: 92},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bestOSMatch(tt.matches)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("bestOSMatch = %+v, want nil", got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("bestOSMatch = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseNmapXML_OSTieBreak(t *testing.T) {
	hosts, err := ParseNmapXML(strings.NewReader(sampleXML))
	if err != nil {
		t.Fatal(err)
	}
	got := hosts[1].OS
	if got == nil || got.Name != "Microsoft Windows Server 2019" || got.Accuracy != 92 {
		t.Errorf("OS = %+v, want Microsoft Windows Server 2019 (92)", got)
	}
}

func TestParseNmapXML_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"whitespace", "  \n"},
		{"truncated", `<?xml version="1.0"?><nmaprun><host><status state="up"/>`},
		{"not xml", "Starting Nmap 7.94\nNote: Host seems down."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseNmapXML(strings.NewReader(tt.in))
			if !errors.Is(err, models.ErrMalformedScanResults) {
				t.Errorf("err = %v, want ErrMalformedScanResults", err)
			}
		})
	}
}

func TestParseNmapXML_NoHosts(t *testing.T) {
	hosts, err := ParseNmapXML(strings.NewReader(`<?xml version="1.0"?><nmaprun startstr="x"></nmaprun>`))
	if err != nil {
		t.Fatalf("ParseNmapXML: %v", err)
	}
	if len(hosts) != 0 {
		t.Errorf("hosts = %d, want 0", len(hosts))
	}
}

func TestExtractXML(t *testing.T) {
	got := string(extractXML([]byte("noise\n<nmaprun></nmaprun>\ntrailer")))
	if got != "<nmaprun></nmaprun>" {
		t.Errorf("extractXML = %q", got)
	}
}

func TestLiveAddresses(t *testing.T) {
	hosts := []models.HostRecord{{Address: "10.0.0.1"}, {Address: "10.0.0.7"}}
	if got := strings.Join(LiveAddresses(hosts), ","); got != "10.0.0.1,10.0.0.7" {
		t.Errorf("LiveAddresses = %q", got)
	}
}
