package recon

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/HerbHall/netscope/pkg/models"
)

type nmapRun struct {
	XMLName xml.Name   `xml:"nmaprun"`
	Start   string     `xml:"startstr,attr"`
	Hosts   []nmapHost `xml:"host"`
}

type nmapHost struct {
	Status    nmapStatus    `xml:"status"`
	Addresses []nmapAddress `xml:"address"`
	Hostnames []nmapName    `xml:"hostnames>hostname"`
	Ports     []nmapPort    `xml:"ports>port"`
	OSMatches []nmapOSMatch `xml:"os>osmatch"`
}

type nmapStatus struct {
	State string `xml:"state,attr"`
}

type nmapAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
	Vendor   string `xml:"vendor,attr"`
}

type nmapName struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

type nmapPort struct {
	Protocol string      `xml:"protocol,attr"`
	PortID   int         `xml:"portid,attr"`
	State    nmapState   `xml:"state"`
	Service  nmapService `xml:"service"`
}

type nmapState struct {
	State string `xml:"state,attr"`
}

type nmapService struct {
	Name      string `xml:"name,attr"`
	Product   string `xml:"product,attr"`
	Version   string `xml:"version,attr"`
	ExtraInfo string `xml:"extrainfo,attr"`
}

type nmapOSMatch struct {
	Name     string `xml:"name,attr"`
	Accuracy int    `xml:"accuracy,attr"`
}

// extractXML trims anything the scanner printed around the XML document,
// such as script warnings written to the same stream.
func extractXML(data []byte) []byte {
	start := bytes.Index(data, []byte("<?xml"))
	if start == -1 {
		start = bytes.Index(data, []byte("<nmaprun"))
	}
	if start == -1 {
		return data
	}
	end := bytes.LastIndex(data, []byte("</nmaprun>"))
	if end == -1 || end < start {
		return data[start:]
	}
	return data[start : end+len("</nmaprun>")]
}

// ParseNmapXML reads an nmap XML report and returns every host that is up
// and has an IPv4 address, in scan order. Only open ports are kept and only
// the most accurate OS match is retained.
func ParseNmapXML(r io.Reader) ([]models.HostRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMissingScanResults, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", models.ErrMalformedScanResults)
	}

	var run nmapRun
	if err := xml.Unmarshal(extractXML(data), &run); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedScanResults, err)
	}

	hosts := make([]models.HostRecord, 0, len(run.Hosts))
	for _, h := range run.Hosts {
		if h.Status.State != "up" {
			continue
		}
		rec, ok := hostRecord(h)
		if !ok {
			continue
		}
		hosts = append(hosts, rec)
	}
	return hosts, nil
}

func hostRecord(h nmapHost) (models.HostRecord, bool) {
	var rec models.HostRecord
	for _, a := range h.Addresses {
		switch a.AddrType {
		case "ipv4":
			if rec.Address == "" {
				rec.Address = a.Addr
			}
		case "ipv6":
			if rec.IPv6Address == "" {
				rec.IPv6Address = a.Addr
			}
		case "mac":
			rec.MACAddress = strings.ToUpper(a.Addr)
			rec.Vendor = a.Vendor
		}
	}
	if rec.Address == "" {
		return rec, false
	}

	for _, n := range h.Hostnames {
		if n.Name != "" {
			rec.Hostname = n.Name
			break
		}
	}

	rec.OS = bestOSMatch(h.OSMatches)

	for _, p := range h.Ports {
		if p.State.State != "open" {
			continue
		}
		rec.OpenPorts = append(rec.OpenPorts, models.OpenPort{
			Port:      p.PortID,
			Protocol:  p.Protocol,
			Service:   p.Service.Name,
			Product:   p.Service.Product,
			Version:   p.Service.Version,
			ExtraInfo: p.Service.ExtraInfo,
		})
	}
	return rec, true
}

// bestOSMatch returns the highest-accuracy match. Ties keep the first.
func bestOSMatch(matches []nmapOSMatch) *models.OSGuess {
	var best *models.OSGuess
	for _, m := range matches {
		if m.Name == "" {
			continue
		}
		if best == nil || m.Accuracy > best.Accuracy {
			best = &models.OSGuess{Name: m.Name, Accuracy: m.Accuracy}
		}
	}
	return best
}

// LiveAddresses returns the IPv4 address of every host, in order.
func LiveAddresses(hosts []models.HostRecord) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, h.Address)
	}
	return out
}
