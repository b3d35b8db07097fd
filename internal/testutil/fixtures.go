package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/HerbHall/netscope/pkg/models"
)

// FixedTime is the creation time used by fixtures: 2026-04-20 09:31:00 UTC.
var FixedTime = time.Date(2026, 4, 20, 9, 31, 0, 0, time.UTC)

// NewProfile returns an authorized standard-scan profile for Acme Corp on
// 192.168.1.0/24, suitable for test fixtures.
func NewProfile(opts ...func(*models.NetworkProfile)) *models.NetworkProfile {
	p := &models.NetworkProfile{
		ID:             uuid.New().String(),
		CustomerName:   "Acme Corp",
		PrimaryNetwork: "192.168.1.0/24",
		Authorization: models.Authorization{
			Received:  true,
			Reference: "SOW-0001",
			Timestamp: FixedTime,
		},
		ScanPreferences: models.ScanPreferences{
			Type:   models.ScanTypeStandard,
			Timing: models.TimingNormal,
		},
		CreatedAt: FixedTime,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithCustomer sets the customer name.
func WithCustomer(name string) func(*models.NetworkProfile) {
	return func(p *models.NetworkProfile) { p.CustomerName = name }
}

// WithPrimaryNetwork sets the primary network CIDR.
func WithPrimaryNetwork(cidr string) func(*models.NetworkProfile) {
	return func(p *models.NetworkProfile) { p.PrimaryNetwork = cidr }
}

// WithVLAN appends a VLAN segment.
func WithVLAN(id int, name, network string) func(*models.NetworkProfile) {
	return func(p *models.NetworkProfile) {
		p.VLANs = append(p.VLANs, models.VLAN{ID: id, Name: name, Network: network})
	}
}

// WithExclusion appends an exclusion.
func WithExclusion(target, reason string) func(*models.NetworkProfile) {
	return func(p *models.NetworkProfile) {
		p.Exclusions = append(p.Exclusions, models.Exclusion{Target: target, Reason: reason})
	}
}

// WithAuthorization sets whether authorization was received.
func WithAuthorization(received bool) func(*models.NetworkProfile) {
	return func(p *models.NetworkProfile) {
		p.Authorization.Received = received
		if !received {
			p.Authorization.Reference = ""
		}
	}
}

// WithScanType sets the scan type.
func WithScanType(t models.ScanType) func(*models.NetworkProfile) {
	return func(p *models.NetworkProfile) { p.ScanPreferences.Type = t }
}

// NewHost returns a live host record with no open ports.
func NewHost(opts ...func(*models.HostRecord)) models.HostRecord {
	h := models.HostRecord{
		Address:    "192.168.1.100",
		MACAddress: "00:11:22:33:44:55",
		Hostname:   "test-host",
	}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// WithAddress sets the host IPv4 address.
func WithAddress(addr string) func(*models.HostRecord) {
	return func(h *models.HostRecord) { h.Address = addr }
}

// WithHostname sets the host name.
func WithHostname(name string) func(*models.HostRecord) {
	return func(h *models.HostRecord) { h.Hostname = name }
}

// WithVendor sets the MAC vendor.
func WithVendor(vendor string) func(*models.HostRecord) {
	return func(h *models.HostRecord) { h.Vendor = vendor }
}

// WithPorts appends open TCP ports with the given service names, paired
// positionally: WithPorts(22, "ssh", 80, "http").
func WithPorts(pairs ...any) func(*models.HostRecord) {
	return func(h *models.HostRecord) {
		for i := 0; i+1 < len(pairs); i += 2 {
			port, _ := pairs[i].(int)
			svc, _ := pairs[i+1].(string)
			h.OpenPorts = append(h.OpenPorts, models.OpenPort{Port: port, Protocol: "tcp", Service: svc})
		}
	}
}
