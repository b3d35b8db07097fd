package models

// OSGuess is the operating system match retained for a host.
type OSGuess struct {
	Name     string `json:"name"`
	Accuracy int    `json:"accuracy"`
}

// OpenPort is a port the scanner reported in the open state.
type OpenPort struct {
	Port      int    `json:"port"`
	Protocol  string `json:"protocol"`
	Service   string `json:"service"`
	Product   string `json:"product,omitempty"`
	Version   string `json:"version,omitempty"`
	ExtraInfo string `json:"extra_info,omitempty"`
}

// HostRecord is one live device parsed from scanner output.
type HostRecord struct {
	Address     string     `json:"address"`
	IPv6Address string     `json:"ipv6_address,omitempty"`
	MACAddress  string     `json:"mac_address,omitempty"`
	Vendor      string     `json:"vendor,omitempty"`
	Hostname    string     `json:"hostname,omitempty"`
	OS          *OSGuess   `json:"os_guess,omitempty"`
	OpenPorts   []OpenPort `json:"open_ports,omitempty"`
	IsGateway   bool       `json:"is_gateway"`
}

// DisplayName returns vendor, hostname, or "Unknown Device" in that priority.
func (h HostRecord) DisplayName() string {
	switch {
	case h.Vendor != "":
		return h.Vendor
	case h.Hostname != "":
		return h.Hostname
	default:
		return "Unknown Device"
	}
}

// HostInventory is the set of hosts from one ingestion pass.
// Err is set when the underlying results were missing or unparsable;
// renderers treat a non-nil Err as "no data".
type HostInventory struct {
	Hosts   []HostRecord `json:"hosts"`
	Gateway *HostRecord  `json:"gateway,omitempty"`
	Sources []string     `json:"sources,omitempty"`
	// Skipped holds one error per result file that could not be read while
	// other files could. Err is set instead when nothing was readable.
	Skipped []error `json:"-"`
	Err     error   `json:"-"`
}

// HasData reports whether the inventory can be rendered.
func (inv *HostInventory) HasData() bool {
	return inv != nil && inv.Err == nil && len(inv.Hosts) > 0
}

// Members returns every host except the classified gateway, in discovery order.
func (inv *HostInventory) Members() []HostRecord {
	if inv == nil {
		return nil
	}
	out := make([]HostRecord, 0, len(inv.Hosts))
	for _, h := range inv.Hosts {
		if h.IsGateway {
			continue
		}
		out = append(out, h)
	}
	return out
}
