package models

import (
	"fmt"
	"time"
)

// ScanType selects which scanner phases a plan step runs.
type ScanType string

const (
	ScanTypeQuick    ScanType = "quick"
	ScanTypeStandard ScanType = "standard"
	ScanTypeIntense  ScanType = "intense"
	ScanTypeCustom   ScanType = "custom"
)

// ScanTypes lists the scan types in the order offered to operators.
var ScanTypes = []ScanType{ScanTypeQuick, ScanTypeStandard, ScanTypeIntense, ScanTypeCustom}

// Valid reports whether t is a known scan type.
func (t ScanType) Valid() bool {
	switch t {
	case ScanTypeQuick, ScanTypeStandard, ScanTypeIntense, ScanTypeCustom:
		return true
	}
	return false
}

// Timing controls scanner pacing.
type Timing string

const (
	TimingPolite     Timing = "polite"
	TimingNormal     Timing = "normal"
	TimingAggressive Timing = "aggressive"
)

// Timings lists the timing options in the order offered to operators.
var Timings = []Timing{TimingPolite, TimingNormal, TimingAggressive}

// Valid reports whether t is a known timing option.
func (t Timing) Valid() bool {
	switch t {
	case TimingPolite, TimingNormal, TimingAggressive:
		return true
	}
	return false
}

// UnauthorizedBanner is stamped on every artifact derived from a profile
// whose authorization was not received.
const UnauthorizedBanner = "WARNING: UNAUTHORIZED ENGAGEMENT - written authorization was not recorded for this profile"

// Authorization records whether the customer authorized the engagement.
type Authorization struct {
	Received  bool      `yaml:"received" json:"received"`
	Reference string    `yaml:"reference,omitempty" json:"reference,omitempty"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
}

// VLAN is a tagged network segment scanned as its own plan step.
type VLAN struct {
	ID      int    `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Network string `yaml:"network" json:"network"`
	Gateway string `yaml:"gateway,omitempty" json:"gateway,omitempty"`
}

// Label returns the segment label used in plan steps and artifact names.
func (v VLAN) Label() string {
	return fmt.Sprintf("vlan_%d", v.ID)
}

// Exclusion is an address or range the scanner must skip.
type Exclusion struct {
	Target string `yaml:"target" json:"target"`
	Reason string `yaml:"reason" json:"reason"`
}

// ScanPreferences holds the operator's scan intensity choices.
type ScanPreferences struct {
	Type        ScanType   `yaml:"type" json:"type"`
	Timing      Timing     `yaml:"timing" json:"timing"`
	ScheduledAt *time.Time `yaml:"scheduled_at,omitempty" json:"scheduled_at,omitempty"`
	Ports       string     `yaml:"ports,omitempty" json:"ports,omitempty"`
	CustomArgs  []string   `yaml:"custom_args,omitempty" json:"custom_args,omitempty"`
}

// NetworkProfile is the full description of one customer engagement.
type NetworkProfile struct {
	ID                 string          `yaml:"id" json:"id"`
	CustomerName       string          `yaml:"customer_name" json:"customer_name"`
	CustomerID         string          `yaml:"customer_id,omitempty" json:"customer_id,omitempty"`
	ContactName        string          `yaml:"contact_name,omitempty" json:"contact_name,omitempty"`
	ContactEmail       string          `yaml:"contact_email,omitempty" json:"contact_email,omitempty"`
	Authorization      Authorization   `yaml:"authorization" json:"authorization"`
	PrimaryNetwork     string          `yaml:"primary_network" json:"primary_network"`
	AdditionalNetworks []string        `yaml:"additional_networks,omitempty" json:"additional_networks,omitempty"`
	VLANs              []VLAN          `yaml:"vlans,omitempty" json:"vlans,omitempty"`
	Exclusions         []Exclusion     `yaml:"exclusions,omitempty" json:"exclusions,omitempty"`
	ScanPreferences    ScanPreferences `yaml:"scan_preferences" json:"scan_preferences"`
	Notes              string          `yaml:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt          time.Time       `yaml:"created_at" json:"created_at"`
}

// Authorized reports whether written authorization was recorded.
func (p *NetworkProfile) Authorized() bool {
	return p.Authorization.Received
}

// Segment is one scannable network range of a profile.
type Segment struct {
	Label string
	CIDR  string
}

// PrimaryLabel is the segment label of the primary network.
const PrimaryLabel = "primary"

// Segments returns the primary network followed by each VLAN in declaration order.
func (p *NetworkProfile) Segments() []Segment {
	segs := make([]Segment, 0, len(p.VLANs)+1)
	segs = append(segs, Segment{Label: PrimaryLabel, CIDR: p.PrimaryNetwork})
	for _, v := range p.VLANs {
		segs = append(segs, Segment{Label: v.Label(), CIDR: v.Network})
	}
	return segs
}
