package models

import "time"

// Scanner phase names, in execution order.
const (
	PhaseDiscovery = "discovery"
	PhasePorts     = "ports"
	PhaseServices  = "services"
	PhaseOS        = "os"
	PhaseScripts   = "scripts"
	PhaseCustom    = "custom"
)

// ScanPhase is one blocking scanner invocation within a step.
type ScanPhase struct {
	Name       string   `yaml:"name" json:"name"`
	Args       []string `yaml:"args" json:"args"`
	OutputFile string   `yaml:"output_file" json:"output_file"`
}

// ScanPlanStep scans one network segment.
type ScanPlanStep struct {
	SegmentLabel     string      `yaml:"segment_label" json:"segment_label"`
	CIDR             string      `yaml:"cidr" json:"cidr"`
	ExclusionFileRef string      `yaml:"exclusion_file_ref" json:"exclusion_file_ref"`
	OutputName       string      `yaml:"output_name" json:"output_name"`
	LiveHostsFile    string      `yaml:"live_hosts_file" json:"live_hosts_file"`
	Phases           []ScanPhase `yaml:"phases" json:"phases"`
}

// ScanPlan is the ordered list of steps derived from a profile.
type ScanPlan struct {
	EngagementID       string         `yaml:"engagement_id" json:"engagement_id"`
	Customer           string         `yaml:"customer" json:"customer"`
	Slug               string         `yaml:"slug" json:"slug"`
	CreatedAt          time.Time      `yaml:"created_at" json:"created_at"`
	Unauthorized       bool           `yaml:"unauthorized" json:"unauthorized"`
	ScanType           ScanType       `yaml:"scan_type" json:"scan_type"`
	Timing             Timing         `yaml:"timing" json:"timing"`
	ScannerPath        string         `yaml:"scanner_path" json:"scanner_path"`
	ExclusionFile      string         `yaml:"exclusion_file" json:"exclusion_file"`
	AdditionalNetworks []string       `yaml:"additional_networks,omitempty" json:"additional_networks,omitempty"`
	Steps              []ScanPlanStep `yaml:"steps" json:"steps"`
}
