package emitter

import (
	"fmt"
	"time"

	"github.com/HerbHall/netscope/internal/slug"
	"github.com/HerbHall/netscope/pkg/models"
)

// DefaultScannerPath is used when PlanOptions.ScannerPath is empty.
const DefaultScannerPath = "nmap"

// PlanOptions carries the scanner settings that are not part of a profile.
type PlanOptions struct {
	ScannerPath string
	HostTimeout time.Duration
}

// PhaseNames returns the scanner phases run for a scan type, in order.
// Discovery always comes first so later phases can target live hosts only.
func PhaseNames(t models.ScanType) []string {
	switch t {
	case models.ScanTypeQuick:
		return []string{models.PhaseDiscovery}
	case models.ScanTypeIntense:
		return []string{models.PhaseDiscovery, models.PhasePorts, models.PhaseServices, models.PhaseOS, models.PhaseScripts}
	case models.ScanTypeCustom:
		return []string{models.PhaseDiscovery, models.PhaseCustom}
	default:
		return []string{models.PhaseDiscovery, models.PhasePorts, models.PhaseServices}
	}
}

// TimingFlag maps a timing option to the scanner's timing template.
func TimingFlag(t models.Timing) string {
	switch t {
	case models.TimingPolite:
		return "-T2"
	case models.TimingAggressive:
		return "-T4"
	default:
		return "-T3"
	}
}

// PhaseOutput is the structured result file written by one phase of a step.
func PhaseOutput(outputName, phase string) string {
	return outputName + "_" + phase + ".xml"
}

// LiveHostsFile lists the hosts found up by the discovery phase of a step.
func LiveHostsFile(outputName string) string {
	return outputName + "_live.txt"
}

// PhaseArgs builds the scanner arguments for one phase of a step. The
// scanner binary itself is not included.
func PhaseArgs(phase string, step models.ScanPlanStep, prefs models.ScanPreferences, opts PlanOptions) []string {
	var args []string
	switch phase {
	case models.PhaseDiscovery:
		args = append(args, "-sn")
	case models.PhasePorts:
		switch {
		case prefs.Ports != "":
			args = append(args, "-sS", "-p", prefs.Ports)
		case prefs.Type == models.ScanTypeIntense:
			args = append(args, "-sS", "-p-")
		default:
			args = append(args, "-sS", "--top-ports", "1000")
		}
	case models.PhaseServices:
		args = append(args, "-sV")
		if prefs.Ports != "" {
			args = append(args, "-p", prefs.Ports)
		}
	case models.PhaseOS:
		args = append(args, "-O", "--osscan-guess")
	case models.PhaseScripts:
		args = append(args, "-sC", "-sV", "-O")
		if prefs.Ports != "" {
			args = append(args, "-p", prefs.Ports)
		}
	case models.PhaseCustom:
		args = append(args, prefs.CustomArgs...)
	}

	args = append(args, TimingFlag(prefs.Timing), "--max-retries", "1")
	if opts.HostTimeout > 0 {
		args = append(args, "--host-timeout", fmt.Sprintf("%ds", wholeSeconds(opts.HostTimeout)))
	}
	args = append(args,
		"--excludefile", step.ExclusionFileRef,
		"-oX", PhaseOutput(step.OutputName, phase),
	)
	if phase == models.PhaseDiscovery {
		return append(args, step.CIDR)
	}
	return append(args, "-iL", step.LiveHostsFile)
}

// BuildPlan derives the scan plan for p: one step for the primary network
// followed by one per VLAN, all sharing the same exclusion file. The result
// depends only on p and opts.
func BuildPlan(p *models.NetworkProfile, opts PlanOptions) *models.ScanPlan {
	s := slug.Slugify(p.CustomerName)
	scanner := opts.ScannerPath
	if scanner == "" {
		scanner = DefaultScannerPath
	}
	prefs := p.ScanPreferences
	if prefs.Type == "" {
		prefs.Type = models.ScanTypeStandard
	}
	if prefs.Timing == "" {
		prefs.Timing = models.TimingNormal
	}

	plan := &models.ScanPlan{
		EngagementID:       p.ID,
		Customer:           p.CustomerName,
		Slug:               s,
		CreatedAt:          p.CreatedAt.UTC(),
		Unauthorized:       !p.Authorized(),
		ScanType:           prefs.Type,
		Timing:             prefs.Timing,
		ScannerPath:        scanner,
		ExclusionFile:      ExclusionFileName(p),
		AdditionalNetworks: append([]string(nil), p.AdditionalNetworks...),
	}
	for _, seg := range p.Segments() {
		out := slug.ArtifactName(s, seg.Label, p.CreatedAt)
		step := models.ScanPlanStep{
			SegmentLabel:     seg.Label,
			CIDR:             seg.CIDR,
			ExclusionFileRef: plan.ExclusionFile,
			OutputName:       out,
			LiveHostsFile:    LiveHostsFile(out),
		}
		for _, name := range PhaseNames(prefs.Type) {
			step.Phases = append(step.Phases, models.ScanPhase{
				Name:       name,
				Args:       PhaseArgs(name, step, prefs, opts),
				OutputFile: PhaseOutput(out, name),
			})
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan
}

// wholeSeconds rounds d up so a positive timeout never renders as 0s.
func wholeSeconds(d time.Duration) int64 {
	return int64((d + time.Second - 1) / time.Second)
}
