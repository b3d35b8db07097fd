// Package emitter turns a completed network profile into engagement
// artifacts: the saved profile, the scanner exclusion file, and the scan
// plan as both a bash script and YAML.
package emitter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/HerbHall/netscope/internal/profile"
	"github.com/HerbHall/netscope/internal/slug"
	"github.com/HerbHall/netscope/pkg/models"
)

// Artifacts lists the files written for one engagement.
type Artifacts struct {
	Dir        string
	Profile    string
	Exclusions string
	Script     string
	PlanFile   string
	Plan       *models.ScanPlan
}

// Emitter writes engagement artifacts under OutputDir.
type Emitter struct {
	OutputDir   string
	ScannerPath string
	HostTimeout time.Duration
	Logger      *zap.Logger
}

// New creates an Emitter.
func New(outputDir, scannerPath string, hostTimeout time.Duration, logger *zap.Logger) *Emitter {
	return &Emitter{
		OutputDir:   outputDir,
		ScannerPath: scannerPath,
		HostTimeout: hostTimeout,
		Logger:      logger,
	}
}

// ExclusionFileName is the exclusion artifact name for p.
func ExclusionFileName(p *models.NetworkProfile) string {
	return slug.ArtifactName(slug.Slugify(p.CustomerName), "exclusions", p.CreatedAt) + ".txt"
}

// EngagementDir is the directory holding every artifact of p.
func EngagementDir(outputDir string, p *models.NetworkProfile) string {
	s := slug.Slugify(p.CustomerName)
	if s == "" {
		s = slug.Fallback
	}
	return filepath.Join(outputDir, s+"_"+slug.Stamp(p.CreatedAt))
}

// Emit writes the profile, exclusion list, and scan plan for p, in that
// order. Regenerating from the same profile overwrites with identical bytes.
func (e *Emitter) Emit(p *models.NetworkProfile) (*Artifacts, error) {
	if err := profile.Validate(p); err != nil {
		return nil, fmt.Errorf("emit artifacts: %w", err)
	}

	s := slug.Slugify(p.CustomerName)
	dir := EngagementDir(e.OutputDir, p)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create engagement dir: %w", err)
	}

	a := &Artifacts{
		Dir:        dir,
		Profile:    filepath.Join(dir, slug.ArtifactName(s, "profile", p.CreatedAt)+".yaml"),
		Exclusions: filepath.Join(dir, ExclusionFileName(p)),
		Script:     filepath.Join(dir, slug.ArtifactName(s, "scan_plan", p.CreatedAt)+".sh"),
		PlanFile:   filepath.Join(dir, slug.ArtifactName(s, "scan_plan", p.CreatedAt)+".yaml"),
	}

	if err := profile.Save(a.Profile, p); err != nil {
		return nil, err
	}
	if err := os.WriteFile(a.Exclusions, ExclusionList(p), 0o640); err != nil {
		return nil, fmt.Errorf("write exclusions: %w", err)
	}

	a.Plan = BuildPlan(p, PlanOptions{ScannerPath: e.ScannerPath, HostTimeout: e.HostTimeout})
	script, err := RenderScript(a.Plan)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(a.Script, script, 0o750); err != nil { //nolint:gosec // the plan script is meant to be executed
		return nil, fmt.Errorf("write scan script: %w", err)
	}
	if err := SavePlan(a.PlanFile, a.Plan); err != nil {
		return nil, err
	}

	if !p.Authorized() {
		e.Logger.Warn("artifacts stamped as unauthorized", zap.String("dir", dir))
	}
	e.Logger.Info("engagement artifacts written",
		zap.String("dir", dir),
		zap.Int("steps", len(a.Plan.Steps)),
		zap.Int("exclusions", len(p.Exclusions)),
	)
	return a, nil
}

// MarshalPlan encodes plan as YAML, led by the unauthorized banner comment
// when applicable.
func MarshalPlan(plan *models.ScanPlan) ([]byte, error) {
	data, err := yaml.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("encode scan plan: %w", err)
	}
	if plan.Unauthorized {
		data = append([]byte("# "+models.UnauthorizedBanner+"\n"), data...)
	}
	return data, nil
}

// SavePlan writes the YAML plan to path.
func SavePlan(path string, plan *models.ScanPlan) error {
	data, err := MarshalPlan(plan)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("write scan plan %q: %w", path, err)
	}
	return nil
}

// LoadPlan reads a YAML plan written by SavePlan.
func LoadPlan(path string) (*models.ScanPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scan plan %q: %w", path, err)
	}
	var plan models.ScanPlan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("decode scan plan %q: %w", path, err)
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("scan plan %q has no steps", path)
	}
	return &plan, nil
}
