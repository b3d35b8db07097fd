// Package profile serializes network profiles and runs the guided
// configuration session that builds them.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/HerbHall/netscope/internal/netutil"
	"github.com/HerbHall/netscope/internal/slug"
	"github.com/HerbHall/netscope/pkg/models"
)

var portSpecPattern = regexp.MustCompile(`^\d{1,5}(-\d{1,5})?(,\d{1,5}(-\d{1,5})?)*$`)

// Marshal encodes p as YAML. Timestamps are normalized to UTC so that
// Marshal(Unmarshal(b)) reproduces b exactly. Unauthorized profiles start
// with a banner comment.
func Marshal(p *models.NetworkProfile) ([]byte, error) {
	cp := normalize(*p)

	var buf bytes.Buffer
	if !cp.Authorized() {
		buf.WriteString("# " + models.UnauthorizedBanner + "\n")
	}
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&cp); err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	return buf.Bytes(), nil
}

// profileNamespace scopes the IDs derived for profiles that carry none.
var profileNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/HerbHall/netscope/profile"))

// DerivedID is the ID given to a profile file without one. It depends only
// on the customer slug and creation time, so loading the same file twice
// yields the same engagement.
func DerivedID(p *models.NetworkProfile) string {
	key := slug.Slugify(p.CustomerName) + "@" + p.CreatedAt.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(profileNamespace, []byte(key)).String()
}

// Unmarshal decodes a YAML profile and validates every field. A missing id
// is filled with DerivedID.
func Unmarshal(data []byte) (*models.NetworkProfile, error) {
	var p models.NetworkProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	p = normalize(p)
	if strings.TrimSpace(p.ID) == "" {
		p.ID = DerivedID(&p)
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Save writes the encoded profile to path with owner-only permissions.
func Save(path string, p *models.NetworkProfile) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write profile %q: %w", path, err)
	}
	return nil
}

// Load reads and validates a profile file.
func Load(path string) (*models.NetworkProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %q: %w", path, err)
	}
	return Unmarshal(data)
}

// Validate checks mandatory fields and the syntax of every network, address,
// and VLAN tag. Overlap between ranges is allowed. Identity text must be a
// single line since it is copied into generated scripts and file names.
func Validate(p *models.NetworkProfile) error {
	var errs []error
	if p.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if p.CustomerName == "" {
		errs = append(errs, errors.New("customer_name is required"))
	}
	for _, f := range []struct{ name, value string }{
		{"id", p.ID},
		{"customer_name", p.CustomerName},
		{"customer_id", p.CustomerID},
		{"contact_name", p.ContactName},
		{"authorization.reference", p.Authorization.Reference},
	} {
		if hasControl(f.value) {
			errs = append(errs, fmt.Errorf("%s: control characters are not allowed", f.name))
		}
	}
	if p.ContactEmail != "" {
		if _, err := mail.ParseAddress(p.ContactEmail); err != nil {
			errs = append(errs, fmt.Errorf("contact_email: %w", err))
		}
	}
	if p.PrimaryNetwork == "" {
		errs = append(errs, errors.New("primary_network is required"))
	} else if _, err := netutil.ValidateCIDR(p.PrimaryNetwork); err != nil {
		errs = append(errs, fmt.Errorf("primary_network: %w", err))
	}
	for i, n := range p.AdditionalNetworks {
		if _, err := netutil.ValidateCIDR(n); err != nil {
			errs = append(errs, fmt.Errorf("additional_networks[%d]: %w", i, err))
		}
	}
	seen := make(map[int]bool, len(p.VLANs))
	for i, v := range p.VLANs {
		if _, err := netutil.ValidateVLANID(v.ID); err != nil {
			errs = append(errs, fmt.Errorf("vlans[%d]: %w", i, err))
		}
		if seen[v.ID] {
			errs = append(errs, fmt.Errorf("vlans[%d]: duplicate id %d", i, v.ID))
		}
		seen[v.ID] = true
		if hasControl(v.Name) {
			errs = append(errs, fmt.Errorf("vlans[%d].name: control characters are not allowed", i))
		}
		if _, err := netutil.ValidateCIDR(v.Network); err != nil {
			errs = append(errs, fmt.Errorf("vlans[%d].network: %w", i, err))
		}
		if v.Gateway != "" {
			if _, err := netutil.ValidateIPv4(v.Gateway); err != nil {
				errs = append(errs, fmt.Errorf("vlans[%d].gateway: %w", i, err))
			}
		}
	}
	for i, e := range p.Exclusions {
		if err := netutil.ValidateTarget(e.Target); err != nil {
			errs = append(errs, fmt.Errorf("exclusions[%d]: %w", i, err))
		}
	}
	prefs := p.ScanPreferences
	if prefs.Type != "" && !prefs.Type.Valid() {
		errs = append(errs, fmt.Errorf("scan_preferences.type: unknown %q", prefs.Type))
	}
	if prefs.Timing != "" && !prefs.Timing.Valid() {
		errs = append(errs, fmt.Errorf("scan_preferences.timing: unknown %q", prefs.Timing))
	}
	if prefs.Ports != "" && !portSpecPattern.MatchString(prefs.Ports) {
		errs = append(errs, fmt.Errorf("scan_preferences.ports: invalid port spec %q", prefs.Ports))
	}
	if prefs.Type == models.ScanTypeCustom && len(prefs.CustomArgs) == 0 {
		errs = append(errs, errors.New("scan_preferences.custom_args: required for custom scans"))
	}
	return errors.Join(errs...)
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}

func normalize(p models.NetworkProfile) models.NetworkProfile {
	p.CreatedAt = p.CreatedAt.UTC()
	p.Authorization.Timestamp = p.Authorization.Timestamp.UTC()
	if p.ScanPreferences.ScheduledAt != nil {
		at := p.ScanPreferences.ScheduledAt.UTC()
		p.ScanPreferences.ScheduledAt = &at
	}
	if p.ScanPreferences.Type == "" {
		p.ScanPreferences.Type = models.ScanTypeStandard
	}
	if p.ScanPreferences.Timing == "" {
		p.ScanPreferences.Timing = models.TimingNormal
	}
	return p
}
