package profile

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/netscope/internal/netutil"
	"github.com/HerbHall/netscope/pkg/models"
)

// ScheduleLayout is the short form accepted for a scheduled scan time.
const ScheduleLayout = "2006-01-02 15:04"

// Session walks an operator through building a NetworkProfile. Each field
// is collected, validated, and either accepted or asked again; invalid input
// never ends the session.
type Session struct {
	prompter Prompter
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// Option customizes a Session.
type Option func(*Session)

// WithClock overrides the time source used for created_at and the
// authorization timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithIDGenerator overrides profile ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Session) { s.newID = gen }
}

// NewSession creates a session that reads answers from p.
func NewSession(p Prompter, logger *zap.Logger, opts ...Option) *Session {
	s := &Session{
		prompter: p,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type stage struct {
	name string
	run  func(context.Context, *models.NetworkProfile) error
}

// Run collects every stage in order: identity, authorization, primary
// network, additional networks, VLANs, exclusions, scan preferences.
// On abort the partial profile is discarded and models.ErrSessionAborted
// is returned.
func (s *Session) Run(ctx context.Context) (*models.NetworkProfile, error) {
	p := &models.NetworkProfile{ID: s.newID()}

	stages := []stage{
		{"identity", s.identity},
		{"authorization", s.authorization},
		{"primary_network", s.primaryNetwork},
		{"additional_networks", s.additionalNetworks},
		{"vlans", s.vlans},
		{"exclusions", s.exclusions},
		{"scan_preferences", s.preferences},
	}
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrSessionAborted, err)
		}
		s.logger.Debug("configuration stage", zap.String("stage", st.name))
		if err := st.run(ctx, p); err != nil {
			s.logger.Info("configuration session aborted", zap.String("stage", st.name), zap.Error(err))
			if errors.Is(err, models.ErrSessionAborted) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", models.ErrSessionAborted, err)
		}
	}

	p.CreatedAt = s.now().UTC()
	if err := Validate(p); err != nil {
		return nil, fmt.Errorf("profile incomplete: %w", err)
	}
	s.logger.Info("configuration session complete",
		zap.String("customer", p.CustomerName),
		zap.Int("vlans", len(p.VLANs)),
		zap.Int("exclusions", len(p.Exclusions)),
		zap.Bool("authorized", p.Authorized()),
	)
	return p, nil
}

// ask repeats the prompt until parse accepts the answer.
func ask[T any](ctx context.Context, s *Session, prompt, def string, parse func(string) (T, error)) (T, error) {
	var zero T
	for {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%w: %v", models.ErrSessionAborted, err)
		}
		answer, err := s.prompter.Ask(prompt, def)
		if err != nil {
			return zero, err
		}
		v, err := parse(answer)
		if err == nil {
			return v, nil
		}
		s.prompter.Warn(err.Error())
		s.logger.Debug("answer rejected", zap.String("prompt", prompt), zap.Error(err))
	}
}

func optional(a string) (string, error) { return a, nil }

func required(field string) func(string) (string, error) {
	return func(a string) (string, error) {
		if a == "" {
			return "", fmt.Errorf("%s is required", field)
		}
		return a, nil
	}
}

func cidr(a string) (string, error) {
	p, err := netutil.ValidateCIDR(a)
	if err != nil {
		return "", err
	}
	return p.String(), nil
}

// blankOr accepts an empty answer as "done", otherwise applies parse.
func blankOr(parse func(string) (string, error)) func(string) (string, error) {
	return func(a string) (string, error) {
		if a == "" {
			return "", nil
		}
		return parse(a)
	}
}

func (s *Session) identity(ctx context.Context, p *models.NetworkProfile) error {
	var err error
	if p.CustomerName, err = ask(ctx, s, "Customer name", "", required("customer name")); err != nil {
		return err
	}
	if p.CustomerID, err = ask(ctx, s, "Customer ID (optional)", "", optional); err != nil {
		return err
	}
	if p.ContactName, err = ask(ctx, s, "Contact name (optional)", "", optional); err != nil {
		return err
	}
	p.ContactEmail, err = ask(ctx, s, "Contact email (optional)", "", blankOr(func(a string) (string, error) {
		addr, err := mail.ParseAddress(a)
		if err != nil {
			return "", fmt.Errorf("invalid email %q", a)
		}
		return addr.Address, nil
	}))
	return err
}

func (s *Session) authorization(ctx context.Context, p *models.NetworkProfile) error {
	received, err := s.prompter.Confirm("Has written authorization to scan been received?", false)
	if err != nil {
		return err
	}
	p.Authorization = models.Authorization{Received: received, Timestamp: s.now().UTC()}
	if !received {
		s.prompter.Warn(models.UnauthorizedBanner)
		s.logger.Warn("engagement not authorized; artifacts will be stamped",
			zap.String("customer", p.CustomerName))
		return nil
	}
	p.Authorization.Reference, err = ask(ctx, s, "Authorization reference (ticket, SOW, email)", "", optional)
	return err
}

func (s *Session) primaryNetwork(ctx context.Context, p *models.NetworkProfile) error {
	var err error
	p.PrimaryNetwork, err = ask(ctx, s, "Primary network (CIDR, e.g. 192.168.1.0/24)", "", cidr)
	if err != nil {
		return err
	}
	if pfx, perr := netutil.ValidateCIDR(p.PrimaryNetwork); perr == nil {
		hosts := netutil.EstimateHostCount(pfx.Bits())
		s.logger.Info("primary network sized",
			zap.String("cidr", p.PrimaryNetwork),
			zap.Int("hosts", hosts),
			zap.String("duration", string(netutil.EstimateDurationBucket(hosts))),
		)
	}
	return nil
}

func (s *Session) additionalNetworks(ctx context.Context, p *models.NetworkProfile) error {
	for {
		n, err := ask(ctx, s, "Additional network (CIDR, blank to finish)", "", blankOr(cidr))
		if err != nil {
			return err
		}
		if n == "" {
			return nil
		}
		p.AdditionalNetworks = append(p.AdditionalNetworks, n)
	}
}

func (s *Session) vlans(ctx context.Context, p *models.NetworkProfile) error {
	for {
		more, err := s.prompter.Confirm("Add a VLAN?", false)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		v, err := s.vlan(ctx, p)
		if err != nil {
			return err
		}
		p.VLANs = append(p.VLANs, v)
	}
}

// vlan collects one VLAN; it is only appended once every field is valid.
func (s *Session) vlan(ctx context.Context, p *models.NetworkProfile) (models.VLAN, error) {
	var v models.VLAN
	var err error
	v.ID, err = ask(ctx, s, "VLAN ID (1-4094)", "", func(a string) (int, error) {
		id, err := netutil.ParseVLANID(a)
		if err != nil {
			return 0, err
		}
		for _, existing := range p.VLANs {
			if existing.ID == id {
				return 0, fmt.Errorf("VLAN %d already defined", id)
			}
		}
		return id, nil
	})
	if err != nil {
		return v, err
	}
	if v.Name, err = ask(ctx, s, "VLAN name", fmt.Sprintf("vlan%d", v.ID), required("VLAN name")); err != nil {
		return v, err
	}
	if v.Network, err = ask(ctx, s, "VLAN network (CIDR)", "", cidr); err != nil {
		return v, err
	}
	v.Gateway, err = ask(ctx, s, "VLAN gateway (optional)", "", blankOr(func(a string) (string, error) {
		addr, err := netutil.ValidateIPv4(a)
		if err != nil {
			return "", err
		}
		return addr.String(), nil
	}))
	return v, err
}

func (s *Session) exclusions(ctx context.Context, p *models.NetworkProfile) error {
	for {
		target, err := ask(ctx, s, "Exclude address or CIDR (blank to finish)", "", blankOr(func(a string) (string, error) {
			if err := netutil.ValidateTarget(a); err != nil {
				return "", err
			}
			return a, nil
		}))
		if err != nil {
			return err
		}
		if target == "" {
			return nil
		}
		reason, err := ask(ctx, s, "Reason for exclusion", "operator exclusion", optional)
		if err != nil {
			return err
		}
		p.Exclusions = append(p.Exclusions, models.Exclusion{Target: target, Reason: reason})
	}
}

func (s *Session) preferences(ctx context.Context, p *models.NetworkProfile) error {
	prefs := &p.ScanPreferences

	types := make([]string, len(models.ScanTypes))
	for i, t := range models.ScanTypes {
		types[i] = string(t)
	}
	for {
		choice, err := s.prompter.Select("Scan type", types, string(models.ScanTypeStandard))
		if err != nil {
			return err
		}
		if t := models.ScanType(choice); t.Valid() {
			prefs.Type = t
			break
		}
		s.prompter.Warn(fmt.Sprintf("unknown scan type %q", choice))
	}

	var err error
	switch prefs.Type {
	case models.ScanTypeCustom:
		prefs.CustomArgs, err = ask(ctx, s, "Custom scanner arguments", "", func(a string) ([]string, error) {
			args := strings.Fields(a)
			if len(args) == 0 {
				return nil, fmt.Errorf("custom scans need at least one argument")
			}
			return args, nil
		})
	case models.ScanTypeStandard, models.ScanTypeIntense:
		prefs.Ports, err = ask(ctx, s, "Ports (blank for scan type default)", "", blankOr(func(a string) (string, error) {
			if !portSpecPattern.MatchString(a) {
				return "", fmt.Errorf("invalid port spec %q", a)
			}
			return a, nil
		}))
	}
	if err != nil {
		return err
	}

	timings := make([]string, len(models.Timings))
	for i, t := range models.Timings {
		timings[i] = string(t)
	}
	for {
		choice, err := s.prompter.Select("Timing", timings, string(models.TimingNormal))
		if err != nil {
			return err
		}
		if t := models.Timing(choice); t.Valid() {
			prefs.Timing = t
			break
		}
		s.prompter.Warn(fmt.Sprintf("unknown timing %q", choice))
	}

	at, err := ask(ctx, s, "Schedule (YYYY-MM-DD HH:MM, blank for now)", "", parseSchedule)
	if err != nil {
		return err
	}
	prefs.ScheduledAt = at
	return nil
}

func parseSchedule(a string) (*time.Time, error) {
	if a == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, ScheduleLayout} {
		if t, err := time.ParseInLocation(layout, a, time.Local); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized time %q", a)
}
