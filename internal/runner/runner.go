// Package runner executes a saved scan plan: each step's phases run in
// order, later phases target only the hosts discovery found up, and every
// step is attempted even when an earlier one fails.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/HerbHall/netscope/internal/emitter"
	"github.com/HerbHall/netscope/internal/recon"
	"github.com/HerbHall/netscope/internal/services"
	"github.com/HerbHall/netscope/pkg/models"
)

// Options control scanner pacing and fault handling.
type Options struct {
	// ScannerPath overrides the plan's scanner binary when set.
	ScannerPath string
	// PhaseTimeout bounds one scanner invocation. Zero means no limit.
	PhaseTimeout time.Duration
	// MaxRetries is clamped to 0 or 1.
	MaxRetries int
	// StepInterval is the minimum gap between scanner invocations.
	StepInterval time.Duration
	// Parallel runs plan steps concurrently.
	Parallel bool
}

// StepResult is the outcome of one phase of one plan step.
type StepResult struct {
	Segment   string
	CIDR      string
	Phase     string
	Status    models.ScanRunStatus
	Attempts  int
	LiveHosts int
	Duration  time.Duration
	Err       error
}

// Failed reports whether the phase ran and did not succeed.
func (s StepResult) Failed() bool {
	return s.Status == models.ScanRunFailed
}

// Summary collects every phase result in plan order.
type Summary struct {
	Steps       []StepResult
	Failed      bool
	MetricsFile string
}

// ExitCode is 1 when any phase failed, else 0.
func (s *Summary) ExitCode() int {
	if s.Failed {
		return 1
	}
	return 0
}

// Runner executes scan plans.
type Runner struct {
	exec     Executor
	opts     Options
	logger   *zap.Logger
	recorder services.ScanRunRepository
	limiter  *rate.Limiter
	now      func() time.Time

	// mu serializes store writes from parallel steps.
	mu sync.Mutex
}

// Option configures optional Runner dependencies.
type Option func(*Runner)

// WithRecorder records every phase as a scan run.
func WithRecorder(repo services.ScanRunRepository) Option {
	return func(r *Runner) { r.recorder = repo }
}

// WithClock overrides the time source used for recorded timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a Runner.
func New(exec Executor, opts Options, logger *zap.Logger, options ...Option) *Runner {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MaxRetries > 1 {
		opts.MaxRetries = 1
	}
	limit := rate.Inf
	if opts.StepInterval > 0 {
		limit = rate.Every(opts.StepInterval)
	}
	r := &Runner{
		exec:    exec,
		opts:    opts,
		logger:  logger,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Run executes plan with relative paths resolved against dir, normally the
// directory holding the plan file. The returned error is non-nil only when
// ctx ended the run early; scanner failures are reported in the Summary.
func (r *Runner) Run(ctx context.Context, plan *models.ScanPlan, dir string) (*Summary, error) {
	if plan == nil || len(plan.Steps) == 0 {
		return nil, errors.New("scan plan has no steps")
	}
	if plan.Unauthorized {
		r.logger.Warn(models.UnauthorizedBanner, zap.String("engagement", plan.EngagementID))
	}

	metrics := NewMetrics()
	results := make([][]StepResult, len(plan.Steps))

	if r.opts.Parallel {
		// Steps never return an error so one failing segment does not
		// cancel the others.
		g, gctx := errgroup.WithContext(ctx)
		for i := range plan.Steps {
			g.Go(func() error {
				results[i] = r.runStep(gctx, plan, plan.Steps[i], dir, metrics)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range plan.Steps {
			results[i] = r.runStep(ctx, plan, plan.Steps[i], dir, metrics)
		}
	}

	sum := &Summary{}
	for _, step := range results {
		for _, res := range step {
			sum.Steps = append(sum.Steps, res)
			if res.Failed() {
				sum.Failed = true
			}
		}
	}

	name := plan.Slug
	if name == "" {
		name = "engagement"
	}
	sum.MetricsFile = filepath.Join(dir, name+"_metrics.prom")
	if err := metrics.WriteTextfile(sum.MetricsFile); err != nil {
		r.logger.Warn("metrics not written", zap.Error(err))
		sum.MetricsFile = ""
	}

	r.logger.Info("scan plan finished",
		zap.Int("phases", len(sum.Steps)),
		zap.Bool("failed", sum.Failed),
	)
	if err := ctx.Err(); err != nil {
		return sum, fmt.Errorf("scan run interrupted: %w", err)
	}
	return sum, nil
}

func (r *Runner) runStep(ctx context.Context, plan *models.ScanPlan, step models.ScanPlanStep, dir string, m *Metrics) []StepResult {
	log := r.logger.With(zap.String("segment", step.SegmentLabel), zap.String("cidr", step.CIDR))
	out := make([]StepResult, 0, len(step.Phases))
	skip := false

	for _, ph := range step.Phases {
		if skip {
			res := StepResult{Segment: step.SegmentLabel, CIDR: step.CIDR, Phase: ph.Name, Status: models.ScanRunSkipped}
			r.recordSkipped(ctx, plan, res)
			out = append(out, res)
			continue
		}

		res := r.runPhase(ctx, plan, step, ph, dir, log)
		if ph.Name == models.PhaseDiscovery {
			if res.Err == nil {
				n, err := r.writeLiveHosts(dir, step, ph)
				if err != nil {
					res.Status = models.ScanRunFailed
					res.Err = err
				}
				res.LiveHosts = n
				m.setLiveHosts(step.SegmentLabel, n)
				if n == 0 && err == nil {
					log.Info("no live hosts, skipping remaining phases")
				}
			}
			skip = res.Err != nil || res.LiveHosts == 0
		}

		m.observePhase(step.SegmentLabel, ph.Name, res.Duration.Seconds(), res.Failed())
		r.recordFinished(ctx, res)
		out = append(out, res.StepResult)
	}
	return out
}

type recordedResult struct {
	StepResult
	runID string
}

func (r *Runner) runPhase(ctx context.Context, plan *models.ScanPlan, step models.ScanPlanStep, ph models.ScanPhase, dir string, log *zap.Logger) recordedResult {
	res := recordedResult{StepResult: StepResult{
		Segment: step.SegmentLabel,
		CIDR:    step.CIDR,
		Phase:   ph.Name,
	}}
	res.runID = r.recordStart(ctx, plan, res.StepResult)

	scanner := r.opts.ScannerPath
	if scanner == "" {
		scanner = plan.ScannerPath
	}
	if scanner == "" {
		scanner = emitter.DefaultScannerPath
	}

	start := time.Now()
	var err error
	for res.Attempts < 1+r.opts.MaxRetries {
		if err = r.limiter.Wait(ctx); err != nil {
			break
		}
		res.Attempts++

		pctx, cancel := ctx, context.CancelFunc(func() {})
		if r.opts.PhaseTimeout > 0 {
			pctx, cancel = context.WithTimeout(ctx, r.opts.PhaseTimeout)
		}
		err = r.exec.Execute(pctx, dir, scanner, ph.Args)
		cancel()
		if err == nil {
			break
		}
		log.Warn("scanner phase failed",
			zap.String("phase", ph.Name),
			zap.Int("attempt", res.Attempts),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}
	res.Duration = time.Since(start)

	if err != nil {
		res.Status = models.ScanRunFailed
		res.Err = err
	} else {
		res.Status = models.ScanRunSucceeded
		log.Info("scanner phase complete", zap.String("phase", ph.Name), zap.Duration("duration", res.Duration))
	}
	return res
}

// writeLiveHosts extracts the up hosts from a discovery result into the
// step's live-hosts file and returns how many there were.
func (r *Runner) writeLiveHosts(dir string, step models.ScanPlanStep, ph models.ScanPhase) (int, error) {
	f, err := os.Open(resolve(dir, ph.OutputFile))
	if err != nil {
		return 0, fmt.Errorf("open discovery results: %w", models.ErrMissingScanResults)
	}
	defer f.Close()

	hosts, err := recon.ParseNmapXML(f)
	if err != nil {
		return 0, err
	}
	addrs := recon.LiveAddresses(hosts)

	liveFile := step.LiveHostsFile
	if liveFile == "" {
		liveFile = emitter.LiveHostsFile(step.OutputName)
	}
	var data []byte
	if len(addrs) > 0 {
		data = []byte(strings.Join(addrs, "\n") + "\n")
	}
	if err := os.WriteFile(resolve(dir, liveFile), data, 0o640); err != nil {
		return 0, fmt.Errorf("write live hosts: %w", err)
	}
	return len(addrs), nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func (r *Runner) recordStart(ctx context.Context, plan *models.ScanPlan, res StepResult) string {
	if r.recorder == nil {
		return ""
	}
	run := &models.ScanRun{
		EngagementID: plan.EngagementID,
		Segment:      res.Segment,
		Phase:        res.Phase,
		Status:       models.ScanRunRunning,
		StartedAt:    r.now().UTC(),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.recorder.Create(context.WithoutCancel(ctx), run); err != nil {
		r.logger.Warn("scan run not recorded", zap.String("phase", res.Phase), zap.Error(err))
		return ""
	}
	return run.ID
}

func (r *Runner) recordFinished(ctx context.Context, res recordedResult) {
	if r.recorder == nil || res.runID == "" {
		return
	}
	msg := ""
	if res.Err != nil {
		msg = res.Err.Error()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.recorder.UpdateStatus(context.WithoutCancel(ctx), res.runID, res.Status, res.Attempts, msg, r.now().UTC()); err != nil {
		r.logger.Warn("scan run status not recorded", zap.String("phase", res.Phase), zap.Error(err))
	}
}

func (r *Runner) recordSkipped(ctx context.Context, plan *models.ScanPlan, res StepResult) {
	if r.recorder == nil {
		return
	}
	now := r.now().UTC()
	run := &models.ScanRun{
		EngagementID: plan.EngagementID,
		Segment:      res.Segment,
		Phase:        res.Phase,
		Status:       models.ScanRunSkipped,
		StartedAt:    now,
		EndedAt:      &now,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.recorder.Create(context.WithoutCancel(ctx), run); err != nil {
		r.logger.Warn("skipped scan run not recorded", zap.String("phase", res.Phase), zap.Error(err))
	}
}
