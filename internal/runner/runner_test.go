package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/netscope/internal/emitter"
	"github.com/HerbHall/netscope/internal/services"
	"github.com/HerbHall/netscope/internal/testutil"
	"github.com/HerbHall/netscope/pkg/models"
)

// fakeExecutor pretends to be the scanner. Discovery phases write an XML
// report listing the hosts configured for the scanned CIDR.
type fakeExecutor struct {
	mu sync.Mutex

	live  map[string][]string // cidr -> up hosts
	fails map[string]int      // "cidr phase" -> failures before success
	calls []string            // "cidr phase"
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{live: map[string][]string{}, fails: map[string]int{}}
}

func (f *fakeExecutor) Execute(ctx context.Context, dir, name string, args []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := argAfter(args, "-oX")
	phase := strings.TrimSuffix(out[strings.LastIndex(out, "_")+1:], ".xml")
	cidr := f.cidrFor(args, dir)
	key := cidr + " " + phase

	f.mu.Lock()
	f.calls = append(f.calls, key)
	if f.fails[key] > 0 {
		f.fails[key]--
		f.mu.Unlock()
		return errors.New("exit status 1")
	}
	hosts := f.live[cidr]
	f.mu.Unlock()

	if phase != models.PhaseDiscovery {
		return nil
	}
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><nmaprun>`)
	for _, h := range hosts {
		fmt.Fprintf(&b, `<host><status state="up"/><address addr="%s" addrtype="ipv4"/></host>`, h)
	}
	b.WriteString(`</nmaprun>`)
	return os.WriteFile(filepath.Join(dir, out), []byte(b.String()), 0o600)
}

// cidrFor recovers the target of a phase: the trailing CIDR for discovery,
// or the step whose live-hosts file is passed with -iL.
func (f *fakeExecutor) cidrFor(args []string, _ string) string {
	if live := argAfter(args, "-iL"); live != "" {
		return "live:" + live
	}
	return args[len(args)-1]
}

func (f *fakeExecutor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func argAfter(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func testPlan(opts ...func(*models.NetworkProfile)) *models.ScanPlan {
	return emitter.BuildPlan(testutil.NewProfile(opts...), emitter.PlanOptions{})
}

func newTestRunner(t *testing.T, exec Executor, opts Options, extra ...Option) *Runner {
	return New(exec, opts, testutil.Logger(t), extra...)
}

func TestRun_AllPhasesSucceed(t *testing.T) {
	dir := t.TempDir()
	plan := testPlan()
	exec := newFakeExecutor()
	exec.live["192.168.1.0/24"] = []string{"192.168.1.1", "192.168.1.20"}

	sum, err := newTestRunner(t, exec, Options{}).Run(context.Background(), plan, dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Failed || sum.ExitCode() != 0 {
		t.Errorf("Failed = %v, ExitCode = %d, want clean run", sum.Failed, sum.ExitCode())
	}
	if len(sum.Steps) != 3 {
		t.Fatalf("results = %d, want 3 (discovery, ports, services)", len(sum.Steps))
	}
	for _, s := range sum.Steps {
		if s.Status != models.ScanRunSucceeded {
			t.Errorf("%s status = %q, want succeeded", s.Phase, s.Status)
		}
	}
	if sum.Steps[0].LiveHosts != 2 {
		t.Errorf("LiveHosts = %d, want 2", sum.Steps[0].LiveHosts)
	}

	live, err := os.ReadFile(filepath.Join(dir, plan.Steps[0].LiveHostsFile))
	if err != nil {
		t.Fatalf("read live hosts: %v", err)
	}
	if string(live) != "192.168.1.1\n192.168.1.20\n" {
		t.Errorf("live hosts = %q", live)
	}
}

func TestRun_NoLiveHostsSkipsLaterPhases(t *testing.T) {
	dir := t.TempDir()
	plan := testPlan()
	exec := newFakeExecutor()

	sum, err := newTestRunner(t, exec, Options{}).Run(context.Background(), plan, dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Failed {
		t.Error("empty segment reported as failure")
	}
	if got := len(exec.Calls()); got != 1 {
		t.Errorf("scanner calls = %d, want 1 (discovery only)", got)
	}
	for _, s := range sum.Steps[1:] {
		if s.Status != models.ScanRunSkipped {
			t.Errorf("%s status = %q, want skipped", s.Phase, s.Status)
		}
	}

	info, err := os.Stat(filepath.Join(dir, plan.Steps[0].LiveHostsFile))
	if err != nil {
		t.Fatalf("live hosts file missing: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("live hosts size = %d, want 0", info.Size())
	}
}

func TestRun_FailureIsORedAndEveryStepAttempted(t *testing.T) {
	dir := t.TempDir()
	plan := testPlan(testutil.WithVLAN(20, "voice", "10.20.0.0/24"))
	exec := newFakeExecutor()
	exec.fails["192.168.1.0/24 discovery"] = 5
	exec.live["10.20.0.0/24"] = []string{"10.20.0.5"}

	sum, err := newTestRunner(t, exec, Options{MaxRetries: 1}).Run(context.Background(), plan, dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !sum.Failed || sum.ExitCode() != 1 {
		t.Errorf("Failed = %v, ExitCode = %d, want failure", sum.Failed, sum.ExitCode())
	}
	if len(sum.Steps) != 6 {
		t.Fatalf("results = %d, want 6", len(sum.Steps))
	}

	primary := sum.Steps[0]
	if primary.Status != models.ScanRunFailed || primary.Attempts != 2 {
		t.Errorf("primary discovery = %q after %d attempts, want failed after 2", primary.Status, primary.Attempts)
	}
	if sum.Steps[1].Status != models.ScanRunSkipped {
		t.Errorf("primary ports = %q, want skipped", sum.Steps[1].Status)
	}
	for _, s := range sum.Steps[3:] {
		if s.Segment != "vlan_20" || s.Status != models.ScanRunSucceeded {
			t.Errorf("vlan result %s/%s = %q, want succeeded", s.Segment, s.Phase, s.Status)
		}
	}
}

func TestRun_RetrySucceeds(t *testing.T) {
	plan := testPlan(testutil.WithScanType(models.ScanTypeQuick))
	exec := newFakeExecutor()
	exec.fails["192.168.1.0/24 discovery"] = 1
	exec.live["192.168.1.0/24"] = []string{"192.168.1.1"}

	sum, err := newTestRunner(t, exec, Options{MaxRetries: 3}).Run(context.Background(), plan, t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Failed {
		t.Error("retried phase reported as failure")
	}
	if sum.Steps[0].Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", sum.Steps[0].Attempts)
	}
}

func TestRun_RetriesClampedToOne(t *testing.T) {
	plan := testPlan(testutil.WithScanType(models.ScanTypeQuick))
	exec := newFakeExecutor()
	exec.fails["192.168.1.0/24 discovery"] = 10

	sum, _ := newTestRunner(t, exec, Options{MaxRetries: 5}).Run(context.Background(), plan, t.TempDir())
	if got := len(exec.Calls()); got != 2 {
		t.Errorf("scanner calls = %d, want 2", got)
	}
	if !sum.Failed {
		t.Error("Failed = false, want true")
	}
}

func TestRun_ParallelSegments(t *testing.T) {
	plan := testPlan(
		testutil.WithScanType(models.ScanTypeQuick),
		testutil.WithVLAN(20, "voice", "10.20.0.0/24"),
		testutil.WithVLAN(30, "iot", "10.30.0.0/24"),
	)
	exec := newFakeExecutor()
	for _, cidr := range []string{"192.168.1.0/24", "10.20.0.0/24", "10.30.0.0/24"} {
		exec.live[cidr] = []string{strings.TrimSuffix(cidr, "0/24") + "9"}
	}

	sum, err := newTestRunner(t, exec, Options{Parallel: true}).Run(context.Background(), plan, t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"primary", "vlan_20", "vlan_30"}
	if len(sum.Steps) != len(want) {
		t.Fatalf("results = %d, want %d", len(sum.Steps), len(want))
	}
	for i, s := range sum.Steps {
		if s.Segment != want[i] {
			t.Errorf("result[%d] segment = %q, want %q (plan order)", i, s.Segment, want[i])
		}
		if s.LiveHosts != 1 {
			t.Errorf("%s LiveHosts = %d, want 1", s.Segment, s.LiveHosts)
		}
	}
}

func TestRun_CancelledContext(t *testing.T) {
	plan := testPlan()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := newTestRunner(t, newFakeExecutor(), Options{}).Run(ctx, plan, t.TempDir())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if sum == nil || !sum.Failed {
		t.Error("cancelled run should report failure")
	}
}

func TestRun_EmptyPlan(t *testing.T) {
	if _, err := newTestRunner(t, newFakeExecutor(), Options{}).Run(context.Background(), &models.ScanPlan{}, t.TempDir()); err == nil {
		t.Error("Run(empty plan) succeeded, want error")
	}
}

func TestRun_WritesMetricsTextfile(t *testing.T) {
	dir := t.TempDir()
	plan := testPlan()
	exec := newFakeExecutor()
	exec.live["192.168.1.0/24"] = []string{"192.168.1.1", "192.168.1.2", "192.168.1.3"}

	sum, err := newTestRunner(t, exec, Options{}).Run(context.Background(), plan, dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := filepath.Join(dir, "acme_corp_metrics.prom"); sum.MetricsFile != want {
		t.Errorf("MetricsFile = %q, want %q", sum.MetricsFile, want)
	}
	data, err := os.ReadFile(sum.MetricsFile)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		`netscope_live_hosts{segment="primary"} 3`,
		`netscope_phase_failures_total{phase="discovery",segment="primary"} 0`,
		`netscope_phase_duration_seconds_count{phase="services",segment="primary"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestRun_RecordsScanRuns(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)
	engagements, err := services.NewSQLiteEngagementRepository(ctx, st)
	if err != nil {
		t.Fatalf("engagement repo: %v", err)
	}
	runs, err := services.NewSQLiteScanRunRepository(ctx, st)
	if err != nil {
		t.Fatalf("scan run repo: %v", err)
	}

	plan := testPlan()
	if err := engagements.Create(ctx, &models.Engagement{ID: plan.EngagementID, Slug: plan.Slug, CustomerName: plan.Customer}); err != nil {
		t.Fatalf("create engagement: %v", err)
	}

	clock := testutil.NewClock()
	r := newTestRunner(t, newFakeExecutor(), Options{}, WithRecorder(runs), WithClock(func() time.Time {
		return clock.Advance(time.Second)
	}))
	if _, err := r.Run(ctx, plan, t.TempDir()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := runs.ListByEngagement(ctx, plan.EngagementID)
	if err != nil {
		t.Fatalf("ListByEngagement: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("recorded runs = %d, want 3", len(got))
	}
	want := []models.ScanRunStatus{models.ScanRunSucceeded, models.ScanRunSkipped, models.ScanRunSkipped}
	for i, run := range got {
		if run.Status != want[i] {
			t.Errorf("run[%d] %s status = %q, want %q", i, run.Phase, run.Status, want[i])
		}
		if run.EndedAt == nil {
			t.Errorf("run[%d] EndedAt not set", i)
		}
	}
}
