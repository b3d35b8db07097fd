package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HerbHall/netscope/internal/services"
	"github.com/HerbHall/netscope/internal/testutil"
	"github.com/HerbHall/netscope/pkg/models"
)

func newRepos(t *testing.T) (*services.SQLiteEngagementRepository, *services.SQLiteScanRunRepository) {
	t.Helper()
	ctx := context.Background()
	st := testutil.NewStore(t)
	engagements, err := services.NewSQLiteEngagementRepository(ctx, st)
	if err != nil {
		t.Fatalf("NewSQLiteEngagementRepository: %v", err)
	}
	runs, err := services.NewSQLiteScanRunRepository(ctx, st)
	if err != nil {
		t.Fatalf("NewSQLiteScanRunRepository: %v", err)
	}
	return engagements, runs
}

func newEngagement(slug string, createdAt time.Time) *models.Engagement {
	return &models.Engagement{
		Slug:         slug,
		CustomerName: slug,
		CreatedAt:    createdAt,
		Authorized:   true,
		ProfileYAML:  "customer_name: " + slug + "\n",
		OutputDir:    "/tmp/" + slug,
	}
}

func TestEngagementRepository_CreateAndGet(t *testing.T) {
	repo, _ := newRepos(t)
	ctx := context.Background()

	e := newEngagement("acme_corp", testutil.FixedTime)
	if err := repo.Create(ctx, e); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.ID == "" {
		t.Fatal("Create did not generate an ID")
	}

	got, err := repo.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CustomerName != "acme_corp" {
		t.Errorf("CustomerName = %q, want acme_corp", got.CustomerName)
	}
	if !got.CreatedAt.Equal(testutil.FixedTime) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, testutil.FixedTime)
	}
	if !got.Authorized {
		t.Error("Authorized = false, want true")
	}
	if got.ProfileYAML != e.ProfileYAML {
		t.Errorf("ProfileYAML = %q, want %q", got.ProfileYAML, e.ProfileYAML)
	}
	if got.Closed() {
		t.Error("new engagement reported closed")
	}
}

func TestEngagementRepository_CreateDuplicate(t *testing.T) {
	repo, _ := newRepos(t)
	ctx := context.Background()

	e := newEngagement("acme_corp", testutil.FixedTime)
	if err := repo.Create(ctx, e); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dup := newEngagement("acme_corp", testutil.FixedTime)
	dup.ID = e.ID
	if err := repo.Create(ctx, dup); !errors.Is(err, services.ErrAlreadyExists) {
		t.Errorf("Create(duplicate) = %v, want ErrAlreadyExists", err)
	}
}

func TestEngagementRepository_GetNotFound(t *testing.T) {
	repo, _ := newRepos(t)
	if _, err := repo.Get(context.Background(), "nonexistent-id"); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("Get nonexistent = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetBySlug(context.Background(), "nobody"); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("GetBySlug nonexistent = %v, want ErrNotFound", err)
	}
}

func TestEngagementRepository_GetBySlugReturnsNewest(t *testing.T) {
	repo, _ := newRepos(t)
	ctx := context.Background()

	older := newEngagement("acme_corp", testutil.FixedTime)
	newer := newEngagement("acme_corp", testutil.FixedTime.Add(90*time.Minute+500*time.Millisecond))
	for _, e := range []*models.Engagement{older, newer} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := repo.GetBySlug(ctx, "acme_corp")
	if err != nil {
		t.Fatalf("GetBySlug: %v", err)
	}
	if got.ID != newer.ID {
		t.Errorf("GetBySlug returned %s, want newest %s", got.ID, newer.ID)
	}
}

func TestEngagementRepository_ListPaginates(t *testing.T) {
	repo, _ := newRepos(t)
	ctx := context.Background()

	for i, name := range []string{"alpha", "bravo", "charlie"} {
		if err := repo.Create(ctx, newEngagement(name, testutil.FixedTime.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	res, err := repo.List(ctx, services.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Total != 3 {
		t.Errorf("Total = %d, want 3", res.Total)
	}
	if len(res.Items) != 2 {
		t.Fatalf("Items len = %d, want 2", len(res.Items))
	}
	if res.Items[0].Slug != "charlie" {
		t.Errorf("first item = %q, want newest charlie", res.Items[0].Slug)
	}

	res, err = repo.List(ctx, services.ListOptions{SortBy: "customer_name", SortOrder: "asc"})
	if err != nil {
		t.Fatalf("List asc: %v", err)
	}
	if res.Items[0].Slug != "alpha" {
		t.Errorf("first asc item = %q, want alpha", res.Items[0].Slug)
	}
}

func TestEngagementRepository_Close(t *testing.T) {
	repo, _ := newRepos(t)
	ctx := context.Background()

	e := newEngagement("acme_corp", testutil.FixedTime)
	if err := repo.Create(ctx, e); err != nil {
		t.Fatalf("Create: %v", err)
	}
	closedAt := testutil.FixedTime.Add(48 * time.Hour)
	if err := repo.Close(ctx, e.ID, closedAt); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := repo.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Closed() || !got.ClosedAt.Equal(closedAt) {
		t.Errorf("ClosedAt = %v, want %v", got.ClosedAt, closedAt)
	}

	if err := repo.Close(ctx, "missing", closedAt); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("Close missing = %v, want ErrNotFound", err)
	}
}

func TestScanRunRepository_Lifecycle(t *testing.T) {
	engagements, runs := newRepos(t)
	ctx := context.Background()

	e := newEngagement("acme_corp", testutil.FixedTime)
	if err := engagements.Create(ctx, e); err != nil {
		t.Fatalf("Create engagement: %v", err)
	}

	first := &models.ScanRun{EngagementID: e.ID, Segment: "primary", Phase: models.PhaseDiscovery, StartedAt: testutil.FixedTime}
	second := &models.ScanRun{EngagementID: e.ID, Segment: "primary", Phase: models.PhasePorts, StartedAt: testutil.FixedTime.Add(time.Minute)}
	for _, r := range []*models.ScanRun{first, second} {
		if err := runs.Create(ctx, r); err != nil {
			t.Fatalf("Create run: %v", err)
		}
	}
	if first.Status != models.ScanRunRunning {
		t.Errorf("Status = %q, want running", first.Status)
	}

	ended := testutil.FixedTime.Add(30 * time.Second)
	if err := runs.UpdateStatus(ctx, first.ID, models.ScanRunFailed, 2, "exit status 1", ended); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	got, err := runs.ListByEngagement(ctx, e.ID)
	if err != nil {
		t.Fatalf("ListByEngagement: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("runs = %d, want 2", len(got))
	}
	if got[0].Phase != models.PhaseDiscovery || got[1].Phase != models.PhasePorts {
		t.Errorf("order = %s,%s, want discovery,ports", got[0].Phase, got[1].Phase)
	}
	if got[0].Status != models.ScanRunFailed || got[0].Attempts != 2 || got[0].ErrorMsg != "exit status 1" {
		t.Errorf("updated run = %+v", got[0])
	}
	if got[0].EndedAt == nil || !got[0].EndedAt.Equal(ended) {
		t.Errorf("EndedAt = %v, want %v", got[0].EndedAt, ended)
	}
	if got[1].EndedAt != nil {
		t.Errorf("unfinished run EndedAt = %v, want nil", got[1].EndedAt)
	}
}

func TestScanRunRepository_UpdateMissing(t *testing.T) {
	_, runs := newRepos(t)
	err := runs.UpdateStatus(context.Background(), "missing", models.ScanRunSucceeded, 1, "", testutil.FixedTime)
	if !errors.Is(err, services.ErrNotFound) {
		t.Errorf("UpdateStatus missing = %v, want ErrNotFound", err)
	}
}

func TestScanRunRepository_RequiresEngagement(t *testing.T) {
	_, runs := newRepos(t)
	err := runs.Create(context.Background(), &models.ScanRun{EngagementID: "ghost", Segment: "primary", Phase: "discovery"})
	if err == nil {
		t.Error("Create with unknown engagement succeeded, want foreign key error")
	}
}
