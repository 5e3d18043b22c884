package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	e "github.com/gartstein/staffing/internal/crm/errors"
	"github.com/gartstein/staffing/internal/crm/models"
	"github.com/gartstein/staffing/internal/crm/pipeline"
	"github.com/gartstein/staffing/internal/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// frozenClock always returns the same instant so tests exercise tie bumping.
func frozenClock() func() time.Time {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *MemoryPersister) {
	t.Helper()
	p := NewMemoryPersister(nil)
	opts = append([]Option{
		WithLogger(zaptest.NewLogger(t)),
		WithIDGenerator(sequentialIDs()),
		WithClock(frozenClock()),
	}, opts...)
	s, err := New(context.Background(), p, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, p
}

// failingPersister fails every Save after the first failAfter calls.
type failingPersister struct {
	MemoryPersister
	failAfter int
	calls     int
}

func (f *failingPersister) Save(ctx context.Context, snap *models.Snapshot) error {
	f.calls++
	if f.calls > f.failAfter {
		return errors.New("disk full")
	}
	return f.MemoryPersister.Save(ctx, snap)
}

func TestNewSeedsEmptyPersister(t *testing.T) {
	s, p := newTestStore(t)

	snap := s.Snapshot()
	assert.Len(t, snap.Vendors, 1)
	assert.Len(t, snap.Vendors[0].Contacts, 2)
	assert.Equal(t, 1, snap.Vendors[0].MainContacts())
	assert.Len(t, snap.Resources, 1)
	assert.Len(t, snap.JobRequirements, 1)
	assert.Len(t, snap.ProcessFlows, 1)
	assert.Len(t, snap.FileCategories, 5)
	assert.Len(t, snap.Files, 3)
	assert.Equal(t, DefaultSkills, snap.TechStackSkills)
	assert.Equal(t, 1, p.Saves, "seed is persisted once")
	assert.Empty(t, s.CheckIntegrity(), "seed references resolve")
}

func TestNewRestoresPersistedSnapshot(t *testing.T) {
	persisted := &models.Snapshot{Vendors: []models.Vendor{{ID: "v-1", Name: "Kept"}}}
	p := NewMemoryPersister(persisted)

	s, err := New(context.Background(), p, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	v, err := s.GetVendor("v-1")
	require.NoError(t, err)
	assert.Equal(t, "Kept", v.Name)
	assert.NotNil(t, v.Contacts)
	assert.Empty(t, s.ListResources())
	assert.Equal(t, 0, p.Saves)
}

func TestWithoutSeed(t *testing.T) {
	s, p := newTestStore(t, WithoutSeed())
	snap := s.Snapshot()
	assert.Empty(t, snap.Vendors)
	assert.NotNil(t, snap.Files)
	assert.Empty(t, snap.TechStackSkills)

	persisted, err := p.Load(context.Background())
	require.NoError(t, err)
	for name, coll := range map[string]any{
		"vendors":   persisted.Vendors,
		"resources": persisted.Resources,
		"jobs":      persisted.JobRequirements,
		"flows":     persisted.ProcessFlows,
		"skills":    persisted.TechStackSkills,
		"files":     persisted.Files,
	} {
		assert.NotNil(t, coll, name)
	}
}

func TestAddAssignsIDAndTimestamps(t *testing.T) {
	s, p := newTestStore(t, WithoutSeed())
	ctx := context.Background()

	v, err := s.AddVendor(ctx, models.Vendor{
		ID:       "ignored",
		Name:     "Acme",
		Contacts: []models.VendorContact{{Name: "Ann", IsMainContact: true}},
	})
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", v.ID)
	assert.NotEmpty(t, v.Contacts[0].ID)
	assert.False(t, v.CreatedAt.IsZero())
	assert.Equal(t, v.CreatedAt, v.UpdatedAt)

	got, err := s.GetVendor(v.ID)
	require.NoError(t, err)
	assert.Equal(t, v, got)
	assert.Equal(t, 2, p.Saves)
}

func TestUpdateOverlaysPatchAndAdvancesUpdatedAt(t *testing.T) {
	s, _ := newTestStore(t, WithoutSeed())
	ctx := context.Background()

	r, err := s.AddResource(ctx, models.Resource{Name: "Alice", Email: "a@x.io", Experience: 3})
	require.NoError(t, err)

	updated, err := s.UpdateResource(ctx, r.ID, models.ResourceUpdate{Experience: utils.Ptr(4)})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Experience)
	assert.Equal(t, "Alice", updated.Name, "untouched fields survive")
	assert.True(t, updated.UpdatedAt.After(r.UpdatedAt), "updatedAt strictly increases with a frozen clock")

	again, err := s.UpdateResource(ctx, r.ID, models.ResourceUpdate{})
	require.NoError(t, err)
	assert.True(t, again.UpdatedAt.After(updated.UpdatedAt))
}

func TestMissingIDsReturnNotFound(t *testing.T) {
	s, _ := newTestStore(t, WithoutSeed())
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"update vendor", func() error { _, err := s.UpdateVendor(ctx, "nope", models.VendorUpdate{}); return err }},
		{"delete vendor", func() error { return s.DeleteVendor(ctx, "nope") }},
		{"update resource", func() error { _, err := s.UpdateResource(ctx, "nope", models.ResourceUpdate{}); return err }},
		{"delete job", func() error { return s.DeleteJobRequirement(ctx, "nope") }},
		{"update flow", func() error { _, err := s.UpdateProcessFlow(ctx, "nope", models.ProcessFlowUpdate{}); return err }},
		{"delete category", func() error { return s.DeleteFileCategory(ctx, "nope") }},
		{"update file", func() error { _, err := s.UpdateFile(ctx, "nope", models.FileRecordUpdate{}); return err }},
		{"get file", func() error { _, err := s.GetFile("nope"); return err }},
		{"history", func() error { _, err := s.ProcessFlowHistory("nope"); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), e.ErrNotFound)
		})
	}
}

func TestDeleteRemovesOnlyTarget(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	before := s.Snapshot()
	jobID := before.JobRequirements[0].ID

	require.NoError(t, s.DeleteJobRequirement(ctx, jobID))

	after := s.Snapshot()
	assert.Len(t, after.JobRequirements, len(before.JobRequirements)-1)
	_, err := s.GetJobRequirement(jobID)
	assert.ErrorIs(t, err, e.ErrNotFound)

	// no cascade: the flow survives and now dangles
	assert.Len(t, after.ProcessFlows, 1)
	issues := s.CheckIntegrity()
	require.NotEmpty(t, issues)
	assert.Equal(t, "jobId", issues[0].Field)
	assert.Equal(t, jobID, issues[0].Ref)
}

func TestPersistFailureRollsBack(t *testing.T) {
	p := &failingPersister{failAfter: 1}
	s, err := New(context.Background(), p, WithoutSeed(), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	_, err = s.AddVendor(context.Background(), models.Vendor{Name: "Lost"})
	require.Error(t, err)
	assert.Empty(t, s.ListVendors())
}

func TestMainContactInvariant(t *testing.T) {
	s, _ := newTestStore(t, WithoutSeed())
	ctx := context.Background()

	_, err := s.AddVendor(ctx, models.Vendor{
		Name: "Two mains",
		Contacts: []models.VendorContact{
			{Name: "A", IsMainContact: true},
			{Name: "B", IsMainContact: true},
		},
	})
	assert.ErrorIs(t, err, e.ErrInvalidInput)

	v, err := s.AddVendor(ctx, models.Vendor{
		Name:     "Acme",
		Contacts: []models.VendorContact{{Name: "A", IsMainContact: true}, {Name: "B"}},
	})
	require.NoError(t, err)

	v, err = s.SetMainContact(ctx, v.ID, v.Contacts[1].ID)
	require.NoError(t, err)
	assert.False(t, v.Contacts[0].IsMainContact)
	assert.True(t, v.Contacts[1].IsMainContact)

	_, err = s.SetMainContact(ctx, v.ID, "ghost")
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestProcessFlowHistory(t *testing.T) {
	s, _ := newTestStore(t, WithoutSeed())
	ctx := context.Background()

	f, err := s.AddProcessFlow(ctx, models.ProcessFlow{
		JobID: "j", ResourceID: "r", Status: pipeline.ResumeSubmitted, UpdatedBy: "admin",
	})
	require.NoError(t, err)
	require.Len(t, f.History, 1)

	_, err = s.UpdateProcessFlow(ctx, f.ID, models.ProcessFlowUpdate{
		Status: utils.Ptr(pipeline.ScreeningScheduled),
		Notes:  utils.Ptr("call booked"),
	})
	require.NoError(t, err)

	// notes only: no new history entry
	_, err = s.UpdateProcessFlow(ctx, f.ID, models.ProcessFlowUpdate{Notes: utils.Ptr("moved")})
	require.NoError(t, err)

	h, err := s.ProcessFlowHistory(f.ID)
	require.NoError(t, err)
	require.Len(t, h, 2)
	assert.Equal(t, pipeline.ScreeningScheduled, h[0].Status)
	assert.Equal(t, "call booked", h[0].Notes)
	assert.Equal(t, pipeline.ResumeSubmitted, h[1].Status)
	assert.Equal(t, "admin", h[1].UpdatedBy)
}

func TestProcessFlowHistoryFallsBackToSynthesized(t *testing.T) {
	updated := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	p := NewMemoryPersister(&models.Snapshot{ProcessFlows: []models.ProcessFlow{{
		ID: "f1", Status: pipeline.ClientScreeningScheduled, UpdatedAt: updated, Notes: "n",
	}}})
	s, err := New(context.Background(), p, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	h, err := s.ProcessFlowHistory("f1")
	require.NoError(t, err)
	require.Len(t, h, 4)
	assert.Equal(t, pipeline.ResumeSubmitted, h[3].Status)
	assert.Equal(t, updated.AddDate(0, 0, -3), h[3].Timestamp)
}

func TestStrictTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("lenient by default", func(t *testing.T) {
		s, _ := newTestStore(t, WithoutSeed())
		f, err := s.AddProcessFlow(ctx, models.ProcessFlow{Status: pipeline.Cleared})
		require.NoError(t, err)
		_, err = s.UpdateProcessFlow(ctx, f.ID, models.ProcessFlowUpdate{Status: utils.Ptr(pipeline.ResumeSubmitted)})
		assert.NoError(t, err)
	})

	t.Run("strict rejects leaving a terminal state", func(t *testing.T) {
		s, _ := newTestStore(t, WithoutSeed(), WithStrictTransitions(true))
		f, err := s.AddProcessFlow(ctx, models.ProcessFlow{Status: pipeline.Cleared})
		require.NoError(t, err)
		_, err = s.UpdateProcessFlow(ctx, f.ID, models.ProcessFlowUpdate{Status: utils.Ptr(pipeline.ResumeSubmitted)})
		assert.ErrorIs(t, err, e.ErrInvalidTransition)

		got, err := s.GetProcessFlow(f.ID)
		require.NoError(t, err)
		assert.Equal(t, pipeline.Cleared, got.Status, "rejected update leaves the flow untouched")
	})
}

func TestSkillsAreASet(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()
	saves := p.Saves

	require.NoError(t, s.AddTechStackSkill(ctx, "React"))
	assert.Equal(t, saves, p.Saves, "duplicate is a no-op")

	require.NoError(t, s.AddTechStackSkill(ctx, " Elixir "))
	skills := s.ListTechStackSkills()
	assert.Equal(t, "Elixir", skills[len(skills)-1])
	assert.Len(t, skills, len(DefaultSkills)+1)

	assert.ErrorIs(t, s.AddTechStackSkill(ctx, "  "), e.ErrInvalidInput)
}

func TestFilesByEntityAndCategory(t *testing.T) {
	s, _ := newTestStore(t)
	snap := s.Snapshot()

	vendorID := snap.Vendors[0].ID
	files := s.FilesByEntity(models.EntityVendor, vendorID)
	require.Len(t, files, 1)
	assert.Equal(t, "TechCorp Agreement", files[0].Name)

	assert.Empty(t, s.FilesByEntity(models.EntityResource, vendorID))
	assert.Len(t, s.FilesByCategory(snap.FileCategories[1].ID), 1)
	assert.Empty(t, s.FilesByCategory(snap.FileCategories[4].ID))
}

func TestCategoryCycleIsReported(t *testing.T) {
	s, _ := newTestStore(t, WithoutSeed())
	ctx := context.Background()

	a, err := s.AddFileCategory(ctx, models.FileCategory{Name: "a"})
	require.NoError(t, err)
	b, err := s.AddFileCategory(ctx, models.FileCategory{Name: "b", ParentID: a.ID})
	require.NoError(t, err)
	assert.Empty(t, s.CheckIntegrity())

	_, err = s.UpdateFileCategory(ctx, a.ID, models.FileCategoryUpdate{ParentID: utils.Ptr(b.ID)})
	require.NoError(t, err)

	issues := s.CheckIntegrity()
	assert.Len(t, issues, 2)
	for _, is := range issues {
		assert.Equal(t, EntityFileCategory, is.Entity)
	}
}

func TestSubscribe(t *testing.T) {
	s, _ := newTestStore(t, WithoutSeed())
	ctx := context.Background()

	ch, cancel := s.Subscribe(4)
	defer cancel()

	v, err := s.AddVendor(ctx, models.Vendor{Name: "Acme"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteVendor(ctx, v.ID))

	got := <-ch
	assert.Equal(t, Created, got.Kind)
	assert.Equal(t, EntityVendor, got.Entity)
	assert.Equal(t, v.ID, got.ID)

	got = <-ch
	assert.Equal(t, Deleted, got.Kind)

	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestSubscriberOverflowIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s, err := New(context.Background(), NewMemoryPersister(nil), WithoutSeed(), WithLogger(zap.New(core)))
	require.NoError(t, err)

	_, cancel := s.Subscribe(1)
	defer cancel()

	ctx := context.Background()
	_, err = s.AddVendor(ctx, models.Vendor{Name: "one"})
	require.NoError(t, err)
	_, err = s.AddVendor(ctx, models.Vendor{Name: "two"})
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("Subscriber queue full, dropping change").Len())
}

type recordingPersister struct {
	mu    sync.Mutex
	saved []*models.Snapshot
	err   error
}

func (r *recordingPersister) Load(context.Context) (*models.Snapshot, error) { return nil, nil }

func (r *recordingPersister) Save(_ context.Context, snap *models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, snap)
	return r.err
}

func TestMirrorReceivesSnapshots(t *testing.T) {
	mirror := &recordingPersister{err: errors.New("db down")}
	s, err := New(context.Background(), NewMemoryPersister(nil),
		WithoutSeed(), WithMirror(mirror), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	_, err = s.AddVendor(context.Background(), models.Vendor{Name: "Acme"})
	require.NoError(t, err, "mirror failures never fail a mutation")

	s.Close()
	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	require.Len(t, mirror.saved, 2)
	assert.Len(t, mirror.saved[1].Vendors, 1)
}

func TestReload(t *testing.T) {
	p := NewMemoryPersister(nil)
	s, err := New(context.Background(), p, WithoutSeed(), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	ch, cancel := s.Subscribe(1)
	defer cancel()

	require.NoError(t, p.Save(context.Background(), &models.Snapshot{Vendors: []models.Vendor{{ID: "ext"}}}))
	require.NoError(t, s.Reload(context.Background()))

	_, err = s.GetVendor("ext")
	assert.NoError(t, err)
	assert.Equal(t, Reloaded, (<-ch).Kind)
}

// gatedPersister holds Load open until release is closed, once armed.
type gatedPersister struct {
	*MemoryPersister
	loaded  chan struct{}
	release chan struct{}
}

func (p *gatedPersister) Load(ctx context.Context) (*models.Snapshot, error) {
	snap, err := p.MemoryPersister.Load(ctx)
	if p.release != nil {
		close(p.loaded)
		<-p.release
	}
	return snap, err
}

func TestReloadDoesNotLoseConcurrentMutation(t *testing.T) {
	ctx := context.Background()
	p := &gatedPersister{MemoryPersister: NewMemoryPersister(nil)}
	s, err := New(ctx, p, WithoutSeed(), WithLogger(zaptest.NewLogger(t)), WithIDGenerator(sequentialIDs()))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, p.Save(ctx, &models.Snapshot{Vendors: []models.Vendor{{ID: "ext", Name: "External"}}}))
	p.loaded = make(chan struct{})
	p.release = make(chan struct{})

	reloaded := make(chan error, 1)
	go func() { reloaded <- s.Reload(ctx) }()
	<-p.loaded

	var added atomic.Bool
	addErr := make(chan error, 1)
	go func() {
		_, err := s.AddVendor(ctx, models.Vendor{Name: "Acme"})
		added.Store(true)
		addErr <- err
	}()

	assert.Never(t, added.Load, 50*time.Millisecond, 5*time.Millisecond, "mutation waits for the reload")
	close(p.release)
	require.NoError(t, <-reloaded)
	require.NoError(t, <-addErr)

	vendors := s.Snapshot().Vendors
	require.Len(t, vendors, 2)
	assert.Equal(t, "ext", vendors[0].ID)
	assert.Equal(t, "Acme", vendors[1].Name)
}

func TestConcurrentMutations(t *testing.T) {
	s, _ := newTestStore(t, WithoutSeed())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AddResource(ctx, models.Resource{Name: fmt.Sprintf("r%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Len(t, s.ListResources(), 20)
}
