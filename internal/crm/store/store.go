// Package store implements the Entity Store: the in-memory collections of
// every CRM record, written through to a Persister on each mutation.
//
// A Store is an explicit handle built once at startup and passed to its
// consumers. It is safe for concurrent use.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	e "github.com/gartstein/staffing/internal/crm/errors"
	"github.com/gartstein/staffing/internal/crm/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Persister stores and restores full snapshots.
type Persister interface {
	// Load returns the last saved snapshot, or nil when nothing was saved yet.
	Load(ctx context.Context) (*models.Snapshot, error)
	Save(ctx context.Context, snapshot *models.Snapshot) error
}

// Store owns all CRM collections.
type Store struct {
	mu        sync.RWMutex
	data      *models.Snapshot
	persister Persister
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
	strict    bool
	seed      bool

	mirror       Persister
	mirrorQueue  chan *models.Snapshot
	mirrorDone   chan struct{}
	mirrorClosed sync.Once

	subsMu  sync.Mutex
	subs    map[int]chan Change
	nextSub int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger.Named("entity_store") }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithStrictTransitions makes process flow updates follow pipeline.CanTransition.
func WithStrictTransitions(strict bool) Option {
	return func(s *Store) { s.strict = strict }
}

// WithoutSeed starts an empty store when the persister has no snapshot.
func WithoutSeed() Option {
	return func(s *Store) { s.seed = false }
}

// WithMirror sends every committed snapshot to a secondary persister in the
// background. Mirror failures are logged and never fail a mutation.
func WithMirror(mirror Persister) Option {
	return func(s *Store) { s.mirror = mirror }
}

// New builds a Store and restores the persisted snapshot. When nothing has
// been persisted yet the store starts from the built-in seed data.
func New(ctx context.Context, persister Persister, opts ...Option) (*Store, error) {
	s := &Store{
		persister: persister,
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		seed:      true,
		subs:      make(map[int]chan Change),
	}
	for _, opt := range opts {
		opt(s)
	}

	snap, err := persister.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if snap == nil {
		if s.seed {
			snap = Seed(s.newID)
		} else {
			snap = &models.Snapshot{}
		}
		snap = normalize(snap)
		if err := persister.Save(ctx, snap); err != nil {
			return nil, fmt.Errorf("failed to persist initial snapshot: %w", err)
		}
	}
	s.data = normalize(snap)

	if s.mirror != nil {
		s.mirrorQueue = make(chan *models.Snapshot, 16)
		s.mirrorDone = make(chan struct{})
		go s.mirrorLoop()
		s.enqueueMirror(s.data.Clone())
	}
	return s, nil
}

// Close stops the mirror worker after it drains queued snapshots.
func (s *Store) Close() {
	if s.mirrorQueue == nil {
		return
	}
	s.mirrorClosed.Do(func() {
		close(s.mirrorQueue)
		<-s.mirrorDone
	})
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() *models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// Reload replaces the in-memory state with the persisted snapshot. It is used
// when another writer changed the persisted state; the last write wins.
// Mutations wait until the reload is done, so none is lost under it.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	snap, err := s.persister.Load(ctx)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to reload snapshot: %w", err)
	}
	if snap == nil {
		s.mu.Unlock()
		return nil
	}
	s.data = normalize(snap)
	s.mu.Unlock()

	s.publish(Change{Kind: Reloaded, At: s.now()})
	return nil
}

// mutate runs fn against a copy of the state and commits the copy only when
// it was persisted.
func (s *Store) mutate(ctx context.Context, fn func(next *models.Snapshot) (Change, error)) error {
	s.mu.Lock()
	next := s.data.Clone()
	change, err := fn(next)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if change.Kind == "" {
		s.mu.Unlock()
		return nil
	}
	if err := s.persister.Save(ctx, next); err != nil {
		s.mu.Unlock()
		s.logger.Error("Failed to persist snapshot",
			zap.Error(err),
			zap.String("entity", string(change.Entity)),
			zap.String("id", change.ID),
		)
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}
	s.data = next
	s.mu.Unlock()

	change.At = s.now()
	s.enqueueMirror(next.Clone())
	s.publish(change)
	return nil
}

// tick returns the current time, bumped past prev so that successive
// updates always move forward.
func (s *Store) tick(prev time.Time) time.Time {
	t := s.now()
	if !t.After(prev) {
		t = prev.Add(time.Nanosecond)
	}
	return t
}

func (s *Store) enqueueMirror(snap *models.Snapshot) {
	if s.mirrorQueue == nil {
		return
	}
	select {
	case s.mirrorQueue <- snap:
	default:
		s.logger.Warn("Mirror queue full, dropping snapshot")
	}
}

func (s *Store) mirrorLoop() {
	defer close(s.mirrorDone)
	for snap := range s.mirrorQueue {
		if err := s.mirror.Save(context.Background(), snap); err != nil {
			s.logger.Error("Failed to mirror snapshot", zap.Error(err))
		}
	}
}

// collection binds generic helpers to one slice of the snapshot.
type collection[T any] struct {
	kind  EntityKind
	slice func(*models.Snapshot) *[]T
	id    func(*T) string
}

var (
	vendorsC = collection[models.Vendor]{
		kind:  EntityVendor,
		slice: func(s *models.Snapshot) *[]models.Vendor { return &s.Vendors },
		id:    func(v *models.Vendor) string { return v.ID },
	}
	resourcesC = collection[models.Resource]{
		kind:  EntityResource,
		slice: func(s *models.Snapshot) *[]models.Resource { return &s.Resources },
		id:    func(r *models.Resource) string { return r.ID },
	}
	jobsC = collection[models.JobRequirement]{
		kind:  EntityJob,
		slice: func(s *models.Snapshot) *[]models.JobRequirement { return &s.JobRequirements },
		id:    func(j *models.JobRequirement) string { return j.ID },
	}
	flowsC = collection[models.ProcessFlow]{
		kind:  EntityProcessFlow,
		slice: func(s *models.Snapshot) *[]models.ProcessFlow { return &s.ProcessFlows },
		id:    func(f *models.ProcessFlow) string { return f.ID },
	}
	categoriesC = collection[models.FileCategory]{
		kind:  EntityFileCategory,
		slice: func(s *models.Snapshot) *[]models.FileCategory { return &s.FileCategories },
		id:    func(c *models.FileCategory) string { return c.ID },
	}
	filesC = collection[models.FileRecord]{
		kind:  EntityFile,
		slice: func(s *models.Snapshot) *[]models.FileRecord { return &s.Files },
		id:    func(f *models.FileRecord) string { return f.ID },
	}
)

func indexOf[T any](c collection[T], snap *models.Snapshot, id string) int {
	items := *c.slice(snap)
	for i := range items {
		if c.id(&items[i]) == id {
			return i
		}
	}
	return -1
}

func insert[T any](ctx context.Context, s *Store, c collection[T], item T) error {
	return s.mutate(ctx, func(next *models.Snapshot) (Change, error) {
		items := c.slice(next)
		*items = append(*items, item)
		return Change{Kind: Created, Entity: c.kind, ID: c.id(&item)}, nil
	})
}

func modify[T any](ctx context.Context, s *Store, c collection[T], id string, apply func(*T) error) (T, error) {
	var updated T
	err := s.mutate(ctx, func(next *models.Snapshot) (Change, error) {
		i := indexOf(c, next, id)
		if i < 0 {
			return Change{}, fmt.Errorf("%w: %s %s", e.ErrNotFound, c.kind, id)
		}
		items := *c.slice(next)
		item := items[i]
		if err := apply(&item); err != nil {
			return Change{}, err
		}
		items[i] = item
		updated = item
		return Change{Kind: Updated, Entity: c.kind, ID: id}, nil
	})
	return updated, err
}

func remove[T any](ctx context.Context, s *Store, c collection[T], id string) error {
	return s.mutate(ctx, func(next *models.Snapshot) (Change, error) {
		i := indexOf(c, next, id)
		if i < 0 {
			return Change{}, fmt.Errorf("%w: %s %s", e.ErrNotFound, c.kind, id)
		}
		items := c.slice(next)
		*items = append((*items)[:i:i], (*items)[i+1:]...)
		return Change{Kind: Deleted, Entity: c.kind, ID: id}, nil
	})
}

func get[T any](s *Store, c collection[T], id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(c, s.data, id)
	if i < 0 {
		var zero T
		return zero, fmt.Errorf("%w: %s %s", e.ErrNotFound, c.kind, id)
	}
	return (*c.slice(s.data))[i], nil
}

func list[T any](s *Store, c collection[T]) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]T{}, *c.slice(s.data)...)
}

// normalize fills nil collections so snapshots always serialise as arrays.
func normalize(snap *models.Snapshot) *models.Snapshot {
	if snap.Vendors == nil {
		snap.Vendors = []models.Vendor{}
	}
	if snap.Resources == nil {
		snap.Resources = []models.Resource{}
	}
	if snap.JobRequirements == nil {
		snap.JobRequirements = []models.JobRequirement{}
	}
	if snap.ProcessFlows == nil {
		snap.ProcessFlows = []models.ProcessFlow{}
	}
	if snap.TechStackSkills == nil {
		snap.TechStackSkills = []string{}
	}
	if snap.FileCategories == nil {
		snap.FileCategories = []models.FileCategory{}
	}
	if snap.Files == nil {
		snap.Files = []models.FileRecord{}
	}
	for i := range snap.Vendors {
		if snap.Vendors[i].Contacts == nil {
			snap.Vendors[i].Contacts = []models.VendorContact{}
		}
	}
	return snap
}
