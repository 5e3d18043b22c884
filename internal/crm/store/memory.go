package store

import (
	"context"
	"sync"

	"github.com/gartstein/staffing/internal/crm/models"
)

// MemoryPersister keeps the last saved snapshot in memory. Used in tests and
// when no data directory is configured.
type MemoryPersister struct {
	mu   sync.Mutex
	snap *models.Snapshot
	// Saves counts successful Save calls.
	Saves int
}

// NewMemoryPersister returns a persister preloaded with snap, which may be nil.
func NewMemoryPersister(snap *models.Snapshot) *MemoryPersister {
	return &MemoryPersister{snap: snap}
}

func (p *MemoryPersister) Load(_ context.Context) (*models.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snap == nil {
		return nil, nil
	}
	return p.snap.Clone(), nil
}

func (p *MemoryPersister) Save(_ context.Context, snap *models.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = snap.Clone()
	p.Saves++
	return nil
}
