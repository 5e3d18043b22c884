package controller

import (
	"context"

	"github.com/gartstein/staffing/internal/crm/events"
	"github.com/gartstein/staffing/internal/crm/store"
	"go.uber.org/zap"
)

// snapshotEntityID keys reload events, which concern no single record.
const snapshotEntityID = "snapshot"

// RelayChanges forwards store changes that no service call produced. Service
// mutations send their own events, so only reloads of the snapshot file are
// published. It returns when ctx is done or changes is closed.
func (s *CRMService) RelayChanges(ctx context.Context, changes <-chan store.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			if c.Kind != store.Reloaded {
				continue
			}
			snap := s.repo.Snapshot()
			s.logger.Info("Snapshot reloaded",
				zap.Int("vendors", len(snap.Vendors)),
				zap.Int("resources", len(snap.Resources)),
				zap.Int("processFlows", len(snap.ProcessFlows)))
			s.producer.Produce(events.SnapshotReloaded, snapshotEntityID, c)
		}
	}
}
