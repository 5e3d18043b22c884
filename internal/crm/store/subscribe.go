package store

import (
	"time"

	"go.uber.org/zap"
)

// ChangeKind says what happened to a record.
type ChangeKind string

const (
	Created  ChangeKind = "created"
	Updated  ChangeKind = "updated"
	Deleted  ChangeKind = "deleted"
	Reloaded ChangeKind = "reloaded"
)

// EntityKind names a collection of the store.
type EntityKind string

const (
	EntityVendor       EntityKind = "vendor"
	EntityResource     EntityKind = "resource"
	EntityJob          EntityKind = "job"
	EntityProcessFlow  EntityKind = "process_flow"
	EntityFileCategory EntityKind = "file_category"
	EntityFile         EntityKind = "file"
	EntitySkill        EntityKind = "skill"
)

// Change is published to subscribers after every committed mutation.
type Change struct {
	Kind   ChangeKind `json:"kind"`
	Entity EntityKind `json:"entity,omitempty"`
	ID     string     `json:"id,omitempty"`
	At     time.Time  `json:"at"`
}

// Subscribe returns a channel receiving every committed change and a cancel
// function that unregisters and closes it. Changes are dropped for a
// subscriber whose buffer is full.
func (s *Store) Subscribe(buffer int) (<-chan Change, func()) {
	ch := make(chan Change, buffer)

	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	var cancelled bool
	cancel := func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		if cancelled {
			return
		}
		cancelled = true
		delete(s.subs, id)
		close(ch)
	}
	return ch, cancel
}

func (s *Store) publish(c Change) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
			s.logger.Warn("Subscriber queue full, dropping change",
				zap.String("kind", string(c.Kind)),
				zap.String("entity", string(c.Entity)),
				zap.String("id", c.ID),
			)
		}
	}
}
