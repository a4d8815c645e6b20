// Package inmem provides the event store that holds the event aggregates in-memory.
//
// Every event owns its own lock and its own atomically published snapshot. Mutations clone the
// current snapshot, work on the clone inside the event's critical section and publish the clone
// on success (copy-on-write). Readers load the published snapshot without taking any lock, so a
// read racing a write sees the record from before or after that write - never a torn one.
// Locks of different events are fully independent: no operation ever holds more than one of them.
package inmem

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/gustavo/internal/log"
	"github.com/derWhity/gustavo/internal/models"
	"github.com/derWhity/gustavo/internal/repos"
)

// How many pending archive writes may queue up before mutations start waiting on the archiver
const saveQueueSize = 256

// One event's slot in the store: the serialization lock plus the currently published snapshot
type eventEntry struct {
	mu  sync.Mutex
	cur atomic.Pointer[models.Event]
}

// EventRepo is the in-memory event store
type EventRepo struct {
	mu      sync.RWMutex
	events  map[string]*eventEntry
	archive repos.EventArchive
	saves   chan *models.Event
	logger  *logrus.Entry
}

// New creates a new event store. The archive may be nil; if given, every completed mutation is
// written behind the scenes without blocking the event's critical section
func New(archive repos.EventArchive, logger *logrus.Entry) *EventRepo {
	repo := &EventRepo{
		events:  map[string]*eventEntry{},
		archive: archive,
		logger:  logger,
	}
	if archive != nil {
		repo.saves = make(chan *models.Event, saveQueueSize)
		go repo.drainSaves()
	}
	return repo
}

// drainSaves writes queued snapshots to the archive - one writer, in mutation order
func (r *EventRepo) drainSaves() {
	for ev := range r.saves {
		if err := r.archive.Save(ev); err != nil {
			r.logger.WithError(err).WithField(log.FldEvent, ev.ID).Error("Failed to archive event snapshot")
		}
	}
}

// enqueueSave hands a published (immutable) snapshot to the archive writer. Callers must still
// hold the lock of the snapshot's event so the queue preserves publish order per event
func (r *EventRepo) enqueueSave(ev *models.Event) {
	if r.saves == nil {
		return
	}
	r.saves <- ev
}

// entry returns the slot of the given event
func (r *EventRepo) entry(id string) (*eventEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[id]
	if !ok {
		return nil, repos.ErrEntityNotExisting
	}
	return e, nil
}

// Create adds a new event to the store. An empty ID is replaced by a freshly generated one
func (r *EventRepo) Create(ev *models.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	now := time.Now()
	ev.CreatedAt = now
	ev.UpdatedAt = now
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[ev.ID]; ok {
		return repos.ErrEntityExists
	}
	entry := &eventEntry{}
	entry.cur.Store(ev.Clone())
	r.events[ev.ID] = entry
	r.logger.WithField(log.FldEvent, ev.ID).Debug("Created new event")
	r.enqueueSave(entry.cur.Load())
	return nil
}

// Restore inserts archived events into the store without touching their timestamps. It is used
// once at startup to warm the store from the archive and does not write back to it
func (r *EventRepo) Restore(events []*models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range events {
		if _, ok := r.events[ev.ID]; ok {
			continue
		}
		entry := &eventEntry{}
		entry.cur.Store(ev.Clone())
		r.events[ev.ID] = entry
	}
	r.logger.WithField(log.FldCount, len(events)).Info("Restored events from archive")
}

// Get returns a deep-copied snapshot of the event with the given ID
func (r *EventRepo) Get(id string) (*models.Event, error) {
	entry, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	return entry.cur.Load().Clone(), nil
}

// Mutate runs fn with exclusive access to the event with the given ID. fn receives a private clone
// of the current record; only when fn returns nil is the clone published for readers. This is the
// per-event critical section every write goes through - the compare-and-set of a state transition,
// the duplicate check of an administrator add and the upsert of a rating all happen in here
func (r *EventRepo) Mutate(id string, fn func(ev *models.Event) error) error {
	entry, err := r.entry(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	work := entry.cur.Load().Clone()
	if err := fn(work); err != nil {
		entry.mu.Unlock()
		return err
	}
	work.UpdatedAt = time.Now()
	entry.cur.Store(work)
	// The send has to happen inside the critical section, or two racing mutations could reach
	// the archive in inverted order and persist the stale snapshot
	r.enqueueSave(work)
	entry.mu.Unlock()
	return nil
}

// Delete removes the event with the given ID including all of its users and ratings
func (r *EventRepo) Delete(id string) error {
	r.mu.Lock()
	if _, ok := r.events[id]; !ok {
		r.mu.Unlock()
		return repos.ErrEntityNotExisting
	}
	delete(r.events, id)
	r.mu.Unlock()
	r.logger.WithField(log.FldEvent, id).Debug("Deleted event")
	if r.archive != nil {
		if err := r.archive.Delete(id); err != nil {
			r.logger.WithError(err).WithField(log.FldEvent, id).Error("Failed to remove event from archive")
		}
	}
	return nil
}

// Find searches for events whose name contains the given search string - supports pagination.
// The result is ordered by creation date so paging stays stable
func (r *EventRepo) Find(search string, offset uint, limit uint) ([]models.Event, uint, error) {
	search = strings.ToLower(strings.TrimSpace(search))
	all := r.All()
	var matching []*models.Event
	for _, ev := range all {
		if search == "" || strings.Contains(strings.ToLower(ev.Name), search) {
			matching = append(matching, ev)
		}
	}
	sort.Slice(matching, func(i, j int) bool {
		if matching[i].CreatedAt.Equal(matching[j].CreatedAt) {
			return matching[i].ID < matching[j].ID
		}
		return matching[i].CreatedAt.Before(matching[j].CreatedAt)
	})
	numRows := uint(len(matching))
	if offset >= numRows {
		return []models.Event{}, numRows, nil
	}
	end := offset + limit
	if limit == 0 || end > numRows {
		end = numRows
	}
	ret := make([]models.Event, 0, end-offset)
	for _, ev := range matching[offset:end] {
		ret = append(ret, *ev)
	}
	return ret, numRows, nil
}

// All returns a snapshot of every event in the store
func (r *EventRepo) All() []*models.Event {
	r.mu.RLock()
	entries := make([]*eventEntry, 0, len(r.events))
	for _, e := range r.events {
		entries = append(entries, e)
	}
	r.mu.RUnlock()
	ret := make([]*models.Event, 0, len(entries))
	for _, e := range entries {
		ret = append(ret, e.cur.Load().Clone())
	}
	return ret
}
