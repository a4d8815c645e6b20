// Package repos contains the repository interfaces needed in Gustavo
// It exists to prevent circular dependencies between gustavo and the repo implementations
package repos

import (
	"fmt"

	"github.com/derWhity/gustavo/internal/models"
)

var (
	// ErrEntityNotExisting is fired by a repository when an entity that is read, updated or deleted does not exist
	ErrEntityNotExisting = fmt.Errorf("entity does not exist")
	// ErrEntityExists is fired by a repository when an entity that is created does already exist
	ErrEntityExists = fmt.Errorf("entity does already exist")
)

// EventRepo is the store holding the event aggregates. All mutations of one event run serialized
// inside that event's critical section; reads work on published snapshots and never block a writer
type EventRepo interface {
	// Create adds a new event to the store. An empty ID is replaced by a freshly generated one
	Create(ev *models.Event) error
	// Get returns a deep-copied snapshot of the event with the given ID
	Get(id string) (*models.Event, error)
	// Mutate runs fn with exclusive access to the event with the given ID. The changes fn makes
	// become visible to readers if - and only if - fn returns nil
	Mutate(id string, fn func(ev *models.Event) error) error
	// Delete removes the event with the given ID including all of its users and ratings
	Delete(id string) error
	// Find searches for events matching the given search string - supports pagination
	Find(search string, offset uint, limit uint) ([]models.Event, uint, error)
	// All returns a snapshot of every event in the store
	All() []*models.Event
}

// SessionRepo stores information about active API sessions
type SessionRepo interface {
	// CreateFor creates a new session scoped to the given event for the given user
	CreateFor(eventID string, email string, isAdmin bool) (*models.Session, error)
	// GetByID returns the session associated with the given session ID and extends its expiry if requested
	GetByID(sessionID string, extend bool) (*models.Session, error)
	// Delete removes a session from the session storage
	Delete(sessionID string) error
	// DeleteAllForEvent removes every session that was issued for the given event - used when an
	// event is deleted so that no stale token survives its event
	DeleteAllForEvent(eventID string) error
}

// EventArchive persists event snapshots so the in-memory store survives a restart.
// The store stays the source of truth; the archive only ever sees completed mutations
type EventArchive interface {
	// Save writes the given snapshot to the archive, replacing any previous one
	Save(ev *models.Event) error
	// Delete removes the archived snapshot of the given event
	Delete(id string) error
	// LoadAll returns every archived event snapshot
	LoadAll() ([]*models.Event, error)
}
