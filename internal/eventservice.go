package internal

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/derWhity/gustavo/internal/ctxhelper"
	"github.com/derWhity/gustavo/internal/log"
	"github.com/derWhity/gustavo/internal/models"
	"github.com/derWhity/gustavo/internal/repos"
)

// EventService provides service functions for working with tasting events
type EventService interface {
	// List searches for events matching the given search term
	List(ctx context.Context, search *Search) ([]models.Event, uint, error)
	// Get returns the event with the given ID - reduced to what the calling session may see
	Get(ctx context.Context, id string) (*models.Event, error)
	// Create creates a new event owned by the given email address
	Create(ctx context.Context, ev *models.Event) (*models.Event, error)
	// Delete removes an event including all of its users, ratings and sessions - owner only
	Delete(ctx context.Context, id string) error
	// UpdateItemConfig replaces the event's item configuration
	UpdateItemConfig(ctx context.Context, id string, cfg models.ItemConfig) error
	// RegeneratePin replaces the event's PIN with a fresh one and returns it. Concurrent
	// regenerations do not conflict - the event ends up with whichever PIN was written last
	RegeneratePin(ctx context.Context, id string) (string, error)
	// Transition moves the event's lifecycle state from `expected` to `to`. The caller's expected
	// state is the optimistic-concurrency token: if the event is no longer in that state, the
	// transition fails without mutating anything
	Transition(ctx context.Context, id string, to models.EventState, expected models.EventState) error
	// AddAdministrator adds the given email address to the event's administrators
	AddAdministrator(ctx context.Context, id string, email string) error
	// RemoveAdministrator removes the given email address from the event's administrators.
	// The owner and the last remaining administrator can never be removed
	RemoveAdministrator(ctx context.Context, id string, email string) error
}

// -- Shared service helpers -------------------------------------------------------------------------------------------

// requireSession returns the session attached to the current call or an error if there is none
func requireSession(ctx context.Context) (*models.Session, error) {
	sess := ctxhelper.Session(ctx)
	if sess == nil {
		return nil, ErrNotJoined
	}
	return sess, nil
}

// errEventNotFound builds the standard error for a missing event
func errEventNotFound(id string) error {
	return MakeError(http.StatusNotFound, ErrCodeEventNotFound, fmt.Sprintf("Event '%s' does not exist", id))
}

// mapEventRepoError translates repo errors on event access into API errors
func mapEventRepoError(err error, id string) error {
	if err == repos.ErrEntityNotExisting {
		return errEventNotFound(id)
	}
	if _, ok := err.(*HTTPError); ok {
		return err
	}
	return MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
		fmt.Sprintf("Error while accessing event '%s'", id), err,
	)
}

// errAdminRequired is returned when the calling session does not belong to an event administrator
func errAdminRequired() error {
	return MakeError(http.StatusForbidden, ErrCodeAdminRequired, "This function needs an administrator of the event")
}

// -- EventService implementation --------------------------------------------------------------------------------------

type eventService struct {
	repo     repos.EventRepo
	sessions repos.SessionRepo
	logger   *logrus.Entry
}

// NewEventService creates a new event service instance
func NewEventService(repo repos.EventRepo, sessions repos.SessionRepo, logger *logrus.Entry) EventService {
	return &eventService{
		repo:     repo,
		sessions: sessions,
		logger:   logger,
	}
}

// sanitizeEvent strips the parts of an event record the calling session may not see. It works on
// the deep copy handed out by the store, so the stored record stays untouched
func sanitizeEvent(ev *models.Event, sess *models.Session) *models.Event {
	// The PIN verifier never leaves the service
	ev.PinHash = ""
	admin := sess != nil && sess.EventID == ev.ID && ev.IsAdmin(sess.Email)
	if !admin {
		ev.Pin = ""
		ev.Users = nil
		ev.Ratings = nil
		ev.Items = nil
	}
	return ev
}

// List searches for events matching the given search term. The returned records are reduced to
// their public summary
func (s *eventService) List(ctx context.Context, search *Search) ([]models.Event, uint, error) {
	sess := ctxhelper.Session(ctx)
	events, numRows, err := s.repo.Find(search.Search, search.Offset, search.Limit)
	if err != nil {
		return nil, 0, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			"Error while searching events", err,
		)
	}
	for i := range events {
		sanitizeEvent(&events[i], sess)
	}
	return events, numRows, nil
}

// Get returns the event with the given ID
func (s *eventService) Get(ctx context.Context, id string) (*models.Event, error) {
	ev, err := s.repo.Get(id)
	if err != nil {
		return nil, mapEventRepoError(err, id)
	}
	return sanitizeEvent(ev, ctxhelper.Session(ctx)), nil
}

// Create creates a new event. Only the name, the owner email and (optionally) the item
// configuration are taken from the incoming record - everything else is initialized here
func (s *eventService) Create(ctx context.Context, ev *models.Event) (*models.Event, error) {
	ev.Name = strings.TrimSpace(ev.Name)
	if ev.Name == "" {
		return nil, MakeErrorWithData(http.StatusBadRequest, ErrCodeRequiredFieldMissing,
			"Event name missing", map[string]string{"field": "name"},
		)
	}
	owner := models.NormalizeEmail(ev.OwnerEmail)
	if !models.ValidEmail(owner) {
		return nil, MakeErrorWithData(http.StatusBadRequest, ErrCodeIllegalValue,
			"Owner email address is not valid", map[string]string{"field": "ownerEmail"},
		)
	}
	if ev.ItemConfig.NumberOfItems == 0 {
		ev.ItemConfig = models.ItemConfig{NumberOfItems: 20}
	}
	if err := ev.ItemConfig.Validate(); err != nil {
		return nil, MakeErrorWithData(http.StatusBadRequest, ErrCodeIllegalValue,
			"Illegal item configuration", err.Error(),
		)
	}
	created := &models.Event{
		ID:         "",
		Name:       ev.Name,
		OwnerEmail: owner,
		State:      models.StateCreated,
		Admins:     map[string]bool{owner: true},
		ItemConfig: ev.ItemConfig,
		Items:      map[string]models.Item{},
		Users:      map[string]models.User{},
		Ratings:    map[string]models.Rating{},
	}
	if err := created.SetPin(models.GeneratePin()); err != nil {
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeUnknown,
			"Failed to generate event PIN", err,
		)
	}
	if err := s.repo.Create(created); err != nil {
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			"Error while creating the event", err,
		)
	}
	// The owner joins their own event right away
	err := s.repo.Mutate(created.ID, func(ev *models.Event) error {
		ev.Users[owner] = models.User{
			Email:    owner,
			JoinedAt: ev.CreatedAt,
			IsAdmin:  true,
		}
		return nil
	})
	if err != nil {
		return nil, mapEventRepoError(err, created.ID)
	}
	s.logger.WithField(log.FldEvent, created.ID).Infof("Created event '%s'", created.Name)
	created.PinHash = ""
	return created, nil
}

// Delete removes an event in its entirety. Every session token issued for the event dies with it
func (s *eventService) Delete(ctx context.Context, id string) error {
	sess, err := requireSession(ctx)
	if err != nil {
		return err
	}
	ev, err := s.repo.Get(id)
	if err != nil {
		return mapEventRepoError(err, id)
	}
	if !ev.IsOwner(sess.Email) {
		return MakeError(http.StatusForbidden, ErrCodeOwnerRequired, "Only the event owner may delete the event")
	}
	if err := s.repo.Delete(id); err != nil {
		return mapEventRepoError(err, id)
	}
	if err := s.sessions.DeleteAllForEvent(id); err != nil {
		s.logger.WithError(err).WithField(log.FldEvent, id).Error("Failed to drop sessions of deleted event")
	}
	s.logger.WithField(log.FldEvent, id).Info("Event deleted")
	return nil
}

// UpdateItemConfig replaces the event's item configuration
func (s *eventService) UpdateItemConfig(ctx context.Context, id string, cfg models.ItemConfig) error {
	sess, err := requireSession(ctx)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return MakeErrorWithData(http.StatusBadRequest, ErrCodeIllegalValue,
			"Illegal item configuration", err.Error(),
		)
	}
	err = s.repo.Mutate(id, func(ev *models.Event) error {
		if !ev.IsAdmin(sess.Email) {
			return errAdminRequired()
		}
		ev.ItemConfig = cfg
		return nil
	})
	return mapNilOrEventError(err, id)
}

// RegeneratePin replaces the event's PIN with a fresh one. This operation is deliberately
// last-write-wins: two administrators regenerating at the same time both succeed
func (s *eventService) RegeneratePin(ctx context.Context, id string) (string, error) {
	sess, err := requireSession(ctx)
	if err != nil {
		return "", err
	}
	pin := models.GeneratePin()
	err = s.repo.Mutate(id, func(ev *models.Event) error {
		if !ev.IsAdmin(sess.Email) {
			return errAdminRequired()
		}
		return ev.SetPin(pin)
	})
	if err != nil {
		return "", mapEventRepoError(err, id)
	}
	s.logger.WithField(log.FldEvent, id).WithField(log.FldUser, sess.Email).Info("Event PIN regenerated")
	return pin, nil
}

// Transition performs the lifecycle transition as an atomic compare-and-set: the expected state is
// compared against the actual one inside the same critical section that writes the new state.
// Of two racing transitions carrying the same expected state, exactly one wins
func (s *eventService) Transition(ctx context.Context, id string, to, expected models.EventState) error {
	sess, err := requireSession(ctx)
	if err != nil {
		return err
	}
	if !models.ValidEventState(to) || !models.ValidEventState(expected) {
		return MakeErrorWithData(http.StatusBadRequest, ErrCodeIllegalValue,
			"Unknown lifecycle state", map[string]string{"field": "state"},
		)
	}
	err = s.repo.Mutate(id, func(ev *models.Event) error {
		if !ev.IsAdmin(sess.Email) {
			return errAdminRequired()
		}
		if ev.State != expected {
			return MakeErrorWithData(http.StatusConflict, ErrCodeStateConflict,
				"The event state has changed - refresh and retry",
				map[string]string{"currentState": string(ev.State)},
			)
		}
		if !expected.CanTransitionTo(to) {
			return MakeError(http.StatusConflict, ErrCodeInvalidTransition,
				fmt.Sprintf("An event cannot go from '%s' to '%s'", expected, to),
			)
		}
		ev.State = to
		return nil
	})
	if err != nil {
		return mapNilOrEventError(err, id)
	}
	s.logger.WithFields(logrus.Fields{
		log.FldEvent: id,
		log.FldUser:  sess.Email,
		log.FldState: string(to),
	}).Info("Event transitioned")
	return nil
}

// AddAdministrator adds the given email address to the event's administrators. Racing duplicate
// adds are resolved inside the critical section: one succeeds, the other sees the conflict
func (s *eventService) AddAdministrator(ctx context.Context, id string, email string) error {
	sess, err := requireSession(ctx)
	if err != nil {
		return err
	}
	email = models.NormalizeEmail(email)
	if !models.ValidEmail(email) {
		return MakeErrorWithData(http.StatusBadRequest, ErrCodeIllegalValue,
			"Email address is not valid", map[string]string{"field": "email"},
		)
	}
	err = s.repo.Mutate(id, func(ev *models.Event) error {
		if !ev.IsAdmin(sess.Email) {
			return errAdminRequired()
		}
		if ev.Admins[email] {
			return MakeError(http.StatusConflict, ErrCodeAdminExists,
				fmt.Sprintf("'%s' already is an administrator of this event", email),
			)
		}
		ev.Admins[email] = true
		u, ok := ev.Users[email]
		if !ok {
			u = models.User{Email: email, JoinedAt: time.Now()}
		}
		u.IsAdmin = true
		ev.Users[email] = u
		return nil
	})
	return mapNilOrEventError(err, id)
}

// RemoveAdministrator removes the given email address from the event's administrators
func (s *eventService) RemoveAdministrator(ctx context.Context, id string, email string) error {
	sess, err := requireSession(ctx)
	if err != nil {
		return err
	}
	email = models.NormalizeEmail(email)
	err = s.repo.Mutate(id, func(ev *models.Event) error {
		if !ev.IsAdmin(sess.Email) {
			return errAdminRequired()
		}
		if !ev.Admins[email] {
			return MakeError(http.StatusNotFound, ErrCodeUserNotFound,
				fmt.Sprintf("'%s' is no administrator of this event", email),
			)
		}
		// The owner is an administrator for the event's whole life - and since the owner can never
		// be removed, the administrator set can never become empty either
		if ev.IsOwner(email) || ev.AdminCount() == 1 {
			return MakeError(http.StatusForbidden, ErrCodeLastAdmin,
				"The event owner and the last administrator cannot be removed",
			)
		}
		delete(ev.Admins, email)
		if u, ok := ev.Users[email]; ok {
			u.IsAdmin = false
			ev.Users[email] = u
		}
		return nil
	})
	return mapNilOrEventError(err, id)
}

// mapNilOrEventError passes service errors through unchanged and maps repo errors
func mapNilOrEventError(err error, id string) error {
	if err == nil {
		return nil
	}
	return mapEventRepoError(err, id)
}
