package internal

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/derWhity/gustavo/internal/log"
	"github.com/derWhity/gustavo/internal/models"
	"github.com/derWhity/gustavo/internal/repos"
)

// SessionService provides functions for joining events and interacting with the resulting session
type SessionService interface {
	// Join lets a user enter an event by presenting the event's PIN. On success, a session token
	// scoped to exactly this event is issued. Joining again while already being a guest simply
	// issues a fresh token
	Join(ctx context.Context, eventID string, email string, displayName string, pin string) (*SessionInfo, error)
	// Leave terminates a currently active session
	Leave(ctx context.Context, sessionID string) error
	// WhoAmI returns information about the current session
	WhoAmI(ctx context.Context, sessionID string) (*SessionInfo, error)
	// GetContents returns the session data associated with the given session ID
	// This service function will be used internally and does not have an endpoint
	GetContents(ctx context.Context, sessionID string, extendExpiry bool) (*models.Session, error)
}

// -- Session service implementation -----------------------------------------------------------------------------------

// SessionInfo is the session information object returned upon joining an event. It contains both,
// the session token and information about the guest it belongs to
type SessionInfo struct {
	Token       string `json:"token"`
	EventID     string `json:"eventId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IsAdmin     bool   `json:"isAdmin"`
}

type sessionService struct {
	logger   *logrus.Entry
	sessions repos.SessionRepo
	events   repos.EventRepo
}

// NewSessionService creates a new session service instance with the provided repositories
func NewSessionService(sr repos.SessionRepo, er repos.EventRepo, logger *logrus.Entry) SessionService {
	return &sessionService{
		logger:   logger,
		sessions: sr,
		events:   er,
	}
}

// errJoinFailed is the single error returned for every failed join attempt. A caller probing with
// wrong PINs cannot tell a bad PIN from anything else
func errJoinFailed() error {
	return MakeError(http.StatusForbidden, ErrCodeJoinFailed, "Joining the event failed")
}

// Join lets a user enter an event by presenting the event's PIN
func (s *sessionService) Join(ctx context.Context, eventID string, email string, displayName string, pin string) (*SessionInfo, error) {
	email = models.NormalizeEmail(email)
	if !models.ValidEmail(email) {
		return nil, MakeErrorWithData(http.StatusBadRequest, ErrCodeIllegalValue,
			"Email address is not valid", map[string]string{"field": "email"},
		)
	}
	displayName = models.NormalizeDisplayName(displayName)
	if displayName == "" {
		return nil, MakeErrorWithData(http.StatusBadRequest, ErrCodeRequiredFieldMissing,
			"Display name missing", map[string]string{"field": "displayName"},
		)
	}
	var isAdmin bool
	err := s.events.Mutate(eventID, func(ev *models.Event) error {
		if err := ev.VerifyPin(pin); err != nil {
			return errJoinFailed()
		}
		u, ok := ev.Users[email]
		if !ok {
			u = models.User{
				Email:    email,
				JoinedAt: time.Now(),
				IsAdmin:  ev.Admins[email],
			}
		}
		// A rejoin keeps the bookmarks but may bring a new display name
		u.DisplayName = displayName
		ev.Users[email] = u
		isAdmin = ev.IsAdmin(email)
		return nil
	})
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			// An unknown event ID looks exactly like a wrong PIN
			return nil, errJoinFailed()
		}
		return nil, mapEventRepoError(err, eventID)
	}
	sess, err := s.sessions.CreateFor(eventID, email, isAdmin)
	if err != nil {
		s.logger.WithError(err).Error("Failed to create session")
		return nil, MakeError(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Failed to create session",
		)
	}
	s.logger.WithFields(logrus.Fields{
		log.FldEvent: eventID,
		log.FldUser:  email,
	}).Info("Guest joined event")
	return &SessionInfo{
		Token:       sess.ID,
		EventID:     sess.EventID,
		Email:       sess.Email,
		DisplayName: displayName,
		IsAdmin:     sess.IsAdmin,
	}, nil
}

// Leave terminates a currently active session
func (s *sessionService) Leave(ctx context.Context, sessionID string) error {
	err := s.sessions.Delete(sessionID)
	if err != nil && err != repos.ErrEntityNotExisting {
		s.logger.WithError(err).Error("Failed to delete session")
		return MakeError(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Failed to leave. Error in the data store",
		)
	}
	return nil
}

// WhoAmI returns information about the current session
func (s *sessionService) WhoAmI(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.GetContents(ctx, sessionID, false)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotJoined
	}
	info := &SessionInfo{
		Token:   sess.ID,
		EventID: sess.EventID,
		Email:   sess.Email,
		IsAdmin: sess.IsAdmin,
	}
	// The display name lives with the event's guest record
	if ev, err := s.events.Get(sess.EventID); err == nil {
		if u, ok := ev.Users[sess.Email]; ok {
			info.DisplayName = u.DisplayName
		}
	}
	return info, nil
}

// GetContents returns the session data associated with the given session ID
// This service function will be used internally and does not have an endpoint
func (s *sessionService) GetContents(ctx context.Context, sessionID string, extendExpiry bool) (*models.Session, error) {
	sess, err := s.sessions.GetByID(sessionID, extendExpiry)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, nil
		}
		s.logger.WithError(err).Error("Failed to retrieve session from repo")
		return nil, MakeError(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Failed to retrieve session information from storage",
		)
	}
	return sess, nil
}
