package internal

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/derWhity/gustavo/internal/log"
	"github.com/derWhity/gustavo/internal/models"
	"github.com/derWhity/gustavo/internal/ratelimit"
	"github.com/derWhity/gustavo/internal/repos"
)

// RatingService provides service functions for working with the ratings and guests of an event
type RatingService interface {
	// Submit writes the calling user's rating for the given item. Resubmitting a rating for the
	// same item replaces the previous one
	Submit(ctx context.Context, eventID string, itemID int, score int, note string) error
	// Delete removes the calling user's rating for the given item
	Delete(ctx context.Context, eventID string, itemID int) error
	// List returns the ratings of the event - an administrator sees every rating, a regular guest
	// only their own
	List(ctx context.Context, eventID string) ([]models.Rating, error)
	// DeleteAll removes every rating of the event. Items and configuration stay untouched
	DeleteAll(ctx context.Context, eventID string) error
	// DeleteUser removes one guest from the event including all of their ratings. The owner and
	// the last remaining administrator are protected
	DeleteUser(ctx context.Context, eventID string, email string) error
	// DeleteAllNonAdminUsers removes every guest that is not an administrator, including their
	// ratings. Administrators - the owner among them - are always preserved
	DeleteAllNonAdminUsers(ctx context.Context, eventID string) error
	// SaveBookmarks replaces the calling user's bookmarked item IDs
	SaveBookmarks(ctx context.Context, eventID string, itemIDs []int) error
	// UpdateProfile updates the calling user's display name
	UpdateProfile(ctx context.Context, eventID string, displayName string) error
}

// -- RatingService implementation -------------------------------------------------------------------------------------

type ratingService struct {
	repo    repos.EventRepo
	limiter *ratelimit.Limiter
	config  ConfigService
	logger  *logrus.Entry
}

// NewRatingService creates a new rating service instance
func NewRatingService(repo repos.EventRepo, limiter *ratelimit.Limiter, cs ConfigService, logger *logrus.Entry) RatingService {
	return &ratingService{
		repo:    repo,
		limiter: limiter,
		config:  cs,
		logger:  logger,
	}
}

// errTooManyRequests is returned on the excess calls of a write burst
func errTooManyRequests() error {
	return MakeError(http.StatusTooManyRequests, ErrCodeTooManyRequests,
		"You are submitting too fast - please slow down",
	)
}

// errNotStarted is returned when a rating operation hits an event that is not running
func errNotStarted(state models.EventState) error {
	return MakeErrorWithData(http.StatusConflict, ErrCodeEventNotStarted,
		"Ratings can only be changed while the event is running",
		map[string]string{"currentState": string(state)},
	)
}

// Submit writes the calling user's rating for the given item
func (s *ratingService) Submit(ctx context.Context, eventID string, itemID int, score int, note string) error {
	sess, err := requireSession(ctx)
	if err != nil {
		return err
	}
	// The write-frequency guard sits in front of the critical section - a throttled call never
	// touches the store
	if !s.limiter.Allow(eventID, sess.Email) {
		return errTooManyRequests()
	}
	scale := s.config.GetConfig(ctx).Scale
	if !scale.Contains(score) {
		return MakeErrorWithData(http.StatusBadRequest, ErrCodeIllegalValue,
			fmt.Sprintf("The score has to lie between %d and %d", scale.Min, scale.Max),
			map[string]int{"score": score},
		)
	}
	if len([]rune(note)) > models.MaxNoteLength {
		return MakeErrorWithData(http.StatusBadRequest, ErrCodeIllegalValue,
			fmt.Sprintf("The note must not be longer than %d characters", models.MaxNoteLength),
			map[string]int{"length": len([]rune(note))},
		)
	}
	err = s.repo.Mutate(eventID, func(ev *models.Event) error {
		if ev.State != models.StateStarted {
			return errNotStarted(ev.State)
		}
		if !ev.ItemConfig.Contains(itemID) {
			return MakeErrorWithData(http.StatusBadRequest, ErrCodeIllegalValue,
				fmt.Sprintf("Item number %d is not rateable at this event", itemID),
				map[string]int{"itemId": itemID},
			)
		}
		if _, ok := ev.Users[sess.Email]; !ok {
			return MakeError(http.StatusNotFound, ErrCodeUserNotFound,
				"You are no longer a guest of this event",
			)
		}
		ev.Ratings[models.RatingKey(sess.Email, itemID)] = models.Rating{
			Email:     sess.Email,
			ItemID:    itemID,
			Score:     score,
			Note:      note,
			UpdatedAt: time.Now(),
		}
		return nil
	})
	if err != nil {
		return mapEventRepoError(err, eventID)
	}
	s.logger.WithFields(logrus.Fields{
		log.FldEvent: eventID,
		log.FldUser:  sess.Email,
		log.FldItem:  itemID,
	}).Debug("Rating submitted")
	return nil
}

// Delete removes the calling user's rating for the given item
func (s *ratingService) Delete(ctx context.Context, eventID string, itemID int) error {
	sess, err := requireSession(ctx)
	if err != nil {
		return err
	}
	if !s.limiter.Allow(eventID, sess.Email) {
		return errTooManyRequests()
	}
	err = s.repo.Mutate(eventID, func(ev *models.Event) error {
		if ev.State != models.StateStarted {
			return errNotStarted(ev.State)
		}
		key := models.RatingKey(sess.Email, itemID)
		if _, ok := ev.Ratings[key]; !ok {
			return MakeError(http.StatusNotFound, ErrCodeItemNotFound,
				fmt.Sprintf("You have not rated item number %d", itemID),
			)
		}
		delete(ev.Ratings, key)
		return nil
	})
	return mapNilOrEventError(err, eventID)
}

// List returns the ratings visible to the calling user in a stable order
func (s *ratingService) List(ctx context.Context, eventID string) ([]models.Rating, error) {
	sess, err := requireSession(ctx)
	if err != nil {
		return nil, err
	}
	ev, err := s.repo.Get(eventID)
	if err != nil {
		return nil, mapEventRepoError(err, eventID)
	}
	all := ev.IsAdmin(sess.Email)
	ret := make([]models.Rating, 0, len(ev.Ratings))
	for _, r := range ev.Ratings {
		if all || r.Email == sess.Email {
			ret = append(ret, r)
		}
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Email != ret[j].Email {
			return ret[i].Email < ret[j].Email
		}
		return ret[i].ItemID < ret[j].ItemID
	})
	return ret, nil
}

// DeleteAll removes every rating of the event
func (s *ratingService) DeleteAll(ctx context.Context, eventID string) error {
	sess, err := requireSession(ctx)
	if err != nil {
		return err
	}
	err = s.repo.Mutate(eventID, func(ev *models.Event) error {
		if !ev.IsAdmin(sess.Email) {
			return errAdminRequired()
		}
		ev.Ratings = map[string]models.Rating{}
		return nil
	})
	if err != nil {
		return mapEventRepoError(err, eventID)
	}
	s.logger.WithField(log.FldEvent, eventID).WithField(log.FldUser, sess.Email).Info("All ratings deleted")
	return nil
}

// DeleteUser removes one guest and everything they have rated
func (s *ratingService) DeleteUser(ctx context.Context, eventID string, email string) error {
	sess, err := requireSession(ctx)
	if err != nil {
		return err
	}
	email = models.NormalizeEmail(email)
	err = s.repo.Mutate(eventID, func(ev *models.Event) error {
		if !ev.IsAdmin(sess.Email) {
			return errAdminRequired()
		}
		if _, ok := ev.Users[email]; !ok {
			return MakeError(http.StatusNotFound, ErrCodeUserNotFound,
				fmt.Sprintf("'%s' is no guest of this event", email),
			)
		}
		// The owner and the last administrator survive every delete attempt
		if ev.IsOwner(email) || (ev.Admins[email] && ev.AdminCount() == 1) {
			return MakeError(http.StatusForbidden, ErrCodeLastAdmin,
				"The event owner and the last administrator cannot be deleted",
			)
		}
		delete(ev.Users, email)
		delete(ev.Admins, email)
		deleteRatingsOf(ev, email)
		return nil
	})
	if err != nil {
		return mapEventRepoError(err, eventID)
	}
	s.logger.WithField(log.FldEvent, eventID).WithField(log.FldUser, email).Info("Guest deleted")
	return nil
}

// DeleteAllNonAdminUsers removes every guest that does not administrate the event
func (s *ratingService) DeleteAllNonAdminUsers(ctx context.Context, eventID string) error {
	sess, err := requireSession(ctx)
	if err != nil {
		return err
	}
	err = s.repo.Mutate(eventID, func(ev *models.Event) error {
		if !ev.IsAdmin(sess.Email) {
			return errAdminRequired()
		}
		for email, u := range ev.Users {
			if u.IsAdmin || ev.Admins[email] {
				continue
			}
			delete(ev.Users, email)
			deleteRatingsOf(ev, email)
		}
		return nil
	})
	if err != nil {
		return mapEventRepoError(err, eventID)
	}
	s.logger.WithField(log.FldEvent, eventID).WithField(log.FldUser, sess.Email).Info("All non-admin guests deleted")
	return nil
}

// SaveBookmarks replaces the calling user's bookmarked item IDs
func (s *ratingService) SaveBookmarks(ctx context.Context, eventID string, itemIDs []int) error {
	sess, err := requireSession(ctx)
	if err != nil {
		return err
	}
	err = s.repo.Mutate(eventID, func(ev *models.Event) error {
		u, ok := ev.Users[sess.Email]
		if !ok {
			return MakeError(http.StatusNotFound, ErrCodeUserNotFound,
				"You are no longer a guest of this event",
			)
		}
		bookmarks := map[int]bool{}
		for _, id := range itemIDs {
			if !ev.ItemConfig.Contains(id) {
				return MakeErrorWithData(http.StatusBadRequest, ErrCodeIllegalValue,
					fmt.Sprintf("Item number %d cannot be bookmarked at this event", id),
					map[string]int{"itemId": id},
				)
			}
			bookmarks[id] = true
		}
		u.Bookmarks = bookmarks
		ev.Users[sess.Email] = u
		return nil
	})
	return mapNilOrEventError(err, eventID)
}

// UpdateProfile updates the calling user's display name
func (s *ratingService) UpdateProfile(ctx context.Context, eventID string, displayName string) error {
	sess, err := requireSession(ctx)
	if err != nil {
		return err
	}
	name := models.NormalizeDisplayName(displayName)
	err = s.repo.Mutate(eventID, func(ev *models.Event) error {
		u, ok := ev.Users[sess.Email]
		if !ok {
			return MakeError(http.StatusNotFound, ErrCodeUserNotFound,
				"You are no longer a guest of this event",
			)
		}
		u.DisplayName = name
		ev.Users[sess.Email] = u
		return nil
	})
	return mapNilOrEventError(err, eventID)
}

// deleteRatingsOf removes every rating the given user has submitted - used when a user is deleted
func deleteRatingsOf(ev *models.Event, email string) {
	for key, r := range ev.Ratings {
		if r.Email == email {
			delete(ev.Ratings, key)
		}
	}
}
