package internal

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/derWhity/gustavo/internal/log"
	"github.com/derWhity/gustavo/internal/models"
	"github.com/derWhity/gustavo/internal/repos"
)

// ItemService provides service functions for working with the registered items of an event
type ItemService interface {
	// Register registers a new item brought along by the calling user. Items can be registered
	// while the event is in `created` or `started`
	Register(ctx context.Context, eventID string, item models.Item) (*models.Item, error)
	// List returns the registered items of the event. Until the event is completed, guests only
	// see the items' registration data without the revealing details - except for their own items
	List(ctx context.Context, eventID string) ([]models.Item, error)
	// AssignItemIDs assigns official item numbers to registered items. Only possible while the
	// event is paused
	AssignItemIDs(ctx context.Context, eventID string, assignments map[string]int) error
}

// -- ItemService implementation ---------------------------------------------------------------------------------------

type itemService struct {
	repo   repos.EventRepo
	logger *logrus.Entry
}

// NewItemService creates a new item service instance
func NewItemService(repo repos.EventRepo, logger *logrus.Entry) ItemService {
	return &itemService{
		repo:   repo,
		logger: logger,
	}
}

// Register registers a new item for the calling user
func (s *itemService) Register(ctx context.Context, eventID string, item models.Item) (*models.Item, error) {
	sess, err := requireSession(ctx)
	if err != nil {
		return nil, err
	}
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return nil, MakeErrorWithData(http.StatusBadRequest, ErrCodeRequiredFieldMissing,
			"Item name missing", map[string]string{"field": "name"},
		)
	}
	item.Producer = strings.TrimSpace(item.Producer)
	item.RegistrationID = uuid.NewString()
	item.RegisteredBy = sess.Email
	item.AssignedID = 0
	err = s.repo.Mutate(eventID, func(ev *models.Event) error {
		if ev.State != models.StateCreated && ev.State != models.StateStarted {
			return MakeError(http.StatusConflict, ErrCodeInvalidTransition,
				fmt.Sprintf("Items cannot be registered while the event is '%s'", ev.State),
			)
		}
		item.CreatedAt = time.Now()
		ev.Items[item.RegistrationID] = item
		return nil
	})
	if err != nil {
		return nil, mapEventRepoError(err, eventID)
	}
	s.logger.WithField(log.FldEvent, eventID).WithField(log.FldUser, sess.Email).Debug("Item registered")
	return &item, nil
}

// List returns the registered items of the event in registration order
func (s *itemService) List(ctx context.Context, eventID string) ([]models.Item, error) {
	sess, err := requireSession(ctx)
	if err != nil {
		return nil, err
	}
	ev, err := s.repo.Get(eventID)
	if err != nil {
		return nil, mapEventRepoError(err, eventID)
	}
	fullDetails := ev.IsAdmin(sess.Email) || ev.State == models.StateCompleted
	ret := make([]models.Item, 0, len(ev.Items))
	for _, item := range ev.Items {
		if !fullDetails && item.RegisteredBy != sess.Email {
			// Blind tasting: the revealing details stay hidden until the event is completed
			item = models.Item{
				RegistrationID: item.RegistrationID,
				AssignedID:     item.AssignedID,
				CreatedAt:      item.CreatedAt,
			}
		}
		ret = append(ret, item)
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].CreatedAt.Equal(ret[j].CreatedAt) {
			return ret[i].RegistrationID < ret[j].RegistrationID
		}
		return ret[i].CreatedAt.Before(ret[j].CreatedAt)
	})
	return ret, nil
}

// AssignItemIDs assigns official item numbers to registered items
func (s *itemService) AssignItemIDs(ctx context.Context, eventID string, assignments map[string]int) error {
	sess, err := requireSession(ctx)
	if err != nil {
		return err
	}
	err = s.repo.Mutate(eventID, func(ev *models.Event) error {
		if !ev.IsAdmin(sess.Email) {
			return errAdminRequired()
		}
		if ev.State != models.StatePaused {
			return MakeError(http.StatusConflict, ErrCodeInvalidTransition,
				fmt.Sprintf("Item numbers can only be assigned while the event is paused, not '%s'", ev.State),
			)
		}
		// The item numbers already taken by items outside of this assignment
		taken := map[int]string{}
		for regID, item := range ev.Items {
			if _, reassigned := assignments[regID]; !reassigned && item.AssignedID != 0 {
				taken[item.AssignedID] = regID
			}
		}
		for regID, itemID := range assignments {
			item, ok := ev.Items[regID]
			if !ok {
				return MakeError(http.StatusNotFound, ErrCodeItemNotFound,
					fmt.Sprintf("No item is registered under '%s'", regID),
				)
			}
			if !ev.ItemConfig.Contains(itemID) {
				return MakeErrorWithData(http.StatusBadRequest, ErrCodeIllegalValue,
					fmt.Sprintf("Item number %d is not rateable under the event's configuration", itemID),
					map[string]int{"itemId": itemID},
				)
			}
			if other, used := taken[itemID]; used {
				return MakeErrorWithData(http.StatusConflict, ErrCodeIllegalValue,
					fmt.Sprintf("Item number %d is already assigned", itemID),
					map[string]string{"registrationId": other},
				)
			}
			taken[itemID] = regID
			item.AssignedID = itemID
			ev.Items[regID] = item
		}
		return nil
	})
	return mapNilOrEventError(err, eventID)
}
