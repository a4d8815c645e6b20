package models

import (
	"fmt"
	"math/rand"
	"time"

	scrypt "github.com/elithrar/simple-scrypt"
)

// EventState describes where in its lifecycle a tasting event currently is
type EventState string

const (
	// StateCreated is the state of a freshly created event - guests may already join and register items,
	// but no ratings can be submitted, yet
	StateCreated = EventState("created")
	// StateStarted is the state of a running event - this is the only state in which ratings can be
	// submitted or deleted
	StateStarted = EventState("started")
	// StatePaused is the state of an interrupted event - the hosts use it to assign the official item
	// numbers to the registered items
	StatePaused = EventState("paused")
	// StateCompleted is the state of a finished event - all item details become visible to every guest
	StateCompleted = EventState("completed")
)

const (
	// MaxItemCount is the highest number of rateable items an event can be configured with
	MaxItemCount = 100
	// PinLength is the number of digits an event PIN consists of
	PinLength = 6
)

// The transitions an event is allowed to take through its lifecycle.
// "completed -> started" reopens a closed event.
var allowedTransitions = map[EventState][]EventState{
	StateCreated:   {StateStarted},
	StateStarted:   {StatePaused, StateCompleted},
	StatePaused:    {StateStarted, StateCompleted},
	StateCompleted: {StateStarted},
}

// ValidEventState checks if the given value is one of the defined lifecycle states
func ValidEventState(s EventState) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransitionTo checks if the lifecycle graph contains an edge from the current state to the given one
func (s EventState) CanTransitionTo(to EventState) bool {
	for _, t := range allowedTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// ItemConfig describes the set of rateable items of one event
type ItemConfig struct {
	// The total number of items that can be rated - item IDs run from 1 to this number
	NumberOfItems int `json:"numberOfItems"`
	// Item IDs inside the range above that have been taken out of the running
	ExcludedItemIDs []int `json:"excludedItemIds,omitempty"`
}

// Validate checks the configuration for consistency: the item count has to stay within its bounds,
// every exclusion has to reference an existing item and at least one item has to remain rateable
func (c *ItemConfig) Validate() error {
	if c.NumberOfItems < 1 || c.NumberOfItems > MaxItemCount {
		return fmt.Errorf("numberOfItems must lie between 1 and %d", MaxItemCount)
	}
	seen := map[int]bool{}
	for _, id := range c.ExcludedItemIDs {
		if id < 1 || id > c.NumberOfItems {
			return fmt.Errorf("excluded item ID %d lies outside of the configured range", id)
		}
		seen[id] = true
	}
	if len(seen) >= c.NumberOfItems {
		return fmt.Errorf("at least one item has to remain rateable")
	}
	return nil
}

// Excluded checks if the given item ID has been excluded from rating
func (c *ItemConfig) Excluded(itemID int) bool {
	for _, id := range c.ExcludedItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// Contains checks if the given item ID is rateable under this configuration
func (c *ItemConfig) Contains(itemID int) bool {
	return itemID >= 1 && itemID <= c.NumberOfItems && !c.Excluded(itemID)
}

// Item is one registered tasting item. Items are brought along by the guests and registered under an
// opaque registration ID; the official item number is assigned by the hosts while the event is paused
type Item struct {
	// Opaque registration ID handed out when the item is registered
	RegistrationID string `json:"registrationId"`
	// Display name of the item
	Name string `json:"name,omitempty"`
	// Who produced the item (vintner, brewery, roastery, ...)
	Producer string `json:"producer,omitempty"`
	// The email address of the guest that registered the item
	RegisteredBy string `json:"registeredBy,omitempty"`
	// The official item number used for rating - zero as long as none has been assigned
	AssignedID int `json:"assignedId,omitempty"`
	// When the item was registered
	CreatedAt time.Time `json:"createdAt"`
}

// Event is the aggregate for one tasting event. It is the unit of tenancy: users, items and ratings
// of one event are never reachable through another event's record
type Event struct {
	// Opaque unique ID of the event
	ID string `json:"id"`
	// Display name - fixed at creation
	Name string `json:"name"`
	// The 6-digit PIN guests use to join - only visible to administrators
	Pin string `json:"pin,omitempty"`
	// scrypt verifier for the PIN - used by the join flow, never handed out via the API
	PinHash string `json:"pinHash,omitempty"`
	// Email address of the event owner - the owner is always an administrator
	OwnerEmail string `json:"ownerEmail"`
	// Current lifecycle state; this value doubles as the optimistic-concurrency token for transitions
	State EventState `json:"state"`
	// The set of administrator email addresses - contains at least the owner
	Admins map[string]bool `json:"administrators"`
	// The rateable item range of this event
	ItemConfig ItemConfig `json:"itemConfig"`
	// Registered item metadata keyed by registration ID
	Items map[string]Item `json:"items,omitempty"`
	// The guests of this event keyed by their (lowercased) email address
	Users map[string]User `json:"users,omitempty"`
	// All ratings keyed by RatingKey(email, itemID) - the map key is what gives resubmissions
	// their replace semantics
	Ratings map[string]Rating `json:"ratings,omitempty"`
	// Creation date of this event
	CreatedAt time.Time `json:"createdAt"`
	// Date of the last mutation
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsAdmin checks if the given email address belongs to an administrator of this event
func (e *Event) IsAdmin(email string) bool {
	return e.Admins[NormalizeEmail(email)]
}

// IsOwner checks if the given email address belongs to the event owner
func (e *Event) IsOwner(email string) bool {
	return NormalizeEmail(email) == e.OwnerEmail
}

// AdminCount returns the number of administrators this event currently has
func (e *Event) AdminCount() int {
	return len(e.Admins)
}

// RatingsBy collects the ratings the given user has submitted as an itemID -> score map
func (e *Event) RatingsBy(email string) map[int]float64 {
	email = NormalizeEmail(email)
	ret := map[int]float64{}
	for _, r := range e.Ratings {
		if r.Email == email {
			ret[r.ItemID] = float64(r.Score)
		}
	}
	return ret
}

// SetPin stores the given PIN on the event together with its scrypt verifier
func (e *Event) SetPin(pin string) error {
	hash, err := scrypt.GenerateFromPassword([]byte(pin), scrypt.DefaultParams)
	if err != nil {
		return fmt.Errorf("SetPin: Error while hashing the PIN: %v", err)
	}
	e.Pin = pin
	e.PinHash = string(hash)
	return nil
}

// VerifyPin checks the given PIN against the stored verifier. It returns an error if the PIN does not match
func (e *Event) VerifyPin(pin string) error {
	return scrypt.CompareHashAndPassword([]byte(e.PinHash), []byte(pin))
}

// Clone creates a deep copy of the event record. The store hands out clones so that a reader can never
// observe a record another goroutine is currently mutating
func (e *Event) Clone() *Event {
	ret := *e
	ret.Admins = make(map[string]bool, len(e.Admins))
	for k, v := range e.Admins {
		ret.Admins[k] = v
	}
	if e.ItemConfig.ExcludedItemIDs != nil {
		ret.ItemConfig.ExcludedItemIDs = append([]int{}, e.ItemConfig.ExcludedItemIDs...)
	}
	ret.Items = make(map[string]Item, len(e.Items))
	for k, v := range e.Items {
		ret.Items[k] = v
	}
	ret.Users = make(map[string]User, len(e.Users))
	for k, v := range e.Users {
		ret.Users[k] = *v.clone()
	}
	ret.Ratings = make(map[string]Rating, len(e.Ratings))
	for k, v := range e.Ratings {
		ret.Ratings[k] = v
	}
	return &ret
}

var pinSrc = rand.New(rand.NewSource(time.Now().UnixNano()))

// GeneratePin creates a new random event PIN
func GeneratePin() string {
	ret := make([]byte, PinLength)
	for i := range ret {
		ret[i] = byte('0' + pinSrc.Intn(10))
	}
	return string(ret)
}
