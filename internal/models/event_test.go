package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleTransitions(t *testing.T) {
	cases := []struct {
		from, to EventState
		allowed  bool
	}{
		{StateCreated, StateStarted, true},
		{StateCreated, StatePaused, false},
		{StateCreated, StateCompleted, false},
		{StateStarted, StatePaused, true},
		{StateStarted, StateCompleted, true},
		{StateStarted, StateCreated, false},
		{StatePaused, StateStarted, true},
		{StatePaused, StateCompleted, true},
		{StatePaused, StateCreated, false},
		{StateCompleted, StateStarted, true}, // reopening
		{StateCompleted, StatePaused, false},
		{StateCompleted, StateCreated, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.allowed, c.from.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestValidEventState(t *testing.T) {
	assert.True(t, ValidEventState(StateCreated))
	assert.True(t, ValidEventState(StateCompleted))
	assert.False(t, ValidEventState(EventState("cancelled")))
	assert.False(t, ValidEventState(EventState("")))
}

func TestItemConfigValidate(t *testing.T) {
	cfg := ItemConfig{NumberOfItems: 20, ExcludedItemIDs: []int{3, 7}}
	assert.NoError(t, cfg.Validate())

	assert.Error(t, (&ItemConfig{NumberOfItems: 0}).Validate())
	assert.Error(t, (&ItemConfig{NumberOfItems: MaxItemCount + 1}).Validate())
	// Exclusion outside of the configured range
	assert.Error(t, (&ItemConfig{NumberOfItems: 5, ExcludedItemIDs: []int{6}}).Validate())
	// Excluding everything leaves nothing to rate
	assert.Error(t, (&ItemConfig{NumberOfItems: 2, ExcludedItemIDs: []int{1, 2}}).Validate())
}

func TestItemConfigContains(t *testing.T) {
	cfg := ItemConfig{NumberOfItems: 10, ExcludedItemIDs: []int{4}}
	assert.True(t, cfg.Contains(1))
	assert.True(t, cfg.Contains(10))
	assert.False(t, cfg.Contains(0))
	assert.False(t, cfg.Contains(11))
	assert.False(t, cfg.Contains(4))
}

func TestPinRoundtrip(t *testing.T) {
	ev := &Event{}
	pin := GeneratePin()
	require.Len(t, pin, PinLength)
	require.NoError(t, ev.SetPin(pin))
	assert.Equal(t, pin, ev.Pin)
	assert.NotEmpty(t, ev.PinHash)
	assert.NotContains(t, ev.PinHash, pin)

	assert.NoError(t, ev.VerifyPin(pin))
	assert.Error(t, ev.VerifyPin("000000"))
}

func TestRatingsBy(t *testing.T) {
	ev := &Event{
		Ratings: map[string]Rating{
			RatingKey("a@example.com", 1): {Email: "a@example.com", ItemID: 1, Score: 3},
			RatingKey("a@example.com", 2): {Email: "a@example.com", ItemID: 2, Score: 4},
			RatingKey("b@example.com", 1): {Email: "b@example.com", ItemID: 1, Score: 1},
		},
	}
	assert.Equal(t, map[int]float64{1: 3, 2: 4}, ev.RatingsBy("a@example.com"))
	assert.Equal(t, map[int]float64{1: 1}, ev.RatingsBy("B@Example.com"))
	assert.Empty(t, ev.RatingsBy("nobody@example.com"))
}

func TestCloneIsDeep(t *testing.T) {
	ev := &Event{
		ID:         "ev-1",
		Name:       "Original",
		Admins:     map[string]bool{"owner@example.com": true},
		ItemConfig: ItemConfig{NumberOfItems: 10, ExcludedItemIDs: []int{2}},
		Items:      map[string]Item{"reg-1": {RegistrationID: "reg-1", Name: "Pinot"}},
		Users: map[string]User{
			"owner@example.com": {Email: "owner@example.com", Bookmarks: map[int]bool{3: true}},
		},
		Ratings: map[string]Rating{
			RatingKey("owner@example.com", 3): {Email: "owner@example.com", ItemID: 3, Score: 2},
		},
	}
	clone := ev.Clone()

	clone.Admins["extra@example.com"] = true
	clone.ItemConfig.ExcludedItemIDs[0] = 9
	clone.Items["reg-2"] = Item{RegistrationID: "reg-2"}
	u := clone.Users["owner@example.com"]
	u.Bookmarks[7] = true
	clone.Ratings[RatingKey("x@example.com", 1)] = Rating{}

	assert.Len(t, ev.Admins, 1)
	assert.Equal(t, []int{2}, ev.ItemConfig.ExcludedItemIDs)
	assert.Len(t, ev.Items, 1)
	assert.Equal(t, map[int]bool{3: true}, ev.Users["owner@example.com"].Bookmarks)
	assert.Len(t, ev.Ratings, 1)
}

func TestIsAdminNormalizesEmail(t *testing.T) {
	ev := &Event{
		OwnerEmail: "owner@example.com",
		Admins:     map[string]bool{"owner@example.com": true},
	}
	assert.True(t, ev.IsAdmin("Owner@Example.COM "))
	assert.True(t, ev.IsOwner(" OWNER@example.com"))
	assert.False(t, ev.IsAdmin("guest@example.com"))
}
