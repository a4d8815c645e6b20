package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/gustavo/internal/models"
)

func (f *fixture) newItemService() ItemService {
	return NewItemService(f.events, testLogger())
}

func TestRegisterItem(t *testing.T) {
	f := newFixture(t)
	is := f.newItemService()
	ev := f.startEvent(t, "guest@example.com")

	before := time.Now()
	item, err := is.Register(guestCtx(ev, "guest@example.com"), ev.ID, models.Item{
		Name:     " Grüner Veltliner ",
		Producer: "Weingut Huber",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, item.RegistrationID)
	assert.Equal(t, "Grüner Veltliner", item.Name)
	assert.Equal(t, "guest@example.com", item.RegisteredBy)
	assert.Zero(t, item.AssignedID)
	assert.False(t, item.CreatedAt.Before(before))

	stored, err := f.events.Get(ev.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.Items, item.RegistrationID)
}

func TestRegisterItemValidation(t *testing.T) {
	f := newFixture(t)
	is := f.newItemService()
	ev := f.startEvent(t, "guest@example.com")

	_, err := is.Register(guestCtx(ev, "guest@example.com"), ev.ID, models.Item{Name: "  "})
	assert.Equal(t, ErrCodeRequiredFieldMissing, errCode(t, err))
}

func TestRegisterItemStateGate(t *testing.T) {
	f := newFixture(t)
	is := f.newItemService()
	ev := f.createEvent(t, "Registration window")
	ctx := f.ownerCtx(ev)

	// Registering works while the event is created...
	_, err := is.Register(ctx, ev.ID, models.Item{Name: "Early bird"})
	require.NoError(t, err)

	// ...and while it is running...
	require.NoError(t, f.evSrv.Transition(ctx, ev.ID, models.StateStarted, models.StateCreated))
	_, err = is.Register(ctx, ev.ID, models.Item{Name: "Late addition"})
	require.NoError(t, err)

	// ...but not while paused or completed
	require.NoError(t, f.evSrv.Transition(ctx, ev.ID, models.StatePaused, models.StateStarted))
	_, err = is.Register(ctx, ev.ID, models.Item{Name: "Too late"})
	assert.Equal(t, ErrCodeInvalidTransition, errCode(t, err))
}

func TestListItemsBlindTasting(t *testing.T) {
	f := newFixture(t)
	is := f.newItemService()
	ev := f.startEvent(t, "a@example.com", "b@example.com")

	mine, err := is.Register(guestCtx(ev, "a@example.com"), ev.ID, models.Item{Name: "My bottle", Producer: "Me"})
	require.NoError(t, err)
	_, err = is.Register(guestCtx(ev, "b@example.com"), ev.ID, models.Item{Name: "Mystery bottle", Producer: "Them"})
	require.NoError(t, err)

	// Until the event is completed, a guest sees their own item fully, but foreign items stripped
	items, err := is.List(guestCtx(ev, "a@example.com"), ev.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		if item.RegistrationID == mine.RegistrationID {
			assert.Equal(t, "My bottle", item.Name)
		} else {
			assert.Empty(t, item.Name)
			assert.Empty(t, item.Producer)
			assert.Empty(t, item.RegisteredBy)
		}
	}

	// An administrator always sees everything
	items, err = is.List(f.ownerCtx(ev), ev.ID)
	require.NoError(t, err)
	for _, item := range items {
		assert.NotEmpty(t, item.Name)
	}

	// After completion, the details are revealed to everybody
	require.NoError(t, f.evSrv.Transition(f.ownerCtx(ev), ev.ID, models.StateCompleted, models.StateStarted))
	items, err = is.List(guestCtx(ev, "a@example.com"), ev.ID)
	require.NoError(t, err)
	for _, item := range items {
		assert.NotEmpty(t, item.Name)
	}
}

func TestAssignItemIDs(t *testing.T) {
	f := newFixture(t)
	is := f.newItemService()
	ev := f.startEvent(t, "guest@example.com")
	ctx := f.ownerCtx(ev)

	first, err := is.Register(guestCtx(ev, "guest@example.com"), ev.ID, models.Item{Name: "First"})
	require.NoError(t, err)
	second, err := is.Register(guestCtx(ev, "guest@example.com"), ev.ID, models.Item{Name: "Second"})
	require.NoError(t, err)

	// Assignments only happen while the event is paused
	err = is.AssignItemIDs(ctx, ev.ID, map[string]int{first.RegistrationID: 1})
	assert.Equal(t, ErrCodeInvalidTransition, errCode(t, err))

	require.NoError(t, f.evSrv.Transition(ctx, ev.ID, models.StatePaused, models.StateStarted))
	require.NoError(t, is.AssignItemIDs(ctx, ev.ID, map[string]int{
		first.RegistrationID:  1,
		second.RegistrationID: 2,
	}))

	stored, err := f.events.Get(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Items[first.RegistrationID].AssignedID)
	assert.Equal(t, 2, stored.Items[second.RegistrationID].AssignedID)
}

func TestAssignItemIDsRejectsConflicts(t *testing.T) {
	f := newFixture(t)
	is := f.newItemService()
	ev := f.startEvent(t, "guest@example.com")
	ctx := f.ownerCtx(ev)

	first, err := is.Register(guestCtx(ev, "guest@example.com"), ev.ID, models.Item{Name: "First"})
	require.NoError(t, err)
	second, err := is.Register(guestCtx(ev, "guest@example.com"), ev.ID, models.Item{Name: "Second"})
	require.NoError(t, err)
	require.NoError(t, f.evSrv.Transition(ctx, ev.ID, models.StatePaused, models.StateStarted))

	// Unknown registration ID
	err = is.AssignItemIDs(ctx, ev.ID, map[string]int{"no-such-registration": 1})
	assert.Equal(t, ErrCodeItemNotFound, errCode(t, err))

	// Number outside of the configured range
	err = is.AssignItemIDs(ctx, ev.ID, map[string]int{first.RegistrationID: 99})
	assert.Equal(t, ErrCodeIllegalValue, errCode(t, err))

	// Duplicate number within one assignment
	err = is.AssignItemIDs(ctx, ev.ID, map[string]int{
		first.RegistrationID:  1,
		second.RegistrationID: 1,
	})
	assert.Equal(t, ErrCodeIllegalValue, errCode(t, err))

	// Number already taken by an item outside of this assignment
	require.NoError(t, is.AssignItemIDs(ctx, ev.ID, map[string]int{first.RegistrationID: 1}))
	err = is.AssignItemIDs(ctx, ev.ID, map[string]int{second.RegistrationID: 1})
	assert.Equal(t, ErrCodeIllegalValue, errCode(t, err))

	// Non-admins may not assign at all
	err = is.AssignItemIDs(guestCtx(ev, "guest@example.com"), ev.ID, map[string]int{first.RegistrationID: 2})
	assert.Equal(t, ErrCodeAdminRequired, errCode(t, err))
}
