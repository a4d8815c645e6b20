package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"

	"github.com/derWhity/gustavo/internal/ctxhelper"
	"github.com/derWhity/gustavo/internal/models"
)

func (f *fixture) newSessionService() SessionService {
	return NewSessionService(f.sessions, f.events, testLogger())
}

func TestJoinWithCorrectPin(t *testing.T) {
	f := newFixture(t)
	ss := f.newSessionService()
	ev := f.createEvent(t, "Open doors")

	before := time.Now()
	si, err := ss.Join(anonCtx(), ev.ID, "Guest@Example.com", " Renée ", ev.Pin)
	require.NoError(t, err)
	assert.NotEmpty(t, si.Token)
	assert.Equal(t, ev.ID, si.EventID)
	assert.Equal(t, "guest@example.com", si.Email)
	assert.Equal(t, "Renée", si.DisplayName)
	assert.False(t, si.IsAdmin)

	// The guest record was created on the event
	stored, err := f.events.Get(ev.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.Users, "guest@example.com")
	assert.False(t, stored.Users["guest@example.com"].JoinedAt.Before(before))

	// The issued token is scoped to exactly this event
	sess, err := f.sessions.GetByID(si.Token, false)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, sess.EventID)
}

func TestJoinAsAdministrator(t *testing.T) {
	f := newFixture(t)
	ss := f.newSessionService()
	ev := f.createEvent(t, "Admin entry")

	si, err := ss.Join(anonCtx(), ev.ID, "owner@example.com", "The Host", ev.Pin)
	require.NoError(t, err)
	assert.True(t, si.IsAdmin)
}

func TestJoinFailures(t *testing.T) {
	f := newFixture(t)
	ss := f.newSessionService()
	ev := f.createEvent(t, "Guarded doors")

	// Wrong PIN
	_, err := ss.Join(anonCtx(), ev.ID, "guest@example.com", "Guest", "000000")
	assert.Equal(t, ErrCodeJoinFailed, errCode(t, err))

	// Unknown event looks exactly like a wrong PIN
	_, err = ss.Join(anonCtx(), "no-such-event", "guest@example.com", "Guest", ev.Pin)
	assert.Equal(t, ErrCodeJoinFailed, errCode(t, err))

	// No guest record must exist after a failed join
	stored, err := f.events.Get(ev.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.Users, "guest@example.com")
}

func TestJoinValidation(t *testing.T) {
	f := newFixture(t)
	ss := f.newSessionService()
	ev := f.createEvent(t, "Strict doors")

	_, err := ss.Join(anonCtx(), ev.ID, "not-an-email", "Guest", ev.Pin)
	assert.Equal(t, ErrCodeIllegalValue, errCode(t, err))

	_, err = ss.Join(anonCtx(), ev.ID, "guest@example.com", "   ", ev.Pin)
	assert.Equal(t, ErrCodeRequiredFieldMissing, errCode(t, err))
}

func TestRejoinKeepsBookmarks(t *testing.T) {
	f := newFixture(t)
	ss := f.newSessionService()
	ev := f.createEvent(t, "Welcome back")

	_, err := ss.Join(anonCtx(), ev.ID, "guest@example.com", "First name", ev.Pin)
	require.NoError(t, err)
	require.NoError(t, f.events.Mutate(ev.ID, func(stored *models.Event) error {
		u := stored.Users["guest@example.com"]
		u.Bookmarks = map[int]bool{5: true}
		stored.Users["guest@example.com"] = u
		return nil
	}))

	si, err := ss.Join(anonCtx(), ev.ID, "guest@example.com", "Second name", ev.Pin)
	require.NoError(t, err)
	assert.Equal(t, "Second name", si.DisplayName)

	stored, err := f.events.Get(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{5: true}, stored.Users["guest@example.com"].Bookmarks)
}

func TestLeaveAndWhoAmI(t *testing.T) {
	f := newFixture(t)
	ss := f.newSessionService()
	ev := f.createEvent(t, "Short visit")

	si, err := ss.Join(anonCtx(), ev.ID, "guest@example.com", "Guest", ev.Pin)
	require.NoError(t, err)

	me, err := ss.WhoAmI(anonCtx(), si.Token)
	require.NoError(t, err)
	assert.Equal(t, si.EventID, me.EventID)
	assert.Equal(t, si.Email, me.Email)
	assert.Equal(t, "Guest", me.DisplayName)

	require.NoError(t, ss.Leave(anonCtx(), si.Token))
	_, err = ss.WhoAmI(anonCtx(), si.Token)
	assert.Equal(t, ErrCodeNotJoined, errCode(t, err))

	// Leaving twice is harmless
	assert.NoError(t, ss.Leave(anonCtx(), si.Token))
}

func TestMiddlewareRejectsCrossEventTokens(t *testing.T) {
	f := newFixture(t)
	evA := f.createEvent(t, "Event A")
	evB := f.createEvent(t, "Event B")

	called := false
	ep := EnsureEventSession(func(ctx context.Context, request interface{}) (interface{}, error) {
		called = true
		return basicResponse{true, nil}, nil
	})

	// A token issued for event A used at event B: rejected with a message that reveals nothing
	ctx := sessionCtx(evA.ID, "guest@example.com", false)
	_, err := ep(ctx, eventRequest{EventID: evB.ID})
	require.Error(t, err)
	assert.Equal(t, ErrCodeEventAccessDenied, errCode(t, err))
	assert.False(t, called)

	// The same token at its own event passes
	_, err = ep(ctx, eventRequest{EventID: evA.ID})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestMiddlewareRejectsMissingSession(t *testing.T) {
	ep := EnsureEventSession(func(ctx context.Context, request interface{}) (interface{}, error) {
		t.Fatal("endpoint must not be reached")
		return nil, nil
	})
	ctx := context.WithValue(context.Background(), ctxhelper.KeyLogger, testLogger())
	_, err := ep(ctx, eventRequest{EventID: "whatever"})
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotJoined, errCode(t, err))
}
