package inmem

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/gustavo/internal/models"
	"github.com/derWhity/gustavo/internal/repos"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func makeEvent(name string) *models.Event {
	return &models.Event{
		Name:       name,
		OwnerEmail: "owner@example.com",
		State:      models.StateCreated,
		Admins:     map[string]bool{"owner@example.com": true},
		ItemConfig: models.ItemConfig{NumberOfItems: 20},
		Items:      map[string]models.Item{},
		Users:      map[string]models.User{},
		Ratings:    map[string]models.Rating{},
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := New(nil, testLogger())
	ev := makeEvent("Riesling night")
	require.NoError(t, repo.Create(ev))
	require.NotEmpty(t, ev.ID)

	loaded, err := repo.Get(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Riesling night", loaded.Name)

	// The returned record is a copy - changing it must not leak into the store
	loaded.Name = "changed"
	again, err := repo.Get(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Riesling night", again.Name)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	repo := New(nil, testLogger())
	ev := makeEvent("First")
	require.NoError(t, repo.Create(ev))

	dup := makeEvent("Second")
	dup.ID = ev.ID
	assert.Equal(t, repos.ErrEntityExists, repo.Create(dup))
}

func TestGetUnknownEvent(t *testing.T) {
	repo := New(nil, testLogger())
	_, err := repo.Get("no-such-event")
	assert.Equal(t, repos.ErrEntityNotExisting, err)
}

func TestMutateFailureLeavesRecordUntouched(t *testing.T) {
	repo := New(nil, testLogger())
	ev := makeEvent("Stable")
	require.NoError(t, repo.Create(ev))

	boom := fmt.Errorf("nope")
	err := repo.Mutate(ev.ID, func(ev *models.Event) error {
		ev.Name = "halfway"
		return boom
	})
	assert.Equal(t, boom, err)

	loaded, err := repo.Get(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Stable", loaded.Name)
}

func TestConcurrentMutationsLoseNoUpdate(t *testing.T) {
	repo := New(nil, testLogger())
	ev := makeEvent("Busy")
	require.NoError(t, repo.Create(ev))

	const writers = 16
	const perWriter = 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				email := fmt.Sprintf("guest%d@example.com", w)
				itemID := i%20 + 1
				err := repo.Mutate(ev.ID, func(ev *models.Event) error {
					key := models.RatingKey(email, itemID)
					ev.Ratings[key] = models.Rating{Email: email, ItemID: itemID, Score: 3}
					return nil
				})
				if err != nil {
					t.Error(err)
				}
			}
		}(w)
	}
	wg.Wait()

	loaded, err := repo.Get(ev.ID)
	require.NoError(t, err)
	// 16 writers x 20 distinct items - every single write has to be there
	assert.Len(t, loaded.Ratings, writers*20)
}

func TestEventsDoNotShareLocks(t *testing.T) {
	repo := New(nil, testLogger())
	a := makeEvent("A")
	b := makeEvent("B")
	require.NoError(t, repo.Create(a))
	require.NoError(t, repo.Create(b))

	// Block event A's critical section and prove event B stays writable meanwhile
	release := make(chan struct{})
	holding := make(chan struct{})
	go func() {
		repo.Mutate(a.ID, func(ev *models.Event) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	err := repo.Mutate(b.ID, func(ev *models.Event) error {
		ev.Name = "B updated"
		return nil
	})
	require.NoError(t, err)
	close(release)

	loaded, err := repo.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "B updated", loaded.Name)
}

func TestReadersNeverSeeTornWrites(t *testing.T) {
	repo := New(nil, testLogger())
	ev := makeEvent("Snapshots")
	require.NoError(t, repo.Create(ev))

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	var torn atomic.Int32
	var wg sync.WaitGroup

	// The writer sets two fields that only ever change together
	go func() {
		defer close(writerDone)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			n := i
			repo.Mutate(ev.ID, func(ev *models.Event) error {
				ev.Name = fmt.Sprintf("gen-%d", n)
				ev.ItemConfig.NumberOfItems = n%models.MaxItemCount + 1
				return nil
			})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				loaded, err := repo.Get(ev.ID)
				if err != nil {
					t.Error(err)
					return
				}
				var gen int
				if _, err := fmt.Sscanf(loaded.Name, "gen-%d", &gen); err == nil {
					if loaded.ItemConfig.NumberOfItems != gen%models.MaxItemCount+1 {
						torn.Add(1)
					}
				}
			}
		}()
	}

	wg.Wait()
	close(stop)
	<-writerDone
	assert.Zero(t, torn.Load(), "a reader observed a half-applied mutation")
}

func TestDelete(t *testing.T) {
	repo := New(nil, testLogger())
	ev := makeEvent("Short-lived")
	require.NoError(t, repo.Create(ev))
	require.NoError(t, repo.Delete(ev.ID))

	_, err := repo.Get(ev.ID)
	assert.Equal(t, repos.ErrEntityNotExisting, err)
	assert.Equal(t, repos.ErrEntityNotExisting, repo.Delete(ev.ID))
}

func TestFind(t *testing.T) {
	repo := New(nil, testLogger())
	names := []string{"Summer tasting", "Winter tasting", "Board game night"}
	for _, name := range names {
		require.NoError(t, repo.Create(makeEvent(name)))
	}

	found, num, err := repo.Find("tasting", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint(2), num)
	assert.Len(t, found, 2)

	// Paging
	found, num, err = repo.Find("", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint(3), num)
	assert.Len(t, found, 1)

	// Offset beyond the result set
	found, num, err = repo.Find("", 10, 5)
	require.NoError(t, err)
	assert.Equal(t, uint(3), num)
	assert.Empty(t, found)
}

func TestRestoreKeepsTimestamps(t *testing.T) {
	repo := New(nil, testLogger())
	src := New(nil, testLogger())
	ev := makeEvent("Archived")
	require.NoError(t, src.Create(ev))
	stored, err := src.Get(ev.ID)
	require.NoError(t, err)

	repo.Restore([]*models.Event{stored})
	loaded, err := repo.Get(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.CreatedAt, loaded.CreatedAt)
	assert.Equal(t, stored.UpdatedAt, loaded.UpdatedAt)
}

// recordingArchive keeps every saved snapshot in arrival order
type recordingArchive struct {
	mu    sync.Mutex
	saved []*models.Event
}

func (a *recordingArchive) Save(ev *models.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved = append(a.saved, ev)
	return nil
}

func (a *recordingArchive) Delete(id string) error { return nil }

func (a *recordingArchive) LoadAll() ([]*models.Event, error) { return nil, nil }

func (a *recordingArchive) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.saved)
}

func (a *recordingArchive) snapshots() []*models.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*models.Event{}, a.saved...)
}

func TestArchiveReceivesSnapshotsInPublishOrder(t *testing.T) {
	archive := &recordingArchive{}
	repo := New(archive, testLogger())
	ev := makeEvent("Archive order")
	require.NoError(t, repo.Create(ev))

	const writers = 8
	const perWriter = 20
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			email := fmt.Sprintf("writer-%d@example.com", w)
			for i := 0; i < perWriter; i++ {
				err := repo.Mutate(ev.ID, func(work *models.Event) error {
					work.Ratings[models.RatingKey(email, i+1)] = models.Rating{
						Email:  email,
						ItemID: i + 1,
						Score:  1,
					}
					return nil
				})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	total := writers*perWriter + 1 // the Create enqueues the initial snapshot
	require.Eventually(t, func() bool { return archive.count() == total },
		5*time.Second, 5*time.Millisecond)

	// Every mutation adds exactly one rating, so archiving in publish order means
	// strictly growing rating counts. A single inversion would persist a lost update
	last := -1
	for _, snap := range archive.snapshots() {
		require.Greater(t, len(snap.Ratings), last)
		last = len(snap.Ratings)
	}
}
