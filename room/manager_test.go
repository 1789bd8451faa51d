package room

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wechange-eg/conference-hub/bbb"
	"github.com/wechange-eg/conference-hub/config"
	"github.com/wechange-eg/conference-hub/persistence"
	"github.com/wechange-eg/conference-hub/settings"
	"github.com/wechange-eg/conference-hub/types"
)

// fakeBBB is a minimal BBB API endpoint counting create calls.
type fakeBBB struct {
	creates int64

	mu         sync.Mutex
	lastCreate url.Values
}

func (f *fakeBBB) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/create"):
			atomic.AddInt64(&f.creates, 1)
			f.mu.Lock()
			f.lastCreate = r.URL.Query()
			f.mu.Unlock()
			meetingID := r.URL.Query().Get("meetingID")
			fmt.Fprintf(w, `<response>
				<returncode>SUCCESS</returncode>
				<meetingID>%s</meetingID>
				<attendeePW>ap</attendeePW>
				<moderatorPW>mp</moderatorPW>
			</response>`, meetingID)
		case strings.HasSuffix(r.URL.Path, "/end"):
			fmt.Fprint(w, `<response><returncode>SUCCESS</returncode></response>`)
		default:
			fmt.Fprint(w, `<response><returncode>FAILED</returncode><messageKey>unknownCall</messageKey></response>`)
		}
	}
}

func newTestManager(t *testing.T, apiUrl string) (*Manager, persistence.Persister) {
	t.Helper()
	cfg := &config.Config{}
	cfg.PersistenceConfig.Type = "buntdb"
	cfg.PersistenceConfig.DSN = ":memory:"
	cfg.BBBConfig.ApiUrl = apiUrl
	cfg.BBBConfig.Secret = "s3cret"
	cfg.BBBConfig.ChecksumAlgo = "sha1"
	cfg.BBBConfig.GuestNameSuffix = " (guest)"
	store, err := persistence.NewBuntPersister(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	cache, err := settings.NewCache(16, time.Minute)
	require.NoError(t, err)
	resolver := settings.NewResolver(store, cache, nil)
	return NewManager(store, resolver, bbb.NewClient(cfg)), store
}

func testEvent(store persistence.Persister, t *testing.T) *types.Event {
	t.Helper()
	event := &types.Event{
		Id:                  "e1",
		Title:               "Weekly",
		GroupID:             "g1",
		VideoConferenceType: types.BBBMeeting,
		AttendeeIds:         types.JSONStringMap{"u1": "Ada", "u2": "Grace"},
		ModeratorIds:        types.JSONStringMap{"u2": "Grace"},
	}
	require.NoError(t, store.StoreGroup(types.Group{Id: "g1", Name: "group"}))
	require.NoError(t, store.StoreEvent(*event))
	return event
}

func TestCheckAndCreateRoom(t *testing.T) {
	f := &fakeBBB{}
	server := httptest.NewServer(f.handler())
	defer server.Close()

	m, store := newTestManager(t, server.URL+"/")
	event := testEvent(store, t)
	src := EventSource{Event: event}

	require.NoError(t, m.CheckAndCreateRoom(src, false))
	assert.EqualValues(t, 1, atomic.LoadInt64(&f.creates))

	room, err := m.Room(src)
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Equal(t, "event-e1", room.MeetingID)
	assert.Equal(t, "ap", room.AttendeePW)
	assert.Equal(t, "mp", room.ModeratorPW)
	assert.NotEmpty(t, room.DialInPIN)

	// initial member sync already ran, moderators win over attendees
	assert.True(t, room.IsModerator("u2"))
	assert.True(t, room.IsMember("u1"))
	assert.False(t, room.IsModerator("u1"))

	// the room key is attached to the source object
	stored, err := store.GetEvent("e1")
	require.NoError(t, err)
	assert.Equal(t, src.SourceKey(), stored.RoomKey)

	// a second call finds the room and does not create again
	require.NoError(t, m.CheckAndCreateRoom(src, false))
	assert.EqualValues(t, 1, atomic.LoadInt64(&f.creates))
}

func TestCheckAndCreateRoomIneligible(t *testing.T) {
	f := &fakeBBB{}
	server := httptest.NewServer(f.handler())
	defer server.Close()

	m, store := newTestManager(t, server.URL+"/")
	event := testEvent(store, t)
	event.VideoConferenceType = types.NoVideoConference
	src := EventSource{Event: event}

	require.NoError(t, m.CheckAndCreateRoom(src, false))
	assert.EqualValues(t, 0, atomic.LoadInt64(&f.creates))

	u, err := m.RoomURL(src, nil)
	require.NoError(t, err)
	assert.Empty(t, u)

	state, err := m.QueueState(src, nil)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestRoomURLLazyCreation(t *testing.T) {
	f := &fakeBBB{}
	server := httptest.NewServer(f.handler())
	defer server.Close()

	m, store := newTestManager(t, server.URL+"/")
	event := testEvent(store, t)
	src := EventSource{Event: event}

	// the first access triggers background creation and yields no URL yet
	u, err := m.RoomURL(src, nil)
	require.NoError(t, err)
	assert.Empty(t, u)

	// the queue endpoint eventually reports DONE with the join URL
	assert.Eventually(t, func() bool {
		state, err := m.QueueState(src, nil)
		if err != nil || state == nil {
			return false
		}
		return state.Status == StatusDone && state.Url != ""
	}, 5*time.Second, 10*time.Millisecond)

	user := &types.User{Id: "u2", Nick: "Grace", Language: "de"}
	u, err = m.RoomURL(src, user)
	require.NoError(t, err)
	assert.Contains(t, u, "fullName=Grace")
	// moderators join with the moderator password
	assert.Contains(t, u, "password=mp")
	// the user's language becomes the bbb locale override
	assert.Contains(t, u, "userdata-bbb_override_default_locale=de")

	// exactly one remote create despite repeated URL accesses
	assert.EqualValues(t, 1, atomic.LoadInt64(&f.creates))
}

func TestQueueStateWaiting(t *testing.T) {
	f := &fakeBBB{}
	server := httptest.NewServer(f.handler())
	defer server.Close()

	m, store := newTestManager(t, server.URL+"/")
	event := testEvent(store, t)
	src := EventSource{Event: event}

	state, err := m.QueueState(src, nil)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, StatusWaiting, state.Status)
	assert.Empty(t, state.Url)
}

func TestSyncMembersRewrites(t *testing.T) {
	f := &fakeBBB{}
	server := httptest.NewServer(f.handler())
	defer server.Close()

	m, store := newTestManager(t, server.URL+"/")
	event := testEvent(store, t)
	src := EventSource{Event: event}
	require.NoError(t, m.CheckAndCreateRoom(src, false))

	// u1 gets promoted, u2 leaves entirely
	event.AttendeeIds = types.JSONStringMap{"u3": "Edsger"}
	event.ModeratorIds = types.JSONStringMap{"u1": "Ada"}
	require.NoError(t, store.StoreEvent(*event))
	require.NoError(t, m.SyncMembers(src))

	room, err := m.Room(src)
	require.NoError(t, err)
	assert.True(t, room.IsModerator("u1"))
	assert.False(t, room.IsMember("u2"))
	assert.True(t, room.IsMember("u3"))
	assert.False(t, room.IsModerator("u3"))
}

func TestCheckAndSyncRoomMetadata(t *testing.T) {
	f := &fakeBBB{}
	server := httptest.NewServer(f.handler())
	defer server.Close()

	m, store := newTestManager(t, server.URL+"/")
	event := testEvent(store, t)
	src := EventSource{Event: event}
	require.NoError(t, m.CheckAndCreateRoom(src, false))

	event.Title = "Weekly (renamed)"
	require.NoError(t, store.StoreEvent(*event))
	require.NoError(t, m.CheckAndSyncRoom(src))

	room, err := m.Room(src)
	require.NoError(t, err)
	assert.Equal(t, "Weekly (renamed)", room.Name)
	// membership untouched by the metadata sync
	assert.True(t, room.IsMember("u1"))
}

func TestEndRoom(t *testing.T) {
	f := &fakeBBB{}
	server := httptest.NewServer(f.handler())
	defer server.Close()

	m, store := newTestManager(t, server.URL+"/")
	event := testEvent(store, t)
	src := EventSource{Event: event}
	require.NoError(t, m.CheckAndCreateRoom(src, false))
	require.NoError(t, m.EndRoom(src))

	room, err := m.Room(src)
	require.NoError(t, err)
	assert.True(t, room.Ended)
	// membership is kept on an ended room
	assert.True(t, room.IsMember("u1"))

	// an ended room is never resurrected and yields no join URL
	u, err := m.RoomURL(src, nil)
	require.NoError(t, err)
	assert.Empty(t, u)
	require.NoError(t, m.EndRoom(src))

	// the queue answers like for an ineligible source instead of an
	// endless WAITING
	state, err := m.QueueState(src, nil)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestRestartRoom(t *testing.T) {
	f := &fakeBBB{}
	server := httptest.NewServer(f.handler())
	defer server.Close()

	m, store := newTestManager(t, server.URL+"/")
	event := testEvent(store, t)
	src := EventSource{Event: event}
	require.NoError(t, m.CheckAndCreateRoom(src, false))
	require.NoError(t, m.RestartRoom(src))

	// the create call is re-issued with the stored credentials
	assert.EqualValues(t, 2, atomic.LoadInt64(&f.creates))
	f.mu.Lock()
	values := f.lastCreate
	f.mu.Unlock()
	assert.Equal(t, "event-e1", values.Get("meetingID"))
	assert.Equal(t, "ap", values.Get("attendeePW"))
	assert.Equal(t, "mp", values.Get("moderatorPW"))

	// an ended room is not restarted
	require.NoError(t, m.EndRoom(src))
	require.NoError(t, m.RestartRoom(src))
	assert.EqualValues(t, 2, atomic.LoadInt64(&f.creates))
}

func TestDialInPINsUnique(t *testing.T) {
	f := &fakeBBB{}
	server := httptest.NewServer(f.handler())
	defer server.Close()

	m, store := newTestManager(t, server.URL+"/")
	require.NoError(t, store.StoreGroup(types.Group{Id: "g1", Name: "group"}))

	pins := make(map[string]struct{})
	for i := 0; i < 5; i++ {
		event := &types.Event{
			Id:                  fmt.Sprintf("e%d", i),
			Title:               "event",
			GroupID:             "g1",
			VideoConferenceType: types.BBBMeeting,
		}
		require.NoError(t, store.StoreEvent(*event))
		src := EventSource{Event: event}
		require.NoError(t, m.CheckAndCreateRoom(src, false))
		room, err := m.Room(src)
		require.NoError(t, err)
		_, dup := pins[room.DialInPIN]
		assert.False(t, dup, "dial-in pin %s reused", room.DialInPIN)
		pins[room.DialInPIN] = struct{}{}
	}
}

func TestDialInPINReservation(t *testing.T) {
	f := &fakeBBB{}
	server := httptest.NewServer(f.handler())
	defer server.Close()

	m, _ := newTestManager(t, server.URL+"/")

	// pins drawn before any room row is stored must still be pairwise
	// distinct, the reservation set bridges the gap
	pins := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		pin, err := m.freeDialInPIN()
		require.NoError(t, err)
		_, dup := pins[pin]
		require.False(t, dup, "dial-in pin %s drawn twice", pin)
		pins[pin] = struct{}{}
	}

	// a released pin becomes drawable again
	for pin := range pins {
		m.releasePIN(pin)
	}
	m.mu.Lock()
	assert.Empty(t, m.reservedPINs)
	m.mu.Unlock()
}
