package room

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/wechange-eg/conference-hub/bbb"
	"github.com/wechange-eg/conference-hub/globals"
	"github.com/wechange-eg/conference-hub/persistence"
	"github.com/wechange-eg/conference-hub/settings"
	"github.com/wechange-eg/conference-hub/types"
)

const (
	dialInPINDigits   = 6
	dialInPINAttempts = 100

	// queue polling states
	StatusWaiting = "WAITING"
	StatusDone    = "DONE"
)

// QueueState is the payload of the provisioning-queue polling endpoint. While
// the remote room is being created the front end polls and gets WAITING, once
// the room exists it gets DONE plus the join URL.
type QueueState struct {
	Status string `json:"status"`
	Url    string `json:"url,omitempty"`
}

// Manager orchestrates the lifecycle of BBB rooms for source objects: lazy
// creation on first URL access, membership resync, metadata sync, end.
//
// Creation is at-most-once per process via an in-flight set keyed by the
// source key, plus a store re-check as a second guard against other
// processes.
type Manager struct {
	store    persistence.Persister
	resolver *settings.Resolver
	client   *bbb.Client

	mu           sync.Mutex
	inflight     map[string]struct{}
	reservedPINs map[string]struct{}
}

func NewManager(store persistence.Persister, resolver *settings.Resolver, client *bbb.Client) *Manager {
	return &Manager{
		store:        store,
		resolver:     resolver,
		client:       client,
		inflight:     make(map[string]struct{}),
		reservedPINs: make(map[string]struct{}),
	}
}

// Room returns the source's room, nil if none has been created yet.
func (m *Manager) Room(src Source) (*types.Room, error) {
	room, err := m.store.GetRoom(src.SourceKey())
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, nil
	}
	return room, err
}

// CheckAndCreateRoom creates the remote room for the source if it is eligible
// and has none yet. With threaded=true the creation happens on a detached
// goroutine and the call returns immediately; a failure there is logged, the
// caller keeps polling the queue endpoint.
func (m *Manager) CheckAndCreateRoom(src Source, threaded bool) error {
	if !src.CanHaveRoom() {
		return nil
	}
	key := src.SourceKey()
	m.mu.Lock()
	if _, ok := m.inflight[key]; ok {
		m.mu.Unlock()
		return nil
	}
	m.inflight[key] = struct{}{}
	m.mu.Unlock()
	if threaded {
		go func() {
			defer m.release(key)
			if err := m.createRoom(src); err != nil {
				globals.AppLogger.Error("background room creation failed", "source", key, "error", err)
			}
		}()
		return nil
	}
	defer m.release(key)
	return m.createRoom(src)
}

func (m *Manager) release(key string) {
	m.mu.Lock()
	delete(m.inflight, key)
	m.mu.Unlock()
}

func (m *Manager) createRoom(src Source) error {
	key := src.SourceKey()
	// another process may have won the race
	if room, err := m.Room(src); err != nil {
		return err
	} else if room != nil {
		return nil
	}
	final, err := m.finalizedParams(src)
	if err != nil {
		return err
	}
	opts, err := bbb.DecodeCreateOptions(final["create"])
	if err != nil {
		return err
	}
	pin, err := m.freeDialInPIN()
	if err != nil {
		globals.AppLogger.Warn("no free dial-in pin", "source", key, "error", err)
		pin = ""
	}
	// the reservation bridges the gap until the room row is stored
	defer m.releasePIN(pin)
	maxParticipants := src.MaxParticipants()
	if maxParticipants == 0 {
		maxParticipants = opts.MaxParticipants
	}
	meeting, err := m.client.Create(bbb.CreateRequest{
		MeetingID:       src.MeetingID(),
		Name:            src.MeetingName(),
		Welcome:         opts.Welcome,
		MaxParticipants: maxParticipants,
		DialNumber:      opts.DialNumber,
		VoiceBridge:     pin,
		PresentationURL: src.PresentationURL(),
		Params:          opts.Wire(),
	})
	if err != nil {
		return err
	}
	room := types.Room{
		SourceKey:       key,
		MeetingID:       meeting.MeetingID,
		AttendeePW:      meeting.AttendeePW,
		ModeratorPW:     meeting.ModeratorPW,
		Name:            src.MeetingName(),
		PresentationURL: src.PresentationURL(),
		WelcomeMessage:  opts.Welcome,
		MaxParticipants: maxParticipants,
		DialInPIN:       pin,
		Attendees:       make(types.JSONStringMap),
		Moderators:      make(types.JSONStringMap),
	}
	if err := m.store.StoreRoom(room); err != nil {
		return err
	}
	if err := src.AttachRoom(m.store, key); err != nil {
		return err
	}
	// a room with stale membership is preferable to no room
	if err := m.SyncMembers(src); err != nil {
		globals.AppLogger.Error("initial member sync failed", "source", key, "error", err)
	}
	globals.AppLogger.Info("attached new bbb room", "source", key, "meetingID", meeting.MeetingID)
	return nil
}

func (m *Manager) finalizedParams(src Source) (types.ParamMap, error) {
	res, err := m.resolver.GetForObject(src.ChainObject(), false)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &settings.Resolved{}
	}
	return res.FinalizedParams(m.resolver.PortalDefaults), nil
}

// freeDialInPIN draws a random PIN unique among all non-ended rooms. The
// drawn PIN is reserved in-process until releasePIN, so concurrent creations
// for different sources cannot draw the same PIN before either room row is
// stored.
func (m *Manager) freeDialInPIN() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	used, err := m.store.UsedDialInPINs()
	if err != nil {
		return "", err
	}
	usedSet := make(map[string]struct{}, len(used))
	for _, pin := range used {
		usedSet[pin] = struct{}{}
	}
	max := 1
	for i := 0; i < dialInPINDigits; i++ {
		max *= 10
	}
	for i := 0; i < dialInPINAttempts; i++ {
		pin := fmt.Sprintf("%0*d", dialInPINDigits, rand.Intn(max))
		if _, ok := usedSet[pin]; ok {
			continue
		}
		if _, ok := m.reservedPINs[pin]; ok {
			continue
		}
		m.reservedPINs[pin] = struct{}{}
		return pin, nil
	}
	return "", fmt.Errorf("could not find a free dial-in pin")
}

func (m *Manager) releasePIN(pin string) {
	if pin == "" {
		return
	}
	m.mu.Lock()
	delete(m.reservedPINs, pin)
	m.mu.Unlock()
}

// RoomURL returns the join URL for the user. If the source is eligible but
// has no room yet, lazy creation is triggered in the background and "" is
// returned; the caller is expected to poll the queue endpoint instead of
// waiting out the multi-second remote provisioning.
func (m *Manager) RoomURL(src Source, user *types.User) (string, error) {
	if !src.CanHaveRoom() {
		return "", nil
	}
	room, err := m.Room(src)
	if err != nil {
		return "", err
	}
	if room == nil {
		if err := m.CheckAndCreateRoom(src, true); err != nil {
			return "", err
		}
		return "", nil
	}
	if room.Ended {
		return "", nil
	}
	return m.joinURL(src, room, user)
}

func (m *Manager) joinURL(src Source, room *types.Room, user *types.User) (string, error) {
	final, err := m.finalizedParams(src)
	if err != nil {
		return "", err
	}
	params := final["join"]
	name := m.client.GuestName()
	userId := ""
	if user != nil {
		userId = user.Id
		if user.Nick != "" {
			name = user.Nick
		}
		if user.Language != "" {
			merged := make(map[string]string, len(params)+1)
			for k, v := range params {
				merged[k] = v
			}
			merged["userdata-bbb_override_default_locale"] = user.Language
			params = merged
		}
	}
	return m.client.JoinURL(room.MeetingID, name, room.Password(userId), params), nil
}

// QueueState implements the latency-hiding polling contract. An ended room
// yields nil like an ineligible source: it is never resurrected, so WAITING
// would have the front end poll forever.
func (m *Manager) QueueState(src Source, user *types.User) (*QueueState, error) {
	if !src.CanHaveRoom() {
		return nil, nil
	}
	room, err := m.Room(src)
	if err != nil {
		return nil, err
	}
	if room == nil {
		if err := m.CheckAndCreateRoom(src, true); err != nil {
			return nil, err
		}
		return &QueueState{Status: StatusWaiting}, nil
	}
	if room.Ended {
		return nil, nil
	}
	u, err := m.joinURL(src, room, user)
	if err != nil {
		return nil, err
	}
	return &QueueState{Status: StatusDone, Url: u}, nil
}

// SyncMembers rewrites the room's membership sets from the source's
// authoritative lists: remove-all, then re-add, moderators win over
// attendees. The local rewrite is one atomic transaction; there are no remote
// calls here, the credentials handed out via join URLs follow the new sets
// immediately.
func (m *Manager) SyncMembers(src Source) error {
	key := src.SourceKey()
	return m.store.Transaction(func(tx persistence.Persister) error {
		room, err := tx.GetRoom(key)
		if errors.Is(err, persistence.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		room.Attendees = make(types.JSONStringMap)
		room.Moderators = make(types.JSONStringMap)
		for id, nick := range src.Members() {
			room.Join(id, nick, false)
		}
		for id, nick := range src.Moderators() {
			room.Join(id, nick, true)
		}
		return tx.StoreRoom(*room)
	})
}

type roomMeta struct {
	Name            string
	PresentationURL string
}

// CheckAndSyncRoom pushes name/presentation-URL changes of the source down to
// an already-existing room record. Metadata only, membership is not touched
// here. A hash comparison keeps source saves without relevant changes cheap.
func (m *Manager) CheckAndSyncRoom(src Source) error {
	room, err := m.Room(src)
	if err != nil || room == nil {
		return err
	}
	want := roomMeta{Name: src.MeetingName(), PresentationURL: src.PresentationURL()}
	have := roomMeta{Name: room.Name, PresentationURL: room.PresentationURL}
	wantHash, err := hashstructure.Hash(want, hashstructure.FormatV2, nil)
	if err != nil {
		return err
	}
	haveHash, err := hashstructure.Hash(have, hashstructure.FormatV2, nil)
	if err != nil {
		return err
	}
	if wantHash == haveHash {
		return nil
	}
	room.Name = want.Name
	room.PresentationURL = want.PresentationURL
	return m.store.StoreRoom(*room)
}

// RestartRoom re-issues the remote create call with the existing credentials,
// f.e. after the BBB server dropped an idle meeting.
func (m *Manager) RestartRoom(src Source) error {
	room, err := m.Room(src)
	if err != nil {
		return err
	}
	if room == nil || room.Ended {
		return nil
	}
	final, err := m.finalizedParams(src)
	if err != nil {
		return err
	}
	opts, err := bbb.DecodeCreateOptions(final["create"])
	if err != nil {
		return err
	}
	_, err = m.client.Create(bbb.CreateRequest{
		MeetingID:       room.MeetingID,
		Name:            room.Name,
		AttendeePW:      room.AttendeePW,
		ModeratorPW:     room.ModeratorPW,
		Welcome:         room.WelcomeMessage,
		MaxParticipants: room.MaxParticipants,
		DialNumber:      opts.DialNumber,
		VoiceBridge:     room.DialInPIN,
		PresentationURL: room.PresentationURL,
		Params:          opts.Wire(),
	})
	return err
}

// EndRoom ends the remote meeting and marks the local record ended.
// Membership is kept, an ended room is never resurrected.
func (m *Manager) EndRoom(src Source) error {
	room, err := m.Room(src)
	if err != nil {
		return err
	}
	if room == nil || room.Ended {
		return nil
	}
	if err := m.client.End(room.MeetingID, room.ModeratorPW); err != nil {
		return err
	}
	room.Ended = true
	return m.store.StoreRoom(*room)
}
