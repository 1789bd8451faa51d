package persistence

import (
	"errors"

	"github.com/wechange-eg/conference-hub/types"
)

// ErrNotFound is returned by all Get* methods when no matching record exists,
// regardless of the backing store.
var ErrNotFound = errors.New("not found")

// Persister is the storage interface for settings records, rooms and the
// business objects of the settings chain.
//
// StoreSettings enforces the only-materialize-overrides invariant: storing a
// record for which IsEmpty() is true deletes any stored row instead of
// persisting it.
type Persister interface {
	StoreSettings(types.ConferenceSettings) error
	GetSettings(objectType, objectId string) (*types.ConferenceSettings, error)
	DeleteSettings(objectType, objectId string) error

	StoreRoom(types.Room) error
	GetRoom(sourceKey string) (*types.Room, error)
	GetRooms() ([]*types.Room, error)
	UsedDialInPINs() ([]string, error) // PINs of all non-ended rooms

	StoreEvent(types.Event) error
	GetEvent(id string) (*types.Event, error)
	GetEvents() ([]*types.Event, error)

	StoreGroup(types.Group) error
	GetGroup(id string) (*types.Group, error)

	StoreConferenceRoom(types.ConferenceRoom) error
	GetConferenceRoom(id string) (*types.ConferenceRoom, error)

	StorePortal(types.Portal) error
	GetPortal(id string) (*types.Portal, error)

	StoreUser(types.User) error
	GetUser(*types.User) error

	// Transaction runs fn against a persister whose local writes commit or
	// roll back atomically. Remote API calls never belong inside fn.
	Transaction(fn func(Persister) error) error

	Close() error
}
