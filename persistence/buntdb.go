package persistence

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/buntdb"
	"github.com/wechange-eg/conference-hub/config"
	"github.com/wechange-eg/conference-hub/types"
)

// BuntDBPersist is the file-backed alternative to the gorm persister, meant
// for single-node setups without a database server. Values are stored as JSON
// under key prefixes ("settings:", "room:", ...).
type BuntDBPersist struct {
	db *buntdb.DB
}

func NewBuntPersister(cfg *config.Config) (Persister, error) {
	db, err := setupBuntDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	return &BuntDBPersist{db}, nil
}

func setupBuntDB(cfg *config.Config) (*buntdb.DB, error) {
	if cfg.PersistenceConfig.Type != "buntdb" || cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	db, err := buntdb.Open(cfg.PersistenceConfig.DSN)
	if err != nil {
		return nil, err
	}
	err = db.CreateIndex("rooms", "room:*", buntdb.IndexJSON("source_key"))
	if err != nil && err != buntdb.ErrIndexExists {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (p *BuntDBPersist) set(key string, v interface{}) error {
	ba, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(ba), nil)
		return err
	})
}

func (p *BuntDBPersist) get(key string, v interface{}) error {
	err := p.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(key)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(val), v)
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (p *BuntDBPersist) delete(key string) error {
	err := p.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil
	}
	return err
}

func settingsKey(objectType, objectId string) string {
	return fmt.Sprintf("settings:%s:%s", objectType, objectId)
}

func (p *BuntDBPersist) StoreSettings(settings types.ConferenceSettings) error {
	if settings.IsEmpty() {
		// only materialize overrides, never defaults
		return p.DeleteSettings(settings.ObjectType, settings.ObjectID)
	}
	return p.set(settingsKey(settings.ObjectType, settings.ObjectID), settings)
}

func (p *BuntDBPersist) GetSettings(objectType, objectId string) (*types.ConferenceSettings, error) {
	settings := types.ConferenceSettings{}
	if err := p.get(settingsKey(objectType, objectId), &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (p *BuntDBPersist) DeleteSettings(objectType, objectId string) error {
	return p.delete(settingsKey(objectType, objectId))
}

func (p *BuntDBPersist) StoreRoom(room types.Room) error {
	return p.set("room:"+room.SourceKey, room)
}

func (p *BuntDBPersist) GetRoom(sourceKey string) (*types.Room, error) {
	room := types.Room{}
	if err := p.get("room:"+sourceKey, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (p *BuntDBPersist) GetRooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		var innerErr error
		err := tx.AscendKeys("room:*", func(key, value string) bool {
			room := types.Room{}
			if innerErr = json.Unmarshal([]byte(value), &room); innerErr != nil {
				return false
			}
			rooms = append(rooms, &room)
			return true
		})
		if innerErr != nil {
			return innerErr
		}
		return err
	})
	return rooms, err
}

func (p *BuntDBPersist) UsedDialInPINs() ([]string, error) {
	rooms, err := p.GetRooms()
	if err != nil {
		return nil, err
	}
	pins := make([]string, 0, len(rooms))
	for _, room := range rooms {
		if !room.Ended && room.DialInPIN != "" {
			pins = append(pins, room.DialInPIN)
		}
	}
	return pins, nil
}

func (p *BuntDBPersist) StoreEvent(event types.Event) error {
	return p.set("event:"+event.Id, event)
}

func (p *BuntDBPersist) GetEvent(id string) (*types.Event, error) {
	event := types.Event{}
	if err := p.get("event:"+id, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (p *BuntDBPersist) GetEvents() ([]*types.Event, error) {
	events := make([]*types.Event, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		var innerErr error
		err := tx.AscendKeys("event:*", func(key, value string) bool {
			event := types.Event{}
			if innerErr = json.Unmarshal([]byte(value), &event); innerErr != nil {
				return false
			}
			events = append(events, &event)
			return true
		})
		if innerErr != nil {
			return innerErr
		}
		return err
	})
	return events, err
}

func (p *BuntDBPersist) StoreGroup(group types.Group) error {
	return p.set("group:"+group.Id, group)
}

func (p *BuntDBPersist) GetGroup(id string) (*types.Group, error) {
	group := types.Group{}
	if err := p.get("group:"+id, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

func (p *BuntDBPersist) StoreConferenceRoom(room types.ConferenceRoom) error {
	return p.set("confroom:"+room.Id, room)
}

func (p *BuntDBPersist) GetConferenceRoom(id string) (*types.ConferenceRoom, error) {
	room := types.ConferenceRoom{}
	if err := p.get("confroom:"+id, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (p *BuntDBPersist) StorePortal(portal types.Portal) error {
	return p.set("portal:"+portal.Id, portal)
}

func (p *BuntDBPersist) GetPortal(id string) (*types.Portal, error) {
	portal := types.Portal{}
	if err := p.get("portal:"+id, &portal); err != nil {
		return nil, err
	}
	return &portal, nil
}

func (p *BuntDBPersist) StoreUser(user types.User) error {
	return p.set("user:"+user.Id, user)
}

func (p *BuntDBPersist) GetUser(user *types.User) error {
	if user.Id == "" {
		return fmt.Errorf("no user id")
	}
	return p.get("user:"+user.Id, user)
}

// Transaction executes fn directly. BuntDB serializes writers internally, so
// the multi-key writes of fn are not atomic as a whole; the gorm persister is
// the backend of choice where that matters.
func (p *BuntDBPersist) Transaction(fn func(Persister) error) error {
	return fn(p)
}

func (p *BuntDBPersist) Close() error {
	return p.db.Close()
}
