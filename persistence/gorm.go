package persistence

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/wechange-eg/conference-hub/config"
	"github.com/wechange-eg/conference-hub/types"
	"gorm.io/datatypes"
	_ "gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ driver.Valuer = &datatypes.JSON{}

type GormPersist struct {
	db *gorm.DB
}

func NewGormPersister(cfg *config.Config) (Persister, error) {
	db, err := setupGormDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	p := GormPersist{db: db}
	return &p, nil
}

func setupGormDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	var dial gorm.Dialector
	switch cfg.PersistenceConfig.Type {
	case "postgres":
		dial = postgres.Open(cfg.PersistenceConfig.DSN)

	case "sqlite":
		dial = sqlite.Open(cfg.PersistenceConfig.DSN)

	default:
		return nil, fmt.Errorf("invalid gorm configuration")
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	db.Migrator().AutoMigrate(&types.ConferenceSettings{}, &types.Room{}, &types.Event{}, &types.Group{}, &types.ConferenceRoom{}, &types.Portal{}, &types.User{})
	return db, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (p *GormPersist) StoreSettings(settings types.ConferenceSettings) error {
	if settings.IsEmpty() {
		// only materialize overrides, never defaults
		return p.DeleteSettings(settings.ObjectType, settings.ObjectID)
	}
	return p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "object_type"}, {Name: "object_id"}},
		UpdateAll: true,
	}).Create(&settings).Error
}

func (p *GormPersist) GetSettings(objectType, objectId string) (*types.ConferenceSettings, error) {
	settings := types.ConferenceSettings{}
	err := p.db.Where("object_type = ? AND object_id = ?", objectType, objectId).First(&settings).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &settings, nil
}

func (p *GormPersist) DeleteSettings(objectType, objectId string) error {
	return p.db.Where("object_type = ? AND object_id = ?", objectType, objectId).Delete(&types.ConferenceSettings{}).Error
}

func (p *GormPersist) StoreRoom(room types.Room) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&room).Error
}

func (p *GormPersist) GetRoom(sourceKey string) (*types.Room, error) {
	room := types.Room{SourceKey: sourceKey}
	err := p.db.First(&room).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

func (p *GormPersist) GetRooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.Find(&rooms).Error
	return rooms, err
}

func (p *GormPersist) UsedDialInPINs() ([]string, error) {
	pins := make([]string, 0)
	err := p.db.Model(&types.Room{}).Where("ended = ?", false).Pluck("dial_in_pin", &pins).Error
	return pins, err
}

func (p *GormPersist) StoreEvent(event types.Event) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&event).Error
}

func (p *GormPersist) GetEvent(id string) (*types.Event, error) {
	event := types.Event{Id: id}
	err := p.db.First(&event).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

func (p *GormPersist) GetEvents() ([]*types.Event, error) {
	events := make([]*types.Event, 0)
	err := p.db.Find(&events).Error
	return events, err
}

func (p *GormPersist) StoreGroup(group types.Group) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&group).Error
}

func (p *GormPersist) GetGroup(id string) (*types.Group, error) {
	group := types.Group{Id: id}
	err := p.db.First(&group).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &group, nil
}

func (p *GormPersist) StoreConferenceRoom(room types.ConferenceRoom) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&room).Error
}

func (p *GormPersist) GetConferenceRoom(id string) (*types.ConferenceRoom, error) {
	room := types.ConferenceRoom{Id: id}
	err := p.db.First(&room).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

func (p *GormPersist) StorePortal(portal types.Portal) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&portal).Error
}

func (p *GormPersist) GetPortal(id string) (*types.Portal, error) {
	portal := types.Portal{Id: id}
	err := p.db.First(&portal).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &portal, nil
}

func (p *GormPersist) StoreUser(user types.User) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&user).Error
}

func (p *GormPersist) GetUser(user *types.User) error {
	return notFound(p.db.First(user).Error)
}

func (p *GormPersist) Transaction(fn func(Persister) error) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormPersist{db: tx})
	})
}

func (p *GormPersist) Close() error {
	return nil
}
