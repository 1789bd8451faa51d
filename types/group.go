package types

import (
	"time"

	"gorm.io/gorm"
)

// Group is a group or project. Its settings parent is the portal. A group may
// carry a BBB room of its own (the group-wide meeting).
type Group struct {
	Id           string         `json:"id" gorm:"primaryKey"`
	Name         string         `json:"name"`
	PortalID     string         `json:"portal_id"`
	Premium      bool           `json:"premium"` // premium groups may stream
	RoomKey      string         `json:"room_key"`
	MemberIds    JSONStringMap  `json:"member_ids"`    // user id -> display name
	ModeratorIds JSONStringMap  `json:"moderator_ids"` // user id -> display name
	CreatedAt    time.Time      `json:"-"`
	UpdatedAt    time.Time      `json:"-"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

func (g *Group) SettingsObjectType() string { return ObjectTypeGroup }
func (g *Group) SettingsObjectID() string   { return g.Id }

// Portal is the absolute top of the settings chain.
type Portal struct {
	Id        string         `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name"`
	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (p *Portal) SettingsObjectType() string { return ObjectTypePortal }
func (p *Portal) SettingsObjectID() string   { return p.Id }
