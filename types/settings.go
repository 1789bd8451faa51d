package types

import (
	"time"

	"gorm.io/gorm"
)

// ServerChoice selects which remote BBB server cluster an object uses.
// ServerChoiceInherit is the sentinel meaning "take the value from the parent
// in the settings chain".
type ServerChoice int

const (
	ServerChoiceInherit ServerChoice = iota
	ServerChoiceClusterA
	ServerChoiceClusterB
)

// Object type discriminators of the settings chain, bottom to top.
const (
	ObjectTypeEvent          = "event"
	ObjectTypeConferenceRoom = "conferenceroom"
	ObjectTypeGroup          = "group"
	ObjectTypePortal         = "portal"
)

// ChainMember is anything that can own a ConferenceSettings record and take
// part in the inheritance chain.
type ChainMember interface {
	SettingsObjectType() string
	SettingsObjectID() string
}

// NatureProvider is implemented by chain members that carry a room nature
// (f.e. an instant coffee-table event). The nature selects which suffixed
// parameter overlay applies during finalization.
type NatureProvider interface {
	ObjectNature() string
}

// ConferenceSettings is the stored per-object override bag of BBB parameters.
// Only overrides are materialized: a record with both server choices at the
// inherit sentinel and an empty param map must never be persisted (the
// persister deletes such a row on store).
type ConferenceSettings struct {
	ID                     uint           `json:"-" gorm:"primaryKey"`
	ObjectType             string         `json:"object_type" gorm:"index:idx_settings_object,unique"`
	ObjectID               string         `json:"object_id" gorm:"index:idx_settings_object,unique"`
	BBBServerChoice        ServerChoice   `json:"bbb_server_choice"`
	BBBServerChoicePremium ServerChoice   `json:"bbb_server_choice_premium"`
	BBBParams              ParamMap       `json:"bbb_params"`
	CreatedAt              time.Time      `json:"-"`
	UpdatedAt              time.Time      `json:"-"`
	DeletedAt              gorm.DeletedAt `json:"-" gorm:"index"`
}

// IsEmpty reports whether the record carries no override at all.
func (s *ConferenceSettings) IsEmpty() bool {
	return s.BBBServerChoice == ServerChoiceInherit &&
		s.BBBServerChoicePremium == ServerChoiceInherit &&
		len(s.BBBParams) == 0
}

// SettingsKey is the cache/lookup key of a chain member's settings,
// class name plus identifier.
func SettingsKey(obj ChainMember) string {
	return obj.SettingsObjectType() + ":" + obj.SettingsObjectID()
}
