package types

import (
	"time"

	"gorm.io/gorm"
)

// VideoConferenceType selects what kind of video conference (if any) an event
// carries.
type VideoConferenceType int

const (
	NoVideoConference VideoConferenceType = iota
	BBBMeeting
	ProxyURL // external conference link, no room is managed for these
)

// Room natures. The nature is stamped onto resolved settings composites and
// selects the matching "__<nature>" parameter overlay.
const (
	NatureDefault  = ""
	NatureCoffee   = "coffee"
	NatureWorkshop = "workshop"
	NatureStage    = "stage"
)

// Settings-blob keys holding the external streamer state of an event.
const (
	StreamerIdKey      = "streamer_id"
	StreamerRunningKey = "streamer_running"
)

// Event is a (conference) event. It sits at the bottom of the settings chain;
// its parent is its conference room if it has one, otherwise its group.
type Event struct {
	Id                  string              `json:"id" gorm:"primaryKey"`
	Title               string              `json:"title"`
	GroupID             string              `json:"group_id"`
	ConferenceRoomID    string              `json:"conference_room_id"`
	FromDate            time.Time           `json:"from_date"`
	ToDate              time.Time           `json:"to_date"`
	VideoConferenceType VideoConferenceType `json:"video_conference_type"`
	Nature              string              `json:"nature"`
	PresentationFile    string              `json:"presentation_file"`
	MaxParticipants     int                 `json:"max_participants"`
	RoomKey             string              `json:"room_key"` // set once a BBB room has been attached
	AttendeeIds         JSONStringMap       `json:"attendee_ids"`  // user id -> display name
	ModeratorIds        JSONStringMap       `json:"moderator_ids"` // user id -> display name
	StreamingEnabled    bool                `json:"streaming_enabled"`
	StreamURL           string              `json:"stream_url"`
	StreamKey           string              `json:"stream_key"`
	Settings            JSONStringMap       `json:"settings"` // free-form blob, also holds the streamer state keys
	CreatedAt           time.Time           `json:"-"`
	UpdatedAt           time.Time           `json:"-"`
	DeletedAt           gorm.DeletedAt      `json:"-" gorm:"index"`
}

func (e *Event) SettingsObjectType() string { return ObjectTypeEvent }
func (e *Event) SettingsObjectID() string   { return e.Id }
func (e *Event) ObjectNature() string       { return e.Nature }

// StreamerId returns the external streamer identifier, "" if none exists.
func (e *Event) StreamerId() string {
	return e.Settings[StreamerIdKey]
}

// StreamerRunning reports whether the external streamer has been started.
func (e *Event) StreamerRunning() bool {
	return e.Settings[StreamerRunningKey] == "true"
}

func (e *Event) SetStreamerId(id string) {
	if e.Settings == nil {
		e.Settings = make(JSONStringMap)
	}
	if id == "" {
		delete(e.Settings, StreamerIdKey)
		return
	}
	e.Settings[StreamerIdKey] = id
}

func (e *Event) SetStreamerRunning(running bool) {
	if e.Settings == nil {
		e.Settings = make(JSONStringMap)
	}
	if running {
		e.Settings[StreamerRunningKey] = "true"
	} else {
		delete(e.Settings, StreamerRunningKey)
	}
}

// ConferenceRoom groups conference events inside a group (lobby, workshops,
// coffee tables). Its settings parent is the group.
type ConferenceRoom struct {
	Id        string         `json:"id" gorm:"primaryKey"`
	Title     string         `json:"title"`
	GroupID   string         `json:"group_id"`
	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (c *ConferenceRoom) SettingsObjectType() string { return ObjectTypeConferenceRoom }
func (c *ConferenceRoom) SettingsObjectID() string   { return c.Id }
