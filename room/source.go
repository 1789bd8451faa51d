package room

import (
	"github.com/wechange-eg/conference-hub/persistence"
	"github.com/wechange-eg/conference-hub/types"
)

// Source is anything a BBB room can be orchestrated for (a conference event,
// a plain event, a group). It answers what the room should look like and who
// belongs into it.
type Source interface {
	CanHaveRoom() bool
	SourceKey() string
	MeetingName() string
	MeetingID() string
	PresentationURL() string
	MaxParticipants() int
	Members() map[string]string    // user id -> display name
	Moderators() map[string]string // user id -> display name
	// ChainObject is the object the settings chain is resolved from.
	ChainObject() types.ChainMember
	// AttachRoom records the room key on the source object.
	AttachRoom(store persistence.Persister, roomKey string) error
}

// BaseSource provides the conservative defaults: no room, no presentation, no
// presenter list. Concrete sources embed it and override what they support.
type BaseSource struct{}

func (BaseSource) CanHaveRoom() bool             { return false }
func (BaseSource) PresentationURL() string       { return "" }
func (BaseSource) MaxParticipants() int          { return 0 }
func (BaseSource) Members() map[string]string    { return nil }
func (BaseSource) Moderators() map[string]string { return nil }

// EventSource adapts a (conference) event.
type EventSource struct {
	BaseSource
	Event *types.Event
}

func (s EventSource) CanHaveRoom() bool {
	return s.Event.VideoConferenceType == types.BBBMeeting
}

func (s EventSource) SourceKey() string {
	return types.ObjectTypeEvent + ":" + s.Event.Id
}

func (s EventSource) MeetingName() string { return s.Event.Title }

func (s EventSource) MeetingID() string { return "event-" + s.Event.Id }

func (s EventSource) PresentationURL() string { return s.Event.PresentationFile }

func (s EventSource) MaxParticipants() int { return s.Event.MaxParticipants }

func (s EventSource) Members() map[string]string { return s.Event.AttendeeIds }

func (s EventSource) Moderators() map[string]string { return s.Event.ModeratorIds }

func (s EventSource) ChainObject() types.ChainMember { return s.Event }

func (s EventSource) AttachRoom(store persistence.Persister, roomKey string) error {
	s.Event.RoomKey = roomKey
	return store.StoreEvent(*s.Event)
}

// GroupSource adapts a group (the group-wide meeting). Groups always may have
// a room; every group member is an attendee, group moderators moderate.
type GroupSource struct {
	BaseSource
	Group *types.Group
}

func (s GroupSource) CanHaveRoom() bool { return true }

func (s GroupSource) SourceKey() string {
	return types.ObjectTypeGroup + ":" + s.Group.Id
}

func (s GroupSource) MeetingName() string { return s.Group.Name }

func (s GroupSource) MeetingID() string { return "group-" + s.Group.Id }

func (s GroupSource) Members() map[string]string { return s.Group.MemberIds }

func (s GroupSource) Moderators() map[string]string { return s.Group.ModeratorIds }

func (s GroupSource) ChainObject() types.ChainMember { return s.Group }

func (s GroupSource) AttachRoom(store persistence.Persister, roomKey string) error {
	s.Group.RoomKey = roomKey
	return store.StoreGroup(*s.Group)
}
