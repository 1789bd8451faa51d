package types

import (
	"time"

	"gorm.io/gorm"
)

// Room is the local record mirroring a remote BBB meeting and its membership.
// It is created lazily on first access of a join URL for its source object,
// never at source-object creation time. Once Ended is set it is never
// resurrected.
type Room struct {
	SourceKey       string         `json:"source_key" gorm:"primaryKey"` // key of the owning source object, f.e. "event:42"
	MeetingID       string         `json:"meeting_id" gorm:"uniqueIndex"`
	AttendeePW      string         `json:"-"`
	ModeratorPW     string         `json:"-"`
	Name            string         `json:"name"`
	PresentationURL string         `json:"presentation_url"`
	WelcomeMessage  string         `json:"welcome_message"`
	MaxParticipants int            `json:"max_participants"`
	DialInPIN       string         `json:"dial_in_pin"` // unique among non-ended rooms
	Ended           bool           `json:"ended"`
	Attendees       JSONStringMap  `json:"attendees"`  // user id -> display name
	Moderators      JSONStringMap  `json:"moderators"` // user id -> display name
	CreatedAt       time.Time      `json:"-"`
	UpdatedAt       time.Time      `json:"-"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}

// IsModerator reports whether the user id is in the moderator set.
func (r *Room) IsModerator(userId string) bool {
	_, ok := r.Moderators[userId]
	return ok
}

// IsMember reports whether the user id is in either membership set.
func (r *Room) IsMember(userId string) bool {
	if _, ok := r.Attendees[userId]; ok {
		return true
	}
	return r.IsModerator(userId)
}

// Join puts the user into exactly one of the two membership sets. A promotion
// or demotion moves the user between the sets, the sets stay disjoint.
func (r *Room) Join(userId, nick string, asModerator bool) {
	if r.Attendees == nil {
		r.Attendees = make(JSONStringMap)
	}
	if r.Moderators == nil {
		r.Moderators = make(JSONStringMap)
	}
	if asModerator {
		delete(r.Attendees, userId)
		r.Moderators[userId] = nick
	} else {
		delete(r.Moderators, userId)
		r.Attendees[userId] = nick
	}
}

// Remove drops the user from both membership sets.
func (r *Room) Remove(userId string) {
	delete(r.Attendees, userId)
	delete(r.Moderators, userId)
}

// Password returns the join credential for the user, the moderator password
// for moderators, the attendee password for everybody else.
func (r *Room) Password(userId string) string {
	if r.IsModerator(userId) {
		return r.ModeratorPW
	}
	return r.AttendeePW
}
