package pipeline

import (
	"time"

	"github.com/voxahq/voxa/pkg/types"
)

// State is the voice session state. The UI layer drives its wave animation
// and status text from state events.
type State string

const (
	StateIdle         State = "idle"
	StateSpotting     State = "spotting"
	StateRecognizing  State = "recognizing"
	StateInterpreting State = "interpreting"
	StateResolving    State = "resolving"
	StateDispatching  State = "dispatching"
)

// EventKind discriminates pipeline events.
type EventKind int

const (
	// EventState reports a session state change.
	EventState EventKind = iota

	// EventAnnouncement carries a voice-initiated now-playing announcement.
	EventAnnouncement

	// EventNowPlaying carries a poller update of the current track. Unlike
	// announcements it fires for app-initiated changes too and is never
	// spoken.
	EventNowPlaying

	// EventNotice carries a user-facing error notice ("didn't catch that").
	EventNotice
)

// Event is one entry in the UI event stream.
type Event struct {
	Kind EventKind
	At   time.Time

	// State is set for EventState.
	State State

	// Announcement is set for EventAnnouncement.
	Announcement *types.Announcement

	// NowPlaying is set for EventNowPlaying; nil means playback stopped.
	NowPlaying *types.CatalogItem

	// Notice is set for EventNotice.
	Notice string
}
