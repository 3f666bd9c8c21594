// Package state is the synchronization core: one normalized in-memory
// view of channels and messages, updated by reducing events from three
// concurrent sources — the initial REST fetch, confirmed REST mutations
// and push events from the live-update channel.
//
// The same logical change can reach the reducer twice (REST confirmation
// plus push echo) in either order; every rule is idempotent by id so both
// orders converge to the same state.
package state

import "chatterm/pkg/chat"

// Status is the live-connection indicator mirrored into state.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// State is the single source of truth the view layer projects from.
//
// Reduce never mutates a State it was handed; collections are copied
// before modification, so an old snapshot stays valid (and safe to read
// from another goroutine) after further events are applied.
type State struct {
	// Channels in insertion order.
	Channels []chat.Channel

	// MessagesByChannel holds each channel's messages in the order their
	// events were reduced, which is not necessarily timestamp order.
	MessagesByChannel map[string][]chat.Message

	// CurrentChannelID is empty when no channel is selected. When
	// non-empty it always references an entry of Channels.
	CurrentChannelID string

	Status Status

	// Loaded flips once the initial fetch has been applied.
	Loaded bool

	PendingSends      int
	PendingChannelOps int

	// LastError is the most recent failure, for a persistent inline
	// indicator. Empty means none. Errors never roll back state.
	LastError string
}

// NewState returns the empty pre-load state.
func NewState() State {
	return State{MessagesByChannel: map[string][]chat.Message{}}
}

// Channel returns the channel with the given id, if present.
func (s State) Channel(id string) (chat.Channel, bool) {
	for _, ch := range s.Channels {
		if ch.ID == id {
			return ch, true
		}
	}
	return chat.Channel{}, false
}

// CurrentChannel returns the selected channel, if any.
func (s State) CurrentChannel() (chat.Channel, bool) {
	if s.CurrentChannelID == "" {
		return chat.Channel{}, false
	}
	return s.Channel(s.CurrentChannelID)
}
