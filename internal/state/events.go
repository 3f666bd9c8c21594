package state

import "chatterm/pkg/chat"

// Event is the closed set of inputs the reducer accepts. Every REST
// completion and push delivery is converted to one of these before it
// touches state, so the reducer is a total function over known variants
// instead of a switch on untyped payloads.
type Event interface{ isEvent() }

// InitialLoaded replaces all channel and message state with the
// initial-fetch payload.
type InitialLoaded struct {
	Channels []chat.Channel
	Messages []chat.Message
}

// InitialLoadFailed records the initial-fetch failure.
type InitialLoadFailed struct {
	Err string
}

// ChannelCreated is a confirmed create, from the local REST response or
// the push echo. Local marks the user's own create, which also selects
// the new channel.
type ChannelCreated struct {
	Channel chat.Channel
	Local   bool
}

// ChannelRenamed replaces the channel entry with a matching id in place.
type ChannelRenamed struct {
	Channel chat.Channel
}

// ChannelRemoved deletes a channel and its messages.
type ChannelRemoved struct {
	ID string
}

// MessageAdded appends a message, whether locally confirmed or pushed.
type MessageAdded struct {
	Message chat.Message
}

// CurrentChannelSet is the user navigating to another channel.
type CurrentChannelSet struct {
	ID string
}

// StatusChanged mirrors the live-connection state machine.
type StatusChanged struct {
	Status Status
}

// ErrorSignaled records a failure from the gateway or the live channel.
type ErrorSignaled struct {
	Err string
}

// ErrorCleared resets the inline error indicator.
type ErrorCleared struct{}

// SendStarted / SendFinished bracket an in-flight message send.
type SendStarted struct{}
type SendFinished struct{}

// ChannelOpStarted / ChannelOpFinished bracket an in-flight channel
// create, rename or delete.
type ChannelOpStarted struct{}
type ChannelOpFinished struct{}

func (InitialLoaded) isEvent()     {}
func (InitialLoadFailed) isEvent() {}
func (ChannelCreated) isEvent()    {}
func (ChannelRenamed) isEvent()    {}
func (ChannelRemoved) isEvent()    {}
func (MessageAdded) isEvent()      {}
func (CurrentChannelSet) isEvent() {}
func (StatusChanged) isEvent()     {}
func (ErrorSignaled) isEvent()     {}
func (ErrorCleared) isEvent()      {}
func (SendStarted) isEvent()       {}
func (SendFinished) isEvent()      {}
func (ChannelOpStarted) isEvent()  {}
func (ChannelOpFinished) isEvent() {}
