package state

import (
	"strings"

	"chatterm/pkg/chat"
)

// Reduce applies one event and returns the next state. It is pure: the
// input state is never modified, and applying the same creation or
// delivery event twice yields the same result as applying it once.
//
// It must be safe to apply any event at any time: REST confirmations and
// push echoes for the same change arrive in either order, and rename or
// remove events can race a deletion that already happened.
func Reduce(s State, ev Event) State {
	switch ev := ev.(type) {
	case InitialLoaded:
		return reduceInitialLoaded(s, ev)

	case InitialLoadFailed:
		s.LastError = ev.Err
		return s

	case ChannelCreated:
		return reduceChannelCreated(s, ev)

	case ChannelRenamed:
		return reduceChannelRenamed(s, ev)

	case ChannelRemoved:
		return reduceChannelRemoved(s, ev)

	case MessageAdded:
		return reduceMessageAdded(s, ev)

	case CurrentChannelSet:
		if _, ok := s.Channel(ev.ID); ok {
			s.CurrentChannelID = ev.ID
		}
		return s

	case StatusChanged:
		// Dropping to disconnected keeps channels and messages; state is
		// retained across reconnects.
		s.Status = ev.Status
		return s

	case ErrorSignaled:
		s.LastError = ev.Err
		return s

	case ErrorCleared:
		s.LastError = ""
		return s

	case SendStarted:
		s.PendingSends++
		return s
	case SendFinished:
		if s.PendingSends > 0 {
			s.PendingSends--
		}
		return s
	case ChannelOpStarted:
		s.PendingChannelOps++
		return s
	case ChannelOpFinished:
		if s.PendingChannelOps > 0 {
			s.PendingChannelOps--
		}
		return s
	}
	return s
}

func reduceInitialLoaded(s State, ev InitialLoaded) State {
	s.Channels = append([]chat.Channel(nil), ev.Channels...)
	s.MessagesByChannel = make(map[string][]chat.Message, len(ev.Channels))
	for _, ch := range ev.Channels {
		s.MessagesByChannel[ch.ID] = []chat.Message{}
	}
	for _, msg := range ev.Messages {
		s.MessagesByChannel[msg.ChannelID] = append(s.MessagesByChannel[msg.ChannelID], msg)
	}

	s.Loaded = true
	s.LastError = ""
	if s.CurrentChannelID == "" {
		s.CurrentChannelID = pickChannel(s.Channels)
	}
	return s
}

func reduceChannelCreated(s State, ev ChannelCreated) State {
	if _, exists := s.Channel(ev.Channel.ID); !exists {
		s.Channels = append(append([]chat.Channel(nil), s.Channels...), ev.Channel)
		s.MessagesByChannel = cloneMessages(s.MessagesByChannel)
		if _, ok := s.MessagesByChannel[ev.Channel.ID]; !ok {
			s.MessagesByChannel[ev.Channel.ID] = []chat.Message{}
		}
	}
	// The user's own create selects the channel even when the push echo
	// already inserted it.
	if ev.Local {
		s.CurrentChannelID = ev.Channel.ID
	}
	return s
}

func reduceChannelRenamed(s State, ev ChannelRenamed) State {
	idx := -1
	for i, ch := range s.Channels {
		if ch.ID == ev.Channel.ID {
			idx = i
			break
		}
	}
	if idx == -1 {
		// Renamed after deletion; nothing to update.
		return s
	}
	channels := append([]chat.Channel(nil), s.Channels...)
	channels[idx] = ev.Channel
	s.Channels = channels
	return s
}

func reduceChannelRemoved(s State, ev ChannelRemoved) State {
	removed, ok := s.Channel(ev.ID)
	if !ok || !removed.Removable {
		return s
	}

	channels := make([]chat.Channel, 0, len(s.Channels)-1)
	for _, ch := range s.Channels {
		if ch.ID != ev.ID {
			channels = append(channels, ch)
		}
	}
	s.Channels = channels

	s.MessagesByChannel = cloneMessages(s.MessagesByChannel)
	delete(s.MessagesByChannel, ev.ID)

	if s.CurrentChannelID == ev.ID {
		s.CurrentChannelID = pickChannel(s.Channels)
	}
	return s
}

func reduceMessageAdded(s State, ev MessageAdded) State {
	msgs, ok := s.MessagesByChannel[ev.Message.ChannelID]
	if !ok {
		// Channel deleted while the message was in flight.
		return s
	}
	for _, m := range msgs {
		if m.ID == ev.Message.ID {
			// Already applied via the other delivery path.
			return s
		}
	}
	s.MessagesByChannel = cloneMessages(s.MessagesByChannel)
	s.MessagesByChannel[ev.Message.ChannelID] = append(append([]chat.Message(nil), msgs...), ev.Message)
	return s
}

// pickChannel is the reselection policy: "general" if present, else the
// first channel, else none.
func pickChannel(channels []chat.Channel) string {
	for _, ch := range channels {
		if strings.EqualFold(ch.Name, "general") {
			return ch.ID
		}
	}
	if len(channels) > 0 {
		return channels[0].ID
	}
	return ""
}

func cloneMessages(m map[string][]chat.Message) map[string][]chat.Message {
	out := make(map[string][]chat.Message, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
