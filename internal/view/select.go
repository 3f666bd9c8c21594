// Package view holds the read-only projections the presentation layer
// renders from. Selectors never mutate state and never touch the network.
package view

import (
	"sort"

	"chatterm/internal/state"
	"chatterm/pkg/chat"
)

// CurrentChannelMessages returns the selected channel's messages sorted
// by timestamp for display. The sort is stable, so messages sharing a
// timestamp keep their arrival order. Returns nil when no channel is
// selected.
func CurrentChannelMessages(s state.State) []chat.Message {
	if s.CurrentChannelID == "" {
		return nil
	}
	msgs, ok := s.MessagesByChannel[s.CurrentChannelID]
	if !ok {
		return nil
	}
	out := append([]chat.Message(nil), msgs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// ChannelList returns the channels in insertion order, copied so callers
// can't disturb state.
func ChannelList(s state.State) []chat.Channel {
	return append([]chat.Channel(nil), s.Channels...)
}

// ConnectionIndicator is the human-readable connection status.
func ConnectionIndicator(s state.State) string {
	return s.Status.String()
}

// PendingActivity reports whether any REST mutation is still in flight,
// for spinners and disabled submit buttons.
func PendingActivity(s state.State) bool {
	return s.PendingSends > 0 || s.PendingChannelOps > 0
}

// LastError returns the inline error to render, empty when none.
func LastError(s state.State) string {
	return s.LastError
}
