// Package validate holds the client-side checks run before a request is
// sent. The server re-validates everything; these exist so obvious
// mistakes fail without a round trip.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"chatterm/pkg/chat"
)

const (
	channelNameMin = 3
	channelNameMax = 20
)

// ErrDuplicateName is returned when a channel name collides with an
// existing one, compared case-insensitively.
var ErrDuplicateName = errors.New("a channel with this name already exists")

// ChannelName checks the naming rules against the current channel list.
// When renaming, selfID excludes the channel being renamed from the
// collision check.
func ChannelName(name string, existing []chat.Channel, selfID string) error {
	trimmed := strings.TrimSpace(name)
	if n := utf8.RuneCountInString(trimmed); n < channelNameMin || n > channelNameMax {
		return fmt.Errorf("channel name must be %d to %d characters", channelNameMin, channelNameMax)
	}
	for _, ch := range existing {
		if ch.ID != selfID && strings.EqualFold(ch.Name, trimmed) {
			return ErrDuplicateName
		}
	}
	return nil
}

// MessageBody rejects empty and whitespace-only messages.
func MessageBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.New("message cannot be empty")
	}
	return nil
}
