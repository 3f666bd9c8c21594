package chat

import "strings"

// Channel is a named conversation partition. The two default channels
// ("general" and "random") are seeded by the server and are not removable.
type Channel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Removable bool   `json:"removable"`
}

// Message belongs to exactly one channel and is immutable once created.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channelId"`
	Username  string `json:"username"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
}

// Session is the authenticated identity: the bearer token issued at
// login/signup plus the username it was issued for.
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// DefaultChannelNames are present after every initial load and may never
// be removed, locally or by a push event.
var DefaultChannelNames = []string{"general", "random"}

// IsDefaultChannelName reports whether name matches a default channel,
// ignoring case.
func IsDefaultChannelName(name string) bool {
	for _, d := range DefaultChannelNames {
		if strings.EqualFold(name, d) {
			return true
		}
	}
	return false
}
