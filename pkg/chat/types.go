package chat

// Push event types delivered over the live-update channel. The server
// emits these after the corresponding REST write has been committed, so a
// client may see the same logical change twice: once as its own REST
// response and once as the push echo.
const (
	EventNewMessage    = "newMessage"
	EventNewChannel    = "newChannel"
	EventRenameChannel = "renameChannel"
	EventRemoveChannel = "removeChannel"
	EventError         = "error"
)

// PushEnvelope is the wire framing for every push event: a type tag and a
// raw payload whose shape depends on the tag.
type PushEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// RemoveChannelPayload is the payload of a removeChannel event. Rename and
// create events carry a full Channel; removal carries only the id.
type RemoveChannelPayload struct {
	ID string `json:"id"`
}
