// Package platform is the chat-platform client: a REST surface for sending
// and editing messages, managing threads, and a websocket gateway for
// inbound events.
package platform

// Channel type values as the platform wire protocol defines them.
const (
	ChannelTypeText          = 0
	ChannelTypePublicThread  = 11
	ChannelTypePrivateThread = 12
)

// Channel is the subset of channel state the bot consumes.
type Channel struct {
	ID       string `json:"id"`
	Type     int    `json:"type"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
	GuildID  string `json:"guild_id"`
}

// IsThread reports whether the channel is a thread surface.
func (c Channel) IsThread() bool {
	return c.Type == ChannelTypePublicThread || c.Type == ChannelTypePrivateThread
}

// User is a message author.
type User struct {
	ID  string `json:"id"`
	Bot bool   `json:"bot"`
}

// InboundMessage is one message event from the gateway.
type InboundMessage struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
	Content   string `json:"content"`
	Author    User   `json:"author"`
}

// Message is a created or edited message as the REST API returns it.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}
