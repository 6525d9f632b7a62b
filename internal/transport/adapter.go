// Package transport bridges Deskline dialogues to chat platforms (Slack,
// Discord, etc.).
package transport

import (
	"context"
	"time"
)

// Adapter is the interface that platform-specific implementations must
// satisfy. Each adapter handles connection management and message
// sending/receiving for a single chat platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// The channel is closed when the context is cancelled or the adapter
	// is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// InboundMessage represents a message received from the chat platform.
// ConversationID identifies the direct-message channel the caller is
// writing from; it is the dialogue session key.
type InboundMessage struct {
	Platform       string    // e.g. "slack", "discord"
	ConversationID string    // platform-specific DM/channel identifier
	UserID         string    // platform-specific user identifier
	UserName       string    // human-readable username
	Text           string    // raw message text
	Timestamp      time.Time // when the message was sent
}

// OutboundMessage represents a reply to be sent back into a conversation.
type OutboundMessage struct {
	ConversationID string // target DM/channel
	Text           string // message text (platform-native formatting)
}

// BotUserIDer is an optional interface that adapters can implement to
// expose the bot's own user ID. This enables self-message filtering.
type BotUserIDer interface {
	BotUserID() string
}
