// Package chat defines the narrow messaging interface the core talks
// through. The REST implementation lives under chat/rest; tests use fakes.
package chat

import (
	"context"
	"time"
)

// Message is the platform-independent view of a channel message.
type Message struct {
	ID        string
	ChannelID string
	Author    string
	Content   string
	Pinned    bool
	CreatedAt time.Time
}

// Messenger is everything the core needs from the messaging platform.
// Sends and edits are best-effort: failures are logged at call sites and
// never roll back state (state is authoritative, notifications are not).
type Messenger interface {
	Send(ctx context.Context, channelID, content string) (*Message, error)
	Edit(ctx context.Context, channelID, messageID, content string) error
	Pin(ctx context.Context, channelID, messageID string) error
	ListPinned(ctx context.Context, channelID string) ([]Message, error)
	// Purge deletes every unpinned message for which shouldDelete returns
	// true and reports how many were removed.
	Purge(ctx context.Context, channelID string, shouldDelete func(Message) bool) (int, error)
	// Self returns the author ID this system posts under.
	Self() string
}
