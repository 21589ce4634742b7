// Package rest implements chat.Messenger against a Discord-compatible REST
// API.
package rest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/guildboard/guildboard/internal/chat"
)

// Client talks to the messaging platform over HTTP.
type Client struct {
	http *resty.Client
	self string
	log  zerolog.Logger
}

type wireMessage struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Pinned    bool   `json:"pinned"`
	Timestamp string `json:"timestamp"`
	Author    struct {
		ID string `json:"id"`
	} `json:"author"`
}

type wireUser struct {
	ID string `json:"id"`
}

// New builds a Client and resolves its own identity from the API.
func New(baseURL, token string, log zerolog.Logger) (*Client, error) {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Authorization", "Bot "+token).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)

	var me wireUser
	resp, err := c.R().SetResult(&me).Get("/users/@me")
	if err != nil {
		return nil, fmt.Errorf("resolve self: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("resolve self: status %d", resp.StatusCode())
	}
	return &Client{http: c, self: me.ID, log: log}, nil
}

func (c *Client) Self() string { return c.self }

func (c *Client) Send(ctx context.Context, channelID, content string) (*chat.Message, error) {
	var out wireMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"content": content}).
		SetResult(&out).
		Post(fmt.Sprintf("/channels/%s/messages", channelID))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("send message: status %d", resp.StatusCode())
	}
	m := toMessage(out)
	return &m, nil
}

func (c *Client) Edit(ctx context.Context, channelID, messageID, content string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"content": content}).
		Patch(fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("edit message: status %d", resp.StatusCode())
	}
	return nil
}

func (c *Client) Pin(ctx context.Context, channelID, messageID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Put(fmt.Sprintf("/channels/%s/pins/%s", channelID, messageID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("pin message: status %d", resp.StatusCode())
	}
	return nil
}

func (c *Client) ListPinned(ctx context.Context, channelID string) ([]chat.Message, error) {
	var out []wireMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/channels/%s/pins", channelID))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list pins: status %d", resp.StatusCode())
	}
	msgs := make([]chat.Message, 0, len(out))
	for _, w := range out {
		msgs = append(msgs, toMessage(w))
	}
	return msgs, nil
}

// Purge walks recent channel history and deletes unpinned messages matching
// the predicate. One page of 100 per pass keeps within rate limits; the
// 2-minute cadence catches the remainder.
func (c *Client) Purge(ctx context.Context, channelID string, shouldDelete func(chat.Message) bool) (int, error) {
	var page []wireMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", "100").
		SetResult(&page).
		Get(fmt.Sprintf("/channels/%s/messages", channelID))
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, fmt.Errorf("list messages: status %d", resp.StatusCode())
	}

	deleted := 0
	for _, w := range page {
		m := toMessage(w)
		if m.Pinned || !shouldDelete(m) {
			continue
		}
		resp, err := c.http.R().
			SetContext(ctx).
			Delete(fmt.Sprintf("/channels/%s/messages/%s", channelID, m.ID))
		if err != nil {
			return deleted, err
		}
		if resp.IsError() {
			c.log.Warn().Str("message", m.ID).Int("status", resp.StatusCode()).Msg("delete failed, skipping")
			continue
		}
		deleted++
	}
	return deleted, nil
}

func toMessage(w wireMessage) chat.Message {
	created, err := time.Parse(time.RFC3339, w.Timestamp)
	if err != nil {
		created = time.Time{}
	}
	return chat.Message{
		ID:        w.ID,
		ChannelID: w.ChannelID,
		Author:    w.Author.ID,
		Content:   w.Content,
		Pinned:    w.Pinned,
		CreatedAt: created,
	}
}
