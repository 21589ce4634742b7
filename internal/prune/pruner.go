// Package prune deletes stale unpinned messages from the board channel on a
// floating daily cutoff.
package prune

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/guildboard/guildboard/internal/chat"
)

// Pruner sweeps the board channel.
type Pruner struct {
	chat    chat.Messenger
	channel string
	loc     *time.Location
	log     zerolog.Logger
	now     func() time.Time
}

// New constructs a Pruner over the given channel.
func New(messenger chat.Messenger, channel string, loc *time.Location, log zerolog.Logger, now func() time.Time) *Pruner {
	if now == nil {
		now = time.Now
	}
	return &Pruner{chat: messenger, channel: channel, loc: loc, log: log, now: now}
}

// Cutoff returns the deletion threshold for now: midnight of the current
// day once local time passes noon, midnight of the previous day before
// that. Messages older than the cutoff are eligible; the gap gives every
// message a same-day grace window.
func Cutoff(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	if local.Hour() >= 12 {
		return midnight
	}
	return midnight.AddDate(0, 0, -1)
}

// Run deletes unpinned messages created before the current cutoff.
func (p *Pruner) Run(ctx context.Context) (int, error) {
	cutoff := Cutoff(p.now(), p.loc)
	n, err := p.chat.Purge(ctx, p.channel, func(m chat.Message) bool {
		return !m.Pinned && m.CreatedAt.In(p.loc).Before(cutoff)
	})
	if err != nil {
		return n, err
	}
	if n > 0 {
		p.log.Info().Int("deleted", n).Time("cutoff", cutoff).Msg("channel pruned")
	}
	return n, nil
}
