// Package reminder fires the weekday-keyed daily message and keeps the
// message-of-the-day cache converged, at most once per calendar day.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/guildboard/guildboard/internal/chat"
	"github.com/guildboard/guildboard/internal/state"
)

// DefaultSchedule maps weekdays to their reminder text. Days without an
// entry clear the message of the day.
func DefaultSchedule() map[time.Weekday]string {
	return map[time.Weekday]string{
		time.Friday:   "Pick DS quest AT today",
		time.Saturday: "Fish AT today\nDGS AT today\nLib AT today",
		time.Sunday:   "Anth AT today",
	}
}

// Reminder converges the motd at the configured fire time.
type Reminder struct {
	store    *state.Store
	chat     chat.Messenger
	channel  string
	loc      *time.Location
	hour     int
	minute   int
	schedule map[time.Weekday]string
	log      zerolog.Logger
	now      func() time.Time
}

// New constructs a Reminder firing at hour:minute in loc.
func New(store *state.Store, messenger chat.Messenger, channel string, loc *time.Location, hour, minute int, schedule map[time.Weekday]string, log zerolog.Logger, now func() time.Time) *Reminder {
	if now == nil {
		now = time.Now
	}
	if schedule == nil {
		schedule = DefaultSchedule()
	}
	return &Reminder{store: store, chat: messenger, channel: channel, loc: loc, hour: hour, minute: minute, schedule: schedule, log: log, now: now}
}

// Tick runs once per scheduler cadence. On the first tick at or after the
// fire time each day it sets the motd for the current weekday (clearing it
// on unscheduled days); the announcement itself is only sent when the tick
// lands inside the fire minute, so a late start or restart converges the
// motd without re-announcing. Returns whether state changed (the caller
// then reconciles the dashboard).
func (r *Reminder) Tick(ctx context.Context) bool {
	local := r.now().In(r.loc)
	today := local.Format("2006-01-02")
	fireAt := time.Date(local.Year(), local.Month(), local.Day(), r.hour, r.minute, 0, 0, r.loc)
	if local.Before(fireAt) {
		return false
	}
	if r.store.Load().LastMOTDDate == today {
		return false
	}

	msg := r.schedule[local.Weekday()]
	onTime := local.Hour() == r.hour && local.Minute() == r.minute

	_, err := r.store.Update(func(doc *state.Document) error {
		doc.MOTD = msg
		doc.LastMOTDDate = today
		return nil
	})
	if err != nil {
		r.log.Error().Err(err).Msg("motd persist failed")
		return false
	}

	if onTime && msg != "" {
		if _, err := r.chat.Send(ctx, r.channel, fmt.Sprintf("📢 **DAILY REMINDER**\n%s", msg)); err != nil {
			r.log.Error().Err(err).Msg("daily reminder send failed")
		}
	}
	return true
}
