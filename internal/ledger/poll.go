package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/guildboard/guildboard/internal/chat"
	"github.com/guildboard/guildboard/internal/state"
)

// Poller watches the form tab for appended rows. The cursor is the count of
// rows already seen; it only ever advances, except through an explicit
// operator override (commands.SetCursor).
type Poller struct {
	src     Source
	formTab string
	store   *state.Store
	chat    chat.Messenger
	channel string
	log     zerolog.Logger
}

// NewPoller builds a Poller announcing new rows to the given channel.
func NewPoller(src Source, formTab string, store *state.Store, messenger chat.Messenger, channel string, log zerolog.Logger) *Poller {
	return &Poller{src: src, formTab: formTab, store: store, chat: messenger, channel: channel, log: log}
}

// PollOnce reads the tab and emits one notification per unseen row,
// advancing the cursor to the current row count. A source failure skips the
// cycle without touching the cursor. Returns the number of notifications
// fired.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	rows, err := p.src.ReadRows(ctx, p.formTab)
	if err != nil {
		return 0, err
	}
	current := len(rows)

	notified := 0
	_, err = p.store.Update(func(doc *state.Document) error {
		last := doc.LastSourceRow
		if last < 1 {
			last = 1
		}
		if current <= last {
			// Never rewind on a shrunken read.
			return nil
		}
		for i := last; i < current; i++ {
			row := rows[i]
			if allEmpty(row) {
				continue
			}
			for len(row) < 5 {
				row = append(row, "")
			}
			content := fmt.Sprintf("💸 **New ledger entry** — %s: %s (%s)\n%s", row[1], row[3], row[2], row[0])
			if _, err := p.chat.Send(ctx, p.channel, content); err != nil {
				p.log.Error().Err(err).Int("row", i).Msg("new-row notification failed")
			} else {
				notified++
			}
		}
		doc.LastSourceRow = current
		return nil
	})
	if err != nil {
		return notified, err
	}
	return notified, nil
}

func allEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
