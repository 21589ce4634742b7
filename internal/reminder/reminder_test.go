package reminder

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildboard/guildboard/internal/chat"
	"github.com/guildboard/guildboard/internal/state"
)

type sendRecorder struct {
	nextID int
	sent   []chat.Message
}

func (f *sendRecorder) Send(_ context.Context, channelID, content string) (*chat.Message, error) {
	f.nextID++
	m := chat.Message{ID: fmt.Sprintf("m%d", f.nextID), ChannelID: channelID, Author: "bot", Content: content}
	f.sent = append(f.sent, m)
	return &m, nil
}

func (f *sendRecorder) Edit(context.Context, string, string, string) error { return nil }
func (f *sendRecorder) Pin(context.Context, string, string) error          { return nil }
func (f *sendRecorder) ListPinned(context.Context, string) ([]chat.Message, error) {
	return nil, nil
}
func (f *sendRecorder) Purge(context.Context, string, func(chat.Message) bool) (int, error) {
	return 0, nil
}
func (f *sendRecorder) Self() string { return "bot" }

// 2026-03-14 is a Saturday.
func saturdayAt(h, m int) time.Time {
	return time.Date(2026, 3, 14, h, m, 0, 0, time.UTC)
}

func newFixture(t *testing.T, at time.Time) (*Reminder, *state.Store, *sendRecorder, *time.Time) {
	t.Helper()
	st := state.NewStore(t.TempDir(), zerolog.Nop())
	msgr := &sendRecorder{}
	now := at
	r := New(st, msgr, "board", time.UTC, 4, 30, nil, zerolog.Nop(), func() time.Time { return now })
	return r, st, msgr, &now
}

func TestTickBeforeFireTimeDoesNothing(t *testing.T) {
	r, st, msgr, _ := newFixture(t, saturdayAt(4, 29))
	assert.False(t, r.Tick(context.Background()))
	assert.Empty(t, msgr.sent)
	assert.Empty(t, st.Load().LastMOTDDate)
}

func TestTickOnTimeSendsAndSetsMOTD(t *testing.T) {
	r, st, msgr, _ := newFixture(t, saturdayAt(4, 30))
	require.True(t, r.Tick(context.Background()))

	doc := st.Load()
	assert.Equal(t, "Fish AT today\nDGS AT today\nLib AT today", doc.MOTD)
	assert.Equal(t, "2026-03-14", doc.LastMOTDDate)
	require.Len(t, msgr.sent, 1)
	assert.Contains(t, msgr.sent[0].Content, "DAILY REMINDER")
}

func TestTickLateStartConvergesWithoutSending(t *testing.T) {
	r, st, msgr, _ := newFixture(t, saturdayAt(9, 15))
	require.True(t, r.Tick(context.Background()))

	doc := st.Load()
	assert.Equal(t, "Fish AT today\nDGS AT today\nLib AT today", doc.MOTD)
	assert.Equal(t, "2026-03-14", doc.LastMOTDDate)
	assert.Empty(t, msgr.sent, "late convergence must not re-announce")
}

func TestTickFiresOncePerDay(t *testing.T) {
	r, _, msgr, now := newFixture(t, saturdayAt(4, 30))
	require.True(t, r.Tick(context.Background()))
	require.False(t, r.Tick(context.Background()))
	*now = saturdayAt(18, 0)
	require.False(t, r.Tick(context.Background()))
	assert.Len(t, msgr.sent, 1)
}

func TestTickUnscheduledDayClearsMOTD(t *testing.T) {
	// 2026-03-16 is a Monday with no schedule entry.
	monday := time.Date(2026, 3, 16, 5, 0, 0, 0, time.UTC)
	r, st, msgr, _ := newFixture(t, monday)

	_, err := st.Update(func(doc *state.Document) error {
		doc.MOTD = "Anth AT today"
		doc.LastMOTDDate = "2026-03-15"
		return nil
	})
	require.NoError(t, err)

	require.True(t, r.Tick(context.Background()))
	doc := st.Load()
	assert.Empty(t, doc.MOTD)
	assert.Equal(t, "2026-03-16", doc.LastMOTDDate)
	assert.Empty(t, msgr.sent)
}
