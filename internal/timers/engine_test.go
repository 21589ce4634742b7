package timers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildboard/guildboard/internal/chat"
	"github.com/guildboard/guildboard/internal/model"
	"github.com/guildboard/guildboard/internal/state"
)

// --- Fakes ---

type fakeMessenger struct {
	mu     sync.Mutex
	nextID int
	sent   []chat.Message
}

func (f *fakeMessenger) Send(_ context.Context, channelID, content string) (*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m := chat.Message{ID: fmt.Sprintf("m%d", f.nextID), ChannelID: channelID, Author: "bot", Content: content}
	f.sent = append(f.sent, m)
	return &m, nil
}

func (f *fakeMessenger) Edit(context.Context, string, string, string) error { return nil }
func (f *fakeMessenger) Pin(context.Context, string, string) error          { return nil }
func (f *fakeMessenger) ListPinned(context.Context, string) ([]chat.Message, error) {
	return nil, nil
}
func (f *fakeMessenger) Purge(context.Context, string, func(chat.Message) bool) (int, error) {
	return 0, nil
}
func (f *fakeMessenger) Self() string { return "bot" }

func (f *fakeMessenger) sentTo(channel string) []chat.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chat.Message
	for _, m := range f.sent {
		if m.ChannelID == channel {
			out = append(out, m)
		}
	}
	return out
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestEngine(t *testing.T) (*Engine, *state.Store, *fakeMessenger, *clock) {
	t.Helper()
	st := state.NewStore(t.TempDir(), zerolog.Nop())
	msgr := &fakeMessenger{}
	clk := &clock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	eng := New(st, msgr, "board", "ops", []string{"u1", "u2"}, zerolog.Nop(), clk.now)
	return eng, st, msgr, clk
}

// --- Start handshake ---

func TestCommitStartCreatesRunningTimer(t *testing.T) {
	eng, st, _, clk := newTestEngine(t)

	d, err := ParseDuration("8h45m")
	require.NoError(t, err)
	timer, doc, err := eng.CommitStart(context.Background(), "cows", d, "Cows", false, model.CategoryStanding)
	require.NoError(t, err)

	assert.Equal(t, clk.t.Add(8*time.Hour+45*time.Minute).Unix(), timer.EndTime)
	assert.Equal(t, model.StatusRunning, timer.Status)
	require.Contains(t, doc.Timers, "cows")
	require.Contains(t, st.Load().Timers, "cows")
}

func TestRequestStartRejectsRunningTimer(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	_, _, err := eng.CommitStart(context.Background(), "cows", 2*time.Hour, "Cows", false, model.CategoryStanding)
	require.NoError(t, err)

	dec := eng.RequestStart("cows", 2*time.Hour, "Cows", false, model.CategoryStanding)
	assert.True(t, dec.AlreadyRunning)
	assert.Equal(t, 2*time.Hour, dec.Remaining)
	assert.Empty(t, dec.Token)
}

func TestConfirmStartFirstResponderWins(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	dec := eng.RequestStart("rice", 4*time.Hour, "Rice", false, model.CategoryStanding)
	require.NotEmpty(t, dec.Token)

	_, _, err := eng.ConfirmStart(context.Background(), dec.Token)
	require.NoError(t, err)

	// Late responder is a no-op.
	_, _, err = eng.ConfirmStart(context.Background(), dec.Token)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestConfirmStartExpiredToken(t *testing.T) {
	eng, _, _, clk := newTestEngine(t)
	dec := eng.RequestStart("rice", 4*time.Hour, "Rice", false, model.CategoryStanding)
	clk.advance(time.Minute)
	_, _, err := eng.ConfirmStart(context.Background(), dec.Token)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestRequestStartAllowsRestartOfDueTimer(t *testing.T) {
	eng, _, _, clk := newTestEngine(t)
	_, _, err := eng.CommitStart(context.Background(), "pigs", time.Hour, "Pigs", false, model.CategoryStanding)
	require.NoError(t, err)

	clk.advance(time.Hour)
	dec := eng.RequestStart("pigs", time.Hour, "Pigs", false, model.CategoryStanding)
	assert.False(t, dec.AlreadyRunning)
	assert.NotEmpty(t, dec.Token)
}

// --- Sweep transitions ---

func TestSweepExpiresDueTimer(t *testing.T) {
	eng, st, msgr, clk := newTestEngine(t)
	_, _, err := eng.CommitStart(context.Background(), "cows", time.Hour, "Cows", false, model.CategoryStanding)
	require.NoError(t, err)

	_, dirty := eng.Sweep(context.Background())
	assert.False(t, dirty, "not due yet")

	clk.advance(time.Hour)
	doc, dirty := eng.Sweep(context.Background())
	require.True(t, dirty)

	got := doc.Timers["cows"]
	require.NotNil(t, got)
	assert.Equal(t, model.StatusExpired, got.Status)
	assert.NotEmpty(t, got.NoticeID)

	board := msgr.sentTo("board")
	require.Len(t, board, 1)
	assert.Contains(t, board[0].Content, "Cows IS UP!")
	assert.Contains(t, board[0].Content, "<@u1>")
	assert.Contains(t, board[0].Content, "<@u2>")

	// Expiry is logged to the ops channel (start log + expiry log).
	ops := msgr.sentTo("ops")
	require.Len(t, ops, 2)
	assert.Contains(t, ops[1].Content, "expired")

	// Persisted transition survives a reload.
	assert.Equal(t, model.StatusExpired, st.Load().Timers["cows"].Status)
}

func TestSweepPingExcludesVacationers(t *testing.T) {
	eng, st, msgr, clk := newTestEngine(t)
	_, err := st.Update(func(doc *state.Document) error {
		doc.Vacation = []string{"u2"}
		return nil
	})
	require.NoError(t, err)
	_, _, err = eng.CommitStart(context.Background(), "cows", time.Hour, "Cows", false, model.CategoryStanding)
	require.NoError(t, err)

	clk.advance(time.Hour)
	_, dirty := eng.Sweep(context.Background())
	require.True(t, dirty)

	board := msgr.sentTo("board")
	require.Len(t, board, 1)
	assert.Contains(t, board[0].Content, "<@u1>")
	assert.NotContains(t, board[0].Content, "<@u2>")
}

func TestSweepHiddenTimerDeletedOnFire(t *testing.T) {
	eng, st, msgr, clk := newTestEngine(t)
	_, _, err := eng.CommitStart(context.Background(), "event-alert-1h", 10*time.Minute, "Event in 1h", true, model.CategorySlow)
	require.NoError(t, err)

	clk.advance(10 * time.Minute)
	doc, dirty := eng.Sweep(context.Background())
	require.True(t, dirty)

	// Exactly one alert message, no Expired state observed anywhere.
	board := msgr.sentTo("board")
	require.Len(t, board, 1)
	assert.Contains(t, board[0].Content, "ALERT")
	assert.NotContains(t, doc.Timers, "event-alert-1h")
	assert.NotContains(t, st.Load().Timers, "event-alert-1h")

	// Hidden expiries are not logged to ops (only the start was).
	assert.Len(t, msgr.sentTo("ops"), 1)
}

func TestSweepRetentionWindows(t *testing.T) {
	cases := []struct {
		name      string
		category  model.TimerCategory
		retention time.Duration
	}{
		{"fast family one hour", model.CategoryFast, time.Hour},
		{"slow family one day", model.CategorySlow, 24 * time.Hour},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			eng, _, _, clk := newTestEngine(t)
			_, _, err := eng.CommitStart(context.Background(), "k", time.Minute, "K", false, c.category)
			require.NoError(t, err)

			clk.advance(time.Minute)
			doc, dirty := eng.Sweep(context.Background())
			require.True(t, dirty)
			require.Equal(t, model.StatusExpired, doc.Timers["k"].Status)

			// One second before the boundary: still retained.
			clk.advance(c.retention - time.Second)
			doc, dirty = eng.Sweep(context.Background())
			assert.False(t, dirty)

			// First sweep at or past the boundary deletes it.
			clk.advance(time.Second)
			doc, dirty = eng.Sweep(context.Background())
			require.True(t, dirty)
			assert.NotContains(t, doc.Timers, "k")
		})
	}
}

func TestSweepStandingTimersRetainedIndefinitely(t *testing.T) {
	eng, st, _, clk := newTestEngine(t)
	_, _, err := eng.CommitStart(context.Background(), "cows", time.Minute, "Cows", false, model.CategoryStanding)
	require.NoError(t, err)

	clk.advance(time.Minute)
	_, dirty := eng.Sweep(context.Background())
	require.True(t, dirty)

	clk.advance(30 * 24 * time.Hour)
	_, dirty = eng.Sweep(context.Background())
	assert.False(t, dirty)
	assert.Contains(t, st.Load().Timers, "cows")
}

func TestSweepNeverRevivesExpiredTimer(t *testing.T) {
	eng, st, _, clk := newTestEngine(t)
	_, _, err := eng.CommitStart(context.Background(), "cows", time.Minute, "Cows", false, model.CategoryStanding)
	require.NoError(t, err)

	clk.advance(time.Minute)
	eng.Sweep(context.Background())
	for i := 0; i < 5; i++ {
		clk.advance(time.Hour)
		eng.Sweep(context.Background())
		assert.Equal(t, model.StatusExpired, st.Load().Timers["cows"].Status)
	}
}

func TestSweepBatchesMultipleTransitions(t *testing.T) {
	eng, _, msgr, clk := newTestEngine(t)
	for _, key := range []string{"a", "b", "c"} {
		_, _, err := eng.CommitStart(context.Background(), key, time.Minute, strings.ToUpper(key), false, model.CategoryStanding)
		require.NoError(t, err)
	}

	clk.advance(time.Minute)
	doc, dirty := eng.Sweep(context.Background())
	require.True(t, dirty)

	// All three flipped in one pass; three completion sends.
	for _, key := range []string{"a", "b", "c"} {
		assert.Equal(t, model.StatusExpired, doc.Timers[key].Status)
	}
	assert.Len(t, msgr.sentTo("board"), 3)
}
