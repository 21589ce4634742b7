package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildboard/guildboard/internal/chat"
	"github.com/guildboard/guildboard/internal/model"
	"github.com/guildboard/guildboard/internal/state"
)

type recordingMessenger struct {
	nextID int
	sent   []chat.Message
}

func (f *recordingMessenger) Send(_ context.Context, channelID, content string) (*chat.Message, error) {
	f.nextID++
	m := chat.Message{ID: fmt.Sprintf("m%d", f.nextID), ChannelID: channelID, Author: "bot", Content: content}
	f.sent = append(f.sent, m)
	return &m, nil
}

func (f *recordingMessenger) Edit(context.Context, string, string, string) error { return nil }
func (f *recordingMessenger) Pin(context.Context, string, string) error          { return nil }
func (f *recordingMessenger) ListPinned(context.Context, string) ([]chat.Message, error) {
	return nil, nil
}
func (f *recordingMessenger) Purge(context.Context, string, func(chat.Message) bool) (int, error) {
	return 0, nil
}
func (f *recordingMessenger) Self() string { return "bot" }

func newPollFixture(t *testing.T, rows [][]string) (*Poller, *state.Store, *recordingMessenger, *fakeSource) {
	t.Helper()
	st := state.NewStore(t.TempDir(), zerolog.Nop())
	src := &fakeSource{rows: map[string][][]string{"Form": rows}}
	msgr := &recordingMessenger{}
	p := NewPoller(src, "Form", st, msgr, "board", zerolog.Nop())
	return p, st, msgr, src
}

func formRows(n int) [][]string {
	rows := [][]string{header}
	for i := 1; i <= n; i++ {
		rows = append(rows, []string{"2026-03-11 10:00", "Eff", "Larders", fmt.Sprintf("%d", i*10), ""})
	}
	return rows
}

func TestPollOnceNotifiesNewRowsAndAdvances(t *testing.T) {
	p, st, msgr, _ := newPollFixture(t, formRows(3))

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, msgr.sent, 3)
	assert.Equal(t, 4, st.Load().LastSourceRow)
}

func TestPollOnceNoNewRowsFiresNothing(t *testing.T) {
	p, st, msgr, _ := newPollFixture(t, formRows(3))
	_, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	msgr.sent = nil

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, msgr.sent)
	assert.Equal(t, 4, st.Load().LastSourceRow)
}

func TestPollOnceResumesFromCursor(t *testing.T) {
	p, st, msgr, src := newPollFixture(t, formRows(2))
	_, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	msgr.sent = nil

	src.rows["Form"] = formRows(5)
	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 6, st.Load().LastSourceRow)
}

func TestPollOnceSkipsEmptyRowsButAdvances(t *testing.T) {
	rows := formRows(1)
	rows = append(rows, []string{"", "", ""}, []string{"2026-03-11 11:00", "Jero", "Dungeon", "50", ""})
	p, st, msgr, _ := newPollFixture(t, rows)

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, msgr.sent, 2)
	assert.Equal(t, 4, st.Load().LastSourceRow)
}

func TestPollOnceNeverRewinds(t *testing.T) {
	p, st, _, src := newPollFixture(t, formRows(5))
	_, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 6, st.Load().LastSourceRow)

	// A shrunken read must not move the cursor backwards.
	src.rows["Form"] = formRows(2)
	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 6, st.Load().LastSourceRow)
}

func TestPollOnceSourceFailureSkipsCycle(t *testing.T) {
	p, st, _, src := newPollFixture(t, formRows(2))
	src.rowErr = map[string]error{"Form": model.ErrSourceUnavailable}

	_, err := p.PollOnce(context.Background())
	require.ErrorIs(t, err, model.ErrSourceUnavailable)
	assert.Equal(t, 1, st.Load().LastSourceRow)
}

func TestPollOncePadsShortRows(t *testing.T) {
	rows := [][]string{header, {"2026-03-11 10:00", "Eff", "Larders"}}
	p, _, msgr, _ := newPollFixture(t, rows)

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, msgr.sent, 1)
	assert.Contains(t, msgr.sent[0].Content, "Eff")
}
