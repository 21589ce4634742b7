// Package dashboard renders the two owned summary panels and reconciles
// them against the pinned messages in the board channel.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/guildboard/guildboard/internal/chat"
	"github.com/guildboard/guildboard/internal/model"
	"github.com/guildboard/guildboard/internal/state"
)

// Panel header markers. Reconciliation finds its own messages by these
// prefixes rather than stored IDs, so it self-heals after restarts or
// manual message loss at the cost of an O(pins) scan.
const (
	HeaderLedger = "**🏦 GUILD BANK**"
	HeaderBoard  = "**📊 STATUS BOARD**"
)

// Summarizer is the slice of the ledger aggregator the reconciler needs.
type Summarizer interface {
	Summarize(ctx context.Context, now time.Time) (*model.FinancialSummary, error)
}

// Reconciler recomputes panel text from state plus aggregates and performs
// at most one create-or-edit per panel per pass.
type Reconciler struct {
	store     *state.Store
	agg       Summarizer
	chat      chat.Messenger
	channel   string
	startedAt time.Time
	log       zerolog.Logger
	now       func() time.Time
}

// New constructs a Reconciler. startedAt is surfaced on the ledger panel as
// the last restart marker.
func New(store *state.Store, agg Summarizer, messenger chat.Messenger, channel string, startedAt time.Time, log zerolog.Logger, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{store: store, agg: agg, chat: messenger, channel: channel, startedAt: startedAt, log: log, now: now}
}

// Reconcile renders from a fresh state snapshot.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	return r.ReconcileWith(ctx, r.store.Load())
}

// ReconcileWith renders from the given snapshot, taken by the caller after
// its mutations committed. A ledger source failure degrades to a ledger
// panel without the financial section; it never fails the pass.
func (r *Reconciler) ReconcileWith(ctx context.Context, doc *state.Document) error {
	now := r.now()

	var sum *model.FinancialSummary
	if r.agg != nil {
		var err error
		sum, err = r.agg.Summarize(ctx, now)
		if err != nil {
			r.log.Warn().Err(err).Msg("ledger summary unavailable, omitting financial section")
			sum = nil
		}
	}

	pins, err := r.chat.ListPinned(ctx, r.channel)
	if err != nil {
		return fmt.Errorf("list pinned: %w", err)
	}

	if err := r.reconcilePanel(ctx, pins, HeaderLedger, RenderLedgerPanel(sum, r.startedAt, now)); err != nil {
		r.log.Error().Err(err).Msg("ledger panel reconcile failed")
	}
	if err := r.reconcilePanel(ctx, pins, HeaderBoard, RenderBoardPanel(doc, now)); err != nil {
		r.log.Error().Err(err).Msg("board panel reconcile failed")
	}
	return nil
}

// reconcilePanel edits the existing owned pin whose content starts with the
// header marker, or sends and pins a new message.
func (r *Reconciler) reconcilePanel(ctx context.Context, pins []chat.Message, header, content string) error {
	for _, m := range pins {
		if m.Author == r.chat.Self() && strings.HasPrefix(m.Content, header) {
			return r.chat.Edit(ctx, r.channel, m.ID, content)
		}
	}
	msg, err := r.chat.Send(ctx, r.channel, content)
	if err != nil {
		return err
	}
	return r.chat.Pin(ctx, r.channel, msg.ID)
}

// RenderLedgerPanel renders the bank panel. A nil summary (source down)
// keeps the header and restart line so reconciliation still owns a message.
func RenderLedgerPanel(sum *model.FinancialSummary, startedAt, now time.Time) string {
	lines := []string{
		HeaderLedger,
		fmt.Sprintf("Last Restart: %s", chat.Absolute(startedAt)),
	}
	if sum != nil {
		lines = append(lines,
			fmt.Sprintf("Current Balance: **%s**", sum.Balance),
			fmt.Sprintf("Top Contributions: **%s**", sum.TopCategories),
			fmt.Sprintf("Last Refresh: %s", chat.Absolute(now)),
			"---",
			fmt.Sprintf("**Today:** In %d | Out %d | Net %d", sum.Today.In, sum.Today.Out, sum.Today.Net),
			fmt.Sprintf("**Week:** In %d | Out %d | Net %d", sum.Week.In, sum.Week.Out, sum.Week.Net),
			fmt.Sprintf("**Month:** In %d | Out %d | Net %d", sum.Month.In, sum.Month.Out, sum.Month.Net),
			"---",
		)
	}
	return strings.Join(lines, "\n")
}

// RenderBoardPanel renders the timer/status panel: the message of the day,
// then timers due within 24 hours, timers due later and expired timers,
// each group ascending by due time. Hidden timers never appear.
func RenderBoardPanel(doc *state.Document, now time.Time) string {
	lines := []string{HeaderBoard}
	if doc.MOTD != "" {
		lines = append(lines, fmt.Sprintf("\n📢 **TODAY:**\n%s\n", doc.MOTD))
	}

	type row struct {
		key string
		t   *model.Timer
	}
	rows := make([]row, 0, len(doc.Timers))
	for key, t := range doc.Timers {
		rows = append(rows, row{key, t})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].t.EndTime != rows[j].t.EndTime {
			return rows[i].t.EndTime < rows[j].t.EndTime
		}
		return rows[i].key < rows[j].key
	})

	var today, later, done []string
	for _, rw := range rows {
		t := rw.t
		if t.Hidden {
			continue
		}
		switch t.Status {
		case model.StatusRunning:
			entry := fmt.Sprintf("• **%s**: %s", t.Display, chat.Relative(t.End()))
			if t.End().Sub(now) > 24*time.Hour {
				later = append(later, entry)
			} else {
				today = append(today, entry)
			}
		case model.StatusExpired:
			done = append(done, fmt.Sprintf("• **%s** (%s)", t.Display, chat.Relative(t.End())))
		}
	}

	lines = append(lines, "**Timers (Today)**")
	lines = append(lines, orNone(today)...)
	lines = append(lines, "\n**Timers (1d+)**")
	lines = append(lines, orNone(later)...)
	lines = append(lines, "\n**Timers (DONE)**")
	lines = append(lines, orNone(done)...)
	return strings.Join(lines, "\n")
}

func orNone(group []string) []string {
	if len(group) == 0 {
		return []string{"_None_"}
	}
	return group
}
