// Package timers owns timer state transitions: the per-second expiry sweep,
// the start-confirmation handshake and the category retention windows.
package timers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/guildboard/guildboard/internal/chat"
	"github.com/guildboard/guildboard/internal/model"
	"github.com/guildboard/guildboard/internal/state"
)

// Retention windows past expiry, by category. Standing timers are kept until
// an explicit reset or delete.
const (
	fastRetention = time.Hour
	slowRetention = 24 * time.Hour
)

// confirmTTL bounds the start-confirmation handshake.
const confirmTTL = 30 * time.Second

// StartDecision is the outcome of a start request.
type StartDecision struct {
	// AlreadyRunning is set when the timer exists, is Running and not yet
	// due; Remaining then holds the time left.
	AlreadyRunning bool
	Remaining      time.Duration
	// Token identifies the pending start awaiting confirmation.
	Token string
}

type pendingStart struct {
	key      string
	display  string
	duration time.Duration
	hidden   bool
	category model.TimerCategory
	expires  time.Time
}

// Engine drives the timer lifecycle. It is the only mutator of timer status.
type Engine struct {
	store        *state.Store
	chat         chat.Messenger
	boardChannel string
	opsChannel   string
	roster       []string
	log          zerolog.Logger
	now          func() time.Time

	mu      sync.Mutex
	pending map[string]pendingStart
}

// New constructs an Engine. now is injectable for tests; pass time.Now in
// production.
func New(store *state.Store, messenger chat.Messenger, boardChannel, opsChannel string, roster []string, log zerolog.Logger, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:        store,
		chat:         messenger,
		boardChannel: boardChannel,
		opsChannel:   opsChannel,
		roster:       roster,
		log:          log,
		now:          now,
		pending:      map[string]pendingStart{},
	}
}

// RequestStart begins the start handshake. If the timer is Running and not
// yet due the request is rejected with the remaining time; otherwise a
// confirmation token with a bounded lifetime is issued.
func (e *Engine) RequestStart(key string, d time.Duration, display string, hidden bool, category model.TimerCategory) StartDecision {
	now := e.now()
	doc := e.store.Load()
	if t, ok := doc.Timers[key]; ok && t.Running(now) {
		return StartDecision{AlreadyRunning: true, Remaining: t.End().Sub(now)}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	token := uuid.NewString()
	e.pending[token] = pendingStart{
		key:      key,
		display:  display,
		duration: d,
		hidden:   hidden,
		category: category,
		expires:  now.Add(confirmTTL),
	}
	return StartDecision{Token: token}
}

// ConfirmStart commits a pending start exactly once. The first responder
// wins; an unknown, already-consumed or expired token is a no-op error.
func (e *Engine) ConfirmStart(ctx context.Context, token string) (*model.Timer, *state.Document, error) {
	e.mu.Lock()
	p, ok := e.pending[token]
	if ok {
		delete(e.pending, token)
	}
	e.mu.Unlock()

	if !ok || e.now().After(p.expires) {
		return nil, nil, fmt.Errorf("%w: confirmation token", model.ErrNotFound)
	}
	return e.CommitStart(ctx, p.key, p.duration, p.display, p.hidden, p.category)
}

// CommitStart creates the Running timer with endTime = now + duration,
// persists it and writes the audit side effect. Callers trigger a dashboard
// reconciliation with the returned document snapshot.
func (e *Engine) CommitStart(ctx context.Context, key string, d time.Duration, display string, hidden bool, category model.TimerCategory) (*model.Timer, *state.Document, error) {
	if d <= 0 {
		return nil, nil, fmt.Errorf("%w: non-positive duration", model.ErrValidation)
	}
	if display == "" {
		display = key
	}
	end := e.now().Add(d)
	t := &model.Timer{
		EndTime:  end.Unix(),
		Status:   model.StatusRunning,
		Display:  display,
		Hidden:   hidden,
		Channel:  e.boardChannel,
		Category: category,
	}
	doc, err := e.store.Update(func(doc *state.Document) error {
		doc.Timers[key] = t
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	e.opsLog(ctx, fmt.Sprintf("Timer started: **%s** ends %s", display, chat.Absolute(end)))
	return t, doc, nil
}

// Sweep evaluates every stored timer once. It returns the committed document
// and whether anything changed; the caller batches one reconciliation per
// dirty sweep, never one per timer.
func (e *Engine) Sweep(ctx context.Context) (*state.Document, bool) {
	now := e.now()
	if !e.anythingDue(now) {
		return nil, false
	}

	dirty := false
	doc, err := e.store.Update(func(doc *state.Document) error {
		for key, t := range doc.Timers {
			switch {
			case t.Status == model.StatusRunning && now.Unix() >= t.EndTime:
				e.fire(ctx, doc, key, t)
				dirty = true
			case t.Status == model.StatusExpired && retentionElapsed(t, now):
				delete(doc.Timers, key)
				dirty = true
			}
		}
		return nil
	})
	if err != nil {
		e.log.Error().Err(err).Msg("sweep persist failed")
		return nil, false
	}
	return doc, dirty
}

// anythingDue is a read-only pre-check so the 1-second cadence does not
// rewrite the document when no timer needs a transition.
func (e *Engine) anythingDue(now time.Time) bool {
	doc := e.store.Load()
	for _, t := range doc.Timers {
		if t.Status == model.StatusRunning && now.Unix() >= t.EndTime {
			return true
		}
		if t.Status == model.StatusExpired && retentionElapsed(t, now) {
			return true
		}
	}
	return false
}

// fire emits the completion notification and applies the transition. Hidden
// timers are transient alerts: they are deleted in the same sweep and never
// reach Expired.
func (e *Engine) fire(ctx context.Context, doc *state.Document, key string, t *model.Timer) {
	ping := chat.PingList(e.roster, doc.OnVacation)
	channel := t.Channel
	if channel == "" {
		channel = e.boardChannel
	}

	if t.Hidden {
		if _, err := e.chat.Send(ctx, channel, fmt.Sprintf("⚠️ **ALERT:** %s is coming up! %s", t.Display, ping)); err != nil {
			e.log.Error().Err(err).Str("timer", key).Msg("alert send failed")
		}
		delete(doc.Timers, key)
		return
	}

	msg, err := e.chat.Send(ctx, channel, fmt.Sprintf("⏰ **%s IS UP!** %s", t.Display, ping))
	if err != nil {
		e.log.Error().Err(err).Str("timer", key).Msg("completion send failed")
	}
	e.opsLog(ctx, fmt.Sprintf("Timer expired: **%s**", t.Display))
	t.Status = model.StatusExpired
	if msg != nil {
		t.NoticeID = msg.ID
	}
}

func retentionElapsed(t *model.Timer, now time.Time) bool {
	switch t.Category {
	case model.CategoryFast:
		return now.Unix() >= t.EndTime+int64(fastRetention.Seconds())
	case model.CategorySlow:
		return now.Unix() >= t.EndTime+int64(slowRetention.Seconds())
	default:
		return false
	}
}

// opsLog writes to the operations channel, best effort.
func (e *Engine) opsLog(ctx context.Context, content string) {
	if e.opsChannel == "" {
		return
	}
	if _, err := e.chat.Send(ctx, e.opsChannel, content); err != nil {
		e.log.Error().Err(err).Msg("ops log send failed")
	}
}
