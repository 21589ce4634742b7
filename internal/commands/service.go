// Package commands implements the operations the external command layer
// invokes: starting and confirming timers, maintaining the command
// definition table, recording transactions and the small operator toggles.
// It keeps the definition table consistent and triggers a dashboard pass
// after every state change.
package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/guildboard/guildboard/internal/chat"
	"github.com/guildboard/guildboard/internal/ledger"
	"github.com/guildboard/guildboard/internal/model"
	"github.com/guildboard/guildboard/internal/state"
	"github.com/guildboard/guildboard/internal/timers"
)

// Reconciler is the slice of the dashboard the command layer triggers.
type Reconciler interface {
	ReconcileWith(ctx context.Context, doc *state.Document) error
}

// Summarizer answers the ledger-summary query.
type Summarizer interface {
	Summarize(ctx context.Context, now time.Time) (*model.FinancialSummary, error)
}

// Service wires the command operations over the core components.
type Service struct {
	store        *state.Store
	engine       *timers.Engine
	chat         chat.Messenger
	src          ledger.Source
	agg          Summarizer
	recon        Reconciler
	ledgerTab    string
	boardChannel string
	loc          *time.Location
	players      map[string]string // user ID -> ledger player name
	log          zerolog.Logger
	now          func() time.Time
}

// New constructs the Service. players maps platform user IDs to the names
// written into ledger rows; unmapped users record under their raw ID.
func New(store *state.Store, engine *timers.Engine, messenger chat.Messenger, src ledger.Source, agg Summarizer, recon Reconciler, ledgerTab, boardChannel string, loc *time.Location, players map[string]string, log zerolog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:        store,
		engine:       engine,
		chat:         messenger,
		src:          src,
		agg:          agg,
		recon:        recon,
		ledgerTab:    ledgerTab,
		boardChannel: boardChannel,
		loc:          loc,
		players:      players,
		log:          log,
		now:          now,
	}
}

// StartPreset begins the start handshake for a standard or custom preset.
// The effective duration is the standard override, the standard default or
// the custom definition, in that order of lookup.
func (s *Service) StartPreset(name string) (timers.StartDecision, error) {
	name = strings.ToLower(name)
	doc := s.store.Load()

	durStr := ""
	switch {
	case IsStandard(name):
		durStr = StandardDefaults[name]
		if o, ok := doc.StandardOverrides[name]; ok {
			durStr = o
		}
	default:
		c, ok := doc.CustomCommands[name]
		if !ok {
			return timers.StartDecision{}, fmt.Errorf("%w: preset %q", model.ErrNotFound, name)
		}
		durStr = c
	}

	d, err := timers.ParseDuration(durStr)
	if err != nil {
		return timers.StartDecision{}, err
	}
	return s.engine.RequestStart(name, d, capitalize(name), false, model.CategoryStanding), nil
}

// Confirm commits a pending start and refreshes the dashboard.
func (s *Service) Confirm(ctx context.Context, token string) (*model.Timer, error) {
	t, doc, err := s.engine.ConfirmStart(ctx, token)
	if err != nil {
		return nil, err
	}
	s.reconcile(ctx, doc)
	return t, nil
}

// StartInstanced starts the next free instance of a family, no
// confirmation round-trip. Returns the allocated key.
func (s *Service) StartInstanced(ctx context.Context, base, durStr string) (string, error) {
	base = strings.ToLower(base)
	if !IsInstanced(base) {
		return "", fmt.Errorf("%w: instanced family %q", model.ErrNotFound, base)
	}
	d, err := timers.ParseDuration(durStr)
	if err != nil {
		return "", err
	}

	doc := s.store.Load()
	n := 1
	for {
		if _, taken := doc.Timers[fmt.Sprintf("%s%d", base, n)]; !taken {
			break
		}
		n++
	}
	key := fmt.Sprintf("%s%d", base, n)

	_, committed, err := s.engine.CommitStart(ctx, key, d, fmt.Sprintf("%s #%d", capitalize(base), n), false, model.CategoryFast)
	if err != nil {
		return "", err
	}
	s.reconcile(ctx, committed)
	return key, nil
}

// StartOneOff starts a caller-named throwaway timer (24 h retention).
func (s *Service) StartOneOff(ctx context.Context, name, durStr string) error {
	d, err := timers.ParseDuration(durStr)
	if err != nil {
		return err
	}
	_, doc, err := s.engine.CommitStart(ctx, strings.ToLower(name), d, name, false, model.CategorySlow)
	if err != nil {
		return err
	}
	s.reconcile(ctx, doc)
	return nil
}

// ScheduleEvent creates the visible event timer plus hidden advance alerts
// at 3h, 1h and 10m before it, skipping any already in the past, and
// announces the event.
func (s *Service) ScheduleEvent(ctx context.Context, location string, at time.Time) error {
	now := s.now()
	if !at.After(now) {
		return fmt.Errorf("%w: event time is in the past", model.ErrValidation)
	}

	slug := eventSlug(location)
	_, doc, err := s.engine.CommitStart(ctx, fmt.Sprintf("event-%s", slug), at.Sub(now), fmt.Sprintf("Event %s", location), false, model.CategorySlow)
	if err != nil {
		return err
	}

	alerts := []struct {
		label string
		lead  time.Duration
	}{
		{"3h", 3 * time.Hour},
		{"1h", time.Hour},
		{"10m", 10 * time.Minute},
	}
	for _, a := range alerts {
		fireAt := at.Add(-a.lead)
		if !fireAt.After(now) {
			continue
		}
		_, committed, err := s.engine.CommitStart(ctx,
			fmt.Sprintf("event-%s-%s", slug, a.label),
			fireAt.Sub(now),
			fmt.Sprintf("Event %s in %s", location, a.label),
			true, model.CategorySlow)
		if err != nil {
			return err
		}
		doc = committed
	}

	if _, err := s.chat.Send(ctx, s.boardChannel, fmt.Sprintf("📅 **Event scheduled** — %s at %s", location, chat.Absolute(at))); err != nil {
		s.log.Error().Err(err).Msg("event announcement failed")
	}
	s.reconcile(ctx, doc)
	return nil
}

// CreateCustom defines a new custom preset. Standard names cannot be
// shadowed; overriding them goes through EditCommand.
func (s *Service) CreateCustom(name, durStr string) error {
	name = strings.ToLower(name)
	if IsStandard(name) || IsInstanced(name) {
		return fmt.Errorf("%w: %q is a built-in command", model.ErrValidation, name)
	}
	if _, err := timers.ParseDuration(durStr); err != nil {
		return err
	}
	_, err := s.store.Update(func(doc *state.Document) error {
		doc.CustomCommands[name] = durStr
		return nil
	})
	return err
}

// EditCommand changes a preset duration: standard names get an override,
// custom names are rewritten in place.
func (s *Service) EditCommand(name, durStr string) error {
	name = strings.ToLower(name)
	if _, err := timers.ParseDuration(durStr); err != nil {
		return err
	}
	_, err := s.store.Update(func(doc *state.Document) error {
		if IsStandard(name) {
			doc.StandardOverrides[name] = durStr
			return nil
		}
		if _, ok := doc.CustomCommands[name]; ok {
			doc.CustomCommands[name] = durStr
			return nil
		}
		return fmt.Errorf("%w: command %q", model.ErrNotFound, name)
	})
	return err
}

// DeleteCommand removes a custom definition and/or the timer under the same
// key.
func (s *Service) DeleteCommand(ctx context.Context, name string) error {
	name = strings.ToLower(name)
	deleted := false
	doc, err := s.store.Update(func(doc *state.Document) error {
		if _, ok := doc.CustomCommands[name]; ok {
			delete(doc.CustomCommands, name)
			deleted = true
		}
		if _, ok := doc.Timers[name]; ok {
			delete(doc.Timers, name)
			deleted = true
		}
		if !deleted {
			return fmt.Errorf("%w: %q", model.ErrNotFound, name)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.reconcile(ctx, doc)
	return nil
}

// ResetTimer removes a timer, running or expired, leaving its definition
// intact.
func (s *Service) ResetTimer(ctx context.Context, name string) error {
	name = strings.ToLower(name)
	doc, err := s.store.Update(func(doc *state.Document) error {
		if _, ok := doc.Timers[name]; !ok {
			return fmt.Errorf("%w: timer %q", model.ErrNotFound, name)
		}
		delete(doc.Timers, name)
		return nil
	})
	if err != nil {
		return err
	}
	s.reconcile(ctx, doc)
	return nil
}

// SetCursor is the explicit operator override of the ledger-poll cursor,
// the only path that may rewind it. Returns the previous value.
func (s *Service) SetCursor(row int) (int, error) {
	if row < 1 {
		return 0, fmt.Errorf("%w: cursor must be >= 1", model.ErrValidation)
	}
	old := 0
	_, err := s.store.Update(func(doc *state.Document) error {
		old = doc.LastSourceRow
		doc.LastSourceRow = row
		return nil
	})
	return old, err
}

// ToggleVacation flips the user's vacation flag and reports the new state.
func (s *Service) ToggleVacation(userID string) (bool, error) {
	on := false
	_, err := s.store.Update(func(doc *state.Document) error {
		for i, v := range doc.Vacation {
			if v == userID {
				doc.Vacation = append(doc.Vacation[:i], doc.Vacation[i+1:]...)
				return nil
			}
		}
		doc.Vacation = append(doc.Vacation, userID)
		on = true
		return nil
	})
	return on, err
}

// Definitions returns the effective command-definition table.
func (s *Service) Definitions() Definitions {
	doc := s.store.Load()
	std := make(map[string]string, len(StandardDefaults))
	for name, d := range StandardDefaults {
		std[name] = d
		if o, ok := doc.StandardOverrides[name]; ok {
			std[name] = o
		}
	}
	custom := make(map[string]string, len(doc.CustomCommands))
	for name, d := range doc.CustomCommands {
		custom[name] = d
	}
	return Definitions{Standard: std, Custom: custom, Instanced: append([]string(nil), InstancedBases...)}
}

// RecordTransaction appends one signed ledger row (positive income,
// negative expense), announces it and refreshes the dashboard. The
// append is the authoritative effect; the announcement is best-effort.
func (s *Service) RecordTransaction(ctx context.Context, userID, category string, amount int64, description string) error {
	if amount == 0 {
		return fmt.Errorf("%w: zero amount", model.ErrValidation)
	}
	player := userID
	if mapped, ok := s.players[userID]; ok {
		player = mapped
	}
	ts := s.now().In(s.loc).Format("2006-01-02 15:04:05")
	row := []string{ts, player, category, strconv.FormatInt(amount, 10), description}
	if err := s.src.AppendRow(ctx, s.ledgerTab, row); err != nil {
		return err
	}

	if _, err := s.chat.Send(ctx, s.boardChannel, fmt.Sprintf("💰 **%s** — %s: %dg %s", category, player, amount, description)); err != nil {
		s.log.Error().Err(err).Msg("transaction announcement failed")
	}
	s.reconcile(ctx, s.store.Load())
	return nil
}

// Summary answers the on-demand ledger-summary query.
func (s *Service) Summary(ctx context.Context) (*model.FinancialSummary, error) {
	return s.agg.Summarize(ctx, s.now())
}

func (s *Service) reconcile(ctx context.Context, doc *state.Document) {
	if s.recon == nil {
		return
	}
	if err := s.recon.ReconcileWith(ctx, doc); err != nil {
		s.log.Error().Err(err).Msg("dashboard reconcile failed")
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func eventSlug(location string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(location), " ", "-"))
}
