package model

import "time"

// TimerStatus tracks where a timer sits in its lifecycle. A timer only ever
// moves Running -> Expired -> deleted; hidden timers skip Expired entirely.
type TimerStatus string

const (
	StatusRunning TimerStatus = "running"
	StatusExpired TimerStatus = "expired"
)

// TimerCategory selects the retention window applied once a timer expires.
type TimerCategory string

const (
	// CategoryStanding timers stay on the board until reset or deleted.
	CategoryStanding TimerCategory = "standing"
	// CategoryFast timers (instanced, short competitive cycles) are removed
	// one hour after expiry.
	CategoryFast TimerCategory = "fast"
	// CategorySlow timers (one-off and scheduled events) are removed 24 hours
	// after expiry.
	CategorySlow TimerCategory = "slow"
)

// Timer is one countdown owned by the board. The map key in the state
// document is its stable identity.
type Timer struct {
	EndTime  int64         `json:"endTime"` // unix seconds
	Status   TimerStatus   `json:"status"`
	Display  string        `json:"display"`
	Hidden   bool          `json:"hidden"`
	Channel  string        `json:"channel"`
	Category TimerCategory `json:"category"`
	// NoticeID references the completion message, kept for later cleanup.
	NoticeID string `json:"noticeId,omitempty"`
}

// Running reports whether the timer is still counting down at now.
func (t *Timer) Running(now time.Time) bool {
	return t.Status == StatusRunning && now.Unix() < t.EndTime
}

// End returns the timer deadline as a time.Time.
func (t *Timer) End() time.Time { return time.Unix(t.EndTime, 0) }

// LedgerEntry is one normalized transaction row from the external source.
// Entries are derived on read and never persisted by this service.
type LedgerEntry struct {
	Timestamp   time.Time
	Player      string
	Category    string
	Amount      int64 // positive = income, negative = expense
	Description string
}

// WindowTotals accumulates signed amounts over one reporting window.
// Out is the sum of negative amounts, so Net = In + Out.
type WindowTotals struct {
	In  int64
	Out int64
	Net int64
}

// FinancialSummary is the aggregated view the ledger panel renders.
type FinancialSummary struct {
	Balance       string // raw balance cell, "Error" when unreadable
	Today         WindowTotals
	Week          WindowTotals
	Month         WindowTotals
	TopCategories string // "name (pct%) | ..." or "None"
	Breakdown     map[string]int64
	Recent        []LedgerEntry // newest first, at most five
}
