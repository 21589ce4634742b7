package ledger

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"github.com/guildboard/guildboard/internal/model"
)

// recentCount is the size of the "recent activity" view.
const recentCount = 5

// Aggregator computes the financial summary from the spreadsheet tabs.
type Aggregator struct {
	src         Source
	tabs        []string // historical row tabs, identical five-column shape
	balanceTab  string
	balanceCell string
	loc         *time.Location
	log         zerolog.Logger
}

// NewAggregator builds an Aggregator over the given source. tabs are the
// row ranges merged into one history; loc is the fixed zone used both to
// localize zone-less timestamps and to bucket by civil date.
func NewAggregator(src Source, tabs []string, balanceTab, balanceCell string, loc *time.Location, log zerolog.Logger) *Aggregator {
	return &Aggregator{src: src, tabs: tabs, balanceTab: balanceTab, balanceCell: balanceCell, loc: loc, log: log}
}

// Summarize reads every source range and aggregates it relative to now.
// Partial failures degrade (missing balance, a tab that will not read, rows
// that will not parse); only a total source failure returns an error. The
// returned summary always has every window populated, zeroed when empty.
func (a *Aggregator) Summarize(ctx context.Context, now time.Time) (*model.FinancialSummary, error) {
	sum := &model.FinancialSummary{
		Balance:       "Error",
		TopCategories: "None",
		Breakdown:     map[string]int64{},
	}

	failures := 0
	balance, err := a.src.ReadCell(ctx, a.balanceTab, a.balanceCell)
	if err != nil {
		a.log.Warn().Err(err).Msg("balance cell unavailable")
		failures++
	} else if balance != "" {
		sum.Balance = balance
	}

	var entries []model.LedgerEntry
	for _, tab := range a.tabs {
		rows, err := a.src.ReadRows(ctx, tab)
		if err != nil {
			a.log.Warn().Err(err).Str("tab", tab).Msg("tab unavailable, skipping")
			failures++
			continue
		}
		entries = append(entries, a.parseRows(rows)...)
	}
	if failures == len(a.tabs)+1 {
		return nil, fmt.Errorf("%w: no range readable", model.ErrSourceUnavailable)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.After(entries[j].Timestamp) })
	if len(entries) > recentCount {
		sum.Recent = entries[:recentCount]
	} else {
		sum.Recent = entries
	}

	local := now.In(a.loc)
	today := civilDate(local)
	startWeek := today.AddDate(0, 0, -int((local.Weekday()+6)%7)) // back to Monday
	startMonth := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, a.loc)

	categoryIncome := map[string]int64{}
	var totalIncome int64
	for _, e := range entries {
		d := civilDate(e.Timestamp.In(a.loc))
		in := e.Amount > 0
		if in {
			categoryIncome[e.Category] += e.Amount
			totalIncome += e.Amount
		}
		if d.Equal(today) {
			accumulate(&sum.Today, e.Amount, in)
			sum.Breakdown[e.Category] += e.Amount
		}
		if !d.Before(startWeek) {
			accumulate(&sum.Week, e.Amount, in)
		}
		if !d.Before(startMonth) {
			accumulate(&sum.Month, e.Amount, in)
		}
	}
	sum.Today.Net = sum.Today.In + sum.Today.Out
	sum.Week.Net = sum.Week.In + sum.Week.Out
	sum.Month.Net = sum.Month.In + sum.Month.Out

	sum.TopCategories = rankCategories(categoryIncome, totalIncome)
	return sum, nil
}

// parseRows converts raw rows to entries, best effort. The header row and
// any row that is too short or fails timestamp/amount parsing are dropped
// without being reported.
func (a *Aggregator) parseRows(rows [][]string) []model.LedgerEntry {
	if len(rows) > 0 {
		rows = rows[1:]
	}
	var out []model.LedgerEntry
	for _, r := range rows {
		if len(r) < 4 {
			continue
		}
		ts, err := parseTimestamp(r[0], a.loc)
		if err != nil {
			continue
		}
		amount, err := parseAmount(r[3])
		if err != nil {
			continue
		}
		category := r[2]
		if category == "" {
			category = "Unknown"
		}
		e := model.LedgerEntry{Timestamp: ts, Player: r[1], Category: category, Amount: amount}
		if len(r) > 4 {
			e.Description = r[4]
		}
		out = append(out, e)
	}
	return out
}

// parseTimestamp parses with a tolerant format detector, localizing to loc
// when the source omitted a zone.
func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	ts, err := dateparse.ParseIn(strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, err
	}
	return ts, nil
}

// parseAmount strips the trailing unit suffix and thousands separators and
// coerces to an integer: "1,200g" -> 1200.
func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimSuffix(s, "g")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	return strconv.ParseInt(s, 10, 64)
}

func accumulate(w *model.WindowTotals, amount int64, in bool) {
	if in {
		w.In += amount
	} else {
		w.Out += amount
	}
}

// rankCategories renders the top three income categories as
// "name (pct%) | ..." with one decimal place, or "None" without income.
func rankCategories(income map[string]int64, total int64) string {
	if total <= 0 || len(income) == 0 {
		return "None"
	}
	type cat struct {
		name  string
		total int64
	}
	cats := make([]cat, 0, len(income))
	for name, v := range income {
		cats = append(cats, cat{name, v})
	}
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].total != cats[j].total {
			return cats[i].total > cats[j].total
		}
		return cats[i].name < cats[j].name
	})
	if len(cats) > 3 {
		cats = cats[:3]
	}
	parts := make([]string, 0, len(cats))
	for _, c := range cats {
		parts = append(parts, fmt.Sprintf("%s (%.1f%%)", c.name, float64(c.total)/float64(total)*100))
	}
	return strings.Join(parts, " | ")
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
