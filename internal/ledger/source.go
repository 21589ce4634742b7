// Package ledger reads append-only transaction rows from the external
// tabular source, merges them and computes the windowed aggregates behind
// the bank panel. The source itself is the record of truth; nothing here is
// persisted beyond the poll cursor.
package ledger

import "context"

// Source is the narrow interface over the tabular backend. Implementations
// wrap read failures of the whole source in model.ErrSourceUnavailable.
type Source interface {
	// ReadRows returns all rows of the named tab, header row included.
	ReadRows(ctx context.Context, tab string) ([][]string, error)
	// ReadCell returns a single scalar cell, e.g. "B2".
	ReadCell(ctx context.Context, tab, cell string) (string, error)
	// AppendRow appends one row to the named tab.
	AppendRow(ctx context.Context, tab string, row []string) error
}
