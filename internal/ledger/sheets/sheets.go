// Package sheets adapts a Google spreadsheet to the ledger.Source
// interface.
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/guildboard/guildboard/internal/model"
)

// Client reads and appends rows of one spreadsheet.
type Client struct {
	svc           *sheets.Service
	spreadsheetID string
}

// New builds a Client authenticated from a service-account credentials file.
func New(ctx context.Context, credentialsFile, spreadsheetID string) (*Client, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSourceUnavailable, err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// ReadRows returns every row of the tab, header included.
func (c *Client) ReadRows(ctx context.Context, tab string) ([][]string, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, tab).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", model.ErrSourceUnavailable, tab, err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadCell returns one scalar cell such as "B2"; an empty sheet range reads
// as "".
func (c *Client) ReadCell(ctx context.Context, tab, cell string) (string, error) {
	rng := fmt.Sprintf("%s!%s", tab, cell)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", model.ErrSourceUnavailable, rng, err)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return "", nil
	}
	return fmt.Sprint(resp.Values[0][0]), nil
}

// AppendRow appends one row after the tab's last data row.
func (c *Client) AppendRow(ctx context.Context, tab string, row []string) error {
	values := make([]interface{}, len(row))
	for i, cell := range row {
		values[i] = cell
	}
	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, tab, &sheets.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("%w: append %s: %v", model.ErrSourceUnavailable, tab, err)
	}
	return nil
}
