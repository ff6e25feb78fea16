// Package render turns a snapshot into a displayable table.
//
// Rows keep the snapshot's order and are keyed by address. Cells are
// formatted for a locale by a [Formatter]: latency with locale digit
// grouping, last success as the locale's date/time rendering in the
// configured time zone. Tables can be written as aligned text for terminals;
// the dashboard package renders the same [Table] as HTML.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jpalmerr/statusboard/internal/snapshot"
)

// Column keys.
const (
	ColumnAddress     = "ip"
	ColumnPingTime    = "ping_time"
	ColumnLastSuccess = "last_success"
	ColumnHostname    = "hostname"
)

// Column is a table header.
type Column struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

// Row is one rendered record. Key is the record address.
type Row struct {
	Key   string   `json:"key"`
	Cells []string `json:"cells"`
}

// Table is a rendered snapshot.
type Table struct {
	Title   string   `json:"title"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`

	// Duplicates lists addresses that appeared more than once. Only the
	// first occurrence of each is rendered.
	Duplicates []string `json:"duplicates,omitempty"`

	// Updated is the formatted fetch time, empty before the first fetch.
	Updated string `json:"updated"`

	// Seq is the snapshot sequence number the table was built from.
	Seq uint64 `json:"seq"`
}

// BuildTable renders snap with f. When hostnames is non-nil a hostname
// column is added; addresses missing from the map get an empty cell.
func BuildTable(snap snapshot.Snapshot, f Formatter, hostnames map[string]string) Table {
	cols := []Column{
		{Key: ColumnAddress, Title: f.T(MsgAddress)},
	}
	if hostnames != nil {
		cols = append(cols, Column{Key: ColumnHostname, Title: f.T(MsgHostname)})
	}
	cols = append(cols,
		Column{Key: ColumnPingTime, Title: f.T(MsgPingTime)},
		Column{Key: ColumnLastSuccess, Title: f.T(MsgLastSuccess)},
	)

	t := Table{
		Title:   f.T(MsgTitle),
		Columns: cols,
		Rows:    make([]Row, 0, len(snap.Records)),
		Updated: f.Date(snap.FetchedAt),
		Seq:     snap.Seq,
	}

	seen := make(map[string]bool, len(snap.Records))
	for _, r := range snap.Records {
		if seen[r.Address] {
			t.Duplicates = append(t.Duplicates, r.Address)
			continue
		}
		seen[r.Address] = true

		cells := []string{r.Address}
		if hostnames != nil {
			cells = append(cells, hostnames[r.Address])
		}
		cells = append(cells, f.Latency(r.LatencyMs), f.LastSuccess(r))
		t.Rows = append(t.Rows, Row{Key: r.Address, Cells: cells})
	}

	return t
}

// Row returns the row keyed by addr.
func (t Table) Row(addr string) (Row, bool) {
	for _, r := range t.Rows {
		if r.Key == addr {
			return r, true
		}
	}
	return Row{}, false
}

// WriteText writes the table as aligned plain text with a header rule.
func (t Table) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	titles := make([]string, len(t.Columns))
	rules := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		titles[i] = c.Title
		rules[i] = strings.Repeat("-", len([]rune(c.Title)))
	}
	if _, err := fmt.Fprintln(tw, strings.Join(titles, "\t")); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(tw, strings.Join(rules, "\t")); err != nil {
		return err
	}
	for _, r := range t.Rows {
		if _, err := fmt.Fprintln(tw, strings.Join(r.Cells, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}
