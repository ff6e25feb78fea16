package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jpalmerr/statusboard"
	"github.com/jpalmerr/statusboard/internal/render"
	"github.com/jpalmerr/statusboard/internal/resolve"
)

// clearScreen moves the cursor home and erases the terminal.
const clearScreen = "\x1b[H\x1b[2J"

// hostnameTimeout bounds the reverse lookups done for one table.
const hostnameTimeout = 3 * time.Second

type hostnameFunc func(ctx context.Context, addrs []string) map[string]string

// newHostnames returns a reverse-DNS lookup for server, or nil when server
// is empty.
func newHostnames(server string, timeout time.Duration, opts ...resolve.Option) (hostnameFunc, error) {
	if server == "" {
		return nil, nil
	}
	res, err := resolve.New(server, timeout, opts...)
	if err != nil {
		return nil, err
	}
	return res.LookupAll, nil
}

// writeTable renders snap as a titled text table followed by the update
// time. An empty snapshot prints the localized "No data" line.
func writeTable(ctx context.Context, w io.Writer, snap statusboard.Snapshot, f render.Formatter, title string, hosts hostnameFunc) error {
	var hostnames map[string]string
	if hosts != nil {
		addrs := make([]string, len(snap.Records))
		for i, r := range snap.Records {
			addrs[i] = r.Address
		}
		lookupCtx, cancel := context.WithTimeout(ctx, hostnameTimeout)
		hostnames = hosts(lookupCtx, addrs)
		cancel()
	}

	table := render.BuildTable(snap, f, hostnames)
	if title == "" {
		title = table.Title
	}

	if _, err := fmt.Fprintf(w, "%s\n\n", title); err != nil {
		return err
	}
	if len(table.Rows) == 0 {
		_, err := fmt.Fprintln(w, f.T(render.MsgNoData))
		return err
	}
	if err := table.WriteText(w); err != nil {
		return err
	}
	if table.Updated != "" {
		_, err := fmt.Fprintf(w, "\n%s: %s\n", f.T(render.MsgUpdated), table.Updated)
		return err
	}
	return nil
}
