// Package dashboard provides the embedded web UI for statusboard.
//
// The page is an html/template compiled into the binary with go:embed, so
// deployment needs no external asset files. The server renders the current
// table into the page on every request; the inline script then keeps it
// live from the WebSocket stream, falling back to Server-Sent Events.
package dashboard

import (
	"embed"
	"html/template"
	"io"

	"github.com/jpalmerr/statusboard/internal/render"
)

// Assets is an embedded filesystem containing the dashboard web UI.
//
//	assets/
//	  index.html    - page template with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS

// SnapshotEvent is the event name the page script listens for on the SSE
// stream and expects in every pushed message.
const SnapshotEvent = "snapshot"

var page = template.Must(template.ParseFS(Assets, "assets/index.html"))

// Page is the data the dashboard template renders.
type Page struct {
	Title string
	Lang  string
	Table render.Table

	// NoData is shown in place of rows when the table is empty.
	NoData string

	// UpdatedLabel prefixes the last fetch time.
	UpdatedLabel string
}

// Render writes the dashboard page for p to w.
func Render(w io.Writer, p Page) error {
	return page.Execute(w, p)
}
