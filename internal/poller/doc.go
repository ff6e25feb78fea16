// Package poller fetches status snapshots from the backend on a fixed interval.
//
// This package is internal to statusboard. The main components are:
//
//   - [Client]: HTTP client for the backend's GET /status resource
//   - [Poller]: cancellable repeating fetch task with an explicit Stop handle
//   - [FetchError]: the single failure kind, classified by [FailureKind]
//
// A Poller hands every successful result to an [ApplyFunc] and logs and
// swallows failures, so the view keeps showing its previous snapshot. What
// happens to a tick that fires while a fetch is still running is controlled
// by an [OverlapPolicy].
package poller
