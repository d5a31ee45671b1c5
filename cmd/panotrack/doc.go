// Package main hosts the panotrack CLI entrypoint and command graph.
//
// Commands talk to a running daemon over its Unix socket. When no daemon is
// listening, catalog and queue commands open the SQLite stores directly so
// imports can still be queued and tracks inspected. The daemon command runs
// the long-lived process in the foreground.
package main
