// Package sqliteutil holds the connection setup and busy-retry helpers shared
// by the queue and catalog stores.
package sqliteutil
