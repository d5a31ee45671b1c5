// Package watcher turns file arrivals in import directories into track
// imports.
//
// Each registered directory is watched recursively with fsnotify. Every
// create or write event restarts a per-path debouncer; when a file has been
// quiet for the configured settle time and its size no longer changes, it is
// handed to the Importer. Directories registered when the watcher starts are
// watched without importing their existing contents; Rescan and directories
// added at runtime import everything not already catalogued.
package watcher
