// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Job,
// track and directory payloads reuse the api package views so the HTTP and
// socket surfaces stay in step.
package ipc
