// Package logging provides the application's slog-based logging layer:
// per-module loggers with runtime-adjustable levels, a ring buffer that
// feeds the SSE application-log stream, and systemd journal output when
// the journal socket is available.
package logging
