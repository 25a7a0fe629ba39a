// Package rcon implements the Source RCON protocol used for the server's
// remote console: packet framing, an authenticated client with automatic
// reconnection, and a process-wide connection pool keyed by endpoint.
package rcon
