// Package supervisor manages the lifecycle of the external server
// process: detached launch, graceful RCON shutdown with signal
// escalation, cached status snapshots and a background CPU/memory
// sampler.
package supervisor
