// Package supervisor manages the lifecycle of the single supervised worker
// process: spawning, readiness detection, graceful shutdown with signal
// escalation, and crash recovery with exponential backoff.
package supervisor
