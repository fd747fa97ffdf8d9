// Package deploy coordinates worker deployments: stop the worker, apply
// an update, restart, verify, and roll back on failure. Every attempt is
// recorded in an append-only audit log.
package deploy
