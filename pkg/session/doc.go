// Package session manages bounded conversational memory per session ID.
//
// The Manager serializes writes to the same session (per-key local locks,
// optionally combined with a distributed locker across replicas), keeps the
// conversation history and learned topics bounded, and runs the frustration
// detector on every append. Cross-session operations are fully independent.
package session
