// Package domain contains the core data types of the agent control layer:
// session contexts, routing decisions, proposed actions and pending
// confirmations. Types here are plain data with no I/O; persistence and
// policy live in the adapter and service packages.
package domain
