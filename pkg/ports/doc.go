// Package ports defines the interfaces between the control layer and its
// external collaborators: session persistence, confirmation persistence,
// distributed locking and the optional intent classifier. Adapters live in
// pkg/adapters; services depend only on these interfaces.
package ports
