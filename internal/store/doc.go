// Package store implements the shared queue store and its mutual-exclusion
// guard.
//
// # Overview
//
// A Store is a bounded region of memory holding ordered record sequences
// addressed by integer slot keys. It stands in for the fixed-size shared
// memory segment the worker pool coordinates through: one error slot plus
// one slot per worker. Records are opaque encoded bytes; the Store never
// inspects them. Capacity is a byte budget fixed at creation, and a write
// that would exceed it fails with ErrCapacity.
//
// # Keyspace
//
//	0           - error slot (delivery failures from all workers)
//	1000 + i    - worker slot i (work items assigned to worker i)
//
// # Locking discipline
//
// The Store performs no locking of its own. Every read-modify-write that
// spans one or more slots must run inside a single Acquire/Release pair on
// the Guard created alongside the Store. Critical sections perform only
// memory copies; network I/O always happens outside the guard.
package store
