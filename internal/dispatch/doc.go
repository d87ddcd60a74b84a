// Package dispatch implements the supervisor/worker pool that fans
// notification deliveries out across independent workers.
//
// # Overview
//
// A Dispatcher partitions submitted messages round-robin across one
// queue-store slot per worker, spawns the workers, and aggregates their
// delivery failures in a shared error slot. Workers never share state
// directly: the bounded queue store plus its single guard is the only
// coordination surface, and every record crossing it is encoded bytes.
//
// # Worker lifecycle
//
//	Spawning -> Connected -> Running -> Exited
//
//  1. Start builds one delivery engine per worker; an engine the factory
//     cannot build degrades the pool (warning, no worker) rather than
//     failing Start.
//  2. The worker connects its engine. A connect failure ends that worker
//     with an error before it enters the loop; siblings are unaffected.
//  3. Each loop iteration polls shutdown signals, merges the engine's
//     accumulated delivery errors into the error slot, drains its own
//     slot into a local batch (both under one guard section), then sends
//     the batch outside the guard, or idles when the slot was empty.
//  4. Exits are reported on a buffered channel and reaped non-blockingly
//     by the supervisor, which decrements the running count.
//
// Shutdown is cooperative: cancelling the Start context or calling Close
// is observed by every worker within one idle interval. The guard is
// never held across an iteration boundary, so cancellation cannot strand
// it. Close tears down the shared store exactly once.
//
// # Ordering
//
// FIFO holds within a single worker slot. There is no ordering guarantee
// across slots, nor across workers' error contributions.
package dispatch
