package store

// Slot keys for the shared queue store.
const (
	// ErrorSlotKey addresses the single slot aggregating delivery
	// failures from all workers.
	ErrorSlotKey = 0

	// workerSlotBase offsets worker slot keys away from the error slot
	// so the two ranges can never collide.
	workerSlotBase = 1000
)

// WorkerSlotKey returns the slot key for worker index i (0-based).
func WorkerSlotKey(i int) int {
	return workerSlotBase + i
}
