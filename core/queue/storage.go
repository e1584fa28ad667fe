package queue

// Storage is a unified interface that combines all repository interfaces
// required for queue operations. A single implementation serves as the
// backend for both the Enqueuer and the Worker.
//
// Implementations: MemoryStorage (tests and local development),
// RedisStorage and PostgresStorage (durable).
type Storage interface {
	// EnqueuerRepository provides task creation and admission counters
	EnqueuerRepository

	// WorkerRepository provides task claiming and processing capabilities
	WorkerRepository
}
