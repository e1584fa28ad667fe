// Package queue provides a durable single-consumer task queue.
//
// An Enqueuer stores tasks, a Worker claims them one at a time in enqueue
// order and runs the registered Handler to completion before claiming the
// next one. Handler errors and panics mark the task failed; the queue never
// retries a task, so a handler with external side effects runs at most once
// per task.
//
// # Basic Usage
//
//	storage := queue.NewMemoryStorage()
//
//	enqueuer, err := queue.NewEnqueuer(storage, queue.WithDefaultQueue("faucet"))
//	worker, err := queue.NewWorker(storage, queue.WithWorkerQueue("faucet"))
//
//	type Payout struct {
//		Dest string `json:"dest"`
//	}
//
//	worker.RegisterHandler(queue.NewTaskHandler(func(ctx context.Context, p Payout) error {
//		id, _ := queue.TaskIDFromContext(ctx)
//		return pay(ctx, id, p.Dest)
//	}))
//
//	eg, ctx := errgroup.WithContext(ctx)
//	eg.Go(storage.Run(ctx))
//	eg.Go(worker.Run(ctx))
//
//	id, err := enqueuer.Enqueue(ctx, Payout{Dest: "5Grw..."})
//
// Callers that need to correlate a task before it is stored pass
// WithTaskID. PendingCount reports unclaimed tasks for admission control.
//
// # Storage backends
//
//   - MemoryStorage: in-process, for tests and single-node development.
//     Its maintenance loop fails tasks whose lock expired and prunes
//     finished tasks after the retention period.
//   - RedisStorage: pending and processing lists per queue, task documents
//     as JSON strings; claims use LMOVE.
//   - PostgresStorage: queue_tasks table (see Migrations), claims use
//     FOR UPDATE SKIP LOCKED. CreateTask joins a transaction carried by the
//     context (pg.WithTx).
//
// All backends implement Storage and can be swapped through Config.Backend.
package queue
