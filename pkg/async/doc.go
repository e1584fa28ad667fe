// Package async provides a generic Future for results produced on another goroutine.
//
// A Future is completed exactly once, either by the goroutine started with Async or
// by whoever holds the Resolver returned from NewPromise. The promise form is meant for
// results that cross an asynchronous boundary such as a work queue: the producer keeps
// the Future, the consumer gets the Resolver.
//
// # Usage
//
//	future, resolve := async.NewPromise[string]()
//
//	go func() {
//		txHash, err := submit(ctx)
//		_ = resolve(txHash, err)
//	}()
//
//	txHash, err := future.AwaitContext(ctx)
//
// Running a function asynchronously:
//
//	future := async.Async(ctx, userID, fetchUser)
//	user, err := future.AwaitWithTimeout(50 * time.Millisecond)
//	if errors.Is(err, async.ErrTimeout) {
//		log.Println("Operation timed out")
//	}
//
// # Error Handling
//
//   - ErrTimeout: returned when AwaitWithTimeout exceeds its duration
//   - ErrAlreadyResolved: returned by a Resolver called more than once
//
// # Concurrency Safety
//
// All operations are safe for concurrent use. Completion is guarded by sync.Once.
package async
