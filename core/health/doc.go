// Package health provides HTTP probes for the faucet process.
//
//	r.Get("/health/live", health.Liveness)
//	r.Get("/health/ready", health.Readiness(log,
//		gateway.Healthcheck,
//		worker.Healthcheck,
//		redis.Healthcheck(client),
//	))
//
// Checks follow the func(context.Context) error signature of the
// Healthcheck methods exposed by the queue, the ledger client and the
// database integrations.
package health
