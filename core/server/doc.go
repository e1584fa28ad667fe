// Package server runs the faucet HTTP endpoint with graceful shutdown.
//
// The server is configured from the environment through Config and fits the
// errgroup lifecycle used by the rest of the process:
//
//	srv, err := server.NewFromConfig(cfg, server.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	g.Go(srv.Run(ctx, router))
//
// Stop waits up to the shutdown timeout for in-flight requests. Requests to
// the faucet endpoint block until their disbursement resolves, so the
// timeout defaults to three minutes.
package server
