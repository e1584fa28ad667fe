// Package faucet dispenses configured token amounts to requested addresses.
//
// Service.Dispense admits a request in a fixed order: strategy lookup,
// queue admission (pending tasks below the cap), a read-only rate limit
// check, amount scaling and a speculative batch build, the atomic
// reservation of the identity and address counters, and finally the
// enqueue. Only the enqueue step compensates: if it fails the reserved
// counters are released. Every synchronous failure is an *Error with a Code
// and leaves no state behind.
//
//	future, err := svc.Dispense(ctx, faucet.Request{
//		Destination: "5ES9fy...",
//		Strategy:    "normal",
//		Channel:     faucet.Channel{faucet.ChannelKindKey: "api"},
//	})
//	if err != nil {
//		return messages.RenderError(err, faucet.MessageData{})
//	}
//	receipt, err := future.AwaitContext(ctx)
//
// The Disburser consumes the queue one task at a time. It builds and signs
// the batch, submits it through the ledger gateway and watches its status
// until inclusion, a rejection or the watch timeout. The outcome resolves the
// future returned by Dispense and, on success, invokes the notifier
// registered for the request's channel kind. Ledger failures do not release
// rate limit counters.
//
// Strategies and message templates are loaded from a YAML file with LoadFile.
package faucet
