// Package ledger defines the contract between the faucet and the ledger node.
//
// A disbursement travels through four steps:
//
//	batch, err := ledger.NewBatch(transfers)      // one currencies.transfer call per transfer
//	signed, err := signer.Sign(ctx, batch)         // blake2b-256 of the batch, ed25519 signature
//	sub, err := gateway.Submit(ctx, signed)        // status stream of the batch
//	res, err := ledger.Watch(ctx, sub, decoder)    // waits for inclusion, classifies records
//
// Watch treats inBlock (or finalized, with WithFinality) as terminal and
// scans the records emitted for the batch. A utility.BatchInterrupted record
// or a system.ExtrinsicFailed record turns the outcome into a *Failure; the
// first such record decides the reason. Module errors are resolved through
// the ErrorDecoder into "section.name". dropped, invalid and usurped statuses
// fail with "transaction <status>". The subscription is always released.
//
// The websocket implementation of Gateway and ErrorDecoder lives in
// package wsgateway; package ledgertest has in-memory fakes.
package ledger
