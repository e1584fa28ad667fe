// Package wsgateway implements ledger.Gateway and ledger.ErrorDecoder over a
// JSON-RPC 2.0 websocket connection to the ledger node.
//
//	client, err := wsgateway.Dial(ctx, "ws://localhost:9944",
//		wsgateway.WithRequestTimeout(30*time.Second),
//		wsgateway.WithLogger(logger),
//	)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// A single reader goroutine per connection dispatches responses to pending
// calls and author_batchStatus notifications to subscriptions. A
// subscription is registered before its id is handed back to Submit, so
// updates sent right after the response are never lost. Intermediate
// statuses may be skipped when a subscriber falls behind; terminal ones wait
// for it.
//
// When the connection drops, every open subscription channel is closed and
// the client redials with capped exponential backoff (go-retry). Calls made
// meanwhile wait for the new connection within their context, and
// Healthcheck fails until it is up.
package wsgateway
