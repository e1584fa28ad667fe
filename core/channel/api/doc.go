// Package api is the HTTP surface of the faucet.
//
//	GET  /ping          -> "pong!"
//	GET  /health/live   -> "ALIVE"
//	GET  /health/ready  -> "READY" or 503
//	GET  /balances      -> [{"asset":"ACA","free":"..."}]
//	POST /faucet        {"address":"...","account":"...","strategy":"normal"}
//
// POST /faucet waits for the disbursement outcome and answers
// {"code":200,"txHash":"0x..."} or {"code":<status>,"message":"..."} where
// message is rendered from the operator's templates. Requests are rate
// limited per account under the "api" kind and per destination address.
package api
