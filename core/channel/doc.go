// Package channel holds what the chat surfaces share: command parsing and a
// Handler that turns "!faucet", "!balance" and "!drip <address> [strategy]"
// into calls on the dispensing service and replies rendered from the
// operator's message templates.
//
// A surface feeds every inbound message to Handler.Handle and posts the
// returned reply, if any. Successful drips are not answered directly; the
// surface registers a faucet.Notifier for its kind and announces the
// transaction once it is included.
package channel
