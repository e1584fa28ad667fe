package faucet

import (
	"github.com/google/uuid"

	"github.com/dmitrymomot/faucet/core/ledger"
)

// ChannelKindKey is the Channel entry naming the originating surface.
const ChannelKindKey = "kind"

// Channel describes where a request came from. Only the "kind" entry is
// interpreted; every other entry is routing data for the surface that
// registered a notifier for that kind.
type Channel map[string]string

// Kind returns the originating surface.
func (c Channel) Kind() string {
	return c[ChannelKindKey]
}

// Request is one call to Dispense.
type Request struct {
	// Identity is the rate limited requester. Defaults to Destination.
	Identity    string
	Destination string
	Strategy    string
	Channel     Channel
}

func (r Request) identity() string {
	if r.Identity != "" {
		return r.Identity
	}
	return r.Destination
}

// QueuedTask is the payload persisted in the disbursement queue. Amounts are
// already in ledger base units.
type QueuedTask struct {
	Transfers []ledger.Transfer `json:"transfers"`
	Channel   Channel           `json:"channel,omitempty"`
}

// Receipt is the successful outcome of a disbursement.
type Receipt struct {
	TaskID    uuid.UUID
	TxHash    string
	BlockHash string
	// Amount is the human readable sum sent, e.g. "10 ACA, 5 AUSD".
	Amount string
}
