package ledger

import "context"

// Transfer moves Amount (an integer in the asset's base units) of Asset to Dest.
type Transfer struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
	Dest   string `json:"dest"`
}

// Status is the lifecycle state reported for a submitted batch.
type Status string

const (
	StatusFuture    Status = "future"
	StatusReady     Status = "ready"
	StatusBroadcast Status = "broadcast"
	StatusInBlock   Status = "inBlock"
	StatusFinalized Status = "finalized"
	StatusDropped   Status = "dropped"
	StatusInvalid   Status = "invalid"
	StatusUsurped   Status = "usurped"
)

// Rejected reports statuses after which the batch will never be included.
func (s Status) Rejected() bool {
	return s == StatusDropped || s == StatusInvalid || s == StatusUsurped
}

// Terminal reports statuses that can end a watch: inclusion, finality or
// rejection.
func (s Status) Terminal() bool {
	return s == StatusInBlock || s == StatusFinalized || s.Rejected()
}

// ModuleError identifies a runtime module error by pallet index and error index.
type ModuleError struct {
	Index uint8 `json:"index"`
	Error uint8 `json:"error"`
}

// DispatchError is attached to an ExtrinsicFailed record. Module is set
// for module errors, Other carries the raw description otherwise.
type DispatchError struct {
	Module *ModuleError `json:"module,omitempty"`
	Other  string       `json:"other,omitempty"`
}

// Record is one event emitted by the ledger while applying a batch.
type Record struct {
	Section       string         `json:"section"`
	Method        string         `json:"method"`
	DispatchError *DispatchError `json:"dispatchError,omitempty"`
}

// Event is a status update of a submitted batch.
type Event struct {
	Status    Status   `json:"status"`
	TxHash    string   `json:"txHash,omitempty"`
	BlockHash string   `json:"blockHash,omitempty"`
	Records   []Record `json:"records,omitempty"`
}

// Balance is the free balance of one asset.
type Balance struct {
	Asset string `json:"asset"`
	Free  string `json:"free"`
}

// Subscription streams the status events of one submitted batch.
// The channel is closed when the ledger side ends the stream.
type Subscription interface {
	Events() <-chan Event
	Unsubscribe() error
}

// Gateway is the connection to the ledger node.
type Gateway interface {
	// Submit sends a signed batch and subscribes to its status updates.
	Submit(ctx context.Context, batch *SignedBatch) (Subscription, error)
	// Balances returns the free balances of account.
	Balances(ctx context.Context, account string) ([]Balance, error)
	// ChainName returns the name of the connected chain.
	ChainName(ctx context.Context) (string, error)
}

// ErrorDecoder resolves a module error against the runtime metadata.
type ErrorDecoder interface {
	FindMetaError(ctx context.Context, e ModuleError) (section, name string, err error)
}
