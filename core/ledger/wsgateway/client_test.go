package wsgateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/faucet/core/ledger"
	"github.com/dmitrymomot/faucet/core/ledger/wsgateway"
)

type rpcRequest struct {
	ID     uint64            `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode answers the JSON-RPC methods the client uses. Status updates for
// submitted batches are pushed right after the subscription id.
type fakeNode struct {
	t        *testing.T
	statuses []ledger.Event

	mu         sync.Mutex
	unwatched  []string
	submitted  []ledger.SignedBatch
	rejectNext bool
	conns      []*websocket.Conn
	accepted   int
	down       bool
}

func (n *fakeNode) serve(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	down := n.down
	n.mu.Unlock()
	if down {
		http.Error(w, "node down", http.StatusServiceUnavailable)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	n.mu.Lock()
	n.conns = append(n.conns, conn)
	n.accepted++
	n.mu.Unlock()

	for {
		var req rpcRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		reply := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		var push []any

		switch req.Method {
		case wsgateway.MethodChain:
			reply["result"] = "Mandala TC7"
		case wsgateway.MethodBalances:
			var account string
			_ = json.Unmarshal(req.Params[0], &account)
			reply["result"] = []ledger.Balance{{Asset: "NATIVE", Free: "1000"}, {Asset: account, Free: "0"}}
		case wsgateway.MethodMetaError:
			var index uint8
			_ = json.Unmarshal(req.Params[0], &index)
			if index == 10 {
				reply["result"] = map[string]string{"section": "balances", "name": "InsufficientBalance"}
			} else {
				reply["error"] = map[string]any{"code": -32000, "message": "unknown module"}
			}
		case wsgateway.MethodSubmitAndWatch:
			n.mu.Lock()
			reject := n.rejectNext
			n.rejectNext = false
			var sb ledger.SignedBatch
			_ = json.Unmarshal(req.Params[0], &sb)
			n.submitted = append(n.submitted, sb)
			n.mu.Unlock()

			if reject {
				reply["error"] = map[string]any{"code": 1010, "message": "Invalid Transaction"}
				break
			}
			reply["result"] = "sub-1"
			for _, ev := range n.statuses {
				push = append(push, map[string]any{
					"jsonrpc": "2.0",
					"method":  wsgateway.MethodBatchStatus,
					"params":  map[string]any{"subscription": "sub-1", "result": ev},
				})
			}
		case wsgateway.MethodUnwatch:
			var id string
			_ = json.Unmarshal(req.Params[0], &id)
			n.mu.Lock()
			n.unwatched = append(n.unwatched, id)
			n.mu.Unlock()
			reply["result"] = true
		}

		if err := conn.WriteJSON(reply); err != nil {
			return
		}
		for _, p := range push {
			if err := conn.WriteJSON(p); err != nil {
				return
			}
		}
	}
}

// drop closes every open websocket connection. httptest does not track
// hijacked connections, so CloseClientConnections cannot do it.
func (n *fakeNode) drop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, conn := range n.conns {
		_ = conn.Close()
	}
	n.conns = nil
}

func (n *fakeNode) setDown(down bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.down = down
}

func (n *fakeNode) Accepted() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.accepted
}

func (n *fakeNode) Unwatched() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.unwatched...)
}

func dial(t *testing.T, node *fakeNode, opts ...wsgateway.Option) (*wsgateway.Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(node.serve))
	t.Cleanup(srv.Close)

	client, err := wsgateway.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"),
		append([]wsgateway.Option{
			wsgateway.WithRequestTimeout(2 * time.Second),
			wsgateway.WithReconnectBackoff(5*time.Millisecond, 50*time.Millisecond),
		}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestDial_Errors(t *testing.T) {
	t.Parallel()

	_, err := wsgateway.Dial(context.Background(), "")
	assert.ErrorIs(t, err, wsgateway.ErrEmptyURL)

	_, err = wsgateway.Dial(context.Background(), "ws://127.0.0.1:1", wsgateway.WithHandshakeTimeout(100*time.Millisecond))
	assert.ErrorIs(t, err, wsgateway.ErrDialFailed)
}

func TestClient_Queries(t *testing.T) {
	t.Parallel()

	client, _ := dial(t, &fakeNode{t: t})
	ctx := context.Background()

	name, err := client.ChainName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Mandala TC7", name)

	balances, err := client.Balances(ctx, "AUSD")
	require.NoError(t, err)
	assert.Equal(t, []ledger.Balance{{Asset: "NATIVE", Free: "1000"}, {Asset: "AUSD", Free: "0"}}, balances)

	section, method, err := client.FindMetaError(ctx, ledger.ModuleError{Index: 10, Error: 2})
	require.NoError(t, err)
	assert.Equal(t, "balances", section)
	assert.Equal(t, "InsufficientBalance", method)

	_, _, err = client.FindMetaError(ctx, ledger.ModuleError{Index: 1, Error: 1})
	var rpcErr *wsgateway.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32000, rpcErr.Code)

	assert.NoError(t, client.Healthcheck(ctx))
}

func TestClient_SubmitAndWatch(t *testing.T) {
	t.Parallel()

	node := &fakeNode{t: t, statuses: []ledger.Event{
		{Status: ledger.StatusReady, TxHash: "0xfeed"},
		{Status: ledger.StatusInBlock, BlockHash: "0xb1", Records: []ledger.Record{
			{Section: "system", Method: "ExtrinsicFailed", DispatchError: &ledger.DispatchError{Module: &ledger.ModuleError{Index: 10, Error: 2}}},
		}},
	}}
	client, _ := dial(t, node)
	ctx := context.Background()

	signer, err := ledger.NewEd25519Signer("0x9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60")
	require.NoError(t, err)
	batch, err := ledger.NewBatch([]ledger.Transfer{{Asset: "NATIVE", Amount: "1", Dest: "abc"}})
	require.NoError(t, err)
	signed, err := signer.Sign(ctx, batch)
	require.NoError(t, err)

	sub, err := client.Submit(ctx, signed)
	require.NoError(t, err)

	res, err := ledger.Watch(ctx, sub, client)
	assert.ErrorIs(t, err, ledger.ErrExtrinsicFailed)
	assert.EqualError(t, err, "balances.InsufficientBalance")
	assert.Equal(t, "0xfeed", res.TxHash)

	assert.Eventually(t, func() bool { return len(node.Unwatched()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"sub-1"}, node.Unwatched())

	node.mu.Lock()
	require.Len(t, node.submitted, 1)
	assert.NoError(t, ledger.Verify(&node.submitted[0]))
	node.mu.Unlock()
}

func TestClient_SubmitRejected(t *testing.T) {
	t.Parallel()

	node := &fakeNode{t: t, rejectNext: true}
	client, _ := dial(t, node)

	signed := &ledger.SignedBatch{Batch: &ledger.Batch{}, Hash: "0x00"}
	_, err := client.Submit(context.Background(), signed)
	assert.ErrorIs(t, err, ledger.ErrSubmissionFailed)
}

func signedBatch(t *testing.T) *ledger.SignedBatch {
	t.Helper()

	signer, err := ledger.NewEd25519Signer("0x9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60")
	require.NoError(t, err)
	batch, err := ledger.NewBatch([]ledger.Transfer{{Asset: "NATIVE", Amount: "1", Dest: "abc"}})
	require.NoError(t, err)
	signed, err := signer.Sign(context.Background(), batch)
	require.NoError(t, err)
	return signed
}

func TestClient_ReconnectsAfterConnectionLoss(t *testing.T) {
	t.Parallel()

	node := &fakeNode{t: t, statuses: []ledger.Event{
		{Status: ledger.StatusReady, TxHash: "0xfeed"},
		{Status: ledger.StatusInBlock, BlockHash: "0xb1"},
	}}
	client, _ := dial(t, node)
	ctx := context.Background()

	_, err := client.ChainName(ctx)
	require.NoError(t, err)

	node.drop()

	require.Eventually(t, func() bool { return node.Accepted() == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return client.Healthcheck(ctx) == nil }, time.Second, 5*time.Millisecond)

	sub, err := client.Submit(ctx, signedBatch(t))
	require.NoError(t, err)

	res, err := ledger.Watch(ctx, sub, client)
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", res.TxHash)
	assert.Equal(t, "0xb1", res.BlockHash)
}

func TestClient_SubscriptionEndsWithConnection(t *testing.T) {
	t.Parallel()

	node := &fakeNode{t: t}
	client, _ := dial(t, node)

	sub, err := client.Submit(context.Background(), signedBatch(t))
	require.NoError(t, err)

	node.drop()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok, "events channel must be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("subscription outlived its connection")
	}

	assert.NoError(t, sub.Unsubscribe(), "nothing to cancel on a dropped connection")
	assert.Empty(t, node.Unwatched())
}

func TestClient_WaitsForNodeToComeBack(t *testing.T) {
	t.Parallel()

	node := &fakeNode{t: t}
	client, _ := dial(t, node)

	node.setDown(true)
	node.drop()

	require.Eventually(t, func() bool {
		return client.Healthcheck(context.Background()) != nil
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, client.Healthcheck(context.Background()), wsgateway.ErrNotConnected)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.ChainName(ctx)
	assert.ErrorIs(t, err, wsgateway.ErrNotConnected)

	node.setDown(false)

	ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	name, err := client.ChainName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Mandala TC7", name)
}

func TestClient_Close(t *testing.T) {
	t.Parallel()

	node := &fakeNode{t: t}
	client, _ := dial(t, node)

	require.NoError(t, client.Close())
	assert.NoError(t, client.Close())

	assert.ErrorIs(t, client.Healthcheck(context.Background()), wsgateway.ErrClientClosed)
	_, err := client.ChainName(context.Background())
	assert.ErrorIs(t, err, wsgateway.ErrClientClosed)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, node.Accepted(), "a closed client does not redial")
}

func TestClient_TerminalStatusSurvivesFullBuffer(t *testing.T) {
	t.Parallel()

	node := &fakeNode{t: t, statuses: []ledger.Event{
		{Status: ledger.StatusReady, TxHash: "0xfeed"},
		{Status: ledger.StatusBroadcast},
		{Status: ledger.StatusBroadcast},
		{Status: ledger.StatusBroadcast},
		{Status: ledger.StatusInBlock, BlockHash: "0xb1"},
	}}
	client, _ := dial(t, node, wsgateway.WithSubscriptionBuffer(1))

	sub, err := client.Submit(context.Background(), signedBatch(t))
	require.NoError(t, err)

	// Let every status arrive before anything is consumed.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := ledger.Watch(ctx, sub, client)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusInBlock, res.Status)
	assert.Equal(t, "0xb1", res.BlockHash)
}
