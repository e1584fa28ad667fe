package wsgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/faucet/core/ledger"
	"github.com/dmitrymomot/faucet/core/logger"
)

// JSON-RPC methods exposed by the node.
const (
	MethodSubmitAndWatch = "author_submitAndWatchBatch"
	MethodUnwatch        = "author_unwatchBatch"
	MethodBatchStatus    = "author_batchStatus"
	MethodChain          = "system_chain"
	MethodBalances       = "faucet_balances"
	MethodMetaError      = "state_metaError"
)

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// message is either a response (ID set) or a notification (Method set).
type message struct {
	ID     *uint64         `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

type notification struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type pendingCall struct {
	done chan message
	// sub is registered under the returned subscription id before the
	// response is delivered, so no notification can be missed.
	sub *subscription
}

// link is one websocket connection. Pending calls and subscriptions belong
// to the link they were made on and end with it.
type link struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	pending map[uint64]*pendingCall
	subs    map[string]*subscription
	closed  chan struct{}
}

// Client is a ledger.Gateway and ledger.ErrorDecoder speaking JSON-RPC 2.0
// over a websocket connection. A dropped connection is redialed with
// exponential backoff until Close is called.
type Client struct {
	url    string
	dialer websocket.Dialer
	logger *slog.Logger

	requestTimeout time.Duration
	subBuffer      int
	reconnectMin   time.Duration
	reconnectMax   time.Duration

	nextID atomic.Uint64

	mu      sync.Mutex
	current *link         // nil while reconnecting
	ready   chan struct{} // closed while current is set
	lastErr error
	shut    bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// Dial connects to the node at url. The first connection attempt is not
// retried; later drops are.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}

	c := &Client{
		url:            url,
		dialer:         websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		requestTimeout: 30 * time.Second,
		subBuffer:      32,
		reconnectMin:   500 * time.Millisecond,
		reconnectMax:   30 * time.Second,
		ready:          make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	ws, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Join(ErrDialFailed, err)
	}
	c.attach(ws)

	c.logger.InfoContext(ctx, "connected to ledger node", slog.String("url", url))
	return c, nil
}

// NewFromConfig dials the node described by cfg.
func NewFromConfig(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	allOpts := append([]Option{
		WithRequestTimeout(cfg.RequestTimeout),
		WithHandshakeTimeout(cfg.HandshakeTimeout),
		WithReconnectBackoff(cfg.ReconnectMin, cfg.ReconnectMax),
	}, opts...)
	return Dial(ctx, cfg.URL, allOpts...)
}

// Submit sends the signed batch and subscribes to its status updates.
// While the client is reconnecting it waits for the connection, bounded by ctx.
func (c *Client) Submit(ctx context.Context, batch *ledger.SignedBatch) (ledger.Subscription, error) {
	sub := &subscription{
		client: c,
		events: make(chan ledger.Event, c.subBuffer),
		quit:   make(chan struct{}),
	}

	var id string
	if err := c.call(ctx, MethodSubmitAndWatch, []any{batch}, &id, sub); err != nil {
		c.forget(sub)
		return nil, fmt.Errorf("%w: %w", ledger.ErrSubmissionFailed, err)
	}
	return sub, nil
}

// Balances returns the free balances of account.
func (c *Client) Balances(ctx context.Context, account string) ([]ledger.Balance, error) {
	var balances []ledger.Balance
	if err := c.call(ctx, MethodBalances, []any{account}, &balances, nil); err != nil {
		return nil, err
	}
	return balances, nil
}

// ChainName returns the name of the connected chain.
func (c *Client) ChainName(ctx context.Context) (string, error) {
	var name string
	if err := c.call(ctx, MethodChain, []any{}, &name, nil); err != nil {
		return "", err
	}
	return name, nil
}

// FindMetaError resolves a module error through the node metadata.
func (c *Client) FindMetaError(ctx context.Context, e ledger.ModuleError) (string, string, error) {
	var meta struct {
		Section string `json:"section"`
		Name    string `json:"name"`
	}
	if err := c.call(ctx, MethodMetaError, []any{e.Index, e.Error}, &meta, nil); err != nil {
		return "", "", err
	}
	return meta.Section, meta.Name, nil
}

// Healthcheck reports whether a connection is currently open.
func (c *Client) Healthcheck(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.shut:
		return errors.Join(ErrHealthcheckFailed, ErrClientClosed)
	case c.current == nil:
		return errors.Join(ErrHealthcheckFailed, ErrNotConnected, c.lastErr)
	default:
		return nil
	}
}

// Close shuts the connection down, stops reconnecting and ends all
// subscriptions.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.shut {
		c.mu.Unlock()
		return nil
	}
	c.shut = true
	close(c.done)
	l := c.current
	c.mu.Unlock()

	var err error
	if l != nil {
		l.writeMu.Lock()
		_ = l.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		l.writeMu.Unlock()
		err = l.ws.Close()
	}

	c.wg.Wait()
	return err
}

// attach makes ws the current connection and starts its reader. It reports
// false when the client was closed meanwhile.
func (c *Client) attach(ws *websocket.Conn) bool {
	l := &link{
		ws:      ws,
		pending: make(map[uint64]*pendingCall),
		subs:    make(map[string]*subscription),
		closed:  make(chan struct{}),
	}

	c.mu.Lock()
	if c.shut {
		c.mu.Unlock()
		_ = ws.Close()
		return false
	}
	c.current = l
	c.lastErr = nil
	close(c.ready)
	c.wg.Add(1)
	c.mu.Unlock()

	go c.readLoop(l)
	return true
}

// detach ends everything bound to l and starts reconnecting unless the
// client is closing. Runs on the reader goroutine of l.
func (c *Client) detach(l *link, err error) {
	c.mu.Lock()
	for id, sub := range l.subs {
		close(sub.events)
		delete(l.subs, id)
	}
	close(l.closed)
	c.current = nil
	c.ready = make(chan struct{})
	c.lastErr = err
	shut := c.shut
	if !shut {
		c.wg.Add(1)
	}
	c.mu.Unlock()

	if shut {
		return
	}

	_ = l.ws.Close()
	c.logger.Warn("ledger connection lost, reconnecting", logger.Error(err))
	go c.reconnect()
}

func (c *Client) reconnect() {
	defer c.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	attempt := 0
	backoff := retry.WithCappedDuration(c.reconnectMax, retry.NewExponential(c.reconnectMin))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.mu.Lock()
			c.lastErr = err
			c.mu.Unlock()
			c.logger.Debug("ledger redial failed", logger.Count("attempt", attempt), logger.Error(err))
			return retry.RetryableError(err)
		}
		if c.attach(ws) {
			c.logger.Info("reconnected to ledger node", logger.Count("attempt", attempt))
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		c.logger.Error("ledger reconnect gave up", logger.Error(err))
	}
}

// connected returns the open connection, waiting for a reconnect if needed.
func (c *Client) connected(ctx context.Context) (*link, error) {
	for {
		c.mu.Lock()
		if c.shut {
			c.mu.Unlock()
			return nil, ErrClientClosed
		}
		if c.current != nil {
			l := c.current
			c.mu.Unlock()
			return l, nil
		}
		ready := c.ready
		c.mu.Unlock()

		select {
		case <-ready:
		case <-c.done:
			return nil, ErrClientClosed
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrNotConnected, ctx.Err())
		}
	}
}

func (c *Client) call(ctx context.Context, method string, params, result any, sub *subscription) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	l, err := c.connected(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return c.callOn(ctx, l, method, params, result, sub)
}

// callOn sends the request over l and waits for its response.
func (c *Client) callOn(ctx context.Context, l *link, method string, params, result any, sub *subscription) error {
	id := c.nextID.Add(1)
	pc := &pendingCall{done: make(chan message, 1), sub: sub}

	c.mu.Lock()
	select {
	case <-l.closed:
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", method, ErrConnectionClosed)
	default:
	}
	if sub != nil {
		sub.link = l
	}
	l.pending[id] = pc
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(l.pending, id)
		c.mu.Unlock()
	}()

	l.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = l.ws.SetWriteDeadline(deadline)
	}
	err := l.ws.WriteJSON(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	l.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	case <-l.closed:
		return fmt.Errorf("%s: %w", method, ErrConnectionClosed)
	case msg := <-pc.done:
		if msg.Error != nil {
			return fmt.Errorf("%s: %w", method, msg.Error)
		}
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(msg.Result, result); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, method, err)
		}
		return nil
	}
}

func (c *Client) readLoop(l *link) {
	defer c.wg.Done()

	var err error
	defer func() { c.detach(l, err) }()

	for {
		var msg message
		if err = l.ws.ReadJSON(&msg); err != nil {
			return
		}

		switch {
		case msg.ID != nil:
			c.dispatchResponse(l, *msg.ID, msg)
		case msg.Method == MethodBatchStatus:
			c.dispatchNotification(l, msg.Params)
		default:
			c.logger.Debug("ignoring unexpected message", slog.String("method", msg.Method))
		}
	}
}

func (c *Client) dispatchResponse(l *link, id uint64, msg message) {
	c.mu.Lock()
	pc, ok := l.pending[id]
	if ok && pc.sub != nil && msg.Error == nil {
		var subID string
		if json.Unmarshal(msg.Result, &subID) == nil && subID != "" {
			pc.sub.id = subID
			l.subs[subID] = pc.sub
		}
	}
	c.mu.Unlock()

	if ok {
		pc.done <- msg
	}
}

// dispatchNotification hands a status update to its subscription. When the
// buffer is full, intermediate statuses are dropped while terminal ones
// wait for the consumer up to the request timeout.
func (c *Client) dispatchNotification(l *link, raw json.RawMessage) {
	var n notification
	if err := json.Unmarshal(raw, &n); err != nil {
		c.logger.Warn("undecodable notification", logger.Error(err))
		return
	}

	var ev ledger.Event
	if err := json.Unmarshal(n.Result, &ev); err != nil {
		c.logger.Warn("undecodable batch status", slog.String("subscription", n.Subscription), logger.Error(err))
		return
	}

	c.mu.Lock()
	sub, ok := l.subs[n.Subscription]
	c.mu.Unlock()
	if !ok {
		return
	}

	select {
	case sub.events <- ev:
		return
	case <-sub.quit:
		return
	default:
	}

	if !ev.Status.Terminal() {
		c.logger.Debug("batch status buffer full, intermediate status skipped",
			slog.String("subscription", n.Subscription),
			slog.String("status", string(ev.Status)))
		return
	}

	timer := time.NewTimer(c.requestTimeout)
	defer timer.Stop()

	select {
	case sub.events <- ev:
	case <-sub.quit:
	case <-timer.C:
		c.logger.Warn("terminal batch status not consumed",
			slog.String("subscription", n.Subscription),
			slog.String("status", string(ev.Status)))
	}
}

// forget detaches sub from its connection. Its event channel is closed
// only by the connection reader, so a concurrent delivery never hits a
// closed channel.
func (c *Client) forget(sub *subscription) {
	c.mu.Lock()
	if sub.link != nil {
		if s, ok := sub.link.subs[sub.id]; ok && s == sub {
			delete(sub.link.subs, sub.id)
		}
	}
	c.mu.Unlock()

	sub.stop.Do(func() { close(sub.quit) })
}

type subscription struct {
	client *Client
	link   *link
	id     string
	events chan ledger.Event
	quit   chan struct{}
	stop   sync.Once
	once   sync.Once
}

func (s *subscription) Events() <-chan ledger.Event {
	return s.events
}

// Unsubscribe stops the node from sending further updates. It is safe to
// call more than once. The request goes over the connection the
// subscription was made on; after a reconnect there is nothing to cancel.
func (s *subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		s.client.forget(s)

		s.client.mu.Lock()
		l := s.link
		s.client.mu.Unlock()
		if l == nil {
			return
		}
		select {
		case <-l.closed:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.client.requestTimeout)
		defer cancel()

		var ok bool
		err = s.client.callOn(ctx, l, MethodUnwatch, []any{s.id}, &ok, nil)
	})
	return err
}
