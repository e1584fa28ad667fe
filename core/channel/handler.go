package channel

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"strings"

	"github.com/dmitrymomot/faucet/core/faucet"
	"github.com/dmitrymomot/faucet/core/ledger"
	"github.com/dmitrymomot/faucet/core/logger"
	"github.com/dmitrymomot/faucet/pkg/async"
)

// Dispenser is the part of faucet.Service a surface talks to.
type Dispenser interface {
	Dispense(ctx context.Context, req faucet.Request) (*async.Future[faucet.Receipt], error)
	Balances(ctx context.Context) ([]ledger.Balance, error)
}

// Message is an inbound chat message.
type Message struct {
	// Account identifies the author on the surface and is the rate limited identity.
	Account string
	Text    string
	// Route is copied into the request channel so the surface's notifier
	// can find its way back, e.g. a channel id.
	Route map[string]string
}

// Handler executes chat commands for one surface kind.
type Handler struct {
	kind      string
	dispenser Dispenser
	messages  *faucet.Messages
	logger    *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the handler logger.
func WithHandlerLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.logger = log
		}
	}
}

// NewHandler creates a command handler for the surface kind.
func NewHandler(kind string, dispenser Dispenser, messages *faucet.Messages, opts ...HandlerOption) (*Handler, error) {
	if kind == "" {
		return nil, ErrEmptyKind
	}
	if dispenser == nil {
		return nil, ErrDispenserNil
	}
	if messages == nil {
		return nil, ErrMessagesNil
	}

	h := &Handler{
		kind:      kind,
		dispenser: dispenser,
		messages:  messages,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Kind returns the surface kind requests are tagged with.
func (h *Handler) Kind() string {
	return h.kind
}

// Handle runs the command in msg and returns the reply to post.
// It reports false when there is nothing to reply: the message is not a
// command, or a drip was accepted and the outcome arrives via the notifier.
func (h *Handler) Handle(ctx context.Context, msg Message) (string, bool) {
	cmd, ok := Parse(msg.Text)
	if !ok {
		return "", false
	}

	switch cmd.Name {
	case CommandFaucet:
		return h.messages.Render(faucet.MessageUsage, faucet.MessageData{Account: msg.Account}), true
	case CommandBalance:
		return h.balance(ctx, msg), true
	case CommandDrip:
		return h.drip(ctx, msg, cmd)
	}
	return "", false
}

func (h *Handler) balance(ctx context.Context, msg Message) string {
	balances, err := h.dispenser.Balances(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "balance query failed",
			logger.Type(h.kind),
			logger.Error(err))
		return h.messages.RenderError(err, faucet.MessageData{Account: msg.Account})
	}
	return h.messages.Render(faucet.MessageBalance, faucet.MessageData{
		Account: msg.Account,
		Balance: FormatBalances(balances),
	})
}

func (h *Handler) drip(ctx context.Context, msg Message, cmd Command) (string, bool) {
	address := cmd.Arg(0)
	if address == "" {
		return h.messages.Render(faucet.MessageUsage, faucet.MessageData{Account: msg.Account}), true
	}
	strategy := cmd.Arg(1)
	if strategy == "" {
		strategy = DefaultStrategy
	}

	ch := faucet.Channel{}
	maps.Copy(ch, msg.Route)
	ch[faucet.ChannelKindKey] = h.kind
	ch["account"] = msg.Account

	_, err := h.dispenser.Dispense(ctx, faucet.Request{
		Identity:    msg.Account,
		Destination: address,
		Strategy:    strategy,
		Channel:     ch,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "drip rejected",
			logger.Type(h.kind),
			logger.Identity(msg.Account),
			logger.Address(address),
			logger.Strategy(strategy),
			logger.Error(err))
		return h.messages.RenderError(err, faucet.MessageData{
			Account:  msg.Account,
			Address:  address,
			Strategy: strategy,
		}), true
	}

	h.logger.InfoContext(ctx, "drip queued",
		logger.Type(h.kind),
		logger.Identity(msg.Account),
		logger.Address(address),
		logger.Strategy(strategy))
	return "", false
}

// FormatBalances renders balances as "ACA: 1000, AUSD: 5".
func FormatBalances(balances []ledger.Balance) string {
	parts := make([]string, 0, len(balances))
	for _, b := range balances {
		parts = append(parts, b.Asset+": "+b.Free)
	}
	return strings.Join(parts, ", ")
}
