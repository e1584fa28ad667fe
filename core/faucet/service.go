package faucet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/faucet/core/ledger"
	"github.com/dmitrymomot/faucet/core/logger"
	"github.com/dmitrymomot/faucet/core/queue"
	"github.com/dmitrymomot/faucet/pkg/async"
	"github.com/dmitrymomot/faucet/pkg/ratelimiter"
)

// AddressScope is the rate limit scope shared by all surfaces for destinations.
const AddressScope = "address"

// DefaultChannelKind is used as the identity scope when a request carries no kind.
const DefaultChannelKind = "default"

// TaskQueue is the producer side of the disbursement queue.
type TaskQueue interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) (uuid.UUID, error)
	PendingCount(ctx context.Context) (int, error)
}

// RateLimiter is the subset of *ratelimiter.Limiter used by Service.
type RateLimiter interface {
	Count(ctx context.Context, key string) (int, error)
	Reserve(ctx context.Context, window ratelimiter.Window, reservations ...ratelimiter.Reservation) ([]int, error)
	Release(ctx context.Context, keys ...string) error
}

// Service admits disbursement requests into the queue.
type Service struct {
	strategies Strategies
	queue      TaskQueue
	limiter    RateLimiter
	results    *Results

	gateway ledger.Gateway
	account string

	maxPending int
	precision  int32
	logger     *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxPending sets the admission cap. A request is refused once the
// number of unclaimed tasks reaches n.
func WithMaxPending(n int) ServiceOption {
	return func(s *Service) {
		if n >= 0 {
			s.maxPending = n
		}
	}
}

// WithPrecision sets the decimal places of the ledger base unit.
func WithPrecision(p int32) ServiceOption {
	return func(s *Service) {
		if p >= 0 {
			s.precision = p
		}
	}
}

// WithGateway enables balance and chain queries for the faucet account.
func WithGateway(gateway ledger.Gateway, account string) ServiceOption {
	return func(s *Service) {
		s.gateway = gateway
		s.account = account
	}
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// NewService creates a dispensing service.
func NewService(strategies Strategies, q TaskQueue, limiter RateLimiter, results *Results, opts ...ServiceOption) (*Service, error) {
	if len(strategies) == 0 {
		return nil, ErrNoStrategies
	}
	if q == nil {
		return nil, ErrQueueNil
	}
	if limiter == nil {
		return nil, ErrLimiterNil
	}
	if results == nil {
		return nil, ErrResultsNil
	}

	s := &Service{
		strategies: strategies,
		queue:      q,
		limiter:    limiter,
		results:    results,
		maxPending: 100,
		precision:  12,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dispense validates the request, reserves its rate limit allowance and
// queues the disbursement. The returned future resolves once the ledger
// outcome is known; every error returned directly is a *Error and leaves
// no counter or task behind.
func (s *Service) Dispense(ctx context.Context, req Request) (*async.Future[Receipt], error) {
	identity := req.identity()

	strategy, ok := s.strategies[req.Strategy]
	if !ok {
		return nil, &Error{Code: CodeUnknownStrategy, Identity: identity, Reason: req.Strategy}
	}

	pending, err := s.queue.PendingCount(ctx)
	if err != nil {
		return nil, newError(CodeQueueSaturated, identity, err)
	}
	if pending >= s.maxPending {
		return nil, &Error{Code: CodeQueueSaturated, Identity: identity, Reason: fmt.Sprintf("%d tasks pending", pending)}
	}

	scope := req.Channel.Kind()
	if scope == "" {
		scope = DefaultChannelKind
	}
	reservations := []ratelimiter.Reservation{
		{Key: ratelimiter.Key(scope, identity), Limit: strategy.Limit},
		{Key: ratelimiter.Key(AddressScope, req.Destination), Limit: strategy.addressLimit()},
	}
	for _, r := range reservations {
		n, err := s.limiter.Count(ctx, r.Key)
		if err != nil {
			return nil, newError(CodeLimitCheckFailed, identity, err)
		}
		if n >= r.Limit {
			return nil, &Error{Code: CodeLimitExceeded, Identity: identity, Reason: r.Key}
		}
	}

	transfers, err := s.transfers(strategy, req.Destination)
	if err != nil {
		return nil, newError(CodeMalformedTransaction, identity, err)
	}
	if _, err := ledger.NewBatch(transfers); err != nil {
		return nil, newError(CodeMalformedTransaction, identity, err)
	}

	if _, err := s.limiter.Reserve(ctx, strategy.Window, reservations...); err != nil {
		if errors.Is(err, ratelimiter.ErrRateLimitExceeded) {
			return nil, &Error{Code: CodeLimitExceeded, Identity: identity, Err: err}
		}
		return nil, newError(CodeLimitUpdateFailed, identity, err)
	}

	id := uuid.New()
	future := s.results.Add(id)

	task := QueuedTask{Transfers: transfers, Channel: req.Channel}
	if _, err := s.queue.Enqueue(ctx, task, queue.WithTaskID(id)); err != nil {
		s.results.Drop(id)
		keys := make([]string, len(reservations))
		for i, r := range reservations {
			keys[i] = r.Key
		}
		if rerr := s.limiter.Release(context.WithoutCancel(ctx), keys...); rerr != nil {
			s.logger.ErrorContext(ctx, "failed to roll back rate limit after enqueue failure",
				logger.Identity(identity),
				logger.Error(rerr))
		}
		return nil, newError(CodeTaskInsertFailed, identity, err)
	}

	s.logger.InfoContext(ctx, "disbursement queued",
		logger.TaskID(id.String()),
		logger.Identity(identity),
		logger.Strategy(strategy.Name),
		logger.Type(scope))

	return future, nil
}

func (s *Service) transfers(strategy Strategy, dest string) ([]ledger.Transfer, error) {
	transfers := make([]ledger.Transfer, 0, len(strategy.Transfers))
	for _, a := range strategy.Transfers {
		amount, err := ToBaseUnits(a.Amount, s.precision)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Asset, err)
		}
		transfers = append(transfers, ledger.Transfer{Asset: a.Asset, Amount: amount, Dest: dest})
	}
	return transfers, nil
}

// Strategies returns the configured strategies.
func (s *Service) Strategies() Strategies {
	return s.strategies
}

// Balances returns the free balances of the faucet account.
func (s *Service) Balances(ctx context.Context) ([]ledger.Balance, error) {
	if s.gateway == nil {
		return nil, ErrGatewayNotWired
	}
	balances, err := s.gateway.Balances(ctx, s.account)
	if err != nil {
		return nil, fmt.Errorf("query faucet balances: %w", err)
	}
	return balances, nil
}

// ChainName returns the name of the connected chain.
func (s *Service) ChainName(ctx context.Context) (string, error) {
	if s.gateway == nil {
		return "", ErrGatewayNotWired
	}
	return s.gateway.ChainName(ctx)
}
