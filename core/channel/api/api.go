package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/faucet/core/channel"
	"github.com/dmitrymomot/faucet/core/faucet"
	"github.com/dmitrymomot/faucet/core/health"
	"github.com/dmitrymomot/faucet/core/logger"
)

// Kind tags requests that arrive through the HTTP endpoint.
const Kind = "api"

const maxBodyBytes = 1 << 16

// FaucetRequest is the body of POST /faucet.
type FaucetRequest struct {
	Address  string `json:"address"`
	Account  string `json:"account"`
	Strategy string `json:"strategy"`
}

// API serves the HTTP endpoint.
type API struct {
	dispenser   channel.Dispenser
	messages    *faucet.Messages
	logger      *slog.Logger
	waitTimeout time.Duration
	checks      []health.Check
}

// Option configures the API.
type Option func(*API)

// WithLogger sets the request logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		if log != nil {
			a.logger = log
		}
	}
}

// WithWaitTimeout bounds how long POST /faucet waits for the disbursement
// outcome. Keep it above the ledger watch timeout.
func WithWaitTimeout(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.waitTimeout = d
		}
	}
}

// WithReadinessChecks sets the dependency checks behind /health/ready.
func WithReadinessChecks(checks ...health.Check) Option {
	return func(a *API) {
		a.checks = append(a.checks, checks...)
	}
}

// New creates the HTTP endpoint.
func New(dispenser channel.Dispenser, messages *faucet.Messages, opts ...Option) (*API, error) {
	if dispenser == nil {
		return nil, ErrDispenserNil
	}
	if messages == nil {
		return nil, ErrMessagesNil
	}

	a := &API{
		dispenser:   dispenser,
		messages:    messages,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		waitTimeout: 3 * time.Minute,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Router returns the chi router with all endpoints mounted.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", a.handle(a.ping))
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness(a.logger, a.checks...))
	r.Get("/balances", a.handle(a.balances))
	r.Post("/faucet", a.handle(a.faucet))

	return r
}

func (a *API) handle(fn func(r *http.Request) response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r)(w, r); err != nil {
			a.logger.ErrorContext(r.Context(), "failed to write response",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Error(err))
		}
	}
}

func (a *API) ping(r *http.Request) response {
	return textResponse("pong!")
}

func (a *API) balances(r *http.Request) response {
	balances, err := a.dispenser.Balances(r.Context())
	if err != nil {
		a.logger.ErrorContext(r.Context(), "balance query failed", logger.Error(err))
		return errorResponse(statusOf(err), a.messages.RenderError(err, faucet.MessageData{}))
	}
	return jsonResponse(balances, http.StatusOK)
}

func (a *API) faucet(r *http.Request) response {
	var body FaucetRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		return errorResponse(http.StatusBadRequest, ErrInvalidBody.Error())
	}
	if body.Address == "" {
		return errorResponse(http.StatusBadRequest, ErrAddressRequired.Error())
	}
	if body.Account == "" {
		return errorResponse(http.StatusBadRequest, ErrAccountRequired.Error())
	}
	if body.Strategy == "" {
		body.Strategy = channel.DefaultStrategy
	}

	data := faucet.MessageData{Account: body.Account, Address: body.Address, Strategy: body.Strategy}

	future, err := a.dispenser.Dispense(r.Context(), faucet.Request{
		Identity:    body.Account,
		Destination: body.Address,
		Strategy:    body.Strategy,
		Channel:     faucet.Channel{faucet.ChannelKindKey: Kind, "account": body.Account},
	})
	if err != nil {
		return a.failure(r.Context(), err, data)
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.waitTimeout)
	defer cancel()

	receipt, err := future.AwaitContext(ctx)
	if err != nil {
		if ctx.Err() != nil && !errors.As(err, new(*faucet.Error)) {
			// The disbursement keeps going; only this caller stops waiting.
			err = &faucet.Error{Code: faucet.CodeLedgerTimeout, Identity: body.Account, Reason: "timeout", Err: err}
		}
		return a.failure(r.Context(), err, data)
	}

	return jsonResponse(Response{Code: http.StatusOK, TxHash: receipt.TxHash}, http.StatusOK)
}

func (a *API) failure(ctx context.Context, err error, data faucet.MessageData) response {
	status := statusOf(err)
	a.logger.WarnContext(ctx, "faucet request failed",
		logger.RequestID(middleware.GetReqID(ctx)),
		logger.Identity(data.Account),
		logger.Address(data.Address),
		logger.Strategy(data.Strategy),
		logger.StatusCode(status),
		logger.Error(err))
	return errorResponse(status, a.messages.RenderError(err, data))
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		a.logger.InfoContext(r.Context(), "http request",
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.StatusCode(ww.Status()),
			logger.ClientIP(r.RemoteAddr),
			logger.Latency(time.Since(start)))
	})
}
