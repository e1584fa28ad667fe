package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/faucet/core/channel"
	"github.com/dmitrymomot/faucet/core/channel/api"
	"github.com/dmitrymomot/faucet/core/channel/discord"
	"github.com/dmitrymomot/faucet/core/config"
	"github.com/dmitrymomot/faucet/core/faucet"
	"github.com/dmitrymomot/faucet/core/ledger"
	"github.com/dmitrymomot/faucet/core/ledger/wsgateway"
	"github.com/dmitrymomot/faucet/core/logger"
	"github.com/dmitrymomot/faucet/core/queue"
	"github.com/dmitrymomot/faucet/core/server"
)

const serviceName = "faucet"

type appConfig struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"` // overrides the level implied by APP_ENV

	LimiterBackend string `env:"RATELIMIT_BACKEND" envDefault:"memory"` // memory or redis
	LimiterPrefix  string `env:"RATELIMIT_REDIS_PREFIX" envDefault:"faucet:limit:"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("faucet stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		appCfg     appConfig
		faucetCfg  faucet.Config
		queueCfg   queue.Config
		ledgerCfg  wsgateway.Config
		serverCfg  server.Config
		discordCfg discord.Config
	)
	if err := errors.Join(
		config.Load(&appCfg),
		config.Load(&faucetCfg),
		config.Load(&queueCfg),
		config.Load(&ledgerCfg),
		config.Load(&serverCfg),
		config.Load(&discordCfg),
	); err != nil {
		return err
	}

	log := newLogger(appCfg)
	logger.SetAsDefault(log)

	file, err := faucet.LoadFile(faucetCfg.StrategiesFile)
	if err != nil {
		return err
	}
	messages, err := faucet.NewMessages(file.Messages)
	if err != nil {
		return err
	}

	signer, err := ledger.NewEd25519Signer(faucetCfg.SignerSeed)
	if err != nil {
		return err
	}

	gateway, err := wsgateway.NewFromConfig(ctx, ledgerCfg, wsgateway.WithLogger(log.With(logger.Component("ledger"))))
	if err != nil {
		return err
	}
	defer gateway.Close()

	if chain, err := gateway.ChainName(ctx); err != nil {
		log.WarnContext(ctx, "failed to query chain name", logger.Error(err))
	} else {
		log.InfoContext(ctx, "connected to ledger",
			slog.String("chain", chain),
			slog.String("account", signer.Address()))
	}

	g, ctx := errgroup.WithContext(ctx)

	backends, err := openBackends(ctx, appCfg, queueCfg, log)
	if err != nil {
		return err
	}
	defer backends.close()
	for _, fn := range backends.runners {
		g.Go(fn(ctx))
	}

	results := faucet.NewResults()
	notifications := faucet.NewNotifications(log.With(logger.Component("notifications")))

	enqueuer, err := queue.NewEnqueuerFromConfig(queueCfg, backends.queue)
	if err != nil {
		return err
	}
	service, err := faucet.NewService(file.Strategies, enqueuer, backends.limiter, results,
		append(faucetCfg.ServiceOptions(),
			faucet.WithGateway(gateway, signer.Address()),
			faucet.WithServiceLogger(log.With(logger.Component("service"))))...)
	if err != nil {
		return err
	}

	disburser, err := faucet.NewDisburser(gateway, signer, results, notifications,
		append(faucetCfg.DisburserOptions(),
			faucet.WithDisburserLogger(log.With(logger.Component("disburser"))))...)
	if err != nil {
		return err
	}

	// The queue lock must outlive the longest ledger watch.
	if queueCfg.TaskTimeout <= faucetCfg.WatchTimeout {
		queueCfg.TaskTimeout = 2 * faucetCfg.WatchTimeout
	}
	worker, err := queue.NewWorkerFromConfig(queueCfg, backends.queue,
		queue.WithFailureHook(disburser.TaskFailed),
		queue.WithWorkerLogger(log.With(logger.Component("worker"))))
	if err != nil {
		return err
	}
	if err := worker.RegisterHandler(disburser.Handler()); err != nil {
		return err
	}
	g.Go(worker.Run(ctx))

	httpAPI, err := api.New(service, messages,
		api.WithLogger(log.With(logger.Component("api"))),
		// Answer before the server's write deadline cuts the connection.
		api.WithWaitTimeout(serverCfg.WriteTimeout-time.Second),
		api.WithReadinessChecks(append(backends.checks, gateway.Healthcheck, worker.Healthcheck)...))
	if err != nil {
		return err
	}
	notifications.Register(api.Kind, faucet.NotifierFunc(func(ctx context.Context, ch faucet.Channel, amount, txHash string) error {
		log.InfoContext(ctx, "api disbursement delivered",
			logger.Identity(ch["account"]),
			logger.TxHash(txHash),
			slog.String("amount", amount))
		return nil
	}))

	srv, err := server.NewFromConfig(serverCfg, server.WithLogger(log.With(logger.Component("http"))))
	if err != nil {
		return err
	}
	g.Go(srv.Run(ctx, httpAPI.Router()))

	if discordCfg.Enabled() {
		bot, err := newDiscordBot(discordCfg, service, messages, log.With(logger.Component("discord")))
		if err != nil {
			return err
		}
		notifications.Register(discord.Kind, bot)
		g.Go(bot.Run(ctx))
	}

	log.InfoContext(ctx, "faucet started",
		slog.String("queue_backend", queueCfg.Backend),
		slog.String("limiter_backend", appCfg.LimiterBackend),
		slog.Any("strategies", file.Strategies.Names()),
		slog.Bool("discord", discordCfg.Enabled()))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newDiscordBot(cfg discord.Config, service *faucet.Service, messages *faucet.Messages, log *slog.Logger) (*discord.Bot, error) {
	session, err := discord.NewSession(cfg.Token)
	if err != nil {
		return nil, err
	}
	handler, err := channel.NewHandler(discord.Kind, service, messages, channel.WithHandlerLogger(log))
	if err != nil {
		return nil, err
	}
	return discord.New(cfg, session, handler, messages, discord.WithLogger(log))
}

func newLogger(cfg appConfig) *slog.Logger {
	var opts []logger.Option
	switch cfg.Env {
	case "production":
		opts = append(opts, logger.WithProduction(serviceName))
	case "staging":
		opts = append(opts, logger.WithStaging(serviceName))
	default:
		opts = append(opts, logger.WithDevelopment(serviceName))
	}

	var level slog.Level
	if cfg.LogLevel != "" && level.UnmarshalText([]byte(cfg.LogLevel)) == nil {
		opts = append(opts, logger.WithLevel(level))
	}
	return logger.New(opts...)
}

func unknownBackend(kind, name string) error {
	return fmt.Errorf("unknown %s backend %q", kind, name)
}
