package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/zapbotio/zapbot/internal/buffer"
	"github.com/zapbotio/zapbot/internal/config"
	"github.com/zapbotio/zapbot/internal/handlers"
	"github.com/zapbotio/zapbot/internal/history"
	"github.com/zapbotio/zapbot/internal/logger"
	"github.com/zapbotio/zapbot/internal/redisstore"
	"github.com/zapbotio/zapbot/internal/responder"
	"github.com/zapbotio/zapbot/internal/server"
	"github.com/zapbotio/zapbot/internal/waha"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideRedis,
			provideBufferStore,
			provideHistoryStore,
			provideHistoryService,
			provideWahaClient,
			provideResponder,
			buffer.NewRegistry,
			provideSettler,
			provideScheduler,
			provideBufferService,
			provideServerHandler(provideAuthHandler),
			provideServerHandler(providePingHandler),
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(provideBufferHandler),
			provideServerHandler(provideHistoryHandler),
			provideServer,
		),
		fx.Invoke(
			startSweeper,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideRedis(lc fx.Lifecycle, cfg config.Config) (*redis.Client, error) {
	client, err := redisstore.Open(context.Background(), cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return client.Close() }})
	return client, nil
}

func provideBufferStore(client *redis.Client, cfg config.Config) buffer.Store {
	return redisstore.NewBufferStore(client, cfg.Buffer.KeySuffix)
}

func provideHistoryStore(client *redis.Client) *redisstore.HistoryStore {
	return redisstore.NewHistoryStore(client)
}

func provideHistoryService(log *slog.Logger, store *redisstore.HistoryStore, cfg config.Config) *history.Service {
	return history.NewService(log, store, cfg.History.MaxMessages, config.Duration(cfg.History.TTL))
}

func provideWahaClient(log *slog.Logger, cfg config.Config) *waha.Client {
	return waha.NewClient(log, cfg.Waha)
}

func provideResponder(log *slog.Logger, cfg config.Config) *responder.OpenAI {
	return responder.NewOpenAI(log, cfg.OpenAI)
}

func provideSettler(log *slog.Logger, store buffer.Store, gateway *waha.Client, openAI *responder.OpenAI, historyService *history.Service, cfg config.Config) *buffer.Settler {
	var provider buffer.HistoryProvider
	switch cfg.History.Mode {
	case config.HistoryModeGateway:
		provider = &gatewayHistoryProvider{gateway: gateway}
	default:
		provider = &storeHistoryProvider{service: historyService}
	}

	settler := buffer.NewSettler(log, store, gateway, &responderAdapter{inner: openAI},
		provider, cfg.History.ContextLimit, config.Duration(cfg.Buffer.ClaimTTL))
	if cfg.History.Mode == config.HistoryModeStore {
		settler.SetRecorder(historyService)
	}
	return settler
}

func provideScheduler(lc fx.Lifecycle, log *slog.Logger, registry *buffer.Registry, settler *buffer.Settler, cfg config.Config) *buffer.Scheduler {
	// A settlement spans one generation call plus up to three gateway calls.
	timeout := config.Duration(cfg.OpenAI.Timeout) + 3*config.Duration(cfg.Waha.Timeout)
	scheduler := buffer.NewScheduler(log, config.Duration(cfg.Buffer.DebounceWindow), registry, func(key string) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := settler.Settle(ctx, key); err != nil {
			log.Error("settlement failed", slog.String("chat_id", key), slog.Any("error", err))
		}
	})
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { scheduler.Stop(); return nil }})
	return scheduler
}

func provideBufferService(log *slog.Logger, store buffer.Store, scheduler *buffer.Scheduler, registry *buffer.Registry, cfg config.Config) *buffer.Service {
	return buffer.NewService(log, store, scheduler, registry, config.Duration(cfg.Buffer.TTL))
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log)
}

func provideWebhookHandler(log *slog.Logger, service *buffer.Service) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, service)
}

func provideBufferHandler(log *slog.Logger, service *buffer.Service) *handlers.BufferHandler {
	return handlers.NewBufferHandler(log, service)
}

func provideHistoryHandler(log *slog.Logger, service *history.Service) *handlers.HistoryHandler {
	return handlers.NewHistoryHandler(log, service)
}

func provideAuthHandler(log *slog.Logger, cfg config.Config) (*handlers.AuthHandler, error) {
	return handlers.NewAuthHandler(log, cfg.Admin.Username, cfg.Admin.Password,
		cfg.Auth.JWTSecret, config.Duration(cfg.Auth.JWTExpiresIn))
}

type serverParams struct {
	fx.In
	Logger   *slog.Logger
	Config   config.Config
	Handlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.Handlers)
}

func startSweeper(lc fx.Lifecycle, service *buffer.Service, cfg config.Config) {
	interval := config.Duration(cfg.Buffer.SweepInterval)
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						service.Sweep()
					case <-done:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error { close(done); return nil },
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

// responderAdapter bridges the buffer core's Responder port to the OpenAI
// implementation.
type responderAdapter struct {
	inner *responder.OpenAI
}

func (a *responderAdapter) Respond(ctx context.Context, question string, turns []buffer.Turn) (string, error) {
	converted := make([]responder.Turn, len(turns))
	for i, turn := range turns {
		converted[i] = responder.Turn{Role: turn.Role, Text: turn.Text}
	}
	return a.inner.Respond(ctx, question, converted)
}

// storeHistoryProvider sources responder context from the Redis history log.
type storeHistoryProvider struct {
	service *history.Service
}

func (p *storeHistoryProvider) Recent(ctx context.Context, key string, limit int) ([]buffer.Turn, error) {
	turns, err := p.service.Recent(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	out := make([]buffer.Turn, len(turns))
	for i, turn := range turns {
		out[i] = buffer.Turn{Role: turn.Role, Text: turn.Text}
	}
	return out, nil
}

// gatewayHistoryProvider sources responder context from WAHA's own chat
// history instead of the local log.
type gatewayHistoryProvider struct {
	gateway *waha.Client
}

func (p *gatewayHistoryProvider) Recent(ctx context.Context, key string, limit int) ([]buffer.Turn, error) {
	messages, err := p.gateway.RecentMessages(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	out := make([]buffer.Turn, 0, len(messages))
	for _, msg := range messages {
		role := buffer.RoleUser
		if msg.FromMe {
			role = buffer.RoleAssistant
		}
		out = append(out, buffer.Turn{Role: role, Text: msg.Body})
	}
	return out, nil
}
