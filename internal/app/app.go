// Package app assembles the chat server from its parts.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/do/v2"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/trace"

	"github.com/nfrund/huddle/internal/config"
	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/handlers"
	"github.com/nfrund/huddle/internal/idgen"
	"github.com/nfrund/huddle/internal/logging"
	"github.com/nfrund/huddle/internal/presence"
	"github.com/nfrund/huddle/internal/pubsub"
	"github.com/nfrund/huddle/internal/roomlog"
	"github.com/nfrund/huddle/internal/router"
	"github.com/nfrund/huddle/internal/server"
	"github.com/nfrund/huddle/internal/session"
	"github.com/nfrund/huddle/internal/storage"
	"github.com/nfrund/huddle/internal/typing"
	"github.com/nfrund/huddle/internal/websocket"
)

// tracing owns the tracer provider so the injector can flush it on shutdown.
type tracing struct {
	tracer  trace.Tracer
	cleanup func()
}

func (t *tracing) Shutdown() { t.cleanup() }

// App is a fully wired server. Build it with New, then Start and Serve.
type App struct {
	Injector *do.RootScope
	Config   *config.Config
	Server   *server.Server
	Bridge   *websocket.Bridge
	Router   *router.Router
	Bus      *pubsub.WatermillBridge

	cancel context.CancelFunc
	logger *slog.Logger
}

// Option adjusts the container before anything is built.
type Option func(i do.Injector)

// WithFs replaces the in-memory filesystem holding file payloads.
func WithFs(fs afero.Fs) Option {
	return func(i do.Injector) { do.OverrideValue(i, fs) }
}

// WithTracing overrides the tracing configuration read from the environment.
func WithTracing(tc pubsub.TracingConfig) Option {
	return func(i do.Injector) { do.OverrideValue(i, tc) }
}

// New registers one provider per service and resolves the graph.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	i := do.New()
	do.ProvideValue(i, cfg)
	do.ProvideValue(i, pubsub.LoadTracingConfigFromEnv())
	do.ProvideValue[afero.Fs](i, afero.NewMemMapFs())

	do.Provide(i, func(i do.Injector) (*tracing, error) {
		tracer, cleanup, err := pubsub.SetupOTel(ctx, do.MustInvoke[pubsub.TracingConfig](i))
		if err != nil {
			return nil, fmt.Errorf("setup tracing: %w", err)
		}
		return &tracing{tracer: tracer, cleanup: cleanup}, nil
	})
	do.Provide(i, func(i do.Injector) (*pubsub.WatermillBridge, error) {
		return pubsub.NewWatermillBridgeWithTracer(do.MustInvoke[*tracing](i).tracer), nil
	})
	do.Provide(i, func(i do.Injector) (domain.Emitter, error) {
		return pubsub.NewBusEmitter(do.MustInvoke[*pubsub.WatermillBridge](i)), nil
	})
	do.Provide(i, func(i do.Injector) (storage.Store, error) {
		return storage.NewAferoStore(do.MustInvoke[afero.Fs](i)), nil
	})
	do.Provide(i, func(i do.Injector) (*idgen.Generator, error) {
		return idgen.NewFromClock(idgen.SystemClock{}), nil
	})
	do.Provide(i, func(i do.Injector) (*session.Registry, error) {
		return session.NewRegistry(), nil
	})
	do.Provide(i, func(i do.Injector) (*typing.Aggregator, error) {
		return typing.NewAggregator(), nil
	})
	do.Provide(i, provideRooms)
	do.Provide(i, func(i do.Injector) (*presence.Broadcaster, error) {
		return presence.NewBroadcaster(
			do.MustInvoke[*session.Registry](i),
			do.MustInvoke[*typing.Aggregator](i),
			do.MustInvoke[domain.Emitter](i),
			presence.WithIDs(do.MustInvoke[*idgen.Generator](i)),
		), nil
	})
	do.Provide(i, provideRouter)
	do.Provide(i, func(i do.Injector) (*websocket.Bridge, error) {
		c := do.MustInvoke[*config.Config](i)
		return websocket.NewBridge(do.MustInvoke[*router.Router](i),
			websocket.WithOriginPatterns(websocket.OriginPatterns(c.GetAllowedOrigins())),
			websocket.WithReadLimit(c.GetMaxMessageBytes()),
		), nil
	})
	do.Provide(i, func(i do.Injector) (*server.Server, error) {
		rt := do.MustInvoke[*router.Router](i)
		return server.New(do.MustInvoke[*config.Config](i), server.Handlers{
			Chat:   handlers.NewChatHandler(rt),
			Files:  storage.NewFileHandler(do.MustInvoke[storage.Store](i), rt),
			Socket: do.MustInvoke[*websocket.Bridge](i).Handler(),
		}), nil
	})

	for _, opt := range opts {
		opt(i)
	}

	srv, err := do.Invoke[*server.Server](i)
	if err != nil {
		return nil, err
	}
	return &App{
		Injector: i,
		Config:   cfg,
		Server:   srv,
		Bridge:   do.MustInvoke[*websocket.Bridge](i),
		Router:   do.MustInvoke[*router.Router](i),
		Bus:      do.MustInvoke[*pubsub.WatermillBridge](i),
		logger:   slog.Default().With("component", "app"),
	}, nil
}

// provideRooms builds the room logs. Evicted file messages release their
// stored payload.
func provideRooms(i do.Injector) (*roomlog.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	files := do.MustInvoke[storage.Store](i)
	logger := slog.Default().With("component", "roomlog")
	release := func(msg domain.Message) {
		if msg.File == nil {
			return
		}
		if err := files.Delete(context.Background(), storage.FilePath(msg.ID)); err != nil {
			logger.Warn("Failed to release evicted file", "messageID", msg.ID, "error", err)
		}
	}
	return roomlog.NewStore(cfg.GetRooms(), do.MustInvoke[*idgen.Generator](i), roomlog.WithEvictHook(release)), nil
}

func provideRouter(i do.Injector) (*router.Router, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return router.New(router.Deps{
		Sessions: do.MustInvoke[*session.Registry](i),
		Typing:   do.MustInvoke[*typing.Aggregator](i),
		Rooms:    do.MustInvoke[*roomlog.Store](i),
		Presence: do.MustInvoke[*presence.Broadcaster](i),
		Emitter:  do.MustInvoke[domain.Emitter](i),
		IDs:      do.MustInvoke[*idgen.Generator](i),
	},
		router.WithDefaultRoom(cfg.GetDefaultRoom()),
		router.WithReactionScope(cfg.GetReactionScope()),
		router.WithMaxFileBytes(cfg.GetMaxFileBytes()),
		router.WithAllowedFileTypes(cfg.GetAllowedFileTypes()),
		router.WithFileStore(do.MustInvoke[storage.Store](i)),
	), nil
}

// Start runs everything except the HTTP listener: the bridge loop, its bus
// subscription and the log level watcher.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	go a.Bridge.Run(ctx)
	if err := pubsub.Subscribe(ctx, a.Bus, pubsub.Deliveries, a.Bridge.Deliver); err != nil {
		a.cancel()
		return fmt.Errorf("subscribe bridge: %w", err)
	}
	if err := logging.WatchLevel(ctx, a.Config.GetEnvFile()); err != nil {
		a.logger.Warn("Log level hot reload disabled", "error", err)
	}
	a.logger.Info("Chat server started",
		"rooms", a.Config.GetRooms(),
		"default_room", a.Config.GetDefaultRoom(),
		"reaction_scope", a.Config.GetReactionScope())
	return nil
}

// Serve blocks on the HTTP listener.
func (a *App) Serve() error {
	return a.Server.Start()
}

// Shutdown closes every connection, then lets the injector stop the HTTP
// server and flush traces in reverse dependency order.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.cancel != nil {
		a.cancel()
	}
	if report := a.Injector.ShutdownWithContext(ctx); report != nil && len(report.Errors) > 0 {
		errs = append(errs, report)
	}
	if err := a.Bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("bus: %w", err))
	}
	return errors.Join(errs...)
}

// Tracer exposes the bus tracer, mainly for tests.
func (a *App) Tracer() trace.Tracer {
	return do.MustInvoke[*tracing](a.Injector).tracer
}
