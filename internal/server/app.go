// Package server wires the MindVault account server: storage, token codec,
// notification pipeline and the HTTP and gRPC listeners. It handles
// graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/mindvault/internal/dbx"
	"github.com/dmitrijs2005/mindvault/internal/logging"
	"github.com/dmitrijs2005/mindvault/internal/server/auth"
	"github.com/dmitrijs2005/mindvault/internal/server/config"
	"github.com/dmitrijs2005/mindvault/internal/server/notify"
	"github.com/dmitrijs2005/mindvault/internal/server/repositories/memory"
	"github.com/dmitrijs2005/mindvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/mindvault/internal/server/rest"
	"github.com/dmitrijs2005/mindvault/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/mindvault/internal/server/grpc"
)

const (
	notifyQueueSize   = 1024
	notifyRedisPrefix = "mindvault:notify"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	accounts   *services.AccountService
	dispatcher *notify.Dispatcher
	closers    []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	app := &App{config: c, logger: logger}

	var (
		db      dbx.DBTX
		tx      dbx.Transactor
		manager repomanager.RepositoryManager
	)

	if strings.HasPrefix(c.DatabaseDSN, memory.DSN) {
		store := memory.NewStore()
		tx, manager = store, store
		logger.Warn(ctx, "using in-memory storage; data is lost on exit")
	} else {
		sqlDB, err := sql.Open("pgx", c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		app.closers = append(app.closers, sqlDB.Close)

		manager = repomanager.NewPostgresRepositoryManager()
		if err := manager.RunMigrations(ctx, sqlDB); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("db migration error: %w", err)
		}
		db, tx = sqlDB, dbx.NewSQLTransactor(sqlDB)
	}

	codec, err := auth.NewCodec([]byte(c.SecretKey))
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("token codec: %w", err)
	}

	app.dispatcher = notify.NewDispatcher(app.notifyQueue(ctx), app.notifySender(ctx), logger,
		notify.WithWorkers(c.NotifyWorkers), notify.WithMaxAttempts(c.NotifyMaxAttempts))

	app.accounts = services.NewAccountService(db, tx, manager, codec, app.dispatcher, c, logger)

	return app, nil
}

func (app *App) notifyQueue(ctx context.Context) notify.Queue {
	if app.config.RedisAddr == "" {
		q := notify.NewMemoryQueue(notifyQueueSize)
		app.closers = append(app.closers, q.Close)
		return q
	}
	rdb := redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
	app.closers = append(app.closers, rdb.Close)
	app.logger.Info(ctx, "notification queue", "backend", "redis", "address", app.config.RedisAddr)
	return notify.NewRedisQueue(rdb, notifyRedisPrefix)
}

func (app *App) notifySender(ctx context.Context) notify.Sender {
	c := app.config
	if c.SMTPAddr == "" {
		app.logger.Info(ctx, "no SMTP relay configured; notifications are logged")
		return notify.NewLogSender(app.logger)
	}
	return notify.NewSMTPSender(c.SMTPAddr, c.SMTPUser, c.SMTPPassword, c.SMTPFrom)
}

// Close releases storage and queue connections in reverse order.
func (app *App) Close() error {
	var first error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	app.closers = nil
	return first
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := rest.NewHandlers(app.accounts, app.config.VerifiedRedirectURL, app.logger)
	router := rest.NewRouter(h, app.accounts, app.logger)

	s := rest.NewHTTPServer(app.config.EndpointAddrHTTP, router, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.accounts)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startDispatcher(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.dispatcher.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	for _, start := range []func(context.Context, context.CancelFunc){
		app.startDispatcher,
		app.startHTTPServer,
		app.startGRPCServer,
	} {
		start := start
		wg.Add(1)
		go func() {
			defer wg.Done()
			start(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(ctx, "close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
