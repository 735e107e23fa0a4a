package cli

import (
	"bufio"
	"context"
	"database/sql"
	"io"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/client/client"
	"github.com/dmitrijs2005/mindvault/internal/client/config"
	"github.com/dmitrijs2005/mindvault/internal/client/repositories/session"
	"github.com/dmitrijs2005/mindvault/internal/client/services"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config      *config.Config
	authService services.AuthService
	db          *sql.DB
	userName    string
	Mode        Mode
	reader      *bufio.Reader
	out         io.Writer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	db, err := client.InitDatabase(ctx, c.SessionDSN)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	apiClient := client.NewHTTPClient(c.ServerURL, c.RequestTimeout)
	as := services.NewAuthService(apiClient, session.NewSQLiteRepository(db))

	return &App{config: c, authService: as, db: db, reader: bufio.NewReader(os.Stdin), out: os.Stdout}, nil
}

func (app *App) setMode(mode Mode) {
	if app.Mode != mode {
		app.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (app *App) isLoggedIn() bool {
	return app.userName != ""
}

func (app *App) getStatus() string {
	s := string(app.Mode)
	if app.userName != "" {
		s = app.userName + " " + s
	}
	return s
}

// restoreSession picks up a session saved by an earlier run.
func (app *App) restoreSession(ctx context.Context) {
	s, err := app.authService.Current(ctx)
	if err != nil {
		log.Printf("cannot read session: %v", err)
		return
	}
	if s != nil {
		app.userName = s.Email
	}
}

func (app *App) Run(ctx context.Context) {
	if app.db != nil {
		defer app.db.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Println("Welcome to MindVault CLI (type 'help' for commands)")
	app.restoreSession(ctx)

	go app.StartOnlineStatusWatcher(ctx, app.config.RequestTimeout)

	runREPL(ctx, app, app.getStatus, bufio.NewScanner(app.reader))
}

// StartOnlineStatusWatcher pings the server every interval until ctx ends.
func (app *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	app.checkOnline(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			app.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (app *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := app.authService.Ping(ctx); err != nil {
		app.setMode(ModeOffline)
		return
	}
	app.setMode(ModeOnline)
}
