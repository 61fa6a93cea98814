// Package reading parses reading server flags and starts the runtime.
package reading

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/arcanahq/arcana.space/internal/notify"
	"github.com/arcanahq/arcana.space/internal/platform/config"
	"github.com/arcanahq/arcana.space/internal/platform/otel"
	"github.com/arcanahq/arcana.space/internal/reading/api/httpapi"
	"github.com/arcanahq/arcana.space/internal/reading/service"
	"github.com/arcanahq/arcana.space/internal/storage/sqlite"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// Config holds reading server configuration.
type Config struct {
	Port          int           `env:"ARCANA_SPACE_READING_PORT" envDefault:"8080"`
	Addr          string        `env:"ARCANA_SPACE_READING_ADDR"`
	DBPath        string        `env:"ARCANA_SPACE_READING_DB" envDefault:"readings.db"`
	SessionTTL    time.Duration `env:"ARCANA_SPACE_READING_SESSION_TTL" envDefault:"30m"`
	SweepInterval time.Duration `env:"ARCANA_SPACE_READING_SWEEP_INTERVAL" envDefault:"1m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The reading server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The reading server listen address (overrides -port)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite database")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "Idle TTL before preparing/setup sessions expire")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "How often the expiry sweep runs")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the reading engine server and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	shutdownTracing, err := otel.Setup(ctx, "reading")
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("shutdown tracing: %v", err)
		}
	}()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	svc, err := service.New(service.Config{
		Store:      store,
		Dispatcher: notify.LogDispatcher{},
		SessionTTL: cfg.SessionTTL,
	})
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	cancelSweep, sweepDone := svc.StartSweeper(cfg.SweepInterval)
	defer func() {
		cancelSweep()
		<-sweepDone
	}()

	addr := cfg.Addr
	if addr == "" {
		addr = fmt.Sprintf(":%d", cfg.Port)
	}
	server := &http.Server{
		Addr:    addr,
		Handler: httpapi.NewRouter(httpapi.NewHandlers(svc)),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("reading server listening addr=%s db=%s", addr, cfg.DBPath)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
