// Package seed parses seed command flags and loads the starter catalog.
package seed

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/arcanahq/arcana.space/internal/platform/config"
	catalog "github.com/arcanahq/arcana.space/internal/seed"
	"github.com/arcanahq/arcana.space/internal/storage/sqlite"
)

// Config holds seed command configuration.
type Config struct {
	DBPath string `env:"ARCANA_SPACE_READING_DB" envDefault:"readings.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite database")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run writes the starter catalog into the database.
func Run(ctx context.Context, cfg Config) error {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	if err := catalog.Apply(ctx, store); err != nil {
		return err
	}

	deck := catalog.RiderWaiteDeck()
	log.Printf("catalog seeded db=%s deck=%s cards=%d templates=%d",
		cfg.DBPath, deck.ID, len(deck.Cards), len(catalog.Templates()))
	return nil
}
