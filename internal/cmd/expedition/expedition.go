// Package expedition parses the expedition daemon flags and launches the
// pending-choice sweep runtime.
package expedition

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/veilwood.quest/internal/expedition/service"
	"github.com/louisbranch/veilwood.quest/internal/platform/config"
	"github.com/louisbranch/veilwood.quest/internal/platform/otel"
	"github.com/louisbranch/veilwood.quest/internal/storage/sqlite"
	"github.com/louisbranch/veilwood.quest/internal/tuning"
)

// Config holds expedition daemon configuration.
type Config struct {
	DBPath        string        `env:"VEILWOOD_QUEST_DB_PATH" envDefault:"data/veilwood.quest.db"`
	TuningPath    string        `env:"VEILWOOD_QUEST_TUNING_PATH"`
	SweepInterval time.Duration `env:"VEILWOOD_QUEST_SWEEP_INTERVAL" envDefault:"30s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The expedition SQLite database path")
	fs.StringVar(&cfg.TuningPath, "tuning-path", cfg.TuningPath, "Optional yaml tuning override file")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Pending-choice timeout sweep interval")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("sweep interval must be positive")
	}
	return cfg, nil
}

// Run opens the expedition store and applies pending-choice timeout
// defaults on the configured interval until the context is cancelled.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := otel.Setup(ctx, "expedition")
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() {
		_ = shutdown(context.Background())
	}()

	tables, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	// Only the stores are wired: timeout defaults never reach the combat,
	// raid or loot collaborators. Turn commands mount through the chat
	// transport, which supplies those.
	svc, err := service.New(service.Config{
		Expeditions: store,
		WorldMap:    store,
		Grottos:     store.Grottos(),
		Tables:      tables,
	})
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	log.Printf("sweeping pending choices every %s", cfg.SweepInterval)
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			swept, err := svc.SweepPending(ctx)
			if err != nil {
				log.Printf("sweep pending: %v", err)
				continue
			}
			if swept > 0 {
				log.Printf("applied %d pending-choice timeout defaults", swept)
			}
		}
	}
}
