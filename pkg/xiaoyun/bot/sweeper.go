// sweeper.go schedules the periodic idle-session sweep.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/session"
)

// StartSweeper schedules the idle-session sweep per the store config and
// returns the running scheduler. A zero IdleTTL disables sweeping and
// returns nil.
func StartSweeper(cfg StoreConfig, store session.Store, logger *slog.Logger) (*cron.Cron, error) {
	if cfg.IdleTTLHours <= 0 {
		return nil, nil
	}
	idleTTL := time.Duration(cfg.IdleTTLHours) * time.Hour
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "sweeper")

	schedule := cfg.SweepSchedule
	if schedule == "" {
		schedule = "17 4 * * *"
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		removed, err := store.Sweep(ctx, idleTTL)
		if err != nil {
			log.Error("session sweep failed", "error", err)
			return
		}
		log.Info("session sweep done", "removed", removed, "idle_ttl", idleTTL)
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling session sweep: %w", err)
	}

	c.Start()
	log.Info("session sweeper started", "schedule", schedule, "idle_ttl", idleTTL)
	return c, nil
}
