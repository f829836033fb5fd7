package folio

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// idleController is how long an admin list controller may sit unused,
// without a live websocket, before it is closed.
const idleController = 30 * time.Minute

func (a *App) startHousekeeping() error {
	a.cron = cron.New()

	if _, err := a.cron.AddFunc("@every 5m", a.evictIdleControllers); err != nil {
		return fmt.Errorf("folio: scheduling controller eviction: %w", err)
	}
	if _, err := a.cron.AddFunc("@every 1m", a.pruneLimiters); err != nil {
		return fmt.Errorf("folio: scheduling limiter pruning: %w", err)
	}
	if _, err := a.cron.AddFunc("@hourly", a.contactLimiter.Reset); err != nil {
		return fmt.Errorf("folio: scheduling contact limiter reset: %w", err)
	}
	a.cron.Start()
	return nil
}

func (a *App) evictIdleControllers() {
	posts := a.postLists.Evict(idleController)
	projects := a.projectLists.Evict(idleController)
	if posts+projects > 0 {
		a.Logger.Info("evicted idle admin controllers", "posts", posts, "projects", projects)
	}
}

func (a *App) pruneLimiters() {
	if n := a.loginLimiter.Prune(); n > 0 {
		a.Logger.Debug("pruned login limiter", "ips", n)
	}
}
