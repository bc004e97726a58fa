package catalog

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPruneInterval is how often the pruner sweeps when the config does
// not say otherwise.
const DefaultPruneInterval = time.Minute

// Pruner periodically evicts expired advertisements from a catalog.
type Pruner struct {
	catalog *Catalog
	cron    *cron.Cron
	logger  *slog.Logger
}

// NewPruner schedules PruneExpired every interval on a dedicated cron
// runner. Call Start to begin sweeping and Stop on shutdown.
func NewPruner(c *Catalog, interval time.Duration, logger *slog.Logger) *Pruner {
	if interval <= 0 {
		interval = DefaultPruneInterval
	}

	p := &Pruner{catalog: c, cron: cron.New(), logger: logger}
	p.cron.Schedule(cron.Every(interval), cron.FuncJob(func() {
		p.catalog.PruneExpired(time.Now().UTC())
	}))
	return p
}

// Start launches the sweep schedule in its own goroutine.
func (p *Pruner) Start() {
	p.cron.Start()
	p.logger.Info("catalog pruner started")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (p *Pruner) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
	p.logger.Info("catalog pruner stopped")
}
