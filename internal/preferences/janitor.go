package preferences

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/autoplay/internal/config"
)

// DefaultRetentionDays is how long an untouched series selection is kept.
const DefaultRetentionDays = 180

// Janitor prunes remembered selections on a cron schedule.
type Janitor struct {
	selections *Selections
	loader     *config.Loader
	now        func() time.Time

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewJanitor returns a janitor for selections, configured from loader.
func NewJanitor(selections *Selections, loader *config.Loader) *Janitor {
	return &Janitor{
		selections: selections,
		loader:     loader,
		now:        time.Now,
		cron:       cron.New(),
	}
}

// Start schedules pruning. An empty schedule disables it.
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return nil
	}

	schedule := j.loader.String(KeyPruneSchedule, "@daily")
	if _, err := j.cron.AddFunc(schedule, j.scheduledRun); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	j.cron.Start()
	j.running = true

	log.Debug().Str("schedule", schedule).Msg("Selection janitor started")
	return nil
}

// Stop stops the scheduler and waits for a running prune.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return
	}
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.running = false
}

func (j *Janitor) scheduledRun() {
	if _, err := j.Prune(); err != nil {
		log.Warn().Err(err).Msg("Failed to prune remembered selections")
	}
}

// Prune deletes selections older than the retention period. A retention of
// zero days keeps everything.
func (j *Janitor) Prune() (int64, error) {
	retention := j.loader.Days(KeyRetentionDays, DefaultRetentionDays)
	if retention <= 0 {
		return 0, nil
	}

	cutoff := j.now().Add(-retention)
	n, err := j.selections.store.PruneRememberedSelections(cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.selections.Forget()
		if err := j.selections.store.Optimize(); err != nil {
			log.Warn().Err(err).Msg("Failed to optimize database after pruning")
		}
	}

	log.Info().Int64("removed", n).Dur("retention", retention).Msg("Pruned remembered selections")
	return n, nil
}
