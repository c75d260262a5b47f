// Package retention runs the scheduled trash purge. Mailbox messages keep
// their trashedAt stamp; once it is older than the configured window the
// row is removed for good.
package retention

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/sandwichops/relay/internal/config"
	"github.com/sandwichops/relay/internal/mailbox"
	"github.com/sandwichops/relay/internal/notify"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// Janitor owns the purge schedule.
type Janitor struct {
	db        *gorm.DB
	cfg       config.RetentionConfig
	notifiers []notify.Notifier
}

// JanitorOpts holds parameters for creating a Janitor.
type JanitorOpts struct {
	DB        *gorm.DB
	Config    config.RetentionConfig
	Notifiers []notify.Notifier // optional; purge summaries go here
}

// NewJanitor creates a Janitor.
func NewJanitor(opts JanitorOpts) (*Janitor, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("retention: db is required")
	}
	if opts.Config.Schedule != "" {
		if _, err := cronParser.Parse(opts.Config.Schedule); err != nil {
			return nil, fmt.Errorf("retention: schedule %q: %w", opts.Config.Schedule, err)
		}
	}
	return &Janitor{db: opts.DB, cfg: opts.Config, notifiers: opts.Notifiers}, nil
}

// Run blocks until the context is cancelled, firing PurgeOnce on each cron
// tick. A zero TrashDays or empty schedule disables the loop.
func (j *Janitor) Run(ctx context.Context) {
	if j.cfg.TrashDays <= 0 || j.cfg.Schedule == "" {
		log.Printf("retention: purge disabled")
		return
	}

	d := nextCronDuration(j.cfg.Schedule)
	if d <= 0 {
		log.Printf("retention: schedule %q yields no next fire time", j.cfg.Schedule)
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if _, err := j.PurgeOnce(ctx); err != nil {
				log.Printf("retention: purge: %v", err)
			}
			if d := nextCronDuration(j.cfg.Schedule); d > 0 {
				timer.Reset(d)
			}
		}
	}
}

// PurgeOnce deletes trashed mailbox messages older than the retention
// window and reports how many rows went away. Notifier failures are logged,
// never returned.
func (j *Janitor) PurgeOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -j.cfg.TrashDays)
	n, err := mailbox.PurgeTrash(j.db, cutoff)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	log.Printf("retention: purged %d trashed messages older than %d days", n, j.cfg.TrashDays)
	alert := notify.Alert{
		Title:    "Trash purge complete",
		Body:     fmt.Sprintf("%d trashed messages older than %d days were removed.", n, j.cfg.TrashDays),
		Severity: notify.SeverityInfo,
		Fields: []notify.Field{
			{Name: "removed", Value: fmt.Sprintf("%d", n)},
			{Name: "window", Value: fmt.Sprintf("%dd", j.cfg.TrashDays)},
		},
	}
	for _, ntf := range j.notifiers {
		if err := ntf.Send(ctx, alert); err != nil {
			log.Printf("retention: notify: %v", err)
		}
	}
	return n, nil
}
