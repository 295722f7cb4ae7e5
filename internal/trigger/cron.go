package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/emarren/vaultflow/pkg/schema"
)

// Runner starts a workflow run. Satisfied by the application wiring; keeping
// it an interface here avoids an import cycle with the engine.
type Runner interface {
	RunWorkflow(ctx context.Context, name string, vars map[string]any) error
}

// Schedule binds a workflow to a cron expression (standard five fields).
type Schedule struct {
	Workflow string `json:"workflow"`
	Cron     string `json:"cron"`
}

type scheduleEntry struct {
	workflow string
	spec     cron.Schedule
	next     time.Time
}

// CronTrigger fires workflows on cron schedules. It keeps its own tick loop
// so due checks and run dispatch share one goroutine.
type CronTrigger struct {
	runner   Runner
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	entries []*scheduleEntry
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewCronTrigger parses the schedules and prepares the trigger. An invalid
// cron expression is a validation error naming the offending schedule.
func NewCronTrigger(schedules []Schedule, runner Runner, logger *slog.Logger) (*CronTrigger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	entries := make([]*scheduleEntry, 0, len(schedules))
	now := time.Now()
	for _, s := range schedules {
		spec, err := parser.Parse(s.Cron)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"invalid cron expression %q for workflow %q: %s", s.Cron, s.Workflow, err.Error()).
				WithCause(err)
		}
		entries = append(entries, &scheduleEntry{
			workflow: s.Workflow,
			spec:     spec,
			next:     spec.Next(now),
		})
	}

	return &CronTrigger{
		runner:   runner,
		logger:   logger,
		interval: 30 * time.Second,
		entries:  entries,
	}, nil
}

// Start launches the background tick loop.
func (t *CronTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.done != nil {
		t.mu.Unlock()
		return fmt.Errorf("cron trigger already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.mu.Unlock()

	go t.loop(loopCtx)
	t.logger.Info("cron trigger started", slog.Int("schedules", len(t.entries)))
	return nil
}

// Stop cancels the loop and waits for it to exit.
func (t *CronTrigger) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (t *CronTrigger) loop(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx, time.Now())
		}
	}
}

// tick runs every due schedule and advances its next-fire time.
func (t *CronTrigger) tick(ctx context.Context, now time.Time) {
	for _, e := range t.entries {
		if e.next.After(now) {
			continue
		}
		e.next = e.spec.Next(now)

		vars := map[string]any{
			schema.VarScheduledAt: now.UTC().Format(time.RFC3339),
		}
		if err := t.runner.RunWorkflow(ctx, e.workflow, vars); err != nil {
			t.logger.Error("scheduled workflow failed",
				slog.String("workflow", e.workflow),
				slog.String("error", err.Error()),
			)
		}
	}
}
