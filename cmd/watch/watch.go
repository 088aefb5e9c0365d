package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/thyholm1234/DOF.not/internal/api"
	"github.com/thyholm1234/DOF.not/internal/app"
	"github.com/thyholm1234/DOF.not/internal/conf"
	"github.com/thyholm1234/DOF.not/internal/logger"
	"github.com/thyholm1234/DOF.not/internal/scheduler"
)

// stopTimeout bounds the wait for a running batch on shutdown
const stopTimeout = 30 * time.Second

// Command creates the watch command, which runs batches on a schedule and
// serves the HTTP endpoints until interrupted.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run notification batches on a schedule",
		Long: `Run a batch on the configured schedule for every user in delivery.users.

Only one watcher can run per lock file. The HTTP server exposes /healthz,
/metrics and the preference endpoints unless --listen is empty.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings)
		},
	}

	cmd.Flags().String("schedule", "", "Cron spec or descriptor (default watch.schedule)")
	cmd.Flags().String("listen", "", "HTTP listen address (default watch.listen)")
	cmd.Flags().String("lockfile", "", "Single instance lock file (default watch.lockfile)")
	cmd.Flags().StringSlice("regions", nil, "Regions to fetch (default fetch.regions)")

	return cmd
}

// Run holds the instance lock and runs the scheduler and HTTP server until
// ctx ends.
func Run(ctx context.Context, settings *conf.Settings) error {
	log := logger.Global().Module("watch")
	users := settings.Delivery.Users
	if len(users) == 0 {
		return errors.New("delivery.users is empty, nobody to notify")
	}

	lock, err := acquireLock(settings.Watch.LockFile)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	a, err := app.New(settings, app.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	sched := scheduler.New(settings.Location())
	err = sched.Schedule(settings.Watch.Schedule, "batch", func(jobCtx context.Context) error {
		_, err := a.RunBatch(jobCtx, users, false)
		return err
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if settings.Watch.Listen != "" {
		opts := []api.ServerOption{}
		if settings.Metrics.Enabled {
			opts = append(opts, api.WithMetrics(a.Metrics))
		}
		server, err := api.New(&api.Config{Listen: settings.Watch.Listen}, a.Store, opts...)
		if err != nil {
			return err
		}
		g.Go(func() error { return server.Run(gctx) })
	}

	sched.Start()
	log.Info("watcher started",
		logger.Int("users", len(users)),
		logger.Int("regions", len(settings.Fetch.Regions)),
		logger.String("schedule", settings.Watch.Schedule),
		logger.Time("next_run", sched.Next()))

	if settings.Watch.RunOnStart {
		g.Go(func() error {
			sched.RunNow()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := sched.Stop(stopCtx); err != nil {
			log.Warn("scheduled batch did not stop in time", logger.Error(err))
		}
		return nil
	})

	err = g.Wait()
	log.Info("watcher stopped", logger.Error(err))
	return err
}

// acquireLock takes the single instance lock or reports who holds it
func acquireLock(path string) (*flock.Flock, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock directory: %w", err)
		}
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another watcher is running (lock %s)", path)
	}
	return lock, nil
}
