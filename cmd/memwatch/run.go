package main

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"memwatch/driver"
	"memwatch/internal/config"
	"memwatch/internal/logging"
	"memwatch/internal/model"
	"memwatch/internal/process"
	"memwatch/timer"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Attach to the game and run the timer until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			return run(cmd.Context(), opts.configPath, cfg, log)
		},
	}
}

func run(ctx context.Context, path string, cfg *config.Config, log logging.Logger) error {
	if len(cfg.Process) == 0 {
		return errors.New("no process names configured")
	}

	var current atomic.Pointer[config.Config]
	current.Store(cfg)
	reloads := make(chan struct{}, 1)

	t := timer.NewLocal(log, cfg.Segments)
	g, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return config.Watch(ctx, path, log, func(next *config.Config) {
			current.Store(next)
			select {
			case reloads <- struct{}{}:
			default:
			}
		})
	})

	g.Go(func() error {
		attacher := process.NewAttacher(log, cfg.Process...)
		err := driver.AttachLoop(ctx, log, attacher, cfg.TryLoadDelay, func(ctx context.Context, s *driver.Session) error {
			return runSession(ctx, s, &current, reloads, t, log)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return g.Wait()
}

// runSession drives one attach. A config reload rebuilds the model without
// detaching.
func runSession(ctx context.Context, s *driver.Session, current *atomic.Pointer[config.Config], reloads <-chan struct{}, t timer.Timer, log logging.Logger) error {
	p, ok := s.Handle().(*process.Process)
	if !ok {
		return errors.New("session is not a process")
	}
	log = log.With("session", s.ID)

	for {
		cfg := current.Load()
		m, err := model.Build(ctx, cfg, model.ProcessTarget(p), log)
		if err != nil {
			return err
		}
		s.SetModel(m)

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			d := driver.New(m, m, t,
				driver.WithLogger(log),
				driver.WithTickRate(cfg.TickRate),
				driver.WithSession(s),
			)
			done <- d.Run(runCtx)
		}()

		select {
		case err := <-done:
			cancel()
			return err
		case <-reloads:
			cancel()
			<-done
			log.Info("rebuilding memory model")
		}
	}
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
