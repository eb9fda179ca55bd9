package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/seeds/internal/backend"
	"github.com/roach88/seeds/internal/backend/connect"
	"github.com/roach88/seeds/internal/config"
	"github.com/roach88/seeds/internal/metrics"
	"github.com/roach88/seeds/internal/registry"
	"github.com/roach88/seeds/internal/seeder"
	"github.com/roach88/seeds/internal/source"
)

// workspace bundles the resolved scripts and open database a command works
// against.
type workspace struct {
	cfg      config.Config
	registry *registry.Registry
	adapter  backend.Adapter
	engine   *seeder.Engine
	metrics  *metrics.Recorder
}

// openWorkspace loads config, resolves scripts, and connects. override, if
// non-nil, applies subcommand flags on top of the loaded config.
func (o *RootOptions) openWorkspace(ctx context.Context, cmd *cobra.Command, override func(*config.Config)) (*workspace, error) {
	log := o.Logger()

	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, stage(ErrCodeConfig, err)
	}
	if override != nil {
		override(&cfg)
	}

	reg, err := o.loadRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Debug("resolved seeds", "source", cfg.Source, "count", reg.Len())

	adapter, err := connect.Open(ctx, cfg.DatabaseURL, connect.Options{
		Table:       cfg.Table,
		LockTimeout: cfg.LockTimeout,
		RedisURL:    cfg.RedisURL,
		RedisTTL:    cfg.RedisTTL,
		Logger:      log,
	})
	if err != nil {
		return nil, stage(ErrCodeConnect, err)
	}

	var rec *metrics.Recorder
	if cfg.MetricsFile != "" {
		rec = metrics.New()
	}

	return &workspace{
		cfg:      cfg,
		registry: reg,
		adapter:  adapter,
		metrics:  rec,
		engine: seeder.New(
			seeder.WithLogger(log),
			seeder.WithMetrics(rec),
			seeder.WithRunIDGenerator(o.RunIDs),
			seeder.WithClock(o.Now),
		),
	}, nil
}

func (o *RootOptions) loadRegistry(ctx context.Context, cfg config.Config) (*registry.Registry, error) {
	digest, err := cfg.Digest()
	if err != nil {
		return nil, stage(ErrCodeConfig, err)
	}
	reg, err := registry.Load(ctx, source.Dir(cfg.Source, digest), registry.WithIgnoreMissing(cfg.IgnoreMissing))
	if err != nil {
		return nil, stage(ErrCodeSource, err)
	}
	return reg, nil
}

// close releases the database and writes the metrics textfile, if any.
func (w *workspace) close(o *RootOptions) {
	if err := w.adapter.Close(); err != nil {
		o.Logger().Error("error closing database", "error", err)
	}
	if w.metrics != nil {
		if err := w.metrics.WriteTextfile(w.cfg.MetricsFile); err != nil {
			o.Logger().Error("error writing metrics", "path", w.cfg.MetricsFile, "error", err)
		}
	}
}

// signalContext cancels on SIGINT or SIGTERM so lock waits and in-flight
// statements stop promptly.
func (o *RootOptions) signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			o.Logger().Warn("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}
