package seeder

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/seeds/internal/backend"
	"github.com/roach88/seeds/internal/metrics"
	"github.com/roach88/seeds/internal/registry"
)

const (
	opRun    = "run"
	opRevert = "revert"
)

// Engine orchestrates Run, Revert, and Status. It holds no per-invocation
// state, so one Engine may serve concurrent invocations against different
// adapters.
type Engine struct {
	logger  *slog.Logger
	metrics *metrics.Recorder
	runIDs  RunIDGenerator
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder. A nil recorder disables metrics.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRunIDGenerator overrides the run ID source.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.runIDs = g
		}
	}
}

// WithClock overrides the wall clock used for lock-wait timing and metrics.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: slog.Default(),
		runIDs: UUIDv7Generator{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run applies every pending non-down script in ascending version order.
//
// In dry-run mode nothing is executed; the report lists what would be
// applied. The returned report is never nil and lists every script applied
// before a failure.
func (e *Engine) Run(ctx context.Context, reg *registry.Registry, a backend.Adapter, dryRun bool) (report *Report, err error) {
	report, log := e.begin(opRun, dryRun)

	if err := e.lock(ctx, a, log); err != nil {
		e.failed(opRun, err)
		return report, err
	}
	defer func() { err = e.release(ctx, a, opRun, log, err) }()

	applied, err := e.prepare(ctx, reg, a, log)
	if err != nil {
		return report, err
	}

	for s := range reg.Iterate() {
		if s.Kind.IsDown() {
			continue
		}
		if rec, ok := applied[s.Version]; ok {
			if !bytes.Equal(rec.Checksum, s.Checksum) {
				return report, &ChecksumMismatchError{
					Version:  s.Version,
					Applied:  rec.Checksum,
					Resolved: s.Checksum,
				}
			}
			continue
		}

		if dryRun {
			log.Debug("can apply", "version", s.Version, "description", s.Description)
			report.add(s, ActionCanApply, 0)
			continue
		}

		// Stop between scripts so an interrupt never marks an unstarted
		// version dirty.
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("interrupted before seeds %d: %w", s.Version, err)
		}
		log.Debug("applying", "version", s.Version, "kind", s.Kind)
		elapsed, err := a.Apply(ctx, s)
		if err != nil {
			log.Error("apply failed", "version", s.Version, "error", err)
			return report, err
		}
		e.metrics.ScriptExecuted(opRun, s.Kind, elapsed)
		log.Info("applied", "version", s.Version, "description", s.Description, "elapsed", elapsed)
		report.add(s, ActionApplied, elapsed)
	}
	return report, nil
}

// Revert undoes the most recently applied reversible version. It reverts at
// most one version per invocation; when none qualifies the report has
// NothingToRevert set and no error is returned.
//
// Checksums are not compared: the down script is trusted as resolved.
func (e *Engine) Revert(ctx context.Context, reg *registry.Registry, a backend.Adapter, dryRun bool) (report *Report, err error) {
	report, log := e.begin(opRevert, dryRun)

	if err := e.lock(ctx, a, log); err != nil {
		e.failed(opRevert, err)
		return report, err
	}
	defer func() { err = e.release(ctx, a, opRevert, log, err) }()

	applied, err := e.prepare(ctx, reg, a, log)
	if err != nil {
		return report, err
	}

	for s := range reg.Descending() {
		if !s.Kind.IsDown() {
			continue
		}
		if _, ok := applied[s.Version]; !ok {
			continue
		}

		if dryRun {
			log.Debug("can revert", "version", s.Version, "description", s.Description)
			report.add(s, ActionCanRevert, 0)
			return report, nil
		}

		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("interrupted before reverting seeds %d: %w", s.Version, err)
		}
		log.Debug("reverting", "version", s.Version)
		elapsed, err := a.Revert(ctx, s)
		if err != nil {
			log.Error("revert failed", "version", s.Version, "error", err)
			return report, err
		}
		e.metrics.ScriptExecuted(opRevert, s.Kind, elapsed)
		log.Info("reverted", "version", s.Version, "description", s.Description, "elapsed", elapsed)
		report.add(s, ActionReverted, elapsed)
		return report, nil
	}

	log.Info("nothing to revert")
	report.NothingToRevert = true
	return report, nil
}

func (e *Engine) begin(op string, dryRun bool) (*Report, *slog.Logger) {
	report := &Report{
		RunID:     e.runIDs.Generate(),
		Operation: op,
		DryRun:    dryRun,
		Steps:     []Step{},
	}
	log := e.logger.With("run_id", report.RunID, "operation", op)
	if dryRun {
		log = log.With("dry_run", true)
	}
	return report, log
}

func (e *Engine) lock(ctx context.Context, a backend.Adapter, log *slog.Logger) error {
	start := e.now()
	if err := a.Lock(ctx); err != nil {
		log.Error("lock failed", "error", err)
		return err
	}
	waited := e.now().Sub(start)
	e.metrics.LockWaited(waited)
	log.Debug("lock acquired", "waited", waited)
	return nil
}

// release unlocks the adapter and folds any unlock failure into err. The
// unlock uses a context detached from cancellation so a cancelled run still
// releases its lock.
func (e *Engine) release(ctx context.Context, a backend.Adapter, op string, log *slog.Logger, err error) error {
	if uerr := a.Unlock(context.WithoutCancel(ctx)); uerr != nil {
		log.Error("unlock failed", "error", uerr)
		if err == nil {
			err = uerr
		} else {
			err = multierror.Append(err, uerr)
		}
	} else {
		log.Debug("lock released")
	}

	if err != nil {
		e.failed(op, err)
	}
	e.metrics.Finished(op, err == nil, e.now())
	return err
}

func (e *Engine) failed(op string, err error) {
	e.metrics.Failed(op, strings.ToLower(string(CodeOf(err))))
}

// prepare runs the checks shared by Run and Revert and returns the applied
// records keyed by version. The dirty check always precedes the missing
// check.
func (e *Engine) prepare(ctx context.Context, reg *registry.Registry, a backend.Adapter, log *slog.Logger) (map[int64]backend.AppliedRecord, error) {
	if err := a.EnsureTrackingTable(ctx); err != nil {
		return nil, err
	}

	version, dirty, err := a.DirtyVersion(ctx)
	if err != nil {
		return nil, err
	}
	if dirty {
		log.Warn("database is dirty", "version", version)
		return nil, &DirtyDatabaseError{Version: version}
	}

	records, err := a.ListApplied(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(records, func(x, y backend.AppliedRecord) int {
		return cmp.Compare(x.Version, y.Version)
	})

	applied := make(map[int64]backend.AppliedRecord, len(records))
	for _, rec := range records {
		if !reg.Has(rec.Version) {
			if !reg.IgnoreMissing() {
				return nil, &MissingVersionError{Version: rec.Version}
			}
			log.Debug("ignoring missing version", "version", rec.Version)
		}
		applied[rec.Version] = rec
	}
	return applied, nil
}
