// Package orchestrator drives one repair run end to end: it bounds the MOGA
// Engine by a wall-clock deadline and an operator stop request, and tears
// down leftover state once the engine returns. A repair run has no
// discover/inject/monitor phases to sequence, just one long-running engine
// call to bound and clean up after.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/repaircore/repaircore/pkg/control"
	"github.com/repaircore/repaircore/pkg/core/cleanup"
	"github.com/repaircore/repaircore/pkg/engine"
	"github.com/repaircore/repaircore/pkg/model"
)

// Config holds the Orchestrator's run-level settings: the wall-clock
// budget and stop-file wiring that bound the MOGA Engine from outside.
type Config struct {
	// Timeout bounds the whole run; zero means unlimited.
	Timeout time.Duration

	// StopFile, when non-empty, is polled for an operator-requested stop.
	// Empty uses the Controller's default path.
	StopFile string
}

// Result is the Orchestrator's final report, populated on every exit path
// (plausible patch found, trials exhausted, timeout, operator stop, error).
type Result struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Patches            []model.PlausiblePatch
	Evaluated          int
	ArchiveSize        int
	BetterThanOriginal int

	TimedOut bool
	Stopped  bool
}

// Orchestrator runs a MOGA Engine under a global deadline and operator stop
// signal, and always sweeps its leftover state afterward.
type Orchestrator struct {
	cfg     Config
	engine  *engine.Engine
	control *control.Controller
	cleanup *cleanup.Coordinator
	log     zerolog.Logger
}

// New builds an Orchestrator that will drive eng to repair one source file.
func New(cfg Config, eng *engine.Engine, log zerolog.Logger) *Orchestrator {
	ctrl := control.New(control.Config{
		StopFile:             cfg.StopFile,
		EnableSignalHandlers: true,
	}, log)

	return &Orchestrator{
		cfg:     cfg,
		engine:  eng,
		control: ctrl,
		cleanup: cleanup.New(log),
		log:     log,
	}
}

// Run executes the engine under the configured timeout and stop wiring. It
// always runs cleanup and populates the archive/evaluation summary before
// returning, even on cancellation — only an upstream Engine error (not
// context cancellation) is surfaced as a non-nil error.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	result := &Result{StartTime: time.Now()}
	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
	}()

	var runCtx context.Context
	var cancel context.CancelFunc
	if o.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	o.control.Start(runCtx)
	o.control.OnStop(func() {
		result.Stopped = true
		cancel()
	})

	defer o.runCleanup()

	o.log.Info().Dur("timeout", o.cfg.Timeout).Msg("repair run starting")
	patches, err := o.engine.Run(runCtx)

	result.Evaluated = o.engine.NumEvaluated()
	result.ArchiveSize = len(o.engine.Archive().Members())
	result.BetterThanOriginal = o.betterThanOriginal()
	result.Patches = patches
	result.TimedOut = errors.Is(runCtx.Err(), context.DeadlineExceeded)

	if err != nil {
		if runCtx.Err() != nil {
			o.log.Warn().Err(err).Bool("timed_out", result.TimedOut).Bool("stopped", result.Stopped).
				Int("evaluated", result.Evaluated).Int("archive_size", result.ArchiveSize).
				Int("better_than_original", result.BetterThanOriginal).Msg("repair run cancelled")
			return result, nil
		}
		o.log.Error().Err(err).Int("evaluated", result.Evaluated).Int("archive_size", result.ArchiveSize).
			Int("better_than_original", result.BetterThanOriginal).Msg("repair run failed")
		return result, fmt.Errorf("orchestrator: %w", err)
	}

	if len(patches) == 0 {
		o.log.Info().Int("evaluated", result.Evaluated).Int("archive_size", result.ArchiveSize).
			Int("better_than_original", result.BetterThanOriginal).Msg("no plausible patch found")
	} else {
		o.log.Info().Int("count", len(patches)).Str("best", patches[0].PatchedFile).
			Int("evaluated", result.Evaluated).Int("archive_size", result.ArchiveSize).
			Int("better_than_original", result.BetterThanOriginal).Msg("plausible patch found")
	}

	return result, nil
}

func (o *Orchestrator) runCleanup() {
	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cleanupCancel()
	if err := o.cleanup.CleanupAll(cleanupCtx); err != nil {
		o.log.Warn().Err(err).Msg("cleanup reported errors")
	}
	o.cleanup.PrintAuditLog()
}

// betterThanOriginal counts archive members that dominate the evaluated
// original individual, mirroring CR.py's closing summary.
func (o *Orchestrator) betterThanOriginal() int {
	original := o.engine.Original()
	if original == nil {
		return 0
	}
	count := 0
	for _, m := range o.engine.Archive().Members() {
		if model.Dominates(m.Fitness, original.Fitness) {
			count++
		}
	}
	return count
}

// CleanupSummary exposes the coordinator's audit summary, e.g. for the CLI's
// closing report.
func (o *Orchestrator) CleanupSummary() cleanup.Summary {
	return o.cleanup.Summary()
}

// RequestStop manually triggers the orchestrator's stop controller, as if
// the operator had created its stop file or sent SIGINT/SIGTERM.
func (o *Orchestrator) RequestStop(reason string) {
	o.control.Stop(reason)
}
