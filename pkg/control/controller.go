// Package control implements the stop controller that reacts to an
// operator-requested stop during a repair run: a polled stop file plus
// SIGINT/SIGTERM handling, both funneled through the same callback-driven
// shutdown path.
package control

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Controller watches for an external stop request (a stop file or
// SIGINT/SIGTERM) and runs registered callbacks once when one fires.
type Controller struct {
	stopFile       string
	stopCh         chan struct{}
	stopped        bool
	mutex          sync.RWMutex
	callbacks      []func()
	pollInterval   time.Duration
	signalHandlers bool
	log            zerolog.Logger
}

// Config configures a Controller.
type Config struct {
	// StopFile is the path polled for an operator-created stop request.
	StopFile string

	// PollInterval controls how often StopFile is checked.
	PollInterval time.Duration

	// EnableSignalHandlers registers SIGINT/SIGTERM handling.
	EnableSignalHandlers bool
}

// New builds a Controller from cfg.
func New(cfg Config, log zerolog.Logger) *Controller {
	if cfg.StopFile == "" {
		cfg.StopFile = "/tmp/repaircore-stop"
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 1 * time.Second
	}

	return &Controller{
		stopFile:       cfg.StopFile,
		stopCh:         make(chan struct{}),
		pollInterval:   cfg.PollInterval,
		signalHandlers: cfg.EnableSignalHandlers,
		log:            log,
	}
}

// Start begins watching for a stop file and, if enabled, OS signals, each
// in its own goroutine, and returns immediately. Each watcher exits once
// ctx is done or a stop condition fires.
func (c *Controller) Start(ctx context.Context) {
	go c.watchStopFile(ctx)
	if c.signalHandlers {
		go c.watchSignals(ctx)
	}
}

func (c *Controller) watchStopFile(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.checkStopFile() {
				c.log.Warn().Str("stop_file", c.stopFile).Msg("stop file detected")
				c.triggerStop("stop file detected")
				return
			}
		}
	}
}

func (c *Controller) watchSignals(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		return
	case sig := <-sigCh:
		c.log.Warn().Str("signal", sig.String()).Msg("stop signal received")
		c.triggerStop(fmt.Sprintf("signal: %v", sig))
	}
}

func (c *Controller) checkStopFile() bool {
	_, err := os.Stat(c.stopFile)
	return err == nil
}

func (c *Controller) triggerStop(reason string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stopCh)

	c.log.Info().Str("reason", reason).Int("callbacks", len(c.callbacks)).Msg("stop triggered")
	for i, callback := range c.callbacks {
		c.log.Debug().Int("callback", i+1).Int("total", len(c.callbacks)).Msg("running stop callback")
		callback()
	}
}

// Stop manually triggers a stop with reason, running all registered
// callbacks synchronously. Safe to call more than once; only the first call
// has effect.
func (c *Controller) Stop(reason string) {
	c.triggerStop(reason)
}

// Stopped reports whether a stop has been triggered.
func (c *Controller) Stopped() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.stopped
}

// Done returns a channel that closes when a stop is triggered.
func (c *Controller) Done() <-chan struct{} {
	return c.stopCh
}

// OnStop registers callback to run (in registration order) when a stop
// triggers. Registering after a stop has already triggered has no effect;
// callers that need the callback to always run should check Stopped first.
func (c *Controller) OnStop(callback func()) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.stopped {
		return
	}
	c.callbacks = append(c.callbacks, callback)
}

// CreateStopFile writes the stop file, requesting a stop on the next poll.
func (c *Controller) CreateStopFile() error {
	f, err := os.Create(c.stopFile)
	if err != nil {
		return fmt.Errorf("control: creating stop file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(fmt.Sprintf("stop requested at %s\n", time.Now().Format(time.RFC3339))); err != nil {
		return fmt.Errorf("control: writing stop file: %w", err)
	}
	return nil
}

// RemoveStopFile removes the stop file, if present.
func (c *Controller) RemoveStopFile() error {
	if err := os.Remove(c.stopFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("control: removing stop file: %w", err)
	}
	return nil
}

// StopFilePath returns the path watched for a stop request.
func (c *Controller) StopFilePath() string {
	return c.stopFile
}
