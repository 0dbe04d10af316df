// Package cleanup coordinates teardown of a repair run's leftover state:
// mutation-tool subprocesses that outlived their session, stray
// "/tmp/terminate_*" sentinel files the mutation tool watches for, and
// scratch directories holding patched-source output. Adapted from the
// teacher's pkg/core/cleanup: same timestamped audit log and summary
// counts, repointed from sidecar/namespace teardown to repair-domain
// artifacts.
package cleanup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Closer is anything with a no-return-value Close, satisfied by
// *mutation.Session.
type Closer interface {
	Close()
}

// Coordinator tracks sessions and scratch directories registered over the
// course of a repair run and tears them all down on CleanupAll.
type Coordinator struct {
	log zerolog.Logger

	sessions map[string]Closer
	tempDirs map[string]string

	auditLog []AuditEntry
}

// AuditEntry records one cleanup action.
type AuditEntry struct {
	Timestamp time.Time
	Action    string
	Target    string
	Success   bool
	Error     error
	Details   string
}

// New builds an empty Coordinator.
func New(log zerolog.Logger) *Coordinator {
	return &Coordinator{
		log:      log,
		sessions: make(map[string]Closer),
		tempDirs: make(map[string]string),
	}
}

// RegisterSession tracks s under name so CleanupAll closes it.
func (c *Coordinator) RegisterSession(name string, s Closer) {
	c.sessions[name] = s
}

// RegisterTempDir tracks dir under name so CleanupAll removes it.
func (c *Coordinator) RegisterTempDir(name, dir string) {
	c.tempDirs[name] = dir
}

// CleanupAll closes every registered session, removes every registered
// temp directory, and sweeps any stray mutation-tool termination sentinel
// files, logging one audit entry per action. The sentinel sweep runs even
// when nothing is registered, and a sweep that removes no file logs no
// entry. It returns the first error encountered, if any, but always
// attempts every action.
func (c *Coordinator) CleanupAll(ctx context.Context) error {
	total := len(c.sessions) + len(c.tempDirs)
	if total == 0 {
		c.log.Debug().Msg("cleanup: nothing registered, sweeping sentinels only")
	}
	c.log.Info().Int("sessions", len(c.sessions)).Int("temp_dirs", len(c.tempDirs)).Msg("cleanup: starting")

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for name, s := range c.sessions {
		select {
		case <-ctx.Done():
			c.logAudit("close_session", name, false, ctx.Err(), "context cancelled before close")
			record(ctx.Err())
			continue
		default:
		}
		s.Close()
		c.logAudit("close_session", name, true, nil, "session closed")
	}

	for name, dir := range c.tempDirs {
		if dir == "" {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			c.logAudit("remove_temp_dir", name, false, err, dir)
			record(fmt.Errorf("cleanup: removing temp dir %s: %w", dir, err))
			continue
		}
		c.logAudit("remove_temp_dir", name, true, nil, dir)
	}

	swept, err := sweepSentinels()
	if err != nil {
		c.logAudit("sweep_sentinels", "/tmp", false, err, "")
		record(err)
	} else if swept > 0 {
		c.logAudit("sweep_sentinels", "/tmp", true, nil, fmt.Sprintf("%d file(s) removed", swept))
	}

	succeeded, failed := 0, 0
	for _, e := range c.auditLog {
		if e.Success {
			succeeded++
		} else {
			failed++
		}
	}
	c.log.Info().Int("succeeded", succeeded).Int("failed", failed).Msg("cleanup: complete")

	return firstErr
}

// sweepSentinels removes any leftover "/tmp/terminate_*" files the
// mutation tool watches for, which should not outlive a Session but can if
// the process was killed before Session.Close ran.
func sweepSentinels() (int, error) {
	matches, err := filepath.Glob("/tmp/terminate_*")
	if err != nil {
		return 0, fmt.Errorf("cleanup: globbing sentinel files: %w", err)
	}
	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("cleanup: removing sentinel file %s: %w", m, err)
		}
		removed++
	}
	return removed, nil
}

func (c *Coordinator) logAudit(action, target string, success bool, err error, details string) {
	c.auditLog = append(c.auditLog, AuditEntry{
		Timestamp: time.Now(),
		Action:    action,
		Target:    target,
		Success:   success,
		Error:     err,
		Details:   details,
	})
}

// AuditLog returns the complete, timestamped log of cleanup actions.
func (c *Coordinator) AuditLog() []AuditEntry {
	return c.auditLog
}

// PrintAuditLog writes the audit log to the coordinator's logger at debug
// level, one entry per line.
func (c *Coordinator) PrintAuditLog() {
	if len(c.auditLog) == 0 {
		c.log.Debug().Msg("cleanup: no actions logged")
		return
	}
	for i, e := range c.auditLog {
		ev := c.log.Debug().Int("seq", i+1).Str("action", e.Action).Str("target", e.Target).Bool("success", e.Success).Str("details", e.Details)
		if e.Error != nil {
			ev = ev.AnErr("error", e.Error)
		}
		ev.Msg("cleanup action")
	}
}

// Summary returns aggregate counts over the audit log.
func (c *Coordinator) Summary() Summary {
	s := Summary{TotalActions: len(c.auditLog)}
	for _, e := range c.auditLog {
		if e.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// Summary holds aggregate cleanup-action counts.
type Summary struct {
	TotalActions int
	Succeeded    int
	Failed       int
}

// String renders the summary as a single line.
func (s Summary) String() string {
	return fmt.Sprintf("cleanup summary: %d total, %d succeeded, %d failed", s.TotalActions, s.Succeeded, s.Failed)
}
