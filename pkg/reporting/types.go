package reporting

import (
	"time"

	"github.com/repaircore/repaircore/pkg/core/cleanup"
	"github.com/repaircore/repaircore/pkg/model"
)

// RunReport is the complete record of one repair run: what was asked for,
// what came out of the archive, and what cleanup did afterward.
type RunReport struct {
	RunID      string    `json:"run_id"`
	SourceFile string    `json:"source_file"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Duration   string    `json:"duration"`

	Status  RunStatus `json:"status"`
	Message string    `json:"message,omitempty"`

	Patches            []model.PlausiblePatch `json:"patches"`
	Evaluated          int                     `json:"evaluated"`
	ArchiveSize        int                     `json:"archive_size"`
	BetterThanOriginal int                     `json:"better_than_original"`

	Generations []GenerationSummary `json:"generations,omitempty"`

	CleanupSummary cleanup.Summary      `json:"cleanup_summary"`
	CleanupLog     []cleanup.AuditEntry `json:"cleanup_log,omitempty"`

	Errors []string `json:"errors,omitempty"`
}

// RunStatus is the terminal disposition of a repair run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusTimedOut  RunStatus = "timed_out"
	StatusStopped   RunStatus = "stopped"
	StatusFailed    RunStatus = "failed"
)

// GenerationSummary mirrors one engine.GenerationRecord in a
// storage/display-friendly, dependency-free shape.
type GenerationSummary struct {
	Generation int    `json:"generation"`
	Operator   string `json:"operator"`
	Evaluated  int    `json:"evaluated"`

	MinHard []int `json:"min_hard"`
	MaxHard []int `json:"max_hard"`

	MinTargetedVulnerabilities int `json:"min_targeted_vulnerabilities"`
	MaxTargetedVulnerabilities int `json:"max_targeted_vulnerabilities"`
}
