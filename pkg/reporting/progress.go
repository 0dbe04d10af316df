package reporting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OutputFormat represents the progress output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatTUI  OutputFormat = "tui"
)

// ProgressReporter reports repair-run progress: one line (or one JSON
// object, or one TUI redraw) per generation, plus a final run summary.
type ProgressReporter struct {
	format OutputFormat
	logger *Logger
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter(format OutputFormat, logger *Logger) *ProgressReporter {
	return &ProgressReporter{
		format: format,
		logger: logger,
	}
}

// ReportGeneration reports one completed generation of the search.
func (pr *ProgressReporter) ReportGeneration(gen GenerationSummary) {
	switch pr.format {
	case FormatJSON:
		pr.reportJSON(gen)
	case FormatTUI:
		pr.reportTUI(gen)
	default:
		pr.reportText(gen)
	}
}

// ReportStateTransition reports a high-level phase change, e.g.
// "evaluating original" → "searching".
func (pr *ProgressReporter) ReportStateTransition(from, to string) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":      "state_transition",
			"from_state": from,
			"to_state":   to,
			"timestamp":  time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Printf("🔄 State Transition: %s → %s\n", from, to)
	default:
		fmt.Printf("[STATE] %s → %s\n", from, to)
	}
}

// ReportCleanupStarted reports cleanup started
func (pr *ProgressReporter) ReportCleanupStarted() {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "cleanup_started",
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Println("🧹 Starting cleanup...")
	default:
		fmt.Println("[CLEANUP] Starting cleanup...")
	}
}

// ReportCleanupCompleted reports cleanup completed
func (pr *ProgressReporter) ReportCleanupCompleted(succeeded, failed int) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "cleanup_completed",
			"succeeded": succeeded,
			"failed":    failed,
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Printf("🧹 Cleanup complete: %d succeeded, %d failed\n", succeeded, failed)
	default:
		fmt.Printf("[CLEANUP] Complete: %d succeeded, %d failed\n", succeeded, failed)
	}
}

// ReportRunCompleted reports the terminal outcome of a repair run: the
// patched file paths for each plausible patch, or an explicit
// "No plausible patch found" message when the report holds no plausible patch. The
// JSON format emits the whole report as one event instead.
func (pr *ProgressReporter) ReportRunCompleted(report *RunReport) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "run_completed",
			"report":    report,
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		pr.printRunSummary(report)
	default:
		pr.printTextSummary(report)
	}
}

// reportText outputs one generation's progress in plain text format
func (pr *ProgressReporter) reportText(gen GenerationSummary) {
	fmt.Printf("[%s] gen=%d op=%s evaluated=%d min_hard=%v max_hard=%v\n",
		time.Now().Format("15:04:05"),
		gen.Generation,
		gen.Operator,
		gen.Evaluated,
		gen.MinHard,
		gen.MaxHard,
	)
}

// reportJSON outputs one generation's progress in JSON format
func (pr *ProgressReporter) reportJSON(gen GenerationSummary) {
	data, err := json.Marshal(gen)
	if err != nil {
		pr.logger.Error("Failed to marshal generation summary", "error", err)
		return
	}
	fmt.Println(string(data))
}

// reportTUI outputs one generation's progress in terminal UI format
func (pr *ProgressReporter) reportTUI(gen GenerationSummary) {
	pr.clearLine()
	fmt.Printf("📊 Generation %d (%s): evaluated=%d min_hard=%v max_hard=%v targeted_vul=[%d,%d]\n",
		gen.Generation,
		gen.Operator,
		gen.Evaluated,
		gen.MinHard,
		gen.MaxHard,
		gen.MinTargetedVulnerabilities,
		gen.MaxTargetedVulnerabilities,
	)
}

// printRunSummary prints a run summary in TUI format
func (pr *ProgressReporter) printRunSummary(report *RunReport) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("   REPAIR RUN SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	statusIcon := "✅"
	switch report.Status {
	case StatusStopped:
		statusIcon = "🛑"
	case StatusTimedOut:
		statusIcon = "⏱️"
	case StatusFailed:
		statusIcon = "❌"
	}

	fmt.Printf("%s Run %s\n", statusIcon, report.Status)
	fmt.Printf("   Source: %s\n", report.SourceFile)
	fmt.Printf("   Run ID: %s\n", report.RunID)
	fmt.Printf("   Duration: %s\n", report.Duration)
	fmt.Println()

	fmt.Printf("🔬 Evaluated: %d, archive: %d, better than original: %d\n",
		report.Evaluated, report.ArchiveSize, report.BetterThanOriginal)
	fmt.Println()

	if len(report.Patches) == 0 {
		fmt.Println("🚫 No plausible patch found")
	} else {
		fmt.Printf("🩹 Plausible patches (%d):\n", len(report.Patches))
		for _, patch := range report.Patches {
			fmt.Printf("   • %s\n", patch.PatchedFile)
		}
	}
	fmt.Println()

	fmt.Printf("🧹 Cleanup: %d succeeded, %d failed\n",
		report.CleanupSummary.Succeeded,
		report.CleanupSummary.Failed,
	)
	fmt.Println()

	fmt.Println(strings.Repeat("=", 80))
}

// printTextSummary prints a run summary in plain text format
func (pr *ProgressReporter) printTextSummary(report *RunReport) {
	fmt.Printf("\n[RUN SUMMARY] %s\n", report.Status)
	fmt.Printf("  Source: %s\n", report.SourceFile)
	fmt.Printf("  Run ID: %s\n", report.RunID)
	fmt.Printf("  Duration: %s\n", report.Duration)
	fmt.Printf("  Evaluated: %d\n", report.Evaluated)
	fmt.Printf("  Archive size: %d\n", report.ArchiveSize)
	fmt.Printf("  Better than original: %d\n", report.BetterThanOriginal)

	if len(report.Patches) == 0 {
		fmt.Println("  No plausible patch found")
	} else {
		fmt.Printf("  Plausible patches (%d):\n", len(report.Patches))
		for _, patch := range report.Patches {
			fmt.Printf("    - %s\n", patch.PatchedFile)
		}
	}

	fmt.Printf("  Cleanup: %d succeeded, %d failed\n",
		report.CleanupSummary.Succeeded,
		report.CleanupSummary.Failed,
	)
	fmt.Println()
}

// clearScreen clears the terminal screen
func (pr *ProgressReporter) clearScreen() {
	// ANSI escape code to clear screen and move cursor to top
	fmt.Print("\033[2J\033[H")
}

// clearLine clears the current line
func (pr *ProgressReporter) clearLine() {
	// ANSI escape code to clear current line
	fmt.Print("\033[K")
}
