package reporting

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ReportFormat represents the report output format
type ReportFormat string

const (
	ReportFormatHTML ReportFormat = "html"
	ReportFormatText ReportFormat = "text"
	ReportFormatJSON ReportFormat = "json"
)

// Formatter generates formatted reports from run data.
type Formatter struct {
	logger *Logger
}

// NewFormatter creates a new report formatter
func NewFormatter(logger *Logger) *Formatter {
	return &Formatter{
		logger: logger,
	}
}

// GenerateReport generates a report in the specified format
func (f *Formatter) GenerateReport(report *RunReport, format ReportFormat, outputPath string) error {
	switch format {
	case ReportFormatHTML:
		return f.generateHTMLReport(report, outputPath)
	case ReportFormatText:
		return f.generateTextReport(report, outputPath)
	case ReportFormatJSON:
		// Already handled by storage
		return fmt.Errorf("JSON format is automatically saved by storage")
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// generateHTMLReport generates an HTML report
func (f *Formatter) generateHTMLReport(report *RunReport, outputPath string) error {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04:05")
		},
		"statusClass": func(status RunStatus) string {
			if status == StatusCompleted {
				return "pass"
			}
			return "fail"
		},
		"statusIcon": func(status RunStatus) string {
			if status == StatusCompleted {
				return "✅"
			}
			return "❌"
		},
	}).Parse(htmlTemplate)

	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, report); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}

	f.logger.Info("HTML report generated", "path", outputPath)
	return nil
}

// generateTextReport generates a plain text report
func (f *Formatter) generateTextReport(report *RunReport, outputPath string) error {
	var buf bytes.Buffer

	// Header
	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString("   REPAIR RUN REPORT\n")
	buf.WriteString(strings.Repeat("=", 80) + "\n\n")

	buf.WriteString("RUN SUMMARY\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Status:       %s\n", report.Status))
	buf.WriteString(fmt.Sprintf("Run ID:       %s\n", report.RunID))
	buf.WriteString(fmt.Sprintf("Source File:  %s\n", report.SourceFile))
	buf.WriteString(fmt.Sprintf("Start Time:   %s\n", report.StartTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("End Time:     %s\n", report.EndTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("Duration:     %s\n", report.Duration))
	if report.Message != "" {
		buf.WriteString(fmt.Sprintf("Message:      %s\n", report.Message))
	}
	buf.WriteString("\n")

	buf.WriteString("SEARCH SUMMARY\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Individuals evaluated:  %d\n", report.Evaluated))
	buf.WriteString(fmt.Sprintf("Archive size:           %d\n", report.ArchiveSize))
	buf.WriteString(fmt.Sprintf("Better than original:   %d\n", report.BetterThanOriginal))
	buf.WriteString(fmt.Sprintf("Plausible patches:      %d\n", len(report.Patches)))
	buf.WriteString("\n")

	if len(report.Patches) > 0 {
		buf.WriteString("PLAUSIBLE PATCHES\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for i, patch := range report.Patches {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, patch.PatchedFile))
		}
		buf.WriteString("\n")
	}

	if len(report.Generations) > 0 {
		buf.WriteString("GENERATION HISTORY\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		buf.WriteString(fmt.Sprintf("%-6s %-14s %-10s %-10s %-10s\n",
			"Gen", "Operator", "Evaluated", "MinHard", "MaxHard"))
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for _, gen := range report.Generations {
			buf.WriteString(fmt.Sprintf("%-6d %-14s %-10d %-10v %-10v\n",
				gen.Generation, gen.Operator, gen.Evaluated, gen.MinHard, gen.MaxHard))
		}
		buf.WriteString("\n")
	}

	// Cleanup Summary
	buf.WriteString("CLEANUP SUMMARY\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Total Actions: %d\n", report.CleanupSummary.TotalActions))
	buf.WriteString(fmt.Sprintf("Succeeded:     %d\n", report.CleanupSummary.Succeeded))
	buf.WriteString(fmt.Sprintf("Failed:        %d\n", report.CleanupSummary.Failed))
	buf.WriteString("\n")

	// Cleanup Audit Log
	if len(report.CleanupLog) > 0 {
		buf.WriteString("CLEANUP AUDIT LOG\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for i, entry := range report.CleanupLog {
			status := "✓"
			if !entry.Success {
				status = "✗"
			}
			buf.WriteString(fmt.Sprintf("%d. [%s] %s %s\n",
				i+1,
				entry.Timestamp.Format("15:04:05"),
				status,
				entry.Action,
			))
			buf.WriteString(fmt.Sprintf("   Target:  %s\n", entry.Target))
			buf.WriteString(fmt.Sprintf("   Details: %s\n", entry.Details))
			if entry.Error != nil {
				buf.WriteString(fmt.Sprintf("   Error:   %v\n", entry.Error))
			}
			buf.WriteString("\n")
		}
	}

	// Errors
	if len(report.Errors) > 0 {
		buf.WriteString("ERRORS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for i, err := range report.Errors {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, err))
		}
		buf.WriteString("\n")
	}

	// Footer
	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Generated: %s\n", time.Now().Format("2006-01-02 15:04:05")))
	buf.WriteString(strings.Repeat("=", 80) + "\n")

	// Write to file
	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}

	f.logger.Info("Text report generated", "path", outputPath)
	return nil
}

// CompareReports generates a comparison report for multiple repair runs
func (f *Formatter) CompareReports(reports []*RunReport, outputPath string) error {
	if len(reports) < 2 {
		return fmt.Errorf("need at least 2 reports to compare")
	}

	var buf bytes.Buffer

	// Header
	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString("   REPAIR RUN COMPARISON\n")
	buf.WriteString(strings.Repeat("=", 80) + "\n\n")

	// Sort by start time
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].StartTime.Before(reports[j].StartTime)
	})

	// Summary table
	buf.WriteString("RUN SUMMARY\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	buf.WriteString(fmt.Sprintf("%-20s %-15s %-12s %-10s %-10s\n",
		"Run ID", "Source", "Status", "Duration", "Patches"))
	buf.WriteString(strings.Repeat("-", 80) + "\n")

	for _, report := range reports {
		buf.WriteString(fmt.Sprintf("%-20s %-15s %-12s %-10s %d\n",
			report.RunID[:min(20, len(report.RunID))],
			report.SourceFile[:min(15, len(report.SourceFile))],
			report.Status,
			report.Duration,
			len(report.Patches),
		))
	}
	buf.WriteString("\n")

	// Search-quality comparison
	buf.WriteString("SEARCH COMPARISON\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	for _, report := range reports {
		buf.WriteString(fmt.Sprintf("  [%s] evaluated=%d archive=%d better_than_original=%d (%s)\n",
			report.RunID[:min(12, len(report.RunID))],
			report.Evaluated,
			report.ArchiveSize,
			report.BetterThanOriginal,
			report.StartTime.Format("15:04:05"),
		))
	}
	buf.WriteString("\n")

	// Write to file
	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write comparison report: %w", err)
	}

	f.logger.Info("Comparison report generated", "path", outputPath)
	return nil
}

// GetReportPath generates a report file path based on a run report and format
func GetReportPath(report *RunReport, format ReportFormat, outputDir string) string {
	timestamp := report.StartTime.Format("20060102-150405")
	ext := string(format)
	filename := fmt.Sprintf("report-%s-%s.%s", timestamp, report.RunID, ext)
	return filepath.Join(outputDir, filename)
}

// Helper function
func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// HTML template for report generation
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Repair Run Report - {{.RunID}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 1200px;
            margin: 0 auto;
            padding: 20px;
            background-color: #f5f5f5;
        }
        .container {
            background-color: white;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
            padding: 30px;
        }
        h1, h2 {
            color: #2c3e50;
            border-bottom: 2px solid #3498db;
            padding-bottom: 10px;
        }
        .header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px;
            border-radius: 8px 8px 0 0;
            margin: -30px -30px 30px -30px;
        }
        .status {
            display: inline-block;
            padding: 5px 15px;
            border-radius: 4px;
            font-weight: bold;
            margin-left: 10px;
        }
        .status.pass {
            background-color: #27ae60;
            color: white;
        }
        .status.fail {
            background-color: #e74c3c;
            color: white;
        }
        .info-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin: 20px 0;
        }
        .info-box {
            background-color: #ecf0f1;
            padding: 15px;
            border-radius: 4px;
        }
        .info-label {
            font-weight: bold;
            color: #7f8c8d;
            font-size: 0.9em;
            margin-bottom: 5px;
        }
        .info-value {
            font-size: 1.1em;
            color: #2c3e50;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            margin: 20px 0;
        }
        th, td {
            padding: 12px;
            text-align: left;
            border-bottom: 1px solid #ddd;
        }
        th {
            background-color: #3498db;
            color: white;
        }
        tr:hover {
            background-color: #f5f5f5;
        }
        .patch {
            margin: 15px 0;
            padding: 15px;
            border-left: 4px solid #27ae60;
            background-color: #f9f9f9;
        }
        .patch-name {
            font-weight: bold;
            font-size: 1.1em;
        }
        .audit-entry {
            padding: 10px;
            margin: 5px 0;
            border-radius: 4px;
            background-color: #f9f9f9;
        }
        .audit-success {
            border-left: 4px solid #27ae60;
        }
        .audit-failure {
            border-left: 4px solid #e74c3c;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Repair Run Report</h1>
            <p>{{.SourceFile}}</p>
            <p>Run ID: {{.RunID}}</p>
        </div>

        <h2>Run Summary<span class="status {{statusClass .Status}}">{{.Status}}</span></h2>
        <div class="info-grid">
            <div class="info-box">
                <div class="info-label">Start Time</div>
                <div class="info-value">{{formatTime .StartTime}}</div>
            </div>
            <div class="info-box">
                <div class="info-label">End Time</div>
                <div class="info-value">{{formatTime .EndTime}}</div>
            </div>
            <div class="info-box">
                <div class="info-label">Duration</div>
                <div class="info-value">{{.Duration}}</div>
            </div>
            <div class="info-box">
                <div class="info-label">Status</div>
                <div class="info-value">{{.Status}}</div>
            </div>
        </div>

        <h2>Search Summary</h2>
        <div class="info-grid">
            <div class="info-box">
                <div class="info-label">Evaluated</div>
                <div class="info-value">{{.Evaluated}}</div>
            </div>
            <div class="info-box">
                <div class="info-label">Archive Size</div>
                <div class="info-value">{{.ArchiveSize}}</div>
            </div>
            <div class="info-box">
                <div class="info-label">Better Than Original</div>
                <div class="info-value">{{.BetterThanOriginal}}</div>
            </div>
        </div>

        {{if .Patches}}
        <h2>Plausible Patches</h2>
        {{range .Patches}}
        <div class="patch">
            <div class="patch-name">{{.PatchedFile}}</div>
        </div>
        {{end}}
        {{end}}

        <h2>Cleanup Summary</h2>
        <div class="info-grid">
            <div class="info-box">
                <div class="info-label">Total Actions</div>
                <div class="info-value">{{.CleanupSummary.TotalActions}}</div>
            </div>
            <div class="info-box">
                <div class="info-label">Succeeded</div>
                <div class="info-value">{{.CleanupSummary.Succeeded}}</div>
            </div>
            <div class="info-box">
                <div class="info-label">Failed</div>
                <div class="info-value">{{.CleanupSummary.Failed}}</div>
            </div>
        </div>

        {{if .Errors}}
        <h2>Errors</h2>
        <ul>
            {{range .Errors}}
            <li>{{.}}</li>
            {{end}}
        </ul>
        {{end}}

        <p style="text-align: center; color: #7f8c8d; margin-top: 30px;">
            Generated by repaircore • {{formatTime .EndTime}}
        </p>
    </div>
</body>
</html>
`
