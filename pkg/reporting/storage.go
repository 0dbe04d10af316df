package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Storage persists RunReports to JSON files, keeping only the most recent
// keepLastN.
type Storage struct {
	outputDir string
	keepLastN int
	logger    *Logger
}

// NewStorage builds a Storage rooted at outputDir, creating it if absent.
func NewStorage(outputDir string, keepLastN int, logger *Logger) (*Storage, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("reporting: creating output directory: %w", err)
	}
	return &Storage{outputDir: outputDir, keepLastN: keepLastN, logger: logger}, nil
}

// SaveReport writes report as an indented JSON file named by its start time
// and run ID, then (if keepLastN > 0) prunes older reports.
func (s *Storage) SaveReport(report *RunReport) (string, error) {
	timestamp := report.StartTime.Format("20060102-150405")
	filename := fmt.Sprintf("repair-%s-%s.json", timestamp, report.RunID)
	path := filepath.Join(s.outputDir, filename)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("reporting: marshaling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("reporting: writing report file: %w", err)
	}
	s.logger.Info("run report saved", "path", path)

	if s.keepLastN > 0 {
		if err := s.cleanupOldReports(); err != nil {
			s.logger.Warn("failed to cleanup old reports", "error", err)
		}
	}
	return path, nil
}

// LoadReport reads and parses a report file written by SaveReport.
func (s *Storage) LoadReport(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reporting: reading report file: %w", err)
	}
	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("reporting: unmarshaling report: %w", err)
	}
	return &report, nil
}

// ListReports returns every report in the output directory, newest first.
func (s *Storage) ListReports() ([]ReportSummary, error) {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return nil, fmt.Errorf("reporting: reading output directory: %w", err)
	}

	summaries := make([]ReportSummary, 0)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.outputDir, entry.Name())
		report, err := s.LoadReport(path)
		if err != nil {
			s.logger.Warn("failed to load report", "path", path, "error", err)
			continue
		}
		summaries = append(summaries, ReportSummary{
			RunID:      report.RunID,
			SourceFile: report.SourceFile,
			StartTime:  report.StartTime,
			Duration:   report.Duration,
			Status:     report.Status,
			Filepath:   path,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime.After(summaries[j].StartTime)
	})
	return summaries, nil
}

// FindReportByRunID locates and loads the report for runID.
func (s *Storage) FindReportByRunID(runID string) (*RunReport, error) {
	summaries, err := s.ListReports()
	if err != nil {
		return nil, err
	}
	for _, summary := range summaries {
		if summary.RunID == runID {
			return s.LoadReport(summary.Filepath)
		}
	}
	return nil, fmt.Errorf("reporting: no report found for run ID %s", runID)
}

func (s *Storage) cleanupOldReports() error {
	summaries, err := s.ListReports()
	if err != nil {
		return err
	}
	if len(summaries) <= s.keepLastN {
		return nil
	}

	for _, summary := range summaries[s.keepLastN:] {
		if err := os.Remove(summary.Filepath); err != nil {
			s.logger.Warn("failed to delete old report", "path", summary.Filepath, "error", err)
		} else {
			s.logger.Debug("deleted old report", "path", summary.Filepath)
		}
	}
	return nil
}

// OutputDir returns the directory reports are written to.
func (s *Storage) OutputDir() string {
	return s.outputDir
}

// ReportSummary is a lightweight index entry over a stored RunReport.
type ReportSummary struct {
	RunID      string    `json:"run_id"`
	SourceFile string    `json:"source_file"`
	StartTime  time.Time `json:"start_time"`
	Duration   string    `json:"duration"`
	Status     RunStatus `json:"status"`
	Filepath   string    `json:"filepath"`
}
