package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/repaircore/repaircore/pkg/analyzer"
	"github.com/repaircore/repaircore/pkg/config"
	"github.com/repaircore/repaircore/pkg/engine"
	"github.com/repaircore/repaircore/pkg/evaluator"
	"github.com/repaircore/repaircore/pkg/gas"
	"github.com/repaircore/repaircore/pkg/metrics"
	"github.com/repaircore/repaircore/pkg/model"
	"github.com/repaircore/repaircore/pkg/mutation"
	"github.com/repaircore/repaircore/pkg/orchestrator"
	"github.com/repaircore/repaircore/pkg/reporting"
	"github.com/repaircore/repaircore/pkg/sandbox"
	"github.com/repaircore/repaircore/pkg/testrunner"
)

var repairCmd = &cobra.Command{
	Use:   "repair <source_file>",
	Args:  cobra.ExactArgs(1),
	Short: "Search for a plausible patch to a vulnerable contract",
	Long: `Repair evaluates the candidate contract against the configured detectors,
then breeds mutations of it under a multi-objective genetic search until a
plausible patch is found, the trial budget is exhausted, the timeout fires,
or an operator stop is requested.`,
	RunE: runRepair,
}

// addRepairFlags registers the repair flag surface on cmd. It's shared
// between rootCmd (so "repaircore <source_file>" works directly, the
// primary path) and repairCmd (an explicit synonym that also carries
// --repair_target).
func addRepairFlags(cmd *cobra.Command) {
	cmd.Flags().String("targetContractName", "", "the contract name under test (required)")
	cmd.MarkFlagRequired("targetContractName")
	cmd.Flags().String("timeout", "", "wall-clock budget in seconds (default: unlimited)")
	cmd.Flags().Bool("json", false, "reserved for structured output")
	cmd.Flags().String("format", "text", "progress/summary output format (text, json, tui)")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address for the run's duration (e.g. 127.0.0.1:9090)")
	cmd.Flags().Bool("dry-run", false, "validate configuration and print the resolved plan without executing")

	// Detection group
	cmd.Flags().StringArray("detectorArg", nil, "detector configuration KEY=VALUE (repeatable)")
	cmd.Flags().StringArray("targetVul", nil, "targeted vulnerability name (repeatable)")
	cmd.Flags().StringArray("targetLoc", nil, "targeted code range, JSON-encoded CodeRange (repeatable)")

	// Synthesis group
	cmd.Flags().StringArray("synthesizerArg", nil, "mutation engine configuration KEY=VALUE (repeatable)")

	// Core group
	cmd.Flags().String("core", "moga", "search core to use")
	cmd.Flags().StringArray("coreArg", nil, "core configuration KEY=VALUE (repeatable)")

	// --repair_target is the one flag spec.md scopes to the "repair"
	// subcommand; registering it on rootCmd too keeps the default action
	// and the explicit synonym at parity.
	cmd.Flags().StringArray("repair_target", nil, "DETECTOR=REMAINING:N or DETECTOR=REPAIRED:N (repeatable)")
}

func init() {
	addRepairFlags(repairCmd)
	addRepairFlags(rootCmd)
	rootCmd.Args = cobra.ExactArgs(1)
	rootCmd.RunE = runRepair
}

func runRepair(cmd *cobra.Command, args []string) error {
	sourceFile := args[0]

	targetContractName, _ := cmd.Flags().GetString("targetContractName")
	timeoutSeconds, _ := cmd.Flags().GetString("timeout")
	outputFormat, _ := cmd.Flags().GetString("format")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	detectorArgs, _ := cmd.Flags().GetStringArray("detectorArg")
	targetedVul, _ := cmd.Flags().GetStringArray("targetVul")
	targetedLoc, _ := cmd.Flags().GetStringArray("targetLoc")
	synthesizerArgs, _ := cmd.Flags().GetStringArray("synthesizerArg")
	coreName, _ := cmd.Flags().GetString("core")
	coreArgs, _ := cmd.Flags().GetStringArray("coreArg")
	repairTargetFlags, _ := cmd.Flags().GetStringArray("repair_target")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.Core.Name = coreName
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}

	for _, kv := range detectorArgs {
		if err := cfg.ApplyDetectorArg(kv); err != nil {
			return err
		}
	}
	for _, kv := range synthesizerArgs {
		if err := cfg.ApplySynthesizerArg(kv); err != nil {
			return err
		}
	}
	for _, kv := range coreArgs {
		if err := cfg.ApplyCoreArg(kv); err != nil {
			return err
		}
	}
	for _, raw := range targetedLoc {
		if err := cfg.ApplyTargetLoc(raw); err != nil {
			return err
		}
	}
	cfg.Detection.TargetedVul = append(cfg.Detection.TargetedVul, targetedVul...)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var repairTargetSpecs []model.RepairTargetSpec
	for _, flag := range repairTargetFlags {
		spec, err := model.ParseRepairTargetFlag(flag)
		if err != nil {
			return err
		}
		repairTargetSpecs = append(repairTargetSpecs, spec)
	}

	if dryRun {
		fmt.Printf("✅ Configuration valid (dry-run mode)\n")
		fmt.Printf("   Source file: %s\n", sourceFile)
		fmt.Printf("   Target contract: %s\n", targetContractName)
		fmt.Printf("   Core: %s (p_crossover=%.2f, init_population=%d, max_population=%d)\n",
			cfg.Core.Name, cfg.Core.PCrossover, cfg.Core.NumInitPopulation, cfg.Core.MaxSizePopulation)
		fmt.Printf("   Targeted vulnerabilities: %v\n", cfg.Detection.TargetedVul)
		fmt.Printf("   Repair targets: %v\n", repairTargetSpecs)
		return nil
	}

	logLevel := reporting.LogLevelInfo
	if envLevel := cfg.LogLevelFromEnv(); envLevel != "" {
		logLevel = reporting.LogLevel(envLevel)
	}
	if verbose {
		logLevel = reporting.LogLevelDebug
	}
	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  logLevel,
		Format: reporting.LogFormat(cfg.Logging.Format),
		Output: os.Stdout,
	})
	zlog := logger.GetZerologLogger()

	timeout, err := config.ParseTimeoutSeconds(timeoutSeconds)
	if err != nil {
		return err
	}

	var engineMetrics *metrics.Engine
	var sandboxMetrics *metrics.Sandbox
	if cfg.Metrics.Addr != "" {
		engineMetrics = metrics.NewEngine()
		sandboxMetrics = metrics.NewSandbox()

		metricsCtx, stopMetrics := context.WithCancel(context.Background())
		defer stopMetrics()
		go func() {
			if err := metrics.Serve(metricsCtx, cfg.Metrics.Addr); err != nil {
				logger.Warn("metrics server exited", "error", err)
			}
		}()
		logger.Info("metrics endpoint listening", "addr", cfg.Metrics.Addr)
	}

	runner, err := sandbox.New()
	if err != nil {
		return fmt.Errorf("failed to create sandbox runner: %w", err)
	}
	defer runner.Close()

	pool := sandbox.NewPool(cfg.Sandbox.PoolSizeOrDefault(runtime.NumCPU()))

	staticAnalyzer := analyzer.New("static", runner, pool, cfg.Sandbox.StaticAnalyzerImage)
	gasRanker := gas.New(runner, pool, cfg.Core.OyenteDockerImage)
	if sandboxMetrics != nil {
		staticAnalyzer.SetMetrics(sandboxMetrics)
		gasRanker.SetMetrics(sandboxMetrics)
	}

	detectors := map[string]evaluator.Detector{
		"static": evaluator.WrapStaticDetector(staticAnalyzer.Detect),
	}
	notSkippable := map[string]bool{"static": true}
	detectorOrder := []string{"static"}

	if testCaseDir, ok := cfg.Detection.Args["testcase-dir"]; ok && testCaseDir != "" {
		trCfg := testrunner.Config{
			TestCaseDir:     testCaseDir,
			CompileCmd:      cfg.Detection.Args["compile-cmd"],
			TxToolPath:      cfg.Detection.Args["tx-tool-path"],
			TestEthCmd:      cfg.Detection.Args["testeth-cmd"],
			ContractAddr:    cfg.Detection.Args["contract-addr"],
			ConcurrentLimit: atoiOrZero(cfg.Detection.Args["concurrent-limit"]),
		}
		dynamicRunner, err := testrunner.New(trCfg)
		if err != nil {
			return fmt.Errorf("failed to create dynamic test runner: %w", err)
		}
		detectors["dynamic"] = evaluator.WrapContractDetector(dynamicRunner.Detect)
		notSkippable["dynamic"] = false
		detectorOrder = append(detectorOrder, "dynamic")
	}

	eval := evaluator.New(evaluator.Config{
		Detectors:    detectors,
		NotSkippable: notSkippable,
		GasRanker:    gasRanker,
	})

	mutator := mutation.New(mutation.Config{
		BinPath:              cfg.Synthesis.Args["bin-path"],
		MutationTypes:        splitCSV(cfg.Synthesis.Args["mutation-types"]),
		Seed:                 cfg.Core.Seed,
		OutputMutation:       cfg.Synthesis.Args["output-mutation"] == "true",
		ForNodeTypes:         splitCSV(cfg.Synthesis.Args["for-node-types"]),
		ReplaceableNodeTypes: splitCSV(cfg.Synthesis.Args["replaceable-node-types"]),
	})

	engineCfg := engine.Config{
		SourcePath:          sourceFile,
		TargetContractName:  targetContractName,
		DetectorOrder:       detectorOrder,
		TargetedNames:       cfg.Detection.TargetedVul,
		TargetedRanges:      cfg.Detection.TargetedLoc,
		RepairTargetSpecs:   repairTargetSpecs,
		FaultSpaceSpecifier: cfg.Core.FaultSpaceSpecifier,
		PCrossover:          cfg.Core.PCrossover,
		InitPopulationSize:  cfg.Core.NumInitPopulation,
		MaxPopulationSize:   cfg.Core.MaxSizePopulation,
		Seed:                seedFromConfig(cfg.Core.Seed),
	}
	eng := engine.New(engineCfg, eval, mutator, zlog)
	if engineMetrics != nil {
		eng.SetMetrics(engineMetrics)
	}

	orchCfg := orchestrator.Config{
		Timeout:  timeout,
		StopFile: cfg.Control.StopFile,
	}
	orch := orchestrator.New(orchCfg, eng, zlog)

	storage, err := reporting.NewStorage(cfg.Reporting.OutputDir, cfg.Reporting.KeepLastN, logger)
	if err != nil {
		return fmt.Errorf("failed to create report storage: %w", err)
	}
	progressReporter := reporting.NewProgressReporter(reporting.OutputFormat(outputFormat), logger)

	logger.Info("repair run starting", "source", sourceFile, "target_contract", targetContractName)
	result, runErr := orch.Run(context.Background())

	report := buildRunReport(sourceFile, result, runErr, eng, orch)
	if _, saveErr := storage.SaveReport(report); saveErr != nil {
		logger.Warn("failed to save report", "error", saveErr)
	}
	progressReporter.ReportRunCompleted(report)

	if runErr != nil {
		return fmt.Errorf("repair run failed: %w", runErr)
	}
	return nil
}

func buildRunReport(sourceFile string, result *orchestrator.Result, runErr error, eng *engine.Engine, orch *orchestrator.Orchestrator) *reporting.RunReport {
	status := reporting.StatusCompleted
	switch {
	case runErr != nil:
		status = reporting.StatusFailed
	case result.Stopped:
		status = reporting.StatusStopped
	case result.TimedOut:
		status = reporting.StatusTimedOut
	}

	var errs []string
	if runErr != nil {
		errs = append(errs, runErr.Error())
	}

	return &reporting.RunReport{
		RunID:              uuid.NewString(),
		SourceFile:         sourceFile,
		StartTime:          result.StartTime,
		EndTime:            result.EndTime,
		Duration:           result.Duration.String(),
		Status:             status,
		Patches:            result.Patches,
		Evaluated:          result.Evaluated,
		ArchiveSize:        result.ArchiveSize,
		BetterThanOriginal: result.BetterThanOriginal,
		Generations:        reporting.ConvertGenerationRecords(eng.Recorder().Records),
		CleanupSummary:     orch.CleanupSummary(),
		Errors:             errs,
	}
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func seedFromConfig(seed *string) int64 {
	if seed == nil {
		return 0
	}
	n, _ := strconv.ParseInt(*seed, 10, 64)
	return n
}
