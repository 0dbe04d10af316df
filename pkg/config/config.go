// Package config implements repaircore.Config: a YAML-backed configuration
// struct, loaded with env-var expansion over the raw file bytes before
// unmarshalling, then overridden by the CLI's
// `--detectorArg`/`--synthesizerArg`/`--coreArg KEY=VALUE` flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/repaircore/repaircore/pkg/model"
)

// Config is the top-level repaircore configuration: everything the CLI
// needs to build an Evaluator, a Mutation Engine Client, and an
// Orchestrator for one repair run.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Control   ControlConfig   `yaml:"control"`
	Detection DetectionConfig `yaml:"detection"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Core      CoreConfig      `yaml:"core"`
	Reporting ReportingConfig `yaml:"reporting"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ReportingConfig controls where RunReports are persisted and how many are
// retained.
type ReportingConfig struct {
	OutputDir string `yaml:"output_dir"`
	KeepLastN int    `yaml:"keep_last_n"`
}

// MetricsConfig controls the optional Prometheus metrics exporter.
type MetricsConfig struct {
	// Addr, when non-empty, serves /metrics on this address for the
	// duration of the run (e.g. "127.0.0.1:9090").
	Addr string `yaml:"addr"`
}

// LoggingConfig controls the reporting.Logger built at startup.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SandboxConfig bounds the shared worker pool the Static Analyzer Adapter
// and Gas Ranker block on before launching a container.
type SandboxConfig struct {
	PoolSize            int    `yaml:"pool_size"`
	StaticAnalyzerImage string `yaml:"static_analyzer_image"`
}

// ControlConfig configures the Orchestrator's deadline/stop controller.
type ControlConfig struct {
	StopFile string `yaml:"stop_file"`
}

// DetectionConfig holds the detection-group CLI surface: which analyzers
// run, against which named vulnerabilities and/or code ranges.
type DetectionConfig struct {
	// Args accumulates repeated --detectorArg KEY=VALUE flags, keyed by
	// KEY, e.g. a per-detector image override or test-case directory.
	Args map[string]string `yaml:"args"`
	// TargetedVul accumulates repeated --targetVul flags.
	TargetedVul []string `yaml:"targeted_vul"`
	// TargetedLoc accumulates repeated --targetLoc flags (JSON-encoded
	// CodeRange values).
	TargetedLoc []model.CodeRange `yaml:"-"`
}

// SynthesisConfig holds the synthesis-group CLI surface: the Mutation
// Engine Client's tunables.
type SynthesisConfig struct {
	// Args accumulates repeated --synthesizerArg KEY=VALUE flags, keyed by
	// KEY (e.g. "bin-path", "mutation-types", "for-node-types").
	Args map[string]string `yaml:"args"`
}

// CoreConfig holds the core-group CLI surface: the MOGA Engine's tunables.
type CoreConfig struct {
	Name string `yaml:"name"`

	FaultSpaceSpecifier *string `yaml:"-"`
	Seed                *string `yaml:"-"`
	PCrossover          float64 `yaml:"p_crossover"`
	NumInitPopulation   int     `yaml:"num_init_population"`
	MaxSizePopulation   int     `yaml:"max_size_population"`
	DisableGasObjective bool    `yaml:"disable_gas_objective"` // reserved
	OyenteDockerImage   string  `yaml:"oyente_docker_image"`
	PathGenealogyGraph  string  `yaml:"path_genealogy_graph"` // reserved
	MaxMutationDist     int     `yaml:"max_mutation_dist"`    // reserved
}

// DefaultConfig returns repaircore's baked-in defaults, overridden by any
// config file and then by CLI flags.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Sandbox: SandboxConfig{
			PoolSize: 0, // 0 means "number of CPUs", resolved by the caller
		},
		Control: ControlConfig{
			StopFile: "/tmp/repaircore-stop",
		},
		Detection: DetectionConfig{
			Args: make(map[string]string),
		},
		Synthesis: SynthesisConfig{
			Args: make(map[string]string),
		},
		Core: CoreConfig{
			Name:              "moga",
			PCrossover:        0.3,
			NumInitPopulation: 8,
			MaxSizePopulation: 20,
		},
		Reporting: ReportingConfig{
			OutputDir: "reports",
			KeepLastN: 50,
		},
	}
}

// Load reads and parses a YAML config file at path, starting from
// DefaultConfig and overlaying whatever the file sets. An empty or missing
// path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.Detection.Args == nil {
		cfg.Detection.Args = make(map[string]string)
	}
	if cfg.Synthesis.Args == nil {
		cfg.Synthesis.Args = make(map[string]string)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

// Validate checks the fields required to actually launch a repair run.
func (c *Config) Validate() error {
	if c.Core.OyenteDockerImage == "" {
		return fmt.Errorf("core.oyente_docker_image (--coreArg oyente-docker-image=...) is required")
	}
	if c.Sandbox.StaticAnalyzerImage == "" {
		return fmt.Errorf("sandbox.static_analyzer_image is required")
	}
	if c.Core.PCrossover < 0 || c.Core.PCrossover > 1 {
		return fmt.Errorf("core.p_crossover must be within [0, 1], got %v", c.Core.PCrossover)
	}
	if c.Core.NumInitPopulation < 1 {
		return fmt.Errorf("core.num_init_population must be at least 1")
	}
	if c.Core.MaxSizePopulation < 1 {
		return fmt.Errorf("core.max_size_population must be at least 1")
	}
	return nil
}

// ApplyDetectorArg parses one `--detectorArg KEY=VALUE` flag into
// c.Detection.Args.
func (c *Config) ApplyDetectorArg(kv string) error {
	return applyKeyValue(c.Detection.Args, "detectorArg", kv)
}

// ApplySynthesizerArg parses one `--synthesizerArg KEY=VALUE` flag into
// c.Synthesis.Args.
func (c *Config) ApplySynthesizerArg(kv string) error {
	return applyKeyValue(c.Synthesis.Args, "synthesizerArg", kv)
}

// ApplyCoreArg parses one `--coreArg KEY=VALUE` flag, recognizing the
// fixed set of core keys spec.md §6 names and rejecting anything else.
func (c *Config) ApplyCoreArg(kv string) error {
	key, value, err := splitKeyValue("coreArg", kv)
	if err != nil {
		return err
	}

	switch key {
	case "fault-space-specifier":
		v := value
		c.Core.FaultSpaceSpecifier = &v
	case "seed":
		v := value
		c.Core.Seed = &v
	case "p-crossover":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("config: --coreArg p-crossover: %w", err)
		}
		c.Core.PCrossover = f
	case "num-init-population":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: --coreArg num-init-population: %w", err)
		}
		c.Core.NumInitPopulation = n
	case "max-size-population":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: --coreArg max-size-population: %w", err)
		}
		c.Core.MaxSizePopulation = n
	case "disable-gas-objective":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: --coreArg disable-gas-objective: %w", err)
		}
		c.Core.DisableGasObjective = b
	case "oyente-docker-image":
		c.Core.OyenteDockerImage = value
	case "path-genealogy-graph":
		c.Core.PathGenealogyGraph = value
	case "max-mutation-dist":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: --coreArg max-mutation-dist: %w", err)
		}
		c.Core.MaxMutationDist = n
	default:
		return fmt.Errorf("config: unrecognized --coreArg key %q", key)
	}
	return nil
}

// ApplyTargetLoc parses one `--targetLoc` flag's JSON-encoded CodeRange and
// appends it to c.Detection.TargetedLoc.
func (c *Config) ApplyTargetLoc(raw string) error {
	var cr model.CodeRange
	if err := json.Unmarshal([]byte(raw), &cr); err != nil {
		return fmt.Errorf("config: parsing --targetLoc %q: %w", raw, err)
	}
	c.Detection.TargetedLoc = append(c.Detection.TargetedLoc, cr)
	return nil
}

func applyKeyValue(into map[string]string, flagName, kv string) error {
	key, value, err := splitKeyValue(flagName, kv)
	if err != nil {
		return err
	}
	into[key] = value
	return nil
}

func splitKeyValue(flagName, kv string) (key, value string, err error) {
	parts := strings.SplitN(kv, "=", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", fmt.Errorf("config: --%s must be KEY=VALUE, got %q", flagName, kv)
	}
	return parts[0], parts[1], nil
}

// LogLevelFromEnv reads the LOG_LEVEL environment variable, falling back to
// cfg's configured level when unset.
func (c *Config) LogLevelFromEnv() string {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		return v
	}
	return c.Logging.Level
}

// PoolSizeOrDefault resolves SandboxConfig.PoolSize, treating 0 as "unset".
func (s SandboxConfig) PoolSizeOrDefault(numCPU int) int {
	if s.PoolSize > 0 {
		return s.PoolSize
	}
	if numCPU > 0 {
		return numCPU
	}
	return 1
}

// ParseTimeoutSeconds parses a "--timeout <seconds>" CLI value into a time.Duration; a
// non-positive or empty value means unlimited (duration 0).
func ParseTimeoutSeconds(seconds string) (time.Duration, error) {
	if seconds == "" {
		return 0, nil
	}
	n, err := strconv.ParseFloat(seconds, 64)
	if err != nil {
		return 0, fmt.Errorf("config: parsing --timeout %q: %w", seconds, err)
	}
	if n <= 0 {
		return 0, nil
	}
	return time.Duration(n * float64(time.Second)), nil
}
