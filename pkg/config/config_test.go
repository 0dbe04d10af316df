package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadReturnsDefaultsWhenFileAbsent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Core.NumInitPopulation != 8 {
		t.Errorf("NumInitPopulation = %d, want the baked-in default 8", cfg.Core.NumInitPopulation)
	}
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("ORACLE_IMAGE", "oyente:pinned")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("core:\n  oyente_docker_image: ${ORACLE_IMAGE}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Core.OyenteDockerImage != "oyente:pinned" {
		t.Errorf("OyenteDockerImage = %q, want expanded ${ORACLE_IMAGE}", cfg.Core.OyenteDockerImage)
	}
}

func TestValidateRequiresOracleAndAnalyzerImages(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want an error for missing images")
	}

	cfg.Core.OyenteDockerImage = "oyente:latest"
	cfg.Sandbox.StaticAnalyzerImage = "slither:latest"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v after filling required images", err)
	}
}

func TestApplyCoreArgRecognizedKeys(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		kv    string
		check func(*Config) bool
	}{
		{"p-crossover=0.75", func(c *Config) bool { return c.Core.PCrossover == 0.75 }},
		{"num-init-population=40", func(c *Config) bool { return c.Core.NumInitPopulation == 40 }},
		{"max-size-population=60", func(c *Config) bool { return c.Core.MaxSizePopulation == 60 }},
		{"seed=abc123", func(c *Config) bool { return c.Core.Seed != nil && *c.Core.Seed == "abc123" }},
		{"oyente-docker-image=oyente:x", func(c *Config) bool { return c.Core.OyenteDockerImage == "oyente:x" }},
	}
	for _, tc := range cases {
		if err := cfg.ApplyCoreArg(tc.kv); err != nil {
			t.Fatalf("ApplyCoreArg(%q) error = %v", tc.kv, err)
		}
		if !tc.check(cfg) {
			t.Errorf("ApplyCoreArg(%q) did not take effect: %+v", tc.kv, cfg.Core)
		}
	}
}

func TestApplyCoreArgRejectsUnrecognizedKey(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ApplyCoreArg("bogus-key=1"); err == nil {
		t.Fatal("ApplyCoreArg() = nil, want an error for an unrecognized key")
	}
}

func TestApplyDetectorArgRequiresKeyValueShape(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ApplyDetectorArg("no-equals-sign"); err == nil {
		t.Fatal("ApplyDetectorArg() = nil, want an error for a malformed flag")
	}
	if err := cfg.ApplyDetectorArg("image=slither:latest"); err != nil {
		t.Fatalf("ApplyDetectorArg() error = %v", err)
	}
	if cfg.Detection.Args["image"] != "slither:latest" {
		t.Errorf("Detection.Args[image] = %q, want slither:latest", cfg.Detection.Args["image"])
	}
}

func TestApplyTargetLocParsesCodeRangeJSON(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ApplyTargetLoc(`{"Start":{"Line":10},"End":{"Line":12}}`); err != nil {
		t.Fatalf("ApplyTargetLoc() error = %v", err)
	}
	if len(cfg.Detection.TargetedLoc) != 1 {
		t.Fatalf("TargetedLoc has %d entries, want 1", len(cfg.Detection.TargetedLoc))
	}
	if cfg.Detection.TargetedLoc[0].Start.Line != 10 || cfg.Detection.TargetedLoc[0].End.Line != 12 {
		t.Errorf("parsed range = %+v, want Start.Line=10 End.Line=12", cfg.Detection.TargetedLoc[0])
	}
}

func TestParseTimeoutSecondsTreatsNonPositiveAsUnlimited(t *testing.T) {
	for _, in := range []string{"", "0", "-5"} {
		d, err := ParseTimeoutSeconds(in)
		if err != nil {
			t.Fatalf("ParseTimeoutSeconds(%q) error = %v", in, err)
		}
		if d != 0 {
			t.Errorf("ParseTimeoutSeconds(%q) = %v, want 0 (unlimited)", in, d)
		}
	}

	d, err := ParseTimeoutSeconds("30")
	if err != nil {
		t.Fatalf("ParseTimeoutSeconds(\"30\") error = %v", err)
	}
	if d.Seconds() != 30 {
		t.Errorf("ParseTimeoutSeconds(\"30\") = %v, want 30s", d)
	}
}

func TestPoolSizeOrDefaultFallsBackToNumCPU(t *testing.T) {
	s := SandboxConfig{}
	if got := s.PoolSizeOrDefault(4); got != 4 {
		t.Errorf("PoolSizeOrDefault(4) = %d, want 4 when PoolSize is unset", got)
	}
	s.PoolSize = 2
	if got := s.PoolSizeOrDefault(4); got != 2 {
		t.Errorf("PoolSizeOrDefault(4) = %d, want configured 2", got)
	}
}
