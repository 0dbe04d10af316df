package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
	version = "dev" // Will be set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "repaircore",
	Short: "Automated smart-contract vulnerability repair driven by a multi-objective genetic search",
	Long: `repaircore searches for a patch to a vulnerable Solidity contract by breeding
candidate mutations under a Pareto archive of (vulnerability, gas cost, distance from
original) objectives, evaluating each candidate against a static analyzer and an
optional dynamic test runner running in sandboxed containers.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(repairCmd)
}

// Commands are defined in separate files:
// - repairCmd in repair.go

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
