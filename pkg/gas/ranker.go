// Package gas implements the Gas Ranker: it launches the
// configured symbolic execution tool in an isolated sandbox against a
// candidate source file and reports its execution cost. Grounded on
// `_examples/original_source/CR/GR.py`'s `GR.rankGas`.
package gas

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/repaircore/repaircore/pkg/metrics"
	"github.com/repaircore/repaircore/pkg/sandbox"
)

// ErrContractNotAnalyzed is returned when a requested contract name is
// absent from the symbolic tool's output.
var ErrContractNotAnalyzed = fmt.Errorf("gas: contract not analyzed")

// Ranker invokes a symbolic execution oracle (Oyente-shaped) inside a
// network-disabled sandbox and reduces its per-path gas report to a single
// mean cost.
type Ranker struct {
	image   string
	pool    *sandbox.Pool
	run     func(ctx context.Context, spec sandbox.Spec) (string, error)
	metrics *metrics.Sandbox
}

// New builds a Ranker that launches image inside sandboxed containers,
// bounded by pool.
func New(runner *sandbox.Runner, pool *sandbox.Pool, image string) *Ranker {
	return &Ranker{image: image, pool: pool, run: runner.Run}
}

// SetMetrics attaches call-duration/outcome instrumentation to every
// subsequent RankGas call. Passing nil (the default) disables it.
func (r *Ranker) SetMetrics(m *metrics.Sandbox) {
	r.metrics = m
}

// toolOutput mirrors the oracle's JSON output shape:
// {contract -> {path_gas: {pathId -> intCost}}}.
type toolOutput map[string]struct {
	PathGas map[string]int `json:"path_gas"`
}

// RankGas runs the symbolic tool against sourcePath and returns the
// arithmetic mean of its reported path costs — for contractName if given,
// or across every contract in the output otherwise. ErrContractNotAnalyzed
// wraps the error when contractName is requested but absent from the
// output.
func (r *Ranker) RankGas(ctx context.Context, sourcePath string, contractName string) (float64, error) {
	if err := r.pool.Acquire(ctx); err != nil {
		return 0, fmt.Errorf("gas: waiting for sandbox slot: %w", err)
	}
	defer r.pool.Release()

	cmd := []string{"/oyente/oyente/oyente.py", "-s", "/tmp/subject.sol", "-ce", "--web", "--parallel", "--output-path-gas"}
	if contractName != "" {
		cmd = append(cmd, "--target-contracts", contractName)
	}

	start := time.Now()
	output, err := r.run(ctx, sandbox.Spec{
		Image: r.image,
		Cmd:   cmd,
		Mounts: []sandbox.Mount{
			{HostPath: sourcePath, ContainerPath: "/tmp/subject.sol"},
		},
	})
	if r.metrics != nil {
		r.metrics.ObserveCall("gas-ranker", start, err)
	}
	if err != nil {
		return 0, fmt.Errorf("gas: sandbox run failed: %w", err)
	}

	var parsed map[string]toolOutput
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		return 0, fmt.Errorf("gas: malformed oracle output: %w", err)
	}

	for _, perContract := range parsed {
		return meanFor(perContract, contractName)
	}
	return 0, fmt.Errorf("gas: oracle produced no output")
}

func meanFor(perContract toolOutput, contractName string) (float64, error) {
	var values []int

	if contractName != "" {
		contract, ok := perContract[contractName]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrContractNotAnalyzed, contractName)
		}
		for _, v := range contract.PathGas {
			values = append(values, v)
		}
	} else {
		for _, contract := range perContract {
			for _, v := range contract.PathGas {
				values = append(values, v)
			}
		}
	}

	if len(values) == 0 {
		return 0, nil
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values)), nil
}
