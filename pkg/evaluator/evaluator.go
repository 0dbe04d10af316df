// Package evaluator implements the Evaluator: for one
// candidate patch it runs every configured analyzer under a cooperative
// fast-fail protocol, ranks the candidate's gas cost, and assembles the
// resulting Fitness. Grounded on
// `_examples/original_source/CR/IN.py`'s `RepairCore.detectPatch` and
// `CR/CR.py`'s `evaluatePopulation`/`calculateFitness`.
package evaluator

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/repaircore/repaircore/pkg/model"
)

// Detector is the uniform shape every analyzer-like component exposes to
// the Evaluator: the Static Analyzer Adapter, the Dynamic Test Runner
// Adapter, or any other problem detector. targetContractName is ignored
// by detectors that don't need it (e.g. the static analyzer).
type Detector interface {
	Detect(ctx context.Context, sourcePath, targetContractName string, targetedVul []string, targetedLoc []model.CodeRange, fastFail bool) (model.AnalyzerResult, error)
}

// GasRanker ranks a candidate's symbolic execution cost.
type GasRanker interface {
	RankGas(ctx context.Context, sourcePath, contractName string) (float64, error)
}

// Config configures an Evaluator.
type Config struct {
	// Detectors maps an analyzer name to the Detector that implements it.
	Detectors map[string]Detector
	// NotSkippable names the detectors that always run to completion with
	// fastFail=false, regardless of the fastFail argument passed to
	// DetectPatch — the disjoint set of non-skippable analyzers.
	NotSkippable map[string]bool
	GasRanker    GasRanker
}

// Evaluator assembles a candidate patch's AnalyzerResults and Fitness.
type Evaluator struct {
	cfg Config
}

// New builds an Evaluator from cfg.
func New(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

const fastFailKey = "fastfail"

// DetectPatch runs every configured detector against patch under a
// cooperative fast-fail protocol: non-skippable detectors always
// run to completion with fastFail=false; skippable detectors run
// concurrently with fastFail as given, and as soon as any of them reports
// a targeted vulnerability, the rest are cancelled and the entire
// skippable batch's contribution collapses to a single FastFail sentinel
// entry.
func (e *Evaluator) DetectPatch(ctx context.Context, patch model.PatchInfo, targetContractName string, targetedVul []string, targetedLoc []model.CodeRange, fastFail bool) (model.AnalyzerResults, error) {
	results := make(model.AnalyzerResults, len(e.cfg.Detectors))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for name, d := range e.cfg.Detectors {
		if !e.cfg.NotSkippable[name] {
			continue
		}
		name, d := name, d
		g.Go(func() error {
			r, err := d.Detect(gctx, patch.PatchedFile, targetContractName, targetedVul, targetedLoc, false)
			if err != nil {
				return fmt.Errorf("evaluator: non-skippable detector %s: %w", name, err)
			}
			mu.Lock()
			results[name] = r
			mu.Unlock()
			return nil
		})
	}

	skipCtx, cancelSkip := context.WithCancel(ctx)
	defer cancelSkip()
	fastFailTriggered := false
	var fastFailOnce sync.Once

	sg, sgctx := errgroup.WithContext(skipCtx)
	for name, d := range e.cfg.Detectors {
		if e.cfg.NotSkippable[name] {
			continue
		}
		name, d := name, d
		sg.Go(func() error {
			r, err := d.Detect(sgctx, patch.PatchedFile, targetContractName, targetedVul, targetedLoc, fastFail)
			if err != nil {
				if sgctx.Err() != nil {
					// Cancelled because a sibling already fast-failed.
					return nil
				}
				return fmt.Errorf("evaluator: skippable detector %s: %w", name, err)
			}

			targeted := fastFail && r.TargetedCount(targetedVul, targetedLoc) > 0
			mu.Lock()
			if targeted {
				fastFailTriggered = true
			} else if !fastFailTriggered {
				results[name] = r
			}
			mu.Unlock()

			if targeted {
				fastFailOnce.Do(cancelSkip)
			}
			return nil
		})
	}

	if err := sg.Wait(); err != nil {
		return nil, err
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	if fastFailTriggered {
		for name := range e.cfg.Detectors {
			if !e.cfg.NotSkippable[name] {
				delete(results, name)
			}
		}
		results[fastFailKey] = model.AnalyzerResult{model.FastFailVulnerability()}
	}
	return results, nil
}

// CalculateFitness runs the full (fastFail=false) detection pass for
// patch, ranks its gas cost against targetContractName, and assembles the
// resulting Fitness over detectorOrder's hard-value dimensions. Grounded
// on `CR.py`'s `calculateFitness`: `(*hardValues, len(mutationSequence),
// *gasResult)`.
func (e *Evaluator) CalculateFitness(ctx context.Context, patch model.PatchInfo, targetContractName string, detectorOrder []string, targetedVul []string, targetedLoc []model.CodeRange) (model.Fitness, model.AnalyzerResults, error) {
	vulnerability, err := e.DetectPatch(ctx, patch, targetContractName, targetedVul, targetedLoc, false)
	if err != nil {
		return model.Fitness{}, nil, err
	}

	hardCounts := make([]int, len(detectorOrder))
	for i, name := range detectorOrder {
		hardCounts[i] = vulnerability[name].TargetedCount(targetedVul, targetedLoc)
	}

	gasMap, err := e.rankGas(ctx, patch.PatchedFile, targetContractName)
	if err != nil {
		return model.Fitness{}, nil, err
	}

	fitness := model.NewFitness(hardCounts, len(patch.MutationSeq), gasMap)
	return fitness, vulnerability.WithoutEmpty(), nil
}

// rankGas reduces the Gas Ranker's scalar mean cost into the single-entry
// map Fitness.GasMap holds, keyed by the contract actually ranked ("mean"
// when targetContractName is empty).
func (e *Evaluator) rankGas(ctx context.Context, sourcePath, targetContractName string) (map[string]int, error) {
	if e.cfg.GasRanker == nil {
		return nil, nil
	}
	mean, err := e.cfg.GasRanker.RankGas(ctx, sourcePath, targetContractName)
	if err != nil {
		return nil, fmt.Errorf("evaluator: ranking gas: %w", err)
	}
	key := targetContractName
	if key == "" {
		key = "mean"
	}
	return map[string]int{key: int(math.Round(mean))}, nil
}
