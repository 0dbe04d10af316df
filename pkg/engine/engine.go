package engine

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/repaircore/repaircore/pkg/evaluator"
	"github.com/repaircore/repaircore/pkg/faultlocalization"
	"github.com/repaircore/repaircore/pkg/metrics"
	"github.com/repaircore/repaircore/pkg/model"
	"github.com/repaircore/repaircore/pkg/mutation"
)

// Config holds the MOGA Engine's tunable constants, grounded on `CR.py`'s
// `repair` keyword arguments.
type Config struct {
	SourcePath          string
	TargetContractName  string
	DetectorOrder       []string
	TargetedNames       []string
	TargetedRanges      []model.CodeRange
	RepairTarget        model.RepairTarget
	RepairTargetSpecs   []model.RepairTargetSpec
	FaultSpaceSpecifier *string

	PCrossover         float64
	InitPopulationSize int
	MaxPopulationSize  int
	MaxTrials          int // 0 means unlimited
	Seed               int64
}

// Engine drives the generational loop: fault localization, mutation and
// crossover requests against the Mutation Engine Client, evaluation, and
// Pareto-archive bookkeeping. Grounded on
// `_examples/original_source/CR/CR.py`'s `repair` method.
type Engine struct {
	cfg       Config
	evaluator *evaluator.Evaluator
	mutator   *mutation.Engine
	rng       *rand.Rand
	log       zerolog.Logger

	archive      *Archive
	recorder     *Recorder
	populations  []*model.Individual
	numEvaluated int
	original     *model.Individual
	metrics      *metrics.Engine
}

// New builds an Engine from cfg, an Evaluator to score candidates, and a
// Mutation Engine Client to breed them.
func New(cfg Config, eval *evaluator.Evaluator, mutator *mutation.Engine, log zerolog.Logger) *Engine {
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	return &Engine{
		cfg:       cfg,
		evaluator: eval,
		mutator:   mutator,
		rng:       rand.New(rand.NewSource(seed)),
		log:       log,
		archive:   NewArchive(),
		recorder:  NewRecorder(),
	}
}

// Run executes the full startup sequence and generation loop, returning the
// plausible patches found (possibly empty) or the first upstream error.
func (e *Engine) Run(ctx context.Context) ([]model.PlausiblePatch, error) {
	original, err := e.buildOriginal(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: evaluating original: %w", err)
	}
	e.original = original
	if !original.Vulnerability.AnyTargeted(e.cfg.TargetedNames, e.cfg.TargetedRanges) {
		return []model.PlausiblePatch{{PatchedFile: original.PatchedFile}}, nil
	}
	e.resolveRepairTargetSpecs(original)

	faultSpec := e.cfg.FaultSpaceSpecifier
	if faultSpec == nil {
		faultSpec = faultlocalization.FromIndividual(original.Vulnerability, e.cfg.TargetedNames, e.cfg.TargetedRanges)
	}

	session, err := e.mutator.Open(ctx, e.cfg.SourcePath, faultSpec, 1)
	if err != nil {
		return nil, fmt.Errorf("engine: opening mutation session: %w", err)
	}
	defer session.Close()

	initial, err := e.seedInitialPopulation(ctx, session, faultSpec)
	if err != nil {
		return nil, err
	}
	initial = append(initial, original)

	evaluated, err := e.evaluateAll(ctx, initial)
	if err != nil {
		return nil, err
	}
	e.populations = evaluated
	selectNSGA2(e.populations, len(e.populations))

	return e.runGenerations(ctx, session, e.populations)
}

// resolveRepairTargetSpecs turns any CLI-supplied, not-yet-resolved
// RepairTargetSpecs into concrete TargetConditions now that original's
// per-detector targeted-detection counts are known, merging them into
// cfg.RepairTarget (a spec overrides any entry already present for its
// detector).
func (e *Engine) resolveRepairTargetSpecs(original *model.Individual) {
	if len(e.cfg.RepairTargetSpecs) == 0 {
		return
	}
	if e.cfg.RepairTarget == nil {
		e.cfg.RepairTarget = make(model.RepairTarget, len(e.cfg.RepairTargetSpecs))
	}
	for _, spec := range e.cfg.RepairTargetSpecs {
		originalCount := original.Vulnerability[spec.Detector].TargetedCount(e.cfg.TargetedNames, e.cfg.TargetedRanges)
		e.cfg.RepairTarget[spec.Detector] = spec.Resolve(originalCount)
	}
}

func (e *Engine) buildOriginal(ctx context.Context) (*model.Individual, error) {
	ind := model.NewIndividual(model.PatchInfo{PatchedFile: e.cfg.SourcePath})
	if err := e.evaluate(ctx, ind); err != nil {
		return nil, err
	}
	return ind, nil
}

// seedInitialPopulation pulls one individual to seed the population, then
// initPopulationSize-1 more concurrently, each via an empty-sequence
// Mutate request against the computed fault specifier.
func (e *Engine) seedInitialPopulation(ctx context.Context, session *mutation.Session, faultSpec *string) ([]*model.Individual, error) {
	first, ok, err := session.Next(ctx, mutation.NewMutateRequest(nil, faultSpec))
	if err != nil {
		return nil, fmt.Errorf("engine: seeding population: %w", err)
	}
	var individuals []*model.Individual
	if ok {
		for _, p := range first {
			individuals = append(individuals, model.NewIndividual(p))
		}
	}

	remaining := e.cfg.InitPopulationSize - 1
	type pullResult struct {
		patches []model.PatchInfo
		err     error
	}
	results := make(chan pullResult, remaining)
	for i := 0; i < remaining; i++ {
		go func() {
			patches, _, err := session.Next(ctx, mutation.NewMutateRequest(nil, faultSpec))
			results <- pullResult{patches: patches, err: err}
		}()
	}
	for i := 0; i < remaining; i++ {
		r := <-results
		if r.err != nil {
			return nil, fmt.Errorf("engine: seeding population: %w", r.err)
		}
		for _, p := range r.patches {
			individuals = append(individuals, model.NewIndividual(p))
		}
	}
	return individuals, nil
}

func (e *Engine) evaluateAll(ctx context.Context, individuals []*model.Individual) ([]*model.Individual, error) {
	for _, ind := range individuals {
		if err := e.evaluate(ctx, ind); err != nil {
			return nil, err
		}
	}
	return individuals, nil
}

func (e *Engine) evaluate(ctx context.Context, ind *model.Individual) error {
	fitness, vulnerability, err := e.evaluator.CalculateFitness(ctx, ind.PatchInfo, e.cfg.TargetContractName, e.cfg.DetectorOrder, e.cfg.TargetedNames, e.cfg.TargetedRanges)
	if err != nil {
		return err
	}
	ind.Fitness = fitness
	ind.Vulnerability = vulnerability
	return nil
}

func (e *Engine) runGenerations(ctx context.Context, session *mutation.Session, newCandidates []*model.Individual) ([]model.PlausiblePatch, error) {
	op := "init"
	for gen := 0; ; gen++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		e.recorder.Record(gen, op, newCandidates, e.cfg.TargetedNames, e.cfg.TargetedRanges)
		e.archive.Update(newCandidates)
		e.numEvaluated += len(newCandidates)

		if e.metrics != nil {
			e.metrics.GenerationsTotal.Inc()
			e.metrics.IndividualsEvaluated.Add(float64(len(newCandidates)))
			e.metrics.PopulationSize.Set(float64(len(e.populations)))
			e.metrics.ArchiveSize.Set(float64(len(e.archive.Members())))
		}
		e.log.Info().Int("generation", gen).Str("operator", op).Int("evaluated", len(newCandidates)).
			Int("archive_size", len(e.archive.Members())).Msg("generation complete")

		plausible := e.plausiblePatches(newCandidates)
		if len(plausible) > 0 {
			if e.metrics != nil {
				e.metrics.PlausiblePatchesTotal.Add(float64(len(plausible)))
			}
			return plausible, nil
		}
		if e.cfg.MaxTrials > 0 && e.numEvaluated >= e.cfg.MaxTrials {
			return nil, nil
		}

		e.populations = selectNSGA2(e.populations, e.cfg.MaxPopulationSize)
		if len(e.populations) == 0 {
			return nil, nil
		}

		u := e.rng.Float64()
		var (
			bred []*model.Individual
			err  error
		)
		if u >= e.cfg.PCrossover {
			op = "mutate"
			bred, err = e.mutateStep(ctx, session)
		} else {
			op = "crossover"
			bred, err = e.crossoverStep(ctx, session)
		}
		if err != nil {
			return nil, err
		}
		if len(e.populations) == 0 {
			return nil, nil
		}

		newCandidates, err = e.evaluateAll(ctx, bred)
		if err != nil {
			return nil, err
		}
		e.populations = append(e.populations, newCandidates...)
	}
}

// mutateStep selects 4 parents and requests a single-step mutation of
// each. A parent that comes back unmutatable (nil patch) is dropped from
// populations outright.
func (e *Engine) mutateStep(ctx context.Context, session *mutation.Session) ([]*model.Individual, error) {
	parents := selectBest(e.populations, 4)
	var bred []*model.Individual
	for _, p := range parents {
		spec := faultlocalization.FromIndividual(p.Vulnerability, e.cfg.TargetedNames, e.cfg.TargetedRanges)
		patches, _, err := session.Next(ctx, mutation.NewMutateRequest(p.MutationSeq, spec))
		if err != nil {
			return nil, fmt.Errorf("engine: mutate step: %w", err)
		}
		if len(patches) == 0 {
			e.populations = removeIndividual(e.populations, p)
			continue
		}
		for _, patch := range patches {
			bred = append(bred, model.NewIndividual(patch))
		}
	}
	return bred, nil
}

// crossoverStep selects 4 parents and requests a one-point crossover for
// every unordered pair among them.
func (e *Engine) crossoverStep(ctx context.Context, session *mutation.Session) ([]*model.Individual, error) {
	parents := selectBest(e.populations, 4)
	var bred []*model.Individual
	for i := 0; i < len(parents); i++ {
		for j := i + 1; j < len(parents); j++ {
			p1, p2 := parents[i], parents[j]
			cp1 := e.rng.Intn(len(p1.MutationSeq)+1) - 1
			cp2 := e.rng.Intn(len(p2.MutationSeq)+1) - 1
			req := mutation.NewCrossoverOnePointRequest(p1.MutationSeq, cp1, p2.MutationSeq, cp2)
			patches, _, err := session.Next(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("engine: crossover step: %w", err)
			}
			for _, patch := range patches {
				bred = append(bred, model.NewIndividual(patch))
			}
		}
	}
	return bred, nil
}

// plausiblePatches filters newCandidates against the configured repair
// target, sorted best-first by fitness.
func (e *Engine) plausiblePatches(newCandidates []*model.Individual) []model.PlausiblePatch {
	var fulfilled []*model.Individual
	for _, c := range newCandidates {
		if e.cfg.RepairTarget.IsFulfilled(c.Vulnerability, e.cfg.TargetedNames, e.cfg.TargetedRanges) {
			fulfilled = append(fulfilled, c)
		}
	}
	if len(fulfilled) == 0 {
		return nil
	}
	ordered := selectBest(fulfilled, len(fulfilled))
	out := make([]model.PlausiblePatch, len(ordered))
	for i, ind := range ordered {
		out[i] = model.PlausiblePatch{PatchedFile: ind.PatchedFile}
	}
	return out
}

// Archive exposes the engine's Pareto archive, e.g. for the Orchestrator's
// closing summary.
func (e *Engine) Archive() *Archive {
	return e.archive
}

// Recorder exposes the engine's per-generation statistics.
func (e *Engine) Recorder() *Recorder {
	return e.recorder
}

// SetMetrics attaches a Prometheus metrics set that Run will keep updated
// as it evaluates individuals and advances generations. Passing nil (the
// default) disables instrumentation.
func (e *Engine) SetMetrics(m *metrics.Engine) {
	e.metrics = m
}

// NumEvaluated returns the running count of evaluated individuals.
func (e *Engine) NumEvaluated() int {
	return e.numEvaluated
}

// Original returns the evaluated original (unmutated) individual, or nil if
// Run has not yet evaluated it.
func (e *Engine) Original() *model.Individual {
	return e.original
}

func removeIndividual(population []*model.Individual, target *model.Individual) []*model.Individual {
	out := population[:0:0]
	for _, ind := range population {
		if ind != target {
			out = append(out, ind)
		}
	}
	return out
}
