package evaluator

import (
	"context"

	"github.com/repaircore/repaircore/pkg/model"
)

// staticDetectorFunc adapts a detector whose signature doesn't need
// targetContractName (the static analyzer runs uniformly over the whole
// source file) to the Detector interface.
type staticDetectorFunc func(ctx context.Context, sourcePath string, targetedNames []string, targetedRanges []model.CodeRange, fastFail bool) (model.AnalyzerResult, error)

// WrapStaticDetector adapts a detector shaped like the Static Analyzer
// Adapter (no targetContractName parameter) to the Detector interface the
// Evaluator drives.
func WrapStaticDetector(detect func(ctx context.Context, sourcePath string, targetedNames []string, targetedRanges []model.CodeRange, fastFail bool) (model.AnalyzerResult, error)) Detector {
	return staticDetectorFunc(detect)
}

func (f staticDetectorFunc) Detect(ctx context.Context, sourcePath, targetContractName string, targetedVul []string, targetedLoc []model.CodeRange, fastFail bool) (model.AnalyzerResult, error) {
	return f(ctx, sourcePath, targetedVul, targetedLoc, fastFail)
}

// contractDetectorFunc adapts a detector shaped like the Dynamic Test
// Runner Adapter (targetContractName required, no named-vulnerability
// filter of its own) to the Detector interface.
type contractDetectorFunc func(ctx context.Context, sourcePath, targetContractName string, targetLocations []model.CodeRange, fastFail bool) (model.AnalyzerResult, error)

// WrapContractDetector adapts a detector shaped like the Dynamic Test
// Runner Adapter (targetContractName required, no targetedVul parameter)
// to the Detector interface the Evaluator drives.
func WrapContractDetector(detect func(ctx context.Context, sourcePath, targetContractName string, targetLocations []model.CodeRange, fastFail bool) (model.AnalyzerResult, error)) Detector {
	return contractDetectorFunc(detect)
}

func (f contractDetectorFunc) Detect(ctx context.Context, sourcePath, targetContractName string, targetedVul []string, targetedLoc []model.CodeRange, fastFail bool) (model.AnalyzerResult, error) {
	return f(ctx, sourcePath, targetContractName, targetedLoc, fastFail)
}
