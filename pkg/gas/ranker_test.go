package gas

import (
	"context"
	"errors"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/repaircore/repaircore/pkg/metrics"
	"github.com/repaircore/repaircore/pkg/sandbox"
)

func newTestRanker(output string, err error) *Ranker {
	return &Ranker{
		image: "oyente:latest",
		pool:  sandbox.NewPool(1),
		run: func(ctx context.Context, spec sandbox.Spec) (string, error) {
			return output, err
		},
	}
}

func TestRankGasMeanAcrossAllContracts(t *testing.T) {
	r := newTestRanker(`{"report":{"Foo":{"path_gas":{"0":100,"1":200}},"Bar":{"path_gas":{"0":300}}}}`, nil)

	got, err := r.RankGas(context.Background(), "/tmp/subject.sol", "")
	if err != nil {
		t.Fatalf("RankGas() error = %v", err)
	}
	if want := 200.0; got != want {
		t.Errorf("RankGas() = %v, want %v", got, want)
	}
}

func TestRankGasMeanForNamedContract(t *testing.T) {
	r := newTestRanker(`{"report":{"Foo":{"path_gas":{"0":100,"1":300}},"Bar":{"path_gas":{"0":999}}}}`, nil)

	got, err := r.RankGas(context.Background(), "/tmp/subject.sol", "Foo")
	if err != nil {
		t.Fatalf("RankGas() error = %v", err)
	}
	if want := 200.0; got != want {
		t.Errorf("RankGas() = %v, want %v", got, want)
	}
}

func TestRankGasContractNotAnalyzed(t *testing.T) {
	r := newTestRanker(`{"report":{"Foo":{"path_gas":{"0":100}}}}`, nil)

	_, err := r.RankGas(context.Background(), "/tmp/subject.sol", "Missing")
	if !errors.Is(err, ErrContractNotAnalyzed) {
		t.Fatalf("RankGas() error = %v, want ErrContractNotAnalyzed", err)
	}
}

func TestRankGasRecordsSandboxMetrics(t *testing.T) {
	r := newTestRanker(`{"report":{"Foo":{"path_gas":{"0":100}}}}`, nil)
	sb := metrics.NewSandbox()
	r.SetMetrics(sb)

	if _, err := r.RankGas(context.Background(), "/tmp/subject.sol", ""); err != nil {
		t.Fatalf("RankGas() error = %v", err)
	}

	var m dto.Metric
	if err := sb.CallsTotal.WithLabelValues("gas-ranker", "ok").Write(&m); err != nil {
		t.Fatalf("writing calls_total metric: %v", err)
	}
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("calls_total{tool=gas-ranker,outcome=ok} = %v, want 1", got)
	}
}

func TestRankGasPropagatesSandboxError(t *testing.T) {
	sentinel := errors.New("boom")
	r := newTestRanker("", sentinel)

	_, err := r.RankGas(context.Background(), "/tmp/subject.sol", "")
	if !errors.Is(err, sentinel) {
		t.Fatalf("RankGas() error = %v, want wrapped sentinel", err)
	}
}
