// Package mutation implements the Mutation Engine Client:
// it drives one external, line-JSON-protocol mutation tool subprocess per
// subset of enabled mutation types, multiplexing a caller's patch requests
// across all of them and de-duplicating responses through a short-lived
// "unconsumed" cache. Grounded on
// `_examples/original_source/CR/SolidityM.py`'s `SolidityM.__patchSource`.
package mutation

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"

	"github.com/repaircore/repaircore/pkg/model"
)

// Config configures an Engine.
type Config struct {
	// BinPath is the mutation tool executable.
	BinPath string
	// MutationTypes is the full set of mutation kinds the engine may
	// combine; one subprocess is spawned per non-empty subset.
	MutationTypes []string
	// Seed, when set, is forwarded to every subprocess for reproducible
	// randomness.
	Seed *string
	// OutputMutation requests the tool to echo the raw mutation text
	// alongside each patch.
	OutputMutation bool
	// ForNodeTypes and ReplaceableNodeTypes narrow the AST node kinds the
	// tool is allowed to target or substitute, respectively.
	ForNodeTypes         []string
	ReplaceableNodeTypes []string
}

// Engine spawns and drives mutation-tool subprocesses. A single Engine may
// have many Sessions open concurrently, but Session.Next calls across all
// of them are serialized by engine.mu — the underlying tool cannot field
// two in-flight requests from the same client at once.
type Engine struct {
	cfg Config
	mu  sync.Mutex
}

// New builds an Engine from cfg.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// space is one child process responsible for a single non-empty subset of
// the engine's configured mutation types.
type space struct {
	subset []string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	done   bool // true once the process has exited
}

// Session drives one patch-synthesis run against a single original source
// file and (optional) fault-space specifier, spanning one subprocess per
// mutation-type subset.
type Session struct {
	engine        *Engine
	spaces        []*space
	defaultNumber int
	unconsumed    []cacheEntry
}

type cacheEntry struct {
	requestJSON string
	payload     []model.PatchInfo
}

// response mirrors the tool's per-request JSON reply.
type response struct {
	Result               string                   `json:"Result"`
	NewMutationSequences []model.MutationSequence `json:"NewMutationSequences"`
	PatchedFilePaths     []string                 `json:"PatchedFilePaths"`
	ModifiedLocations    []json.RawMessage        `json:"ModifiedLocations"`
}

const (
	resultAllSpaceExhausted    = "AllSpaceExhasuted"
	resultSpaceExhaustedForAST = "SpaceExhasutedForAST"
)

// Open spawns one subprocess per non-empty subset of the engine's
// mutation types, each synthesizing patches for sourcePath restricted (if
// faultSpecifier is non-nil) to the given fault-space specifier.
// defaultNumMutations is the batch size used whenever a caller passes a
// nil Request to Session.Next.
func (e *Engine) Open(ctx context.Context, sourcePath string, faultSpecifier *string, defaultNumMutations int) (*Session, error) {
	subsets := nonEmptySubsets(e.cfg.MutationTypes)

	s := &Session{engine: e, defaultNumber: defaultNumMutations}
	for _, subset := range subsets {
		proc, err := e.spawn(ctx, sourcePath, faultSpecifier, subset)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.spaces = append(s.spaces, proc)
	}
	return s, nil
}

func (e *Engine) spawn(ctx context.Context, sourcePath string, faultSpecifier *string, subset []string) (*space, error) {
	args := []string{"iter-gen-mutations", "--only-compilable=true", sourcePath}
	if e.cfg.Seed != nil {
		args = append(args, fmt.Sprintf("--seed=%s", *e.cfg.Seed))
	}
	if faultSpecifier != nil {
		args = append(args, fmt.Sprintf("--mutation-space=%s", *faultSpecifier))
	}
	if e.cfg.OutputMutation {
		args = append(args, "--output-mutation")
	}
	if len(e.cfg.ForNodeTypes) > 0 {
		args = append(args, "--for-node-types")
		args = append(args, e.cfg.ForNodeTypes...)
	}
	if len(e.cfg.ReplaceableNodeTypes) > 0 {
		args = append(args, "--replaceable-node-types")
		args = append(args, e.cfg.ReplaceableNodeTypes...)
	}
	args = append(args, "--mutation_types")
	args = append(args, subset...)
	args = append(args, "--must-include-mutation-types")
	args = append(args, subset...)

	cmd := exec.CommandContext(ctx, e.cfg.BinPath, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("mutation: creating stdin pipe for space %v: %w", subset, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("mutation: creating stdout pipe for space %v: %w", subset, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("mutation: starting process for space %v: %w", subset, err)
	}

	return &space{subset: subset, cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}, nil
}

// Next submits req (or, when req is nil, a RandomRequest for the session's
// default batch size) to every running subprocess and returns the patches
// it produced. ok is false once every subprocess has exited, meaning the
// session is exhausted and Next must not be called again.
func (s *Session) Next(ctx context.Context, req Request) (patches []model.PatchInfo, ok bool, err error) {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()

	if req == nil {
		req = NewRandomRequest(s.defaultNumber)
	}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, true, fmt.Errorf("mutation: encoding request: %w", err)
	}

	if payload, found := s.popCached(string(reqJSON)); found {
		return payload, true, nil
	}

	running := s.runningSpaces()
	if len(running) == 0 {
		return nil, false, nil
	}

	line := append(append([]byte{}, reqJSON...), '\n')
	var live []*space
	for _, p := range running {
		if _, err := p.stdin.Write(line); err != nil {
			// The subprocess has exited and closed its end of the pipe.
			p.done = true
			_ = p.cmd.Wait()
			continue
		}
		live = append(live, p)
	}
	if len(live) == 0 {
		return nil, false, nil
	}
	running = live

	lines, eof, err := readAllWithSentinel(running)
	if err != nil {
		return nil, true, err
	}

	exited := 0
	for i, p := range running {
		raw := lines[i]
		if eof[i] {
			p.done = true
			_ = p.cmd.Wait()
		}
		if raw == "" {
			if eof[i] {
				exited++
				continue
			}
			return nil, true, fmt.Errorf("mutation: unexpected empty output from space %v", p.subset)
		}
		var resp response
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			return nil, true, fmt.Errorf("mutation: malformed output from space %v: %w", p.subset, err)
		}

		switch resp.Result {
		case resultAllSpaceExhausted, resultSpaceExhaustedForAST:
			if !p.done {
				p.done = true
				if p.cmd.Process != nil {
					_ = p.cmd.Process.Kill()
				}
				_ = p.cmd.Wait()
			}
			continue
		default:
			for j, seq := range resp.NewMutationSequences {
				var modified []model.CodeRange
				if j < len(resp.ModifiedLocations) {
					_ = json.Unmarshal(resp.ModifiedLocations[j], &modified)
				}
				s.unconsumed = append(s.unconsumed, cacheEntry{
					requestJSON: string(reqJSON),
					payload: []model.PatchInfo{{
						MutationSeq:       seq,
						PatchedFile:       resp.PatchedFilePaths[j],
						ModifiedLocations: modified,
					}},
				})
			}
		}
	}

	if payload, found := s.popCached(string(reqJSON)); found {
		return payload, true, nil
	}
	return nil, exited < len(running), nil
}

func (s *Session) popCached(reqJSON string) ([]model.PatchInfo, bool) {
	for i, e := range s.unconsumed {
		if e.requestJSON == reqJSON {
			s.unconsumed = append(s.unconsumed[:i], s.unconsumed[i+1:]...)
			return e.payload, true
		}
	}
	return nil, false
}

func (s *Session) runningSpaces() []*space {
	var out []*space
	for _, p := range s.spaces {
		if !p.done {
			out = append(out, p)
		}
	}
	return out
}

// readAllWithSentinel reads one line from every running space's stdout,
// reporting per-space end-of-stream via eof. As soon as the first line
// arrives, it drops the sentinel files the tool watches for ("terminate
// this pid" and "terminate everything") so the remaining spaces abandon
// their in-flight search and flush promptly, mirroring SolidityM.py's
// FIRST_COMPLETED fan-in.
func readAllWithSentinel(running []*space) (lines []string, eof []bool, err error) {
	type result struct {
		index int
		line  string
		err   error
	}

	results := make(chan result, len(running))
	for i, p := range running {
		i, p := i, p
		go func() {
			line, err := p.stdout.ReadString('\n')
			results <- result{index: i, line: line, err: err}
		}()
	}

	out := make([]string, len(running))
	eofOut := make([]bool, len(running))
	got := make([]bool, len(running))
	n := 0

	first := <-results
	out[first.index], got[first.index] = first.line, true
	eofOut[first.index] = first.err == io.EOF
	n++
	if first.err != nil && first.err != io.EOF {
		return nil, nil, fmt.Errorf("mutation: reading from space %v: %w", running[first.index].subset, first.err)
	}

	for i, p := range running {
		if got[i] {
			continue
		}
		_ = os.WriteFile(fmt.Sprintf("/tmp/terminate_%d", p.cmd.Process.Pid), nil, 0o644)
	}
	_ = os.WriteFile("/tmp/terminate_all", nil, 0o644)

	for n < len(running) {
		r := <-results
		out[r.index] = r.line
		got[r.index] = true
		eofOut[r.index] = r.err == io.EOF
		n++
		if r.err != nil && r.err != io.EOF {
			return nil, nil, fmt.Errorf("mutation: reading from space %v: %w", running[r.index].subset, r.err)
		}
	}

	_ = os.Remove("/tmp/terminate_all")
	return out, eofOut, nil
}

// Close kills every still-running subprocess. Safe to call more than once.
func (s *Session) Close() {
	for _, p := range s.spaces {
		if p.done || p.cmd.Process == nil {
			continue
		}
		_ = p.cmd.Process.Kill()
	}
}

// nonEmptySubsets returns every non-empty subset of items, in a
// deterministic order, mirroring `Utils.py`'s `powerset` filtered to drop
// the empty set.
func nonEmptySubsets(items []string) [][]string {
	n := len(items)
	var subsets [][]string
	for mask := 1; mask < (1 << n); mask++ {
		var subset []string
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				subset = append(subset, items[i])
			}
		}
		subsets = append(subsets, subset)
	}
	sort.Slice(subsets, func(i, j int) bool {
		if len(subsets[i]) != len(subsets[j]) {
			return len(subsets[i]) < len(subsets[j])
		}
		for k := range subsets[i] {
			if subsets[i][k] != subsets[j][k] {
				return subsets[i][k] < subsets[j][k]
			}
		}
		return false
	})
	return subsets
}
