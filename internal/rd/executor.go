package rd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/haleyos/haley/internal/llm"
	"github.com/haleyos/haley/internal/logging"
	"github.com/haleyos/haley/internal/metrics"
	"github.com/haleyos/haley/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrCycle reports deltas that depend on each other
var ErrCycle = errors.New("dependency cycle")

// DefaultBuildTemperature is used for delta build calls
const DefaultBuildTemperature = 0.4

const buildSystemPrompt = `You are an engineer implementing one unit of work for a product concept.
Produce a concise implementation plan: components, interfaces, and the steps to build and verify it.
Build on the outputs of completed dependencies instead of repeating them.`

// ExecutorOptions configures an Executor
type ExecutorOptions struct {
	Call    llm.Call
	Concept string
	Omega   string
	Claims  []model.Claim

	// Parallel builds every ready delta of a wave concurrently
	Parallel    bool
	Concurrency int

	Metrics *metrics.Metrics
	Logger  *zap.Logger

	// OnStatus receives a copy of a delta after each status change
	OnStatus func(model.Delta)
}

// Executor builds deltas in dependency order
type Executor struct {
	opts   ExecutorOptions
	claims map[string]model.Claim
	logger *zap.Logger

	mu        sync.Mutex
	deltas    []model.Delta
	index     map[string]int
	attempted map[string]bool
}

// NewExecutor creates an executor
func NewExecutor(opts ExecutorOptions) *Executor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	claims := make(map[string]model.Claim, len(opts.Claims))
	for _, c := range opts.Claims {
		claims[c.ID] = c
	}
	return &Executor{
		opts:   opts,
		claims: claims,
		logger: logging.OrNop(opts.Logger),
	}
}

// IsBlocked reports whether any dependency of d is not complete
func IsBlocked(d model.Delta, deltas []model.Delta) bool {
	status := make(map[string]model.DeltaStatus, len(deltas))
	for _, other := range deltas {
		status[other.ID] = other.Status
	}
	for _, dep := range d.BlockedBy {
		if status[dep] != model.DeltaComplete {
			return true
		}
	}
	return false
}

// DetectCycles returns the sorted ids of deltas that sit on a dependency cycle
func DetectCycles(deltas []model.Delta) []string {
	deps := make(map[string][]string, len(deltas))
	for _, d := range deltas {
		deps[d.ID] = d.BlockedBy
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(deltas))
	inCycle := make(map[string]bool)
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		state[id] = visiting
		stack = append(stack, id)
		for _, dep := range deps[id] {
			if _, ok := deps[dep]; !ok {
				continue
			}
			switch state[dep] {
			case unvisited:
				visit(dep)
			case visiting:
				for i := len(stack) - 1; i >= 0; i-- {
					inCycle[stack[i]] = true
					if stack[i] == dep {
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
	}

	for _, d := range deltas {
		if state[d.ID] == unvisited {
			visit(d.ID)
		}
	}

	ids := make([]string, 0, len(inCycle))
	for id := range inCycle {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CheckCycles returns an error wrapping ErrCycle when deltas contain a cycle
func CheckCycles(deltas []model.Delta) error {
	if ids := DetectCycles(deltas); len(ids) > 0 {
		return fmt.Errorf("%w: %s", ErrCycle, strings.Join(ids, ", "))
	}
	return nil
}

// Run builds every delta whose dependencies complete and returns the final
// states. A failed build leaves the delta pending with Error set; deltas
// whose dependencies never complete end blocked, and deltas skipped by a
// cancelled context stay pending. Only context errors are returned.
func (e *Executor) Run(ctx context.Context, deltas []model.Delta) ([]model.Delta, error) {
	e.mu.Lock()
	e.deltas = make([]model.Delta, len(deltas))
	e.index = make(map[string]int, len(deltas))
	e.attempted = make(map[string]bool)
	for i, d := range deltas {
		d.BlockedBy = append([]string(nil), d.BlockedBy...)
		d.ClaimIDs = append([]string(nil), d.ClaimIDs...)
		e.deltas[i] = d
		e.index[d.ID] = i
	}
	e.mu.Unlock()

	if ids := DetectCycles(deltas); len(ids) > 0 {
		e.logger.Warn("Deltas form a dependency cycle", zap.Strings("ids", ids))
	}

	var err error
	if e.opts.Parallel {
		err = e.runWaves(ctx)
	} else {
		err = e.runSequential(ctx)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.deltas {
		d := &e.deltas[i]
		if d.Status == model.DeltaComplete || e.attempted[d.ID] {
			continue
		}
		switch {
		case IsBlocked(*d, e.deltas):
			e.setStatus(i, model.DeltaBlocked)
		case d.Status == model.DeltaBlocked:
			e.setStatus(i, model.DeltaPending)
		}
	}
	return append([]model.Delta(nil), e.deltas...), err
}

// runSequential scans in order, repeating passes until nothing new is built
func (e *Executor) runSequential(ctx context.Context) error {
	for {
		progress := false
		for i := range e.deltas {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !e.ready(i) {
				continue
			}
			e.build(ctx, i)
			progress = true
		}
		if !progress {
			return nil
		}
	}
}

// runWaves builds all ready deltas concurrently, then re-evaluates
func (e *Executor) runWaves(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var wave []int
		for i := range e.deltas {
			if e.ready(i) {
				wave = append(wave, i)
			}
		}
		if len(wave) == 0 {
			return nil
		}

		e.logger.Debug("Building delta wave", zap.Int("size", len(wave)))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.opts.Concurrency)
		for _, i := range wave {
			g.Go(func() error {
				e.build(gctx, i)
				return nil
			})
		}
		_ = g.Wait()
	}
}

// ready updates the blocked/pending state of delta i and reports whether
// it should be built now
func (e *Executor) ready(i int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	d := e.deltas[i]
	if d.Status == model.DeltaComplete || e.attempted[d.ID] {
		return false
	}
	if IsBlocked(d, e.deltas) {
		e.setStatus(i, model.DeltaBlocked)
		return false
	}
	if d.Status == model.DeltaBlocked {
		e.setStatus(i, model.DeltaPending)
	}
	return true
}

func (e *Executor) build(ctx context.Context, i int) {
	e.mu.Lock()
	e.attempted[e.deltas[i].ID] = true
	e.deltas[i].Error = ""
	e.setStatus(i, model.DeltaInProgress)
	prompt := e.buildPrompt(e.deltas[i])
	id := e.deltas[i].ID
	e.mu.Unlock()

	output, err := e.opts.Call(ctx, buildSystemPrompt, prompt, DefaultBuildTemperature)
	e.opts.Metrics.DeltaBuilt(err)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.logger.Warn("Delta build failed", zap.String("delta", id), zap.Error(err))
		e.deltas[i].Error = err.Error()
		e.setStatus(i, model.DeltaPending)
		return
	}
	e.deltas[i].Output = strings.TrimSpace(output)
	e.setStatus(i, model.DeltaComplete)
}

// setStatus must be called with mu held
func (e *Executor) setStatus(i int, status model.DeltaStatus) {
	d := &e.deltas[i]
	if d.Status == status {
		return
	}
	d.Status = status
	if e.opts.OnStatus != nil {
		e.opts.OnStatus(*d)
	}
}

// buildPrompt must be called with mu held
func (e *Executor) buildPrompt(d model.Delta) string {
	var b strings.Builder
	if e.opts.Concept != "" {
		fmt.Fprintf(&b, "CONCEPT: %s\n", e.opts.Concept)
	}
	if e.opts.Omega != "" {
		fmt.Fprintf(&b, "TARGET: %s\n", e.opts.Omega)
	}

	fmt.Fprintf(&b, "\nDELTA %s: %s\n", d.ID, d.Title)
	if d.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", d.Description)
	}
	fmt.Fprintf(&b, "Priority: %s | Effort: %s | Type: %s\n", d.Priority, d.Effort, d.DeltaType)

	if len(d.ClaimIDs) > 0 {
		b.WriteString("\nCLAIMS:\n")
		for _, id := range d.ClaimIDs {
			if c, ok := e.claims[id]; ok {
				fmt.Fprintf(&b, "- %s (%s): %s\n", c.ID, c.Priority, c.Statement)
			}
		}
	}

	if len(d.BlockedBy) > 0 {
		b.WriteString("\nCOMPLETED DEPENDENCIES:\n")
		for _, dep := range d.BlockedBy {
			j, ok := e.index[dep]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "### %s: %s\n%s\n", dep, e.deltas[j].Title, e.deltas[j].Output)
		}
	}

	return b.String()
}
