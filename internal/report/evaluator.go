package report

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/deliverygate/internal/config"
	"github.com/aristath/deliverygate/internal/events"
	"github.com/aristath/deliverygate/internal/gate"
	"github.com/aristath/deliverygate/internal/history"
	"github.com/aristath/deliverygate/internal/workflow"
)

// WorkflowSource lists the workflows to evaluate.
type WorkflowSource interface {
	ListWorkflows(ctx context.Context) ([]*workflow.Workflow, error)
}

// EvaluatorConfig configures the portfolio evaluator.
type EvaluatorConfig struct {
	ConcurrencyLimit int                       // Max workflows evaluated at once (default 4)
	Retry            RetryConfig               // Backoff for store reads
	Breaker          *gobreaker.CircuitBreaker // Optional; a default breaker is created when nil
	Bus              *events.EventBus          // Optional; nil disables progress events
}

// Evaluator runs portfolio-wide gate evaluation.
type Evaluator struct {
	config   EvaluatorConfig
	source   WorkflowSource
	recorder *history.Recorder
}

// NewEvaluator creates a new portfolio evaluator.
func NewEvaluator(cfg EvaluatorConfig, source WorkflowSource, recorder *history.Recorder) *Evaluator {
	if cfg.ConcurrencyLimit <= 0 {
		cfg.ConcurrencyLimit = 4
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Breaker == nil {
		cfg.Breaker = NewBreaker("store", config.BreakerConfig{})
	}

	return &Evaluator{
		config:   cfg,
		source:   source,
		recorder: recorder,
	}
}

// Run evaluates every module gate and workflow gate of every stored
// workflow. A workflow that cannot be evaluated is reported in
// Portfolio.Errors without aborting the pass; failing to list workflows
// aborts it.
func (e *Evaluator) Run(ctx context.Context) (*Portfolio, error) {
	start := time.Now()

	res, err := readWithRetry(ctx, e.config.Breaker, e.config.Retry, func(ctx context.Context) (interface{}, error) {
		return e.source.ListWorkflows(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("listing workflows: %w", err)
	}
	workflows := res.([]*workflow.Workflow)

	portfolio := newPortfolio()
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.ConcurrencyLimit)

	for _, wf := range workflows {
		wf := wf
		g.Go(func() error {
			gates, next, err := e.evaluateWorkflow(gctx, wf)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("ERROR: evaluating workflow %q: %v", wf.ID, err)
				portfolio.Errors = append(portfolio.Errors, WorkflowError{WorkflowID: wf.ID, Err: err})
				return nil // Return nil to not abort errgroup
			}
			portfolio.Gates = append(portfolio.Gates, gates...)
			if next != "" {
				portfolio.Next[wf.ID] = next
			}
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	portfolio.finalize()

	if e.config.Bus != nil {
		e.config.Bus.Publish(events.TopicPortfolio, events.PortfolioProgressEvent{
			Total:     portfolio.Total(),
			Passed:    portfolio.Counts[gate.GatePassed],
			Pending:   portfolio.Counts[gate.GatePending],
			Blocked:   portfolio.Counts[gate.GateBlocked],
			Failed:    portfolio.Counts[gate.GateFailed],
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		})
	}

	return portfolio, nil
}

// evaluateWorkflow evaluates the module gates of wf in declaration order,
// then its workflow gate. It also returns the next module to work on.
func (e *Evaluator) evaluateWorkflow(ctx context.Context, wf *workflow.Workflow) ([]GateSummary, string, error) {
	plan, err := workflow.PlanFor(wf)
	if err != nil {
		return nil, "", err
	}

	modules := plan.Modules()
	gates := make([]GateSummary, 0, len(modules)+1)
	statuses := make(map[string]gate.GateStatus, len(modules))

	for _, m := range modules {
		verdict, err := e.recorder.Evaluate(ctx, history.Key{WorkflowID: wf.ID, ModuleID: m.ID}, wf.ClientID, m.Steps)
		if err != nil {
			return nil, "", err
		}
		statuses[m.ID] = verdict.Status
		gates = append(gates, GateSummary{
			ClientID:     wf.ClientID,
			WorkflowID:   wf.ID,
			WorkflowName: wf.Name,
			ModuleID:     m.ID,
			ModuleName:   m.Name,
			Verdict:      verdict,
		})
	}

	unlocked := make(map[string]bool, len(modules))
	for _, m := range plan.Unlocked(statuses) {
		unlocked[m.ID] = true
	}
	for i := range gates {
		gates[i].Locked = !unlocked[gates[i].ModuleID]
	}

	scope, err := plan.WorkflowScope()
	if err != nil {
		return nil, "", err
	}
	verdict, err := e.recorder.Evaluate(ctx, history.Key{WorkflowID: wf.ID}, wf.ClientID, scope)
	if err != nil {
		return nil, "", err
	}
	gates = append(gates, GateSummary{
		ClientID:     wf.ClientID,
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		Verdict:      verdict,
	})

	var next string
	nextModule, err := workflow.NewProgression(plan).Next(statuses)
	if err != nil {
		return nil, "", err
	}
	if nextModule != nil {
		next = nextModule.ID
	}

	return gates, next, nil
}
