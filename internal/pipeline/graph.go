package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	gaoconfig "github.com/JaimeStill/go-agents-orchestration/pkg/config"
	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/JaimeStill/relief/internal/aggregation"
	"github.com/JaimeStill/relief/internal/applications"
	"github.com/JaimeStill/relief/internal/decisions"
	"github.com/JaimeStill/relief/internal/status"
	"github.com/JaimeStill/relief/pkg/formatting"
)

// State keys shared between graph nodes.
const (
	KeyApplicationID = "application_id"
	KeyRunID         = "run_id"
	KeyResume        = "resume"
	KeyView          = "view"
	KeyDecision      = "decision"
)

// Workflow step names recorded in the transition log.
const (
	StepScanning  = "document_scanning"
	StepIncome    = "income_analysis"
	StepIdentity  = "identity_verification"
	StepAggregate = "data_aggregation"
	StepDecision  = "decision_making"
)

// Result is the outcome of one graph execution.
type Result struct {
	ApplicationID uuid.UUID
	View          aggregation.View
	Decision      *decisions.Decision
}

// Execute runs the processing graph for an application that has already
// entered scanning_documents, or analyzing_income when resume is set. Every
// write is made under run; once a reset or forced retry supersedes it the
// next write fails with status.ErrStaleRun and the graph stops.
func Execute(ctx context.Context, rt *Runtime, id, run uuid.UUID, resume bool) (*Result, error) {
	graph, err := buildGraph(rt)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	initial := state.New(nil)
	initial = initial.Set(KeyApplicationID, id)
	initial = initial.Set(KeyRunID, run)
	initial = initial.Set(KeyResume, resume)

	final, err := graph.Execute(ctx, initial)
	if err != nil {
		return nil, fmt.Errorf("execute graph: %w", err)
	}

	return extractResult(final)
}

func buildGraph(rt *Runtime) (state.StateGraph, error) {
	cfg := gaoconfig.DefaultGraphConfig("relief-pipeline")
	cfg.Observer = "noop"

	graph, err := state.NewGraph(cfg)
	if err != nil {
		return nil, err
	}

	nodes := []struct {
		name string
		node state.StateNode
	}{
		{"start", StartNode(rt)},
		{"extract", ExtractNode(rt)},
		{"analyze", AnalyzeNode(rt)},
		{"decide", DecideNode(rt)},
		{"complete", CompleteNode(rt)},
	}
	for _, n := range nodes {
		if err := graph.AddNode(n.name, n.node); err != nil {
			return nil, err
		}
	}

	autoDecide := func(state.State) bool { return rt.AutoDecide }

	// resumed applications already have extraction results
	if err := graph.AddEdge("start", "extract", state.Not(resuming)); err != nil {
		return nil, err
	}
	if err := graph.AddEdge("start", "analyze", resuming); err != nil {
		return nil, err
	}
	if err := graph.AddEdge("extract", "analyze", nil); err != nil {
		return nil, err
	}
	if err := graph.AddEdge("analyze", "decide", autoDecide); err != nil {
		return nil, err
	}
	if err := graph.AddEdge("analyze", "complete", state.Not(autoDecide)); err != nil {
		return nil, err
	}
	if err := graph.AddEdge("decide", "complete", nil); err != nil {
		return nil, err
	}

	if err := graph.SetEntryPoint("start"); err != nil {
		return nil, err
	}
	if err := graph.SetExitPoint("complete"); err != nil {
		return nil, err
	}

	return graph, nil
}

// StartNode validates the initial state.
func StartNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		id, err := applicationID(s)
		if err != nil {
			return s, err
		}

		rt.Logger.InfoContext(ctx, "pipeline started", "application_id", id, "resume", resuming(s))
		return s, nil
	})
}

// ExtractNode runs OCR and vision over every document and moves the
// application to ocr_completed once all documents have finished.
func ExtractNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		id, err := applicationID(s)
		if err != nil {
			return s, err
		}

		run := runOf(s)
		started := time.Now()

		docs, err := rt.Applications.Documents(ctx, id, "")
		if err != nil {
			return s, fmt.Errorf("extract: list documents: %w", err)
		}

		if err := rt.Documents.MarkProcessing(ctx, id, run); err != nil {
			return s, fmt.Errorf("extract: %w", err)
		}

		summary, err := rt.Extractor.Run(ctx, run, docs)
		if err != nil {
			return s, fmt.Errorf("extract: %w", err)
		}

		step := applications.Step{
			Name: StepScanning,
			Message: fmt.Sprintf("%d completed, %d partial, %d failed",
				summary.Completed, summary.Partial, summary.Failed),
			ProcessingTime: time.Since(started),
		}
		if len(docs) > 0 && !summary.Extracted() {
			step.Message += "; continuing with application form only"
		}

		if _, err := rt.Applications.Advance(ctx, id, run, status.CompleteExtraction, step); err != nil {
			return s, fmt.Errorf("extract: %w", err)
		}

		rt.Logger.InfoContext(ctx, "extract node complete",
			"application_id", id,
			"documents", len(docs),
			"failed", summary.Failed,
		)
		return s, nil
	})
}

// AnalyzeNode reconciles every source into the aggregated view and stores
// the financial figures on the application.
func AnalyzeNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		id, err := applicationID(s)
		if err != nil {
			return s, err
		}

		run := runOf(s)

		app, err := rt.Applications.Find(ctx, id, "")
		if err != nil {
			return s, fmt.Errorf("analyze: %w", err)
		}
		if err := app.CheckRun(run); err != nil {
			return s, fmt.Errorf("analyze: %w", err)
		}

		if app.Status == status.OCRCompleted {
			if app, err = rt.Applications.Advance(ctx, id, run, status.AnalyzeIncome, applications.Step{
				Name:   StepIncome,
				Status: applications.StepInProgress,
			}); err != nil {
				return s, fmt.Errorf("analyze: %w", err)
			}
		}

		started := time.Now()
		docs, err := rt.Applications.Documents(ctx, id, "")
		if err != nil {
			return s, fmt.Errorf("analyze: list documents: %w", err)
		}

		view := aggregation.Aggregate(app, docs)

		if err := rt.Applications.RecordFinancials(ctx, id, run, view.Financial.MonthlyIncome, view.Financial.AccountBalance); err != nil {
			return s, fmt.Errorf("analyze: %w", err)
		}

		incomeConf := sourceConfidence(view, aggregation.VisionBankStatement)
		if _, err := rt.Applications.Advance(ctx, id, run, status.AnalyzeIdentity, applications.Step{
			Name:           StepIncome,
			Message:        incomeMessage(view),
			ProcessingTime: time.Since(started),
			Confidence:     incomeConf,
		}); err != nil {
			return s, fmt.Errorf("analyze: %w", err)
		}

		identityConf := view.Consistency.Overall
		if _, err := rt.Applications.Advance(ctx, id, run, status.CompleteAnalysis, applications.Step{
			Name: StepIdentity,
			Message: fmt.Sprintf("name consistency %.2f, id consistency %.2f",
				view.Consistency.Name, view.Consistency.ID),
			Confidence: &identityConf,
		}); err != nil {
			return s, fmt.Errorf("analyze: %w", err)
		}

		rt.Logger.InfoContext(ctx, "analyze node complete",
			"application_id", id,
			"sources", view.Available(),
			"quality", view.QualityScore,
		)

		s = s.Set(KeyView, view)
		return s, nil
	})
}

// DecideNode scores the aggregated view, obtains reasoning and records the decision.
func DecideNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		view, err := viewOf(s)
		if err != nil {
			return s, err
		}

		d, err := decide(ctx, rt, view, runOf(s), false)
		if err != nil {
			return s, fmt.Errorf("decide: %w", err)
		}

		s = s.Set(KeyDecision, d)
		return s, nil
	})
}

// CompleteNode logs the end of the run.
func CompleteNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		id, _ := applicationID(s)
		rt.Logger.InfoContext(ctx, "pipeline complete", "application_id", id)
		return s, nil
	})
}

// decide runs the decision stage. run is uuid.Nil outside a pipeline run.
func decide(ctx context.Context, rt *Runtime, view aggregation.View, run uuid.UUID, forceReview bool) (*decisions.Decision, error) {
	step := applications.Step{
		Name:    StepDecision,
		Status:  applications.StepInProgress,
		Message: fmt.Sprintf("data quality %.2f", view.QualityScore),
	}
	if _, err := rt.Applications.Advance(ctx, view.ApplicationID, run, status.BeginDecision, step); err != nil {
		return nil, err
	}

	d, err := rt.Decider.Evaluate(ctx, decisions.Request{
		ApplicationID: view.ApplicationID,
		Factors:       aggregation.PrepareDecisionInput(view, rt.now()),
		ForceReview:   forceReview,
	})
	if err != nil {
		return nil, err
	}
	d.RunID = run

	return rt.Decisions.Record(ctx, d)
}

func resuming(s state.State) bool {
	v, ok := s.Get(KeyResume)
	if !ok {
		return false
	}
	resume, _ := v.(bool)
	return resume
}

func runOf(s state.State) uuid.UUID {
	v, ok := s.Get(KeyRunID)
	if !ok {
		return uuid.Nil
	}
	run, _ := v.(uuid.UUID)
	return run
}

func applicationID(s state.State) (uuid.UUID, error) {
	v, ok := s.Get(KeyApplicationID)
	if !ok {
		return uuid.Nil, fmt.Errorf("missing %s in state", KeyApplicationID)
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("%s is not uuid.UUID", KeyApplicationID)
	}
	return id, nil
}

func viewOf(s state.State) (aggregation.View, error) {
	v, ok := s.Get(KeyView)
	if !ok {
		return aggregation.View{}, fmt.Errorf("missing %s in state", KeyView)
	}
	view, ok := v.(aggregation.View)
	if !ok {
		return aggregation.View{}, fmt.Errorf("%s is not aggregation.View", KeyView)
	}
	return view, nil
}

func extractResult(s state.State) (*Result, error) {
	id, err := applicationID(s)
	if err != nil {
		return nil, err
	}

	r := &Result{ApplicationID: id}
	if view, err := viewOf(s); err == nil {
		r.View = view
	}
	if v, ok := s.Get(KeyDecision); ok {
		if d, ok := v.(*decisions.Decision); ok {
			r.Decision = d
		}
	}
	return r, nil
}

func sourceConfidence(v aggregation.View, id aggregation.SourceID) *float64 {
	src, ok := v.Sources[id]
	if !ok {
		return nil
	}
	c := src.Confidence
	return &c
}

func incomeMessage(v aggregation.View) string {
	if !v.Financial.MonthlyIncome.Valid {
		return "monthly income unavailable"
	}
	return "monthly income " + formatting.FormatMoney(v.Financial.MonthlyIncome.Decimal, "AED")
}
