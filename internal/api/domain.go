package api

import (
	"time"

	"github.com/JaimeStill/relief/internal/agents"
	"github.com/JaimeStill/relief/internal/applications"
	"github.com/JaimeStill/relief/internal/decisions"
	"github.com/JaimeStill/relief/internal/documents"
	"github.com/JaimeStill/relief/internal/extraction"
	"github.com/JaimeStill/relief/internal/pipeline"
	"github.com/JaimeStill/relief/internal/prompts"
	"github.com/JaimeStill/relief/internal/reasoning"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Applications applications.System
	Documents    documents.System
	Prompts      prompts.System
	Decisions    decisions.System
	Pipeline     pipeline.System
	Executor     *pipeline.Executor
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	cfg := runtime.Config
	db := runtime.Database.Connection()

	docsSystem := documents.New(db, runtime.Storage, runtime.Logger, runtime.Pagination)

	appsSystem := applications.New(db, docsSystem, runtime.Logger, runtime.Pagination, applications.Options{
		RetryAfter:      cfg.Pipeline.RetryAfterDuration(),
		ProcessingLease: cfg.Pipeline.ProcessingLeaseDuration(),
		MaxUploadSize:   cfg.API.MaxUploadSizeBytes(),
	})

	promptsSystem := prompts.New(db, runtime.Logger, runtime.Pagination)

	policy := cfg.Eligibility.Policy()
	decisionsSystem := decisions.New(db, appsSystem, runtime.Events, policy, runtime.Logger)

	client := agents.New(cfg.Agent, cfg.Pipeline.AgentRPS, cfg.Pipeline.AgentBurst)

	runner := extraction.NewRunner(
		docsSystem,
		extraction.NewPageRenderer(cfg.Pipeline.MaxPages),
		extraction.NewAgentOCR(client, promptsSystem),
		extraction.NewAgentVision(client, promptsSystem),
		extraction.Options{
			Workers:         cfg.Pipeline.DocumentWorkers,
			DocumentTimeout: cfg.Pipeline.DocumentTimeoutDuration(),
		},
		runtime.Logger,
	)

	rt := &pipeline.Runtime{
		Applications: appsSystem,
		Documents:    docsSystem,
		Extractor:    runner,
		Decider: decisions.NewEngine(
			newReasoner(runtime, client, promptsSystem),
			policy,
		),
		Decisions:  decisionsSystem,
		AutoDecide: cfg.Pipeline.DecideAutomatically(),
		Logger:     runtime.Logger,
		Now:        func() time.Time { return time.Now().UTC() },
	}

	executor := pipeline.NewExecutor(rt, cfg.Pipeline.Workers, cfg.Pipeline.QueueSize)

	return &Domain{
		Applications: appsSystem,
		Documents:    docsSystem,
		Prompts:      promptsSystem,
		Decisions:    decisionsSystem,
		Pipeline:     pipeline.New(rt, executor, cfg.Pipeline.BatchWorkers),
		Executor:     executor,
	}
}

// newReasoner selects the configured reasoning backend. The LLM backend
// always falls back to the rules backend.
func newReasoner(runtime *Runtime, client *agents.Client, ps prompts.System) reasoning.Reasoner {
	rules := reasoning.NewRules()
	if reasoning.Backend(runtime.Config.Pipeline.Reasoning) == reasoning.BackendRules {
		return rules
	}
	return reasoning.WithFallback(
		reasoning.NewLLM(client, ps, runtime.Logger),
		rules,
		runtime.Config.Pipeline.ReasoningTimeoutDuration(),
		runtime.Logger,
	)
}
