package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/emarren/vaultflow/internal/expressions"
	"github.com/emarren/vaultflow/internal/graph"
	"github.com/emarren/vaultflow/internal/history"
	"github.com/emarren/vaultflow/internal/logging"
	"github.com/emarren/vaultflow/pkg/schema"
)

// Validator checks a definition before the graph is built. Wired to the
// JSON Schema validator; nil skips the pass.
type Validator interface {
	ValidateDefinition(def *schema.WorkflowDefinition) error
}

// SchedulerConfig tunes the run loop.
type SchedulerConfig struct {
	// MaxSteps bounds the number of node executions per run, as a guard
	// against non-terminating loops. Zero means unbounded.
	MaxSteps int
}

// Scheduler drives runs through their graphs one node at a time. Each run is
// single-threaded; concurrency happens across runs, not within one.
type Scheduler struct {
	registry  *Registry
	templates *expressions.TemplateEngine
	recorder  history.Recorder
	logger    *slog.Logger
	validator Validator
	config    SchedulerConfig
}

// NewScheduler creates a scheduler.
func NewScheduler(registry *Registry, recorder history.Recorder, logger *slog.Logger, cfg SchedulerConfig) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		registry:  registry,
		templates: expressions.NewTemplateEngine(),
		recorder:  recorder,
		logger:    logger,
		config:    cfg,
	}
}

// SetValidator installs the pre-build definition validator.
func (s *Scheduler) SetValidator(v Validator) {
	s.validator = v
}

// RunRequest starts one run.
type RunRequest struct {
	Definition  *schema.WorkflowDefinition
	TriggerMode schema.TriggerMode
	InitialVars map[string]any

	// RunID is assigned when empty.
	RunID string
	// Depth is the sub-workflow nesting level; top-level callers leave it zero.
	Depth int
}

// RunResult is the terminal outcome of a run.
type RunResult struct {
	RunID string
	State schema.RunState
	Scope map[string]any
	Steps int
	Err   *schema.FlowError
}

// Run executes a workflow to a terminal state. It returns an error only when
// the run could not start (validation or graph build failure, history store
// unavailable); once the first node is eligible to execute, failures are
// reported through RunResult.
func (s *Scheduler) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	def := req.Definition
	if def == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "nil workflow definition")
	}
	if s.validator != nil {
		if err := s.validator.ValidateDefinition(def); err != nil {
			return nil, err
		}
	}
	g, err := graph.Build(def)
	if err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = logging.WithRunID(ctx, runID)
	ctx = logging.WithWorkflowName(ctx, def.Name)

	exec := NewExecutionContext(runID, def.Name, req.TriggerMode, req.InitialVars)
	exec.Depth = req.Depth

	fsm := NewRunFSM(runID, func(id string, from, to schema.RunState) {
		s.logger.DebugContext(ctx, "run transition", "from", string(from), "to", string(to))
	})

	if err := s.recorder.StartRun(ctx, &history.Run{
		ID:           runID,
		WorkflowName: def.Name,
		TriggerMode:  req.TriggerMode,
		State:        schema.RunStateRunning,
	}); err != nil {
		return nil, err
	}
	if err := fsm.Transition(schema.RunStateRunning); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "run started", "nodes", g.Len(), "depth", req.Depth)

	result := s.runLoop(ctx, g, exec, fsm)
	result.Scope = exec.Scope.Snapshot()

	errMsg := ""
	if result.Err != nil {
		errMsg = result.Err.Error()
	}
	if err := s.recorder.FinishRun(ctx, runID, result.State, errMsg); err != nil {
		s.logger.ErrorContext(ctx, "finalize run record", "error", err)
	}
	s.logger.InfoContext(ctx, "run finished", "state", string(result.State), "steps", result.Steps)
	return result, nil
}

func (s *Scheduler) runLoop(ctx context.Context, g *graph.Graph, exec *ExecutionContext, fsm *RunFSM) *RunResult {
	result := &RunResult{RunID: exec.RunID}
	current := g.Start()

	fail := func(fe *schema.FlowError) *RunResult {
		_ = fsm.Transition(schema.RunStateFailed)
		result.State = schema.RunStateFailed
		result.Err = fe
		return result
	}
	cancel := func() *RunResult {
		_ = fsm.Transition(schema.RunStateCancelled)
		result.State = schema.RunStateCancelled
		result.Err = schema.NewError(schema.ErrCodeCancelled, "run cancelled")
		return result
	}

	for current != schema.EndSentinel {
		// Cancellation is cooperative: checked between steps and surfaced
		// by handlers that observe ctx during a step.
		if ctx.Err() != nil {
			return cancel()
		}

		result.Steps++
		if s.config.MaxSteps > 0 && result.Steps > s.config.MaxSteps {
			return fail(schema.NewErrorf(schema.ErrCodeHandler,
				"run exceeded %d steps without terminating", s.config.MaxSteps).WithNode(current))
		}

		node, ok := g.Node(current)
		if !ok {
			return fail(schema.NewErrorf(schema.ErrCodeValidation, "node %q vanished from graph", current))
		}
		handler, ok := s.registry.Get(node.Type)
		if !ok {
			return fail(schema.NewErrorf(schema.ErrCodeHandler,
				"no handler registered for node type %q", node.Type).WithNode(node.ID))
		}

		stepCtx := logging.WithNodeID(ctx, node.ID)
		seq := result.Steps

		params, diags, perr := s.resolveParams(node, handler, exec)
		if perr != nil {
			return fail(schema.AsFlowError(perr, schema.ErrCodeValidation).WithNode(node.ID))
		}

		resolvedInput, _ := json.Marshal(params)
		if err := s.recorder.BeginStep(stepCtx, &history.Entry{
			RunID:         exec.RunID,
			Seq:           seq,
			NodeID:        node.ID,
			NodeType:      node.Type,
			ResolvedInput: resolvedInput,
		}); err != nil {
			return fail(schema.AsFlowError(err, schema.ErrCodeStore).WithNode(node.ID))
		}

		// Interactive nodes await user input; the run is suspended until
		// the handler returns.
		if handler.Interactive {
			_ = fsm.Transition(schema.RunStateSuspended)
		}
		s.logger.DebugContext(stepCtx, "executing node", "type", string(node.Type), "seq", seq)
		hres, herr := handler.Fn(stepCtx, &HandlerRequest{Node: node, Params: params, Exec: exec})
		if handler.Interactive && fsm.State() == schema.RunStateSuspended {
			_ = fsm.Transition(schema.RunStateRunning)
		}

		if hres != nil {
			diags = append(diags, hres.Diagnostics...)
		}

		if herr != nil {
			if errors.Is(herr, context.Canceled) || ctx.Err() != nil {
				_ = s.recorder.FinishStep(stepCtx, exec.RunID, seq, history.StepResult{
					Diagnostics: diags,
					Error:       "cancelled",
				})
				return cancel()
			}
			fe := schema.AsFlowError(herr, schema.ErrCodeHandler)
			if fe.NodeID == "" {
				fe.NodeID = node.ID
			}
			if err := s.recorder.FinishStep(stepCtx, exec.RunID, seq, history.StepResult{
				Diagnostics: diags,
				Error:       fe.Error(),
			}); err != nil {
				s.logger.ErrorContext(stepCtx, "finalize step record", "error", err)
			}
			return fail(fe)
		}

		var outputJSON json.RawMessage
		if hres != nil && hres.BindOutput {
			name := outputName(params, node.ID)
			exec.Scope.Set(name, hres.Output)
			outputJSON, _ = json.Marshal(hres.Output)
		}
		if err := s.recorder.FinishStep(stepCtx, exec.RunID, seq, history.StepResult{
			Output:      outputJSON,
			Diagnostics: diags,
		}); err != nil {
			return fail(schema.AsFlowError(err, schema.ErrCodeStore).WithNode(node.ID))
		}

		if node.IsBranch() && hres != nil && hres.Branch != nil {
			current = g.BranchNext(node.ID, *hres.Branch)
		} else {
			current = g.DefaultNext(node.ID)
		}
	}

	if ctx.Err() != nil {
		return cancel()
	}
	_ = fsm.Transition(schema.RunStateCompleted)
	result.State = schema.RunStateCompleted
	return result
}

// resolveParams decodes a node's parameters and substitutes templates in
// every string, except keys the handler interprets itself.
func (s *Scheduler) resolveParams(node *schema.Node, h Handler, exec *ExecutionContext) (map[string]any, []string, error) {
	raw := map[string]any{}
	if len(node.Params) > 0 {
		if err := json.Unmarshal(node.Params, &raw); err != nil {
			return nil, nil, schema.NewErrorf(schema.ErrCodeValidation,
				"decode params of node %q: %s", node.ID, err.Error()).WithCause(err)
		}
	}

	rawKeys := make(map[string]bool, len(h.RawParamKeys))
	for _, k := range h.RawParamKeys {
		rawKeys[k] = true
	}

	scope := exec.Scope.Snapshot()
	var diags []string
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if rawKeys[k] {
			out[k] = v
			continue
		}
		out[k] = s.resolveAny(v, scope, &diags)
	}
	return out, diags, nil
}

func (s *Scheduler) resolveAny(v any, scope map[string]any, diags *[]string) any {
	switch val := v.(type) {
	case string:
		resolved, d := s.templates.ResolveValue(val, scope)
		*diags = append(*diags, d...)
		return resolved
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = s.resolveAny(item, scope, diags)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = s.resolveAny(item, scope, diags)
		}
		return out
	default:
		return v
	}
}

// outputName picks the scope variable a node's output binds to: the output
// param when present, its saveTo alias otherwise, and the node ID as the
// fallback.
func outputName(params map[string]any, nodeID string) string {
	for _, key := range []string{"output", "saveTo"} {
		if v, ok := params[key]; ok {
			if name, ok := v.(string); ok && name != "" {
				return name
			}
		}
	}
	return nodeID
}
