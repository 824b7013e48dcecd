package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/graphmind/codegraph/pkg/errs"
	"github.com/graphmind/codegraph/pkg/executor"
	"github.com/graphmind/codegraph/pkg/llmprovider"
	"github.com/graphmind/codegraph/pkg/log"
	"github.com/graphmind/codegraph/pkg/metrics"
	"github.com/graphmind/codegraph/pkg/trace"
	"github.com/graphmind/codegraph/pkg/types"
)

// turnResponse is the JSON shape every LLM turn must answer with.
type turnResponse struct {
	Reasoning string         `json:"reasoning"`
	ToolCall  *toolCallSpec  `json:"tool_call"`
	IsFinal   bool           `json:"is_final"`
	Answer    any            `json:"answer"`
}

type toolCallSpec struct {
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters"`
}

// Request starts one agentic analysis session.
type Request struct {
	AnalysisType        AnalysisType
	Query               string
	ProjectID           string
	SnapshotID          types.SnapshotID
	ContextWindowTokens int
	ProgressToken        string
	Sink                 Sink
}

// Result is the terminal outcome of an agentic session.
type Result struct {
	AnalysisType     AnalysisType `json:"analysis_type"`
	Tier             Tier         `json:"tier"`
	Query            string       `json:"query"`
	StructuredOutput any          `json:"structured_output,omitempty"`
	Answer           string       `json:"answer,omitempty"`
	Findings         []string     `json:"findings,omitempty"`
	StepsTaken       int          `json:"steps_taken"`
	Framework        string       `json:"framework"`
}

// Orchestrator drives the LLM turn loop described in §4.K, dispatching
// tool calls through an Executor.
type Orchestrator struct {
	provider llmprovider.Provider
	executor *executor.Executor
}

// New builds an Orchestrator over the given LLM provider and tool
// executor.
func New(provider llmprovider.Provider, ex *executor.Executor) *Orchestrator {
	return &Orchestrator{provider: provider, executor: ex}
}

// Run executes one agentic session end-to-end.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	token := req.ProgressToken
	if token == "" {
		token = uuid.NewString()
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.OrchestratorSessionDuration)

	finish := func(stage Stage) {
		outcome := "complete"
		if stage == StageError {
			outcome = "error"
		}
		metrics.OrchestratorSessionsTotal.WithLabelValues(outcome).Inc()
		req.Sink.emit(token, 1.0, string(stage))
	}

	req.Sink.emit(token, 0.0, string(StageStarted))

	tier := DetectTier(req.ContextWindowTokens)
	limits := LimitsFor(tier)
	toolNames := o.executor.Names()

	result := &Result{AnalysisType: req.AnalysisType, Tier: tier, Query: req.Query, Framework: "codegraph"}

	messages := []llmprovider.Message{
		{Role: llmprovider.RoleSystem, Content: systemPrompt(req.AnalysisType, tier, toolNames)},
		{Role: llmprovider.RoleUser, Content: req.Query},
	}

	req.Sink.emit(token, 0.5, string(StageAnalysing))

	var findings []string
	seenNodes := make(map[types.NodeID]struct{})
	steps := 0
	for steps < limits.MaxToolCalls {
		if err := ctx.Err(); err != nil {
			finish(StageError)
			return nil, err
		}

		resp, err := trace.WrapResult(ctx, "orchestrator.turn", func(ctx context.Context) (*llmprovider.Response, error) {
			return o.provider.Chat(ctx, llmprovider.Request{Messages: messages})
		}, attribute.String("analysis_type", string(req.AnalysisType)), attribute.String("tier", string(tier)))
		if err != nil {
			finish(StageError)
			return nil, errs.Wrap(errs.KindLLM, "orchestrator.Run", err, "llm turn failed")
		}

		turn, finalStep := parseTurn(resp.Message.Content)
		steps++
		result.StepsTaken = steps

		isLastStep := steps >= limits.MaxToolCalls
		if turn.IsFinal || isLastStep || finalStep {
			applyFinalAnswer(result, req.AnalysisType, turn, resp.Message.Content)
			o.fillComponents(result, req, seenNodes)
			finish(StageComplete)
			return result, nil
		}

		if turn.ToolCall == nil {
			// model produced no tool call and did not mark itself final;
			// treat its text as the answer rather than looping forever.
			applyFinalAnswer(result, req.AnalysisType, turn, resp.Message.Content)
			o.fillComponents(result, req, seenNodes)
			finish(StageComplete)
			return result, nil
		}

		metrics.OrchestratorStepsTotal.WithLabelValues(string(tier)).Inc()

		toolResult, err := o.executor.Invoke(ctx, req.ProjectID, turn.ToolCall.ToolName, req.SnapshotID, turn.ToolCall.Parameters)
		if err != nil {
			log.WithComponent("orchestrator").Warn().Err(err).Str("tool", turn.ToolCall.ToolName).Msg("tool call failed, surfacing to model")
			messages = append(messages,
				llmprovider.Message{Role: llmprovider.RoleAssistant, Content: resp.Message.Content},
				llmprovider.Message{Role: llmprovider.RoleTool, Content: `{"error": "` + err.Error() + `"}`},
			)
			findings = append(findings, "tool "+turn.ToolCall.ToolName+" failed: "+err.Error())
			continue
		}

		resultJSON, _ := json.Marshal(toolResult)
		messages = append(messages,
			llmprovider.Message{Role: llmprovider.RoleAssistant, Content: resp.Message.Content},
			llmprovider.Message{Role: llmprovider.RoleTool, Content: string(resultJSON)},
		)
		findings = append(findings, "called "+turn.ToolCall.ToolName)
		for _, id := range extractNodeIDs(resultJSON) {
			seenNodes[id] = struct{}{}
		}
	}

	result.Findings = findings
	o.fillComponents(result, req, seenNodes)
	finish(StageComplete)
	return result, nil
}

// fillComponents assembles the "components" array a dependency-analysis
// final answer must carry (spec.md §8 scenario 7): one entry per node this
// session actually visited via a tool call, with its file_path sourced
// from the node's own record rather than invented by the model. A model
// that already produced a usable components array is left alone; this
// only backfills a missing or empty one.
func (o *Orchestrator) fillComponents(result *Result, req Request, seenNodes map[types.NodeID]struct{}) {
	if req.AnalysisType != AnalysisDependencyReview {
		return
	}
	m, ok := result.StructuredOutput.(map[string]any)
	if !ok {
		return
	}
	if existing, ok := m["components"].([]any); ok && len(existing) > 0 {
		return
	}

	components := make([]map[string]any, 0, len(seenNodes))
	for id := range seenNodes {
		node, err := o.executor.Catalogue().NodeAt(req.SnapshotID, id)
		if err != nil {
			continue
		}
		path := node.Location()
		if path == "" {
			continue
		}
		components = append(components, map[string]any{
			"name":        string(id),
			"file_path":   path,
			"line_number": 0,
		})
	}
	m["components"] = components
	result.StructuredOutput = m
}

// extractNodeIDs walks a tool result's JSON encoding looking for any
// "node_id" key, the field every graph tool in pkg/tools tags its results
// with (see reached.NodeID in pkg/tools/walk.go).
func extractNodeIDs(resultJSON []byte) []types.NodeID {
	var decoded any
	if err := json.Unmarshal(resultJSON, &decoded); err != nil {
		return nil
	}
	var ids []types.NodeID
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			if id, ok := t["node_id"].(string); ok && id != "" {
				ids = append(ids, types.NodeID(id))
			}
			for _, child := range t {
				walk(child)
			}
		case []any:
			for _, child := range t {
				walk(child)
			}
		}
	}
	walk(decoded)
	return ids
}

// parseTurn decodes a turn's JSON content; malformed content is treated as
// a final, unstructured answer rather than an error, matching the
// fallback semantics §4.K requires for unparsable final messages.
func parseTurn(content string) (turnResponse, bool) {
	var t turnResponse
	if err := json.Unmarshal([]byte(content), &t); err != nil {
		return turnResponse{Reasoning: content, IsFinal: true, Answer: content}, true
	}
	return t, false
}

func applyFinalAnswer(result *Result, analysisType AnalysisType, turn turnResponse, raw string) {
	if m, ok := turn.Answer.(map[string]any); ok && validateStructured(analysisType, m) {
		result.StructuredOutput = m
		return
	}
	if turn.Answer != nil {
		if s, ok := turn.Answer.(string); ok {
			result.Answer = s
			return
		}
		result.StructuredOutput = turn.Answer
		return
	}
	result.Answer = raw
}
