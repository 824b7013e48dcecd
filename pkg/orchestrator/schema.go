package orchestrator

import (
	"strconv"
	"strings"
)

// AnalysisType selects which system prompt and expected structured output
// schema govern a session.
type AnalysisType string

const (
	AnalysisCodeSearch        AnalysisType = "code_search"
	AnalysisDependencyReview  AnalysisType = "dependency_analysis"
	AnalysisCouplingReview    AnalysisType = "coupling_analysis"
	AnalysisHotspotReview     AnalysisType = "hotspot_analysis"
)

// expectedFields lists the keys a final structured answer must carry for
// each analysis type. A map answer missing any of these is still returned
// as StructuredOutput, unvalidated; the raw response text is returned only
// when the model gave no answer value at all (see applyFinalAnswer).
var expectedFields = map[AnalysisType][]string{
	AnalysisCodeSearch:       {"matches", "summary"},
	AnalysisDependencyReview: {"dependencies", "summary", "components"},
	AnalysisCouplingReview:   {"metrics", "summary"},
	AnalysisHotspotReview:    {"hotspots", "summary"},
}

// systemPrompt selects the instruction text for a given analysis type and
// tier, naming the tools available and the tier's step/depth budget.
func systemPrompt(analysisType AnalysisType, tier Tier, toolNames []string) string {
	limits := LimitsFor(tier)
	prompt := "You are a code intelligence assistant analysing a dependency graph. " +
		"Analysis type: " + string(analysisType) + ". Tier: " + string(tier) + ". " +
		"You may call at most " + strconv.Itoa(limits.MaxToolCalls) + " tools, at traversal depth " +
		strconv.Itoa(limits.MinDepth) + "-" + strconv.Itoa(limits.MaxDepth) + ". " +
		"Available tools: " + strings.Join(toolNames, ", ") + ". " +
		"Respond with a single JSON object: " +
		`{"reasoning": "...", "tool_call": {"tool_name": "...", "parameters": {...}} | null, "is_final": bool, "answer": {...} | "..."}` +
		". Set is_final true and fill answer once you have enough information."
	if analysisType == AnalysisDependencyReview {
		prompt += " Your final answer must additionally include a \"components\" array of " +
			`{"name": "...", "file_path": "...", "line_number": 0}` +
			" entries, one per node this session actually visited via a tool call. " +
			"MANDATORY: components array must include file paths from tool results, never invented or assumed paths."
	}
	return prompt
}

// validateStructured reports whether a decoded final answer carries every
// field expected for analysisType.
func validateStructured(analysisType AnalysisType, answer map[string]any) bool {
	fields, ok := expectedFields[analysisType]
	if !ok {
		return true
	}
	for _, f := range fields {
		if _, present := answer[f]; !present {
			return false
		}
	}
	return true
}
