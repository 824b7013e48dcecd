// Package orchestrator drives the agentic analysis loop: given an
// analysis type, a user query, and a context tier, it repeatedly turns the
// LLM, dispatches the tool calls it asks for through pkg/executor, and
// stops once the model signals a final answer or the tier's step cap is
// reached.
package orchestrator
