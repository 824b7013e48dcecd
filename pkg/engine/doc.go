// Package engine is the composition root: it wires storage, the MVCC
// transaction manager, the vector segment engine and its consistency
// layer, the tool catalogue/executor, the agentic orchestrator, and the
// housekeeper's background maintenance loop into one running process.
package engine
