package vectortxn

import (
	"github.com/graphmind/codegraph/pkg/events"
	"github.com/graphmind/codegraph/pkg/log"
	"github.com/graphmind/codegraph/pkg/metrics"
	"github.com/graphmind/codegraph/pkg/types"
)

// DetectDeadlocks inspects the lock table's wait-for graph for cycles and
// aborts one participant per cycle found, breaking it. Priority is not
// otherwise modeled, so the victim is always the participant with the most
// recent start time (tiebreak rule from the module description, applied as
// the sole rule since no distinct priority exists). Implements
// pkg/housekeeper.DeadlockDetector.
func (m *Manager) DetectDeadlocks() (int, error) {
	graph := m.locks.waitForGraph()
	broken := 0

	visited := make(map[types.TransactionID]struct{})
	for node := range graph {
		if _, ok := visited[node]; ok {
			continue
		}
		cycle := findCycle(graph, node, visited)
		if len(cycle) == 0 {
			continue
		}
		victim := m.selectVictim(cycle)
		if victim == "" {
			continue
		}
		if _, err := m.AbortVectorTx(victim); err != nil {
			log.WithComponent("vectortxn.deadlock").Warn().Err(err).Str("tx_id", string(victim)).Msg("failed to abort deadlock victim")
			continue
		}
		metrics.VectorDeadlocksTotal.Inc()
		if m.broker != nil {
			m.broker.Publish(&events.Event{Type: events.EventDeadlockBroken, Message: string(victim)})
		}
		log.WithComponent("vectortxn.deadlock").Warn().Str("tx_id", string(victim)).Msg("aborted deadlock victim")
		broken++
	}
	return broken, nil
}

// findCycle runs a DFS from start looking for any cycle reachable through
// the wait-for graph, marking every node visited along the way so the
// caller's outer loop never re-explores it.
func findCycle(graph map[types.TransactionID]map[types.TransactionID]struct{}, start types.TransactionID, visited map[types.TransactionID]struct{}) []types.TransactionID {
	path := []types.TransactionID{}
	onPath := make(map[types.TransactionID]int)

	var dfs func(node types.TransactionID) []types.TransactionID
	dfs = func(node types.TransactionID) []types.TransactionID {
		if idx, ok := onPath[node]; ok {
			return append([]types.TransactionID(nil), path[idx:]...)
		}
		if _, ok := visited[node]; ok {
			return nil
		}
		visited[node] = struct{}{}
		onPath[node] = len(path)
		path = append(path, node)

		for next := range graph[node] {
			if cycle := dfs(next); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		delete(onPath, node)
		return nil
	}
	return dfs(start)
}

func (m *Manager) selectVictim(cycle []types.TransactionID) types.TransactionID {
	m.mu.Lock()
	defer m.mu.Unlock()

	var victim types.TransactionID
	var newestStart int64 = -1
	for _, id := range cycle {
		st, ok := m.txns[id]
		if !ok {
			continue
		}
		if st.startedAt.UnixNano() > newestStart {
			newestStart = st.startedAt.UnixNano()
			victim = id
		}
	}
	return victim
}
