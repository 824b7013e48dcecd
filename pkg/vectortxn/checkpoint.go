package vectortxn

import (
	"time"

	"github.com/google/uuid"

	"github.com/graphmind/codegraph/pkg/types"
)

// maxRetainedCheckpoints bounds how many checkpoints CreateCheckpoint keeps;
// older ones are dropped once this limit is exceeded.
const maxRetainedCheckpoints = 10

// Checkpoint records the committed-transaction frontier at a point in
// time. Checksums is placeholder-extensible: today it is empty, but future
// per-segment content hashes can be added without changing the shape
// callers depend on.
type Checkpoint struct {
	ID          string
	CreatedAt   time.Time
	CommittedTx []types.TransactionID
	Checksums   map[types.SegmentID]string
}

// CreateCheckpoint snapshots every currently-committed transaction id known
// to this manager, retaining only the most recent maxRetainedCheckpoints.
func (m *Manager) CreateCheckpoint() Checkpoint {
	m.mu.Lock()
	committed := make([]types.TransactionID, 0, len(m.txns))
	for id, st := range m.txns {
		if st.state == VecTxCommitted {
			committed = append(committed, id)
		}
	}
	m.mu.Unlock()

	cp := Checkpoint{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now(),
		CommittedTx: committed,
		Checksums:   make(map[types.SegmentID]string),
	}

	m.mu.Lock()
	m.checkpoints = append(m.checkpoints, cp)
	if len(m.checkpoints) > maxRetainedCheckpoints {
		m.checkpoints = m.checkpoints[len(m.checkpoints)-maxRetainedCheckpoints:]
	}
	m.mu.Unlock()

	return cp
}

// Checkpoints returns the retained checkpoint history, most recent last.
func (m *Manager) Checkpoints() []Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Checkpoint, len(m.checkpoints))
	copy(out, m.checkpoints)
	return out
}
