package housekeeper

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWAL struct {
	checkpoints int32
	truncations int32
}

func (f *fakeWAL) Checkpoint() error   { atomic.AddInt32(&f.checkpoints, 1); return nil }
func (f *fakeWAL) TruncateWAL() error  { atomic.AddInt32(&f.truncations, 1); return nil }

type fakeSweeper struct{ swept int32 }

func (f *fakeSweeper) SweepExpired() (int, error) {
	atomic.AddInt32(&f.swept, 1)
	return 1, nil
}

func TestHousekeeperRunsCheckpointTask(t *testing.T) {
	wal := &fakeWAL{}
	hk := New(Config{CheckpointInterval: 5 * time.Millisecond}, wal, nil, nil, nil, nil)
	hk.Start()
	time.Sleep(30 * time.Millisecond)
	hk.Stop()

	assert.Greater(t, atomic.LoadInt32(&wal.checkpoints), int32(0))
	assert.Greater(t, atomic.LoadInt32(&wal.truncations), int32(0))
}

func TestHousekeeperSkipsNilDependencies(t *testing.T) {
	hk := New(DefaultConfig(), nil, nil, nil, nil, nil)
	hk.Start()
	time.Sleep(10 * time.Millisecond)
	hk.Stop()
}

func TestHousekeeperRunsTxSweepTask(t *testing.T) {
	sweeper := &fakeSweeper{}
	hk := New(Config{TxSweepInterval: 5 * time.Millisecond}, nil, sweeper, nil, nil, nil)
	hk.Start()
	time.Sleep(20 * time.Millisecond)
	hk.Stop()

	require.Greater(t, atomic.LoadInt32(&sweeper.swept), int32(0))
}
