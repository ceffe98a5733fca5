package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSweeper struct {
	calls   atomic.Int32
	removed int
}

func (c *countingSweeper) Sweep() int {
	c.calls.Add(1)
	return c.removed
}

func TestRunOnceSumsRemovals(t *testing.T) {
	a := &countingSweeper{removed: 2}
	b := &countingSweeper{removed: 3}
	s := New(time.Minute, map[string]Sweeper{"a": a, "b": b}, zap.NewNop())

	assert.Equal(t, 5, s.RunOnce())
	assert.EqualValues(t, 1, a.calls.Load())
	assert.EqualValues(t, 1, b.calls.Load())
}

func TestStartRunsJob(t *testing.T) {
	c := &countingSweeper{}
	s := New(time.Second, map[string]Sweeper{"results": c}, zap.NewNop())

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return c.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestStartWithoutCaches(t *testing.T) {
	s := New(time.Second, nil, zap.NewNop())
	assert.NoError(t, s.Start())
	s.Stop()
}
