package fn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultBasics(t *testing.T) {
	ok := Ok(42)
	assert.True(t, ok.IsOk())
	assert.Equal(t, 42, ok.Must())

	bad := Err[int](errors.New("boom"))
	assert.True(t, bad.IsErr())
	assert.Equal(t, 0, bad.UnwrapOr(0))
}

func TestCollect(t *testing.T) {
	results := []Result[int]{Ok(1), Ok(2), Ok(3)}
	collected := Collect(results)
	require := assert.New(t)
	require.True(collected.IsOk())
	v, _ := collected.Unwrap()
	require.Equal([]int{1, 2, 3}, v)

	withErr := []Result[int]{Ok(1), Err[int](errors.New("nope"))}
	require.True(Collect(withErr).IsErr())
}

func TestParMapPreservesOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	out := ParMap(items, 2, func(i int) int { return i * i })
	assert.Equal(t, []int{1, 4, 9, 16, 25}, out)
}

func TestPipelineShortCircuits(t *testing.T) {
	double := MapStage(func(i int) int { return i * 2 })
	fail := Stage[int, int](func(_ context.Context, i int) Result[int] {
		return Err[int](errors.New("stage failed"))
	})
	p := Pipeline(double, fail, double)
	r := p(context.Background(), 3)
	assert.True(t, r.IsErr())
}

func TestChunkAndGroupBy(t *testing.T) {
	chunks := Chunk([]int{1, 2, 3, 4, 5}, 2)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks)

	groups := GroupBy([]int{1, 2, 3, 4}, func(i int) bool { return i%2 == 0 })
	assert.Len(t, groups[true], 2)
	assert.Len(t, groups[false], 2)
}
