package batch

import (
	"fmt"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	for _, test := range []struct {
		n, size int
		lens    []int
	}{
		{0, 3, []int{}},
		{1, 3, []int{1}},
		{3, 3, []int{3}},
		{7, 3, []int{3, 3, 1}},
		{6, 2, []int{2, 2, 2}},
		{5, 10, []int{5}},
		{4, 1, []int{1, 1, 1, 1}},
	} {
		t.Run(fmt.Sprintf("%d/%d", test.n, test.size), func(t *testing.T) {
			items := make([]int, test.n)
			for i := range items {
				items[i] = i
			}
			chunks, err := Chunk(items, test.size)
			require.NoError(t, err)
			require.NotNil(t, chunks)
			lens := []int{}
			var flat []int
			for _, c := range chunks {
				lens = append(lens, len(c))
				flat = append(flat, c...)
			}
			assert.Equal(t, test.lens, lens)
			if test.n > 0 {
				assert.Equal(t, items, flat)
			}
		})
	}
}

func TestChunkAppendDoesNotClobber(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	chunks, err := Chunk(items, 2)
	require.NoError(t, err)
	_ = append(chunks[0], "x")
	assert.Equal(t, "c", items[2])
}

func TestChunkBadSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := Chunk([]int{1}, size)
		assert.True(t, errors.Is(errors.Invalid, err))
	}
}

func TestNewPlan(t *testing.T) {
	p, err := NewPlan([]string{"q1", "q2"}, []string{"c1", "q1", "c2", "c1", "c3"}, 2, 0)
	require.NoError(t, err)
	assert.False(t, p.Truncated)
	assert.Equal(t, []Batch{
		{Index: 0, Queries: []string{"q1", "q2"}, Candidates: []string{"c1", "q1"}},
		{Index: 1, Queries: []string{"q1", "q2"}, Candidates: []string{"c2", "c3"}},
		{Index: 2, Queries: []string{"q1", "q2"}, Candidates: []string{"q2"}},
	}, p.Batches)

	// Each query is a candidate exactly once across the plan.
	count := map[string]int{}
	for _, b := range p.Batches {
		for _, c := range b.Candidates {
			count[c]++
		}
	}
	assert.Equal(t, 1, count["q1"])
	assert.Equal(t, 1, count["q2"])
}

func TestNewPlanLimits(t *testing.T) {
	p, err := NewPlan([]string{"q1", "q2", "q3"}, nil, 5, 2)
	require.NoError(t, err)
	assert.True(t, p.Truncated)
	assert.Equal(t, []string{"q1", "q2"}, p.Queries)
	require.Len(t, p.Batches, 1)
	assert.Equal(t, []string{"q1", "q2"}, p.Batches[0].Candidates)

	_, err = NewPlan([]string{"q1", "q1"}, nil, 5, 0)
	assert.True(t, errors.Is(errors.Precondition, err))

	p, err = NewPlan(nil, nil, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, p.Batches)
}
