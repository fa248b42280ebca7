package cmap

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_SetGetDelete(t *testing.T) {
	m := New[string, int]()

	_, ok := m.Get("a")
	assert.False(t, ok)

	m.Set("a", 1)
	m.Set("b", 2)
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, m.Count())

	m.Delete("a")
	_, ok = m.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Count())
}

func TestMap_NonStringKeys(t *testing.T) {
	m := New[int, string]()
	for i := 0; i < 100; i++ {
		m.Set(i, fmt.Sprint(i))
	}
	assert.Equal(t, 100, m.Count())

	v, ok := m.Get(42)
	require.True(t, ok)
	assert.Equal(t, "42", v)
}

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{1, 1},
		{8, 8},
		{0, DefaultShardCount},
		{-4, DefaultShardCount},
		{12, DefaultShardCount},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Len(t, NewWithShards[string, int](tt.in).shards, tt.want)
		})
	}
}

func TestMap_GetOrCreateCallsCreateOnce(t *testing.T) {
	m := New[string, *int]()
	var calls atomic.Int32

	var wg sync.WaitGroup
	results := make([]*int, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = m.GetOrCreate("k", func() *int {
				calls.Add(1)
				return new(int)
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}

	_, existed := m.GetOrCreate("k", func() *int { return new(int) })
	assert.True(t, existed)
}

func TestMap_DeleteIf(t *testing.T) {
	m := New[string, int]()
	for i := 0; i < 10; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}

	removed := m.DeleteIf(func(_ string, v int) bool { return v%2 == 0 })
	assert.Equal(t, 5, removed)
	assert.Equal(t, 5, m.Count())

	m.Range(func(_ string, v int) bool {
		assert.Equal(t, 1, v%2)
		return true
	})
}

func TestMap_RangeStops(t *testing.T) {
	m := New[string, int]()
	for i := 0; i < 50; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}

	seen := 0
	m.Range(func(string, int) bool {
		seen++
		return seen < 3
	})
	assert.Equal(t, 3, seen)
}
