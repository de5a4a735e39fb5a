package useragent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func countingCache() (*Cache, *int) {
	calls := 0
	cache := &Cache{
		byStyle: map[string]string{},
		generate: func(style string) string {
			calls++
			return fmt.Sprintf("agent-for-%s-%d", style, calls)
		},
	}
	return cache, &calls
}

func TestForMemoizesPerStyle(t *testing.T) {
	cache, calls := countingCache()

	first := cache.For("chrome")
	second := cache.For("chrome")
	require.Equal(t, first, second)
	require.Equal(t, 1, *calls)

	other := cache.For("firefox")
	require.NotEqual(t, first, other)
	require.Equal(t, 2, *calls)
}

func TestForNormalizesStyle(t *testing.T) {
	cache, calls := countingCache()

	a := cache.For("Chrome")
	b := cache.For("  chrome ")
	require.Equal(t, a, b)
	require.Equal(t, 1, *calls)
}

func TestForEmptyStyleUsesDefault(t *testing.T) {
	cache, calls := countingCache()

	a := cache.For("")
	b := cache.For(DefaultStyle)
	require.Equal(t, a, b)
	require.Equal(t, 1, *calls)
}
