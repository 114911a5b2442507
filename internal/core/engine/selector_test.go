package engine

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectorRotation(t *testing.T) {
	selector := &Selector{Repos: []string{"a/one", "a/two", "a/three"}}
	var got []string
	for i := 0; i < 7; i++ {
		got = append(got, selector.Pick())
	}
	require.Equal(t, []string{"a/one", "a/two", "a/three", "a/one", "a/two", "a/three", "a/one"}, got)
}

func TestSelectorRandom(t *testing.T) {
	selector := &Selector{Repos: []string{"a/one", "a/two"}, Mode: SelectRandom, Random: rand.New(rand.NewPCG(7, 9))}
	seen := map[string]int{}
	for i := 0; i < 200; i++ {
		seen[selector.Pick()]++
	}
	require.Len(t, seen, 2)
}

func TestSelectorEmpty(t *testing.T) {
	require.Empty(t, (&Selector{}).Pick())
}

func TestParseSelectionMode(t *testing.T) {
	mode, err := ParseSelectionMode("")
	require.NoError(t, err)
	require.Equal(t, SelectRotation, mode)

	mode, err = ParseSelectionMode(" Random ")
	require.NoError(t, err)
	require.Equal(t, SelectRandom, mode)

	_, err = ParseSelectionMode("weighted")
	require.Error(t, err)
}
