package message

import (
	"math/rand/v2"
	"regexp"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

var conventional = regexp.MustCompile(`^(chore|docs|style|fix|feat)(\((api|core|utils|config|tests|build)\))?: [a-z ]+ [A-Za-z]+$`)

func TestGenerateShape(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	scoped := 0
	for i := 0; i < 500; i++ {
		msg := Generate(r)
		require.Regexp(t, conventional, msg)
		if regexp.MustCompile(`^\w+\(`).MatchString(msg) {
			scoped++
		}
	}
	require.Greater(t, scoped, 50)
	require.Less(t, scoped, 300)
}

func TestFallback(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 50; i++ {
		require.True(t, slices.Contains(fallbacks, Fallback(r)))
	}
}

func TestBodies(t *testing.T) {
	require.Equal(t, "# docs: update README\n\nUpdated on 2025-03-01T10:00:00Z", Body(" docs: update README ", "2025-03-01T10:00:00Z"))
	require.Equal(t, "# Auto Commit\n\nship it\n\nUpdated on today", OverrideBody("ship it", "today"))
}
