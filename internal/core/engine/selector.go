package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/greenstreak/greenstreak/internal/core"
)

// SelectionMode controls how a repository is chosen for automated commits.
type SelectionMode string

const (
	SelectRotation SelectionMode = "rotation"
	SelectRandom   SelectionMode = "random"
)

// ParseSelectionMode normalizes a configured selection mode.
func ParseSelectionMode(value string) (SelectionMode, error) {
	switch SelectionMode(strings.ToLower(strings.TrimSpace(value))) {
	case "", SelectRotation:
		return SelectRotation, nil
	case SelectRandom:
		return SelectRandom, nil
	default:
		return "", fmt.Errorf("unknown selection mode %q", value)
	}
}

// Selector picks the next repository from a fixed set. Rotation advances
// one step per call regardless of the commit outcome.
type Selector struct {
	Repos  []string
	Mode   SelectionMode
	Random core.Random

	mu   sync.Mutex
	next int
}

// Pick returns the next repository, or "" when none are configured.
func (s *Selector) Pick() string {
	if s == nil || len(s.Repos) == 0 {
		return ""
	}

	if s.Mode == SelectRandom {
		r := s.Random
		if r == nil {
			r = core.DefaultRandom()
		}
		return s.Repos[r.IntN(len(s.Repos))]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	repo := s.Repos[s.next%len(s.Repos)]
	s.next = (s.next + 1) % len(s.Repos)
	return repo
}
