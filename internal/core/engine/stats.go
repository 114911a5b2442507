package engine

import (
	"context"
	"sync"

	"github.com/greenstreak/greenstreak/internal/core"
)

// StatsStore records successful commits and serves the aggregate counters.
type StatsStore interface {
	RecordCommit(ctx context.Context, record core.CommitRecord) error
	Stats(ctx context.Context) (core.Stats, error)
}

// MemoryStats keeps counters in process memory.
type MemoryStats struct {
	mu    sync.Mutex
	stats core.Stats
	log   []core.CommitRecord
}

// RecordCommit implements StatsStore.
func (m *MemoryStats) RecordCommit(_ context.Context, record core.CommitRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.TotalCommits++
	if record.Automated {
		m.stats.AutomatedCommits++
	}
	at := record.CommittedAt
	if m.stats.FirstCommitAt == nil {
		m.stats.FirstCommitAt = &at
	}
	m.stats.LastCommitAt = &at
	if m.stats.RepoCounts == nil {
		m.stats.RepoCounts = make(map[string]int)
	}
	m.stats.RepoCounts[record.Repo]++
	m.log = append(m.log, record)
	return nil
}

// Stats implements StatsStore.
func (m *MemoryStats) Stats(context.Context) (core.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.stats
	out.RepoCounts = make(map[string]int, len(m.stats.RepoCounts))
	for repo, n := range m.stats.RepoCounts {
		out.RepoCounts[repo] = n
	}
	return out, nil
}

// Records returns the commits recorded so far.
func (m *MemoryStats) Records() []core.CommitRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.CommitRecord(nil), m.log...)
}

// ListCommits returns up to limit records, newest first.
func (m *MemoryStats) ListCommits(_ context.Context, limit int) ([]core.CommitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]core.CommitRecord, 0, len(m.log))
	for i := len(m.log) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.log[i])
	}
	return out, nil
}
