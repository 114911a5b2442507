package core

import "time"

// CommitRecord describes one successful write to a repository file.
type CommitRecord struct {
	ID          string    `json:"id"`
	Repo        string    `json:"repo"`
	Branch      string    `json:"branch"`
	Path        string    `json:"path"`
	Message     string    `json:"message"`
	SHA         string    `json:"sha,omitempty"`
	HTMLURL     string    `json:"html_url,omitempty"`
	CommittedAt time.Time `json:"committed_at"`
	Automated   bool      `json:"automated"`
}

// ShortSHA returns the abbreviated commit hash.
func (r *CommitRecord) ShortSHA() string {
	if r == nil {
		return ""
	}
	if len(r.SHA) > 7 {
		return r.SHA[:7]
	}
	return r.SHA
}

// Stats aggregates commit counters across the lifetime of the store.
type Stats struct {
	TotalCommits     int            `json:"total_commits"`
	AutomatedCommits int            `json:"automated_commits"`
	FirstCommitAt    *time.Time     `json:"first_commit_at,omitempty"`
	LastCommitAt     *time.Time     `json:"last_commit_at,omitempty"`
	RepoCounts       map[string]int `json:"repo_counts"`
}

// PerDay returns the average number of commits per day since the first commit.
func (s Stats) PerDay(now time.Time) float64 {
	if s.FirstCommitAt == nil || s.TotalCommits == 0 {
		return 0
	}
	days := now.Sub(*s.FirstCommitAt).Hours() / 24
	if days < 1 {
		days = 1
	}
	return float64(s.TotalCommits) / days
}

// MostActiveRepo returns the repository with the highest commit count.
func (s Stats) MostActiveRepo() (string, int) {
	var (
		best  string
		count int
	)
	for repo, n := range s.RepoCounts {
		if n > count || (n == count && repo < best) {
			best, count = repo, n
		}
	}
	return best, count
}

// AnomalyKind identifies which activity check flagged a pattern.
type AnomalyKind string

const (
	AnomalyNone         AnomalyKind = ""
	AnomalyTooRegular   AnomalyKind = "too_regular"
	AnomalyBurst        AnomalyKind = "burst"
	AnomalyUnusualHours AnomalyKind = "unusual_hours"
)

// Anomaly is the advisory verdict produced from the commit-timing history.
type Anomaly struct {
	Suspicious     bool        `json:"suspicious"`
	Kind           AnomalyKind `json:"kind,omitempty"`
	Reason         string      `json:"reason,omitempty"`
	Recommendation string      `json:"recommendation,omitempty"`
}

// EventType classifies scheduler events.
type EventType string

const (
	EventStarted   EventType = "started"
	EventSkipped   EventType = "skipped"
	EventWaiting   EventType = "waiting"
	EventCommitted EventType = "committed"
	EventFailed    EventType = "failed"
	EventStopped   EventType = "stopped"
)

// Event is emitted by schedulers for presentation layers.
type Event struct {
	Type   EventType     `json:"type"`
	Time   time.Time     `json:"time"`
	Detail string        `json:"detail,omitempty"`
	Repo   string        `json:"repo,omitempty"`
	Wait   time.Duration `json:"wait,omitempty"`
}
