// Package message produces conventional-commit messages and the placeholder
// file bodies written by automated commits.
package message

import (
	"fmt"
	"strings"

	"github.com/greenstreak/greenstreak/internal/core"
)

const scopeProbability = 0.3

type template struct {
	kind     string
	actions  []string
	subjects []string
}

var templates = []template{
	{kind: "chore", actions: []string{"update", "refresh", "sync", "clean up"}, subjects: []string{"dependencies", "config", "docs", "metadata"}},
	{kind: "docs", actions: []string{"update", "improve", "revise", "clarify"}, subjects: []string{"README", "comments", "documentation", "examples"}},
	{kind: "style", actions: []string{"format", "lint", "organize", "refactor"}, subjects: []string{"code", "files", "structure", "spacing"}},
	{kind: "fix", actions: []string{"resolve", "correct", "patch", "address"}, subjects: []string{"typo", "bug", "issue", "error"}},
	{kind: "feat", actions: []string{"add", "implement", "introduce", "create"}, subjects: []string{"feature", "utility", "helper", "function"}},
}

var scopes = []string{"api", "core", "utils", "config", "tests", "build"}

var fallbacks = []string{
	"feat: add new feature",
	"fix: resolve bug",
	"docs: update documentation",
	"chore: routine maintenance",
	"style: code formatting",
	"refactor: improve structure",
	"test: add tests",
	"build: update deps",
	"perf: optimize",
	"ci: update config",
}

// Generate returns a message of the form "type(scope): action subject"; the
// scope is present about 30% of the time.
func Generate(r core.Random) string {
	if r == nil {
		r = core.DefaultRandom()
	}
	t := templates[r.IntN(len(templates))]
	action := t.actions[r.IntN(len(t.actions))]
	subject := t.subjects[r.IntN(len(t.subjects))]

	prefix := t.kind
	if r.Float64() < scopeProbability {
		prefix = fmt.Sprintf("%s(%s)", t.kind, scopes[r.IntN(len(scopes))])
	}
	return fmt.Sprintf("%s: %s %s", prefix, action, subject)
}

// Fallback returns one of the fixed conventional messages.
func Fallback(r core.Random) string {
	if r == nil {
		r = core.DefaultRandom()
	}
	return fallbacks[r.IntN(len(fallbacks))]
}

// Body renders the placeholder file body for title.
func Body(title, stamp string) string {
	return fmt.Sprintf("# %s\n\nUpdated on %s", strings.TrimSpace(title), stamp)
}

// OverrideBody renders the body used when the caller supplies a message.
func OverrideBody(msg, stamp string) string {
	return fmt.Sprintf("# Auto Commit\n\n%s\n\nUpdated on %s", strings.TrimSpace(msg), stamp)
}
