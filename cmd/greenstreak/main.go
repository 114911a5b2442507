package main

import (
	"github.com/greenstreak/greenstreak/internal/cmd"
	"github.com/greenstreak/greenstreak/internal/observability"
	"github.com/greenstreak/greenstreak/internal/server/handlers"
)

// Set via ldflags, e.g.
// go build -ldflags="-X main.version=1.0.0 -X main.commit=abc123 -X main.buildDate=2025-10-28"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	handlers.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		cmd.ExitWithCode(observability.CLILogger, cmd.ExitCodeFor(err), "Command failed", err)
	}
}
