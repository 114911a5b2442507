package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/crucible"
)

// Build metadata, injected from main via SetVersionInfo.
var (
	AppVersion   = "dev"
	AppCommit    = "unknown"
	AppBuildDate = "unknown"
	appIdentity  *appidentity.Identity
)

func SetVersionInfo(version, commit, buildDate string) {
	AppVersion = version
	AppCommit = commit
	AppBuildDate = buildDate
}

func SetAppIdentity(identity *appidentity.Identity) {
	appIdentity = identity
}

// BuildInfo is the body of GET /version and of `greenstreak version --json`.
type BuildInfo struct {
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Version      string            `json:"version"`
	Commit       string            `json:"git_commit"`
	BuildDate    string            `json:"build_date"`
	GoVersion    string            `json:"go_version"`
	Platform     string            `json:"platform"`
	Dependencies map[string]string `json:"dependencies"`
}

// CurrentBuildInfo describes the running binary.
func CurrentBuildInfo() BuildInfo {
	name := "greenstreak"
	description := ""
	if appIdentity != nil {
		name = appIdentity.BinaryName
		description = appIdentity.Description
	} else if len(os.Args) > 0 && os.Args[0] != "" {
		name = filepath.Base(os.Args[0])
	}

	deps := crucible.GetVersion()
	return BuildInfo{
		Name:        name,
		Description: description,
		Version:     AppVersion,
		Commit:      AppCommit,
		BuildDate:   AppBuildDate,
		GoVersion:   runtime.Version(),
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
		Dependencies: map[string]string{
			"gofulmen": deps.Gofulmen,
			"crucible": deps.Crucible,
		},
	}
}

func VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CurrentBuildInfo())
}
