package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/stretchr/testify/require"
)

func TestVersionHandlerIncludesIdentityMetadata(t *testing.T) {
	SetVersionInfo("1.2.3", "abcd123", "2025-11-07T12:00:00Z")
	SetAppIdentity(&appidentity.Identity{
		BinaryName:  "greenstreak",
		Description: "paced commits",
	})
	t.Cleanup(func() {
		SetVersionInfo("dev", "unknown", "unknown")
		SetAppIdentity(nil)
	})

	rec := httptest.NewRecorder()
	VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info BuildInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
	require.Equal(t, "greenstreak", info.Name)
	require.Equal(t, "paced commits", info.Description)
	require.Equal(t, "1.2.3", info.Version)
	require.Equal(t, "abcd123", info.Commit)
	require.NotEmpty(t, info.Dependencies["gofulmen"])
	require.NotEmpty(t, info.Dependencies["crucible"])
}
