package appid

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appidentityassets "github.com/greenstreak/greenstreak/internal/assets/appidentity"
)

// resetIdentity clears the process-wide identity cache and re-registers the
// embedded document.
func resetIdentity(t *testing.T) {
	t.Helper()
	appidentity.Reset()
	require.NoError(t, appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML))
	t.Cleanup(appidentity.Reset)
}

func TestGetFallsBackToEmbeddedIdentity(t *testing.T) {
	resetIdentity(t)
	t.Setenv(appidentity.EnvIdentityPath, "")

	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(wd) })
	require.NoError(t, os.Chdir(t.TempDir()))

	identity, err := Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "greenstreak", identity.BinaryName)
	assert.Equal(t, "GREENSTREAK_", identity.EnvPrefix)
	assert.Equal(t, "greenstreak", identity.ConfigName)
}

func TestGetHonoursExplicitPath(t *testing.T) {
	resetIdentity(t)
	t.Setenv(appidentity.EnvIdentityPath, filepath.Join(t.TempDir(), "missing-app.yaml"))

	_, err := Get(context.Background())
	var notFound *appidentity.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
