// Package appid resolves the greenstreak app identity. An explicit
// FULMEN_APP_IDENTITY_PATH wins, then a .fulmen/app.yaml above the working
// directory, then the copy compiled into the binary.
package appid

import (
	"context"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/greenstreak/greenstreak/internal/assets/appidentity"
)

func init() {
	// Only malformed YAML fails here; appid_test.go registers the same bytes.
	_ = appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML)
}

// Get returns the process-wide identity, loading it on first use.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}
