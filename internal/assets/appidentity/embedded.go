package appidentityassets

import _ "embed"

// YAML is the greenstreak app identity. It is used whenever no
// `.fulmen/app.yaml` is found above the working directory, which is the
// normal case for an installed binary.
//
//go:embed app.yaml
var YAML []byte
