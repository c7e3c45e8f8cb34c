// Package configs embeds the configuration template written by
// `semsearch config init`.
package configs

import _ "embed"

// UserConfigTemplate is written to the user config path. Every key matches
// a field of config.Config and the values are the built-in defaults.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
