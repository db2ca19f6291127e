// Package configs holds the default catalogs, tuning and JSON schemas shipped with the server.
package configs

import "embed"

//go:embed *.json *.yaml schemas/*.json
var FS embed.FS
