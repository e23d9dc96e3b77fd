// Package migrations embeds the review service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
