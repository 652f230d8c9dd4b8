// Package migrations embeds the SQL schema migrations so the daemon can
// apply them wherever the binary runs, independent of working directory.
package migrations

import "embed"

// FS holds every .sql file in this directory, applied in filename order.
//
//go:embed *.sql
var FS embed.FS
