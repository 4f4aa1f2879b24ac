// Package sqlassets embeds the schema migration DDL shipped with the binary so
// deployments stay self-contained. Files under migrations/ are named
// NNNN_description.sql and applied in lexical order.
package sqlassets

import "embed"

//go:embed migrations/*.sql
var MigrationsFS embed.FS

// MigrationsDir is the directory inside MigrationsFS holding the DDL files.
const MigrationsDir = "migrations"
