// Package appfs embeds the non-Go assets shipped inside the binaries:
// SQL migrations (run by goose) and email templates.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/*
var FS embed.FS
