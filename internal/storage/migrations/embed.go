package migrations

import "embed"

// FS 包含所有迁移脚本
//
//go:embed scripts/*.sql
var FS embed.FS
