// Package migrations applies the embedded schema scripts in version order.
package migrations

import (
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"promptkit/pkg/logger"
)

type script struct {
	version int
	name    string
	body    string
}

// Run 执行所有待执行的迁移
func Run(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return fmt.Errorf("read applied versions: %w", err)
	}

	scripts, err := load()
	if err != nil {
		return fmt.Errorf("load scripts: %w", err)
	}

	for _, s := range scripts {
		if applied[s.version] {
			continue
		}
		if err := apply(db, s); err != nil {
			return fmt.Errorf("apply %s: %w", s.name, err)
		}
		logger.Debug().Int("version", s.version).Str("script", s.name).Msg("migrations: applied")
	}
	return nil
}

// Version 返回当前数据库版本
func Version(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM _migrations").Scan(&version)
	return version, err
}

// Latest returns the highest embedded script version.
func Latest() (int, error) {
	scripts, err := load()
	if err != nil || len(scripts) == 0 {
		return 0, err
	}
	return scripts[len(scripts)-1].version, nil
}

// Pending 返回待执行的迁移版本列表
func Pending(db *sql.DB) ([]int, error) {
	applied, err := appliedVersions(db)
	if err != nil {
		return nil, err
	}
	scripts, err := load()
	if err != nil {
		return nil, err
	}

	var pending []int
	for _, s := range scripts {
		if !applied[s.version] {
			pending = append(pending, s.version)
		}
	}
	return pending, nil
}

func appliedVersions(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM _migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// load reads scripts/NNN_name.sql from FS sorted by version. Files without
// a numeric prefix are ignored.
func load() ([]script, error) {
	entries, err := fs.ReadDir(FS, "scripts")
	if err != nil {
		return nil, err
	}

	var scripts []script
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		prefix, _, _ := strings.Cut(entry.Name(), "_")
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}

		// embed.FS 始终使用正斜杠
		body, err := fs.ReadFile(FS, path.Join("scripts", entry.Name()))
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, script{version: version, name: entry.Name(), body: string(body)})
	}

	sort.Slice(scripts, func(i, j int) bool {
		return scripts[i].version < scripts[j].version
	})
	return scripts, nil
}

func apply(db *sql.DB, s script) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(s.body); err != nil {
		return fmt.Errorf("execute SQL: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO _migrations (version) VALUES (?)", s.version); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return tx.Commit()
}
