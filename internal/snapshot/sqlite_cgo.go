//go:build cgo
// +build cgo

package snapshot

import (
	_ "github.com/mattn/go-sqlite3"
)

const sqliteDriver = "sqlite3"

func dsn(path string) string {
	if path == ":memory:" {
		return path
	}
	return path + "?_journal_mode=WAL&_busy_timeout=5000"
}
