//go:build !cgo_sqlite
// +build !cgo_sqlite

package vectordb

// Default build: pure Go SQLite via modernc.org/sqlite. No C compiler
// needed, cross-compiles everywhere.
//
//	go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver to open.
	DriverName = "sqlite"

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)
