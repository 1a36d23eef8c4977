//go:build cgo_sqlite
// +build cgo_sqlite

package vectordb

// cgo build: github.com/mattn/go-sqlite3. Faster row scans on large
// collections at the cost of a C toolchain.
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver to open.
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration.
	BuildMode = "cgo"
)
