// Package fastdb reads and writes FAST vector databases.
//
// A database is a single file holding named layers. Each layer stores one
// geometry record per feature (points, lines, polygons, raw bytes or nothing)
// and a fixed-width row table of typed fields, plus the string tables those
// fields index into. Files are loaded whole, optionally memory mapped, and
// are read-only after load apart from in-place numeric field updates.
//
// Use Load to open a file and Builder to create one.
package fastdb
