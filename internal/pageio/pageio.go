// Package pageio holds the handful of size constants shared by the
// buffer pool and the heap file, so neither package needs to import the
// other just to agree on a page's byte size (spec.md §3.2).
package pageio

const (
	// PageSize is the fixed size in bytes of every page the buffer pool
	// caches and the heap file lays out.
	PageSize = 4096

	// MaxPages is the dense page-id space of a single heap file.
	MaxPages = 32768

	// HeaderPages is the number of pages a heap file reserves ahead of
	// its MAX_PAGES data region: one header page plus three reserved
	// space-map pages (spec.md §4.4). The heap file is responsible for
	// shifting every page id it hands to the buffer pool or disk manager
	// by this amount (spec.md §9, source defect #5).
	HeaderPages = 4
)
