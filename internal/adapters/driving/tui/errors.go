package tui

import "errors"

// ErrMissingQueryService is returned when the query loader is not provided.
var ErrMissingQueryService = errors.New("tui: query service is required")

// ErrMissingLibraryService is returned when the library service is not provided.
var ErrMissingLibraryService = errors.New("tui: library service is required")
