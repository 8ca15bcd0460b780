package web

import "errors"

// ErrMissingQueryService is returned when the query loader is not provided.
var ErrMissingQueryService = errors.New("web: query service is required")

// ErrMissingLibraryService is returned when the library service is not provided.
var ErrMissingLibraryService = errors.New("web: library service is required")
