// Package mcp provides an MCP (Model Context Protocol) server adapter for
// LocalKnowledge. It lets automation agents search the indexed library and
// read paper excerpts with page citations.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")

// ErrMissingLibraryService is returned when the library service is not provided.
var ErrMissingLibraryService = errors.New("mcp: library service is required")
