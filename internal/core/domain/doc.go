// Package domain defines the core business entities for LocalKnowledge.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - LibraryItem: A document file found under the library storage root
//   - CanonicalMetadata: Bibliographic metadata read from the library database
//   - DocumentMetadata: Resolved metadata with its provenance
//   - Page and Chunk: Extracted text units carrying page-level provenance
//   - IndexState: Change-detection records per identity key
//   - Citation and Answer: Retrieval results handed to front-ends
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
