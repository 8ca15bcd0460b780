package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfig indicates the configuration document is missing, malformed
	// or inconsistent. Configuration errors are fatal at startup.
	ErrConfig = errors.New("invalid configuration")

	// ErrLibraryNotFound indicates the library storage root or database
	// could not be located. Callers treat this as an empty library.
	ErrLibraryNotFound = errors.New("library not found")

	// ErrIndexNotBuilt indicates the vector store has no chunks yet.
	ErrIndexNotBuilt = errors.New("index not built")

	// ErrExtraction indicates text could not be extracted from a document.
	ErrExtraction = errors.New("text extraction failed")

	// ErrLLMUnavailable indicates the generation backend is not configured
	// or unreachable. Answer synthesis is disabled.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding backend is not configured
	// or unreachable. Indexing and retrieval are disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorStoreUnavailable indicates the vector store could not be opened.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")

	// ErrIndexInProgress indicates an indexing run is already active.
	ErrIndexInProgress = errors.New("index in progress")
)
