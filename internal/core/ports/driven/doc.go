// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - EmbeddingService: Generates vector embeddings for chunks and queries
//   - VectorStore: Chunk persistence and similarity search
//   - PageExtractor: Page-by-page text extraction from documents
//   - IndexStateStore: Change-detection cache persistence
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Answer synthesis. Without it, only retrieval is available.
//   - BibliographyDatabase: Structured metadata. Without it, filenames are parsed.
//   - MetadataCache: Avoids re-reading the bibliography database.
//   - PromptStore: User-editable prompt templates. Defaults are built in.
//   - Metrics: Operational counters. NopMetrics when disabled.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or postprocessor package
package driven
