package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driving"
	"github.com/SWHsz/LocalKnowledge/internal/logger"
)

// Ensure Indexer implements the interface.
var _ driving.IndexService = (*Indexer)(nil)

// Metric outcomes for indexed documents.
const (
	OutcomeIndexed = "indexed"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Indexer runs the incremental indexing pipeline: scan, fuse metadata,
// filter unchanged documents, extract and chunk pages, embed every chunk in
// one batch, then persist chunks and state.
type Indexer struct {
	locator   driven.DocumentLocator
	metadata  driving.MetadataService
	changes   *ChangeDetector
	extractor driven.PageExtractor
	chunker   driven.PageChunker
	embedding driven.EmbeddingService
	store     driven.VectorStore
	metrics   driven.Metrics

	mu  sync.Mutex
	now func() time.Time
}

// NewIndexer creates an indexer.
// The metadata service is optional (can be nil); without it documents are
// labelled from their filenames.
func NewIndexer(
	locator driven.DocumentLocator,
	metadata driving.MetadataService,
	changes *ChangeDetector,
	extractor driven.PageExtractor,
	chunker driven.PageChunker,
	embedding driven.EmbeddingService,
	store driven.VectorStore,
) *Indexer {
	return &Indexer{
		locator:   locator,
		metadata:  metadata,
		changes:   changes,
		extractor: extractor,
		chunker:   chunker,
		embedding: embedding,
		store:     store,
		metrics:   driven.NopMetrics{},
		now:       time.Now,
	}
}

// SetMetrics sets the metrics recorder.
func (ix *Indexer) SetMetrics(m driven.Metrics) {
	if m != nil {
		ix.metrics = m
	}
}

// document is all files stored under one identity key.
type document struct {
	key   string
	files []domain.LibraryItem
}

// pending is a document that has been extracted and awaits persistence.
type pending struct {
	key         string
	fingerprint string
	result      domain.ItemResult
	record      domain.IndexedFileRecord
	chunks      []domain.Chunk
}

// Index runs the pipeline once. Only one run may be active at a time;
// a concurrent call fails with domain.ErrIndexInProgress.
//
//nolint:gocognit // Pipeline orchestration with sequential phases
func (ix *Indexer) Index(ctx context.Context, opts driving.IndexOptions) (*domain.IndexReport, error) {
	if !ix.mu.TryLock() {
		return nil, domain.ErrIndexInProgress
	}
	defer ix.mu.Unlock()

	report := &domain.IndexReport{StartedAt: ix.now()}
	progress := func(p domain.IndexProgress) {
		if opts.Progress != nil {
			opts.Progress(p)
		}
	}

	// 1. SCANNING
	logger.Section("Indexing")
	progress(domain.IndexProgress{Phase: domain.PhaseScanning})

	items, err := ix.locator.Scan()
	if err != nil {
		return nil, fmt.Errorf("scan library: %w", err)
	}
	docs := groupByKey(items)
	logger.Info("found %d documents in %d storage directories", len(items), len(docs))

	records := ix.loadMetadata(ctx)

	if err := ix.changes.Load(ctx, opts.Force); err != nil {
		return nil, err
	}

	// 2. Per document: SKIPPED or EXTRACTING -> EMBEDDING_QUEUED
	var queue []pending
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		step := domain.IndexProgress{
			Key:      doc.key,
			Filename: doc.files[0].Filename,
			Current:  i + 1,
			Total:    len(docs),
		}

		fingerprint, err := Fingerprint(paths(doc.files)...)
		if err != nil {
			ix.fail(report, doc, fmt.Errorf("%w: %w", domain.ErrExtraction, err))
			continue
		}

		if !ix.changes.ShouldProcess(doc.key, fingerprint) {
			report.Skipped++
			ix.metrics.DocumentIndexed(OutcomeSkipped)
			step.Phase = domain.PhaseSkipped
			progress(step)
			continue
		}

		step.Phase = domain.PhaseExtracting
		progress(step)

		p, err := ix.extract(ctx, doc, records[doc.key])
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			ix.fail(report, doc, err)
			continue
		}
		p.fingerprint = fingerprint
		queue = append(queue, *p)

		step.Phase = domain.PhaseEmbeddingQueued
		progress(step)
	}

	// 3. Embed every queued chunk in one batch, then PERSISTING
	if len(queue) > 0 {
		chunks, err := ix.embed(ctx, queue)
		if err != nil {
			return nil, err
		}

		progress(domain.IndexProgress{Phase: domain.PhasePersisting, Total: len(queue)})

		keys := make([]string, len(queue))
		for i := range queue {
			keys[i] = queue[i].key
		}
		if err := ix.store.Replace(ctx, keys, chunks); err != nil {
			return nil, fmt.Errorf("persist chunks: %w", err)
		}

		for i := range queue {
			ix.changes.Record(queue[i].key, queue[i].fingerprint, queue[i].record)
			report.Succeeded = append(report.Succeeded, queue[i].result)
			ix.metrics.DocumentIndexed(OutcomeIndexed)
		}
		if err := ix.changes.Save(ctx); err != nil {
			return nil, err
		}

		report.Indexed = len(queue)
		report.Chunks = len(chunks)
		ix.metrics.ChunksPersisted(len(chunks))
	}

	// 4. DONE
	report.FinishedAt = ix.now()
	ix.metrics.IndexRun(report.Duration())
	progress(domain.IndexProgress{Phase: domain.PhaseDone, Current: len(docs), Total: len(docs)})

	logger.Info("indexed %d, skipped %d, failed %d, %d chunks in %s",
		report.Indexed, report.Skipped, len(report.Failed), report.Chunks, report.Duration())
	return report, nil
}

// loadMetadata maps attachment keys to their parent items. Any failure
// falls back to filename metadata.
func (ix *Indexer) loadMetadata(ctx context.Context) map[string]*domain.CanonicalMetadata {
	if ix.metadata == nil {
		return nil
	}

	items, err := ix.metadata.Extract(ctx, driving.ExtractOptions{})
	if err != nil {
		if errors.Is(err, domain.ErrLibraryNotFound) {
			logger.Warn("library database not available, using filename metadata: %v", err)
		} else {
			logger.Warn("metadata extraction failed, using filename metadata: %v", err)
		}
		return nil
	}
	return AttachmentMapping(items)
}

// extract reads every page of every file under the document's key and
// chunks it with full provenance.
func (ix *Indexer) extract(
	ctx context.Context, doc document, record *domain.CanonicalMetadata,
) (*pending, error) {
	meta := domain.ResolveMetadata(doc.files[0].Filename, record)
	logger.Debug("%s: %q (%s metadata)", doc.key, meta.Title, meta.Provenance)

	p := &pending{key: doc.key}
	pages := 0
	for _, file := range doc.files {
		n, chunks, err := ix.extractFile(ctx, doc.key, file, meta)
		if err != nil {
			return nil, err
		}
		pages += n
		p.chunks = append(p.chunks, chunks...)
	}

	if len(p.chunks) == 0 {
		return nil, fmt.Errorf("no extractable text: %w", domain.ErrExtraction)
	}

	p.record = domain.IndexedFileRecord{
		Title:   meta.Title,
		Authors: meta.Authors,
		Year:    meta.Year,
		Pages:   pages,
	}
	p.result = domain.ItemResult{
		Key:      doc.key,
		Filename: doc.files[0].Filename,
		Title:    meta.Title,
		Pages:    pages,
		Chunks:   len(p.chunks),
	}
	return p, nil
}

// extractFile returns the number of non-blank pages and their chunks.
func (ix *Indexer) extractFile(
	ctx context.Context, key string, file domain.LibraryItem, meta domain.DocumentMetadata,
) (int, []domain.Chunk, error) {
	reader, err := ix.extractor.Open(ctx, file.Path)
	if err != nil {
		return 0, nil, err
	}
	defer reader.Close()

	var chunks []domain.Chunk
	pages := 0
	for reader.Next() {
		page := domain.Page{
			Text: reader.Text(),
			Meta: domain.ChunkMeta{
				Title:       meta.Title,
				Authors:     meta.Authors,
				Year:        meta.Year,
				IdentityKey: key,
				Source:      file.Filename,
				FilePath:    file.Path,
				Page:        reader.Number(),
				TotalPages:  reader.NumPages(),
			},
		}
		pageChunks, err := ix.chunker.Process(ctx, page)
		if err != nil {
			return 0, nil, fmt.Errorf("chunk page %d: %w", page.Meta.Page, err)
		}
		pages++
		chunks = append(chunks, pageChunks...)
	}
	if err := reader.Err(); err != nil {
		return 0, nil, err
	}
	return pages, chunks, nil
}

// embed computes the vectors of every queued chunk with one batch call.
func (ix *Indexer) embed(ctx context.Context, queue []pending) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for i := range queue {
		chunks = append(chunks, queue[i].chunks...)
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}

	logger.Info("embedding %d chunks from %d documents", len(chunks), len(queue))
	vectors, err := ix.embedding.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks: %w",
			len(vectors), len(chunks), domain.ErrEmbeddingUnavailable)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	return chunks, nil
}

func (ix *Indexer) fail(report *domain.IndexReport, doc document, err error) {
	logger.Warn("failed to index %s/%s: %v", doc.key, doc.files[0].Filename, err)
	report.Failed = append(report.Failed, domain.ItemResult{
		Key:      doc.key,
		Filename: doc.files[0].Filename,
		Err:      err,
	})
	ix.metrics.DocumentIndexed(OutcomeFailed)
}

// groupByKey collects files by identity key, keys and filenames sorted.
func groupByKey(items []domain.LibraryItem) []document {
	byKey := make(map[string]*document)
	var keys []string
	for _, item := range items {
		d, ok := byKey[item.Key]
		if !ok {
			d = &document{key: item.Key}
			byKey[item.Key] = d
			keys = append(keys, item.Key)
		}
		d.files = append(d.files, item)
	}
	sort.Strings(keys)

	docs := make([]document, 0, len(keys))
	for _, k := range keys {
		d := byKey[k]
		sort.Slice(d.files, func(i, j int) bool { return d.files[i].Filename < d.files[j].Filename })
		docs = append(docs, *d)
	}
	return docs
}

func paths(files []domain.LibraryItem) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}
