package driven

import "context"

// PageExtractor opens documents for page-by-page text extraction.
type PageExtractor interface {
	// Open starts extraction of the document at path.
	Open(ctx context.Context, path string) (PageReader, error)
}

// PageReader yields the non-blank pages of one document in order.
// It follows the bufio.Scanner pattern and cannot be restarted.
type PageReader interface {
	// Next advances to the next non-blank page.
	// It returns false when pages are exhausted or an error occurred.
	Next() bool

	// Number returns the 1-based number of the current page.
	Number() int

	// Text returns the text of the current page.
	Text() string

	// NumPages returns the total page count, including blank pages.
	NumPages() int

	// Err returns the first error encountered, if any.
	Err() error

	// Close releases resources.
	Close() error
}
