// Package pdf extracts page text from PDF files using the pdftotext
// utility from poppler.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.PageExtractor = (*Extractor)(nil)

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found: install poppler-utils")

// pageBreak separates pages in pdftotext output.
const pageBreak = "\f"

// CommandRunner executes external commands.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, err
}

// Extractor opens PDFs page by page.
type Extractor struct {
	runner    CommandRunner
	checkTool bool
}

// New creates an extractor that runs the installed pdftotext.
func New() *Extractor {
	return &Extractor{runner: execRunner{}, checkTool: true}
}

// NewWithRunner creates an extractor with a custom command runner.
func NewWithRunner(runner CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// CheckAvailable returns ErrPDFToolNotFound if pdftotext is not in PATH.
func CheckAvailable() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions returns platform-specific install help.
func InstallInstructions() string {
	return `pdftotext is required to read PDF files.

Install poppler:
  macOS:   brew install poppler
  Ubuntu:  sudo apt install poppler-utils
  Fedora:  sudo dnf install poppler-utils
  Windows: choco install poppler`
}

// Open extracts the text of every page of the PDF at path.
func (e *Extractor) Open(ctx context.Context, path string) (driven.PageReader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrExtraction)
	}
	if e.checkTool {
		if err := CheckAvailable(); err != nil {
			return nil, err
		}
	}

	out, err := e.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed on %s: %v: %w", path, err, domain.ErrExtraction)
	}
	return newPageReader(string(out)), nil
}

// pageReader iterates the non-blank pages of extracted text.
type pageReader struct {
	pages   []string
	idx     int
	current int
	err     error
	closed  bool
}

func newPageReader(text string) *pageReader {
	pages := strings.Split(text, pageBreak)
	// pdftotext terminates every page, including the last.
	if n := len(pages); n > 0 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return &pageReader{pages: pages}
}

// Next advances to the next non-blank page.
func (r *pageReader) Next() bool {
	if r.closed {
		r.err = errors.New("page reader is closed")
		return false
	}
	for r.idx < len(r.pages) {
		r.idx++
		if strings.TrimSpace(r.pages[r.idx-1]) != "" {
			r.current = r.idx
			return true
		}
	}
	return false
}

// Number returns the 1-based number of the current page.
func (r *pageReader) Number() int {
	return r.current
}

// Text returns the text of the current page.
func (r *pageReader) Text() string {
	if r.current == 0 {
		return ""
	}
	return r.pages[r.current-1]
}

// NumPages returns the page count including blank pages.
func (r *pageReader) NumPages() int {
	return len(r.pages)
}

// Err returns the first error encountered.
func (r *pageReader) Err() error {
	return r.err
}

// Close releases the extracted text.
func (r *pageReader) Close() error {
	r.closed = true
	r.pages = nil
	return nil
}
