package pdf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error
	name   string
	args   []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.name = name
	m.args = args
	return m.output, m.err
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Vaswani - 2017 - Attention.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake pdf content"), 0600))
	return path
}

func collect(t *testing.T, r driven.PageReader) map[int]string {
	t.Helper()
	pages := make(map[int]string)
	for r.Next() {
		pages[r.Number()] = r.Text()
	}
	require.NoError(t, r.Err())
	return pages
}

func TestOpen_SplitsPages(t *testing.T) {
	runner := &mockRunner{output: []byte("Introduction\n\fMethods\n\fResults\n\f")}
	path := writePDF(t)

	r, err := NewWithRunner(runner).Open(context.Background(), path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, "pdftotext", runner.name)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", path, "-"}, runner.args)
	assert.Equal(t, 3, r.NumPages())
	assert.Equal(t, map[int]string{1: "Introduction\n", 2: "Methods\n", 3: "Results\n"}, collect(t, r))
}

func TestOpen_SkipsBlankPages(t *testing.T) {
	runner := &mockRunner{output: []byte("Title page\f   \n\t\fBody text\f\f")}

	r, err := NewWithRunner(runner).Open(context.Background(), writePDF(t))
	require.NoError(t, err)
	defer r.Close()

	pages := collect(t, r)
	assert.Equal(t, 4, r.NumPages())
	assert.Equal(t, map[int]string{1: "Title page", 3: "Body text"}, pages)
}

func TestOpen_EmptyOutput(t *testing.T) {
	r, err := NewWithRunner(&mockRunner{}).Open(context.Background(), writePDF(t))
	require.NoError(t, err)

	assert.False(t, r.Next())
	assert.Zero(t, r.NumPages())
	assert.Empty(t, r.Text())
}

func TestOpen_RunnerError(t *testing.T) {
	runner := &mockRunner{err: errors.New("pdftotext crashed")}

	_, err := NewWithRunner(runner).Open(context.Background(), writePDF(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtraction)
	assert.Contains(t, err.Error(), "pdftotext failed")
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := NewWithRunner(&mockRunner{}).Open(context.Background(), "/nonexistent/paper.pdf")
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestPageReader_Close(t *testing.T) {
	r := newPageReader("one\ftwo")
	require.NoError(t, r.Close())
	assert.False(t, r.Next())
	assert.Error(t, r.Err())
}

func TestInstallInstructions(t *testing.T) {
	instructions := InstallInstructions()
	assert.Contains(t, instructions, "pdftotext")
	assert.Contains(t, instructions, "brew install poppler")
	assert.Contains(t, instructions, "apt install poppler-utils")
}

func TestErrPDFToolNotFound(t *testing.T) {
	assert.Contains(t, ErrPDFToolNotFound.Error(), "pdftotext")
}

// Integration test - only runs if pdftotext is available.
func TestOpen_Integration(t *testing.T) {
	if err := CheckAvailable(); err != nil {
		t.Skip("pdftotext not available, skipping integration test")
	}
	_, err := New().Open(context.Background(), writePDF(t))
	assert.ErrorIs(t, err, domain.ErrExtraction, "garbage input must fail extraction")
}
