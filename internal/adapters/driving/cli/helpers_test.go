package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/SWHsz/LocalKnowledge/internal/app"
	"github.com/SWHsz/LocalKnowledge/internal/core/domain"
	"github.com/SWHsz/LocalKnowledge/internal/core/ports/driven"
)

// keywordEmbedding maps text onto fixed axes so similarity is predictable.
type keywordEmbedding struct{}

func (keywordEmbedding) Embed(_ context.Context, text string) ([]float32, error) {
	text = strings.ToLower(text)
	v := []float32{0, 0, 0.01}
	if strings.Contains(text, "attention") {
		v[0] = 1
	}
	if strings.Contains(text, "bert") {
		v[1] = 1
	}
	return v, nil
}

func (e keywordEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func (keywordEmbedding) Dimensions() int              { return 3 }
func (keywordEmbedding) ModelName() string            { return "keyword" }
func (keywordEmbedding) Ping(_ context.Context) error { return nil }
func (keywordEmbedding) Close() error                 { return nil }

// cannedLLM answers every prompt with the same text.
type cannedLLM struct{ text string }

func (l cannedLLM) Chat(_ context.Context, _ []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	return l.text, nil
}

func (cannedLLM) ModelName() string            { return "canned" }
func (cannedLLM) Ping(_ context.Context) error { return nil }
func (cannedLLM) Close() error                 { return nil }

// textExtractor reads each file's content as a single page.
type textExtractor struct{}

func (textExtractor) Open(_ context.Context, path string) (driven.PageReader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &singlePage{text: string(data)}, nil
}

type singlePage struct {
	text string
	done bool
}

func (p *singlePage) Next() bool {
	if p.done {
		return false
	}
	p.done = true
	return true
}

func (p *singlePage) Number() int   { return 1 }
func (p *singlePage) Text() string  { return p.text }
func (p *singlePage) NumPages() int { return 1 }
func (p *singlePage) Err() error    { return nil }
func (p *singlePage) Close() error  { return nil }

var (
	_ driven.EmbeddingService = keywordEmbedding{}
	_ driven.LLMService       = cannedLLM{}
	_ driven.PageExtractor    = textExtractor{}
)

// testLibrary is a temporary library with two papers.
type testLibrary struct {
	cfg *domain.Config
	llm driven.LLMService
}

func newTestLibrary(t *testing.T) *testLibrary {
	t.Helper()
	root := t.TempDir()
	storage := filepath.Join(root, "storage")
	for path, text := range map[string]string{
		"AAAA1111/Vaswani - 2017 - Attention Is All You Need.pdf": "Self attention relates all positions.",
		"BBBB2222/Devlin - 2019 - BERT.pdf":                       "BERT pre-trains deep bidirectional encoders.",
	} {
		full := filepath.Join(storage, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(text), 0o600))
	}

	cfg := &domain.Config{
		Zotero: domain.ZoteroConfig{StorageDir: storage},
		Paths: domain.PathsConfig{
			CacheDir: filepath.Join(root, "cache"),
			VectorDB: filepath.Join(root, "vectors"),
		},
		RAG: domain.RAGConfig{SimilarityThreshold: 0.9},
	}
	cfg.ApplyDefaults()

	return &testLibrary{
		cfg: cfg,
		llm: cannedLLM{text: "Self-attention relates positions [1]."},
	}
}

// install routes openSession to the library for the duration of the test.
func (l *testLibrary) install(t *testing.T) {
	t.Helper()
	original := openSession
	openSession = func(_ *cobra.Command, opts ...app.Option) (*app.Session, error) {
		opts = append(opts,
			app.WithBackends(keywordEmbedding{}, l.llm),
			app.WithExtractor(textExtractor{}),
			app.WithDatabaseLocator(func() (string, bool) { return "", false }),
		)
		return app.NewSession(l.cfg, opts...)
	}
	t.Cleanup(func() { openSession = original })
}

// run executes the root command with args and returns stdout and stderr.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	errOut := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetOut(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// indexed installs a library and indexes it once.
func indexed(t *testing.T) *testLibrary {
	t.Helper()
	lib := newTestLibrary(t)
	lib.install(t)
	_, _, err := run(t, "", "index")
	require.NoError(t, err)
	return lib
}
