package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/orioncx/store"
)

// DefaultLoadConcurrency bounds the number of documents embedded at once.
const DefaultLoadConcurrency = 3

// DocumentWriter stores knowledge-base documents.
type DocumentWriter interface {
	CreateDocument(ctx context.Context, create *store.Document) (*store.Document, error)
}

// LoadEvent reports the outcome for one file.
type LoadEvent struct {
	File    string
	Chunks  int
	Skipped bool
	Err     error
}

// LoadResult summarizes a directory load.
type LoadResult struct {
	Files   int
	Chunks  int
	Skipped int
	Failed  int
}

// Loader ingests text documents into the knowledge base.
type Loader struct {
	embedder    Embedder
	writer      DocumentWriter
	model       string
	chunker     Chunker
	concurrency int

	// OnFile, if set, is called once per file. Calls are serialized.
	OnFile func(LoadEvent)
}

// NewLoader creates a loader that tags stored documents with model.
func NewLoader(embedder Embedder, writer DocumentWriter, model string) *Loader {
	return &Loader{
		embedder:    embedder,
		writer:      writer,
		model:       model,
		chunker:     Chunker{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap},
		concurrency: DefaultLoadConcurrency,
	}
}

// WithChunker overrides the chunking parameters.
func (l *Loader) WithChunker(c Chunker) *Loader {
	l.chunker = c
	return l
}

// WithConcurrency sets how many files are processed at once.
func (l *Loader) WithConcurrency(n int) *Loader {
	if n > 0 {
		l.concurrency = n
	}
	return l
}

// IsDocumentFile reports whether name is a loadable document.
func IsDocumentFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md":
		return true
	}
	return false
}

// LoadDirectory embeds and stores every .txt and .md file directly under dir.
// Empty files are skipped. A failing file does not stop the others; the
// first failure is returned after all files were attempted.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) (*LoadResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory %s", dir)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !IsDocumentFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	result := &LoadResult{Files: len(files)}
	var (
		mu       sync.Mutex
		firstErr error
	)
	report := func(ev LoadEvent) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case ev.Err != nil:
			result.Failed++
			if firstErr == nil {
				firstErr = ev.Err
			}
		case ev.Skipped:
			result.Skipped++
		default:
			result.Chunks += ev.Chunks
		}
		if l.OnFile != nil {
			l.OnFile(ev)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for _, path := range files {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			chunks, skipped, err := l.loadFile(gctx, path)
			report(LoadEvent{File: filepath.Base(path), Chunks: chunks, Skipped: skipped, Err: err})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, firstErr
}

func (l *Loader) loadFile(ctx context.Context, path string) (int, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, false, errors.Wrapf(err, "failed to read %s", path)
	}

	chunks := l.chunker.Split(string(raw))
	if len(chunks) == 0 {
		slog.Debug("skipping empty document", "file", path)
		return 0, true, nil
	}

	name := filepath.Base(path)
	for i, chunk := range chunks {
		embedding, err := l.embedder.Embedding(ctx, chunk)
		if err != nil {
			return i, false, errors.Wrapf(err, "failed to embed %s", name)
		}

		docName := name
		if len(chunks) > 1 {
			docName = fmt.Sprintf("%s#%d", name, i+1)
		}
		if _, err := l.writer.CreateDocument(ctx, &store.Document{
			Name:      docName,
			Content:   chunk,
			Embedding: embedding,
			Model:     l.model,
		}); err != nil {
			return i, false, errors.Wrapf(err, "failed to store %s", docName)
		}
	}
	return len(chunks), false, nil
}
