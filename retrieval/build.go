// ABOUTME: Offline index builder: walks a corpus directory of example source files and ingests overlapping chunks.
// ABOUTME: Chunks are embedded in bounded-concurrency batches via errgroup before insertion.

package retrieval

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BuildOptions controls corpus ingestion.
type BuildOptions struct {
	ChunkSize    int      // characters per chunk (default 1500)
	ChunkOverlap int      // characters shared between adjacent chunks (default 200)
	BatchSize    int      // documents per embedding call (default 64)
	MaxParallel  int      // concurrent embedding batches (default 4)
	Suffixes     []string // file suffixes to ingest (default .py, .md, .txt)
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 1500
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		o.ChunkOverlap = 200
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 64
	}
	if o.MaxParallel <= 0 {
		o.MaxParallel = 4
	}
	if len(o.Suffixes) == 0 {
		o.Suffixes = []string{".py", ".md", ".txt"}
	}
	return o
}

func (o BuildOptions) wants(path string) bool {
	for _, suffix := range o.Suffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// BuildFromDir ingests corpus files under dir into the index: code examples
// plus prose documentation, per the suffix list. Files shorter than 50
// characters are skipped as noise. Returns the number of chunks added.
func BuildFromDir(ctx context.Context, ix *Index, dir string, opts BuildOptions) (int, error) {
	opts = opts.withDefaults()

	var docs []Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !opts.wants(path) {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			log.Printf("[retrieval] skipping unreadable file %s: %v", path, readErr)
			return nil
		}
		content := string(data)
		if len(strings.TrimSpace(content)) < 50 {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}
		for _, chunk := range chunkText(content, opts.ChunkSize, opts.ChunkOverlap) {
			docs = append(docs, Document{Content: chunk, Source: rel})
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk corpus dir: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	// Embed and insert batch-by-batch so one huge corpus does not become one
	// huge API call. Insertion order across batches is irrelevant.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxParallel)

	var mu sync.Mutex
	added := 0
	for start := 0; start < len(docs); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(docs))
		batch := docs[start:end]
		g.Go(func() error {
			if err := ix.Add(gctx, batch); err != nil {
				return err
			}
			mu.Lock()
			added += len(batch)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return added, err
	}

	log.Printf("[retrieval] indexed %d chunks from %s", added, dir)
	return added, nil
}

// chunkText splits text into chunks of at most size characters with the given
// overlap between neighbors.
func chunkText(text string, size, overlap int) []string {
	if len(text) <= size {
		return []string{text}
	}
	var chunks []string
	step := size - overlap
	for start := 0; start < len(text); start += step {
		end := min(start+size, len(text))
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}
	return chunks
}
