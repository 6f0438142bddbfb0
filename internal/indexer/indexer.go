// Package indexer orchestrates the indexing pipeline: walk the source tree,
// chunk each file, then summarize and store the chunks.
package indexer

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"lore/internal/chunker"
	"lore/internal/chunker/languages"
	"lore/internal/summarizer"
	"lore/internal/walker"
)

// Stats summarizes an indexing run.
type Stats struct {
	FilesScanned int
	ChunksFound  int
	ChunksStored int
}

// Indexer walks a codebase and feeds its chunks to the summarizer.
type Indexer struct {
	chunker    *chunker.ASTChunker
	registry   *chunker.Registry
	summarizer *summarizer.Summarizer
	logger     *zap.Logger
}

// New creates an Indexer with all supported language grammars registered.
func New(sum *summarizer.Summarizer, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := chunker.NewRegistry()
	languages.RegisterGo(reg)
	languages.RegisterJavaScript(reg)
	languages.RegisterTypeScript(reg)
	languages.RegisterPython(reg)

	return &Indexer{
		chunker:    chunker.NewASTChunker(reg),
		registry:   reg,
		summarizer: sum,
		logger:     logger,
	}
}

// Index walks the tree rooted at root, chunks every supported source file,
// and stores summarized chunks. Files that fail to read or parse are logged
// and skipped so one bad file never aborts the run.
func (idx *Indexer) Index(ctx context.Context, root string, onProgress summarizer.ProgressFunc) (*Stats, error) {
	stats := &Stats{}
	files, err := walker.Walk(ctx, root, idx.registry.Extensions())
	if err != nil {
		return stats, fmt.Errorf("walk %s: %w", root, err)
	}

	var chunks []chunker.CodeChunk
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.FilesScanned++

		src, err := os.ReadFile(f.Path)
		if err != nil {
			idx.logger.Warn("skipping unreadable file", zap.String("path", f.RelPath), zap.Error(err))
			continue
		}

		fileChunks, err := idx.chunker.Chunk(f.RelPath, src)
		if err != nil {
			idx.logger.Warn("skipping unparseable file", zap.String("path", f.RelPath), zap.Error(err))
			continue
		}
		chunks = append(chunks, fileChunks...)
	}
	stats.ChunksFound = len(chunks)

	stored, err := idx.summarizer.ProcessChunks(ctx, chunks, onProgress)
	stats.ChunksStored = stored
	if err != nil {
		return stats, err
	}

	idx.logger.Info("indexing complete",
		zap.Int("files", stats.FilesScanned),
		zap.Int("chunks", stats.ChunksFound),
		zap.Int("stored", stats.ChunksStored),
	)
	return stats, nil
}
