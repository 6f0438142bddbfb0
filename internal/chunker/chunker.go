// Package chunker extracts semantic code chunks from source files using
// tree-sitter grammars.
package chunker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

const maxChunkBytes = 8192

// ChunkKind classifies a code chunk.
type ChunkKind string

const (
	KindFunction ChunkKind = "function"
	KindClass    ChunkKind = "class"
	KindModule   ChunkKind = "module"
	KindOther    ChunkKind = "other"
)

// CodeChunk is a contiguous unit of source code with location metadata.
// Chunks are immutable once created and consumed by the summarizer.
type CodeChunk struct {
	FilePath  string
	StartLine int
	EndLine   int
	Kind      ChunkKind
	Name      string
	Content   string
	Docstring string
}

// ID returns the deterministic identifier for the chunk, used as the
// vector-store record id so re-indexing overwrites instead of duplicating.
func (c CodeChunk) ID() string {
	return fmt.Sprintf("%s:%d-%d", c.FilePath, c.StartLine, c.EndLine)
}

// ASTChunker parses source files using tree-sitter and extracts semantic chunks.
type ASTChunker struct {
	registry *Registry
}

// NewASTChunker creates a chunker backed by the given registry.
func NewASTChunker(r *Registry) *ASTChunker {
	return &ASTChunker{registry: r}
}

// Chunk parses the source and returns semantic chunks. If no grammar is
// registered for the file, it returns nil.
func (c *ASTChunker) Chunk(path string, src []byte) ([]CodeChunk, error) {
	spec, _ := c.registry.Lookup(path)
	if spec == nil {
		return nil, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(spec.Language)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	q, err := sitter.NewQuery([]byte(spec.Query), spec.Language)
	if err != nil {
		return nil, fmt.Errorf("compile query for %s: %w", path, err)
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	var captures []capture
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var chunkNode *sitter.Node
		var nameStr string
		for _, cap := range m.Captures {
			capName := q.CaptureNameForId(cap.Index)
			switch capName {
			case "chunk":
				chunkNode = cap.Node
			case "name":
				nameStr = cap.Node.Content(src)
			}
		}
		if chunkNode == nil {
			continue
		}
		captures = append(captures, capture{
			name:      nameStr,
			kind:      spec.KindOf(chunkNode.Type()),
			startLine: int(chunkNode.StartPoint().Row) + 1,
			endLine:   int(chunkNode.EndPoint().Row) + 1,
			startByte: chunkNode.StartByte(),
			endByte:   chunkNode.EndByte(),
		})
	}

	// Deduplicate: when captures overlap, keep only the outer (larger) node.
	captures = dedup(captures)

	lines := strings.Split(string(src), "\n")
	var chunks []CodeChunk
	for _, cap := range captures {
		content := sliceLines(lines, cap.startLine, cap.endLine)
		doc := extractDocstring(lines, cap.startLine, spec.CommentPrefix)

		if len(content) > maxChunkBytes {
			chunks = append(chunks, splitOversized(path, content, cap, doc)...)
		} else {
			chunks = append(chunks, CodeChunk{
				FilePath:  path,
				StartLine: cap.startLine,
				EndLine:   cap.endLine,
				Kind:      cap.kind,
				Name:      cap.name,
				Content:   content,
				Docstring: doc,
			})
		}
	}

	return chunks, nil
}

// dedup removes captures that are fully contained within a larger capture.
func dedup(caps []capture) []capture {
	if len(caps) <= 1 {
		return caps
	}
	// Sort by start byte ascending, then by size descending (larger first).
	sort.Slice(caps, func(i, j int) bool {
		if caps[i].startByte != caps[j].startByte {
			return caps[i].startByte < caps[j].startByte
		}
		return (caps[i].endByte - caps[i].startByte) > (caps[j].endByte - caps[j].startByte)
	})

	var result []capture
	var lastEnd uint32
	for _, c := range caps {
		if c.startByte >= lastEnd || lastEnd == 0 {
			result = append(result, c)
			if c.endByte > lastEnd {
				lastEnd = c.endByte
			}
		}
		// Skip captures contained within the previous one.
	}
	return result
}

// sliceLines returns the 1-indexed inclusive line range joined back together.
func sliceLines(lines []string, startLine, endLine int) string {
	start := startLine - 1
	end := endLine
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n")
}

// extractDocstring collects the contiguous comment block immediately above
// the definition, stripped of comment markers.
func extractDocstring(lines []string, startLine int, commentPrefix string) string {
	if commentPrefix == "" {
		return ""
	}
	var doc []string
	for i := startLine - 2; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, commentPrefix) {
			break
		}
		text := strings.TrimSpace(strings.TrimPrefix(trimmed, commentPrefix))
		doc = append([]string{text}, doc...)
	}
	return strings.Join(doc, "\n")
}

// splitOversized splits a chunk that exceeds maxChunkBytes into smaller
// pieces at line boundaries with 10-line overlap. Windows close when they
// reach maxChunkBytes or maxWindowLines, whichever comes first, so long
// lines (minified sources) cannot blow the byte cap. A single line longer
// than maxChunkBytes becomes its own piece; lines are never cut.
func splitOversized(path, content string, cap capture, doc string) []CodeChunk {
	lines := strings.Split(content, "\n")
	const maxWindowLines = 40
	const overlap = 10

	var chunks []CodeChunk
	for i := 0; i < len(lines); {
		end := i
		size := 0
		for end < len(lines) && end-i < maxWindowLines {
			lineSize := len(lines[end]) + 1
			if end > i && size+lineSize > maxChunkBytes {
				break
			}
			size += lineSize
			end++
		}
		chunks = append(chunks, CodeChunk{
			FilePath:  path,
			StartLine: cap.startLine + i,
			EndLine:   cap.startLine + end - 1,
			Kind:      cap.kind,
			Name:      cap.name,
			Content:   strings.Join(lines[i:end], "\n"),
			Docstring: doc,
		})
		if end >= len(lines) {
			break
		}
		// Overlap only when the window is large enough to afford it.
		advance := end - i - overlap
		if advance < 1 {
			advance = end - i
		}
		i += advance
	}
	return chunks
}

type capture struct {
	name      string
	kind      ChunkKind
	startLine int
	endLine   int
	startByte uint32
	endByte   uint32
}
