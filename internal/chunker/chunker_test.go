package chunker_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lore/internal/chunker"
	"lore/internal/chunker/languages"
)

func newGoChunker() *chunker.ASTChunker {
	reg := chunker.NewRegistry()
	languages.RegisterGo(reg)
	return chunker.NewASTChunker(reg)
}

const goSource = `package sample

// Add returns the sum of a and b.
// It never overflows in tests.
func Add(a, b int) int {
	return a + b
}

type Counter struct {
	n int
}

func (c *Counter) Inc() {
	c.n++
}
`

func TestChunkGoSource(t *testing.T) {
	c := newGoChunker()

	chunks, err := c.Chunk("sample/math.go", []byte(goSource))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	add := chunks[0]
	assert.Equal(t, "Add", add.Name)
	assert.Equal(t, chunker.KindFunction, add.Kind)
	assert.Equal(t, "sample/math.go", add.FilePath)
	assert.Equal(t, 5, add.StartLine)
	assert.Equal(t, 7, add.EndLine)
	assert.Contains(t, add.Content, "func Add(a, b int) int")
	assert.Equal(t, "Add returns the sum of a and b.\nIt never overflows in tests.", add.Docstring)

	counter := chunks[1]
	assert.Equal(t, "Counter", counter.Name)
	assert.Equal(t, chunker.KindClass, counter.Kind)
	assert.Empty(t, counter.Docstring)

	inc := chunks[2]
	assert.Equal(t, "Inc", inc.Name)
	assert.Equal(t, chunker.KindFunction, inc.Kind)
}

func TestChunkIDFormat(t *testing.T) {
	c := chunker.CodeChunk{FilePath: "a.py", StartLine: 1, EndLine: 10}
	assert.Equal(t, "a.py:1-10", c.ID())
}

func TestChunkUnknownExtension(t *testing.T) {
	c := newGoChunker()
	chunks, err := c.Chunk("README.md", []byte("# hello"))
	require.NoError(t, err)
	assert.Nil(t, chunks)
}

func TestOversizedChunkWithLongLinesStaysUnderCap(t *testing.T) {
	c := newGoChunker()

	// A function body of 60 lines, each ~500 bytes: 40-line windows alone
	// would still be ~20 KB, so splitting must close windows by bytes.
	var b strings.Builder
	b.WriteString("package sample\n\nfunc Minified() {\n")
	long := strings.Repeat("x", 490)
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "\t_ = %q // %d\n", long, i)
	}
	b.WriteString("}\n")

	chunks, err := c.Chunk("sample/min.go", []byte(b.String()))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1, "oversized function must be split")

	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 8192, "chunk %s exceeds the byte cap", ch.ID())
		assert.Equal(t, "Minified", ch.Name)
	}
}

func TestRegistryExtensions(t *testing.T) {
	reg := chunker.NewRegistry()
	languages.RegisterGo(reg)
	languages.RegisterPython(reg)

	exts := reg.Extensions()
	assert.True(t, exts["go"])
	assert.True(t, exts["py"])
	assert.False(t, exts["rs"])

	assert.Equal(t, "python", reg.LanguageName("pkg/mod.py"))
	assert.Equal(t, "", reg.LanguageName("pkg/mod.rs"))
}
