package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindexer/pkg/types"
)

func newTestSplitter() *Splitter {
	return New(Options{ChunkSize: 200, ChunkOverlap: 40}, nil)
}

func TestSplit_EmptyFile(t *testing.T) {
	s := newTestSplitter()

	assert.Empty(t, s.Split("", "go", "empty.go"))
	assert.Empty(t, s.Split("   \n\t\n", "go", "blank.go"))
}

func TestSplit_GoFunctionsAndTypes(t *testing.T) {
	source := `package server

import "net/http"

// Handler serves requests.
type Handler struct {
	mux *http.ServeMux
}

// Greeter says hello.
type Greeter interface {
	Greet(name string) string
}

// Serve starts the handler.
func (h *Handler) Serve(addr string) error {
	return http.ListenAndServe(addr, h.mux)
}

func helper() int {
	return 42
}
`
	s := newTestSplitter()
	chunks := s.Split(source, "go", "server.go")
	require.Len(t, chunks, 4)

	byName := map[string]types.CodeChunk{}
	for _, c := range chunks {
		byName[c.NodeName] = c
	}

	handler := byName["Handler"]
	assert.Equal(t, types.NodeClass, handler.NodeType)
	assert.Contains(t, handler.Content, "// Handler serves requests.")
	assert.Contains(t, handler.Content, "mux *http.ServeMux")

	greeter := byName["Greeter"]
	assert.Equal(t, types.NodeInterface, greeter.NodeType)

	serve := byName["Serve"]
	assert.Equal(t, types.NodeMethod, serve.NodeType)
	assert.Contains(t, serve.Content, "// Serve starts the handler.")

	assert.Equal(t, types.NodeMethod, byName["helper"].NodeType)
}

func TestSplit_ChunksAreOrderedAndValid(t *testing.T) {
	source := `package x

// A doc
func A() {}

// B doc
func B() {}
`
	s := newTestSplitter()
	chunks := s.Split(source, "go", "x.go")
	require.Len(t, chunks, 2)

	prevEnd := 0
	for _, c := range chunks {
		require.NoError(t, c.Validate())
		require.NoError(t, c.ValidateNodeType())
		assert.Greater(t, c.StartLine, prevEnd, "chunks must not overlap")
		prevEnd = c.EndLine
	}
}

func TestSplit_LeadingCommentAttribution(t *testing.T) {
	source := `package x

func first() {}

// belongs to second
// still belongs to second
func second() {}
`
	s := newTestSplitter()
	chunks := s.Split(source, "go", "x.go")
	require.Len(t, chunks, 2)

	assert.NotContains(t, chunks[0].Content, "belongs to second")
	assert.True(t, strings.HasPrefix(chunks[1].Content, "// belongs to second"))
	assert.Equal(t, 5, chunks[1].StartLine)
}

func TestSplit_JavaClassWithDocComment(t *testing.T) {
	source := "/** doc */\npublic class A { void m() {} }"

	s := newTestSplitter()
	chunks := s.Split(source, "java", "A.java")
	require.Len(t, chunks, 2)

	class := chunks[0]
	assert.Equal(t, types.NodeClass, class.NodeType)
	assert.Equal(t, "A", class.NodeName)
	assert.Equal(t, 1, class.StartLine)
	assert.Contains(t, class.Content, "/** doc */")

	method := chunks[1]
	assert.Equal(t, types.NodeMethod, method.NodeType)
	assert.Equal(t, "m", method.NodeName)
	assert.Equal(t, 2, method.StartLine)
}

func TestSplit_JavaMethodsAreSiblings(t *testing.T) {
	source := `/**
 * Account service.
 */
public class AccountService {
    private final Repo repo;

    public AccountService(Repo repo) {
        this.repo = repo;
    }

    // Finds one account.
    public Account find(String id) {
        return repo.get(id);
    }
}
`
	s := newTestSplitter()
	chunks := s.Split(source, "java", "AccountService.java")
	require.Len(t, chunks, 3)

	class := chunks[0]
	assert.Equal(t, types.NodeClass, class.NodeType)
	assert.Equal(t, 1, class.StartLine, "class chunk captures its doc block")
	assert.NotContains(t, class.Content, "repo.get(id)", "method bodies stay out of the class chunk")

	ctor := chunks[1]
	assert.Equal(t, types.NodeConstructor, ctor.NodeType)
	assert.Equal(t, "AccountService", ctor.NodeName)

	find := chunks[2]
	assert.Equal(t, types.NodeMethod, find.NodeType)
	assert.Contains(t, find.Content, "// Finds one account.")
}

func TestSplit_TypeScriptFunctions(t *testing.T) {
	source := `// top-level helper
export function formatName(first: string, last: string): string {
  return first + " " + last;
}

export class Formatter {
  // instance method
  format(value: string): string {
    return value.trim();
  }
}
`
	s := newTestSplitter()
	chunks := s.Split(source, "typescript", "format.ts")
	require.Len(t, chunks, 3)

	assert.Equal(t, "formatName", chunks[0].NodeName)
	assert.Equal(t, 1, chunks[0].StartLine)

	assert.Equal(t, types.NodeClass, chunks[1].NodeType)
	assert.Equal(t, "Formatter", chunks[1].NodeName)

	assert.Equal(t, "format", chunks[2].NodeName)
	assert.Contains(t, chunks[2].Content, "// instance method")
}

func TestSplit_UnknownLanguageFallsBackToWindows(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("line of plain text content for the window splitter\n")
	}

	s := New(Options{ChunkSize: 300, ChunkOverlap: 60}, nil)
	chunks := s.Split(b.String(), "text", "notes.txt")
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 300)
		require.NoError(t, c.Validate())
	}

	// Consecutive chunks overlap by whole lines, bounded by the overlap.
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].StartLine, chunks[i-1].EndLine+1)
		assert.Greater(t, chunks[i].EndLine, chunks[i-1].EndLine)
	}
}

func TestSplit_BrokenGoFallsBackToWindows(t *testing.T) {
	source := "this is not go at all {{{ ]]]\nstill not go\n"

	s := newTestSplitter()
	chunks := s.Split(source, "go", "broken.go")
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Empty(t, c.NodeName)
	}
}

func TestWindowSpans_NeverSplitsInsideLine(t *testing.T) {
	lines := []string{strings.Repeat("x", 500), "short"}
	spans := windowSpans(lines, 100, 20)
	require.Len(t, spans, 2)
	assert.Equal(t, span{start: 1, end: 1}, spans[0])
	assert.Equal(t, span{start: 2, end: 2}, spans[1])
}

func TestExtendLeadingComments(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		start int
		floor int
		want  int
	}{
		{
			name:  "line comments",
			lines: []string{"// a", "// b", "func f() {}"},
			start: 3,
			want:  1,
		},
		{
			name:  "block comment",
			lines: []string{"/*", " * doc", " */", "func f() {}"},
			start: 4,
			want:  1,
		},
		{
			name:  "single line block",
			lines: []string{"/** doc */", "class A {}"},
			start: 2,
			want:  1,
		},
		{
			name:  "blank line terminates outside block",
			lines: []string{"// far away", "", "func f() {}"},
			start: 3,
			want:  3,
		},
		{
			name:  "stops at code",
			lines: []string{"var x = 1", "// doc", "func f() {}"},
			start: 3,
			want:  2,
		},
		{
			name:  "floor blocks extension",
			lines: []string{"// claimed", "func f() {}"},
			start: 2,
			floor: 1,
			want:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extendLeadingComments(tt.lines, tt.start, tt.floor)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLanguageForExtension(t *testing.T) {
	assert.Equal(t, "go", LanguageForExtension(".go"))
	assert.Equal(t, "java", LanguageForExtension(".JAVA"))
	assert.Equal(t, "typescript", LanguageForExtension(".tsx"))
	assert.Equal(t, "", LanguageForExtension(".xyz"))
	assert.Equal(t, "go", LanguageForPath("internal/server.go"))
}
