package splitter

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/codeindexer/pkg/types"
)

const (
	// DefaultChunkSize is the window-fallback maximum chunk size in characters.
	DefaultChunkSize = 2500

	// DefaultChunkOverlap is the window-fallback overlap in characters.
	DefaultChunkOverlap = 300
)

// Options configures the splitter.
type Options struct {
	ChunkSize    int // max characters per window-fallback chunk
	ChunkOverlap int // overlap characters between consecutive fallback chunks
	MaxNodeChars int // subdivide AST nodes larger than this; 0 disables
}

// Splitter carves source files into bounded, leading-comment-preserving
// chunks. Files in a language with a registered grammar are split along AST
// node boundaries; everything else goes through the line-window fallback.
type Splitter struct {
	opts   Options
	logger *zap.Logger
}

// New creates a Splitter. A nil logger is replaced with a no-op logger.
func New(opts Options, logger *zap.Logger) *Splitter {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}
	if opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = opts.ChunkSize / 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Splitter{opts: opts, logger: logger}
}

// Split parses source with a grammar appropriate to language and emits chunks
// in ascending start-line order. AST chunks do not overlap, except that a
// container and a member declared on the same physical line share that line;
// window-fallback chunks repeat up to ChunkOverlap characters of whole lines
// from the previous window. A file with no recognized nodes, an unknown language, or a
// fatal parse error falls back to the window splitter. An empty file yields
// no chunks.
func (s *Splitter) Split(source, language, filePath string) []types.CodeChunk {
	if strings.TrimSpace(source) == "" {
		return nil
	}

	lines := strings.Split(source, "\n")

	var nodes []node
	switch {
	case language == "go":
		var err error
		nodes, err = splitGo(source, filePath)
		if err != nil {
			s.logger.Debug("go parse failed, using window fallback",
				zap.String("file", filePath), zap.Error(err))
			nodes = nil
		}
	case isCFamily(language):
		nodes = splitCFamily(lines, language)
	}

	if len(nodes) == 0 {
		return s.windowChunks(lines, language, filePath)
	}

	return s.emit(nodes, lines, language, filePath)
}

// node is a chunkable AST node span with 1-based inclusive line numbers.
type node struct {
	startLine int
	endLine   int
	nodeType  types.NodeType
	nodeName  string
}

// emit orders nodes, attaches leading comments, trims container spans so a
// class chunk stops before its first method chunk, subdivides oversized
// nodes, and materializes chunk contents.
func (s *Splitter) emit(nodes []node, lines []string, language, filePath string) []types.CodeChunk {
	sortNodes(nodes)

	valid := nodes[:0]
	for _, n := range nodes {
		if n.startLine >= 1 && n.endLine <= len(lines) && n.startLine <= n.endLine {
			valid = append(valid, n)
		}
	}
	nodes = valid

	// Pass 1: leading-comment extension. The floor keeps the scan below any
	// line an earlier node covers or has already claimed as its comment
	// block, so a block is attributed to at most one chunk: the immediately
	// following one.
	starts := make([]int, len(nodes))
	for i, n := range nodes {
		floor := 0
		for j := 0; j < i; j++ {
			limit := nodes[j].startLine - 1
			if nodes[j].endLine < n.startLine {
				limit = nodes[j].endLine
			}
			if limit > floor {
				floor = limit
			}
		}
		start := extendLeadingComments(lines, n.startLine, floor)
		if start > n.startLine {
			start = n.startLine
		}
		starts[i] = start
	}

	// Pass 2: a container node (a class holding method nodes) is truncated to
	// end before its first contained chunk, so method bodies are not
	// duplicated inside the class chunk. When the container and its first
	// member share a physical line the full span is kept.
	ends := make([]int, len(nodes))
	for i, n := range nodes {
		ends[i] = n.endLine
		if i+1 < len(nodes) && n.endLine >= nodes[i+1].endLine && n.endLine >= starts[i+1] {
			if trimmed := starts[i+1] - 1; trimmed >= n.startLine {
				ends[i] = trimmed
			}
		}
	}

	chunks := make([]types.CodeChunk, 0, len(nodes))
	for i, n := range nodes {
		start, end := starts[i], ends[i]
		content := strings.Join(lines[start-1:end], "\n")

		if s.opts.MaxNodeChars > 0 && len(content) > s.opts.MaxNodeChars {
			chunks = append(chunks, s.subdivide(lines, start, end, n, language, filePath)...)
			continue
		}

		chunks = append(chunks, types.CodeChunk{
			Content:   content,
			Language:  language,
			FilePath:  filePath,
			StartLine: start,
			EndLine:   end,
			NodeType:  n.nodeType,
			NodeName:  n.nodeName,
		})
	}

	return chunks
}

// subdivide applies the window rules to an oversized node. The node's opening
// line (after comment extension) is preserved as the first sub-chunk's start.
func (s *Splitter) subdivide(lines []string, start, end int, n node, language, filePath string) []types.CodeChunk {
	spans := windowSpans(lines[start-1:end], s.opts.ChunkSize, s.opts.ChunkOverlap)

	chunks := make([]types.CodeChunk, 0, len(spans))
	for i, sp := range spans {
		chunkStart := start + sp.start - 1
		chunkEnd := start + sp.end - 1
		nodeType := n.nodeType
		nodeName := n.nodeName
		if i > 0 {
			// Continuation windows of a large node carry no node identity.
			nodeType = types.NodeUnknown
			nodeName = ""
		}
		chunks = append(chunks, types.CodeChunk{
			Content:   strings.Join(lines[chunkStart-1:chunkEnd], "\n"),
			Language:  language,
			FilePath:  filePath,
			StartLine: chunkStart,
			EndLine:   chunkEnd,
			NodeType:  nodeType,
			NodeName:  nodeName,
		})
	}
	return chunks
}

// windowChunks runs the plain line-window fallback over the whole file.
func (s *Splitter) windowChunks(lines []string, language, filePath string) []types.CodeChunk {
	spans := windowSpans(lines, s.opts.ChunkSize, s.opts.ChunkOverlap)

	chunks := make([]types.CodeChunk, 0, len(spans))
	for _, sp := range spans {
		content := strings.Join(lines[sp.start-1:sp.end], "\n")
		if strings.TrimSpace(content) == "" {
			continue
		}
		chunks = append(chunks, types.CodeChunk{
			Content:   content,
			Language:  language,
			FilePath:  filePath,
			StartLine: sp.start,
			EndLine:   sp.end,
		})
	}
	return chunks
}

func sortNodes(nodes []node) {
	// Insertion sort keeps emission stable for equal start lines (outer node
	// first, so a class precedes its same-line members).
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && less(nodes[j], nodes[j-1]); j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
}

func less(a, b node) bool {
	if a.startLine != b.startLine {
		return a.startLine < b.startLine
	}
	if a.endLine != b.endLine {
		return a.endLine > b.endLine
	}
	// Containers before members when an entire declaration shares one line.
	return nodeRank(a.nodeType) < nodeRank(b.nodeType)
}

func nodeRank(t types.NodeType) int {
	switch t {
	case types.NodeClass, types.NodeInterface:
		return 0
	case types.NodeConstructor, types.NodeMethod:
		return 1
	default:
		return 2
	}
}

var cFamilyLanguages = map[string]bool{
	"java":       true,
	"javascript": true,
	"typescript": true,
	"c":          true,
	"cpp":        true,
	"csharp":     true,
	"kotlin":     true,
	"scala":      true,
}

func isCFamily(language string) bool {
	return cFamilyLanguages[language]
}

var extensionLanguages = map[string]string{
	".go":    "go",
	".java":  "java",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".cxx":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".kt":    "kotlin",
	".kts":   "kotlin",
	".scala": "scala",
	".py":    "python",
	".rb":    "ruby",
	".rs":    "rust",
	".php":   "php",
	".swift": "swift",
	".m":     "objc",
	".md":    "markdown",
	".txt":   "text",
}

// LanguageForExtension maps a dotted, case-insensitive file extension to a
// language tag. Unknown extensions map to "" and take the window fallback.
func LanguageForExtension(ext string) string {
	return extensionLanguages[strings.ToLower(ext)]
}

// LanguageForPath maps a file path to a language tag via its extension.
func LanguageForPath(path string) string {
	return LanguageForExtension(filepath.Ext(path))
}
