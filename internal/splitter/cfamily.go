package splitter

import (
	"regexp"
	"strings"

	"github.com/dshills/codeindexer/pkg/types"
)

// splitCFamily scans brace-delimited source (Java, TypeScript, C#, ...) and
// returns chunkable node spans: top-level classes and interfaces, their
// direct methods and constructors, and top-level functions. The scanner
// tracks comment and string state so braces inside literals never count, and
// classifies each block by the statement header accumulated since the last
// `;`, `{`, or `}`.
func splitCFamily(lines []string, language string) []node {
	sc := &cfScanner{language: language}

	for i, line := range lines {
		sc.scanLine(line, i+1)
	}

	// Unbalanced braces at EOF: close whatever is still open at the last line.
	for len(sc.stack) > 0 {
		sc.close(len(lines))
	}

	return sc.nodes
}

type cfFrame struct {
	kind      types.NodeType
	name      string
	startLine int
	openDepth int
	inClass   bool
}

type cfScanner struct {
	language string

	inBlock  bool // inside /* ... */
	strQuote byte // 0, '\'', '"', or '`'

	depth  int
	stack  []cfFrame
	nodes  []node
	header strings.Builder
	hdrLn  int // line where the current header began; 0 = unset
}

var (
	cfClassRe = regexp.MustCompile(`(?:^|[\s})])(class|interface|enum|record|trait|object|struct)\s+([A-Za-z_$][\w$]*)`)
	cfFuncRe  = regexp.MustCompile(`\b(?:function|fun|def)\b\s*\*?\s*([A-Za-z_$][\w$]*)?\s*\(`)
	cfArrowRe = regexp.MustCompile(`\b(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=.*=>\s*$`)
	cfCallRe  = regexp.MustCompile(`([A-Za-z_$][\w$]*)\s*\([^()]*(?:\([^()]*\)[^()]*)*\)[^={;]*$`)
	cfNewRe   = regexp.MustCompile(`\bnew\s+[A-Za-z_$][\w$<>.]*\s*\([^()]*\)\s*$`)
)

var cfControlKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "new": true, "do": true, "else": true, "try": true,
	"synchronized": true, "using": true, "lock": true, "foreach": true,
}

func (s *cfScanner) scanLine(line string, ln int) {
	inLineComment := false

	for i := 0; i < len(line); i++ {
		ch := line[i]

		switch {
		case inLineComment:
			// Skip to end of line.

		case s.inBlock:
			if ch == '*' && i+1 < len(line) && line[i+1] == '/' {
				s.inBlock = false
				i++
			}

		case s.strQuote != 0:
			if ch == '\\' {
				i++
			} else if ch == s.strQuote {
				s.strQuote = 0
			}

		case ch == '/' && i+1 < len(line) && line[i+1] == '/':
			inLineComment = true
			i++

		case ch == '/' && i+1 < len(line) && line[i+1] == '*':
			s.inBlock = true
			i++

		case ch == '\'' || ch == '"' || (ch == '`' && s.isScriptLanguage()):
			s.strQuote = ch

		case ch == '{':
			s.open(ln)
			s.depth++
			s.resetHeader()

		case ch == '}':
			if s.depth > 0 {
				s.depth--
			}
			if len(s.stack) > 0 && s.stack[len(s.stack)-1].openDepth == s.depth {
				s.close(ln)
			}
			s.resetHeader()

		case ch == ';':
			s.resetHeader()

		default:
			if s.hdrLn == 0 && ch != ' ' && ch != '\t' {
				s.hdrLn = ln
			}
			s.header.WriteByte(ch)
		}
	}

	// Keep multi-line headers readable for the regexes.
	if s.header.Len() > 0 {
		s.header.WriteByte(' ')
	}
}

func (s *cfScanner) isScriptLanguage() bool {
	return s.language == "javascript" || s.language == "typescript"
}

func (s *cfScanner) resetHeader() {
	s.header.Reset()
	s.hdrLn = 0
}

// open classifies the block being opened by the accumulated header and pushes
// a frame for it.
func (s *cfScanner) open(ln int) {
	header := strings.TrimSpace(s.header.String())
	start := s.hdrLn
	if start == 0 {
		start = ln
	}

	frame := cfFrame{startLine: start, openDepth: s.depth}
	if top := s.top(); top != nil {
		frame.inClass = top.kind == types.NodeClass || top.kind == types.NodeInterface
	}

	if m := cfClassRe.FindStringSubmatch(header); m != nil && s.depth == 0 {
		switch m[1] {
		case "interface", "trait":
			frame.kind = types.NodeInterface
		default:
			frame.kind = types.NodeClass
		}
		frame.name = m[2]
	} else if m := cfFuncRe.FindStringSubmatch(header); m != nil {
		frame.kind = types.NodeMethod
		frame.name = m[1]
	} else if m := cfArrowRe.FindStringSubmatch(header); m != nil {
		frame.kind = types.NodeMethod
		frame.name = m[1]
	} else if m := cfCallRe.FindStringSubmatch(header); m != nil && !cfControlKeywords[m[1]] && !cfNewRe.MatchString(header) {
		frame.kind = types.NodeMethod
		frame.name = m[1]
	}

	if frame.kind == types.NodeMethod {
		if cls := s.enclosingClass(); cls != nil && (frame.name == cls.name || frame.name == "constructor") {
			frame.kind = types.NodeConstructor
		}
	}

	s.stack = append(s.stack, frame)
}

// close pops the top frame and records it as a node when it is a chunkable
// declaration at a chunkable position: classes and interfaces at the top
// level, methods directly inside them, and free functions at the top level.
func (s *cfScanner) close(endLine int) {
	frame := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]

	switch frame.kind {
	case types.NodeClass, types.NodeInterface:
		if frame.openDepth == 0 {
			s.record(frame, endLine)
		}
	case types.NodeMethod, types.NodeConstructor:
		if frame.inClass || frame.openDepth == 0 {
			s.record(frame, endLine)
		}
	}
}

func (s *cfScanner) record(frame cfFrame, endLine int) {
	s.nodes = append(s.nodes, node{
		startLine: frame.startLine,
		endLine:   endLine,
		nodeType:  frame.kind,
		nodeName:  frame.name,
	})
}

func (s *cfScanner) top() *cfFrame {
	if len(s.stack) == 0 {
		return nil
	}
	return &s.stack[len(s.stack)-1]
}

func (s *cfScanner) enclosingClass() *cfFrame {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i].kind == types.NodeClass || s.stack[i].kind == types.NodeInterface {
			return &s.stack[i]
		}
	}
	return nil
}
