package splitter

import "strings"

// extendLeadingComments scans upward from the line above startLine (1-based)
// through contiguous comment lines and returns the new 1-based start line.
// Recognized forms are // line comments, /* ... */ and /** ... */ blocks, and
// their * continuation lines. A blank line continues the scan while inside a
// block comment and terminates it otherwise. The scan never goes at or below
// floor (1-based; 0 means file start).
func extendLeadingComments(lines []string, startLine, floor int) int {
	first := startLine
	inBlock := false

	for i := startLine - 2; i >= floor; i-- {
		trimmed := strings.TrimSpace(lines[i])

		if inBlock {
			first = i + 1
			// Scanning upward, the block is closed once its opener appears.
			if strings.HasPrefix(trimmed, "/*") {
				inBlock = false
			}
			continue
		}

		switch {
		case trimmed == "":
			return first
		case strings.HasPrefix(trimmed, "//"):
			first = i + 1
		case strings.HasSuffix(trimmed, "*/"):
			first = i + 1
			if !strings.Contains(trimmed, "/*") {
				inBlock = true
			}
		default:
			return first
		}
	}

	return first
}
