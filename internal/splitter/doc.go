// Package splitter carves source files into bounded, leading-comment-
// preserving chunks for embedding and search.
//
// Go files are split along real AST boundaries via go/parser; other
// brace-delimited languages go through a comment- and string-aware brace
// scanner that recognizes class, interface, method, constructor, and
// function declarations. Files in any other language, empty parses, and
// fatally broken files fall back to a line-window splitter parameterized by
// chunk size and overlap in characters, which never splits inside a line.
//
// Every chunk's start line is extended upward over the contiguous comment
// block immediately preceding the declaration, and each comment block is
// attributed to at most one chunk, the one whose declaration follows it.
package splitter
