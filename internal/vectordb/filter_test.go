package vectordb

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindexer/pkg/types"
)

func TestParseFilter_Equality(t *testing.T) {
	f, err := ParseFilter(`relative_path == "internal/server.go"`)
	require.NoError(t, err)

	assert.True(t, f.Matches(&types.VectorDocument{RelativePath: "internal/server.go"}))
	assert.False(t, f.Matches(&types.VectorDocument{RelativePath: "main.go"}))
}

func TestParseFilter_Membership(t *testing.T) {
	f, err := ParseFilter(`file_extension in [".go", ".java"]`)
	require.NoError(t, err)

	assert.True(t, f.Matches(&types.VectorDocument{FileExtension: ".go"}))
	assert.True(t, f.Matches(&types.VectorDocument{FileExtension: ".java"}))
	assert.False(t, f.Matches(&types.VectorDocument{FileExtension: ".ts"}))
}

func TestParseFilter_Conjunction(t *testing.T) {
	f, err := ParseFilter(`file_extension == ".go" && relative_path == "a.go"`)
	require.NoError(t, err)

	assert.True(t, f.Matches(&types.VectorDocument{FileExtension: ".go", RelativePath: "a.go"}))
	assert.False(t, f.Matches(&types.VectorDocument{FileExtension: ".go", RelativePath: "b.go"}))
}

func TestParseFilter_EmptyMatchesAll(t *testing.T) {
	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.True(t, f.Matches(&types.VectorDocument{RelativePath: "anything"}))
}

func TestParseFilter_Errors(t *testing.T) {
	cases := []string{
		`relative_path = "x"`,
		`unknown_field == "x"`,
		`relative_path == unquoted`,
		`relative_path in (".go")`,
		`score == "0.5"`,
	}
	for _, expr := range cases {
		_, err := ParseFilter(expr)
		assert.Error(t, err, "expression %q should be rejected", expr)
	}
}

func TestFilter_SQL(t *testing.T) {
	f, err := ParseFilter(`relative_path == "a.go" && file_extension in [".go", ".ts"]`)
	require.NoError(t, err)

	where, args := f.SQL()
	assert.Equal(t, "relative_path = ? AND file_extension IN (?,?)", where)
	assert.Equal(t, []interface{}{"a.go", ".go", ".ts"}, args)

	empty, _ := ParseFilter("")
	where, args = empty.SQL()
	assert.Equal(t, "1=1", where)
	assert.Nil(t, args)
}

func TestFilter_SingleQuotes(t *testing.T) {
	f, err := ParseFilter(`relative_path == 'x.go'`)
	require.NoError(t, err)
	assert.True(t, f.Matches(&types.VectorDocument{RelativePath: "x.go"}))
}

func TestFilter_UnescapesQuotedValues(t *testing.T) {
	// The pipeline builds delete filters with %q; paths containing quotes or
	// backslashes must round-trip through the parser.
	for _, path := range []string{`a"b.go`, `dir\file.go`, "tab\tname.go"} {
		f, err := ParseFilter(fmt.Sprintf("relative_path == %q", path))
		require.NoError(t, err)

		assert.True(t, f.Matches(&types.VectorDocument{RelativePath: path}), "path %q must match itself", path)
		assert.False(t, f.Matches(&types.VectorDocument{RelativePath: strconv.Quote(path)}))

		_, args := f.SQL()
		require.Len(t, args, 1)
		assert.Equal(t, path, args[0], "SQL argument must carry the decoded path")
	}
}
