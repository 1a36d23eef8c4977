package vectordb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindexer/pkg/types"
)

func hit(id string, score float64) SearchHit {
	return SearchHit{Document: types.VectorDocument{ID: id}, Score: score}
}

func TestFuseRRF_DocumentInBothListsWins(t *testing.T) {
	dense := []SearchHit{hit("a", 0.9), hit("b", 0.8), hit("c", 0.7)}
	sparse := []SearchHit{hit("b", 12.0), hit("d", 7.5)}

	fused := fuseRRF(dense, sparse, Ranker{Type: RankerRRF, K: 100}, 10)
	require.NotEmpty(t, fused)

	// b appears at rank 2 dense and rank 1 sparse: 1/102 + 1/101.
	assert.Equal(t, "b", fused[0].Document.ID)
	assert.InDelta(t, 1.0/102+1.0/101, fused[0].Score, 1e-9)
}

func TestFuseRRF_DefaultConstant(t *testing.T) {
	fused := fuseRRF([]SearchHit{hit("a", 1)}, nil, Ranker{Type: RankerRRF}, 10)
	require.Len(t, fused, 1)
	assert.InDelta(t, 1.0/(DefaultRRFK+1), fused[0].Score, 1e-9)
}

func TestFuseRRF_TopKTrims(t *testing.T) {
	dense := []SearchHit{hit("a", 3), hit("b", 2), hit("c", 1)}
	fused := fuseRRF(dense, nil, Ranker{Type: RankerRRF, K: 60}, 2)
	assert.Len(t, fused, 2)
}

func TestFuseWeighted_NormalizesByMax(t *testing.T) {
	dense := []SearchHit{hit("a", 0.8), hit("b", 0.4)}
	sparse := []SearchHit{hit("b", 20.0)}

	fused := fuseWeighted(dense, sparse, Ranker{Type: RankerWeighted, DenseWeight: 0.5, SparseWeight: 0.5}, 10)
	require.Len(t, fused, 2)

	// b: 0.5*(0.4/0.8) + 0.5*(20/20) = 0.75; a: 0.5*1.0 = 0.5.
	assert.Equal(t, "b", fused[0].Document.ID)
	assert.InDelta(t, 0.75, fused[0].Score, 1e-9)
	assert.Equal(t, "a", fused[1].Document.ID)
	assert.InDelta(t, 0.5, fused[1].Score, 1e-9)
}

func TestFuse_SelectsRanker(t *testing.T) {
	dense := []SearchHit{hit("a", 1.0)}

	rrf := fuse(dense, nil, Ranker{Type: RankerRRF, K: 60}, 5)
	assert.InDelta(t, 1.0/61, rrf[0].Score, 1e-9)

	weighted := fuse(dense, nil, Ranker{Type: RankerWeighted, DenseWeight: 1, SparseWeight: 0}, 5)
	assert.InDelta(t, 1.0, weighted[0].Score, 1e-9)
}
