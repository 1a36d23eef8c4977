package vectordb

import "sort"

// fusedHit pairs a hit with its fused score while merging ranked lists.
type fusedHit struct {
	hit   SearchHit
	score float64
}

// fuse merges dense and sparse ranked lists according to the ranker and
// returns at most topK hits. Both inputs must already be sorted by
// descending score. When a document appears in both lists the dense hit is
// kept, since it carries the stored vector.
func fuse(dense, sparse []SearchHit, ranker Ranker, topK int) []SearchHit {
	switch ranker.Type {
	case RankerWeighted:
		return fuseWeighted(dense, sparse, ranker, topK)
	default:
		return fuseRRF(dense, sparse, ranker, topK)
	}
}

// fuseRRF applies Reciprocal Rank Fusion: score(d) = sum over rankings of
// 1/(k + rank(d)).
func fuseRRF(dense, sparse []SearchHit, ranker Ranker, topK int) []SearchHit {
	k := ranker.K
	if k <= 0 {
		k = DefaultRRFK
	}

	merged := make(map[string]*fusedHit, len(dense)+len(sparse))

	for rank, hit := range dense {
		merged[hit.Document.ID] = &fusedHit{hit: hit, score: 1.0 / (k + float64(rank+1))}
	}
	for rank, hit := range sparse {
		s := 1.0 / (k + float64(rank+1))
		if existing, ok := merged[hit.Document.ID]; ok {
			existing.score += s
		} else {
			merged[hit.Document.ID] = &fusedHit{hit: hit, score: s}
		}
	}

	return sortAndTrim(merged, topK)
}

// fuseWeighted normalizes each list's scores to [0,1] by its maximum and
// combines them as denseWeight*dense + sparseWeight*sparse.
func fuseWeighted(dense, sparse []SearchHit, ranker Ranker, topK int) []SearchHit {
	dw, sw := ranker.DenseWeight, ranker.SparseWeight
	if dw <= 0 && sw <= 0 {
		dw, sw = 0.5, 0.5
	}

	merged := make(map[string]*fusedHit, len(dense)+len(sparse))

	var denseMax, sparseMax float64
	if len(dense) > 0 {
		denseMax = dense[0].Score
	}
	if len(sparse) > 0 {
		sparseMax = sparse[0].Score
	}

	for _, hit := range dense {
		score := 0.0
		if denseMax > 0 {
			score = dw * (hit.Score / denseMax)
		}
		merged[hit.Document.ID] = &fusedHit{hit: hit, score: score}
	}
	for _, hit := range sparse {
		score := 0.0
		if sparseMax > 0 {
			score = sw * (hit.Score / sparseMax)
		}
		if existing, ok := merged[hit.Document.ID]; ok {
			existing.score += score
		} else {
			merged[hit.Document.ID] = &fusedHit{hit: hit, score: score}
		}
	}

	return sortAndTrim(merged, topK)
}

func sortAndTrim(merged map[string]*fusedHit, topK int) []SearchHit {
	results := make([]SearchHit, 0, len(merged))
	for _, s := range merged {
		hit := s.hit
		hit.Score = s.score
		results = append(results, hit)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
