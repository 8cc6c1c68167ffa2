package vectorstore

import (
	"fmt"
	"math"
	"sort"
)

// Index is the similarity primitive behind a Store
type Index interface {
	Build(ids []int, vectors [][]float32) error
	Query(query []float32, k int) ([]int, []float64, error)
	Len() int
}

// BruteForceIndex scores every vector by cosine similarity. Magnitudes are
// computed once at build time.
type BruteForceIndex struct {
	ids  []int
	vecs [][]float32
	dim  int
	mags []float64
}

// NewBruteForceIndex returns an empty index
func NewBruteForceIndex() Index {
	return &BruteForceIndex{}
}

// Build loads ids and vectors and precomputes magnitudes.
func (i *BruteForceIndex) Build(ids []int, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("bruteforce: ids and vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		i.ids, i.vecs, i.mags, i.dim = nil, nil, nil, 0
		return nil
	}
	dim := len(vectors[0])
	for j := range vectors {
		if len(vectors[j]) != dim {
			return fmt.Errorf("bruteforce: inconsistent vector dims %d vs %d", len(vectors[j]), dim)
		}
	}
	mags := make([]float64, len(vectors))
	for j := range vectors {
		mags[j] = magnitude(vectors[j])
	}
	i.ids = append([]int(nil), ids...)
	i.vecs = append([][]float32(nil), vectors...)
	i.dim = dim
	i.mags = mags
	return nil
}

// Len returns the number of indexed vectors
func (i *BruteForceIndex) Len() int { return len(i.ids) }

// Query returns up to k ids by descending cosine similarity. Equal scores
// keep ascending id order. Zero vectors score 0 rather than being dropped,
// so a query returns min(k, Len()) results.
func (i *BruteForceIndex) Query(query []float32, k int) ([]int, []float64, error) {
	if i.dim == 0 || len(i.vecs) == 0 {
		return nil, nil, nil
	}
	if len(query) != i.dim {
		return nil, nil, fmt.Errorf("bruteforce: query dim %d != index dim %d", len(query), i.dim)
	}
	qm := magnitude(query)

	type scored struct {
		id    int
		score float64
	}
	scoreds := make([]scored, 0, len(i.vecs))
	for j := range i.vecs {
		s := 0.0
		if qm > 0 && i.mags[j] > 0 {
			s = dot(query, i.vecs[j]) / (qm * i.mags[j])
		}
		if math.IsNaN(s) {
			s = 0
		}
		scoreds = append(scoreds, scored{id: i.ids[j], score: s})
	}
	sort.Slice(scoreds, func(a, b int) bool {
		if scoreds[a].score != scoreds[b].score {
			return scoreds[a].score > scoreds[b].score
		}
		return scoreds[a].id < scoreds[b].id
	})
	if k <= 0 || k > len(scoreds) {
		k = len(scoreds)
	}
	outIDs := make([]int, k)
	outScores := make([]float64, k)
	for n := 0; n < k; n++ {
		outIDs[n] = scoreds[n].id
		outScores[n] = scoreds[n].score
	}
	return outIDs, outScores, nil
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func magnitude(v []float32) float64 { return math.Sqrt(dot(v, v)) }
