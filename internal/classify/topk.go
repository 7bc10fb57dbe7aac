// Package classify post-processes raw classifier outputs into ranked,
// human-readable predictions.
package classify

import (
	"math"
	"sort"

	"github.com/quantaml/quanta/internal/labels"
)

// DefaultK is the conventional top-5 report.
const DefaultK = 5

// Prediction is one ranked class.
type Prediction struct {
	Index       int     `json:"index"`
	Label       string  `json:"label"`
	Probability float32 `json:"probability"`
}

// Softmax converts raw scores to probabilities. The max is subtracted before
// exponentiating for numerical stability; the result sums to 1.
func Softmax(scores []float32) []float32 {
	if len(scores) == 0 {
		return nil
	}
	max := scores[0]
	for _, v := range scores[1:] {
		if v > max {
			max = v
		}
	}
	out := make([]float32, len(scores))
	var sum float64
	for i, v := range scores {
		e := math.Exp(float64(v - max))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

// TopK returns the k highest-probability classes after softmax, resolved
// against the label set. k is clamped to len(scores).
func TopK(scores []float32, set *labels.Set, k int) []Prediction {
	probs := Softmax(scores)
	if k > len(probs) {
		k = len(probs)
	}
	if k <= 0 {
		return nil
	}

	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return probs[idx[a]] > probs[idx[b]]
	})

	out := make([]Prediction, k)
	for i := 0; i < k; i++ {
		j := idx[i]
		out[i] = Prediction{
			Index:       j,
			Label:       set.Name(j),
			Probability: probs[j],
		}
	}
	return out
}
