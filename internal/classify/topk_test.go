package classify

import (
	"math"
	"testing"

	"github.com/quantaml/quanta/internal/labels"
)

func TestSoftmaxRankingAndSum(t *testing.T) {
	t.Parallel()
	set := labels.FromSlice([]string{"cat", "dog", "fish"})
	preds := TopK([]float32{2.0, 1.0, 0.1}, set, 3)

	if len(preds) != 3 {
		t.Fatalf("got %d predictions, want 3", len(preds))
	}
	wantOrder := []int{0, 1, 2}
	wantLabels := []string{"cat", "dog", "fish"}
	var sum float64
	for i, p := range preds {
		if p.Index != wantOrder[i] {
			t.Fatalf("rank %d: index %d, want %d", i, p.Index, wantOrder[i])
		}
		if p.Label != wantLabels[i] {
			t.Fatalf("rank %d: label %q, want %q", i, p.Label, wantLabels[i])
		}
		sum += float64(p.Probability)
	}
	if math.Abs(sum-1.0) > 1e-5 {
		t.Fatalf("probabilities sum to %f, want 1.0", sum)
	}
	if !(preds[0].Probability > preds[1].Probability && preds[1].Probability > preds[2].Probability) {
		t.Fatalf("probabilities not strictly decreasing: %v", preds)
	}
}

func TestSoftmaxStability(t *testing.T) {
	t.Parallel()
	// Large scores must not overflow to Inf/NaN.
	probs := Softmax([]float32{10000, 9999, 9998})
	var sum float64
	for _, p := range probs {
		if math.IsNaN(float64(p)) || math.IsInf(float64(p), 0) {
			t.Fatalf("unstable softmax output: %v", probs)
		}
		sum += float64(p)
	}
	if math.Abs(sum-1.0) > 1e-5 {
		t.Fatalf("sum = %f, want 1.0", sum)
	}
	if !(probs[0] > probs[1] && probs[1] > probs[2]) {
		t.Fatalf("ordering lost: %v", probs)
	}
}

func TestTopKClamped(t *testing.T) {
	t.Parallel()
	set := labels.FromSlice([]string{"a", "b"})
	preds := TopK([]float32{0.5, 1.5}, set, 5)
	if len(preds) != 2 {
		t.Fatalf("got %d predictions, want 2", len(preds))
	}
	if preds[0].Label != "b" {
		t.Fatalf("top prediction = %q, want %q", preds[0].Label, "b")
	}
}

func TestTopKMissingLabels(t *testing.T) {
	t.Parallel()
	// More outputs than labels still reports with a placeholder name.
	set := labels.FromSlice([]string{"only"})
	preds := TopK([]float32{0.1, 3.0}, set, 2)
	if preds[0].Index != 1 {
		t.Fatalf("top index = %d, want 1", preds[0].Index)
	}
	if preds[0].Label != "class 1" {
		t.Fatalf("placeholder label = %q", preds[0].Label)
	}
}

func TestSoftmaxEmpty(t *testing.T) {
	t.Parallel()
	if out := Softmax(nil); out != nil {
		t.Fatalf("expected nil for empty input, got %v", out)
	}
	if preds := TopK(nil, labels.FromSlice(nil), 5); preds != nil {
		t.Fatalf("expected nil predictions, got %v", preds)
	}
}
