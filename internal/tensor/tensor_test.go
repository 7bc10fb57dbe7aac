package tensor

import (
	"errors"
	"testing"
)

func TestNewDense(t *testing.T) {
	t.Parallel()
	d, err := NewDense([]int64{1, 3, 2, 2}, make([]float32, 12))
	if err != nil {
		t.Fatalf("new dense: %v", err)
	}
	if d.Rank() != 4 {
		t.Fatalf("rank = %d, want 4", d.Rank())
	}
}

func TestNewDenseMismatch(t *testing.T) {
	t.Parallel()
	_, err := NewDense([]int64{2, 2}, make([]float32, 5))
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestNumElements(t *testing.T) {
	t.Parallel()
	n, err := NumElements([]int64{2, 3, 4})
	if err != nil || n != 24 {
		t.Fatalf("NumElements = %d, %v; want 24, nil", n, err)
	}
	if _, err := NumElements([]int64{2, -1}); err == nil {
		t.Fatal("expected error for negative dim")
	}
}

func TestClone(t *testing.T) {
	t.Parallel()
	d, err := NewDense([]int64{2}, []float32{1, 2})
	if err != nil {
		t.Fatalf("new dense: %v", err)
	}
	c := d.Clone()
	c.Data[0] = 9
	if d.Data[0] != 1 {
		t.Fatal("clone aliases original data")
	}
}
