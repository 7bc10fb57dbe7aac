package quant

// MinMaxObserver accumulates the running range of an activation tensor
// across calibration batches.
type MinMaxObserver struct {
	min, max float32
	seen     bool
}

// Observe folds one batch of values into the running range.
func (o *MinMaxObserver) Observe(values []float32) {
	for _, v := range values {
		if !o.seen {
			o.min, o.max = v, v
			o.seen = true
			continue
		}
		if v < o.min {
			o.min = v
		}
		if v > o.max {
			o.max = v
		}
	}
}

// Range reports the observed bounds. ok is false until at least one value
// has been observed.
func (o *MinMaxObserver) Range() (min, max float32, ok bool) {
	return o.min, o.max, o.seen
}

// Params fits asymmetric uint8 parameters to the observed range.
func (o *MinMaxObserver) Params() Params {
	return AsymmetricUint8(o.min, o.max)
}
