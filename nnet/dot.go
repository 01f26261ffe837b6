package nnet

// dot2 computes the dot product of x and y.
func dot2(x, y []float32) float32 {
	if len(x) != len(y) {
		panic("mismatched length")
	}
	var sum float32
	for i := 0; i < len(x); i++ {
		sum += x[i] * y[i]
	}
	return sum
}

// dot3 computes the sum over i of x[i]*y[i]*z[i].  It is the inner
// kernel of the backpropagation passes, which contract three
// same-length operands at once.
func dot3(x, y, z []float32) float32 {
	if len(x) != len(y) || len(x) != len(z) {
		panic("all input slices must have the same length")
	}
	var sum float32
	for i := 0; i < len(x); i++ {
		sum += x[i] * y[i] * z[i]
	}
	return sum
}
