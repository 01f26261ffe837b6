package mnist

import (
	"math/rand"

	"github.com/ahmedtd/digits/nnet"
)

// Batches groups a split into fixed-size batches.  When the example
// count is not a multiple of batchSize, the final batch wraps around
// to the start of the split so every batch is full.  Pass a seeded
// rand.Rand to shuffle the example order first; nil keeps dataset
// order.
//
// The returned xs have shape (batchSize, InputSize) and the ys have
// shape (batchSize), parallel slices ready for nnet.Fit.
func Batches(d *Data, batchSize int, r *rand.Rand) (xs, ys []*nnet.F32) {
	n := d.Len()
	inputSize := d.X.Shape[1]

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if r != nil {
		r.Shuffle(n, func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	sliceStart := 0
	for sliceStart < n {
		x := nnet.NewF32(batchSize, inputSize)
		y := nnet.NewF32(batchSize)
		for k := 0; k < batchSize; k++ {
			src := order[(sliceStart+k)%n]
			copy(x.V[k*inputSize:(k+1)*inputSize], d.X.V[src*inputSize:(src+1)*inputSize])
			y.Set1(k, d.Y.At1(src))
		}
		xs = append(xs, x)
		ys = append(ys, y)

		sliceStart += batchSize
	}

	return xs, ys
}
