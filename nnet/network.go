package nnet

// Network is an ordered composition of dense layers trained against a
// single scalar loss function.
type Network struct {
	Loss   LossFunction
	Layers []*Dense
}

// Apply runs the forward pass over a batch, returning the raw output
// of the final layer (logits for a NegativeLogLikelihood network).
//
// x is the input.  Shape (batchSize, layers[0].InputSize)
func (net *Network) Apply(x *F32) *F32 {
	batchSize := x.Shape[0]

	// Collect the max-sized layer output needed.
	maxOutputSize := x.Shape[1]
	for l := 0; l < len(net.Layers); l++ {
		if net.Layers[l].OutputSize > maxOutputSize {
			maxOutputSize = net.Layers[l].OutputSize
		}
	}

	// a0 and a1 keep getting resized as we move forward through the
	// layers, so allocate them at full capacity up front.
	a0 := &F32{
		V:     make([]float32, 0, batchSize*maxOutputSize),
		Shape: []int{0, 0},
	}
	a1 := &F32{
		V:     make([]float32, 0, batchSize*maxOutputSize),
		Shape: []int{0, 0},
	}

	a0.V = a0.V[:batchSize*x.Shape[1]]
	a0.Shape[0] = batchSize
	a0.Shape[1] = x.Shape[1]
	copy(a0.V, x.V)

	for l := 0; l < len(net.Layers); l++ {
		a1.V = a1.V[:batchSize*net.Layers[l].OutputSize]
		a1.Shape[0] = batchSize
		a1.Shape[1] = net.Layers[l].OutputSize

		net.Layers[l].Apply(a0, a1, nil) // no need to save activation gradients

		// This layer's output becomes the input for the next layer.
		a0, a1 = a1, a0
	}

	return a0
}

// Predict runs the forward pass and normalizes the result for
// consumption: for a NegativeLogLikelihood network the rows are
// log-probabilities per class, otherwise the raw final-layer output.
func (net *Network) Predict(x *F32) *F32 {
	out := net.Apply(x)
	if net.Loss == NegativeLogLikelihood {
		LogSoftmax(out, out)
	}
	return out
}

// LossValue computes the scalar loss of predictions against the
// ground truth.  For NegativeLogLikelihood networks, predictions are
// raw logits (the output of Apply).  totalSamples is the denominator
// used for averaging, so a loss can be summed over several batches.
func (net *Network) LossValue(y, predictions *F32, totalSamples int) float32 {
	switch net.Loss {
	case NegativeLogLikelihood:
		return NegativeLogLikelihoodLoss(y, predictions, totalSamples)
	case MeanSquaredError:
		return MeanSquaredErrorLoss(y, predictions, totalSamples)
	default:
		panic("unimplemented loss function type")
	}
}

// lossGradient writes the gradient of the loss wrt the final layer
// output into djda.
func (net *Network) lossGradient(y, predictions, djda *F32) {
	switch net.Loss {
	case NegativeLogLikelihood:
		NegativeLogLikelihoodGradient(y, predictions, djda)
	case MeanSquaredError:
		MeanSquaredErrorGradient(y, predictions, djda)
	default:
		panic("unimplemented loss function type")
	}
}

// ArgmaxRow returns the index of the largest element in row k of a
// rank-2 tensor.  Used to turn log-probabilities into a class.
func ArgmaxRow(a *F32, k int) int {
	best := 0
	for i := 1; i < a.Shape[1]; i++ {
		if a.At2(k, i) > a.At2(k, best) {
			best = i
		}
	}
	return best
}
