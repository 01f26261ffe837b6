package nnet

// Grads holds the per-parameter gradient accumulators for one network,
// plus the scratch tensors needed to compute them.  The backward pass
// ADDS into the accumulators, so they must be zeroed before every new
// backward pass or contributions from prior batches silently
// accumulate.
type Grads struct {
	// Gradient accumulators, one per layer, same shapes as the
	// parameters they correspond to.
	W []*F32 // Shape (OutputSize, InputSize)
	B []*F32 // Shape (OutputSize)

	// Forward-pass scratch.  Backprop calculations of djdw and djdb
	// are better with the batch index as the inner dimension, so we
	// keep transposed copies of each operand.
	wT []*F32

	a, dadz, djda    []*F32
	aT, dadzT, djdaT []*F32

	xT *F32

	batchSize int
}

// NewGrads allocates gradient accumulators and backprop scratch for
// net, sized for batches of batchSize samples.
func NewGrads(net *Network, batchSize int) *Grads {
	g := &Grads{
		W:         make([]*F32, len(net.Layers)),
		B:         make([]*F32, len(net.Layers)),
		wT:        make([]*F32, len(net.Layers)),
		a:         make([]*F32, len(net.Layers)),
		aT:        make([]*F32, len(net.Layers)),
		dadz:      make([]*F32, len(net.Layers)),
		dadzT:     make([]*F32, len(net.Layers)),
		djda:      make([]*F32, len(net.Layers)),
		djdaT:     make([]*F32, len(net.Layers)),
		batchSize: batchSize,
	}

	for l := 0; l < len(net.Layers); l++ {
		lay := net.Layers[l]
		g.W[l] = NewF32(lay.OutputSize, lay.InputSize)
		g.B[l] = NewF32(lay.OutputSize)
		g.wT[l] = ZerosLike(lay.W)
		g.a[l] = NewF32(batchSize, lay.OutputSize)
		g.aT[l] = ZerosLike(g.a[l])
		g.dadz[l] = NewF32(batchSize, lay.OutputSize)
		g.dadzT[l] = ZerosLike(g.dadz[l])
		g.djda[l] = NewF32(batchSize, lay.OutputSize)
		g.djdaT[l] = ZerosLike(g.djda[l])
	}

	g.xT = NewF32(net.Layers[0].InputSize, batchSize)

	return g
}

// Zero resets every gradient accumulator to zero.  Call it at the top
// of every training step, before the backward pass.
func (g *Grads) Zero() {
	for l := 0; l < len(g.W); l++ {
		g.W[l].Zero()
		g.B[l].Zero()
	}
}

// Backprop runs the forward pass over one batch, evaluates the loss,
// and propagates the loss gradient backwards through the layers in
// reverse order, accumulating into g.W and g.B.  It returns the batch
// loss, evaluated before any parameter update.
//
// x is the batch input.  Shape (batchSize, layers[0].InputSize)
// y is the ground truth.  Shape (batchSize) for NegativeLogLikelihood,
// (batchSize, outputSize) for MeanSquaredError.
func (net *Network) Backprop(x, y *F32, g *Grads) float32 {
	if x.Shape[0] != g.batchSize {
		panic("batch size mismatch")
	}

	Transpose(x, g.xT)

	// Forward, saving the activation gradients at each layer.
	net.Layers[0].Apply(x, g.a[0], g.dadz[0])
	Transpose(g.a[0], g.aT[0])
	Transpose(g.dadz[0], g.dadzT[0])
	for l := 1; l < len(net.Layers); l++ {
		net.Layers[l].Apply(g.a[l-1], g.a[l], g.dadz[l])
		Transpose(g.a[l], g.aT[l])
		Transpose(g.dadz[l], g.dadzT[l])
	}

	last := len(net.Layers) - 1
	loss := net.LossValue(y, g.a[last], g.batchSize)
	net.lossGradient(y, g.a[last], g.djda[last])

	// Backward.  djdx of layer l is the djda of layer l-1.
	for l := last; l >= 1; l-- {
		Transpose(g.djda[l], g.djdaT[l])

		net.Layers[l].BackpropDjdw(g.aT[l-1], g.djdaT[l], g.dadzT[l], g.W[l])
		net.Layers[l].BackpropDjdb(g.djdaT[l], g.dadzT[l], g.B[l])

		Transpose(net.Layers[l].W, g.wT[l])
		net.Layers[l].BackpropDjdx(g.djda[l], g.dadz[l], g.wT[l], g.djda[l-1])
	}
	Transpose(g.djda[0], g.djdaT[0])
	net.Layers[0].BackpropDjdw(g.xT, g.djdaT[0], g.dadzT[0], g.W[0])
	net.Layers[0].BackpropDjdb(g.djdaT[0], g.dadzT[0], g.B[0])

	return loss
}
