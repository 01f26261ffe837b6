package nnet

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/chewxy/math32"
)

type Activation int

const (
	ReLU Activation = iota
	Identity
	Sigmoid
)

// Dense is a fully-connected layer: a = act(W x + b).
type Dense struct {
	Act Activation

	W *F32 // Shape (OutputSize, InputSize)
	B *F32 // Shape (OutputSize)

	InputSize  int
	OutputSize int
}

// NewDense builds a dense layer with weights drawn from N(0, 0.1) and
// biases set to 0.1.  Pass a seeded rand.Rand for reproducible
// initialization.
func NewDense(act Activation, inputSize, outputSize int, r *rand.Rand) *Dense {
	l := &Dense{
		Act:        act,
		InputSize:  inputSize,
		OutputSize: outputSize,
		W:          NewF32(outputSize, inputSize),
		B:          NewF32(outputSize),
	}

	for i := 0; i < outputSize; i++ {
		for j := 0; j < inputSize; j++ {
			l.W.Set2(i, j, float32(r.NormFloat64())*0.1)
		}
		l.B.Set1(i, 0.1)
	}

	return l
}

// Apply runs the layer in the forward direction.
//
// x (input) is the layer input.  Shape (batchSize, lay.InputSize)
// a (output) is the layer's forward output.  Shape (batchSize, lay.OutputSize)
// dadz (output, optional) is the derivative of the activated output
// wrt the linear output.  Shape (batchSize, lay.OutputSize)
func (lay *Dense) Apply(x, a, dadz *F32) {
	batchSize := x.Shape[0]
	inputSize := lay.InputSize
	outputSize := lay.OutputSize

	if x.Shape[1] != inputSize {
		panic("dimension mismatch")
	}
	if a.Shape[0] != batchSize {
		panic("dimension mismatch")
	}
	if a.Shape[1] != outputSize {
		panic("dimension mismatch")
	}
	if dadz != nil {
		if dadz.Shape[0] != batchSize {
			panic("dimension mismatch")
		}
		if dadz.Shape[1] != outputSize {
			panic("dimension mismatch")
		}
	}
	if lay.W.Shape[0] != outputSize || lay.W.Shape[1] != inputSize {
		panic("dimension mismatch")
	}
	if !slices.Equal(lay.B.Shape, []int{outputSize}) {
		panic(fmt.Sprintf("lay.B.Shape %v != {outputSize}", lay.B.Shape))
	}

	for k := 0; k < batchSize; k++ {
		for i := 0; i < outputSize; i++ {
			z := dot2(lay.W.V[i*inputSize:i*inputSize+inputSize], x.V[k*inputSize:k*inputSize+inputSize])
			z += lay.B.At1(i)
			a.Set2(k, i, z)
		}
	}

	// Apply the activation function to a elementwise, recording
	// activation gradients in dadz if provided.
	switch lay.Act {
	case ReLU:
		if dadz != nil {
			reluGradient(a.V, dadz.V)
		}
		relu(a.V)
	case Identity:
		if dadz != nil {
			identityGradient(dadz.V)
		}
		// identity activation is a no-op
	case Sigmoid:
		if dadz != nil {
			sigmoidGradient(a.V, dadz.V)
		}
		sigmoid(a.V)
	default:
		panic("unhandled activation function")
	}
}

// BackpropDjdw accumulates the gradient of the loss wrt lay.W into djdw.
//
// xT (input) is the layer input, transposed.  Shape (lay.InputSize, batchSize)
// djdaT (input) is the gradient of the loss wrt a, transposed.  Shape (lay.OutputSize, batchSize)
// dadzT (input) is the gradient of a_ik wrt z_ik, transposed.  Shape (lay.OutputSize, batchSize)
// djdw (accumulated output).  Shape (lay.OutputSize, lay.InputSize)
func (lay *Dense) BackpropDjdw(xT, djdaT, dadzT, djdw *F32) {
	batchSize := xT.Shape[1]
	inputSize := lay.InputSize
	outputSize := lay.OutputSize

	for i := 0; i < outputSize; i++ {
		for j := 0; j < inputSize; j++ {
			grad := dot3(
				djdaT.V[i*batchSize:i*batchSize+batchSize],
				dadzT.V[i*batchSize:i*batchSize+batchSize],
				xT.V[j*batchSize:j*batchSize+batchSize],
			)
			djdw.Set2(i, j, djdw.At2(i, j)+grad)
		}
	}
}

// BackpropDjdb accumulates the gradient of the loss wrt lay.B into djdb.
//
// djdaT (input) is the gradient of the loss wrt a, transposed.  Shape (lay.OutputSize, batchSize)
// dadzT (input) is the gradient of a_ik wrt z_ik, transposed.  Shape (lay.OutputSize, batchSize)
// djdb (accumulated output).  Shape (lay.OutputSize)
func (lay *Dense) BackpropDjdb(djdaT, dadzT, djdb *F32) {
	batchSize := djdaT.Shape[1]
	outputSize := lay.OutputSize

	iBase := 0
	for i := 0; i < outputSize; i++ {
		grad := dot2(djdaT.V[iBase:iBase+batchSize], dadzT.V[iBase:iBase+batchSize])
		djdb.Set1(i, djdb.At1(i)+grad)

		iBase += batchSize
	}
}

// BackpropDjdx writes the gradient of the loss wrt the layer input
// into djdx, overwriting it.  djdx of layer l becomes djda of layer
// l-1 during the backward pass.
//
// djda (input) is the gradient of the loss wrt a.  Shape (batchSize, lay.OutputSize)
// dadz (input) is the gradient of a_ik wrt z_ik.  Shape (batchSize, lay.OutputSize)
// wT (input) is the layer weights, transposed.  Shape (lay.InputSize, lay.OutputSize)
// djdx (output).  Shape (batchSize, lay.InputSize)
func (lay *Dense) BackpropDjdx(djda, dadz, wT, djdx *F32) {
	batchSize := djda.Shape[0]
	inputSize := lay.InputSize
	outputSize := lay.OutputSize

	for k := 0; k < batchSize; k++ {
		for j := 0; j < inputSize; j++ {
			grad := dot3(
				djda.V[k*outputSize:k*outputSize+outputSize],
				dadz.V[k*outputSize:k*outputSize+outputSize],
				wT.V[j*outputSize:j*outputSize+outputSize],
			)
			djdx.Set2(k, j, grad)
		}
	}
}

func relu(z []float32) {
	for i := 0; i < len(z); i++ {
		if z[i] < 0 {
			z[i] = 0
		}
	}
}

// reluGradient computes the derivative of the ReLU function.
//
// z (input) is the pre-activation linear output of a layer.
// dadz (output) is the derivative of ReLU(z).
func reluGradient(z, dadz []float32) {
	if len(z) != len(dadz) {
		panic("len(z) != len(dadz)")
	}

	for i := 0; i < len(z); i++ {
		if z[i] <= 0 {
			dadz[i] = 0
		} else {
			dadz[i] = 1
		}
	}
}

func identityGradient(dadz []float32) {
	for i := 0; i < len(dadz); i++ {
		dadz[i] = 1
	}
}

func sigmoid(z []float32) {
	for i := 0; i < len(z); i++ {
		z[i] = 1 / (1 + math32.Exp(-z[i]))
	}
}

func sigmoidGradient(z, dadz []float32) {
	if len(z) != len(dadz) {
		panic("len(z) != len(dadz)")
	}

	for i := 0; i < len(z); i++ {
		tmp := math32.Exp(-z[i])
		dadz[i] = tmp / (1 + tmp) / (1 + tmp)
	}
}
