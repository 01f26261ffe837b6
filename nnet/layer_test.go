package nnet

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
)

func TestDenseApplyMatchesNaive(t *testing.T) {
	r := rand.New(rand.NewSource(12345))

	batchSize := 7
	lay := NewDense(Identity, 5, 3, r)

	x := NewF32(batchSize, 5)
	for i := range x.V {
		x.V[i] = float32(r.NormFloat64())
	}

	a := NewF32(batchSize, 3)
	lay.Apply(x, a, nil)

	for k := 0; k < batchSize; k++ {
		for i := 0; i < 3; i++ {
			var z float32
			for j := 0; j < 5; j++ {
				z += lay.W.At2(i, j) * x.At2(k, j)
			}
			z += lay.B.At1(i)

			if math32.Abs(a.At2(k, i)-z) > 1e-5 {
				t.Errorf("a[%d,%d] = %v, want %v", k, i, a.At2(k, i), z)
			}
		}
	}
}

func TestActivationGradients(t *testing.T) {
	r := rand.New(rand.NewSource(12345))

	for _, act := range []Activation{ReLU, Identity, Sigmoid} {
		lay := NewDense(act, 4, 4, r)

		batchSize := 6
		x := NewF32(batchSize, 4)
		for i := range x.V {
			x.V[i] = float32(r.NormFloat64())
		}

		// Pre-activation output, via an identity twin of the layer.
		twin := &Dense{Act: Identity, W: lay.W, B: lay.B, InputSize: 4, OutputSize: 4}
		z := NewF32(batchSize, 4)
		twin.Apply(x, z, nil)

		a := NewF32(batchSize, 4)
		dadz := NewF32(batchSize, 4)
		lay.Apply(x, a, dadz)

		// Central difference of the activation function at each z.
		h := float32(1e-3)
		for i := range z.V {
			plus := activate(act, z.V[i]+h)
			minus := activate(act, z.V[i]-h)
			numeric := (plus - minus) / (2 * h)

			// ReLU is not differentiable at 0; skip points too close
			// to the kink for the central difference to be meaningful.
			if act == ReLU && math32.Abs(z.V[i]) < 2*h {
				continue
			}

			if math32.Abs(dadz.V[i]-numeric) > 1e-2 {
				t.Errorf("act %v: dadz at z=%v is %v, central difference %v", act, z.V[i], dadz.V[i], numeric)
			}
		}
	}
}

func activate(act Activation, z float32) float32 {
	switch act {
	case ReLU:
		if z < 0 {
			return 0
		}
		return z
	case Identity:
		return z
	case Sigmoid:
		return 1 / (1 + math32.Exp(-z))
	default:
		panic("unhandled activation function")
	}
}

// TestBackpropMatchesFiniteDifference checks the whole chain-rule
// pass: every parameter gradient produced by Backprop must agree with
// a central difference of the loss with respect to that parameter.
func TestBackpropMatchesFiniteDifference(t *testing.T) {
	r := rand.New(rand.NewSource(12345))

	batchSize := 5
	// Sigmoid hidden layer: smooth everywhere, so the central
	// difference is valid at every parameter.
	net := &Network{
		Loss: NegativeLogLikelihood,
		Layers: []*Dense{
			NewDense(Sigmoid, 3, 4, r),
			NewDense(Identity, 4, 2, r),
		},
	}

	x := NewF32(batchSize, 3)
	for i := range x.V {
		x.V[i] = float32(r.NormFloat64())
	}
	y := NewF32(batchSize)
	for k := 0; k < batchSize; k++ {
		y.Set1(k, float32(r.Intn(2)))
	}

	g := NewGrads(net, batchSize)
	g.Zero()
	net.Backprop(x, y, g)

	lossAt := func() float32 {
		return net.LossValue(y, net.Apply(x), batchSize)
	}

	h := float32(1e-2)
	check := func(name string, param *F32, grad *F32) {
		for i := range param.V {
			orig := param.V[i]
			param.V[i] = orig + h
			plus := lossAt()
			param.V[i] = orig - h
			minus := lossAt()
			param.V[i] = orig

			numeric := (plus - minus) / (2 * h)
			if math32.Abs(grad.V[i]-numeric) > 5e-3 {
				t.Errorf("%s[%d]: backprop gradient %v, central difference %v", name, i, grad.V[i], numeric)
			}
		}
	}

	for l := 0; l < len(net.Layers); l++ {
		check(fmt.Sprintf("layer%d.W", l), net.Layers[l].W, g.W[l])
		check(fmt.Sprintf("layer%d.B", l), net.Layers[l].B, g.B[l])
	}
}
