package nnet

import (
	"fmt"
	"time"

	"github.com/chewxy/math32"
)

// AdamConfig holds the Adam hyperparameters.  Zero fields are
// replaced with the usual defaults by NewAdam.
type AdamConfig struct {
	Alpha   float32
	Beta1   float32
	Beta2   float32
	Epsilon float32
}

// Adam applies the Adam update rule: per-parameter first and second
// moment estimates with bias-corrected step size.
type Adam struct {
	cfg   AdamConfig
	grads *Grads

	step           int
	beta1T, beta2T float32

	// First and second moment vectors for each layer.
	mW, vW []*F32
	mB, vB []*F32

	Timings StepTimings
}

func NewAdam(net *Network, batchSize int, cfg AdamConfig) *Adam {
	if cfg.Beta1 == 0 {
		cfg.Beta1 = 0.9
	}
	if cfg.Beta2 == 0 {
		cfg.Beta2 = 0.999
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = 1e-7
	}

	a := &Adam{
		cfg:    cfg,
		grads:  NewGrads(net, batchSize),
		beta1T: cfg.Beta1,
		beta2T: cfg.Beta2,
		mW:     make([]*F32, len(net.Layers)),
		vW:     make([]*F32, len(net.Layers)),
		mB:     make([]*F32, len(net.Layers)),
		vB:     make([]*F32, len(net.Layers)),
	}

	for l := 0; l < len(net.Layers); l++ {
		a.mW[l] = ZerosLike(net.Layers[l].W)
		a.vW[l] = ZerosLike(net.Layers[l].W)
		a.mB[l] = ZerosLike(net.Layers[l].B)
		a.vB[l] = ZerosLike(net.Layers[l].B)
	}

	return a
}

// Step runs one full training step over a batch, returning the batch
// loss evaluated before the update.
func (a *Adam) Step(net *Network, x, y *F32) float32 {
	start := time.Now()

	a.grads.Zero()
	loss := net.Backprop(x, y, a.grads)

	a.Timings.Backprop += time.Since(start)
	updateStart := time.Now()

	beta1 := a.cfg.Beta1
	beta2 := a.cfg.Beta2

	// Bias-corrected step size for this step.
	alphaT := a.cfg.Alpha * math32.Sqrt(1-a.beta2T) / (1 - a.beta1T)

	for l := 0; l < len(net.Layers); l++ {
		w := net.Layers[l].W
		b := net.Layers[l].B

		for i := 0; i < len(w.V); i++ {
			g := a.grads.W[l].V[i]
			a.mW[l].V[i] = beta1*a.mW[l].V[i] + (1-beta1)*g
			a.vW[l].V[i] = beta2*a.vW[l].V[i] + (1-beta2)*g*g
			w.V[i] -= alphaT * a.mW[l].V[i] / (math32.Sqrt(a.vW[l].V[i]) + a.cfg.Epsilon)
		}
		for i := 0; i < len(b.V); i++ {
			g := a.grads.B[l].V[i]
			a.mB[l].V[i] = beta1*a.mB[l].V[i] + (1-beta1)*g
			a.vB[l].V[i] = beta2*a.vB[l].V[i] + (1-beta2)*g*g
			b.V[i] -= alphaT * a.mB[l].V[i] / (math32.Sqrt(a.vB[l].V[i]) + a.cfg.Epsilon)
		}
	}

	a.beta1T *= beta1
	a.beta2T *= beta2
	a.step++

	a.Timings.Update += time.Since(updateStart)
	a.Timings.Overall += time.Since(start)

	return loss
}

// DumpState saves the optimizer state into tensors for checkpointing.
// Scalars are saved as {1} tensors.
func (a *Adam) DumpState(tensors map[string]*F32) {
	tensors["adam.step"] = NewScalarF32(float32(a.step))
	tensors["adam.alpha"] = NewScalarF32(a.cfg.Alpha)
	tensors["adam.beta1"] = NewScalarF32(a.cfg.Beta1)
	tensors["adam.beta2"] = NewScalarF32(a.cfg.Beta2)
	tensors["adam.epsilon"] = NewScalarF32(a.cfg.Epsilon)
	tensors["adam.beta1T"] = NewScalarF32(a.beta1T)
	tensors["adam.beta2T"] = NewScalarF32(a.beta2T)

	for l := 0; l < len(a.mW); l++ {
		tensors[fmt.Sprintf("adam.%d.mw", l)] = a.mW[l]
		tensors[fmt.Sprintf("adam.%d.vw", l)] = a.vW[l]
		tensors[fmt.Sprintf("adam.%d.mb", l)] = a.mB[l]
		tensors[fmt.Sprintf("adam.%d.vb", l)] = a.vB[l]
	}
}

// LoadState restores the optimizer state saved by DumpState.
func (a *Adam) LoadState(tensors map[string]*F32) error {
	stepF, err := loadScalar(tensors, "adam.step")
	if err != nil {
		return err
	}
	a.step = int(stepF)

	a.cfg.Alpha, err = loadScalar(tensors, "adam.alpha")
	if err != nil {
		return err
	}
	a.cfg.Beta1, err = loadScalar(tensors, "adam.beta1")
	if err != nil {
		return err
	}
	a.cfg.Beta2, err = loadScalar(tensors, "adam.beta2")
	if err != nil {
		return err
	}
	a.cfg.Epsilon, err = loadScalar(tensors, "adam.epsilon")
	if err != nil {
		return err
	}
	a.beta1T, err = loadScalar(tensors, "adam.beta1T")
	if err != nil {
		return err
	}
	a.beta2T, err = loadScalar(tensors, "adam.beta2T")
	if err != nil {
		return err
	}

	for l := 0; l < len(a.mW); l++ {
		var ok bool
		a.mW[l], ok = tensors[fmt.Sprintf("adam.%d.mw", l)]
		if !ok {
			return fmt.Errorf("missing tensor adam.%d.mw", l)
		}
		a.vW[l], ok = tensors[fmt.Sprintf("adam.%d.vw", l)]
		if !ok {
			return fmt.Errorf("missing tensor adam.%d.vw", l)
		}
		a.mB[l], ok = tensors[fmt.Sprintf("adam.%d.mb", l)]
		if !ok {
			return fmt.Errorf("missing tensor adam.%d.mb", l)
		}
		a.vB[l], ok = tensors[fmt.Sprintf("adam.%d.vb", l)]
		if !ok {
			return fmt.Errorf("missing tensor adam.%d.vb", l)
		}
	}

	return nil
}
