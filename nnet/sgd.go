package nnet

import (
	"fmt"
	"time"
)

// StepTimings accumulates wall-clock time spent in the phases of a
// training step.
type StepTimings struct {
	Overall  time.Duration
	Backprop time.Duration
	Update   time.Duration
}

func (t *StepTimings) Reset() {
	t.Overall = 0
	t.Backprop = 0
	t.Update = 0
}

// SGDConfig holds the stochastic gradient descent hyperparameters.
type SGDConfig struct {
	// LearningRate is the step-size multiplier applied to gradients.
	LearningRate float32

	// Momentum is the velocity decay factor, in [0, 1).  Zero gives
	// the plain update rule w <- w - lr*g.
	Momentum float32
}

// SGD applies the stochastic gradient descent update rule, with
// optional momentum:
//
//	v <- momentum*v + g
//	w <- w - lr*v
type SGD struct {
	cfg    SGDConfig
	grads  *Grads
	layers int

	// Velocity buffers, only allocated when momentum is nonzero.
	vW, vB []*F32

	Timings StepTimings
}

// NewSGD builds an SGD optimizer for net, with gradient accumulators
// sized for batches of batchSize samples.
func NewSGD(net *Network, batchSize int, cfg SGDConfig) *SGD {
	s := &SGD{
		cfg:    cfg,
		grads:  NewGrads(net, batchSize),
		layers: len(net.Layers),
	}

	if cfg.Momentum != 0 {
		s.vW = make([]*F32, len(net.Layers))
		s.vB = make([]*F32, len(net.Layers))
		for l := 0; l < len(net.Layers); l++ {
			s.vW[l] = ZerosLike(net.Layers[l].W)
			s.vB[l] = ZerosLike(net.Layers[l].B)
		}
	}

	return s
}

// Step runs one full training step over a batch: zero the gradient
// accumulators, forward pass, loss, backward pass, parameter update.
// It returns the batch loss, evaluated before the update.
func (s *SGD) Step(net *Network, x, y *F32) float32 {
	start := time.Now()

	s.grads.Zero()
	loss := net.Backprop(x, y, s.grads)

	s.Timings.Backprop += time.Since(start)
	updateStart := time.Now()

	lr := s.cfg.LearningRate
	mu := s.cfg.Momentum

	for l := 0; l < len(net.Layers); l++ {
		w := net.Layers[l].W
		b := net.Layers[l].B

		if mu == 0 {
			for i := 0; i < len(w.V); i++ {
				w.V[i] -= lr * s.grads.W[l].V[i]
			}
			for i := 0; i < len(b.V); i++ {
				b.V[i] -= lr * s.grads.B[l].V[i]
			}
			continue
		}

		for i := 0; i < len(w.V); i++ {
			s.vW[l].V[i] = mu*s.vW[l].V[i] + s.grads.W[l].V[i]
			w.V[i] -= lr * s.vW[l].V[i]
		}
		for i := 0; i < len(b.V); i++ {
			s.vB[l].V[i] = mu*s.vB[l].V[i] + s.grads.B[l].V[i]
			b.V[i] -= lr * s.vB[l].V[i]
		}
	}

	s.Timings.Update += time.Since(updateStart)
	s.Timings.Overall += time.Since(start)

	return loss
}

// DumpState saves the optimizer state (velocity buffers, if momentum
// is enabled) into tensors for checkpointing.
func (s *SGD) DumpState(tensors map[string]*F32) {
	tensors["sgd.learning_rate"] = NewScalarF32(s.cfg.LearningRate)
	tensors["sgd.momentum"] = NewScalarF32(s.cfg.Momentum)

	for l := 0; l < len(s.vW); l++ {
		tensors[fmt.Sprintf("sgd.%d.vw", l)] = s.vW[l]
		tensors[fmt.Sprintf("sgd.%d.vb", l)] = s.vB[l]
	}
}

// LoadState restores the optimizer state saved by DumpState.
func (s *SGD) LoadState(tensors map[string]*F32) error {
	var err error
	s.cfg.LearningRate, err = loadScalar(tensors, "sgd.learning_rate")
	if err != nil {
		return err
	}
	s.cfg.Momentum, err = loadScalar(tensors, "sgd.momentum")
	if err != nil {
		return err
	}

	if s.cfg.Momentum == 0 {
		return nil
	}

	// The checkpoint may carry momentum even though this optimizer was
	// built without it, so the velocity buffers may not exist yet.
	if s.vW == nil {
		s.vW = make([]*F32, s.layers)
		s.vB = make([]*F32, s.layers)
	}

	for l := 0; l < len(s.vW); l++ {
		var ok bool
		s.vW[l], ok = tensors[fmt.Sprintf("sgd.%d.vw", l)]
		if !ok {
			return fmt.Errorf("missing tensor sgd.%d.vw", l)
		}
		s.vB[l], ok = tensors[fmt.Sprintf("sgd.%d.vb", l)]
		if !ok {
			return fmt.Errorf("missing tensor sgd.%d.vb", l)
		}
	}

	return nil
}

func loadScalar(tensors map[string]*F32, key string) (float32, error) {
	tensor, ok := tensors[key]
	if !ok {
		return 0, fmt.Errorf("missing tensor %s", key)
	}
	return tensor.At1(0), nil
}
