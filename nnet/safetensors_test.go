package nnet

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSafeTensorsRoundTripsNetwork(t *testing.T) {
	r := rand.New(rand.NewSource(12345))

	net := &Network{
		Loss: NegativeLogLikelihood,
		Layers: []*Dense{
			NewDense(ReLU, 6, 4, r),
			NewDense(Identity, 4, 3, r),
		},
	}

	tensors := map[string]*F32{}
	net.DumpTensors(tensors)

	var buf bytes.Buffer
	if err := WriteSafeTensors(&buf, tensors); err != nil {
		t.Fatalf("WriteSafeTensors: %v", err)
	}

	got, err := ReadSafeTensors(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadSafeTensors: %v", err)
	}

	if diff := cmp.Diff(tensors, got); diff != "" {
		t.Errorf("tensors changed across write/read (-want +got):\n%s", diff)
	}

	// Restoring into a freshly-initialized twin must reproduce the
	// original parameters.
	r2 := rand.New(rand.NewSource(999))
	restored := &Network{
		Loss: NegativeLogLikelihood,
		Layers: []*Dense{
			NewDense(ReLU, 6, 4, r2),
			NewDense(Identity, 4, 3, r2),
		},
	}
	if err := restored.LoadTensors(got); err != nil {
		t.Fatalf("LoadTensors: %v", err)
	}

	for l := range net.Layers {
		if diff := cmp.Diff(net.Layers[l].W, restored.Layers[l].W); diff != "" {
			t.Errorf("layer %d weights (-want +got):\n%s", l, diff)
		}
		if diff := cmp.Diff(net.Layers[l].B, restored.Layers[l].B); diff != "" {
			t.Errorf("layer %d biases (-want +got):\n%s", l, diff)
		}
	}
}

func TestLoadTensorsRejectsWrongShape(t *testing.T) {
	r := rand.New(rand.NewSource(12345))

	net := &Network{
		Loss:   NegativeLogLikelihood,
		Layers: []*Dense{NewDense(Identity, 4, 3, r)},
	}

	tensors := map[string]*F32{
		"layers.0.weight": NewF32(3, 5), // wrong input size
		"layers.0.bias":   NewF32(3),
	}

	if err := net.LoadTensors(tensors); err == nil {
		t.Error("LoadTensors accepted a weight tensor with the wrong shape")
	}
}

func TestSGDStateRoundTrips(t *testing.T) {
	r := rand.New(rand.NewSource(12345))

	net := &Network{
		Loss:   NegativeLogLikelihood,
		Layers: []*Dense{NewDense(Identity, 4, 3, r)},
	}

	x := NewF32(2, 4)
	for i := range x.V {
		x.V[i] = float32(r.NormFloat64())
	}
	y := NewF32(2)

	sgd := NewSGD(net, 2, SGDConfig{LearningRate: 0.1, Momentum: 0.9})
	sgd.Step(net, x, y) // populate velocities

	tensors := map[string]*F32{}
	sgd.DumpState(tensors)

	var buf bytes.Buffer
	if err := WriteSafeTensors(&buf, tensors); err != nil {
		t.Fatalf("WriteSafeTensors: %v", err)
	}
	got, err := ReadSafeTensors(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadSafeTensors: %v", err)
	}

	restored := NewSGD(net, 2, SGDConfig{LearningRate: 0.1, Momentum: 0.9})
	if err := restored.LoadState(got); err != nil {
		t.Fatalf("LoadState: %v", err)
	}

	for l := range sgd.vW {
		if diff := cmp.Diff(sgd.vW[l], restored.vW[l]); diff != "" {
			t.Errorf("layer %d weight velocity (-want +got):\n%s", l, diff)
		}
		if diff := cmp.Diff(sgd.vB[l], restored.vB[l]); diff != "" {
			t.Errorf("layer %d bias velocity (-want +got):\n%s", l, diff)
		}
	}
}

// TestSGDMomentumResume restores a momentum checkpoint into an
// optimizer that was built without momentum (the resume flow only
// knows the checkpoint carries momentum after reading it) and
// verifies training continues exactly as if it had never stopped.
func TestSGDMomentumResume(t *testing.T) {
	r := rand.New(rand.NewSource(12345))

	net := &Network{
		Loss: NegativeLogLikelihood,
		Layers: []*Dense{
			NewDense(ReLU, 4, 6, r),
			NewDense(Identity, 6, 3, r),
		},
	}

	batchSize := 8
	x := NewF32(batchSize, 4)
	for i := range x.V {
		x.V[i] = float32(r.NormFloat64())
	}
	y := NewF32(batchSize)
	for k := 0; k < batchSize; k++ {
		y.Set1(k, float32(r.Intn(3)))
	}

	// A twin network with identical parameters, trained without
	// interruption, is the reference.
	twin := &Network{Loss: net.Loss}
	for _, lay := range net.Layers {
		w := ZerosLike(lay.W)
		copy(w.V, lay.W.V)
		b := ZerosLike(lay.B)
		copy(b.V, lay.B.V)
		twin.Layers = append(twin.Layers, &Dense{
			Act: lay.Act, W: w, B: b,
			InputSize: lay.InputSize, OutputSize: lay.OutputSize,
		})
	}

	sgd := NewSGD(net, batchSize, SGDConfig{LearningRate: 0.05, Momentum: 0.9})
	twinSGD := NewSGD(twin, batchSize, SGDConfig{LearningRate: 0.05, Momentum: 0.9})

	sgd.Step(net, x, y)
	twinSGD.Step(twin, x, y)

	tensors := map[string]*F32{}
	sgd.DumpState(tensors)

	var buf bytes.Buffer
	if err := WriteSafeTensors(&buf, tensors); err != nil {
		t.Fatalf("WriteSafeTensors: %v", err)
	}
	got, err := ReadSafeTensors(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadSafeTensors: %v", err)
	}

	// Resume with the default config: no momentum flag, so no velocity
	// buffers until LoadState discovers them in the checkpoint.
	resumed := NewSGD(net, batchSize, SGDConfig{LearningRate: 0.05})
	if err := resumed.LoadState(got); err != nil {
		t.Fatalf("LoadState: %v", err)
	}

	resumed.Step(net, x, y)
	twinSGD.Step(twin, x, y)

	for l := range net.Layers {
		if diff := cmp.Diff(twin.Layers[l].W, net.Layers[l].W); diff != "" {
			t.Errorf("layer %d weights diverged after resume (-uninterrupted +resumed):\n%s", l, diff)
		}
		if diff := cmp.Diff(twin.Layers[l].B, net.Layers[l].B); diff != "" {
			t.Errorf("layer %d biases diverged after resume (-uninterrupted +resumed):\n%s", l, diff)
		}
	}
}

func TestSGDLoadStateRejectsMissingVelocities(t *testing.T) {
	r := rand.New(rand.NewSource(12345))

	net := &Network{
		Loss:   NegativeLogLikelihood,
		Layers: []*Dense{NewDense(Identity, 4, 3, r)},
	}

	tensors := map[string]*F32{
		"sgd.learning_rate": NewScalarF32(0.05),
		"sgd.momentum":      NewScalarF32(0.9),
		// No velocity tensors.
	}

	sgd := NewSGD(net, 2, SGDConfig{LearningRate: 0.05})
	if err := sgd.LoadState(tensors); err == nil {
		t.Error("LoadState accepted a momentum checkpoint with no velocity tensors")
	}
}
