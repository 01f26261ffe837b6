package nnet

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestLogSoftmaxRowsNormalize(t *testing.T) {
	r := rand.New(rand.NewSource(12345))

	logits := NewF32(4, 10)
	for i := range logits.V {
		logits.V[i] = float32(r.NormFloat64()) * 3
	}

	out := NewF32(4, 10)
	LogSoftmax(logits, out)

	for k := 0; k < 4; k++ {
		var sum float32
		for i := 0; i < 10; i++ {
			sum += math32.Exp(out.At2(k, i))
		}
		if math32.Abs(sum-1) > 1e-5 {
			t.Errorf("row %d: exp(log-softmax) sums to %v, want 1", k, sum)
		}
	}
}

func TestNegativeLogLikelihoodMatchesLogSoftmax(t *testing.T) {
	r := rand.New(rand.NewSource(12345))

	batchSize := 8
	classes := 10

	logits := NewF32(batchSize, classes)
	for i := range logits.V {
		logits.V[i] = float32(r.NormFloat64())
	}
	y := NewF32(batchSize)
	for k := 0; k < batchSize; k++ {
		y.Set1(k, float32(r.Intn(classes)))
	}

	got := NegativeLogLikelihoodLoss(y, logits, batchSize)

	logProbs := NewF32(batchSize, classes)
	LogSoftmax(logits, logProbs)
	var want float32
	for k := 0; k < batchSize; k++ {
		want += -logProbs.At2(k, int(y.At1(k))) / float32(batchSize)
	}

	if math32.Abs(got-want) > 1e-5 {
		t.Errorf("loss = %v, want mean negative log-probability %v", got, want)
	}
}

func TestNegativeLogLikelihoodGradientNumerically(t *testing.T) {
	r := rand.New(rand.NewSource(12345))

	batchSize := 4
	classes := 5

	logits := NewF32(batchSize, classes)
	for i := range logits.V {
		logits.V[i] = float32(r.NormFloat64())
	}
	y := NewF32(batchSize)
	for k := 0; k < batchSize; k++ {
		y.Set1(k, float32(r.Intn(classes)))
	}

	analytic := NewF32(batchSize, classes)
	NegativeLogLikelihoodGradient(y, logits, analytic)

	numeric := NewF32(batchSize, classes)
	h := float32(1e-2)
	for i := range logits.V {
		orig := logits.V[i]
		logits.V[i] = orig + h
		plus := NegativeLogLikelihoodLoss(y, logits, batchSize)
		logits.V[i] = orig - h
		minus := NegativeLogLikelihoodLoss(y, logits, batchSize)
		logits.V[i] = orig
		numeric.V[i] = (plus - minus) / (2 * h)
	}

	if diff := cmp.Diff(numeric.V, analytic.V, cmpopts.EquateApprox(0.01, 1e-3)); diff != "" {
		t.Errorf("analytic gradient disagrees with central difference (-numeric +analytic):\n%s", diff)
	}
}

func TestMeanSquaredErrorGradientNumerically(t *testing.T) {
	r := rand.New(rand.NewSource(12345))

	batchSize := 4
	outputSize := 3

	a := NewF32(batchSize, outputSize)
	y := NewF32(batchSize, outputSize)
	for i := range a.V {
		a.V[i] = float32(r.NormFloat64())
		y.V[i] = float32(r.NormFloat64())
	}

	analytic := NewF32(batchSize, outputSize)
	MeanSquaredErrorGradient(y, a, analytic)

	numeric := NewF32(batchSize, outputSize)
	h := float32(1e-2)
	for i := range a.V {
		orig := a.V[i]
		a.V[i] = orig + h
		plus := MeanSquaredErrorLoss(y, a, batchSize)
		a.V[i] = orig - h
		minus := MeanSquaredErrorLoss(y, a, batchSize)
		a.V[i] = orig
		numeric.V[i] = (plus - minus) / (2 * h)
	}

	if diff := cmp.Diff(numeric.V, analytic.V, cmpopts.EquateApprox(0.01, 1e-3)); diff != "" {
		t.Errorf("analytic gradient disagrees with central difference (-numeric +analytic):\n%s", diff)
	}
}
