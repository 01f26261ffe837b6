package nnet

import (
	"slices"

	"github.com/chewxy/math32"
)

type LossFunction int

const (
	// NegativeLogLikelihood treats the final layer outputs as logits,
	// normalizes them with log-softmax, and takes the mean negative
	// log-probability assigned to the true class.
	NegativeLogLikelihood LossFunction = iota
	MeanSquaredError
)

// Clamp the per-class probability so the loss stays finite even when
// the network is confidently wrong.
const (
	minProb = 1e-7
	maxProb = 1 - 1e-7
)

// LogSoftmax writes the log-softmax of each row of logits into out.
// Both tensors have shape (batchSize, classes).  The computation is
// stabilized by subtracting the row maximum before exponentiating.
func LogSoftmax(logits, out *F32) {
	if len(logits.Shape) != 2 {
		panic("len(logits.Shape) != 2")
	}
	if !SameShape(logits, out) {
		panic("logits and out must have same shape")
	}

	batchSize := logits.Shape[0]
	classes := logits.Shape[1]

	for k := 0; k < batchSize; k++ {
		lse := logSumExpRow(logits, k, classes)
		for i := 0; i < classes; i++ {
			out.Set2(k, i, logits.At2(k, i)-lse)
		}
	}
}

// NegativeLogLikelihoodLoss computes the mean negative log-probability
// of the true labels, from raw logits.
//
// y is the ground truth labels.  Shape (batchSize), values in [0, classes)
// logits is the final layer's forward output.  Shape (batchSize, classes)
// denom is the total number of samples the loss is averaged over.
// Useful for computing the loss over a set of batches.
func NegativeLogLikelihoodLoss(y, logits *F32, denom int) float32 {
	if len(logits.Shape) != 2 {
		panic("len(logits.Shape) != 2")
	}
	batchSize := logits.Shape[0]
	classes := logits.Shape[1]

	if !slices.Equal(y.Shape, []int{batchSize}) {
		panic("y.Shape != {batchSize}")
	}

	minLogProb := math32.Log(minProb)
	maxLogProb := math32.Log(maxProb)

	loss := float32(0)
	for k := 0; k < batchSize; k++ {
		lse := logSumExpRow(logits, k, classes)

		label := int(y.At1(k))
		logProb := logits.At2(k, label) - lse
		if logProb < minLogProb {
			logProb = minLogProb
		}
		if logProb > maxLogProb {
			logProb = maxLogProb
		}

		loss += -logProb / float32(denom)
	}

	return loss
}

// NegativeLogLikelihoodGradient computes the gradient of the loss wrt
// the logits: (softmax - onehot) / batchSize.
//
// y is the ground truth labels.  Shape (batchSize)
// logits is the final layer's forward output.  Shape (batchSize, classes)
// djda (output) is storage for the gradient.  Shape (batchSize, classes)
func NegativeLogLikelihoodGradient(y, logits, djda *F32) {
	if len(logits.Shape) != 2 {
		panic("len(logits.Shape) != 2")
	}
	batchSize := logits.Shape[0]
	classes := logits.Shape[1]

	if !slices.Equal(y.Shape, []int{batchSize}) {
		panic("y.Shape != {batchSize}")
	}
	if !slices.Equal(djda.Shape, []int{batchSize, classes}) {
		panic("djda.Shape != {batchSize, classes}")
	}

	for k := 0; k < batchSize; k++ {
		// Stabilized softmax over the row: softmax(v) = softmax(v - max(v)).
		maxa := math32.Inf(-1)
		for l := 0; l < classes; l++ {
			if logits.At2(k, l) > maxa {
				maxa = logits.At2(k, l)
			}
		}

		var sum float32
		for l := 0; l < classes; l++ {
			sum += math32.Exp(logits.At2(k, l) - maxa)
		}

		label := int(y.At1(k))
		for i := 0; i < classes; i++ {
			softmax := math32.Exp(logits.At2(k, i)-maxa) / sum

			if softmax < minProb {
				softmax = minProb
			}
			if softmax > maxProb {
				softmax = maxProb
			}

			if i == label {
				djda.Set2(k, i, (softmax-1)/float32(batchSize))
			} else {
				djda.Set2(k, i, softmax/float32(batchSize))
			}
		}
	}
}

// MeanSquaredErrorLoss computes the mean squared error between the
// prediction a and the ground truth y, both of shape
// (batchSize, outputSize).  denom is the total number of samples the
// loss is averaged over.
func MeanSquaredErrorLoss(y, a *F32, denom int) float32 {
	if len(y.Shape) != 2 {
		panic("len(y.Shape) != 2")
	}
	if !SameShape(y, a) {
		panic("y and a must have same shape")
	}

	batchSize := y.Shape[0]
	outputSize := y.Shape[1]

	loss := float32(0)
	for k := 0; k < batchSize; k++ {
		for i := 0; i < outputSize; i++ {
			diff := a.At2(k, i) - y.At2(k, i)
			loss += diff * diff / 2 / float32(denom) / float32(outputSize)
		}
	}

	return loss
}

// MeanSquaredErrorGradient computes the gradient of the mean squared
// error loss wrt the prediction a, writing it into djda.
func MeanSquaredErrorGradient(y, a, djda *F32) {
	if len(y.Shape) != 2 {
		panic("len(y.Shape) != 2")
	}
	if !SameShape(y, a) {
		panic("y and a must have same shape")
	}
	if !SameShape(y, djda) {
		panic("y and djda must have same shape")
	}

	batchSize := a.Shape[0]
	outputSize := a.Shape[1]

	for k := 0; k < batchSize; k++ {
		for i := 0; i < outputSize; i++ {
			grad := (a.At2(k, i) - y.At2(k, i)) / float32(batchSize) / float32(outputSize)
			djda.Set2(k, i, grad)
		}
	}
}

// logSumExpRow computes log(sum(exp(row k))) with the usual
// max-subtraction trick.
func logSumExpRow(a *F32, k, width int) float32 {
	maxa := math32.Inf(-1)
	for l := 0; l < width; l++ {
		if a.At2(k, l) > maxa {
			maxa = a.At2(k, l)
		}
	}

	var sum float32
	for l := 0; l < width; l++ {
		sum += math32.Exp(a.At2(k, l) - maxa)
	}

	return maxa + math32.Log(sum)
}
