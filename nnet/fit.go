package nnet

import (
	"log"
	"math/rand"
)

// Optimizer runs one full training step (zero accumulators, forward,
// loss, backward, update) over a batch, returning the batch loss
// evaluated before the update.
type Optimizer interface {
	Step(net *Network, x, y *F32) float32
}

// FitConfig controls the outer training loop.
type FitConfig struct {
	// Epochs is the number of full passes over the batches.
	// Termination is purely iteration-count based.
	Epochs int

	// Rand, if non-nil, reshuffles the batch order between epochs.
	Rand *rand.Rand

	// Quiet suppresses the per-epoch log line.
	Quiet bool

	// EpochEnd, if non-nil, is invoked after each epoch with the mean
	// loss over that epoch's batches.
	EpochEnd func(epoch int, meanLoss float32)
}

// Fit trains net with opt for a fixed number of epochs, running one
// optimizer step per batch.  It returns the mean loss per epoch (the
// sum of step losses divided by the number of batches).
//
// xs and ys are parallel slices of equally-sized batches.  Fit
// reorders them in place between epochs when cfg.Rand is set.
func Fit(net *Network, opt Optimizer, xs, ys []*F32, cfg FitConfig) []float32 {
	if len(xs) != len(ys) {
		panic("len(xs) != len(ys)")
	}
	if len(xs) == 0 {
		panic("no batches")
	}

	epochLosses := make([]float32, 0, cfg.Epochs)

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		lossSum := float32(0)
		for batch := 0; batch < len(xs); batch++ {
			lossSum += opt.Step(net, xs[batch], ys[batch])
		}
		meanLoss := lossSum / float32(len(xs))
		epochLosses = append(epochLosses, meanLoss)

		if !cfg.Quiet {
			log.Printf("epoch %d mean-loss=%f", epoch, meanLoss)
		}
		if cfg.EpochEnd != nil {
			cfg.EpochEnd(epoch, meanLoss)
		}

		// Present the batches in a different order next epoch.
		if cfg.Rand != nil && epoch < cfg.Epochs-1 {
			cfg.Rand.Shuffle(len(xs), func(i, j int) {
				xs[i], xs[j] = xs[j], xs[i]
				ys[i], ys[j] = ys[j], ys[i]
			})
		}
	}

	return epochLosses
}
