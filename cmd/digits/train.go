package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime/pprof"

	"github.com/ahmedtd/digits/mnist"
	"github.com/ahmedtd/digits/nnet"
	"github.com/google/subcommands"
)

type TrainCommand struct {
	dataFile string
	dataDir  string

	epochs       int
	batchSize    int
	learningRate float64
	momentum     float64
	optimizer    string
	seed         int64

	fromCheckpointFile string
	outputWeightFile   string

	cpuProfileFile string
}

var _ subcommands.Command = (*TrainCommand)(nil)

func (*TrainCommand) Name() string {
	return "train"
}

func (*TrainCommand) Synopsis() string {
	return "Train the model"
}

func (*TrainCommand) Usage() string {
	return ``
}

func (c *TrainCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dataFile, "data-file", "", "Path to a keras-style mnist.npz file")
	f.StringVar(&c.dataDir, "data-dir", "", "Directory holding the gzipped IDX files (see the fetch command)")

	f.IntVar(&c.epochs, "epochs", 5, "Number of passes over the training batches")
	f.IntVar(&c.batchSize, "batch-size", 2048, "Training batch size")
	f.Float64Var(&c.learningRate, "learning-rate", 0.1, "SGD learning rate")
	f.Float64Var(&c.momentum, "momentum", 0, "SGD momentum, in [0, 1)")
	f.StringVar(&c.optimizer, "optimizer", "sgd", "Parameter update rule (sgd or adam)")
	f.Int64Var(&c.seed, "seed", 12345, "Seed for weight init and batch shuffling")

	f.StringVar(&c.fromCheckpointFile, "from-checkpoint", "", "Path to initial weights to load for training")
	f.StringVar(&c.outputWeightFile, "output-weight-file", "digits-out.safetensors", "Path to save trained weights (safetensors format)")

	f.StringVar(&c.cpuProfileFile, "cpu-profile", "", "Write a CPU profile")
}

func (c *TrainCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *TrainCommand) executeErr(ctx context.Context) error {
	if c.cpuProfileFile != "" {
		f, err := os.Create(c.cpuProfileFile)
		if err != nil {
			return fmt.Errorf("while creating CPU profile file: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("while starting CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	train, test, err := c.loadData()
	if err != nil {
		return fmt.Errorf("while loading MNIST data set: %w", err)
	}

	r := rand.New(rand.NewSource(c.seed))

	xs, ys := mnist.Batches(train, c.batchSize, r)
	log.Printf("Data loaded and batched into %d batches", len(xs))

	net := newClassifier(r)

	var opt nnet.Optimizer
	switch c.optimizer {
	case "sgd":
		opt = nnet.NewSGD(net, c.batchSize, nnet.SGDConfig{
			LearningRate: float32(c.learningRate),
			Momentum:     float32(c.momentum),
		})
	case "adam":
		opt = nnet.NewAdam(net, c.batchSize, nnet.AdamConfig{
			Alpha: float32(c.learningRate),
		})
	default:
		return fmt.Errorf("unknown optimizer %q", c.optimizer)
	}

	if c.fromCheckpointFile != "" {
		if err := c.loadCheckpoint(net, opt); err != nil {
			return fmt.Errorf("while loading initial checkpoint: %w", err)
		}
	}

	nnet.Fit(net, opt, xs, ys, nnet.FitConfig{
		Epochs: c.epochs,
		Rand:   r,
		Quiet:  true,
		EpochEnd: func(epoch int, meanLoss float32) {
			if err := c.writeCheckpoint(net, opt); err != nil {
				log.Printf("Error writing checkpoint: %v", err)
			}

			log.Printf("epoch %d mean-loss=%f training-pct=%.1f testing-pct=%.1f",
				epoch,
				meanLoss,
				accuracy(net, train),
				accuracy(net, test),
			)
		},
	})

	return nil
}

func (c *TrainCommand) loadData() (train, test *mnist.Data, err error) {
	switch {
	case c.dataFile != "":
		return mnist.LoadNPZ(c.dataFile)
	case c.dataDir != "":
		train, err = mnist.LoadIDX(c.dataDir, true)
		if err != nil {
			return nil, nil, err
		}
		test, err = mnist.LoadIDX(c.dataDir, false)
		if err != nil {
			return nil, nil, err
		}
		return train, test, nil
	default:
		return nil, nil, fmt.Errorf("one of --data-file or --data-dir is required")
	}
}

// accuracy returns the percentage of examples whose argmax
// log-probability matches the label.
func accuracy(net *nnet.Network, d *mnist.Data) float32 {
	pred := net.Predict(d.X)

	numCorrect := 0
	for k := 0; k < pred.Shape[0]; k++ {
		if float32(nnet.ArgmaxRow(pred, k)) == d.Y.At1(k) {
			numCorrect++
		}
	}

	return float32(numCorrect) / float32(d.Len()) * float32(100)
}

// checkpointer is implemented by optimizers whose state can ride
// along in the weight checkpoint.
type checkpointer interface {
	DumpState(tensors map[string]*nnet.F32)
	LoadState(tensors map[string]*nnet.F32) error
}

func (c *TrainCommand) loadCheckpoint(net *nnet.Network, opt nnet.Optimizer) error {
	f, err := os.Open(c.fromCheckpointFile)
	if err != nil {
		return fmt.Errorf("while opening checkpoint file: %w", err)
	}
	defer f.Close()

	tensors, err := nnet.ReadSafeTensors(f)
	if err != nil {
		return fmt.Errorf("while reading checkpoint tensors: %w", err)
	}

	if err := net.LoadTensors(tensors); err != nil {
		return fmt.Errorf("while restoring network: %w", err)
	}

	if cp, ok := opt.(checkpointer); ok {
		if err := cp.LoadState(tensors); err != nil {
			return fmt.Errorf("while restoring optimizer state: %w", err)
		}
	}

	return nil
}

func (c *TrainCommand) writeCheckpoint(net *nnet.Network, opt nnet.Optimizer) error {
	f, err := os.Create(c.outputWeightFile)
	if err != nil {
		return fmt.Errorf("while creating checkpoint file: %w", err)
	}
	defer f.Close()

	tensors := map[string]*nnet.F32{}

	net.DumpTensors(tensors)
	if cp, ok := opt.(checkpointer); ok {
		cp.DumpState(tensors)
	}

	if err := nnet.WriteSafeTensors(f, tensors); err != nil {
		return fmt.Errorf("while writing checkpoint tensors: %w", err)
	}

	return nil
}
