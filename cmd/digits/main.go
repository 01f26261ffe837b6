// Command digits trains and runs a small feed-forward classifier on
// the MNIST handwritten-digit dataset.
//
// To download the dataset: `go run ./cmd/digits fetch --data-dir=data`
//
// To train: `go run ./cmd/digits train --data-dir=data`
//
// To infer: `go run ./cmd/digits infer --weights=digits-out.safetensors --image=five.png`
package main

import (
	"context"
	"flag"
	"math/rand"
	"os"

	"github.com/ahmedtd/digits/nnet"
	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&FetchCommand{}, "")
	subcommands.Register(&TrainCommand{}, "")
	subcommands.Register(&InferCommand{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

// newClassifier builds the MLP used by both train and infer:
// 784 -> 256 -> 256 -> 10, log-softmax outputs via the
// negative-log-likelihood loss.
func newClassifier(r *rand.Rand) *nnet.Network {
	return &nnet.Network{
		Loss: nnet.NegativeLogLikelihood,
		Layers: []*nnet.Dense{
			nnet.NewDense(nnet.ReLU, 28*28, 256, r),
			nnet.NewDense(nnet.ReLU, 256, 256, r),
			nnet.NewDense(nnet.Identity, 256, 10, r),
		},
	}
}
