package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"math/rand"
	"os"

	"github.com/ahmedtd/digits/mnist"
	"github.com/ahmedtd/digits/nnet"
	"github.com/google/subcommands"

	_ "image/jpeg"
	_ "image/png"
)

type InferCommand struct {
	weightsFile string
	imageFile   string
}

var _ subcommands.Command = (*InferCommand)(nil)

func (*InferCommand) Name() string {
	return "infer"
}

func (*InferCommand) Synopsis() string {
	return "Classify a digit image using trained weights"
}

func (*InferCommand) Usage() string {
	return ``
}

func (c *InferCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.weightsFile, "weights", "digits-out.safetensors", "Path to the weights produced by the train command")
	f.StringVar(&c.imageFile, "image", "", "Path to the image to classify")
}

func (c *InferCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *InferCommand) executeErr(ctx context.Context) error {
	r := rand.New(rand.NewSource(12345))

	net := newClassifier(r)

	if err := c.loadWeights(net); err != nil {
		return fmt.Errorf("while loading weights: %w", err)
	}

	x, err := c.loadImage()
	if err != nil {
		return fmt.Errorf("while loading image: %w", err)
	}

	logProbs := net.Predict(x)
	digit := nnet.ArgmaxRow(logProbs, 0)

	log.Printf("Prediction: %d", digit)
	for i := 0; i < mnist.NumClasses; i++ {
		log.Printf("  log-prob[%d] = %f", i, logProbs.At2(0, i))
	}
	return nil
}

func (c *InferCommand) loadImage() (*nnet.F32, error) {
	f, err := os.Open(c.imageFile)
	if err != nil {
		return nil, fmt.Errorf("while opening image file: %w", err)
	}
	defer f.Close()

	rawImg, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("while decoding image: %w", err)
	}

	rawBounds := rawImg.Bounds()
	if rawBounds.Dx() != mnist.ImageSize || rawBounds.Dy() != mnist.ImageSize {
		return nil, fmt.Errorf("image must be %dx%d pixels, got %dx%d",
			mnist.ImageSize, mnist.ImageSize, rawBounds.Dx(), rawBounds.Dy())
	}

	out := nnet.NewF32(1, mnist.InputSize)

	for y := 0; y < mnist.ImageSize; y++ {
		for x := 0; x < mnist.ImageSize; x++ {
			px := rawImg.At(rawBounds.Min.X+x, rawBounds.Min.Y+y)
			v := float32(color.GrayModel.Convert(px).(color.Gray).Y) / float32(255)
			out.Set2(0, y*mnist.ImageSize+x, v)
		}
	}

	return out, nil
}

func (c *InferCommand) loadWeights(net *nnet.Network) error {
	f, err := os.Open(c.weightsFile)
	if err != nil {
		return fmt.Errorf("while opening weights file: %w", err)
	}
	defer f.Close()

	tensors, err := nnet.ReadSafeTensors(f)
	if err != nil {
		return fmt.Errorf("while reading weight tensors: %w", err)
	}

	if err := net.LoadTensors(tensors); err != nil {
		return fmt.Errorf("while restoring network: %w", err)
	}

	return nil
}
