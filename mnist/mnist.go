// Package mnist loads the MNIST handwritten-digit dataset, either
// from a keras-style mnist.npz archive or from the official gzipped
// IDX files, and groups examples into training batches.
package mnist

import (
	"fmt"

	"github.com/ahmedtd/digits/nnet"
	"github.com/sbinet/npyio/npz"
)

// Image geometry of the dataset.  Every image is flattened into a
// 784-element row.
const (
	ImageSize  = 28
	InputSize  = ImageSize * ImageSize
	NumClasses = 10
)

// Data is one split of the dataset.
type Data struct {
	// X holds the flattened images, pixels normalized to [0, 1].
	// Shape (numSamples, InputSize).
	X *nnet.F32

	// Y holds the class labels, each in [0, 9].  Shape (numSamples).
	Y *nnet.F32
}

// Len returns the number of examples in the split.
func (d *Data) Len() int {
	return d.X.Shape[0]
}

// LoadNPZ reads the train and test splits from a keras-style
// mnist.npz archive (x_train, y_train, x_test, y_test entries).
func LoadNPZ(path string) (train, test *Data, err error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("while opening mnist data file: %w", err)
	}
	defer r.Close()

	// Even though the npy format supports specifying a Fortran layout,
	// numpy always writes C-style layouts (row-major / last index
	// stored contiguously).

	xTrain, err := loadNPZImages(r, "x_train.npy")
	if err != nil {
		return nil, nil, fmt.Errorf("while reading x_train.npy: %w", err)
	}

	yTrain, err := loadNPZLabels(r, "y_train.npy")
	if err != nil {
		return nil, nil, fmt.Errorf("while reading y_train.npy: %w", err)
	}

	xTest, err := loadNPZImages(r, "x_test.npy")
	if err != nil {
		return nil, nil, fmt.Errorf("while reading x_test.npy: %w", err)
	}

	yTest, err := loadNPZLabels(r, "y_test.npy")
	if err != nil {
		return nil, nil, fmt.Errorf("while reading y_test.npy: %w", err)
	}

	return &Data{X: xTrain, Y: yTrain}, &Data{X: xTest, Y: yTest}, nil
}

func loadNPZImages(r *npz.Reader, name string) (*nnet.F32, error) {
	header := r.Header(name)
	if len(header.Descr.Shape) != 3 {
		return nil, fmt.Errorf("unexpected shape %v", header.Descr.Shape)
	}

	var raw []uint8
	if err := r.Read(name, &raw); err != nil {
		return nil, fmt.Errorf("while reading uint8 array: %w", err)
	}

	result := nnet.NewF32(header.Descr.Shape[0], header.Descr.Shape[1]*header.Descr.Shape[2])
	for i := 0; i < len(raw); i++ {
		result.V[i] = float32(raw[i]) / float32(255)
	}

	return result, nil
}

func loadNPZLabels(r *npz.Reader, name string) (*nnet.F32, error) {
	header := r.Header(name)

	var raw []uint8
	if err := r.Read(name, &raw); err != nil {
		return nil, fmt.Errorf("while reading uint8 array: %w", err)
	}

	result := nnet.NewF32(header.Descr.Shape[0])
	for i := 0; i < len(raw); i++ {
		result.V[i] = float32(raw[i])
	}

	return result, nil
}
