package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ahmedtd/digits/nnet"
)

// IDX magic numbers for the two record types MNIST uses.
const (
	idxImagesMagic = 2051
	idxLabelsMagic = 2049
)

// The official gzipped IDX file names.
const (
	TrainImagesFile = "train-images-idx3-ubyte.gz"
	TrainLabelsFile = "train-labels-idx1-ubyte.gz"
	TestImagesFile  = "t10k-images-idx3-ubyte.gz"
	TestLabelsFile  = "t10k-labels-idx1-ubyte.gz"
)

// LoadIDX reads one split from the gzipped IDX files in dir (the
// layout produced by Fetch).
func LoadIDX(dir string, train bool) (*Data, error) {
	imagesFile, labelsFile := TestImagesFile, TestLabelsFile
	if train {
		imagesFile, labelsFile = TrainImagesFile, TrainLabelsFile
	}

	x, err := readGzipped(filepath.Join(dir, imagesFile), ReadIDXImages)
	if err != nil {
		return nil, fmt.Errorf("while reading %s: %w", imagesFile, err)
	}

	y, err := readGzipped(filepath.Join(dir, labelsFile), ReadIDXLabels)
	if err != nil {
		return nil, fmt.Errorf("while reading %s: %w", labelsFile, err)
	}

	if x.Shape[0] != y.Shape[0] {
		return nil, fmt.Errorf("image/label count mismatch: %d images, %d labels", x.Shape[0], y.Shape[0])
	}

	return &Data{X: x, Y: y}, nil
}

func readGzipped(path string, read func(io.Reader) (*nnet.F32, error)) (*nnet.F32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening file: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("while opening gzip stream: %w", err)
	}
	defer gz.Close()

	return read(gz)
}

// ReadIDXImages decodes an IDX image record:
//
//	magic number: 0x00000803 (2051)
//	number of images, rows, cols: 4 bytes each, big-endian
//	pixel data: unsigned bytes (0-255)
//
// The result has shape (numImages, rows*cols), pixels normalized to
// [0, 1].
func ReadIDXImages(r io.Reader) (*nnet.F32, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("while reading magic: %w", err)
	}
	if magic != idxImagesMagic {
		return nil, fmt.Errorf("invalid magic number: got %d, want %d", magic, idxImagesMagic)
	}

	var numImages, numRows, numCols uint32
	if err := binary.Read(r, binary.BigEndian, &numImages); err != nil {
		return nil, fmt.Errorf("while reading image count: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &numRows); err != nil {
		return nil, fmt.Errorf("while reading row count: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &numCols); err != nil {
		return nil, fmt.Errorf("while reading column count: %w", err)
	}
	if numImages == 0 {
		return nil, fmt.Errorf("image record holds no images")
	}

	imageSize := int(numRows * numCols)
	raw := make([]byte, int(numImages)*imageSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("while reading pixel data: %w", err)
	}

	result := nnet.NewF32(int(numImages), imageSize)
	for i := 0; i < len(raw); i++ {
		result.V[i] = float32(raw[i]) / float32(255)
	}

	return result, nil
}

// ReadIDXLabels decodes an IDX label record:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes, big-endian
//	label data: unsigned bytes (0-9)
//
// The result has shape (numLabels).
func ReadIDXLabels(r io.Reader) (*nnet.F32, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("while reading magic: %w", err)
	}
	if magic != idxLabelsMagic {
		return nil, fmt.Errorf("invalid magic number: got %d, want %d", magic, idxLabelsMagic)
	}

	var numLabels uint32
	if err := binary.Read(r, binary.BigEndian, &numLabels); err != nil {
		return nil, fmt.Errorf("while reading label count: %w", err)
	}
	if numLabels == 0 {
		return nil, fmt.Errorf("label record holds no labels")
	}

	raw := make([]byte, numLabels)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("while reading label data: %w", err)
	}

	result := nnet.NewF32(int(numLabels))
	for i := 0; i < len(raw); i++ {
		result.V[i] = float32(raw[i])
	}

	return result, nil
}
