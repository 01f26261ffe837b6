package nnet

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"unsafe"
)

type safeTensorInfo struct {
	DType       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets []int  `json:"data_offsets"`
}

// WriteSafeTensors writes the tensor map in safetensors format: an
// 8-byte little-endian header length, a JSON header, then the raw F32
// payloads in sorted key order.
func WriteSafeTensors(w io.Writer, tensors map[string]*F32) error {
	header := map[string]safeTensorInfo{}
	dataOffset := 0

	keys := []string{}
	for k := range tensors {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		begin := dataOffset
		dataOffset += len(tensors[k].V) * 4
		end := dataOffset

		header[k] = safeTensorInfo{
			DType:       "F32",
			Shape:       tensors[k].Shape,
			DataOffsets: []int{begin, end},
		}
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("while marshaling header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerBytes))); err != nil {
		return fmt.Errorf("while writing header length: %w", err)
	}

	if _, err := w.Write(headerBytes); err != nil {
		return fmt.Errorf("while writing header: %w", err)
	}

	for _, k := range keys {
		if err := binary.Write(w, binary.LittleEndian, tensors[k].V); err != nil {
			return fmt.Errorf("while writing %s values: %w", k, err)
		}
	}

	return nil
}

// ReadSafeTensors reads a tensor map written by WriteSafeTensors.  The
// reader must also implement io.ReaderAt so payloads can be read at
// their header-declared offsets.
func ReadSafeTensors(r io.Reader) (map[string]*F32, error) {
	rat, ok := r.(io.ReaderAt)
	if !ok {
		return nil, fmt.Errorf("reader does not support ReadAt")
	}

	var headerLen uint64
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("while reading header length: %w", err)
	}

	headerBytes := make([]byte, int(headerLen))
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("while reading header: %w", err)
	}

	header := map[string]safeTensorInfo{}
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("while parsing header: %w", err)
	}

	tensors := map[string]*F32{}
	for k, hdr := range header {
		if hdr.DType != "F32" {
			return nil, fmt.Errorf("unsupported dtype %s", hdr.DType)
		}
		if len(hdr.Shape) > 3 {
			return nil, fmt.Errorf("unsupported shape %v", hdr.Shape)
		}

		size := 1
		for _, s := range hdr.Shape {
			if s < 1 {
				return nil, fmt.Errorf("bad shape %v", hdr.Shape)
			}
			size *= s
		}

		sizeBytes := size * 4
		valBytes := make([]byte, sizeBytes)
		if _, err := rat.ReadAt(valBytes, 8+int64(headerLen)+int64(hdr.DataOffsets[0])); err != nil {
			return nil, fmt.Errorf("while reading bytes for %s: %w", k, err)
		}

		tensors[k] = &F32{
			V:     castToF32(valBytes),
			Shape: hdr.Shape,
		}
	}

	return tensors, nil
}

func castToF32(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// DumpTensors saves the network parameters into tensors for
// checkpointing, keyed by layer index.
func (net *Network) DumpTensors(tensors map[string]*F32) {
	for l := 0; l < len(net.Layers); l++ {
		tensors[fmt.Sprintf("layers.%d.weight", l)] = net.Layers[l].W
		tensors[fmt.Sprintf("layers.%d.bias", l)] = net.Layers[l].B
	}
}

// LoadTensors restores the network parameters saved by DumpTensors,
// checking that every tensor matches the layer shape it is loaded
// into.
func (net *Network) LoadTensors(tensors map[string]*F32) error {
	for l := 0; l < len(net.Layers); l++ {
		weightKey := fmt.Sprintf("layers.%d.weight", l)
		weightTensor, ok := tensors[weightKey]
		if !ok {
			return fmt.Errorf("no entry for %s", weightKey)
		}
		wantWeightShape := []int{net.Layers[l].OutputSize, net.Layers[l].InputSize}
		if !slices.Equal(weightTensor.Shape, wantWeightShape) {
			return fmt.Errorf("wrong shape for %s; got %v want %v", weightKey, weightTensor.Shape, wantWeightShape)
		}
		net.Layers[l].W = weightTensor

		biasKey := fmt.Sprintf("layers.%d.bias", l)
		biasTensor, ok := tensors[biasKey]
		if !ok {
			return fmt.Errorf("no entry for %s", biasKey)
		}
		wantBiasShape := []int{net.Layers[l].OutputSize}
		if !slices.Equal(biasTensor.Shape, wantBiasShape) {
			return fmt.Errorf("wrong shape for %s; got %v want %v", biasKey, biasTensor.Shape, wantBiasShape)
		}
		net.Layers[l].B = biasTensor
	}

	return nil
}
