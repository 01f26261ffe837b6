// Package nnet implements a small feed-forward neural network toolkit:
// flat float32 tensors, dense layers, loss functions, reverse-mode
// gradient computation, and gradient-descent optimizers.
package nnet

import (
	"fmt"
	"slices"
)

// F32 is a dense float32 tensor.  Storage is flat and row-major (the
// last index is contiguous).
type F32 struct {
	V     []float32
	Shape []int
}

func NewF32(shape ...int) *F32 {
	for _, s := range shape {
		if s <= 0 {
			panic(fmt.Sprintf("invalid shape: %v", shape))
		}
	}
	size := 1
	for _, s := range shape {
		size *= s
	}

	return &F32{
		V:     make([]float32, size),
		Shape: shape,
	}
}

func NewScalarF32(scalar float32) *F32 {
	return &F32{
		V:     []float32{scalar},
		Shape: []int{1},
	}
}

// ZerosLike returns a zero tensor with the same shape as in.
func ZerosLike(in *F32) *F32 {
	shapeCopy := make([]int, len(in.Shape))
	copy(shapeCopy, in.Shape)
	return &F32{
		V:     make([]float32, len(in.V)),
		Shape: shapeCopy,
	}
}

// Transpose writes the transpose of in into out.  Only rank-2 tensors
// can be transposed.
func Transpose(in, out *F32) {
	if len(in.Shape) != 2 {
		panic("cannot transpose if len(shape) != 2")
	}
	if len(in.V) != len(out.V) {
		panic("output storage is not correctly sized to store the transpose of the input")
	}
	out.Shape = []int{in.Shape[1], in.Shape[0]}

	for i := 0; i < in.Shape[0]; i++ {
		for j := 0; j < in.Shape[1]; j++ {
			out.Set2(j, i, in.At2(i, j))
		}
	}
}

// Reshape reinterprets the tensor with a new shape.  The overall
// number of elements must be unchanged.  The returned tensor shares
// storage with the input tensor (no data is copied).
func Reshape(a *F32, shape ...int) *F32 {
	newSize := 1
	for _, s := range shape {
		if s <= 0 {
			panic(fmt.Sprintf("invalid shape: %v", shape))
		}
		newSize *= s
	}

	if newSize != len(a.V) {
		panic("invalid reshape")
	}

	return &F32{
		V:     a.V,
		Shape: shape,
	}
}

func (a *F32) At1(idx int) float32 {
	return a.V[idx]
}

func (a *F32) At2(idx0, idx1 int) float32 {
	if len(a.Shape) != 2 {
		panic("At2() invalid for len(shape) != 2")
	}
	return a.V[idx0*a.Shape[1]+idx1]
}

func (a *F32) Set1(idx int, v float32) {
	a.V[idx] = v
}

func (a *F32) Set2(idx0, idx1 int, v float32) {
	if len(a.Shape) != 2 {
		panic("Set2() invalid for len(shape) != 2")
	}
	a.V[idx0*a.Shape[1]+idx1] = v
}

// Zero resets every element to zero, keeping the shape.
func (a *F32) Zero() {
	clear(a.V)
}

// SameShape reports whether a and b have identical shapes.
func SameShape(a, b *F32) bool {
	return slices.Equal(a.Shape, b.Shape)
}
