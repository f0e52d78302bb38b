package einsum

import (
	"errors"
	"fmt"
)

var (
	// ErrOperands is returned when the operand count or an operand's rank
	// does not match the plan.
	ErrOperands = errors.New("einsum: operands do not match plan")
	// ErrShape is returned when one label is bound to two different sizes.
	ErrShape = errors.New("einsum: inconsistent leg dimensions")
)

// Tensor is a dense row-major complex tensor. A Tensor with an empty Shape
// is a scalar holding one element.
type Tensor struct {
	Shape []int
	Data  []complex128
}

// NewTensor wraps data with the given shape without copying it.
func NewTensor(data []complex128, shape ...int) (*Tensor, error) {
	if size(shape) != len(data) {
		return nil, fmt.Errorf("%w: shape %v holds %d elements, got %d", ErrShape, shape, size(shape), len(data))
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: data}, nil
}

// Conj returns an element-wise conjugated copy.
func (t *Tensor) Conj() *Tensor {
	data := make([]complex128, len(t.Data))
	for i, v := range t.Data {
		data[i] = complex(real(v), -imag(v))
	}
	return &Tensor{Shape: append([]int(nil), t.Shape...), Data: data}
}

// OneHot returns the tensor of the given shape with a single 1 at coords.
func OneHot(shape, coords []int) *Tensor {
	t := &Tensor{Shape: append([]int(nil), shape...), Data: make([]complex128, size(shape))}
	off := 0
	for i, c := range coords {
		off = off*shape[i] + c
	}
	t.Data[off] = 1
	return t
}

func size(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

// Contract evaluates p over operands. Labels shared between operands are
// multiplied and, unless they appear in the output, summed. A label repeated
// within one operand selects its diagonal.
func Contract(p Plan, operands ...*Tensor) (*Tensor, error) {
	if len(operands) != len(p.Inputs) {
		return nil, fmt.Errorf("%w: plan has %d inputs, got %d operands", ErrOperands, len(p.Inputs), len(operands))
	}

	dims := make(map[Label]int)
	var order []Label
	for i, op := range operands {
		in := p.Inputs[i]
		if len(in) != len(op.Shape) {
			return nil, fmt.Errorf("%w: operand %d has rank %d, plan expects %d", ErrOperands, i, len(op.Shape), len(in))
		}
		for pos, l := range in {
			d, seen := dims[l]
			if !seen {
				dims[l] = op.Shape[pos]
				order = append(order, l)
				continue
			}
			if d != op.Shape[pos] {
				return nil, fmt.Errorf("%w: label %d is %d on one leg and %d on operand %d", ErrShape, l, d, op.Shape[pos], i)
			}
		}
	}

	// Output labels iterate outermost so the output offset moves in order.
	loop := make([]Label, 0, len(order))
	isOut := make(map[Label]bool, len(p.Output))
	outShape := make([]int, len(p.Output))
	for i, l := range p.Output {
		d, ok := dims[l]
		if !ok {
			return nil, fmt.Errorf("%w: output label %d is not bound by any operand", ErrOperands, l)
		}
		if isOut[l] {
			return nil, fmt.Errorf("%w: output label %d repeated", ErrOperands, l)
		}
		isOut[l] = true
		outShape[i] = d
		loop = append(loop, l)
	}
	for _, l := range order {
		if !isOut[l] {
			loop = append(loop, l)
		}
	}

	out := &Tensor{Shape: outShape, Data: make([]complex128, size(outShape))}
	extent := make([]int, len(loop))
	for k, l := range loop {
		extent[k] = dims[l]
		if extent[k] == 0 {
			return out, nil
		}
	}

	// inc[o][k] is how far operand o's offset moves when loop label k
	// advances by one.
	inc := make([][]int, len(operands))
	for o, op := range operands {
		st := strides(op.Shape)
		inc[o] = make([]int, len(loop))
		for k, l := range loop {
			for pos, pl := range p.Inputs[o] {
				if pl == l {
					inc[o][k] += st[pos]
				}
			}
		}
	}
	outInc := make([]int, len(loop))
	outSt := strides(outShape)
	for k := range p.Output {
		outInc[k] = outSt[k]
	}

	idx := make([]int, len(loop))
	off := make([]int, len(operands))
	outOff := 0
	for {
		prod := complex(1, 0)
		for o, op := range operands {
			prod *= op.Data[off[o]]
			if prod == 0 {
				break
			}
		}
		out.Data[outOff] += prod

		k := len(loop) - 1
		for ; k >= 0; k-- {
			idx[k]++
			for o := range operands {
				off[o] += inc[o][k]
			}
			outOff += outInc[k]
			if idx[k] < extent[k] {
				break
			}
			for o := range operands {
				off[o] -= inc[o][k] * extent[k]
			}
			outOff -= outInc[k] * extent[k]
			idx[k] = 0
		}
		if k < 0 {
			return out, nil
		}
	}
}
