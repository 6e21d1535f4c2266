// Package matrix provides the exact-arithmetic integer matrix used across the
// coordinator and workers, along with the padding, quadrant split and join
// helpers that Strassen decomposition depends on.
package matrix

import (
	"errors"
	"fmt"
)

// ErrDimension is returned when operand shapes are incompatible or a matrix
// cannot be split into equal quadrants.
var ErrDimension = errors.New("dimension error")

// Matrix is a row-major grid of integers. Over the wire it is a JSON array
// of equal-length row arrays.
type Matrix [][]int64

// Shape holds explicit matrix dimensions.
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Rows, s.Cols)
}

// Zeros allocates a rows×cols matrix of zeros backed by one contiguous slice.
func Zeros(rows, cols int) Matrix {
	backing := make([]int64, rows*cols)
	m := make(Matrix, rows)
	for i := range m {
		m[i] = backing[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return m
}

// Rows returns the number of rows.
func (m Matrix) Rows() int {
	return len(m)
}

// Cols returns the number of columns, or 0 for an empty matrix.
func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Shape returns the matrix dimensions.
func (m Matrix) Shape() Shape {
	return Shape{Rows: m.Rows(), Cols: m.Cols()}
}

// IsSquare reports whether the matrix has as many rows as columns.
func (m Matrix) IsSquare() bool {
	return m.Rows() == m.Cols()
}

// Validate checks that the matrix is non-empty and rectangular.
func (m Matrix) Validate() error {
	if len(m) == 0 || len(m[0]) == 0 {
		return fmt.Errorf("%w: empty matrix", ErrDimension)
	}
	cols := len(m[0])
	for i, row := range m {
		if len(row) != cols {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimension, i, len(row), cols)
		}
	}
	return nil
}

// Clone returns a deep copy of m.
func (m Matrix) Clone() Matrix {
	out := Zeros(m.Rows(), m.Cols())
	for i, row := range m {
		copy(out[i], row)
	}
	return out
}

// Equal reports whether a and b have the same shape and elements.
func Equal(a, b Matrix) bool {
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return false
	}
	for i := range a {
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

// Add returns a + b.
func Add(a, b Matrix) (Matrix, error) {
	return elementwise(a, b, func(x, y int64) int64 { return x + y })
}

// Sub returns a - b.
func Sub(a, b Matrix) (Matrix, error) {
	return elementwise(a, b, func(x, y int64) int64 { return x - y })
}

func elementwise(a, b Matrix, op func(x, y int64) int64) (Matrix, error) {
	if a.Shape() != b.Shape() {
		return nil, fmt.Errorf("%w: %s and %s differ", ErrDimension, a.Shape(), b.Shape())
	}
	out := Zeros(a.Rows(), a.Cols())
	for i := range a {
		for j := range a[i] {
			out[i][j] = op(a[i][j], b[i][j])
		}
	}
	return out, nil
}

// Mul returns the direct product a·b. It is the leaf operation workers run
// once a sub-problem reaches the base case.
func Mul(a, b Matrix) (Matrix, error) {
	if a.Cols() != b.Rows() {
		return nil, fmt.Errorf("%w: cannot multiply %s by %s", ErrDimension, a.Shape(), b.Shape())
	}
	out := Zeros(a.Rows(), b.Cols())
	for i := range a {
		for k, aik := range a[i] {
			if aik == 0 {
				continue
			}
			for j, bkj := range b[k] {
				out[i][j] += aik * bkj
			}
		}
	}
	return out, nil
}
