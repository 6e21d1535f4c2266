package executor

import (
	"fmt"

	"github.com/rbazzell/distributed-systems-project/internal/matrix"
	"github.com/rbazzell/distributed-systems-project/internal/model"
)

// arith chains matrix additions and keeps the first error.
type arith struct {
	err error
}

func (a *arith) add(x, y matrix.Matrix) matrix.Matrix {
	if a.err != nil {
		return nil
	}
	m, err := matrix.Add(x, y)
	a.err = err
	return m
}

func (a *arith) sub(x, y matrix.Matrix) matrix.Matrix {
	if a.err != nil {
		return nil
	}
	m, err := matrix.Sub(x, y)
	a.err = err
	return m
}

// Operands splits a and b into quadrants and returns the seven Strassen
// operand pairs, slot i holding the factors of M(i+1).
func Operands(a, b matrix.Matrix) ([model.NumProducts][2]matrix.Matrix, error) {
	var pairs [model.NumProducts][2]matrix.Matrix
	if a.Shape() != b.Shape() {
		return pairs, fmt.Errorf("%w: strassen operands %s and %s differ", matrix.ErrDimension, a.Shape(), b.Shape())
	}
	a11, a12, a21, a22, err := matrix.Split(a)
	if err != nil {
		return pairs, fmt.Errorf("split a: %w", err)
	}
	b11, b12, b21, b22, err := matrix.Split(b)
	if err != nil {
		return pairs, fmt.Errorf("split b: %w", err)
	}

	var ar arith
	pairs = [model.NumProducts][2]matrix.Matrix{
		{ar.add(a11, a22), ar.add(b11, b22)},
		{ar.add(a21, a22), b11},
		{a11, ar.sub(b12, b22)},
		{a22, ar.sub(b21, b11)},
		{ar.add(a11, a12), b22},
		{ar.sub(a21, a11), ar.add(b11, b12)},
		{ar.sub(a12, a22), ar.add(b21, b22)},
	}
	if ar.err != nil {
		return pairs, fmt.Errorf("build operands: %w", ar.err)
	}
	return pairs, nil
}

// Combine assembles the product from the seven Strassen sub-products.
//
//	C11 = M1 + M4 - M5 + M7
//	C12 = M3 + M5
//	C21 = M2 + M4
//	C22 = M1 - M2 + M3 + M6
func Combine(p [model.NumProducts]matrix.Matrix) (matrix.Matrix, error) {
	m1, m2, m3, m4, m5, m6, m7 := p[0], p[1], p[2], p[3], p[4], p[5], p[6]

	var ar arith
	c11 := ar.add(ar.sub(ar.add(m1, m4), m5), m7)
	c12 := ar.add(m3, m5)
	c21 := ar.add(m2, m4)
	c22 := ar.add(ar.add(ar.sub(m1, m2), m3), m6)
	if ar.err != nil {
		return nil, fmt.Errorf("combine products: %w", ar.err)
	}
	return matrix.Join(c11, c12, c21, c22)
}
