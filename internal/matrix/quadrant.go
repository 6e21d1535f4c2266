package matrix

import "fmt"

// NextPowerOfTwo returns the smallest power of two that is >= n, and 1 for
// n <= 1.
func NextPowerOfTwo(n int) int {
	m := 1
	for m < n {
		m <<= 1
	}
	return m
}

// Pad zero-extends a and b to the same m×m size, where m is the next power of
// two of their largest dimension. The original shapes are returned so the
// product can be trimmed with Unpad. Inputs that are already square,
// equal-sized and power-of-two are returned as copies with unchanged values.
func Pad(a, b Matrix) (Matrix, Matrix, Shape, Shape) {
	sa, sb := a.Shape(), b.Shape()
	m := NextPowerOfTwo(max(sa.Rows, sa.Cols, sb.Rows, sb.Cols))
	return padTo(a, m), padTo(b, m), sa, sb
}

func padTo(src Matrix, m int) Matrix {
	out := Zeros(m, m)
	for i, row := range src {
		copy(out[i], row)
	}
	return out
}

// Unpad trims a padded product back to shapeA.Rows × shapeB.Cols.
func Unpad(c Matrix, shapeA, shapeB Shape) (Matrix, error) {
	if c.Rows() < shapeA.Rows || c.Cols() < shapeB.Cols {
		return nil, fmt.Errorf("%w: cannot trim %s to %dx%d", ErrDimension, c.Shape(), shapeA.Rows, shapeB.Cols)
	}
	out := Zeros(shapeA.Rows, shapeB.Cols)
	for i := range out {
		copy(out[i], c[i][:shapeB.Cols])
	}
	return out, nil
}

// Split halves a square, even-dimensioned matrix into its four quadrants
// (top-left, top-right, bottom-left, bottom-right).
func Split(m Matrix) (Matrix, Matrix, Matrix, Matrix, error) {
	n := m.Rows()
	if !m.IsSquare() || n == 0 || n%2 != 0 {
		return nil, nil, nil, nil, fmt.Errorf("%w: cannot split %s into quadrants", ErrDimension, m.Shape())
	}
	h := n / 2
	return block(m, 0, 0, h), block(m, 0, h, h), block(m, h, 0, h), block(m, h, h, h), nil
}

func block(m Matrix, row, col, size int) Matrix {
	out := Zeros(size, size)
	for i := range size {
		copy(out[i], m[row+i][col:col+size])
	}
	return out
}

// Join is the inverse of Split. All four quadrants must be square and the
// same size.
func Join(c11, c12, c21, c22 Matrix) (Matrix, error) {
	h := c11.Rows()
	for _, q := range []Matrix{c11, c12, c21, c22} {
		if q.Rows() != h || q.Cols() != h {
			return nil, fmt.Errorf("%w: quadrant %s does not match %dx%d", ErrDimension, q.Shape(), h, h)
		}
	}
	out := Zeros(2*h, 2*h)
	for i := range h {
		copy(out[i][:h], c11[i])
		copy(out[i][h:], c12[i])
		copy(out[h+i][:h], c21[i])
		copy(out[h+i][h:], c22[i])
	}
	return out, nil
}
