package cmd

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/rbazzell/distributed-systems-project/internal/matrix"
)

// Dims is the shape of a random product: (N x M) times (M x P).
type Dims struct {
	N, M, P int
}

// ParseDims parses "N", "NxM" meaning NxM times MxM, or "NxMxP".
func ParseDims(s string) (Dims, error) {
	parts := strings.Split(strings.ToLower(s), "x")
	if len(parts) > 3 {
		return Dims{}, fmt.Errorf("invalid size %q: want N, NxM or NxMxP", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 1 {
			return Dims{}, fmt.Errorf("invalid size %q: dimensions must be positive integers", s)
		}
		nums[i] = n
	}
	switch len(nums) {
	case 1:
		return Dims{N: nums[0], M: nums[0], P: nums[0]}, nil
	case 2:
		return Dims{N: nums[0], M: nums[1], P: nums[1]}, nil
	default:
		return Dims{N: nums[0], M: nums[1], P: nums[2]}, nil
	}
}

// RandomMatrix returns a rows x cols matrix with entries in [0, 9].
func RandomMatrix(r *rand.Rand, rows, cols int) matrix.Matrix {
	m := matrix.Zeros(rows, cols)
	for i := range rows {
		for j := range cols {
			m[i][j] = r.Int64N(10)
		}
	}
	return m
}

// RandomPair returns operands of the given dims.
func RandomPair(r *rand.Rand, d Dims) (matrix.Matrix, matrix.Matrix) {
	return RandomMatrix(r, d.N, d.M), RandomMatrix(r, d.M, d.P)
}

// readMatrix loads a JSON array of integer rows from path.
func readMatrix(path string) (matrix.Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var m matrix.Matrix
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
