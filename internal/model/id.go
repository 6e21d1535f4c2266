package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/rbazzell/distributed-systems-project/internal/matrix"
)

// NewID generates a new ULID string for use as an entity identifier.
func NewID() string {
	return ulid.Make().String()
}

const combinePrefix = "combine_"

// MultiplyID derives the identifier of a multiplication task from its
// operands: both shapes, a six-character content digest, and a ULID suffix
// that keeps identical operands (zero padding blocks, repeated quadrants)
// from colliding.
func MultiplyID(a, b matrix.Matrix) string {
	return fmt.Sprintf("multiply_%s_%s_%s_%s", a.Shape(), b.Shape(), digest(a, b), NewID())
}

// CombineID returns the identifier of the combine task for parent.
func CombineID(parent string) string {
	return combinePrefix + parent
}

// IsCombineID reports whether id names a combine task.
func IsCombineID(id string) bool {
	return strings.HasPrefix(id, combinePrefix)
}

func digest(a, b matrix.Matrix) string {
	h := sha256.New()
	// Encoding a [][]int64 cannot fail.
	_ = json.NewEncoder(h).Encode([2]matrix.Matrix{a, b})
	return hex.EncodeToString(h.Sum(nil))[:6]
}
