package util

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Uint64ToString converts uint64 to string
func Uint64ToString(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// StringToUint64 converts string to uint64
func StringToUint64(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse uint64: %w", err)
	}
	return n, nil
}

// TickPair is the high/low word form some protocol decoders use for 64-bit longs.
type TickPair struct {
	High int32
	Low  int32
}

// Uint64 joins the two words. Negative longs keep their two's complement bits.
func (p TickPair) Uint64() uint64 {
	return uint64(int64(p.High))<<32 | uint64(uint32(p.Low))
}

// NormalizeTick converts the loosely typed long values found in decoded packets
// (world age, keep-alive ids) into a single uint64. Signed inputs are mapped by
// two's complement so equal longs always normalize to equal values.
func NormalizeTick(raw any) (uint64, bool) {
	switch v := raw.(type) {
	case uint64:
		return v, true
	case int64:
		return uint64(v), true
	case int:
		return uint64(int64(v)), true
	case int32:
		return uint64(int64(v)), true
	case uint32:
		return uint64(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return uint64(int64(math.Round(v))), true
	case *big.Int:
		if v == nil {
			return 0, false
		}
		return bigToUint64(v), true
	case big.Int:
		return bigToUint64(&v), true
	case TickPair:
		return v.Uint64(), true
	case *TickPair:
		if v == nil {
			return 0, false
		}
		return v.Uint64(), true
	case [2]int32:
		return TickPair{High: v[0], Low: v[1]}.Uint64(), true
	case []int32:
		if len(v) != 2 {
			return 0, false
		}
		return TickPair{High: v[0], Low: v[1]}.Uint64(), true
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n, true
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return uint64(n), true
		}
		return 0, false
	}
	return 0, false
}

// bigToUint64 keeps the low 64 bits in two's complement form.
func bigToUint64(v *big.Int) uint64 {
	if v.Sign() >= 0 {
		return new(big.Int).And(v, new(big.Int).SetUint64(math.MaxUint64)).Uint64()
	}
	mod := new(big.Int).Lsh(big.NewInt(1), 64)
	return new(big.Int).Mod(v, mod).Uint64()
}
