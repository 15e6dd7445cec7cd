// Package amount converts between human decimal token amounts and integer base units.
// Floating point is never used for on-chain values.
package amount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Parse reads a non-negative decimal string such as "100", "2.5" or ".75".
func Parse(s string) (*big.Rat, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.ContainsAny(s, "eE/") {
		return nil, fmt.Errorf("bad amount %q", s)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("bad amount %q", s)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return r, nil
}

// ToWei returns floor(s * 10^decimals).
func ToWei(s string, decimals int) (*uint256.Int, error) {
	return Scale(s, decimals, 1, 1)
}

// Scale returns floor(s * num/den * 10^decimals).
func Scale(s string, decimals int, num, den int64) (*uint256.Int, error) {
	r, err := Parse(s)
	if err != nil {
		return nil, err
	}
	if decimals < 0 {
		decimals = 18
	}
	exp := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	r.Mul(r, new(big.Rat).SetFrac(new(big.Int).Mul(exp, big.NewInt(num)), big.NewInt(den)))
	q := new(big.Int).Quo(r.Num(), r.Denom())
	v, overflow := uint256.FromBig(q)
	if overflow {
		return nil, fmt.Errorf("amount %q overflows uint256", s)
	}
	return v, nil
}

// Mul multiplies a decimal string by a whole factor, keeping it decimal.
func Mul(s string, n int) (string, error) {
	r, err := Parse(s)
	if err != nil {
		return "", err
	}
	r.Mul(r, new(big.Rat).SetInt64(int64(n)))
	if r.IsInt() {
		return r.Num().String(), nil
	}
	return strings.TrimRight(strings.TrimRight(r.FloatString(36), "0"), "."), nil
}

// U256 converts a non-negative big.Int. nil reads as zero, values above 2^256-1 saturate.
func U256(v *big.Int) *uint256.Int {
	if v == nil || v.Sign() <= 0 {
		return new(uint256.Int)
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return u
}

// Format renders base units with the given decimals, trimming trailing zeros.
func Format(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	if decimals <= 0 {
		return v.String()
	}
	s := new(big.Int).Abs(v).String()
	neg := v.Sign() < 0
	var out string
	if len(s) <= decimals {
		out = "0." + strings.TrimRight(strings.Repeat("0", decimals-len(s))+s, "0")
		if out == "0." {
			out = "0"
		}
	} else {
		out = s[:len(s)-decimals]
		if frac := strings.TrimRight(s[len(s)-decimals:], "0"); frac != "" {
			out += "." + frac
		}
	}
	if neg {
		return "-" + out
	}
	return out
}
