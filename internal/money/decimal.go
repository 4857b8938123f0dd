// Package money implements fixed-scale decimal arithmetic for monetary
// amounts and annual interest rates, quantized half-up at every boundary.
//
// Values are stored as a big.Int mantissa plus a fixed scale, the same
// unscaled-integer convention Postgres NUMERIC and pgtype.Numeric use,
// generalized here to the two scales this domain needs (2 for money, 6
// for rates).
package money

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	// MoneyScale is the fixed number of fractional digits for monetary amounts.
	MoneyScale = 2
	// RateScale is the fixed number of fractional digits for annual interest rates.
	RateScale = 6
)

// Decimal is a fixed-point decimal value equal to unscaled / 10^scale.
type Decimal struct {
	unscaled *big.Int
	scale    int
}

func pow10(n int) *big.Int {
	if n < 0 {
		panic("money: negative scale")
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// parseDecimal parses a plain decimal string ("123", "-4.5", "0.010") into
// its exact unscaled value and natural scale (the number of digits written
// after the decimal point).
func parseDecimal(s string) (Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Decimal{}, fmt.Errorf("money: empty decimal string")
	}
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	digits := intPart + fracPart
	if digits == "" {
		digits = "0"
	}
	u, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Decimal{}, fmt.Errorf("money: invalid decimal %q", s)
	}
	if neg {
		u.Neg(u)
	}
	return Decimal{unscaled: u, scale: len(fracPart)}, nil
}

func (d Decimal) sign() int {
	if d.unscaled == nil {
		return 0
	}
	return d.unscaled.Sign()
}

// Rat returns the exact rational value of d.
func (d Decimal) Rat() *big.Rat {
	u := d.unscaled
	if u == nil {
		u = big.NewInt(0)
	}
	return new(big.Rat).SetFrac(new(big.Int).Set(u), pow10(d.scale))
}

// quantizeRat rounds r to scale fractional digits, ROUND_HALF_UP (ties
// round away from zero), matching Python's decimal.ROUND_HALF_UP.
func quantizeRat(r *big.Rat, scale int) Decimal {
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(pow10(scale)))
	num, den := scaled.Num(), scaled.Denom()

	quo, rem := new(big.Int), new(big.Int)
	quo.QuoRem(num, den, rem)

	twiceRem := new(big.Int).Abs(new(big.Int).Mul(rem, big.NewInt(2)))
	if twiceRem.Cmp(den) >= 0 {
		if num.Sign() < 0 {
			quo.Sub(quo, big.NewInt(1))
		} else {
			quo.Add(quo, big.NewInt(1))
		}
	}
	return Decimal{unscaled: quo, scale: scale}
}

func (d Decimal) string() string {
	u := d.unscaled
	if u == nil {
		u = big.NewInt(0)
	}
	neg := u.Sign() < 0
	abs := new(big.Int).Abs(u)
	digits := abs.String()
	if d.scale == 0 {
		if neg {
			return "-" + digits
		}
		return digits
	}
	for len(digits) <= d.scale {
		digits = "0" + digits
	}
	intPart := digits[:len(digits)-d.scale]
	fracPart := digits[len(digits)-d.scale:]
	out := intPart + "." + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

func (d Decimal) numeric() pgtype.Numeric {
	u := d.unscaled
	if u == nil {
		u = big.NewInt(0)
	}
	return pgtype.Numeric{Int: new(big.Int).Set(u), Exp: int32(-d.scale), Valid: true}
}

func fromNumeric(n pgtype.Numeric, scale int) (Decimal, error) {
	if !n.Valid {
		return Decimal{}, fmt.Errorf("money: NULL numeric value")
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return Decimal{}, fmt.Errorf("money: non-finite numeric value")
	}
	u := n.Int
	if u == nil {
		u = big.NewInt(0)
	}
	u = new(big.Int).Set(u)
	exp := int(n.Exp)
	if exp > 0 {
		u.Mul(u, pow10(exp))
		exp = 0
	}
	curScale := -exp
	if curScale == scale {
		return Decimal{unscaled: u, scale: scale}, nil
	}
	return quantizeRat(new(big.Rat).SetFrac(u, pow10(curScale)), scale), nil
}
