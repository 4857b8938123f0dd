package money

import (
	"database/sql/driver"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
)

// Money is a monetary amount quantized to MoneyScale fractional digits.
type Money struct{ d Decimal }

// Zero is 0.00.
var Zero = Money{Decimal{unscaled: big.NewInt(0), scale: MoneyScale}}

// Q quantizes an exact rational value to a Money amount, half-up.
func Q(r *big.Rat) Money { return Money{quantizeRat(r, MoneyScale)} }

// ParseMoney parses a decimal string and quantizes it to MoneyScale.
func ParseMoney(s string) (Money, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return Money{}, err
	}
	return Money{quantizeRat(d.Rat(), MoneyScale)}, nil
}

// MustParseMoney is ParseMoney but panics on error; intended for literals in tests.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) String() string   { return m.d.string() }
func (m Money) Rat() *big.Rat    { return m.d.Rat() }
func (m Money) Sign() int        { return m.d.sign() }
func (m Money) IsZero() bool     { return m.Sign() == 0 }
func (m Money) IsNegative() bool { return m.Sign() < 0 }

// Add returns q(m + o).
func (m Money) Add(o Money) Money { return Q(new(big.Rat).Add(m.Rat(), o.Rat())) }

// Sub returns q(m - o).
func (m Money) Sub(o Money) Money { return Q(new(big.Rat).Sub(m.Rat(), o.Rat())) }

// Cmp compares m and o: -1, 0, or 1.
func (m Money) Cmp(o Money) int { return m.Rat().Cmp(o.Rat()) }

// Min returns the smaller of m and o.
func (m Money) Min(o Money) Money {
	if m.Cmp(o) <= 0 {
		return m
	}
	return o
}

// Numeric converts m to a pgtype.Numeric for storage.
func (m Money) Numeric() pgtype.Numeric { return m.d.numeric() }

// MoneyFromNumeric converts a stored pgtype.Numeric back into Money.
func MoneyFromNumeric(n pgtype.Numeric) (Money, error) {
	d, err := fromNumeric(n, MoneyScale)
	if err != nil {
		return Money{}, fmt.Errorf("money: %w", err)
	}
	return Money{d}, nil
}

// Value implements driver.Valuer so Money can be used directly as a query arg.
func (m Money) Value() (driver.Value, error) { return m.String(), nil }

// Rate is an annual interest rate quantized to RateScale fractional digits.
type Rate struct{ d Decimal }

// QRate quantizes an exact rational value to a Rate, half-up.
func QRate(r *big.Rat) Rate { return Rate{quantizeRat(r, RateScale)} }

// ParseRate parses a decimal string and quantizes it to RateScale.
func ParseRate(s string) (Rate, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return Rate{}, err
	}
	return Rate{quantizeRat(d.Rat(), RateScale)}, nil
}

// MustParseRate is ParseRate but panics on error; intended for literals in tests.
func MustParseRate(s string) Rate {
	r, err := ParseRate(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Rate) String() string { return r.d.string() }
func (r Rate) Rat() *big.Rat  { return r.d.Rat() }
func (r Rate) Sign() int      { return r.d.sign() }

// Numeric converts r to a pgtype.Numeric for storage.
func (r Rate) Numeric() pgtype.Numeric { return r.d.numeric() }

// RateFromNumeric converts a stored pgtype.Numeric back into Rate.
func RateFromNumeric(n pgtype.Numeric) (Rate, error) {
	d, err := fromNumeric(n, RateScale)
	if err != nil {
		return Rate{}, fmt.Errorf("money: %w", err)
	}
	return Rate{d}, nil
}

func (r Rate) Value() (driver.Value, error) { return r.String(), nil }

// AccrueInterest computes q(balance * rate * days / basis), the simple
// day-count interest formula shared by deposit and loan accrual. Division
// happens against the exact rational value before the single final
// quantization, so no rounding compounds within the formula.
func AccrueInterest(balance Money, rate Rate, days int64, basis int) Money {
	num := new(big.Rat).Mul(balance.Rat(), rate.Rat())
	num.Mul(num, new(big.Rat).SetInt64(days))
	num.Quo(num, new(big.Rat).SetInt64(int64(basis)))
	return Q(num)
}
