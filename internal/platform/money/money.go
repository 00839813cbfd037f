// Package money holds currency amounts as integer minor units.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is an amount in minor units (1/100 of the currency unit).
type Cents int64

// maxUnits bounds parsed input well inside the int64 range.
var maxUnits = decimal.New(1, 13)

// Exponent limits for parsed decimals. Anything outside them is rejected
// before the value is rescaled, since rescaling costs time in the exponent.
const (
	maxExponent = 13
	minExponent = -18
)

var (
	ErrNotFinite = errors.New("amount is not a finite number")
	ErrMalformed = errors.New("amount is not a number")
	ErrTooLarge  = errors.New("amount is too large")
)

// Parse reads a decimal amount such as "1500", "1500.5" or "0.125" and rounds
// it half-up to two decimals.
func Parse(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(strings.TrimLeft(s, "+-")) {
	case "nan", "inf", "infinity":
		return 0, ErrNotFinite
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrMalformed
	}
	return fromDecimal(d)
}

// FromFloat converts a unit amount, rejecting NaN and infinities.
func FromFloat(f float64) (Cents, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNotFinite
	}
	return fromDecimal(decimal.NewFromFloat(f).Round(2))
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Cents {
	c, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("money: %q: %v", s, err))
	}
	return c
}

func fromDecimal(d decimal.Decimal) (Cents, error) {
	if d.IsZero() {
		return 0, nil
	}
	if d.Exponent() > maxExponent {
		return 0, ErrTooLarge
	}
	if d.Exponent() < minExponent {
		return 0, ErrMalformed
	}
	if d.Abs().GreaterThanOrEqual(maxUnits) {
		return 0, ErrTooLarge
	}
	return Cents(d.Shift(2).Round(0).IntPart()), nil
}

// Units returns the amount as a float in currency units, for display only.
func (c Cents) Units() float64 {
	f, _ := c.decimal().Float64()
	return f
}

// String formats with exactly two decimals, e.g. "3500.00".
func (c Cents) String() string {
	return c.decimal().StringFixed(2)
}

// Format appends the currency code: "2000.00 MAD".
func (c Cents) Format(currency string) string {
	if currency == "" {
		return c.String()
	}
	return c.String() + " " + currency
}

func (c Cents) decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// MarshalJSON encodes the amount as a JSON number in currency units.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string in currency units.
func (c *Cents) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = str
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Sum adds amounts.
func Sum(amounts ...Cents) Cents {
	var total Cents
	for _, a := range amounts {
		total += a
	}
	return total
}
