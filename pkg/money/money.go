// Package money stores currency amounts as int64 minor units (cents) so that
// ledger sums are exact. JSON carries the amount in major units.
package money

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const scale = 100

var ErrInvalidAmount = errors.New("invalid_amount")

// Amount is a quantity of minor units.
type Amount int64

// FromMajor rounds a major-unit value to the nearest minor unit.
func FromMajor(v float64) Amount {
	return Amount(math.Round(v * scale))
}

func (a Amount) Major() float64 {
	return float64(a) / scale
}

// Times scales a unit price by a possibly fractional quantity, rounding half
// away from zero.
func (a Amount) Times(qty float64) Amount {
	return Amount(math.Round(float64(a) * qty))
}

func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/scale, v%scale)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string. Decimal input is
// parsed digit by digit; anything past the second fraction digit is rounded.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := string(bytes.TrimSpace(data))
	if raw == "null" {
		return nil
	}
	raw = strings.Trim(raw, `"`)
	v, err := Parse(raw)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Parse reads a decimal major-unit string such as "12", "-0.7" or "1e3".
func Parse(raw string) (Amount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidAmount
	}
	if strings.ContainsAny(raw, "eE") {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, ErrInvalidAmount
		}
		return FromMajor(f), nil
	}

	negative := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "-"), "+")
	whole, frac, _ := strings.Cut(raw, ".")
	if whole == "" && frac == "" {
		return 0, ErrInvalidAmount
	}
	if whole == "" {
		whole = "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > math.MaxInt64/scale {
		return 0, ErrInvalidAmount
	}
	cents := int64(0)
	for i, r := range frac {
		if r < '0' || r > '9' {
			return 0, ErrInvalidAmount
		}
		d := int64(r - '0')
		switch {
		case i == 0:
			cents += d * 10
		case i == 1:
			cents += d
		case i == 2 && d >= 5:
			cents++
		}
	}

	total := units*scale + cents
	if negative {
		total = -total
	}
	return Amount(total), nil
}
