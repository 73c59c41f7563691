package jconv

import (
	"errors"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Decimal is an exact decimal number: unscaled * 10^-scale.  The zero value
// is 0.  Trailing zeros are significant, so 1.0 and 1.00 are different
// Decimals that compare equal with Cmp.
type Decimal struct {
	unscaled *big.Int
	scale    int32
}

// NewDecimal returns unscaled * 10^-scale.
func NewDecimal(unscaled *big.Int, scale int32) Decimal {
	if unscaled == nil {
		return Decimal{scale: scale}
	}
	return Decimal{unscaled: new(big.Int).Set(unscaled), scale: scale}
}

// DecimalFromInt64 returns n with scale 0.
func DecimalFromInt64(n int64) Decimal {
	return Decimal{unscaled: big.NewInt(n)}
}

// ParseDecimal parses a JSON number exactly.
func ParseDecimal(s string) (Decimal, error) {
	return parseDecimal([]byte(s))
}

func parseDecimal(b []byte) (Decimal, error) {
	if _, ok := scanNumber(b); !ok {
		return Decimal{}, errMalformedNumber
	}

	mantissa := b
	exp := int64(0)
	if i := indexExponent(b); i >= 0 {
		mantissa = b[:i]
		e, err := strconv.ParseInt(string(b[i+1:]), 10, 32)
		if err != nil {
			return Decimal{}, errOutOfRange
		}
		exp = e
	}

	digits := make([]byte, 0, len(mantissa))
	frac := int64(0)
	seenPoint := false
	for _, c := range mantissa {
		switch {
		case c == '.':
			seenPoint = true
		case c == '-':
			digits = append(digits, c)
		default:
			digits = append(digits, c)
			if seenPoint {
				frac++
			}
		}
	}

	scale := frac - exp
	if scale < math.MinInt32 || scale > math.MaxInt32 {
		return Decimal{}, errOutOfRange
	}
	n, ok := new(big.Int).SetString(string(digits), 10)
	if !ok {
		return Decimal{}, errMalformedNumber
	}
	return Decimal{unscaled: n, scale: int32(scale)}, nil
}

func indexExponent(b []byte) int {
	for i, c := range b {
		if c == 'e' || c == 'E' {
			return i
		}
	}
	return -1
}

// Unscaled returns a copy of the unscaled value.
func (d Decimal) Unscaled() *big.Int {
	if d.unscaled == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(d.unscaled)
}

// Scale returns the number of digits after the decimal point.  A negative
// scale multiplies by a power of ten.
func (d Decimal) Scale() int32 { return d.scale }

// Sign returns -1, 0 or +1.
func (d Decimal) Sign() int {
	if d.unscaled == nil {
		return 0
	}
	return d.unscaled.Sign()
}

// Equal reports whether d and o have the same unscaled value and scale.
func (d Decimal) Equal(o Decimal) bool {
	return d.scale == o.scale && d.Unscaled().Cmp(o.Unscaled()) == 0
}

// Cmp compares the numeric values of d and o.
func (d Decimal) Cmp(o Decimal) int {
	a, b := d.Unscaled(), o.Unscaled()
	switch {
	case d.scale < o.scale:
		a.Mul(a, pow10(int64(o.scale)-int64(d.scale)))
	case d.scale > o.scale:
		b.Mul(b, pow10(int64(d.scale)-int64(o.scale)))
	}
	return a.Cmp(b)
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

// Float64 returns the nearest float64.
func (d Decimal) Float64() (float64, error) {
	f, err := strconv.ParseFloat(d.sciString(), 64)
	if err != nil {
		return f, errOutOfRange
	}
	return f, nil
}

func (d Decimal) sciString() string {
	return d.Unscaled().String() + "e" + strconv.FormatInt(-int64(d.scale), 10)
}

// String formats d as a JSON number without losing digits.  Negative scales
// use exponent notation, as in 12E+3, as do values whose adjusted exponent
// is below -6, as in 1.5E-9.
func (d Decimal) String() string {
	return string(d.append(nil))
}

func (d Decimal) append(b []byte) []byte {
	u := d.Unscaled()
	if u.Sign() < 0 {
		b = append(b, '-')
		u.Neg(u)
	}
	digits := u.String()

	switch {
	case d.scale == 0:
		return append(b, digits...)
	case d.scale < 0:
		b = append(b, digits...)
		b = append(b, "E+"...)
		return strconv.AppendInt(b, -int64(d.scale), 10)
	}

	// Small magnitudes switch to exponent notation like 1.5E-9 instead of
	// spelling out leading zeros.
	if adjusted := int64(len(digits)-1) - int64(d.scale); adjusted < -6 {
		b = append(b, digits[0])
		if len(digits) > 1 {
			b = append(b, '.')
			b = append(b, digits[1:]...)
		}
		b = append(b, 'E')
		return strconv.AppendInt(b, adjusted, 10)
	}

	scale := int(d.scale)
	if len(digits) > scale {
		b = append(b, digits[:len(digits)-scale]...)
		b = append(b, '.')
		return append(b, digits[len(digits)-scale:]...)
	}
	b = append(b, "0."...)
	b = append(b, strings.Repeat("0", scale-len(digits))...)
	return append(b, digits...)
}

// MarshalText implements encoding.TextMarshaler so fallback codecs can
// handle Decimal values.
func (d Decimal) MarshalText() ([]byte, error) {
	return d.append(nil), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decimal) UnmarshalText(b []byte) error {
	v, err := parseDecimal(b)
	if err != nil {
		return errors.Join(errors.New("jconv: invalid decimal "+strconv.Quote(string(b))), err)
	}
	*d = v
	return nil
}

// WriteDecimal writes d exactly.
func (w *Writer) WriteDecimal(d Decimal) {
	w.buf = d.append(w.buf)
}
