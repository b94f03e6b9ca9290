package value

import "errors"

// Small decimal layout: a 40-bit signed significand above a 7-bit signed
// decimal exponent.
const (
	ExponentBits    = 7
	SignificandBits = DataBits - ExponentBits

	MaxExponent = (1 << (ExponentBits - 1)) - 1
	MinExponent = -(1 << (ExponentBits - 1))

	MaxSignificand int64 = (1 << (SignificandBits - 1)) - 1
	MinSignificand int64 = -(1 << (SignificandBits - 1))

	exponentMask = (uint64(1) << ExponentBits) - 1
)

// ErrOutOfRange is returned when a literal does not fit its small encoding.
var ErrOutOfRange = errors.New("numeric literal out of representable range")

// EncodeInt encodes n as a small integer.
func EncodeInt(n int64) (Value, error) {
	if n < MinInt || n > MaxInt {
		return 0, ErrOutOfRange
	}
	return FromInt(n), nil
}

// EncodeNumber encodes the literal significand * 10^exponent. Literals with
// no decimal point or exponent are integers; everything else is a decimal.
func EncodeNumber(significand int64, exponent int, decimal bool) (Value, error) {
	if !decimal {
		return EncodeInt(significand)
	}
	return EncodeDecimal(significand, exponent)
}

// EncodeDecimal normalizes and encodes significand * 10^exponent.
func EncodeDecimal(significand int64, exponent int) (Value, error) {
	s, e := Normalize(significand, exponent)
	if s < MinSignificand || s > MaxSignificand {
		return 0, ErrOutOfRange
	}
	if e < MinExponent || e > MaxExponent {
		return 0, ErrOutOfRange
	}
	data := uint64(s)<<ExponentBits | (uint64(int64(e)) & exponentMask)
	return Make(TagDecimal, data), nil
}

// Decimal decodes a small decimal into its normalized significand and
// exponent.
func (v Value) Decimal() (int64, int) {
	d := v.Data()
	e := int64(d & exponentMask)
	if e&(1<<(ExponentBits-1)) != 0 {
		e -= 1 << ExponentBits
	}
	s := v.Int() >> ExponentBits
	return s, int(e)
}

// Normalize strips trailing decimal zeros from the significand, folding them
// into the exponent. Zero normalizes to exponent 0.
func Normalize(significand int64, exponent int) (int64, int) {
	if significand == 0 {
		return 0, 0
	}
	for significand%10 == 0 {
		significand /= 10
		exponent++
	}
	return significand, exponent
}
