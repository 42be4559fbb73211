package upstream

import (
	"math"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Upstream payloads are loosely typed: numbers sometimes arrive as strings
// and optional fields as null. These helpers accept all three forms.

func decodeString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return string(n), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("expected string, got %s", d.Next())
	}
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := decodeString(d)
	if err != nil {
		return decimal.Zero, err
	}
	if s == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse number %q", s)
	}
	return v, nil
}

func decodeFloat(d *jx.Decoder) (float64, error) {
	s, err := decodeString(d)
	if err != nil || s == "" {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse float %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("non-finite number %q", s)
	}
	return v, nil
}

func decodeCount(d *jx.Decoder) (int, error) {
	v, err := decodeDecimal(d)
	if err != nil {
		return 0, err
	}
	if v.IsNegative() {
		return 0, nil
	}
	if v.GreaterThan(maxCount) {
		return 0, errors.Errorf("count %s out of range", v)
	}
	return int(v.IntPart()), nil
}

// maxCount keeps counts representable as int on every platform.
var maxCount = decimal.NewFromInt(math.MaxInt32)

// decodeFirstString returns the first string of an array, skipping the rest.
func decodeFirstString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	var first string
	err := d.Arr(func(d *jx.Decoder) error {
		if first != "" {
			return d.Skip()
		}
		s, err := decodeString(d)
		first = s
		return err
	})
	return first, err
}
