package sheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal reads a cell holding a number. Both "1015.5" and the
// Brazilian "1.015,50" forms are accepted.
func ParseDecimal(value string) (decimal.Decimal, error) {
	s := canonicalNumber(value)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty number")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q", value)
	}
	return d, nil
}

// ParseFloat is ParseDecimal for coordinates
func ParseFloat(value string) (float64, error) {
	s := canonicalNumber(value)
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid number %q", value)
	}
	return f, nil
}

// ParseInt reads an integer cell; fractional values are truncated toward
// zero since workbooks often store counts as floats ("3.0")
func ParseInt(value string) (int, error) {
	f, err := ParseFloat(value)
	if err != nil {
		return 0, err
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("number %q out of range", value)
	}
	return int(f), nil
}

func canonicalNumber(value string) string {
	s := strings.ReplaceAll(strings.TrimSpace(value), " ", "")
	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		// 1.015,50
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		// 1,015.50
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}
	return s
}
