package helper

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMinorUnitConversion(t *testing.T) {
	cases := []struct {
		major string
		minor int64
	}{
		{"0", 0},
		{"0.004", 0},
		{"0.005", 1},
		{"10", 1000},
		{"19.99", 1999},
		{"1234.5", 123450},
	}
	for _, c := range cases {
		d := decimal.RequireFromString(c.major)
		if got := ToMinorUnits(d); got != c.minor {
			t.Fatalf("ToMinorUnits(%s) = %d, want %d", c.major, got, c.minor)
		}
	}

	if got := TrimDecimal(FromMinorUnits(1999)); got != "19.99" {
		t.Fatalf("FromMinorUnits(1999) = %s, want 19.99", got)
	}
	if got := TrimDecimal(FromMinorUnits(5)); got != "0.05" {
		t.Fatalf("FromMinorUnits(5) = %s, want 0.05", got)
	}
}
