package units

import (
	"errors"
	"math/big"
	"testing"
)

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad test value " + s)
	}
	return v
}

func TestParseEther(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		want    *big.Int
		wantErr error
	}{
		{name: "whole", amount: "2", want: wei("2000000000000000000")},
		{name: "half", amount: "0.5", want: wei("500000000000000000")},
		{name: "trailing zeros", amount: "1.50", want: wei("1500000000000000000")},
		{name: "leading dot", amount: ".25", want: wei("250000000000000000")},
		{name: "one wei", amount: "0.000000000000000001", want: big.NewInt(1)},
		{name: "surrounding spaces", amount: " 3 ", want: wei("3000000000000000000")},
		{name: "zero", amount: "0", want: big.NewInt(0)},
		{name: "nineteen decimals", amount: "0.0000000000000000001", wantErr: ErrPrecisionLoss},
		{name: "nineteen decimals with zero tail", amount: "1.0000000000000000000", want: wei("1000000000000000000")},
		{name: "empty", amount: "", wantErr: ErrInvalidAmount},
		{name: "garbage", amount: "one", wantErr: ErrInvalidAmount},
		{name: "lone dot", amount: ".", wantErr: ErrInvalidAmount},
		{name: "negative", amount: "-1", wantErr: ErrInvalidAmount},
		{name: "explicit plus", amount: "+1", wantErr: ErrInvalidAmount},
		{name: "exponent", amount: "1e3", wantErr: ErrInvalidAmount},
		{name: "negative exponent", amount: "5e-1", wantErr: ErrInvalidAmount},
		{name: "huge exponent", amount: "1e999999999", wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEther(tt.amount)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseEther(%q) error = %v, want %v", tt.amount, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEther(%q) error = %v", tt.amount, err)
			}
			if got.Cmp(tt.want) != 0 {
				t.Errorf("ParseEther(%q) = %v, want %v", tt.amount, got, tt.want)
			}
		})
	}
}

func TestParseUnits_Uint256Bound(t *testing.T) {
	maxValue := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	got, err := ParseUnits(maxValue.String(), 0)
	if err != nil {
		t.Fatalf("ParseUnits(2^256-1) error = %v", err)
	}
	if got.Cmp(maxValue) != 0 {
		t.Errorf("ParseUnits(2^256-1) = %v", got)
	}

	overflow := new(big.Int).Lsh(big.NewInt(1), 256)
	if _, err := ParseUnits(overflow.String(), 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("ParseUnits(2^256) error = %v, want ErrInvalidAmount", err)
	}
	if _, err := ParseEther(overflow.String()); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("ParseEther(2^256) error = %v, want ErrInvalidAmount", err)
	}
}

func TestFormatEther(t *testing.T) {
	tests := []struct {
		wei  *big.Int
		want string
	}{
		{wei("2000000000000000000"), "2.0"},
		{wei("1500000000000000000"), "1.5"},
		{big.NewInt(1), "0.000000000000000001"},
		{big.NewInt(0), "0.0"},
		{nil, "0.0"},
		{wei("123456789012345678901"), "123.456789012345678901"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatEther(tt.wei); got != tt.want {
				t.Errorf("FormatEther(%v) = %v, want %v", tt.wei, got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, amount := range []string{"1.5", "0.5", "2.0", "0.000000000000000001", "1000000.123456789"} {
		v, err := ParseEther(amount)
		if err != nil {
			t.Fatalf("ParseEther(%q) error = %v", amount, err)
		}
		if got := FormatEther(v); got != amount {
			t.Errorf("round trip of %q produced %q", amount, got)
		}
	}
}

func TestParseUnitsOtherDecimals(t *testing.T) {
	got, err := ParseUnits("12.345678", 6)
	if err != nil {
		t.Fatalf("ParseUnits error = %v", err)
	}
	if got.Cmp(big.NewInt(12345678)) != 0 {
		t.Errorf("ParseUnits = %v, want 12345678", got)
	}
	if _, err := ParseUnits("0.0000001", 6); !errors.Is(err, ErrPrecisionLoss) {
		t.Errorf("expected precision loss, got %v", err)
	}
	if s := FormatUnits(big.NewInt(12345678), 6); s != "12.345678" {
		t.Errorf("FormatUnits = %v", s)
	}
}
