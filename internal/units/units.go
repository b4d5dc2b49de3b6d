// Package units converts between the smallest on-chain unit and display units.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimal places between wei and ether
const EtherDecimals = 18

// maxBits bounds parsed values to uint256
const maxBits = 256

var plainDecimal = regexp.MustCompile(`^([0-9]+\.?[0-9]*|\.[0-9]+)$`)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrPrecisionLoss = errors.New("amount has more decimal places than supported")
)

// ParseEther converts an ether amount such as "0.5" to wei
func ParseEther(amount string) (*big.Int, error) {
	return ParseUnits(amount, EtherDecimals)
}

// FormatEther converts wei to an ether string such as "1.5" or "2.0"
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, EtherDecimals)
}

// ParseUnits scales a plain decimal string by 10^decimals. The conversion is
// exact: any non-zero digit beyond the supported precision is rejected, as are
// signs, exponents and results wider than 256 bits.
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	// exponent notation would let a short string expand into a huge integer
	if !plainDecimal.MatchString(amount) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %q exceeds %d decimals", ErrPrecisionLoss, amount, decimals)
	}

	value := scaled.BigInt()
	if value.BitLen() > maxBits {
		return nil, fmt.Errorf("%w: %q exceeds %d bits", ErrInvalidAmount, amount, maxBits)
	}
	return value, nil
}

// FormatUnits renders value / 10^decimals without trailing zeros, keeping at
// least one fractional digit.
func FormatUnits(value *big.Int, decimals int32) string {
	if value == nil {
		return "0.0"
	}

	str := decimal.NewFromBigInt(value, -decimals).String()
	if !strings.Contains(str, ".") {
		str += ".0"
	}
	return str
}
