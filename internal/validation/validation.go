package validation

import (
	"errors"
	"math/big"
	"regexp"

	"github.com/ethereum/go-ethereum/common"
)

var (
	addressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	chainIDRegex = regexp.MustCompile(`^0x[0-9a-f]+$`)
	urlRegex     = regexp.MustCompile(`^(https?|wss?)://[^\s/$.?#].[^\s]*$`)
	lowerHex     = regexp.MustCompile(`^0x[a-f0-9]{40}$`)
	upperHex     = regexp.MustCompile(`^0x[A-F0-9]{40}$`)
)

// ValidateAddress validates an Ethereum address. Mixed-case addresses must
// carry a valid EIP-55 checksum.
func ValidateAddress(address string) error {
	if address == "" {
		return errors.New("address cannot be empty")
	}

	if !addressRegex.MatchString(address) {
		return errors.New("invalid Ethereum address format")
	}

	if lowerHex.MatchString(address) || upperHex.MatchString(address) {
		return nil
	}

	if common.HexToAddress(address).Hex() != address {
		return errors.New("invalid Ethereum address checksum")
	}
	return nil
}

// ValidateAmount validates a smallest-unit amount is not negative. Zero-value
// transfers are allowed.
func ValidateAmount(amount *big.Int) error {
	if amount == nil {
		return errors.New("amount cannot be nil")
	}

	if amount.Sign() < 0 {
		return errors.New("amount cannot be negative")
	}

	return nil
}

// ValidateChainID validates a lower-case hex chain id such as 0x1
func ValidateChainID(chainID string) error {
	if chainID == "" {
		return errors.New("chain id cannot be empty")
	}

	if !chainIDRegex.MatchString(chainID) || chainID == "0x0" {
		return errors.New("invalid chain id")
	}

	return nil
}

// ValidateURL validates URL format
func ValidateURL(url string) error {
	if url == "" {
		return errors.New("URL cannot be empty")
	}

	if !urlRegex.MatchString(url) {
		return errors.New("invalid URL format")
	}

	return nil
}
