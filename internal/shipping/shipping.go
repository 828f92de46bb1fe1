package shipping

import (
	"strconv"
	"strings"

	"github.com/susplants/shop-backend/pkg/config"
)

const (
	regionStandard = "通常配送"
	regionHokkaido = "北海道"
	regionOkinawa  = "沖縄"
)

// Quote is the shipping fee resolved for a destination postal code.
type Quote struct {
	FeeYen int
	Region string
}

// Calculator resolves shipping fees from the destination postal code.
type Calculator struct {
	baseFeeYen   int
	remoteFeeYen int
}

// NewCalculator builds a fee calculator from checkout configuration.
func NewCalculator(cfg config.CheckoutConfig) *Calculator {
	base := cfg.BaseShippingFeeYen
	if base <= 0 {
		base = 1000
	}
	remote := cfg.RemoteShippingFeeYen
	if remote <= 0 {
		remote = 1800
	}
	return &Calculator{baseFeeYen: base, remoteFeeYen: remote}
}

// Quote returns the fee for the postal code. Hokkaido (001-099) and Okinawa
// (900-907) prefixes pay the remote surcharge; everything else pays the base fee.
func (c *Calculator) Quote(postalCode string) Quote {
	prefix := normalizePrefix(postalCode)
	switch {
	case prefix >= 1 && prefix <= 99:
		return Quote{FeeYen: c.remoteFeeYen, Region: regionHokkaido}
	case prefix >= 900 && prefix <= 907:
		return Quote{FeeYen: c.remoteFeeYen, Region: regionOkinawa}
	default:
		return Quote{FeeYen: c.baseFeeYen, Region: regionStandard}
	}
}

func normalizePrefix(postalCode string) int {
	cleaned := strings.ReplaceAll(strings.TrimSpace(postalCode), "-", "")
	if len(cleaned) < 3 {
		return -1
	}
	prefix, err := strconv.Atoi(cleaned[:3])
	if err != nil {
		return -1
	}
	return prefix
}
