package vault

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OctasPerAPT is the on-chain scaling factor: 1 APT = 10^8 octas.
const OctasPerAPT = 100_000_000

var octasPerAPT = decimal.NewFromInt(OctasPerAPT)

// OctasToAPT converts a stringified octa amount, as returned by view
// functions, into APT.
func OctasToAPT(octas string) (float64, error) {
	d, err := decimal.NewFromString(octas)
	if err != nil {
		return 0, fmt.Errorf("invalid octa amount %q: %w", octas, err)
	}
	apt, _ := d.Div(octasPerAPT).Float64()
	return apt, nil
}

// AptToOctas converts an APT amount into the integer octa string the
// contract expects. The result is rounded to a whole octa, so any APT
// value produced by OctasToAPT converts back to the identical string.
func AptToOctas(apt float64) string {
	return decimal.NewFromFloat(apt).Mul(octasPerAPT).Round(0).String()
}

// FormatWinRate renders a basis-point win rate as a percentage with two
// decimals, e.g. 6725 -> "67.25%".
func FormatWinRate(basisPoints uint64) string {
	return decimal.NewFromUint64(basisPoints).Div(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
