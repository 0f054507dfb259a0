package domain

import "github.com/shopspring/decimal"

// Money is stored with MoneyPlaces decimal places, in columns that hold
// amounts below ten billion.
const MoneyPlaces = 2

// MaxAmount is the largest unit price, subtotal or threshold accepted.
var MaxAmount = decimal.NewFromInt(1_000_000_000)

// maxExponent bounds the decimal exponent in both directions. Anything
// outside it is either far above MaxAmount or far below a kopeck, and
// rescaling such values allocates a big.Int proportional to the exponent.
const maxExponent = 10

// CheckAmount returns a ValidationError for field when |d| exceeds
// MaxAmount or d carries an absurd exponent.
func CheckAmount(field string, d decimal.Decimal) error {
	if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent {
		return Invalid(field, "amount is out of range")
	}
	if d.Abs().GreaterThan(MaxAmount) {
		return Invalid(field, "amount must not exceed "+MaxAmount.String())
	}
	return nil
}

// RoundAmount rounds d to MoneyPlaces. Callers run CheckAmount first.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}
