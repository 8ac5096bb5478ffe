package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	defaultTaxRate = d("0.05")

	taxRates = map[string]decimal.Decimal{
		"CA": d("0.0725"),
		"NY": d("0.08875"),
		"TX": d("0.0625"),
		"WA": d("0.065"),
		"FL": d("0.06"),
		"IL": d("0.0625"),
		"NJ": d("0.06625"),
		"PA": d("0.06"),
		"OR": zero,
		"MT": zero,
	}

	taxExempt = map[string]struct{}{
		"education": {},
		"children":  {},
	}
)

// TaxRate returns the sales tax rate for a region code.
func TaxRate(region string) decimal.Decimal {
	if r, ok := taxRates[strings.ToUpper(strings.TrimSpace(region))]; ok {
		return r
	}
	return defaultTaxRate
}

// IsTaxExempt reports whether goods in the category carry no sales tax.
func IsTaxExempt(category string) bool {
	_, ok := taxExempt[strings.ToLower(strings.TrimSpace(category))]
	return ok
}

// Tax returns the sales tax owed on amount.
func Tax(amount decimal.Decimal, region, category string) decimal.Decimal {
	return roundMoney(taxRaw(amount, region, category))
}

func taxRaw(amount decimal.Decimal, region, category string) decimal.Decimal {
	if !amount.IsPositive() || IsTaxExempt(category) {
		return zero
	}
	return amount.Mul(TaxRate(region))
}

// TaxLine is one taxable amount with its product category.
type TaxLine struct {
	Amount   decimal.Decimal
	Category string
}

// OrderTax computes the tax for a whole order. The discount is spread over
// the lines in proportion to their amounts, and the sum is rounded once.
func OrderTax(lines []TaxLine, discount decimal.Decimal, region string) decimal.Decimal {
	gross := zero
	for _, l := range lines {
		gross = gross.Add(l.Amount)
	}
	if !gross.IsPositive() {
		return zero
	}
	net := gross.Sub(discount)
	if !net.IsPositive() {
		return zero
	}
	ratio := net.Div(gross)

	sum := zero
	for _, l := range lines {
		sum = sum.Add(taxRaw(l.Amount.Mul(ratio), region, l.Category))
	}
	return roundMoney(sum)
}
