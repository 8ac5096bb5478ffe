// Package validation checks checkout input: shipping addresses and payment
// methods.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/payment"
)

const maxFieldLength = 200

var (
	countryRegex = regexp.MustCompile(`^[A-Za-z]{2}$`)

	postalCodeRegex = map[string]*regexp.Regexp{
		"US": regexp.MustCompile(`^\d{5}(-\d{4})?$`),
		"CA": regexp.MustCompile(`^[A-Za-z]\d[A-Za-z] ?\d[A-Za-z]\d$`),
		"GB": regexp.MustCompile(`^[A-Za-z]{1,2}\d[A-Za-z\d]? ?\d[A-Za-z]{2}$`),
		"DE": regexp.MustCompile(`^\d{5}$`),
		"FR": regexp.MustCompile(`^\d{5}$`),
		"AU": regexp.MustCompile(`^\d{4}$`),
	}
	defaultPostalCodeRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 -]{1,9}$`)
)

// Validator implements the address and payment method checks used by
// checkout.
type Validator struct{}

// New returns a Validator.
func New() Validator {
	return Validator{}
}

// ValidateAddress returns one message per problem, in field order. An
// empty result means the address is acceptable.
func (Validator) ValidateAddress(a order.Address) []string {
	var msgs []string

	required := []struct {
		field string
		value string
	}{
		{"name", a.Name},
		{"street", a.Street},
		{"city", a.City},
		{"region", a.Region},
		{"postal code", a.PostalCode},
		{"country", a.Country},
	}
	for _, r := range required {
		v := strings.TrimSpace(r.value)
		switch {
		case v == "":
			msgs = append(msgs, r.field+" is required")
		case utf8.RuneCountInString(v) > maxFieldLength:
			msgs = append(msgs, r.field+" is too long")
		}
	}

	country := strings.ToUpper(strings.TrimSpace(a.Country))
	if country != "" && !countryRegex.MatchString(country) {
		msgs = append(msgs, "country must be a two-letter code")
	}
	if pc := strings.TrimSpace(a.PostalCode); pc != "" && !postalCodeFor(country).MatchString(pc) {
		msgs = append(msgs, "postal code is not valid for "+countryLabel(country))
	}
	return msgs
}

// ValidatePaymentMethod reports whether method is accepted.
func (Validator) ValidatePaymentMethod(method string) bool {
	_, ok := payment.ParseMethod(method)
	return ok
}

func postalCodeFor(country string) *regexp.Regexp {
	if re, ok := postalCodeRegex[country]; ok {
		return re
	}
	return defaultPostalCodeRegex
}

func countryLabel(country string) string {
	if country == "" {
		return "the country"
	}
	return country
}
