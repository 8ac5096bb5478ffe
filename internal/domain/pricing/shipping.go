package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Zone is a shipping distance class.
type Zone string

const (
	ZoneLocal         Zone = "local"
	ZoneRegional      Zone = "regional"
	ZoneNational      Zone = "national"
	ZoneInternational Zone = "international"
)

// Speed selects the delivery service level.
type Speed string

const (
	SpeedStandard  Speed = "standard"
	SpeedExpedited Speed = "expedited"
)

var (
	// FreeShippingThreshold is the subtotal at which shipping becomes free.
	FreeShippingThreshold = d("75")

	zoneRates = map[Zone]decimal.Decimal{
		ZoneLocal:         d("4.99"),
		ZoneRegional:      d("7.99"),
		ZoneNational:      d("12.99"),
		ZoneInternational: d("29.99"),
	}

	includedWeightKg  = d("5")
	perKgSurcharge    = d("1.50")
	expeditedModifier = d("1.5")
)

// ShippingCost prices a shipment. It is free once subtotal reaches
// FreeShippingThreshold. Otherwise the zone base rate applies (unknown zones
// use the regional rate) plus a surcharge for every kilogram above the
// included weight, scaled up for expedited delivery. Non-positive weights
// yield zero.
func ShippingCost(weightKg decimal.Decimal, zone Zone, subtotal decimal.Decimal, speed Speed) decimal.Decimal {
	return ShippingCostAbove(weightKg, zone, subtotal, FreeShippingThreshold, speed)
}

// ShippingCostAbove is ShippingCost with a caller-supplied free shipping
// threshold.
func ShippingCostAbove(weightKg decimal.Decimal, zone Zone, subtotal, threshold decimal.Decimal, speed Speed) decimal.Decimal {
	if !weightKg.IsPositive() {
		return zero
	}
	if subtotal.GreaterThanOrEqual(threshold) {
		return zero
	}
	return roundMoney(shippingRaw(weightKg, zone, speed))
}

func shippingRaw(weightKg decimal.Decimal, zone Zone, speed Speed) decimal.Decimal {
	base, ok := zoneRates[zone]
	if !ok {
		base = zoneRates[ZoneRegional]
	}
	cost := base
	if over := weightKg.Sub(includedWeightKg); over.IsPositive() {
		cost = cost.Add(over.Mul(perKgSurcharge))
	}
	if speed == SpeedExpedited {
		cost = cost.Mul(expeditedModifier)
	}
	return cost
}

// Location is the part of an address that determines the shipping zone.
type Location struct {
	Country    string
	Region     string
	PostalCode string
}

// ZoneFor classifies the distance between two locations.
func ZoneFor(origin, dest Location) Zone {
	if !strings.EqualFold(origin.Country, dest.Country) {
		return ZoneInternational
	}
	if strings.EqualFold(origin.Region, dest.Region) {
		return ZoneLocal
	}
	op, dp := strings.TrimSpace(origin.PostalCode), strings.TrimSpace(dest.PostalCode)
	if op != "" && dp != "" && strings.EqualFold(op[:1], dp[:1]) {
		return ZoneRegional
	}
	return ZoneNational
}
