package model

import (
	"fmt"
	"strconv"
	"strings"

	"subscription-commerce/internal/domain"
)

// BillingCycle is the subscription billing interval.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

func ParseBillingCycle(s string) (BillingCycle, error) {
	switch BillingCycle(strings.ToLower(s)) {
	case BillingCycleMonthly:
		return BillingCycleMonthly, nil
	case BillingCycleYearly:
		return BillingCycleYearly, nil
	}
	return "", fmt.Errorf("%w: billing cycle %q", domain.ErrInvalidArgument, s)
}

type PriceKind string

const (
	PriceKindFlat    PriceKind = "flat"
	PriceKindByCycle PriceKind = "by_cycle"
)

// PriceSpec is a tagged price variant: legacy flat tiers charge the same
// amount on any cycle, by-cycle tiers carry one amount per cycle.
// Amounts are integer minor units.
type PriceSpec struct {
	Kind    PriceKind
	Flat    int64
	Monthly int64
	Yearly  int64
}

func FlatPrice(minor int64) PriceSpec {
	return PriceSpec{Kind: PriceKindFlat, Flat: minor}
}

func ByCyclePrice(monthly, yearly int64) PriceSpec {
	return PriceSpec{Kind: PriceKindByCycle, Monthly: monthly, Yearly: yearly}
}

// ForCycle resolves the spec to a single amount for the given cycle.
func (s PriceSpec) ForCycle(cycle BillingCycle) (int64, error) {
	switch s.Kind {
	case PriceKindFlat:
		return s.Flat, nil
	case PriceKindByCycle:
		switch cycle {
		case BillingCycleMonthly:
			return s.Monthly, nil
		case BillingCycleYearly:
			return s.Yearly, nil
		}
		return 0, fmt.Errorf("%w: billing cycle %q", domain.ErrInvalidArgument, cycle)
	}
	return 0, fmt.Errorf("%w: price spec kind %q", domain.ErrInvalidArgument, s.Kind)
}

// CatalogEntry is one purchasable product in the pricing table.
type CatalogEntry struct {
	Name  string
	Price PriceSpec
}

// ParseMoney converts a decimal string ("37", "37.5", "37.00") into minor
// units. Catalog files and provider responses carry prices in this form.
func ParseMoney(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty amount", domain.ErrInvalidArgument)
	}
	whole, frac, _ := strings.Cut(s, ".")
	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || major < 0 {
		return 0, fmt.Errorf("%w: amount %q", domain.ErrInvalidArgument, s)
	}
	minor := major * 100
	if frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		cents, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: amount %q", domain.ErrInvalidArgument, s)
		}
		minor += cents
	}
	return minor, nil
}

// FormatMoney renders minor units as a decimal string ("3700" -> "37.00").
func FormatMoney(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// ToMajor converts minor units to a major-unit decimal for responses.
func ToMajor(minor int64) float64 { return float64(minor) / 100 }
