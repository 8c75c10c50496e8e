package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"subscription-commerce/internal/domain"
	"subscription-commerce/internal/domain/model"
	"subscription-commerce/internal/infra/logging"
	"subscription-commerce/internal/infra/metrics"
)

// Compile-time check
var _ PricingUseCase = (*pricingUC)(nil)

// PriceQuote is a resolved canonical price for a product and cycle.
type PriceQuote struct {
	Key         string // normalized product key
	DisplayName string
	Amount      int64 // minor units
}

type PricingUseCase interface {
	// Resolve normalizes productType and looks up the canonical price.
	Resolve(ctx context.Context, productType string, cycle model.BillingCycle) (*PriceQuote, error)
	// Reconcile decides the trusted charge amount from the resolved base price,
	// an optional discount, and an optional client-declared final amount.
	// Amounts are minor units; the result is never negative.
	Reconcile(ctx context.Context, quote *PriceQuote, discountAmount, clientFinal *int64) (int64, error)
	// ChargeAmount applies provider minimums to a reconciled amount.
	ChargeAmount(provider model.PaymentProvider, amount int64) int64
}

type pricingUC struct {
	catalog map[string]model.CatalogEntry
	log     *zerolog.Logger
}

func NewPricingUseCase(catalog map[string]model.CatalogEntry, logger *zerolog.Logger) *pricingUC {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &pricingUC{catalog: catalog, log: logger}
}

// DefaultCatalog is the built-in pricing table. Entries are either legacy
// flat tiers or by-cycle tiers (see model.PriceSpec).
func DefaultCatalog() map[string]model.CatalogEntry {
	return map[string]model.CatalogEntry{
		"basic":         {Name: "Basic", Price: model.ByCyclePrice(3700, 37000)},
		"premium":       {Name: "Premium", Price: model.ByCyclePrice(9700, 97000)},
		"diamond":       {Name: "Diamond", Price: model.ByCyclePrice(14700, 147000)},
		"ultimate":      {Name: "Ultimate", Price: model.ByCyclePrice(19700, 197000)},
		"trading-tutor": {Name: "Trading Tutor", Price: model.FlatPrice(49700)},
		"gold":          {Name: "Gold", Price: model.FlatPrice(7900)},
	}
}

var productSuffixes = []string{"-subscription", "-package", "-advisory", "-membership", "-access"}

var productPrefixes = []string{"mentorship-", "product-"}

var productAliases = map[string]string{
	"mentorship":       "basic",
	"trading-tutoring": "trading-tutor",
	"eagle-ultimate":   "ultimate",
}

// NormalizeProductKey strips known suffixes and prefixes, then maps aliases
// to the base plan key.
func NormalizeProductKey(productType string) string {
	key := strings.ToLower(strings.TrimSpace(productType))
	for _, suf := range productSuffixes {
		if strings.HasSuffix(key, suf) {
			key = strings.TrimSuffix(key, suf)
			break
		}
	}
	for _, pre := range productPrefixes {
		if strings.HasPrefix(key, pre) {
			key = strings.TrimPrefix(key, pre)
			break
		}
	}
	if alias, ok := productAliases[key]; ok {
		return alias
	}
	return key
}

func (u *pricingUC) Resolve(ctx context.Context, productType string, cycle model.BillingCycle) (*PriceQuote, error) {
	defer logging.TraceDuration(u.log, "PricingUC.Resolve")()

	key := NormalizeProductKey(productType)
	entry, ok := u.catalog[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known products: %s)", domain.ErrUnknownProduct, productType, strings.Join(u.knownKeys(), ", "))
	}
	amount, err := entry.Price.ForCycle(cycle)
	if err != nil {
		return nil, err
	}
	return &PriceQuote{Key: key, DisplayName: entry.Name, Amount: amount}, nil
}

func (u *pricingUC) knownKeys() []string {
	keys := make([]string, 0, len(u.catalog))
	for k := range u.catalog {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reconcile trusts a client-declared final amount when present (the discount
// was validated by a separate endpoint); otherwise applies the discount
// locally. Divergence beyond one minor unit between the two is logged and
// counted, never rejected.
func (u *pricingUC) Reconcile(ctx context.Context, quote *PriceQuote, discountAmount, clientFinal *int64) (int64, error) {
	defer logging.TraceDuration(u.log, "PricingUC.Reconcile")()

	local := quote.Amount
	if discountAmount != nil && *discountAmount > 0 {
		local -= *discountAmount
		if local < 0 {
			local = 0
		}
	}

	final := local
	if clientFinal != nil && *clientFinal >= 0 {
		final = *clientFinal
		if diff := final - local; diff > 1 || diff < -1 {
			u.log.Warn().
				Str("product", quote.Key).
				Int64("client_final", final).
				Int64("recomputed", local).
				Msg("client-declared price diverges from recomputed discount price")
			metrics.IncPriceDrift()
		}
	}

	if final < 0 {
		// Unreachable given the clamp above; guards future edits.
		return 0, fmt.Errorf("%w: reconciled amount %d", domain.ErrInvalidPrice, final)
	}
	return final, nil
}

// stripeMinimumMinor is the smallest non-zero charge Stripe accepts from us.
const stripeMinimumMinor = 1

func (u *pricingUC) ChargeAmount(provider model.PaymentProvider, amount int64) int64 {
	if provider == model.ProviderStripe && amount > 0 && amount < stripeMinimumMinor {
		return stripeMinimumMinor
	}
	return amount
}
