// Package billing settles processed messages against quota and wallet.
package billing

import "github.com/chatwire/chatwire/internal/config"

// Settlement is the priced outcome of splitting one message between
// remaining quota and pay-as-you-go overage.
type Settlement struct {
	QuotaUnits   int64
	OverageUnits int64
	OverageCost  int64
	FullCost     int64
}

// SplitUnits allocates a message's units against available quota in a fixed
// order: the AI response first, then product cards, then media. Units that
// do not fit are priced per type at the configured rates.
func SplitUnits(quotaAvailable int64, productCount, mediaCount int, prices config.BillingConfig) Settlement {
	if quotaAvailable < 0 {
		quotaAvailable = 0
	}

	type bucket struct {
		units int64
		price int64
	}
	buckets := []bucket{
		{units: 1, price: prices.AIMessageCost},
		{units: int64(productCount), price: prices.ProductMessageCost},
		{units: int64(mediaCount), price: prices.MediaCost},
	}

	var s Settlement
	remaining := quotaAvailable
	for _, b := range buckets {
		s.FullCost += b.units * b.price

		fromQuota := b.units
		if fromQuota > remaining {
			fromQuota = remaining
		}
		remaining -= fromQuota
		s.QuotaUnits += fromQuota

		over := b.units - fromQuota
		s.OverageUnits += over
		s.OverageCost += over * b.price
	}
	return s
}

// MessageUnits is the quota weight of one processed message: the AI
// response plus every product card and media attachment sent with it.
func MessageUnits(productCount, mediaCount int) int64 {
	return 1 + int64(productCount) + int64(mediaCount)
}
