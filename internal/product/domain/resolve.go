package domain

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ResolveCards maps requested ids onto the account's active-linked products.
// The output preserves the requested order, drops ids outside the linked set
// and duplicates, and is capped at max entries. Pure function.
func ResolveCards(ids []snowflake.ID, linked []Product, max int) []ProductCard {
	if max <= 0 || len(ids) == 0 || len(linked) == 0 {
		return nil
	}

	byID := make(map[snowflake.ID]Product, len(linked))
	for _, p := range linked {
		if p.Active {
			byID[p.ID] = p
		}
	}

	seen := make(map[snowflake.ID]struct{}, len(ids))
	cards := make([]ProductCard, 0, len(ids))
	for _, id := range ids {
		if len(cards) >= max {
			break
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		product, ok := byID[id]
		if !ok {
			continue
		}
		cards = append(cards, RenderCard(product))
	}
	return cards
}

// RenderCard formats one product into its outbound message representation.
func RenderCard(p Product) ProductCard {
	var b strings.Builder
	b.WriteString(p.Name)
	if desc := strings.TrimSpace(p.Description); desc != "" {
		b.WriteString("\n")
		b.WriteString(desc)
	}
	if p.Price > 0 {
		fmt.Fprintf(&b, "\n%d %s", p.Price, p.Currency)
	}
	return ProductCard{
		ProductID: p.ID,
		Text:      b.String(),
		MediaRefs: append([]string(nil), p.MediaRefs...),
	}
}
