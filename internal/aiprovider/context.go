package aiprovider

import (
	"fmt"
	"strings"

	chatdomain "github.com/chatwire/chatwire/internal/chataccount/domain"
	convdomain "github.com/chatwire/chatwire/internal/conversation/domain"
	productdomain "github.com/chatwire/chatwire/internal/product/domain"
)

// ContextBuilder assembles the prompt window from the account's AI
// configuration, its linked catalog and the thread's recent history.
type ContextBuilder struct {
	windowLength int
}

func NewContextBuilder(windowLength int) *ContextBuilder {
	if windowLength <= 0 {
		windowLength = 20
	}
	return &ContextBuilder{windowLength: windowLength}
}

// Build returns the system turn followed by the history window (oldest
// first) and the inbound message as the final user turn.
func (b *ContextBuilder) Build(cfg chatdomain.AIConfig, catalog []productdomain.Product, history []convdomain.Message, inbound string) []Turn {
	turns := make([]Turn, 0, len(history)+2)
	turns = append(turns, Turn{Role: RoleSystem, Content: b.systemPrompt(cfg, catalog)})

	window := history
	if len(window) > b.windowLength {
		window = window[len(window)-b.windowLength:]
	}
	for _, msg := range window {
		role := RoleUser
		if msg.Direction == convdomain.DirectionOutbound {
			role = RoleAssistant
		}
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		turns = append(turns, Turn{Role: role, Content: msg.Content})
	}

	turns = append(turns, Turn{Role: RoleUser, Content: inbound})
	return turns
}

func (b *ContextBuilder) systemPrompt(cfg chatdomain.AIConfig, catalog []productdomain.Product) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(cfg.SystemPrompt))

	if ctx := strings.TrimSpace(cfg.BusinessContext); ctx != "" {
		sb.WriteString("\n\nBusiness context:\n")
		sb.WriteString(ctx)
	}

	if len(catalog) > 0 {
		sb.WriteString("\n\nProduct catalog. Reference products only by the id shown:\n")
		for _, p := range catalog {
			fmt.Fprintf(&sb, "- id=%s name=%q price=%d %s\n", p.ID.String(), p.Name, p.Price, p.Currency)
		}
	}

	sb.WriteString("\n\nAnswer with a single JSON object: ")
	sb.WriteString(`{"message": "<your reply>", "action": "text" | "show_products" | "show_catalog", "products": ["<product id>", ...]}. `)
	sb.WriteString(`Use "text" with an empty products list unless the customer should receive product cards.`)
	return sb.String()
}
