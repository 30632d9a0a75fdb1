package aiprovider

import (
	"encoding/json"
	"strings"
)

// Action is the reply intent declared by the model.
type Action string

const (
	ActionText         Action = "text"
	ActionShowProducts Action = "show_products"
	ActionShowCatalog  Action = "show_catalog"
)

// ParsedReply is the model's answer split into prose, intent and product
// picks. ProductIDs is non-empty only for the show actions.
type ParsedReply struct {
	Text       string
	Action     Action
	ProductIDs []string
}

type structuredReply struct {
	Message  string      `json:"message"`
	Action   string      `json:"action"`
	Products []productID `json:"products"`
}

// productID accepts both "101" and 101. The raw number token is kept as
// text so snowflake-sized ids never round-trip through a float.
type productID string

func (p *productID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = productID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = productID(n.String())
	return nil
}

// Parse extracts the structured reply from raw model output. Models wrap
// JSON in markdown fences or fall back to prose despite instructions, so
// anything that does not decode into the expected object is treated as a
// plain text reply with no products. A show action without product ids is
// demoted to plain text rather than sending an empty card set.
func Parse(raw string) ParsedReply {
	text := strings.TrimSpace(raw)
	candidate := stripFences(text)

	var reply structuredReply
	if err := json.Unmarshal([]byte(candidate), &reply); err != nil {
		return ParsedReply{Text: text, Action: ActionText}
	}
	if strings.TrimSpace(reply.Message) == "" {
		return ParsedReply{Text: text, Action: ActionText}
	}

	action := Action(strings.ToLower(strings.TrimSpace(reply.Action)))
	if action != ActionShowProducts && action != ActionShowCatalog {
		return ParsedReply{Text: strings.TrimSpace(reply.Message), Action: ActionText}
	}

	ids := make([]string, 0, len(reply.Products))
	for _, raw := range reply.Products {
		if id := strings.TrimSpace(string(raw)); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return ParsedReply{Text: strings.TrimSpace(reply.Message), Action: ActionText}
	}
	return ParsedReply{Text: strings.TrimSpace(reply.Message), Action: action, ProductIDs: ids}
}

// stripFences removes a surrounding markdown code fence, with or without
// a language tag.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	trimmed := strings.TrimPrefix(s, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		first := strings.TrimSpace(trimmed[:idx])
		// A language tag such as "json" occupies the rest of the fence line.
		if first == "" || !strings.ContainsAny(first, "{}") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
