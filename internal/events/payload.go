package events

import (
	"encoding/json"

	"github.com/bwmarrin/snowflake"
)

// MessageProcessedPayload carries everything the usage and ledger listeners
// need, so neither has to re-read the message row.
type MessageProcessedPayload struct {
	AccountID        snowflake.ID `json:"account_id"`
	OrgID            snowflake.ID `json:"org_id"`
	SubscriptionID   snowflake.ID `json:"subscription_id"`
	ConversationID   snowflake.ID `json:"conversation_id"`
	MessageID        snowflake.ID `json:"message_id"`
	ProductCount     int          `json:"product_count"`
	MediaCount       int          `json:"media_count"`
	PromptTokens     int          `json:"prompt_tokens"`
	CompletionTokens int          `json:"completion_tokens"`
	ProviderCostUSD  float64      `json:"provider_cost_usd"`
	Simulated        bool         `json:"simulated"`
}

func (p MessageProcessedPayload) ToMap() (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodePayload(raw []byte) (MessageProcessedPayload, error) {
	var payload MessageProcessedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return MessageProcessedPayload{}, err
	}
	return payload, nil
}
