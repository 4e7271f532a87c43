package hl

import "encoding/json"

// Subscription declares one logical stream: a channel type plus the coin it
// is scoped to. User-scoped channels leave Coin empty and set User.
type Subscription struct {
	Type Channel `json:"type"`
	Coin string  `json:"coin,omitempty"`
	User string  `json:"user,omitempty"`
}

type wsRequest struct {
	Method       string       `json:"method"`
	Subscription Subscription `json:"subscription"`
}

// SubscribeFrame encodes the outbound frame that activates sub.
func SubscribeFrame(sub Subscription) ([]byte, error) {
	return json.Marshal(wsRequest{Method: "subscribe", Subscription: sub})
}

// UnsubscribeFrame encodes the outbound frame that deactivates sub.
func UnsubscribeFrame(sub Subscription) ([]byte, error) {
	return json.Marshal(wsRequest{Method: "unsubscribe", Subscription: sub})
}
