package waha

import "strings"

const groupChatSuffix = "@g.us"

// Message is one entry of a chat's recent messages as reported by WAHA.
type Message struct {
	ID        string `json:"id"`
	FromMe    bool   `json:"fromMe"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
}

// WebhookEvent is the envelope WAHA posts to the inbound webhook.
type WebhookEvent struct {
	Event   string         `json:"event"`
	Session string         `json:"session"`
	Payload WebhookPayload `json:"payload"`
}

// WebhookPayload carries one inbound message.
type WebhookPayload struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	FromMe    bool   `json:"fromMe"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
}

// IsGroup reports whether the message came from a group chat. Group
// conversations are dropped before they reach the buffer core.
func (p WebhookPayload) IsGroup() bool {
	return strings.HasSuffix(p.From, groupChatSuffix)
}

// EventMessage is the only webhook event kind the bot acts on.
const EventMessage = "message"

type sendTextRequest struct {
	Session string `json:"session"`
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
}

type typingRequest struct {
	Session string `json:"session"`
	ChatID  string `json:"chatId"`
}
