package subscription

// Subscription actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Message is a subscribe or unsubscribe command for one category.
type Message struct {
	Action   string
	Category string
	IDs      []string
}

// Payload returns the wire shape {action: ..., <category>: [ids...]}.
func (m Message) Payload() map[string]any {
	ids := m.IDs
	if ids == nil {
		ids = []string{}
	}
	return map[string]any{
		"action":   m.Action,
		m.Category: ids,
	}
}
