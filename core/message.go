package core

// Message is a single turn of the discovery dialogue. Messages are
// append-only: once added to a session they are never reordered or
// mutated.
type Message struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
	Role      string `json:"role"`
}

// NewMessage constructs an assistant-role message between two named
// participants.
func NewMessage(sender, recipient, content string) Message {
	return Message{Sender: sender, Recipient: recipient, Content: content, Role: "assistant"}
}

// NewUserMessage constructs a user-role message addressed to a participant.
func NewUserMessage(recipient, content string) Message {
	return Message{Sender: "user", Recipient: recipient, Content: content, Role: "user"}
}
